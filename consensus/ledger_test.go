// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhtp-network/zhtp/zhtpid"
)

func TestLedgerApplyRejectsOverdraw(t *testing.T) {
	l := NewLedger()
	from, to := zhtpid.ID{1}, zhtpid.ID{2}
	l.Credit(from, 100)

	tx := NewTransaction(from, to, 0, 40, nil, time.Now(), nil)
	require.NoError(t, l.Apply(tx))
	require.Equal(t, uint64(60), l.Balance(from))
	require.Equal(t, uint64(40), l.Balance(to))

	require.ErrorIs(t, l.Apply(NewTransaction(from, to, 1, 1000, nil, time.Now(), nil)), ErrInsufficientBalance)
}

func TestLedgerSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	l, err := LoadLedger(path)
	require.NoError(t, err)
	l.Credit(zhtpid.ID{9}, 500)
	require.NoError(t, l.Save())

	reloaded, err := LoadLedger(path)
	require.NoError(t, err)
	require.Equal(t, uint64(500), reloaded.Balance(zhtpid.ID{9}))
}

func TestLedgerApplyUBIDistributionCreditsAllRecipients(t *testing.T) {
	l := NewLedger()
	dist := &UBIDistribution{Round: 1, PerCitizen: 10, Recipients: []zhtpid.ID{{1}, {2}, {3}}}
	l.ApplyUBIDistribution(dist)
	require.Equal(t, uint64(10), l.Balance(zhtpid.ID{1}))
	require.Equal(t, uint64(10), l.Balance(zhtpid.ID{3}))
}
