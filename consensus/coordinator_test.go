// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhtp-network/zhtp/engine/bft"
	"github.com/zhtp-network/zhtp/ringtail"
	"github.com/zhtp-network/zhtp/validators"
	"github.com/zhtp-network/zhtp/zhtpid"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *ringtail.KeyPair) {
	t.Helper()
	bft.SetVerifier(ringtail.NewVerifier())

	kp, err := ringtail.GenerateKeyPair()
	require.NoError(t, err)

	manager := validators.NewManager()
	reg := NewRegistry(manager)
	require.NoError(t, reg.RegisterAsValidator(kp, MinimumValidatorStake, 1024, 0.1))

	c, err := New(Config{
		Self:         kp.NodeID,
		Signer:       kp,
		Registry:     reg,
		RoundTimeout: time.Minute,
	})
	require.NoError(t, err)
	return c, kp
}

func TestRegisterAsValidatorRejectsLowStake(t *testing.T) {
	manager := validators.NewManager()
	reg := NewRegistry(manager)
	kp, err := ringtail.GenerateKeyPair()
	require.NoError(t, err)
	require.ErrorIs(t, reg.RegisterAsValidator(kp, 1, 0, 0), ErrInsufficientStake)
}

func TestStartRoundAsProposerAndCastVoteToQuorum(t *testing.T) {
	c, _ := newTestCoordinator(t)
	now := time.Now()

	tx := NewTransaction(zhtpid.ID{1}, zhtpid.ID{2}, 0, 10, nil, now, nil)
	require.True(t, c.Mempool().Add(tx))

	_, err := c.StartRound(1, zhtpid.Empty, bft.ConsensusProof{Type: bft.ProofTypeStake}, now, true)
	require.NoError(t, err)

	status := c.GetStatus()
	require.Equal(t, bft.PhasePreVoted, status.Phase)

	_, crossed, err := c.CastVote(now)
	require.NoError(t, err)
	require.True(t, crossed)

	_, crossed, err = c.CastVote(now)
	require.NoError(t, err)
	require.True(t, crossed)

	_, crossed, err = c.CastVote(now)
	require.NoError(t, err)
	require.True(t, crossed)

	block, err := c.FinalizeBlock(now)
	require.NoError(t, err)
	require.Len(t, block.Transactions, 1)
	require.Equal(t, uint64(BlockReward), c.Treasury().Balance())
	require.Equal(t, 0, c.Mempool().Len())
}

func TestValidateOrderingRejectsDoubleSpend(t *testing.T) {
	now := time.Now()
	from := zhtpid.ID{9}
	txs := []*Transaction{
		NewTransaction(from, zhtpid.ID{1}, 0, 5, nil, now, nil),
		NewTransaction(from, zhtpid.ID{2}, 0, 7, nil, now, nil),
	}
	require.ErrorIs(t, ValidateOrdering(txs), ErrDoubleSpendWithinBlock)
}

func TestValidateTimestampWindow(t *testing.T) {
	now := time.Now()
	require.NoError(t, ValidateTimestamp(now, now))
	require.NoError(t, ValidateTimestamp(now.Add(299*time.Second), now))
	require.ErrorIs(t, ValidateTimestamp(now.Add(301*time.Second), now), ErrTimestampOutOfRange)
}

func TestTreasuryUBIDistributionDebitsBalance(t *testing.T) {
	tr := NewTreasury()
	tr.Credit(1000)
	dist, err := tr.CreateUBIDistribution(1, []zhtpid.ID{{1}, {2}, {3}}, 100)
	require.NoError(t, err)
	require.Len(t, dist.Recipients, 3)
	require.Equal(t, uint64(700), tr.Balance())

	_, err = tr.CreateUBIDistribution(2, []zhtpid.ID{{1}}, 10000)
	require.ErrorIs(t, err, ErrInsufficientTreasury)
}

func TestGovernanceProposalPassesAtQuorum(t *testing.T) {
	g := NewGovernance()
	id := GovernanceProposalID(zhtpid.ID{7})
	g.Propose(id, GovernanceKindFunding, zhtpid.ID{1}, 500)

	var voterA, voterB zhtpid.NodeID
	voterA[0] = 1
	voterB[0] = 2

	p, err := g.CastGovernanceVote(id, voterA, 60, true, 100, 150)
	require.NoError(t, err)
	require.False(t, p.Closed)

	p, err = g.CastGovernanceVote(id, voterB, 50, true, 100, 150)
	require.NoError(t, err)
	require.True(t, p.Closed)
	require.True(t, p.Passed)
}

func TestAddRemoteVoteRejectsInvalidSignature(t *testing.T) {
	c, _ := newTestCoordinator(t)
	now := time.Now()
	_, err := c.StartRound(1, zhtpid.Empty, bft.ConsensusProof{}, now, true)
	require.NoError(t, err)

	bogus := bft.Vote{Voter: c.self, Type: bft.VotePreVote, Height: 1, Signature: []byte("not-a-real-signature")}
	_, err = c.AddRemoteVote(bogus, now)
	require.Error(t, err)
}
