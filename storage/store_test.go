// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.Upload([]byte("hello zhtp"))
	require.NoError(t, err)

	out, err := s.Download(cid)
	require.NoError(t, err)
	require.Equal(t, []byte("hello zhtp"), out)
}

func TestErasureCodingReconstructsMissingShard(t *testing.T) {
	s := openTestStore(t)
	content := []byte("this content is split into data shards with one xor parity shard")

	ids, err := s.StoreWithErasureCoding(content)
	require.NoError(t, err)
	require.Len(t, ids, DataShards+ParityShards)

	shards := make([][]byte, len(ids))
	for i, id := range ids {
		shards[i], err = s.Download(id)
		require.NoError(t, err)
	}

	rebuilt, err := ReconstructErasureCoded(shards[:DataShards], -1)
	require.NoError(t, err)
	require.Equal(t, padTo(content, len(rebuilt)), rebuilt)

	withParity := append(append([][]byte(nil), shards[:DataShards-1]...), shards[DataShards])
	rebuiltFromParity, err := ReconstructErasureCoded(withParity, DataShards-1)
	require.NoError(t, err)
	require.Equal(t, rebuilt, rebuiltFromParity)
}

func padTo(b []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, b)
	return out
}

func TestDomainRecordsListAndSearch(t *testing.T) {
	s := openTestStore(t)
	cid, err := s.Upload([]byte("welcome to example.zhtp"))
	require.NoError(t, err)
	require.NoError(t, s.PutDomainRecord("example.zhtp", cid))

	records, err := s.ListDomainRecords()
	require.NoError(t, err)
	require.Equal(t, cid, records["example.zhtp"])

	matches, err := s.SearchContent("welcome")
	require.NoError(t, err)
	require.Contains(t, matches, "example.zhtp")
}

func TestPerformMaintenanceUpdatesStatistics(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Upload([]byte("data"))
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.PerformMaintenance(now))
	stats := s.GetStatistics()
	require.Equal(t, now, stats.LastMaintained)
	require.Equal(t, 1, stats.ContentObjects)
}
