// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package web4

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhtp-network/zhtp/cryptoutil"
	"github.com/zhtp-network/zhtp/storage"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// memCapability is an in-memory storage.Capability fake, used so web4
// tests don't need a pebble database on disk.
type memCapability struct {
	mu      sync.Mutex
	objects map[zhtpid.ID][]byte
	domains map[string]zhtpid.ID
}

func newMemCapability() *memCapability {
	return &memCapability{objects: make(map[zhtpid.ID][]byte), domains: make(map[string]zhtpid.ID)}
}

func (m *memCapability) Upload(content []byte) (zhtpid.ID, error) {
	cid := cryptoutil.Hash(content)
	m.mu.Lock()
	m.objects[cid] = append([]byte(nil), content...)
	m.mu.Unlock()
	return cid, nil
}

func (m *memCapability) Download(cid zhtpid.ID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[cid]
	if !ok {
		return nil, errObjectNotFound
	}
	return data, nil
}

var errObjectNotFound = fmt.Errorf("memCapability: object not found")

func (m *memCapability) StoreWithErasureCoding(content []byte) ([]zhtpid.ID, error) {
	cid, err := m.Upload(content)
	return []zhtpid.ID{cid}, err
}

func (m *memCapability) ListDomainRecords() (map[string]zhtpid.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]zhtpid.ID, len(m.domains))
	for k, v := range m.domains {
		out[k] = v
	}
	return out, nil
}

func (m *memCapability) PutDomainRecord(name string, cid zhtpid.ID) error {
	m.mu.Lock()
	m.domains[name] = cid
	m.mu.Unlock()
	return nil
}

func (m *memCapability) DeleteDomainRecord(name string) error {
	m.mu.Lock()
	delete(m.domains, name)
	m.mu.Unlock()
	return nil
}

func (m *memCapability) SearchContent(query string) ([]string, error) { return nil, nil }
func (m *memCapability) GetStatistics() storage.Statistics             { return storage.Statistics{} }
func (m *memCapability) PerformMaintenance(now time.Time) error        { return nil }

func TestRegisterLookupUpdateDomain(t *testing.T) {
	reg := NewRegistry(newMemCapability())
	owner := zhtpid.ID{1}
	now := time.Now()

	rec, err := reg.RegisterDomain("example.zhtp", owner, []byte("v1"), now)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec.Version)

	found, err := reg.LookupDomain("example.zhtp")
	require.NoError(t, err)
	require.Equal(t, rec.CurrentManifestCID, found.CurrentManifestCID)

	updated, err := reg.UpdateDomain("example.zhtp", owner, rec.CurrentManifestCID, []byte("v2"), now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, uint64(2), updated.Version)
	require.NotEqual(t, rec.CurrentManifestCID, updated.CurrentManifestCID)
}

func TestUpdateDomainRejectsStaleCAS(t *testing.T) {
	reg := NewRegistry(newMemCapability())
	owner := zhtpid.ID{2}
	now := time.Now()
	rec, err := reg.RegisterDomain("stale.zhtp", owner, []byte("v1"), now)
	require.NoError(t, err)

	_, err = reg.UpdateDomain("stale.zhtp", owner, zhtpid.ID{0xff}, []byte("v2"), now)
	require.ErrorIs(t, err, ErrCASMismatch)
	_ = rec
}

func TestRegisterDomainRejectsBadName(t *testing.T) {
	reg := NewRegistry(newMemCapability())
	_, err := reg.RegisterDomain("NOTVALID", zhtpid.ID{3}, []byte("x"), time.Now())
	require.ErrorIs(t, err, ErrInvalidDomainName)
}

func TestRollbackDomainAddsForwardVersion(t *testing.T) {
	reg := NewRegistry(newMemCapability())
	owner := zhtpid.ID{4}
	now := time.Now()

	rec, err := reg.RegisterDomain("rollback.zhtp", owner, []byte("v1"), now)
	require.NoError(t, err)
	genesisCID := rec.CurrentManifestCID

	rec, err = reg.UpdateDomain("rollback.zhtp", owner, rec.CurrentManifestCID, []byte("v2"), now.Add(time.Minute))
	require.NoError(t, err)

	rolledBack, err := reg.RollbackDomain("rollback.zhtp", owner, genesisCID, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, uint64(3), rolledBack.Version)
	require.Len(t, rolledBack.History, 3)
	require.NotEqual(t, genesisCID, rolledBack.CurrentManifestCID)
}

func TestTransferAndReleaseDomain(t *testing.T) {
	reg := NewRegistry(newMemCapability())
	owner := zhtpid.ID{5}
	newOwner := zhtpid.ID{6}
	now := time.Now()

	_, err := reg.RegisterDomain("transfer.zhtp", owner, []byte("v1"), now)
	require.NoError(t, err)

	rec, err := reg.TransferDomain("transfer.zhtp", owner, newOwner, now)
	require.NoError(t, err)
	require.Equal(t, newOwner, rec.Owner)

	err = reg.ReleaseDomain("transfer.zhtp", owner)
	require.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, reg.ReleaseDomain("transfer.zhtp", newOwner))
	_, err = reg.LookupDomain("transfer.zhtp")
	require.ErrorIs(t, err, ErrDomainNotFound)
}
