// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"time"

	"github.com/zhtp-network/zhtp/zhtpid"
)

// Capability is the narrow storage/DHT surface the Web4 Domain Registry
// and the mesh message handler program against (spec §4.5), satisfied
// concretely by *Store. Programming against this interface rather than
// *Store directly lets tests substitute an in-memory fake without
// standing up a pebble database.
type Capability interface {
	Upload(content []byte) (zhtpid.ID, error)
	Download(cid zhtpid.ID) ([]byte, error)
	StoreWithErasureCoding(content []byte) ([]zhtpid.ID, error)
	ListDomainRecords() (map[string]zhtpid.ID, error)
	PutDomainRecord(name string, cid zhtpid.ID) error
	DeleteDomainRecord(name string) error
	SearchContent(query string) ([]string, error)
	GetStatistics() Statistics
	PerformMaintenance(now time.Time) error
}

var _ Capability = (*Store)(nil)
