// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package web4

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/zhtp-network/zhtp/internal/zhtperr"
	"github.com/zhtp-network/zhtp/storage"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// domainNamePattern enforces the "3-63 lowercase alphanumeric/hyphen
// labels under .zhtp or .sov" domain name rule.
var domainNamePattern = regexp.MustCompile(`^[a-z0-9-]{3,63}\.(zhtp|sov)$`)

var (
	// ErrInvalidDomainName is returned when a candidate name fails
	// domainNamePattern.
	ErrInvalidDomainName = errors.New("web4: invalid domain name")
	// ErrDomainExists is returned by RegisterDomain for an already
	// registered name.
	ErrDomainExists = errors.New("web4: domain already registered")
	// ErrDomainNotFound is returned by any operation on an unregistered
	// name.
	ErrDomainNotFound = errors.New("web4: domain not found")
	// ErrNotOwner is returned when the caller does not hold the domain.
	ErrNotOwner = errors.New("web4: caller does not own this domain")
	// ErrCASMismatch is returned by UpdateDomain when the expected
	// current manifest CID does not match the domain's actual current
	// manifest CID (spec §4.4 compare-and-swap on current_manifest_cid).
	ErrCASMismatch = errors.New("web4: compare-and-swap failed, current manifest changed")
)

// ValidateDomainName reports whether name satisfies the registry's naming
// rule.
func ValidateDomainName(name string) error {
	if !domainNamePattern.MatchString(name) {
		return ErrInvalidDomainName
	}
	return nil
}

// DomainRecord is a single registered name's durable state: who owns it,
// which manifest is currently published, and the full manifest chain so
// RollbackDomain can restore any prior version as a new forward version.
type DomainRecord struct {
	Name               string
	Owner              zhtpid.ID
	CurrentManifestCID zhtpid.ID
	Version            uint64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	History            []zhtpid.ID // oldest to newest manifest CID
}

// Registry is the Web4 Domain Registry. Every mutating operation writes
// through to the backing Capability before updating the in-memory index,
// so a crash between the two never leaves memory ahead of disk (spec
// §4.4 "persistence-before-memory-mutation durability ordering").
type Registry struct {
	mu      sync.RWMutex
	cap     storage.Capability
	store   manifestStore
	domains map[string]*DomainRecord
}

// NewRegistry creates a registry backed by cap.
func NewRegistry(cap storage.Capability) *Registry {
	return &Registry{
		cap:     cap,
		store:   manifestStore{cap: cap},
		domains: make(map[string]*DomainRecord),
	}
}

// RegisterDomain claims name for owner, publishing content as the
// domain's genesis manifest.
func (r *Registry) RegisterDomain(name string, owner zhtpid.ID, content []byte, now time.Time) (*DomainRecord, error) {
	if err := ValidateDomainName(name); err != nil {
		return nil, zhtperr.New(zhtperr.InvalidInput, "web4", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.domains[name]; exists {
		return nil, zhtperr.New(zhtperr.Conflict, "web4", ErrDomainExists)
	}

	contentCID, err := r.cap.Upload(content)
	if err != nil {
		return nil, zhtperr.New(zhtperr.Transient, "web4", err)
	}
	manifest := newManifest(zhtpid.Empty, contentCID, 1, now)
	if err := r.store.put(manifest); err != nil {
		return nil, zhtperr.New(zhtperr.Transient, "web4", err)
	}
	if err := r.cap.PutDomainRecord(name, manifest.CID); err != nil {
		return nil, zhtperr.New(zhtperr.Transient, "web4", err)
	}

	rec := &DomainRecord{
		Name:               name,
		Owner:              owner,
		CurrentManifestCID: manifest.CID,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
		History:            []zhtpid.ID{manifest.CID},
	}
	r.domains[name] = rec
	return cloneRecord(rec), nil
}

// LookupDomain returns the current record for name.
func (r *Registry) LookupDomain(name string) (*DomainRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.domains[name]
	if !ok {
		return nil, zhtperr.New(zhtperr.NotFound, "web4", ErrDomainNotFound)
	}
	return cloneRecord(rec), nil
}

// UpdateDomain publishes newContent as the next manifest version,
// succeeding only if expectedCurrentCID matches the domain's actual
// current manifest CID (the CAS). The new manifest is written to storage
// and the domain's storage index entry is updated before the in-memory
// record changes.
func (r *Registry) UpdateDomain(name string, owner zhtpid.ID, expectedCurrentCID zhtpid.ID, newContent []byte, now time.Time) (*DomainRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.domains[name]
	if !ok {
		return nil, zhtperr.New(zhtperr.NotFound, "web4", ErrDomainNotFound)
	}
	if rec.Owner != owner {
		return nil, zhtperr.New(zhtperr.AuthFailure, "web4", ErrNotOwner)
	}
	if rec.CurrentManifestCID != expectedCurrentCID {
		return nil, zhtperr.New(zhtperr.Conflict, "web4", ErrCASMismatch)
	}

	contentCID, err := r.cap.Upload(newContent)
	if err != nil {
		return nil, zhtperr.New(zhtperr.Transient, "web4", err)
	}
	manifest := newManifest(rec.CurrentManifestCID, contentCID, rec.Version+1, now)
	if err := validateChain(manifest, rec.CurrentManifestCID); err != nil {
		return nil, zhtperr.New(zhtperr.Fatal, "web4", err)
	}
	if err := r.store.put(manifest); err != nil {
		return nil, zhtperr.New(zhtperr.Transient, "web4", err)
	}
	if err := r.cap.PutDomainRecord(name, manifest.CID); err != nil {
		return nil, zhtperr.New(zhtperr.Transient, "web4", err)
	}

	rec.CurrentManifestCID = manifest.CID
	rec.Version = manifest.Version
	rec.UpdatedAt = now
	rec.History = append(rec.History, manifest.CID)
	return cloneRecord(rec), nil
}

// TransferDomain reassigns ownership of name from its current owner to
// newOwner.
func (r *Registry) TransferDomain(name string, owner, newOwner zhtpid.ID, now time.Time) (*DomainRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.domains[name]
	if !ok {
		return nil, zhtperr.New(zhtperr.NotFound, "web4", ErrDomainNotFound)
	}
	if rec.Owner != owner {
		return nil, zhtperr.New(zhtperr.AuthFailure, "web4", ErrNotOwner)
	}
	rec.Owner = newOwner
	rec.UpdatedAt = now
	return cloneRecord(rec), nil
}

// ReleaseDomain removes name from the registry entirely, freeing it for
// future registration. The storage index entry is deleted before the
// in-memory record is dropped.
func (r *Registry) ReleaseDomain(name string, owner zhtpid.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.domains[name]
	if !ok {
		return zhtperr.New(zhtperr.NotFound, "web4", ErrDomainNotFound)
	}
	if rec.Owner != owner {
		return zhtperr.New(zhtperr.AuthFailure, "web4", ErrNotOwner)
	}
	if err := r.cap.DeleteDomainRecord(name); err != nil {
		return zhtperr.New(zhtperr.Transient, "web4", err)
	}
	delete(r.domains, name)
	return nil
}

// RollbackDomain restores the content published under targetManifestCID
// as a brand new forward version, rather than rewinding history: the
// domain's version counter keeps increasing and the restored manifest is
// appended to History, so a rollback is indistinguishable from a normal
// update except that its content happens to match an earlier version
// (spec §4.4 "rollback-as-forward-version-restore").
func (r *Registry) RollbackDomain(name string, owner zhtpid.ID, targetManifestCID zhtpid.ID, now time.Time) (*DomainRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.domains[name]
	if !ok {
		return nil, zhtperr.New(zhtperr.NotFound, "web4", ErrDomainNotFound)
	}
	if rec.Owner != owner {
		return nil, zhtperr.New(zhtperr.AuthFailure, "web4", ErrNotOwner)
	}
	found := false
	for _, cid := range rec.History {
		if cid == targetManifestCID {
			found = true
			break
		}
	}
	if !found {
		return nil, zhtperr.Newf(zhtperr.InvalidInput, "web4", "manifest %s is not part of %s's history", targetManifestCID, name)
	}

	target, err := r.store.get(targetManifestCID)
	if err != nil {
		return nil, zhtperr.New(zhtperr.Transient, "web4", err)
	}
	restored := newManifest(rec.CurrentManifestCID, target.ContentCID, rec.Version+1, now)
	if err := r.store.put(restored); err != nil {
		return nil, zhtperr.New(zhtperr.Transient, "web4", err)
	}
	if err := r.cap.PutDomainRecord(name, restored.CID); err != nil {
		return nil, zhtperr.New(zhtperr.Transient, "web4", err)
	}

	rec.CurrentManifestCID = restored.CID
	rec.Version = restored.Version
	rec.UpdatedAt = now
	rec.History = append(rec.History, restored.CID)
	return cloneRecord(rec), nil
}

// StoreManifest fetches a domain's manifest by CID, for callers (the
// mesh handler serving a ZhtpRequest) that need the manifest's raw
// content CID rather than the whole DomainRecord.
func (r *Registry) StoreManifest(cid zhtpid.ID) (Manifest, error) {
	return r.store.get(cid)
}

// DiffManifest computes a cheap Diff between two manifest CIDs without
// downloading the underlying content blobs (spec C.3 manifest diff
// preview).
func (r *Registry) DiffManifest(oldCID, newCID zhtpid.ID) (Diff, error) {
	oldM, err := r.store.get(oldCID)
	if err != nil {
		return Diff{}, fmt.Errorf("web4: diff: load old manifest: %w", err)
	}
	newM, err := r.store.get(newCID)
	if err != nil {
		return Diff{}, fmt.Errorf("web4: diff: load new manifest: %w", err)
	}
	return Diff{
		OldCID:       oldCID,
		NewCID:       newCID,
		ContentCID:   newM.ContentCID,
		ContentSame:  oldM.ContentCID == newM.ContentCID,
		VersionDelta: int64(newM.Version) - int64(oldM.Version),
		OldCreatedAt: oldM.CreatedAt,
		NewCreatedAt: newM.CreatedAt,
	}, nil
}

// ListDomains returns every currently registered domain name.
func (r *Registry) ListDomains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.domains))
	for name := range r.domains {
		out = append(out, name)
	}
	return out
}

func cloneRecord(rec *DomainRecord) *DomainRecord {
	cp := *rec
	cp.History = append([]zhtpid.ID(nil), rec.History...)
	return &cp
}
