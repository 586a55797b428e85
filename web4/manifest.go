// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package web4 implements the Web4 Domain Registry: domain name
// registration and manifest publication with compare-and-swap updates, a
// manifest hash chain that lets any manifest be traced back to its
// domain's genesis, and durability ordering that always writes to the
// backing store before a change is reflected in the in-memory index.
package web4

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/zhtp-network/zhtp/cryptoutil"
	"github.com/zhtp-network/zhtp/storage"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// ErrChainMismatch is returned by validateChain when a manifest's
// PreviousCID does not match the domain's current manifest CID, meaning
// the caller built the new manifest against stale state.
var ErrChainMismatch = errors.New("web4: manifest does not chain from the domain's current manifest")

// Manifest is a single published version of a domain's content. Manifests
// form a hash chain: Manifest.CID is always Blake3 of the manifest's own
// fields including PreviousCID, so verifying the chain back to a domain's
// genesis manifest requires only recomputing each link's hash.
type Manifest struct {
	CID         zhtpid.ID
	PreviousCID zhtpid.ID // zhtpid.Empty for a domain's genesis manifest
	ContentCID  zhtpid.ID // CID of the uploaded content blob this manifest points at
	Version     uint64
	CreatedAt   time.Time
}

// encodeForHash renders the fields that make up a manifest's content
// address, everything except CID itself.
func (m Manifest) encodeForHash() []byte {
	buf, _ := cbor.Marshal(struct {
		PreviousCID zhtpid.ID
		ContentCID  zhtpid.ID
		Version     uint64
		CreatedAt   int64
	}{m.PreviousCID, m.ContentCID, m.Version, m.CreatedAt.UnixNano()})
	return buf
}

// newManifest builds a manifest chained from previous (zhtpid.Empty for a
// genesis manifest) and computes its CID.
func newManifest(previous zhtpid.ID, contentCID zhtpid.ID, version uint64, now time.Time) Manifest {
	m := Manifest{PreviousCID: previous, ContentCID: contentCID, Version: version, CreatedAt: now}
	m.CID = cryptoutil.Hash(m.encodeForHash())
	return m
}

// validateChain recomputes m's CID from its own fields and checks that it
// chains from expectedPrevious, rejecting a manifest that was tampered
// with or built against a stale parent.
func validateChain(m Manifest, expectedPrevious zhtpid.ID) error {
	if recomputed := cryptoutil.Hash(m.encodeForHash()); recomputed != m.CID {
		return fmt.Errorf("web4: manifest CID does not match its own content")
	}
	if m.PreviousCID != expectedPrevious {
		return ErrChainMismatch
	}
	return nil
}

// manifestStore persists manifests in the backing Capability, content
// addressed like any other uploaded object: the stored bytes are the
// encoding the manifest's CID is computed over, so a manifest is kept
// under its own CID.
type manifestStore struct {
	cap storage.Capability
}

func (s manifestStore) put(m Manifest) error {
	cid, err := s.cap.Upload(m.encodeForHash())
	if err != nil {
		return err
	}
	if cid != m.CID {
		return fmt.Errorf("web4: manifest storage CID %s does not match computed CID %s", cid, m.CID)
	}
	return nil
}

func (s manifestStore) get(cid zhtpid.ID) (Manifest, error) {
	data, err := s.cap.Download(cid)
	if err != nil {
		return Manifest{}, err
	}
	var f struct {
		PreviousCID zhtpid.ID
		ContentCID  zhtpid.ID
		Version     uint64
		CreatedAt   int64
	}
	if err := cbor.Unmarshal(data, &f); err != nil {
		return Manifest{}, err
	}
	return Manifest{CID: cid, PreviousCID: f.PreviousCID, ContentCID: f.ContentCID, Version: f.Version, CreatedAt: time.Unix(0, f.CreatedAt)}, nil
}

// Diff summarizes what changed between two manifests, the supplemented
// manifest diff preview (spec C.3): cheap enough to compute without
// downloading and diffing full content, useful before committing to an
// UpdateDomain call.
type Diff struct {
	OldCID        zhtpid.ID
	NewCID        zhtpid.ID
	ContentCID    zhtpid.ID
	ContentSame   bool
	VersionDelta  int64
	OldCreatedAt  time.Time
	NewCreatedAt  time.Time
}
