// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package identity

import (
	"errors"
	"regexp"

	"github.com/fxamacker/cbor/v2"

	"github.com/zhtp-network/zhtp/ringtail"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// didPattern matches "did:zhtp:" followed by 64 lowercase hex characters
// (a Blake3-256 digest).
var didPattern = regexp.MustCompile(`^did:zhtp:[0-9a-f]{64}$`)

// ErrMalformedDID is returned by ValidateDID for any string not matching
// the "did:zhtp:<64 hex chars>" shape.
var ErrMalformedDID = errors.New("identity: malformed DID")

// ValidateDID checks that did has the well-formed "did:zhtp:<hash>" shape
// expected by the peer registry's DID secondary index.
func ValidateDID(did string) error {
	if !didPattern.MatchString(did) {
		return ErrMalformedDID
	}
	return nil
}

// Record is the persisted, secret-free view of an Identity: everything
// that is safe to write to disk or hand to another subsystem. Marshaling
// an Identity never includes the seed, zk secret, or wallet seed, and
// Unmarshaling always yields an Identity with IsSecretsDerived() == false
// until RederiveSecrets supplies the seed (property P3).
type Record struct {
	ID             zhtpid.ID
	DID            string
	CredentialHash zhtpid.ID
	DAOMemberID    string
	Reputation     int64
	TrustScore     float64
	Citizen        bool
	Devices        []string
}

// ToRecord snapshots the identity's public fields for persistence.
func (id *Identity) ToRecord() Record {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return Record{
		ID:             id.ID,
		DID:            id.DID,
		CredentialHash: id.CredentialHash,
		DAOMemberID:    id.DAOMemberID,
		Reputation:     id.Reputation,
		TrustScore:     id.TrustScore,
		Citizen:        id.Citizen,
		Devices:        id.Devices(),
	}
}

// Marshal encodes the identity's Record as CBOR. The result contains no
// secret material and is safe to persist or transmit.
func (id *Identity) Marshal() ([]byte, error) {
	return cbor.Marshal(id.ToRecord())
}

// FromRecord reconstructs an Identity shell from a persisted Record; its
// secrets are unavailable (IsSecretsDerived() == false) until
// RederiveSecrets is called with the matching seed.
func FromRecord(r Record) *Identity {
	return &Identity{
		ID:             r.ID,
		DID:            r.DID,
		CredentialHash: r.CredentialHash,
		DAOMemberID:    r.DAOMemberID,
		Reputation:     r.Reputation,
		TrustScore:     r.TrustScore,
		Citizen:        r.Citizen,
		devices:        make(map[string]*ringtail.KeyPair),
	}
}

// Unmarshal decodes a CBOR-encoded Record into a secrets-free Identity
// shell, equivalent to FromRecord(decoded).
func Unmarshal(data []byte) (*Identity, error) {
	var r Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return FromRecord(r), nil
}
