// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package zhtpid defines the 32-byte identifier types shared across every
// ZHTP subsystem: content/DID hashes (ID) and device identifiers (NodeID).
// Keeping these as a leaf package avoids the import cycles that would
// otherwise form between identity, peer, consensus, and mesh.
package zhtpid

import (
	"encoding/hex"
	"errors"
)

// Len is the byte length of an ID or NodeID (a Blake3-256 digest).
const Len = 32

// ErrInvalidLength is returned when decoding a hex string of the wrong size.
var ErrInvalidLength = errors.New("zhtpid: invalid length")

// ID is a content-addressed identifier: Blake3(did), Blake3(manifest), a
// transaction hash, a proposal id, etc.
type ID [Len]byte

// NodeID identifies a single device belonging to an identity.
type NodeID [Len]byte

// Empty is the zero-valued ID, used as a sentinel for "no value".
var Empty ID

// EmptyNodeID is the zero-valued NodeID.
var EmptyNodeID NodeID

// String returns the lowercase hex encoding.
func (id ID) String() string { return hex.EncodeToString(id[:]) }

// String returns the lowercase hex encoding.
func (n NodeID) String() string { return hex.EncodeToString(n[:]) }

// IsEmpty reports whether the ID is the zero value.
func (id ID) IsEmpty() bool { return id == Empty }

// Bytes returns a copy of the underlying bytes.
func (id ID) Bytes() []byte {
	b := make([]byte, Len)
	copy(b, id[:])
	return b
}

// Bytes returns a copy of the underlying bytes.
func (n NodeID) Bytes() []byte {
	b := make([]byte, Len)
	copy(b, n[:])
	return b
}

// FromBytes builds an ID from a byte slice, padding or truncating is not
// performed: the slice must be exactly Len bytes, as produced by a Blake3
// hash.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != Len {
		return id, ErrInvalidLength
	}
	copy(id[:], b)
	return id, nil
}

// NodeIDFromBytes builds a NodeID from a byte slice.
func NodeIDFromBytes(b []byte) (NodeID, error) {
	var n NodeID
	if len(b) != Len {
		return n, ErrInvalidLength
	}
	copy(n[:], b)
	return n, nil
}

// FromHex parses a hex-encoded ID.
func FromHex(s string) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Empty, err
	}
	return FromBytes(b)
}

// NodeIDFromHex parses a hex-encoded NodeID.
func NodeIDFromHex(s string) (NodeID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return EmptyNodeID, err
	}
	return NodeIDFromBytes(b)
}

// Less provides a deterministic byte-order comparison, used to break ties
// between proposals that received an equal number of votes (spec §4.1,
// "winning proposal" step 1).
func (id ID) Less(other ID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}
