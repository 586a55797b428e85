// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pq implements post-quantum signatures (Ringtail) as a thin
// package-level facade over ringtail.Scheme, for callers (bootstrap proof
// exchange, CLI tooling) that want one-shot sign/verify without managing a
// KeyPair directly.
package pq

import (
	"fmt"

	"github.com/zhtp-network/zhtp/ringtail"
)

// Batch holds the serialized signatures collected for a single
// batch-verification call.
type Batch struct {
	Sigs [][]byte
}

// Sign signs msg with priv using the active ringtail scheme. priv must be a
// valid ringtail private key, typically loaded via ringtail.LoadKeyPair.
func Sign(priv, msg []byte) ([]byte, error) {
	return ringtail.NewScheme().Sign(priv, msg)
}

// BatchVerify verifies that every (msg, sig) pair in msgs/sigs validates
// against the corresponding public key in pubs, all three slices the same
// length. It returns false on any length mismatch or on the first
// signature that fails to verify; it never reports success for a batch it
// has not actually checked.
func BatchVerify(msgs [][]byte, sigs [][]byte, pubs [][]byte) bool {
	if len(msgs) != len(sigs) || len(msgs) != len(pubs) {
		return false
	}
	scheme := ringtail.NewScheme()
	for i := range msgs {
		if !scheme.Verify(pubs[i], msgs[i], sigs[i]) {
			return false
		}
	}
	return true
}

// MakeBatch collects signatures produced by Sign for later BatchVerify.
func MakeBatch(sigs ...[]byte) Batch {
	return Batch{Sigs: sigs}
}

// VerifyBatch verifies every signature in b against a single msg/pub pair
// that all shares must have been produced for.
func VerifyBatch(b Batch, msg, pub []byte) error {
	scheme := ringtail.NewScheme()
	for i, sig := range b.Sigs {
		if !scheme.Verify(pub, msg, sig) {
			return fmt.Errorf("pq: batch signature %d failed verification", i)
		}
	}
	return nil
}
