// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ringtail

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/zhtp-network/zhtp/zhtpid"
)

var (
	ErrInsufficientShares  = errors.New("ringtail: insufficient signatures for quorum")
	ErrDuplicateShare      = errors.New("ringtail: duplicate signature from validator")
	ErrUnknownValidator    = errors.New("ringtail: signature from unknown validator")
	ErrCertificateMismatch = errors.New("ringtail: certificate round/height mismatch")
)

// Share is one validator's signature over a round's block hash.
type Share struct {
	ValidatorID zhtpid.NodeID
	Signature   []byte
}

// ValidatorSet is the read-only view a Certificate needs to verify shares
// and determine quorum size; validators.Set satisfies it.
type ValidatorSet interface {
	PublicKey(id zhtpid.NodeID) ([]byte, bool)
	QuorumSize() int
}

// Certificate accumulates per-validator signatures over a single round's
// block hash until quorum (2f+1) is reached, forming the commit proof
// attached to a finalized block (spec §4.1 step 5, "aggregated signature
// proof"). Unlike the teacher's BLS/lattice dual-certificate design, a
// ZHTP certificate holds individual signatures rather than an aggregated
// one: the post-quantum Signer capability this package wraps (ringtail.go)
// has no aggregation primitive, so a certificate is verified by checking
// each share independently against the validator's public key.
type Certificate struct {
	mu sync.RWMutex

	Round     uint64
	Height    uint64
	BlockHash zhtpid.ID
	shares    map[zhtpid.NodeID]Share
}

// NewCertificate creates an empty certificate for the given round/height.
func NewCertificate(round, height uint64, blockHash zhtpid.ID) *Certificate {
	return &Certificate{
		Round:     round,
		Height:    height,
		BlockHash: blockHash,
		shares:    make(map[zhtpid.NodeID]Share),
	}
}

// AddShare verifies and records a validator's signature. Returns
// ErrDuplicateShare if the validator already contributed a share for this
// round.
func (c *Certificate) AddShare(share Share, validators ValidatorSet) error {
	pub, ok := validators.PublicKey(share.ValidatorID)
	if !ok {
		return ErrUnknownValidator
	}
	if !NewVerifier().Verify(c.BlockHash.Bytes(), share.Signature, pub) {
		return ErrInvalidSignature
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.shares[share.ValidatorID]; exists {
		return ErrDuplicateShare
	}
	c.shares[share.ValidatorID] = share
	return nil
}

// IsComplete reports whether enough shares have been collected for the
// validator set's quorum size.
func (c *Certificate) IsComplete(validators ValidatorSet) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shares) >= validators.QuorumSize()
}

// ShareCount returns the number of distinct validator signatures collected.
func (c *Certificate) ShareCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shares)
}

// Verify re-checks every collected share against the validator set and
// confirms quorum is met, used before attaching a certificate to a
// finalized block.
func (c *Certificate) Verify(validators ValidatorSet) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.shares) < validators.QuorumSize() {
		return ErrInsufficientShares
	}
	for id, share := range c.shares {
		pub, ok := validators.PublicKey(id)
		if !ok {
			return ErrUnknownValidator
		}
		if !NewVerifier().Verify(c.BlockHash.Bytes(), share.Signature, pub) {
			return ErrInvalidSignature
		}
	}
	return nil
}

// Serialize renders the certificate for network transmission / storage.
func (c *Certificate) Serialize() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	buf := make([]byte, 0, 24+len(c.shares)*(zhtpid.Len+SignatureSize+4))
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], c.Round)
	buf = append(buf, tmp[:]...)
	binary.BigEndian.PutUint64(tmp[:], c.Height)
	buf = append(buf, tmp[:]...)
	buf = append(buf, c.BlockHash.Bytes()...)

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(c.shares)))
	buf = append(buf, countBuf[:]...)
	for id, share := range c.shares {
		buf = append(buf, id.Bytes()...)
		binary.BigEndian.PutUint32(countBuf[:], uint32(len(share.Signature)))
		buf = append(buf, countBuf[:]...)
		buf = append(buf, share.Signature...)
	}
	return buf
}
