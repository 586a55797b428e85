// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ringtail implements the post-quantum signing capability consumed
// by identity and consensus (spec §1: "specific cryptographic primitive
// implementations treated as a capability interface"). Scheme is backed by
// ed25519 as a concrete, testable stand-in: no pack repository vendors a
// real lattice-based (Kyber/Dilithium-class) implementation, and the spec
// explicitly treats the primitive as an oracle, so a real asymmetric
// scheme with the same Sign/Verify shape is the closest faithful
// placeholder (see DESIGN.md). Swapping in a lattice scheme later means
// implementing Scheme against a different library; no caller changes.
package ringtail

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"github.com/zhtp-network/zhtp/cryptoutil"
)

// readRandom fills b with cryptographically secure random bytes, used to
// seed a fresh (non-deterministic) keypair.
func readRandom(b []byte) (int, error) {
	return rand.Read(b)
}

const (
	PrivateKeySize = ed25519.PrivateKeySize
	PublicKeySize  = ed25519.PublicKeySize
	SignatureSize  = ed25519.SignatureSize
)

var (
	ErrInvalidKeySize   = errors.New("ringtail: invalid key size")
	ErrInvalidSignature = errors.New("ringtail: invalid signature")
)

// Scheme is the minimal signature surface this package wraps.
type Scheme interface {
	KeyGen(seed []byte) (priv, pub []byte, err error)
	Sign(priv, msg []byte) ([]byte, error)
	Verify(pub, msg, sig []byte) bool
}

type scheme struct{}

// NewScheme returns the active signature scheme implementation.
func NewScheme() Scheme { return scheme{} }

// KeyGen derives a deterministic keypair from seed, so that re-deriving an
// identity's device keys from the same seed always yields the same keys
// (spec P1, identity determinism).
func (scheme) KeyGen(seed []byte) ([]byte, []byte, error) {
	if len(seed) == 0 {
		return nil, nil, errors.New("ringtail: empty seed")
	}
	material := cryptoutil.XOF(ed25519.SeedSize, seed, []byte("ZHTP_RINGTAIL_SEED_V1"))
	priv := ed25519.NewKeyFromSeed(material)
	pub := priv.Public().(ed25519.PublicKey)
	return []byte(priv), []byte(pub), nil
}

func (scheme) Sign(priv, msg []byte) ([]byte, error) {
	if len(priv) != PrivateKeySize {
		return nil, ErrInvalidKeySize
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), msg), nil
}

func (scheme) Verify(pub, msg, sig []byte) bool {
	if len(pub) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}
