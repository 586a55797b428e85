// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cryptoutil

import "errors"

// ErrVerificationFailed is returned by any Oracle method that rejects a
// signature or proof.
var ErrVerificationFailed = errors.New("cryptoutil: verification failed")

// Signer is the capability interface for post-quantum signing, implemented
// concretely by ringtail.KeyPair. Consensus, engine/bft, and mesh each
// declare their own Signer with this same method set, so they program
// against a capability rather than a concrete scheme, per spec §1
// ("specific cryptographic primitive implementations treated as a
// capability interface").
type Signer interface {
	Sign(msg []byte) (sig []byte, err error)
	PublicKeyBytes() []byte
}

// Verifier checks signatures produced by a Signer's scheme.
type Verifier interface {
	Verify(msg, sig, publicKey []byte) bool
}

// Encrypter is the capability interface for symmetric/asymmetric
// encryption of wallet and keystore payloads.
type Encrypter interface {
	Encrypt(plaintext, key []byte) (ciphertext []byte, err error)
	Decrypt(ciphertext, key []byte) (plaintext []byte, err error)
}

// ZKVerifier verifies recursive chain proofs and identity/ZK proofs. The
// concrete proof system (spec §1, "specific proof circuits treated as a
// verification oracle") is out of core scope; this interface is the
// boundary the Consensus Coordinator and bootstrap exchange program
// against.
type ZKVerifier interface {
	// VerifyChainProof verifies a recursive proof attesting to chain
	// validity up to tipHeight. Must run in O(1) regardless of chain
	// length (spec GLOSSARY "Recursive chain proof").
	VerifyChainProof(proof []byte, tipHeight uint64) (bool, error)
	// VerifyIdentityProof verifies a ZK identity/UBI-eligibility proof.
	VerifyIdentityProof(proof []byte, identitySecret []byte) (bool, error)
}
