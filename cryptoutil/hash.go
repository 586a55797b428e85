// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cryptoutil implements the Crypto Oracle capability (spec §2):
// hashing, extendable-output derivation, and the signing/encryption/ZK
// verification surface consumed by identity, consensus, and web4. Concrete
// post-quantum signing is delegated to the ringtail package; this package
// owns only the hash/XOF primitives and the oracle interfaces the rest of
// the core programs against.
package cryptoutil

import (
	"github.com/zeebo/blake3"

	"github.com/zhtp-network/zhtp/zhtpid"
)

// Hash computes the 32-byte Blake3 digest of the concatenation of parts.
// Every "Blake3(a ‖ b)" expression in spec §3 is implemented by a single
// call to this function.
func Hash(parts ...[]byte) zhtpid.ID {
	h := blake3.New()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	var out zhtpid.ID
	sum := h.Sum(nil)
	copy(out[:], sum)
	return out
}

// XOF derives n bytes of extendable output from the concatenation of
// parts, used for the wallet master seed derivation ("XOF_64" in spec §3).
func XOF(n int, parts ...[]byte) []byte {
	h := blake3.New()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	out := make([]byte, n)
	d := h.Digest()
	_, _ = d.Read(out)
	return out
}

// HashBytes is a convenience wrapper returning the raw digest bytes rather
// than a zhtpid.ID, for call sites that need to feed the digest into
// further hashing (manifest hash chains, merkle trees).
func HashBytes(parts ...[]byte) []byte {
	id := Hash(parts...)
	return id.Bytes()
}

// MerkleRoot computes a simple binary Merkle root over leaf hashes, used
// for the block header's merkle_root field (spec §4.1 step 4). An empty
// leaf set returns the zero ID; odd levels duplicate the last node, the
// common convention also used by the teacher corpus's UTXO-style chains.
func MerkleRoot(leaves [][]byte) zhtpid.ID {
	if len(leaves) == 0 {
		return zhtpid.Empty
	}
	level := make([][]byte, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, HashBytes(level[i], level[i+1]))
		}
		level = next
	}
	var root zhtpid.ID
	copy(root[:], level[0])
	return root
}
