// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mesh

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/zhtp-network/zhtp/zhtpid"
)

var bootstrapDomain = []byte("ZHTP_BOOTSTRAP_PROOF_V1")

// Signer is the narrow capability BuildBootstrapProof needs, satisfied by
// ringtail.KeyPair.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
	PublicKeyBytes() []byte
}

var (
	ErrBootstrapProofExpired       = errors.New("mesh: bootstrap proof timestamp outside acceptance window")
	ErrBootstrapProofBadSignature  = errors.New("mesh: bootstrap proof signature verification failed")
)

// bootstrapAcceptanceWindow bounds how old a bootstrap proof's timestamp
// may be, preventing a captured proof from being replayed indefinitely.
const bootstrapAcceptanceWindow = 5 * time.Minute

// BootstrapProof is what a joining (edge) node presents to an
// already-bootstrapped validator to be admitted to the mesh.
type BootstrapProof struct {
	NodeID    zhtpid.NodeID
	Timestamp time.Time
	Signature []byte
}

func bootstrapPreimage(nodeID zhtpid.NodeID, ts time.Time) []byte {
	buf := make([]byte, 0, zhtpid.Len+8+len(bootstrapDomain))
	buf = append(buf, nodeID.Bytes()...)
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(ts.Unix()))
	buf = append(buf, tsBuf[:]...)
	buf = append(buf, bootstrapDomain...)
	return buf
}

// BuildBootstrapProof is the edge side: a joining node signs its own
// NodeID and the current time so a validator can verify both the
// signature and the request's freshness.
func BuildBootstrapProof(signer Signer, nodeID zhtpid.NodeID, now time.Time) (BootstrapProof, error) {
	sig, err := signer.Sign(bootstrapPreimage(nodeID, now))
	if err != nil {
		return BootstrapProof{}, err
	}
	return BootstrapProof{NodeID: nodeID, Timestamp: now, Signature: sig}, nil
}

// VerifyBootstrapProof is the validator side: it recomputes the preimage
// claimed by proof, checks the signature against pub, and rejects a
// proof whose timestamp is more than bootstrapAcceptanceWindow before now
// or more than one minute after it.
func VerifyBootstrapProof(verifier Verifier, pub []byte, proof BootstrapProof, now time.Time) error {
	if now.Sub(proof.Timestamp) > bootstrapAcceptanceWindow || proof.Timestamp.After(now.Add(time.Minute)) {
		return ErrBootstrapProofExpired
	}
	if !verifier.Verify(bootstrapPreimage(proof.NodeID, proof.Timestamp), proof.Signature, pub) {
		return ErrBootstrapProofBadSignature
	}
	return nil
}
