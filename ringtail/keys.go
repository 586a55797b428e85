// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ringtail

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhtp-network/zhtp/cryptoutil"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// KeyFilename is the default filename for a node's private key.
const KeyFilename = "rt.key"

var ErrKeyNotFound = errors.New("ringtail: key not found")

// KeyPair is a post-quantum signing keypair attached to one device NodeID.
type KeyPair struct {
	PrivateKey []byte
	PublicKey  []byte
	NodeID     zhtpid.NodeID
}

// GenerateKeyPair generates a new random keypair.
func GenerateKeyPair() (*KeyPair, error) {
	seed := make([]byte, 32)
	if _, err := readRandom(seed); err != nil {
		return nil, err
	}
	return KeyPairFromSeed(seed)
}

// KeyPairFromSeed deterministically derives a keypair from seed, used by
// identity device-key derivation (spec P1 determinism).
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	scheme := NewScheme()
	priv, pub, err := scheme.KeyGen(seed)
	if err != nil {
		return nil, fmt.Errorf("ringtail: keygen: %w", err)
	}
	nodeID, err := zhtpid.NodeIDFromBytes(cryptoutil.HashBytes(pub))
	if err != nil {
		return nil, err
	}
	return &KeyPair{PrivateKey: priv, PublicKey: pub, NodeID: nodeID}, nil
}

// Sign signs msg with this keypair's private key, satisfying
// cryptoutil.Signer.
func (kp *KeyPair) Sign(msg []byte) ([]byte, error) {
	return NewScheme().Sign(kp.PrivateKey, msg)
}

// PublicKeyBytes satisfies cryptoutil.Signer.
func (kp *KeyPair) PublicKeyBytes() []byte { return kp.PublicKey }

// verifier implements cryptoutil.Verifier against the active scheme.
type verifier struct{ scheme Scheme }

// NewVerifier returns a cryptoutil.Verifier backed by the active scheme.
func NewVerifier() cryptoutil.Verifier { return verifier{scheme: NewScheme()} }

func (v verifier) Verify(msg, sig, publicKey []byte) bool {
	return v.scheme.Verify(publicKey, msg, sig)
}

// SaveKeyPair persists a keypair under dir. Per spec §6, private key
// material MUST be created owner-read/write-only (0600); the public key
// may be world-readable.
func SaveKeyPair(kp *KeyPair, dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("ringtail: create key dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, KeyFilename), kp.PrivateKey, 0o600); err != nil {
		return fmt.Errorf("ringtail: save private key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, KeyFilename+".pub"), kp.PublicKey, 0o644); err != nil {
		return fmt.Errorf("ringtail: save public key: %w", err)
	}
	return nil
}

// LoadKeyPair loads a keypair from dir. Corruption (wrong size) is a fatal
// error per spec §7/§6 ("the keystore is never allowed to silently
// repair"); callers must not fall back to regeneration on a malformed key.
func LoadKeyPair(dir string) (*KeyPair, error) {
	priv, err := os.ReadFile(filepath.Join(dir, KeyFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("ringtail: load private key: %w", err)
	}
	if len(priv) != PrivateKeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes, want %d (keystore corrupted)", ErrInvalidKeySize, len(priv), PrivateKeySize)
	}
	pub, err := os.ReadFile(filepath.Join(dir, KeyFilename+".pub"))
	if err != nil {
		return nil, fmt.Errorf("ringtail: load public key: %w", err)
	}
	if len(pub) != PublicKeySize {
		return nil, fmt.Errorf("%w: public key is %d bytes, want %d (keystore corrupted)", ErrInvalidKeySize, len(pub), PublicKeySize)
	}
	nodeID, err := zhtpid.NodeIDFromBytes(cryptoutil.HashBytes(pub))
	if err != nil {
		return nil, err
	}
	return &KeyPair{PrivateKey: priv, PublicKey: pub, NodeID: nodeID}, nil
}

// GetOrCreateKeyPair loads an existing keypair from dir, generating and
// persisting a new one only if none exists yet.
func GetOrCreateKeyPair(dir string) (*KeyPair, error) {
	kp, err := LoadKeyPair(dir)
	switch {
	case err == nil:
		return kp, nil
	case errors.Is(err, ErrKeyNotFound):
		kp, err = GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		if err := SaveKeyPair(kp, dir); err != nil {
			return nil, err
		}
		return kp, nil
	default:
		return nil, err
	}
}

// KeyManager tracks keypairs for multiple local devices.
type KeyManager struct {
	keys map[zhtpid.NodeID]*KeyPair
}

// NewKeyManager creates an empty key manager.
func NewKeyManager() *KeyManager {
	return &KeyManager{keys: make(map[zhtpid.NodeID]*KeyPair)}
}

// AddKey registers a keypair under its NodeID.
func (km *KeyManager) AddKey(kp *KeyPair) { km.keys[kp.NodeID] = kp }

// GetKey retrieves a keypair by NodeID.
func (km *KeyManager) GetKey(nodeID zhtpid.NodeID) (*KeyPair, bool) {
	kp, ok := km.keys[nodeID]
	return kp, ok
}

// ListNodeIDs returns all NodeIDs with a registered keypair.
func (km *KeyManager) ListNodeIDs() []zhtpid.NodeID {
	out := make([]zhtpid.NodeID, 0, len(km.keys))
	for id := range km.keys {
		out = append(out, id)
	}
	return out
}

// ExportPublicKey renders a public key as hex.
func ExportPublicKey(pub []byte) string { return hex.EncodeToString(pub) }

// ImportPublicKey parses a hex-encoded public key.
func ImportPublicKey(s string) ([]byte, error) {
	pub, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("ringtail: invalid hex key: %w", err)
	}
	if len(pub) != PublicKeySize {
		return nil, ErrInvalidKeySize
	}
	return pub, nil
}
