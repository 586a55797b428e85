// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package identity derives and manages the cryptographic root of trust a
// device-holder uses across every other subsystem: a decentralized
// identifier (DID), per-device signing keys, a zero-knowledge identity
// secret used for UBI-eligibility proofs, and a wallet master seed. Every
// value is derived deterministically from a single 64-byte seed using
// domain-separated Blake3 hashing and XOF, following the same
// domain-separation-string convention the ringtail package uses for its
// own key derivation.
package identity

import (
	"fmt"
	"sync"

	"github.com/zhtp-network/zhtp/cryptoutil"
	"github.com/zhtp-network/zhtp/ringtail"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// SeedLen is the required length of an identity's root-of-trust seed.
const SeedLen = 64

var (
	didDomain    = []byte("ZHTP_DID_V1")
	zkDomain     = []byte("ZHTP_ZK_SECRET_V1")
	walletDomain = []byte("ZHTP_WALLET_SEED_V1")

	// WalletSeedLen is the output length of the wallet master seed's XOF
	// derivation.
	WalletSeedLen = 64

	// ErrInvalidSeedLength is returned when a seed is not exactly SeedLen
	// bytes (invariant I1).
	ErrInvalidSeedLength = fmt.Errorf("identity: seed must be exactly %d bytes", SeedLen)
	// ErrSecretsNotDerived is returned by any accessor that needs the
	// seed-derived secrets before RederiveSecrets has supplied the seed
	// (invariant I3: secrets stay zeroed until explicitly rederived).
	ErrSecretsNotDerived = fmt.Errorf("identity: secrets have not been rederived from seed")
	// ErrSeedMismatch is returned by RederiveSecrets when the supplied
	// seed does not reproduce this identity's DID.
	ErrSeedMismatch = fmt.Errorf("identity: seed does not match this identity's DID")
)

// Identity is a single participant's root of trust. Only its public,
// non-secret fields (those carried by Record) are persisted in the
// clear; the seed-derived secrets are held only in memory and only after
// RederiveSecrets has been called (property P3).
type Identity struct {
	mu sync.RWMutex

	ID             zhtpid.ID // Blake3(DID)
	DID            string
	CredentialHash zhtpid.ID
	DAOMemberID    string
	Reputation     int64
	TrustScore     float64
	Citizen        bool

	devices map[string]*ringtail.KeyPair

	seed             []byte
	zkIdentitySecret []byte
	walletMasterSeed []byte
	secretsDerived   bool
}

// New derives a fresh Identity from seed, a 64-byte root of trust the
// caller is responsible for generating with a cryptographically secure
// random source and persisting (encrypted) in the keystore.
func New(seed []byte) (*Identity, error) {
	if len(seed) != SeedLen {
		return nil, ErrInvalidSeedLength
	}
	id := &Identity{devices: make(map[string]*ringtail.KeyPair)}
	id.deriveFromSeed(seed)
	id.CredentialHash = cryptoutil.Hash([]byte(id.DID), []byte("ZHTP_CREDENTIAL_V1"))
	id.DAOMemberID = cryptoutil.Hash([]byte(id.DID), []byte("ZHTP_DAO_MEMBER_V1")).String()
	return id, nil
}

// deriveFromSeed computes DID/ID and the seed-bound secrets, and marks
// secretsDerived true. Callers must hold no lock (constructor path) or the
// write lock (RederiveSecrets path).
func (id *Identity) deriveFromSeed(seed []byte) {
	didHash := cryptoutil.Hash(seed, didDomain)
	id.DID = "did:zhtp:" + didHash.String()
	id.ID = cryptoutil.Hash([]byte(id.DID))
	id.zkIdentitySecret = cryptoutil.HashBytes(seed, zkDomain)
	id.walletMasterSeed = cryptoutil.XOF(WalletSeedLen, seed, walletDomain)
	id.seed = append([]byte(nil), seed...)
	id.secretsDerived = true
}

// IsSecretsDerived reports whether the seed-derived secrets are currently
// available in memory (property P3).
func (id *Identity) IsSecretsDerived() bool {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.secretsDerived
}

// RederiveSecrets restores the in-memory secrets from seed after
// deserialization zeroed them, rejecting any seed that does not reproduce
// this identity's DID (property P4: rederivation is deterministic and
// seed-bound).
func (id *Identity) RederiveSecrets(seed []byte) error {
	if len(seed) != SeedLen {
		return ErrInvalidSeedLength
	}
	candidateDID := "did:zhtp:" + cryptoutil.Hash(seed, didDomain).String()
	id.mu.Lock()
	defer id.mu.Unlock()
	if candidateDID != id.DID {
		return ErrSeedMismatch
	}
	id.deriveFromSeed(seed)
	return nil
}

// ZeroSecrets wipes the in-memory seed-derived secrets, used before an
// Identity is dropped or swapped out of an active session.
func (id *Identity) ZeroSecrets() {
	id.mu.Lock()
	defer id.mu.Unlock()
	zero(id.seed)
	zero(id.zkIdentitySecret)
	zero(id.walletMasterSeed)
	id.seed, id.zkIdentitySecret, id.walletMasterSeed = nil, nil, nil
	id.secretsDerived = false
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZKIdentitySecret returns the derived zero-knowledge identity secret used
// to construct UBI-eligibility and other identity proofs.
func (id *Identity) ZKIdentitySecret() ([]byte, error) {
	id.mu.RLock()
	defer id.mu.RUnlock()
	if !id.secretsDerived {
		return nil, ErrSecretsNotDerived
	}
	out := make([]byte, len(id.zkIdentitySecret))
	copy(out, id.zkIdentitySecret)
	return out, nil
}

// WalletMasterSeed returns the derived wallet master seed, the root from
// which per-chain wallet keys are further derived.
func (id *Identity) WalletMasterSeed() ([]byte, error) {
	id.mu.RLock()
	defer id.mu.RUnlock()
	if !id.secretsDerived {
		return nil, ErrSecretsNotDerived
	}
	out := make([]byte, len(id.walletMasterSeed))
	copy(out, id.walletMasterSeed)
	return out, nil
}

// DeviceNodeID derives this identity's stable device identifier for
// deviceName: NodeId = Blake3(DID ‖ deviceName). Calling it twice with the
// same deviceName always returns the same NodeID (property P1); distinct
// device names under the same identity always diverge (property P2).
func (id *Identity) DeviceNodeID(deviceName string) (zhtpid.NodeID, error) {
	digest := cryptoutil.Hash([]byte(id.DID), []byte(deviceName))
	return zhtpid.NodeIDFromBytes(digest.Bytes())
}

// RegisterDevice derives and stores a ringtail signing keypair for
// deviceName, seeded from this identity's root seed so the same device
// name always reproduces the same keypair (property P1). Requires
// secrets to have been derived.
func (id *Identity) RegisterDevice(deviceName string) (*ringtail.KeyPair, error) {
	id.mu.Lock()
	defer id.mu.Unlock()
	if !id.secretsDerived {
		return nil, ErrSecretsNotDerived
	}
	deviceSeed := cryptoutil.XOF(32, id.seed, []byte("ZHTP_DEVICE_KEY_V1:"+deviceName))
	kp, err := ringtail.KeyPairFromSeed(deviceSeed)
	if err != nil {
		return nil, err
	}
	id.devices[deviceName] = kp
	return kp, nil
}

// Device returns a previously registered device's keypair.
func (id *Identity) Device(deviceName string) (*ringtail.KeyPair, bool) {
	id.mu.RLock()
	defer id.mu.RUnlock()
	kp, ok := id.devices[deviceName]
	return kp, ok
}

// Devices lists every registered device name.
func (id *Identity) Devices() []string {
	id.mu.RLock()
	defer id.mu.RUnlock()
	out := make([]string, 0, len(id.devices))
	for name := range id.devices {
		out = append(out, name)
	}
	return out
}

// AdjustReputation applies delta to the identity's reputation score,
// clamping to a minimum of zero (spec peer/Byzantine-fault interplay: a
// strike against any of an identity's devices degrades the identity's own
// standing, not just the device's peer-registry tier).
func (id *Identity) AdjustReputation(delta int64) {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.Reputation += delta
	if id.Reputation < 0 {
		id.Reputation = 0
	}
}

// SetTrustScore overwrites the identity's trust score, typically computed
// externally from peer-registry observations and DAO voting history.
func (id *Identity) SetTrustScore(score float64) {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.TrustScore = score
}

// SetCitizen marks this identity as having completed citizenship
// verification, the precondition for UBI and welfare-funding eligibility.
func (id *Identity) SetCitizen(citizen bool) {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.Citizen = citizen
}
