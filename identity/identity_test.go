// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func randomSeed(t *testing.T, b byte) []byte {
	t.Helper()
	seed := make([]byte, SeedLen)
	for i := range seed {
		seed[i] = b
	}
	return seed
}

func TestNewRejectsBadSeedLength(t *testing.T) {
	_, err := New([]byte("too short"))
	require.ErrorIs(t, err, ErrInvalidSeedLength)
}

func TestIdentityDerivationIsDeterministic(t *testing.T) {
	seed := randomSeed(t, 0x42)
	a, err := New(seed)
	require.NoError(t, err)
	b, err := New(seed)
	require.NoError(t, err)

	require.Equal(t, a.DID, b.DID)
	require.Equal(t, a.ID, b.ID)
	require.NoError(t, ValidateDID(a.DID))

	aSecret, err := a.ZKIdentitySecret()
	require.NoError(t, err)
	bSecret, err := b.ZKIdentitySecret()
	require.NoError(t, err)
	require.Equal(t, aSecret, bSecret)
}

func TestDistinctSeedsDivergeEverywhere(t *testing.T) {
	a, err := New(randomSeed(t, 0x01))
	require.NoError(t, err)
	b, err := New(randomSeed(t, 0x02))
	require.NoError(t, err)
	require.NotEqual(t, a.DID, b.DID)
	require.NotEqual(t, a.ID, b.ID)
}

func TestDeviceNodeIDIsStablePerDeviceName(t *testing.T) {
	id, err := New(randomSeed(t, 0x07))
	require.NoError(t, err)

	laptop1, err := id.DeviceNodeID("laptop")
	require.NoError(t, err)
	laptop2, err := id.DeviceNodeID("laptop")
	require.NoError(t, err)
	require.Equal(t, laptop1, laptop2)

	phone, err := id.DeviceNodeID("phone")
	require.NoError(t, err)
	require.NotEqual(t, laptop1, phone)
}

func TestRegisterDeviceRequiresDerivedSecrets(t *testing.T) {
	seed := randomSeed(t, 0x09)
	id, err := New(seed)
	require.NoError(t, err)

	kp1, err := id.RegisterDevice("laptop")
	require.NoError(t, err)

	id.ZeroSecrets()
	require.False(t, id.IsSecretsDerived())

	_, err = id.RegisterDevice("phone")
	require.ErrorIs(t, err, ErrSecretsNotDerived)

	require.NoError(t, id.RederiveSecrets(seed))
	require.True(t, id.IsSecretsDerived())

	kp1Again, err := id.RegisterDevice("laptop")
	require.NoError(t, err)
	require.Equal(t, kp1.PrivateKey, kp1Again.PrivateKey)
}

func TestRederiveSecretsRejectsWrongSeed(t *testing.T) {
	id, err := New(randomSeed(t, 0x10))
	require.NoError(t, err)
	id.ZeroSecrets()

	err = id.RederiveSecrets(randomSeed(t, 0x11))
	require.ErrorIs(t, err, ErrSeedMismatch)
}

func TestMarshalRoundTripDropsSecrets(t *testing.T) {
	seed := randomSeed(t, 0x33)
	id, err := New(seed)
	require.NoError(t, err)
	id.SetCitizen(true)
	id.SetTrustScore(0.75)

	data, err := id.Marshal()
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, id.DID, restored.DID)
	require.True(t, restored.Citizen)
	require.False(t, restored.IsSecretsDerived())

	_, err = restored.ZKIdentitySecret()
	require.ErrorIs(t, err, ErrSecretsNotDerived)

	require.NoError(t, restored.RederiveSecrets(seed))
	require.True(t, restored.IsSecretsDerived())
}
