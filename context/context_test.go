// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package context

import (
	gocontext "context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhtp-network/zhtp/zhtpid"
)

type mockValidatorState struct {
	height uint64
	set    map[zhtpid.NodeID]uint64
}

func (m *mockValidatorState) GetValidatorSet(gocontext.Context, uint64) (map[zhtpid.NodeID]uint64, error) {
	return m.set, nil
}

func (m *mockValidatorState) GetCurrentHeight(gocontext.Context) (uint64, error) {
	return m.height, nil
}

func TestWithContextRoundTrip(t *testing.T) {
	require := require.New(t)

	nodeID, err := zhtpid.NodeIDFromBytes(make([]byte, zhtpid.Len))
	require.NoError(err)

	cc := &Context{
		NetworkID: 1919,
		NodeID:    nodeID,
		StartTime: time.Now(),
	}

	ctx := WithContext(gocontext.Background(), cc)

	require.Equal(uint32(1919), GetNetworkID(ctx))
	require.Equal(nodeID, GetNodeID(ctx))
	require.Nil(GetValidatorState(ctx))
}

func TestFromContextMissing(t *testing.T) {
	require := require.New(t)

	ctx := gocontext.Background()
	require.Nil(FromContext(ctx))
	require.Equal(uint32(0), GetNetworkID(ctx))
	require.Equal(zhtpid.EmptyNodeID, GetNodeID(ctx))
}

func TestGetValidatorState(t *testing.T) {
	require := require.New(t)

	vs := &mockValidatorState{height: 42, set: map[zhtpid.NodeID]uint64{}}
	cc := &Context{ValidatorState: vs}
	ctx := WithContext(gocontext.Background(), cc)

	got := GetValidatorState(ctx)
	require.NotNil(got)
	height, err := got.GetCurrentHeight(ctx)
	require.NoError(err)
	require.Equal(uint64(42), height)
}
