// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package context carries the ambient node identity and dependencies
// (network ID, local NodeID, validator state, keystore, logger) that
// every subsystem needs but none of them should construct for itself.
// Unlike the teacher's per-chain VM context, ZHTP has a single global
// network: the multi-chain fields (X-Chain/C-Chain aliasing, shared
// memory, Warp signing, network-upgrade phases) have no SPEC_FULL
// component to bind to and are dropped (see DESIGN.md).
package context

import (
	"context"
	"sync"
	"time"

	"github.com/zhtp-network/zhtp/zhtpid"
)

// Context carries the dependencies shared across one running node's
// subsystems.
type Context struct {
	// NetworkID is the numeric network identifier (1=mainnet, 1919=testnet).
	NetworkID uint32 `json:"networkID"`
	NodeID    zhtpid.NodeID
	PublicKey []byte `json:"publicKey"`

	StartTime time.Time `json:"startTime"`

	ValidatorState ValidatorState
	Keystore       Keystore
	Log            Logger

	Lock sync.RWMutex
}

// ValidatorState is the minimal validator-lookup surface context exposes
// to subsystems that need it without importing the validators package
// directly (avoids an import cycle with consensus).
type ValidatorState interface {
	GetValidatorSet(ctx context.Context, height uint64) (map[zhtpid.NodeID]uint64, error)
	GetCurrentHeight(ctx context.Context) (uint64, error)
}

// Keystore provides local key management for device identities.
type Keystore interface {
	GetDatabase(username, password string) (interface{}, error)
	NewAccount(username, password string) error
}

// Logger is the structured logging surface context exposes.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
}

type contextKeyType struct{}

var contextKey = contextKeyType{}

// WithContext attaches cc to ctx.
func WithContext(ctx context.Context, cc *Context) context.Context {
	return context.WithValue(ctx, contextKey, cc)
}

// FromContext extracts the Context previously attached with WithContext,
// or nil if none was attached.
func FromContext(ctx context.Context) *Context {
	c, _ := ctx.Value(contextKey).(*Context)
	return c
}

// GetNetworkID returns the numeric network ID carried by ctx, or 0 if none.
func GetNetworkID(ctx context.Context) uint32 {
	if c := FromContext(ctx); c != nil {
		return c.NetworkID
	}
	return 0
}

// GetNodeID returns the local NodeID carried by ctx, or the empty NodeID.
func GetNodeID(ctx context.Context) zhtpid.NodeID {
	if c := FromContext(ctx); c != nil {
		return c.NodeID
	}
	return zhtpid.EmptyNodeID
}

// GetValidatorState returns the ValidatorState carried by ctx, or nil.
func GetValidatorState(ctx context.Context) ValidatorState {
	if c := FromContext(ctx); c != nil {
		return c.ValidatorState
	}
	return nil
}

// GetTimestamp returns the current unix timestamp; kept as a seam so
// tests can observe call sites that need "now" without reaching for
// time.Now() directly.
func GetTimestamp() int64 {
	return time.Now().Unix()
}
