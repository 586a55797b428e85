// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package observermock provides a gomock-based double for peer.Observer,
// for tests that need to assert exact call sequences and argument
// matchers rather than the package's hand-rolled counting fakes.
package observermock

import (
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"

	"github.com/zhtp-network/zhtp/peer"
)

// MockObserver is a mock of peer.Observer.
type MockObserver struct {
	ctrl     *gomock.Controller
	recorder *MockObserverMockRecorder
}

// MockObserverMockRecorder records expected calls on a MockObserver.
type MockObserverMockRecorder struct {
	mock *MockObserver
}

// NewMockObserver creates a mock observer bound to ctrl.
func NewMockObserver(ctrl *gomock.Controller) *MockObserver {
	mock := &MockObserver{ctrl: ctrl}
	mock.recorder = &MockObserverMockRecorder{mock}
	return mock
}

// EXPECT returns the recorder used to set up expected calls.
func (m *MockObserver) EXPECT() *MockObserverMockRecorder {
	return m.recorder
}

// OnPeerUpserted implements peer.Observer.
func (m *MockObserver) OnPeerUpserted(entry *peer.PeerEntry) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "OnPeerUpserted", entry)
}

// OnPeerUpserted records an expectation for a call to OnPeerUpserted.
func (mr *MockObserverMockRecorder) OnPeerUpserted(entry interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "OnPeerUpserted", reflect.TypeOf((*MockObserver)(nil).OnPeerUpserted), entry)
}

// OnPeerRemoved implements peer.Observer.
func (m *MockObserver) OnPeerRemoved(entry *peer.PeerEntry) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "OnPeerRemoved", entry)
}

// OnPeerRemoved records an expectation for a call to OnPeerRemoved.
func (mr *MockObserverMockRecorder) OnPeerRemoved(entry interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "OnPeerRemoved", reflect.TypeOf((*MockObserver)(nil).OnPeerRemoved), entry)
}

var _ peer.Observer = (*MockObserver)(nil)
