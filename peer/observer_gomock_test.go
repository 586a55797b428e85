// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package peer

import (
	"testing"
	"time"

	gomock "go.uber.org/mock/gomock"

	"github.com/zhtp-network/zhtp/peer/observermock"
)

func TestUpsertNotifiesMockObserverExactlyOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	obs := observermock.NewMockObserver(ctrl)

	r, err := NewRegistry(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	r.RegisterObserver(obs)

	e := newTestEntry(7)
	obs.EXPECT().OnPeerUpserted(e).Times(1)

	if err := r.Upsert(e, time.Now()); err != nil {
		t.Fatal(err)
	}
}

func TestRemoveNotifiesMockObserver(t *testing.T) {
	ctrl := gomock.NewController(t)
	obs := observermock.NewMockObserver(ctrl)

	r, err := NewRegistry(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	e := newTestEntry(8)
	now := time.Now()
	if err := r.Upsert(e, now); err != nil {
		t.Fatal(err)
	}

	r.RegisterObserver(obs)
	obs.EXPECT().OnPeerRemoved(gomock.Any()).Times(1)

	if err := r.Remove(e.UnifiedPeerID, now); err != nil {
		t.Fatal(err)
	}
}
