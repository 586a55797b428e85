// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mesh

import (
	"errors"
	"time"

	"github.com/zhtp-network/zhtp/internal/zhtperr"
	"github.com/zhtp-network/zhtp/peer"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// MaxGenericPayloadSize bounds a single DhtGenericPayload's Payload
// field, rejecting anything larger before it is forwarded further into
// the overlay.
const MaxGenericPayloadSize = 64 * 1024

var (
	ErrGenericPayloadTooLarge = errors.New("mesh: dht generic payload exceeds size limit")
	ErrUnknownSender          = errors.New("mesh: dht generic payload sender is not in the peer registry")
	ErrBadSignature           = errors.New("mesh: dht generic payload signature verification failed")
)

// Verifier checks a signature against a public key, satisfied by
// ringtail.NewVerifier().
type Verifier interface {
	Verify(msg, sig, publicKey []byte) bool
}

// HandleGenericPayload runs the four-step validation spec §4.3 requires
// before a DhtGenericPayload is accepted and forwarded: (1) enforce the
// size limit, (2) resolve the sender's public key from the peer registry,
// (3) verify the signature over key_id‖payload, (4) rate-limit the
// sender. Returns nil only once every step has passed, at which point the
// caller should deliver/forward the payload.
func HandleGenericPayload(registry *peer.Registry, verifier Verifier, limiter *peer.RateLimiter, from zhtpid.NodeID, msg *DhtGenericPayload, now time.Time) error {
	if len(msg.Payload) > MaxGenericPayloadSize {
		return zhtperr.New(zhtperr.InvalidInput, "mesh", ErrGenericPayloadTooLarge)
	}

	sender, err := registry.FindByNodeID(from)
	if err != nil {
		return zhtperr.New(zhtperr.AuthFailure, "mesh", ErrUnknownSender)
	}

	preimage := make([]byte, 0, len(msg.KeyID)+len(msg.Payload))
	preimage = append(preimage, msg.KeyID...)
	preimage = append(preimage, msg.Payload...)
	if !verifier.Verify(preimage, msg.Signature, sender.PublicKey) {
		return zhtperr.New(zhtperr.AuthFailure, "mesh", ErrBadSignature)
	}

	if !limiter.Allow(from, now) {
		return zhtperr.New(zhtperr.RateLimited, "mesh", peer.ErrRateLimited)
	}
	return nil
}

// ubiReplayWindow tracks, per recipient, the last UBI distribution round
// that was accepted, rejecting any round at or below it (spec §4.3 "UBI
// replay resistance via per-recipient last_round").
type ubiReplayWindow struct {
	lastRound map[zhtpid.ID]uint64
}

func newUBIReplayWindow() *ubiReplayWindow {
	return &ubiReplayWindow{lastRound: make(map[zhtpid.ID]uint64)}
}

var ErrUBIReplay = errors.New("mesh: ubi distribution round already processed for this recipient")

// Accept records dist's round for its recipient if it is newer than the
// last accepted round, returning ErrUBIReplay otherwise.
func (w *ubiReplayWindow) Accept(dist *UbiDistribution) error {
	last, ok := w.lastRound[dist.Recipient]
	if ok && dist.Round <= last {
		return ErrUBIReplay
	}
	w.lastRound[dist.Recipient] = dist.Round
	return nil
}
