// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bft implements the Consensus Coordinator's per-height event
// state machine (spec §4.1): Propose, PreVote, PreCommit, Commit,
// Completed, with a NIL vote cast by any validator whose local timeout
// elapses before the next phase is reached. The teacher's wrapper.go
// around github.com/luxfi/bft's Simplex epoch remains the chain-level
// driver (round advancement, epoch bootstrapping); RoundState here is the
// single-round ballot this repo needed that Simplex's internal state
// machine does not expose at the granularity the coordinator models.
package bft

import (
	"errors"
	"sync"
	"time"

	"github.com/zhtp-network/zhtp/cryptoutil"
	"github.com/zhtp-network/zhtp/validators"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// Phase is one step of a single round's ballot.
type Phase uint8

const (
	PhaseProposed Phase = iota
	PhasePreVoted
	PhasePreCommitted
	PhaseCommitted
	PhaseCompleted
)

var (
	ErrUnalignedBlockData = errors.New("bft: block data is not 32-byte aligned")
	ErrNoProposal         = errors.New("bft: no proposal recorded for this round")
	ErrNotValidator       = errors.New("bft: voter is not a registered validator")
	ErrPhaseMismatch      = errors.New("bft: vote phase does not match current round phase")
	ErrRoundComplete      = errors.New("bft: round already completed")
)

// Signer is the narrow capability RoundState needs to cast its own votes;
// ringtail.KeyPair satisfies it.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
	PublicKeyBytes() []byte
}

// RoundState drives one height's ballot to completion or to a NIL
// timeout, tallying PreVote/PreCommit/Commit votes against the active
// validator set's quorum size (spec §4.1 steps 3-6).
type RoundState struct {
	mu sync.Mutex

	height     uint64
	round      uint64
	validators validators.Set
	signer     Signer
	self       zhtpid.NodeID
	timeout    time.Duration

	phase     Phase
	proposal  *Proposal
	deadline  time.Time
	preVotes  map[zhtpid.NodeID]Vote
	preCommit map[zhtpid.NodeID]Vote
	commits   map[zhtpid.NodeID]Vote
}

// NewRoundState starts a fresh ballot for height/round. The deadline is
// set to now+timeout here and reset to now+timeout when SetProposal
// records a proposal; after that IsExpired reports true and the driver
// should cast/broadcast a NIL vote. Votes that advance the phase do not
// reset the deadline, so PreVote, PreCommit and Commit share the one
// timeout that starts at the proposal.
func NewRoundState(height, round uint64, self zhtpid.NodeID, signer Signer, vs validators.Set, timeout time.Duration, now time.Time) *RoundState {
	return &RoundState{
		height:     height,
		round:      round,
		validators: vs,
		signer:     signer,
		self:       self,
		timeout:    timeout,
		phase:      PhaseProposed,
		deadline:   now.Add(timeout),
		preVotes:   make(map[zhtpid.NodeID]Vote),
		preCommit:  make(map[zhtpid.NodeID]Vote),
		commits:    make(map[zhtpid.NodeID]Vote),
	}
}

// Phase returns the round's current phase.
func (r *RoundState) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// IsExpired reports whether now is past the round's deadline,
// meaning the driver should advance with a NIL vote rather than wait
// further for quorum.
func (r *RoundState) IsExpired(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return now.After(r.deadline)
}

// SetProposal records the round's candidate block, entering PreVote once
// the proposer's signature verifies against the validator's public key.
func (r *RoundState) SetProposal(p *Proposal, now time.Time) error {
	pub, ok := r.validators.PublicKey(p.Proposer)
	if !ok {
		return ErrNotValidator
	}
	digest := proposalSigningPreimage(p)
	if !verifySignature(digest, p.Signature, pub) {
		return ErrInvalidSignature
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proposal = p
	r.phase = PhasePreVoted
	r.deadline = now.Add(r.timeout)
	return nil
}

// CastPreVote signs and records this node's own PreVote for the current
// proposal (or NIL, if proposal is nil because the phase expired).
func (r *RoundState) CastPreVote(now time.Time) (Vote, error) {
	return r.castOwn(VotePreVote, now)
}

// CastPreCommit signs and records this node's own PreCommit, only valid
// once PreVote quorum has been reached.
func (r *RoundState) CastPreCommit(now time.Time) (Vote, error) {
	return r.castOwn(VotePreCommit, now)
}

// CastCommit signs and records this node's own Commit, only valid once
// PreCommit quorum has been reached.
func (r *RoundState) CastCommit(now time.Time) (Vote, error) {
	return r.castOwn(VoteCommit, now)
}

func (r *RoundState) castOwn(t VoteType, now time.Time) (Vote, error) {
	r.mu.Lock()
	proposalID := zhtpid.Empty
	if r.proposal != nil {
		proposalID = r.proposal.ID
	}
	height, round := r.height, r.round
	r.mu.Unlock()

	v := Vote{
		Voter:      r.self,
		ProposalID: proposalID,
		Type:       t,
		Height:     height,
		Round:      round,
		Timestamp:  now,
	}
	sig, err := r.signer.Sign(v.signingPreimage())
	if err != nil {
		return Vote{}, err
	}
	v.Signature = sig
	if _, err := r.AddVote(v); err != nil {
		return Vote{}, err
	}
	return v, nil
}

// AddVote records a peer's vote (or our own, after CastX signs it),
// returning true if this vote was the one that crossed quorum for its
// phase.
func (r *RoundState) AddVote(v Vote) (quorumReached bool, err error) {
	pub, ok := r.validators.PublicKey(v.Voter)
	if !ok {
		return false, ErrNotValidator
	}
	if !verifySignature(v.signingPreimage(), v.Signature, pub) {
		return false, ErrInvalidSignature
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	quorum := r.validators.QuorumSize()
	switch v.Type {
	case VotePreVote:
		r.preVotes[v.Voter] = v
		if len(r.preVotes) >= quorum && r.phase == PhasePreVoted {
			r.phase = PhasePreCommitted
			return true, nil
		}
	case VotePreCommit:
		r.preCommit[v.Voter] = v
		if len(r.preCommit) >= quorum && r.phase == PhasePreCommitted {
			r.phase = PhaseCommitted
			return true, nil
		}
	case VoteCommit:
		r.commits[v.Voter] = v
		if len(r.commits) >= quorum && r.phase == PhaseCommitted {
			r.phase = PhaseCompleted
			return true, nil
		}
	}
	return false, nil
}

// Proposal returns the round's candidate block, or nil if none was set
// (e.g. the round timed out before a proposal arrived).
func (r *RoundState) Proposal() *Proposal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proposal
}

// VoteCounts returns the number of distinct PreVote/PreCommit/Commit
// votes collected so far, for observability and tests.
func (r *RoundState) VoteCounts() (preVotes, preCommits, commits int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.preVotes), len(r.preCommit), len(r.commits)
}

func proposalSigningPreimage(p *Proposal) []byte {
	buf := make([]byte, 0, zhtpid.Len*2+len(p.BlockData)+8)
	buf = append(buf, p.PreviousHash.Bytes()...)
	buf = append(buf, p.BlockData...)
	return buf
}

func verifySignature(msg, sig, pub []byte) bool {
	return len(sig) > 0 && len(pub) > 0 && signatureVerifier.Verify(msg, sig, pub)
}

// signatureVerifier is assigned by the consensus package wiring
// (bft.SetVerifier(ringtail.NewVerifier())) so RoundState stays free of a
// direct ringtail import, avoiding a cycle with ringtail's own
// certificate/validators usage.
var signatureVerifier cryptoutil.Verifier = noopVerifier{}

// SetVerifier installs the concrete signature verifier RoundState uses to
// check proposal and vote signatures.
func SetVerifier(v cryptoutil.Verifier) {
	signatureVerifier = v
}

type noopVerifier struct{}

func (noopVerifier) Verify(msg, sig, publicKey []byte) bool { return false }

// ErrInvalidSignature mirrors ringtail's sentinel so callers can compare
// without importing ringtail from this package.
var ErrInvalidSignature = errors.New("bft: invalid signature")
