// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"errors"
	"sync"

	"github.com/zhtp-network/zhtp/zhtpid"
)

var (
	// ErrInsufficientTreasury is returned when a distribution or funding
	// request exceeds the treasury's current balance.
	ErrInsufficientTreasury = errors.New("consensus: treasury balance insufficient for request")
	// ErrProposalNotFound is returned by CastGovernanceVote for an unknown
	// proposal ID.
	ErrProposalNotFound = errors.New("consensus: governance proposal not found")
)

// Treasury tracks the network's reward pool, disbursed as UBI (per-round,
// per-citizen) and welfare funding (DAO-approved, targeted grants).
// Funded by block rewards: Coordinator.FinalizeBlock calls Credit with
// BlockReward once a block commits.
type Treasury struct {
	mu      sync.Mutex
	balance uint64
}

// NewTreasury creates an empty treasury.
func NewTreasury() *Treasury { return &Treasury{} }

// Credit adds amount to the treasury balance, called once per committed
// block with that block's reward.
func (t *Treasury) Credit(amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balance += amount
}

// Balance returns the treasury's current balance.
func (t *Treasury) Balance() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance
}

func (t *Treasury) debit(amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount > t.balance {
		return ErrInsufficientTreasury
	}
	t.balance -= amount
	return nil
}

// UBIDistribution is a single round's universal-basic-income payout,
// split evenly across recipients.
type UBIDistribution struct {
	Round      uint64
	PerCitizen uint64
	Recipients []zhtpid.ID
}

// CreateUBIDistribution debits round's total payout from the treasury and
// returns the per-recipient distribution (spec §4.1
// create_ubi_distribution), for the caller to broadcast as
// mesh.UbiDistribution envelopes.
func (t *Treasury) CreateUBIDistribution(round uint64, recipients []zhtpid.ID, perCitizen uint64) (*UBIDistribution, error) {
	total := perCitizen * uint64(len(recipients))
	if err := t.debit(total); err != nil {
		return nil, err
	}
	return &UBIDistribution{Round: round, PerCitizen: perCitizen, Recipients: recipients}, nil
}

// WelfareFunding is a DAO-approved grant toward a specific recipient
// (e.g. a community mesh relay operator, a storage-capacity subsidy)
// rather than an evenly split UBI round.
type WelfareFunding struct {
	ProposalID GovernanceProposalID
	Recipient  zhtpid.ID
	Amount     uint64
}

// CreateWelfareFunding debits amount from the treasury for a passed
// governance proposal (spec §4.1 create_welfare_funding).
func (t *Treasury) CreateWelfareFunding(proposalID GovernanceProposalID, recipient zhtpid.ID, amount uint64) (*WelfareFunding, error) {
	if err := t.debit(amount); err != nil {
		return nil, err
	}
	return &WelfareFunding{ProposalID: proposalID, Recipient: recipient, Amount: amount}, nil
}

// GovernanceProposalID names a DAO governance proposal.
type GovernanceProposalID zhtpid.ID

// GovernanceKind distinguishes a funding request from a parameter change.
type GovernanceKind uint8

const (
	GovernanceKindFunding GovernanceKind = iota
	GovernanceKindParameterChange
)

// GovernanceProposal is a single DAO vote in progress, tallied by stake
// rather than by one-vote-per-validator, mirroring how BFT quorum is
// already stake-weighted (validators.Set.QuorumSize/TotalStake).
type GovernanceProposal struct {
	ID        GovernanceProposalID
	Kind      GovernanceKind
	Recipient zhtpid.ID
	Amount    uint64
	votesFor  uint64
	votesAgn  uint64
	voted     map[zhtpid.NodeID]bool
	Closed    bool
	Passed    bool
}

// Governance runs DAO proposals to completion against a stake-weighted
// quorum, supplementing the UBI/welfare treasury flows with a mechanism
// to decide them (a feature present in original_source/ but dropped from
// the distilled spec's consensus-only framing).
type Governance struct {
	mu        sync.Mutex
	proposals map[GovernanceProposalID]*GovernanceProposal
}

// NewGovernance creates an empty governance tracker.
func NewGovernance() *Governance {
	return &Governance{proposals: make(map[GovernanceProposalID]*GovernanceProposal)}
}

// Propose opens a new governance proposal.
func (g *Governance) Propose(id GovernanceProposalID, kind GovernanceKind, recipient zhtpid.ID, amount uint64) *GovernanceProposal {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := &GovernanceProposal{ID: id, Kind: kind, Recipient: recipient, Amount: amount, voted: make(map[zhtpid.NodeID]bool)}
	g.proposals[id] = p
	return p
}

// CastGovernanceVote records voter's stake-weighted vote on a proposal.
// The proposal closes once the stake in favor reaches quorum or once the
// stake voted either way reaches totalStake; it passes iff the stake in
// favor reached quorum. A repeat vote or a vote on a closed proposal is
// ignored.
func (g *Governance) CastGovernanceVote(id GovernanceProposalID, voter zhtpid.NodeID, stake uint64, inFavor bool, quorum, totalStake uint64) (*GovernanceProposal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.proposals[id]
	if !ok {
		return nil, ErrProposalNotFound
	}
	if p.Closed || p.voted[voter] {
		return p, nil
	}
	p.voted[voter] = true
	if inFavor {
		p.votesFor += stake
	} else {
		p.votesAgn += stake
	}
	if p.votesFor+p.votesAgn >= totalStake || p.votesFor >= quorum {
		p.Closed = true
		p.Passed = p.votesFor >= quorum
	}
	return p, nil
}
