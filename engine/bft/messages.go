// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bft

import (
	"time"

	"github.com/zhtp-network/zhtp/zhtpid"
)

// VoteType enumerates the votes cast during one round (spec §3,
// ConsensusProposal/Votes).
type VoteType uint8

const (
	VotePreVote VoteType = iota
	VotePreCommit
	VoteCommit
	VoteAgainst
)

// String returns the vote type's lowercase name.
func (v VoteType) String() string {
	switch v {
	case VotePreVote:
		return "prevote"
	case VotePreCommit:
		return "precommit"
	case VoteCommit:
		return "commit"
	case VoteAgainst:
		return "against"
	default:
		return "unknown"
	}
}

// ProofType identifies which consensus proof accompanies a proposal.
type ProofType uint8

const (
	ProofTypeStake ProofType = iota
	ProofTypeStorage
	ProofTypeWork
	ProofTypeZKDID
)

// ConsensusProof carries the proposer's eligibility evidence for a given
// height; exactly which sub-proof is populated depends on Type.
type ConsensusProof struct {
	Type      ProofType
	Stake     uint64
	Storage   uint64
	Work      []byte
	ZKDID     []byte
	Timestamp time.Time
}

// Proposal is a candidate block for height, carrying the concatenated
// 32-byte-aligned transaction hash digest described in spec §4.1 step 2.
type Proposal struct {
	ID             zhtpid.ID
	Height         uint64
	Proposer       zhtpid.NodeID
	PreviousHash   zhtpid.ID
	BlockData      []byte // concatenation of 32-byte tx hashes
	Timestamp      time.Time
	Signature      []byte
	ConsensusProof ConsensusProof
}

// TxHashes splits BlockData into its constituent 32-byte transaction
// hashes. Returns an error if the length is not 32-byte aligned (spec
// §4.1 step 2).
func (p *Proposal) TxHashes() ([]zhtpid.ID, error) {
	if len(p.BlockData)%zhtpid.Len != 0 {
		return nil, ErrUnalignedBlockData
	}
	n := len(p.BlockData) / zhtpid.Len
	out := make([]zhtpid.ID, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], p.BlockData[i*zhtpid.Len:(i+1)*zhtpid.Len])
	}
	return out, nil
}

// Vote is cast by a validator for a proposal during a round.
type Vote struct {
	ID         zhtpid.ID
	Voter      zhtpid.NodeID
	ProposalID zhtpid.ID
	Type       VoteType
	Height     uint64
	Round      uint64
	Timestamp  time.Time
	Signature  []byte
}

// signingPreimage returns the bytes a Vote's Signature is computed over.
func (v *Vote) signingPreimage() []byte {
	buf := make([]byte, 0, zhtpid.Len+1+8+8)
	buf = append(buf, v.ProposalID.Bytes()...)
	buf = append(buf, byte(v.Type))
	var tmp [8]byte
	putUint64(tmp[:], v.Height)
	buf = append(buf, tmp[:]...)
	putUint64(tmp[:], v.Round)
	buf = append(buf, tmp[:]...)
	return buf
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}
