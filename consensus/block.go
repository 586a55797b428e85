// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"errors"
	"time"

	"github.com/zhtp-network/zhtp/cryptoutil"
	"github.com/zhtp-network/zhtp/engine/bft"
	"github.com/zhtp-network/zhtp/zhtpid"
)

var (
	// ErrDoubleSpendWithinBlock is returned when a proposed block orders
	// two transactions spending the same account at the same nonce (spec
	// §4.1.1 tx-ordering validator).
	ErrDoubleSpendWithinBlock = errors.New("consensus: double spend detected within block")
	// ErrTimestampOutOfRange rejects a proposal whose timestamp drifts
	// more than TimestampTolerance from local time.
	ErrTimestampOutOfRange = errors.New("consensus: proposal timestamp outside acceptance window")
	// ErrMissingTransaction is returned when a proposal references a tx
	// hash this node never saw in its mempool.
	ErrMissingTransaction = errors.New("consensus: proposal references an unknown transaction")
)

// TimestampTolerance bounds how far a proposal's timestamp may drift from
// the validating node's local clock in either direction (spec §4.1
// "timestamp policy ±300s").
const TimestampTolerance = 300 * time.Second

// Block is the proposer's finished, certified unit of chain state: a
// Proposal that reached engine/bft.PhaseCompleted, together with the
// full transaction bodies its BlockData only referenced by hash.
type Block struct {
	Height       uint64
	PreviousHash zhtpid.ID
	ProposerID   zhtpid.NodeID
	Timestamp    time.Time
	Transactions []*Transaction
	MerkleRoot   zhtpid.ID
	Proof        bft.ConsensusProof
}

// ValidateTimestamp enforces TimestampTolerance against now.
func ValidateTimestamp(ts, now time.Time) error {
	delta := ts.Sub(now)
	if delta < 0 {
		delta = -delta
	}
	if delta > TimestampTolerance {
		return ErrTimestampOutOfRange
	}
	return nil
}

// ValidateOrdering rejects a transaction ordering that spends the same
// (From, Nonce) pair twice within one block, the double-spend-within-block
// check spec §4.1.1 requires run before a proposal is accepted into
// PreVote.
func ValidateOrdering(txs []*Transaction) error {
	type key struct {
		from  zhtpid.ID
		nonce uint64
	}
	seen := make(map[key]bool, len(txs))
	for _, tx := range txs {
		k := key{from: tx.From, nonce: tx.Nonce}
		if seen[k] {
			return ErrDoubleSpendWithinBlock
		}
		seen[k] = true
	}
	return nil
}

// merkleRoot computes the Merkle root over a block's ordered transaction
// IDs, reusing cryptoutil's Blake3 tree builder.
func merkleRoot(txs []*Transaction) zhtpid.ID {
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		leaves[i] = tx.ID.Bytes()
	}
	return cryptoutil.MerkleRoot(leaves)
}

// BuildProposal runs the proposer side of the proposal-to-block
// translation (spec §4.1 steps 1-3): it selects transactions from the
// mempool, validates their ordering, concatenates their hashes into
// BlockData, and signs the result.
func BuildProposal(signer Signer, self zhtpid.NodeID, height uint64, previousHash zhtpid.ID, mp *Mempool, maxTxs int, proof bft.ConsensusProof, now time.Time) (*bft.Proposal, []*Transaction, error) {
	txs := mp.Take(maxTxs)
	if err := ValidateOrdering(txs); err != nil {
		return nil, nil, err
	}

	blockData := make([]byte, 0, len(txs)*zhtpid.Len)
	for _, tx := range txs {
		blockData = append(blockData, tx.ID.Bytes()...)
	}

	p := &bft.Proposal{
		Height:         height,
		Proposer:       self,
		PreviousHash:   previousHash,
		BlockData:      blockData,
		Timestamp:      now,
		ConsensusProof: proof,
	}
	p.ID = cryptoutil.Hash(previousHash.Bytes(), blockData)

	preimage := make([]byte, 0, zhtpid.Len*2+len(blockData))
	preimage = append(preimage, previousHash.Bytes()...)
	preimage = append(preimage, blockData...)
	sig, err := signer.Sign(preimage)
	if err != nil {
		return nil, nil, err
	}
	p.Signature = sig
	return p, txs, nil
}

// AssembleBlock runs the validator side of the proposal-to-block
// translation (spec §4.1 steps 4-6): given a Proposal that has already
// cleared engine/bft's signature check and reached PhaseCompleted, it
// resolves every referenced transaction hash against mp, re-validates
// ordering and the timestamp window, and returns the finished Block.
func AssembleBlock(p *bft.Proposal, mp *Mempool, now time.Time) (*Block, error) {
	if err := ValidateTimestamp(p.Timestamp, now); err != nil {
		return nil, err
	}
	hashes, err := p.TxHashes()
	if err != nil {
		return nil, err
	}
	txs := make([]*Transaction, len(hashes))
	for i, h := range hashes {
		tx, ok := mp.Get(h)
		if !ok {
			return nil, ErrMissingTransaction
		}
		txs[i] = tx
	}
	if err := ValidateOrdering(txs); err != nil {
		return nil, err
	}
	return &Block{
		Height:       p.Height,
		PreviousHash: p.PreviousHash,
		ProposerID:   p.Proposer,
		Timestamp:    p.Timestamp,
		Transactions: txs,
		MerkleRoot:   merkleRoot(txs),
		Proof:        p.ConsensusProof,
	}, nil
}

// Signer is the narrow capability BuildProposal needs to sign the
// proposal it assembles, satisfied by ringtail.KeyPair.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
	PublicKeyBytes() []byte
}
