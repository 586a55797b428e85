// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"sync"
	"time"

	"github.com/zhtp-network/zhtp/cryptoutil"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// Transaction is the minimal unit a proposer orders into a block. Its ID
// is the Blake3 hash of its signed fields, matching the 32-byte hash
// digest engine/bft.Proposal.BlockData concatenates.
type Transaction struct {
	ID        zhtpid.ID
	From      zhtpid.ID
	To        zhtpid.ID
	Nonce     uint64
	Amount    uint64
	Data      []byte
	Timestamp time.Time
	Signature []byte
}

func computeTxID(from, to zhtpid.ID, nonce, amount uint64, data []byte) zhtpid.ID {
	var nonceBuf, amountBuf [8]byte
	putUint64(nonceBuf[:], nonce)
	putUint64(amountBuf[:], amount)
	return cryptoutil.Hash(from.Bytes(), to.Bytes(), nonceBuf[:], amountBuf[:], data)
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

// NewTransaction fills in ID from the signed fields.
func NewTransaction(from, to zhtpid.ID, nonce, amount uint64, data []byte, now time.Time, sig []byte) *Transaction {
	return &Transaction{
		ID:        computeTxID(from, to, nonce, amount, data),
		From:      from,
		To:        to,
		Nonce:     nonce,
		Amount:    amount,
		Data:      data,
		Timestamp: now,
		Signature: sig,
	}
}

// Mempool holds transactions awaiting inclusion in a block, the way the
// teacher's bootstrap/common.go queues items awaiting a fetch before
// execution: admission here, ordering happens at proposal time.
type Mempool struct {
	mu  sync.RWMutex
	txs map[zhtpid.ID]*Transaction
}

// NewMempool creates an empty mempool.
func NewMempool() *Mempool {
	return &Mempool{txs: make(map[zhtpid.ID]*Transaction)}
}

// Add admits tx, returning false if a transaction with the same ID is
// already queued.
func (m *Mempool) Add(tx *Transaction) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.txs[tx.ID]; exists {
		return false
	}
	m.txs[tx.ID] = tx
	return true
}

// Remove discards tx (called once a block containing it commits).
func (m *Mempool) Remove(id zhtpid.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.txs, id)
}

// Get returns a queued transaction by ID.
func (m *Mempool) Get(id zhtpid.ID) (*Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.txs[id]
	return tx, ok
}

// Len reports the number of queued transactions.
func (m *Mempool) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}

// Take selects up to max queued transactions for a new proposal, in
// insertion-nondeterministic map order; ordering validation happens
// downstream in ValidateOrdering, not here.
func (m *Mempool) Take(max int) []*Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Transaction, 0, max)
	for _, tx := range m.txs {
		if len(out) >= max {
			break
		}
		out = append(out, tx)
	}
	return out
}
