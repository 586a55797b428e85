// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/zhtp-network/zhtp/zhtpid"
)

// ErrInsufficientBalance is returned when a transaction would debit more
// than an account currently holds.
var ErrInsufficientBalance = errors.New("consensus: insufficient balance")

// Ledger tracks account balances, applied in order as blocks commit and
// as UBI/welfare distributions are credited. A thin, file-persisted
// accounting layer rather than a full state trie: ZHTP's consensus layer
// orders and certifies transactions, but settlement bookkeeping is this
// package's concern alone.
type Ledger struct {
	mu       sync.Mutex
	path     string
	Balances map[zhtpid.ID]uint64 `json:"balances"`
}

// NewLedger creates an empty in-memory ledger not backed by a file.
func NewLedger() *Ledger {
	return &Ledger{Balances: make(map[zhtpid.ID]uint64)}
}

// LoadLedger reads a ledger previously persisted by Save at path, or
// returns a fresh empty ledger if the file does not exist yet.
func LoadLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path, Balances: make(map[zhtpid.ID]uint64)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, l); err != nil {
		return nil, err
	}
	l.path = path
	return l, nil
}

// Save persists the ledger to its backing file, if one was set via
// LoadLedger.
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0o600)
}

// Balance returns account's current balance.
func (l *Ledger) Balance(account zhtpid.ID) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Balances[account]
}

// Credit adds amount to account's balance (UBI payouts, welfare grants,
// genesis allocation).
func (l *Ledger) Credit(account zhtpid.ID, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Balances[account] += amount
}

// Apply debits tx.From and credits tx.To, rejecting the transfer if the
// sender's balance would go negative.
func (l *Ledger) Apply(tx *Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Balances[tx.From] < tx.Amount {
		return ErrInsufficientBalance
	}
	l.Balances[tx.From] -= tx.Amount
	l.Balances[tx.To] += tx.Amount
	return nil
}

// ApplyBlock applies every transaction in block in order, stopping at
// (but not reverting) the first insufficient-balance failure.
func (l *Ledger) ApplyBlock(block *Block) error {
	for _, tx := range block.Transactions {
		if err := l.Apply(tx); err != nil {
			return err
		}
	}
	return nil
}

// ApplyUBIDistribution credits every recipient their per-citizen share.
func (l *Ledger) ApplyUBIDistribution(dist *UBIDistribution) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range dist.Recipients {
		l.Balances[r] += dist.PerCitizen
	}
}

// ApplyWelfareFunding credits a single DAO-approved grant.
func (l *Ledger) ApplyWelfareFunding(f *WelfareFunding) {
	l.Credit(f.Recipient, f.Amount)
}
