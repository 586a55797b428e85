// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mesh

import (
	"fmt"
	"sync"
	"time"

	"github.com/zhtp-network/zhtp/cryptoutil"
	"github.com/zhtp-network/zhtp/transport"
	"github.com/zhtp-network/zhtp/zhtpid"
)

// MaxChunkSize returns the largest payload chunk a message may carry over
// kind before it must be split (spec §4.3 chunking contract), the MTU
// each physical medium imposes.
func MaxChunkSize(kind transport.Kind) int {
	switch kind {
	case transport.KindBLE:
		return 200
	case transport.KindBluetoothClassic:
		return 800
	case transport.KindWiFiDirect:
		return 1400
	case transport.KindLoRa:
		return 50
	default:
		return 512
	}
}

// Chunk is one fragment of a larger payload, identified by the hash of
// the full reassembled message so fragments can be verified and
// correlated independent of arrival order.
type Chunk struct {
	MessageHash zhtpid.ID
	Index       uint32
	Total       uint32
	Data        []byte
}

// Split fragments payload into chunks no larger than MaxChunkSize(kind),
// each tagged with the Blake3 hash of the whole payload.
func Split(payload []byte, kind transport.Kind) []Chunk {
	max := MaxChunkSize(kind)
	if len(payload) == 0 {
		return []Chunk{{MessageHash: cryptoutil.Hash(payload), Index: 0, Total: 1, Data: nil}}
	}
	total := (len(payload) + max - 1) / max
	hash := cryptoutil.Hash(payload)
	chunks := make([]Chunk, 0, total)
	for i := 0; i < total; i++ {
		start := i * max
		end := start + max
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, Chunk{
			MessageHash: hash,
			Index:       uint32(i),
			Total:       uint32(total),
			Data:        payload[start:end],
		})
	}
	return chunks
}

// pending tracks the fragments collected so far for one in-flight message.
type pending struct {
	total    uint32
	received map[uint32][]byte
	firstSeen time.Time
}

// Reassembler collects Chunks across however many transport.Message
// deliveries they arrive in and reconstructs the original payload once
// every fragment has arrived, verifying the result against MessageHash
// before releasing it (spec §4.3 "hash-verified reassembly").
type Reassembler struct {
	mu  sync.Mutex
	ttl time.Duration
	msg map[zhtpid.ID]*pending
}

// NewReassembler creates a reassembler that abandons an incomplete
// message after ttl has elapsed since its first fragment arrived.
func NewReassembler(ttl time.Duration) *Reassembler {
	return &Reassembler{ttl: ttl, msg: make(map[zhtpid.ID]*pending)}
}

// Add records chunk and returns the reassembled, hash-verified payload
// once all of its fragments have arrived; ok is false while fragments are
// still outstanding.
func (r *Reassembler) Add(c Chunk, now time.Time) (payload []byte, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.msg[c.MessageHash]
	if !exists {
		p = &pending{total: c.Total, received: make(map[uint32][]byte), firstSeen: now}
		r.msg[c.MessageHash] = p
	}
	if c.Total != p.total {
		return nil, false, fmt.Errorf("mesh: chunk total mismatch for message %s", c.MessageHash)
	}
	p.received[c.Index] = c.Data

	if uint32(len(p.received)) < p.total {
		return nil, false, nil
	}

	full := make([]byte, 0)
	for i := uint32(0); i < p.total; i++ {
		frag, have := p.received[i]
		if !have {
			return nil, false, nil
		}
		full = append(full, frag...)
	}
	delete(r.msg, c.MessageHash)

	if cryptoutil.Hash(full) != c.MessageHash {
		return nil, false, fmt.Errorf("mesh: reassembled payload for %s failed hash verification", c.MessageHash)
	}
	return full, true, nil
}

// Sweep discards any in-flight reassembly older than the reassembler's
// TTL, returning how many were abandoned.
func (r *Reassembler) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for hash, p := range r.msg {
		if now.Sub(p.firstSeen) > r.ttl {
			delete(r.msg, hash)
			n++
		}
	}
	return n
}
