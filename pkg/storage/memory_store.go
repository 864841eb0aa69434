package storage

import (
	"fmt"
	"sync"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
)

// MemoryStore is an in-process Store used by onchain's tests; it gives
// the same on-conflict-ignore/update semantics as PebbleStore without
// needing a database on disk.
type MemoryStore struct {
	mu           sync.Mutex
	watermarks   map[string]uint64
	orders       map[domain.OrderUid]OrderRow
	broadcasts   map[domain.OrderUid]BroadcastRow
	quotes       map[domain.OrderUid]QuoteRow
	interactions map[string]InteractionRow
	invalidations map[string]InvalidationRow
	ethflow      map[domain.OrderUid]EthFlowRow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		watermarks:    map[string]uint64{},
		orders:        map[domain.OrderUid]OrderRow{},
		broadcasts:    map[domain.OrderUid]BroadcastRow{},
		quotes:        map[domain.OrderUid]QuoteRow{},
		interactions:  map[string]InteractionRow{},
		invalidations: map[string]InvalidationRow{},
		ethflow:       map[domain.OrderUid]EthFlowRow{},
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) LastEventBlock(name string) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	block, ok := s.watermarks[name]
	return block, ok, nil
}

func (s *MemoryStore) InteractionCount(uid domain.OrderUid, execution InteractionExecution) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, row := range s.interactions {
		if row.Uid == uid && row.Execution == execution {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) NewBatch() Batch {
	return &memoryBatch{store: s}
}

func (s *MemoryStore) GetOrder(uid domain.OrderUid) (OrderRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.orders[uid]
	return row, ok, nil
}

func (s *MemoryStore) GetBroadcast(uid domain.OrderUid) (BroadcastRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.broadcasts[uid]
	return row, ok, nil
}

func (s *MemoryStore) GetQuote(uid domain.OrderUid) (QuoteRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.quotes[uid]
	return row, ok, nil
}

// memoryBatch stages writes and applies them to the store only on
// Commit, the same rollback-on-discard semantics PebbleStore provides.
type memoryBatch struct {
	store *MemoryStore
	ops   []func(*MemoryStore)
}

func (b *memoryBatch) PersistLastIndexedBlock(name string, block uint64) {
	b.ops = append(b.ops, func(s *MemoryStore) { s.watermarks[name] = block })
}

func (b *memoryBatch) InsertOrder(row OrderRow) {
	b.ops = append(b.ops, func(s *MemoryStore) {
		if _, exists := s.orders[row.Uid]; !exists {
			s.orders[row.Uid] = row
		}
	})
}

func (b *memoryBatch) InsertBroadcast(row BroadcastRow) {
	b.ops = append(b.ops, func(s *MemoryStore) { s.broadcasts[row.Uid] = row })
}

func (b *memoryBatch) InsertQuote(row QuoteRow) {
	b.ops = append(b.ops, func(s *MemoryStore) { s.quotes[row.Uid] = row })
}

func (b *memoryBatch) InsertInteraction(row InteractionRow) {
	key := fmt.Sprintf("%s:%d:%d", row.Uid, row.Execution, row.Index)
	b.ops = append(b.ops, func(s *MemoryStore) {
		if _, exists := s.interactions[key]; !exists {
			s.interactions[key] = row
		}
	})
}

func (b *memoryBatch) InsertInvalidation(row InvalidationRow) {
	key := fmt.Sprintf("%s:%d", row.Uid, row.BlockNumber)
	b.ops = append(b.ops, func(s *MemoryStore) { s.invalidations[key] = row })
}

func (b *memoryBatch) InsertEthFlowOrder(row EthFlowRow) {
	b.ops = append(b.ops, func(s *MemoryStore) {
		if _, exists := s.ethflow[row.Uid]; !exists {
			s.ethflow[row.Uid] = row
		}
	})
}

func (b *memoryBatch) MarkReorgedFrom(from uint64) error {
	b.ops = append(b.ops, func(s *MemoryStore) {
		for uid, row := range s.broadcasts {
			if row.BlockNumber >= from {
				row.Reorged = true
				s.broadcasts[uid] = row
			}
		}
	})
	return nil
}

func (b *memoryBatch) DeleteInvalidationsFrom(from uint64) error {
	b.ops = append(b.ops, func(s *MemoryStore) {
		for key, row := range s.invalidations {
			if row.BlockNumber >= from {
				delete(s.invalidations, key)
			}
		}
	})
	return nil
}

func (b *memoryBatch) Commit() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		op(b.store)
	}
	return nil
}

func (b *memoryBatch) Discard() { b.ops = nil }

var _ Store = (*MemoryStore)(nil)
var _ Batch = (*memoryBatch)(nil)

// Orders exposes persisted order rows for test assertions.
func (s *MemoryStore) Orders() map[domain.OrderUid]OrderRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.OrderUid]OrderRow, len(s.orders))
	for k, v := range s.orders {
		out[k] = v
	}
	return out
}

// Broadcasts exposes persisted broadcast rows for test assertions.
func (s *MemoryStore) Broadcasts() map[domain.OrderUid]BroadcastRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.OrderUid]BroadcastRow, len(s.broadcasts))
	for k, v := range s.broadcasts {
		out[k] = v
	}
	return out
}

// Quotes exposes persisted quote rows for test assertions.
func (s *MemoryStore) Quotes() map[domain.OrderUid]QuoteRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.OrderUid]QuoteRow, len(s.quotes))
	for k, v := range s.quotes {
		out[k] = v
	}
	return out
}

// Invalidations exposes persisted invalidation rows for test assertions.
func (s *MemoryStore) Invalidations() []InvalidationRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]InvalidationRow, 0, len(s.invalidations))
	for _, v := range s.invalidations {
		out = append(out, v)
	}
	return out
}

// Interactions exposes persisted interaction rows for test assertions.
func (s *MemoryStore) Interactions() []InteractionRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]InteractionRow, 0, len(s.interactions))
	for _, v := range s.interactions {
		out = append(out, v)
	}
	return out
}
