package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cowbatch/auction-pipeline/pkg/domain"
)

// PebbleStore persists C5's five relations and its watermark as key
// namespaces in a single pebble database, the same single-engine
// approach the teacher uses for consensus blocks and account state.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) LastEventBlock(name string) (uint64, bool, error) {
	val, closer, err := s.db.Get(watermarkKey(name))
	if err == pebble.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read watermark %q: %w", name, err)
	}
	defer closer.Close()
	return binary.BigEndian.Uint64(val), true, nil
}

func (s *PebbleStore) InteractionCount(uid domain.OrderUid, execution InteractionExecution) (int, error) {
	prefix := interactionPrefix(uid, execution)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return 0, fmt.Errorf("iterate interactions: %w", err)
	}
	defer iter.Close()

	count := 0
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	return count, nil
}

func (s *PebbleStore) NewBatch() Batch {
	return &pebbleBatch{db: s.db, batch: s.db.NewIndexedBatch()}
}

func (s *PebbleStore) GetOrder(uid domain.OrderUid) (OrderRow, bool, error) {
	var row OrderRow
	val, closer, err := s.db.Get(orderKey(uid))
	if err == pebble.ErrNotFound {
		return row, false, nil
	}
	if err != nil {
		return row, false, fmt.Errorf("read order %s: %w", uid, err)
	}
	defer closer.Close()
	if err := decodeJSON(val, &row); err != nil {
		return row, false, fmt.Errorf("decode order %s: %w", uid, err)
	}
	return row, true, nil
}

func (s *PebbleStore) GetBroadcast(uid domain.OrderUid) (BroadcastRow, bool, error) {
	var row BroadcastRow
	val, closer, err := s.db.Get(broadcastKey(uid))
	if err == pebble.ErrNotFound {
		return row, false, nil
	}
	if err != nil {
		return row, false, fmt.Errorf("read broadcast %s: %w", uid, err)
	}
	defer closer.Close()
	if err := decodeJSON(val, &row); err != nil {
		return row, false, fmt.Errorf("decode broadcast %s: %w", uid, err)
	}
	return row, true, nil
}

func (s *PebbleStore) GetQuote(uid domain.OrderUid) (QuoteRow, bool, error) {
	var row QuoteRow
	val, closer, err := s.db.Get(quoteKey(uid))
	if err == pebble.ErrNotFound {
		return row, false, nil
	}
	if err != nil {
		return row, false, fmt.Errorf("read quote %s: %w", uid, err)
	}
	defer closer.Close()
	if err := decodeJSON(val, &row); err != nil {
		return row, false, fmt.Errorf("decode quote %s: %w", uid, err)
	}
	return row, true, nil
}

// pebbleBatch is the atomic transactional unit: an indexed pebble batch,
// so the batch's own existence checks (Get) and reorg scans (NewIter) see
// the writes it has already staged, and nothing staged here is visible to
// other readers until Commit.
type pebbleBatch struct {
	db    *pebble.DB
	batch *pebble.Batch
	err   error
}

func (b *pebbleBatch) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *pebbleBatch) set(key []byte, row any) {
	if b.err != nil {
		return
	}
	val, err := encodeJSON(row)
	if err != nil {
		b.fail(fmt.Errorf("encode row: %w", err))
		return
	}
	if err := b.batch.Set(key, val, nil); err != nil {
		b.fail(fmt.Errorf("stage write: %w", err))
	}
}

func (b *pebbleBatch) PersistLastIndexedBlock(name string, block uint64) {
	if b.err != nil {
		return
	}
	var val [8]byte
	binary.BigEndian.PutUint64(val[:], block)
	if err := b.batch.Set(watermarkKey(name), val[:], nil); err != nil {
		b.fail(fmt.Errorf("stage watermark: %w", err))
	}
}

// InsertOrder is on-conflict-ignore: a reorg may resurface an identical
// uid, and the first writer's row (not a later, possibly stale replay)
// should stick.
func (b *pebbleBatch) InsertOrder(row OrderRow) {
	if b.err != nil {
		return
	}
	key := orderKey(row.Uid)
	if _, closer, err := b.batch.Get(key); err == nil {
		closer.Close()
		return
	} else if err != pebble.ErrNotFound {
		b.fail(fmt.Errorf("check existing order: %w", err))
		return
	}
	b.set(key, row)
}

// InsertBroadcast is on-conflict-update: a reorg replaying the same uid
// must overwrite the row left behind by the prior application, clearing
// its reorged flag, so that append(E)+replace(E, range) converges on the
// same state as a single replace(E, range).
func (b *pebbleBatch) InsertBroadcast(row BroadcastRow) {
	b.set(broadcastKey(row.Uid), row)
}

// InsertQuote is on-conflict-update: the latest resolved quote for a uid
// always wins.
func (b *pebbleBatch) InsertQuote(row QuoteRow) {
	b.set(quoteKey(row.Uid), row)
}

func (b *pebbleBatch) InsertInteraction(row InteractionRow) {
	if b.err != nil {
		return
	}
	key := interactionKey(row.Uid, row.Execution, row.Index)
	if _, closer, err := b.batch.Get(key); err == nil {
		closer.Close()
		return
	} else if err != pebble.ErrNotFound {
		b.fail(fmt.Errorf("check existing interaction: %w", err))
		return
	}
	b.set(key, row)
}

func (b *pebbleBatch) InsertInvalidation(row InvalidationRow) {
	b.set(invalidationKey(row.Uid, row.BlockNumber), row)
}

func (b *pebbleBatch) InsertEthFlowOrder(row EthFlowRow) {
	if b.err != nil {
		return
	}
	key := ethFlowKey(row.Uid)
	if _, closer, err := b.batch.Get(key); err == nil {
		closer.Close()
		return
	} else if err != pebble.ErrNotFound {
		b.fail(fmt.Errorf("check existing ethflow row: %w", err))
		return
	}
	b.set(key, row)
}

func (b *pebbleBatch) MarkReorgedFrom(from uint64) error {
	prefix := broadcastPrefix()
	iter, err := b.batch.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return fmt.Errorf("iterate broadcast rows: %w", err)
	}
	defer iter.Close()

	var toMark []BroadcastRow
	for iter.First(); iter.Valid(); iter.Next() {
		var row BroadcastRow
		if err := decodeJSON(iter.Value(), &row); err != nil {
			continue
		}
		if row.BlockNumber >= from && !row.Reorged {
			row.Reorged = true
			toMark = append(toMark, row)
		}
	}
	for _, row := range toMark {
		b.set(broadcastKey(row.Uid), row)
	}
	return b.err
}

func (b *pebbleBatch) DeleteInvalidationsFrom(from uint64) error {
	prefix := invalidationPrefix()
	iter, err := b.batch.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return fmt.Errorf("iterate invalidation rows: %w", err)
	}
	defer iter.Close()

	var toDelete [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var row InvalidationRow
		if err := decodeJSON(iter.Value(), &row); err != nil {
			continue
		}
		if row.BlockNumber >= from {
			toDelete = append(toDelete, append([]byte(nil), iter.Key()...))
		}
	}
	for _, key := range toDelete {
		if err := b.batch.Delete(key, nil); err != nil {
			b.fail(fmt.Errorf("stage delete: %w", err))
		}
	}
	return b.err
}

func (b *pebbleBatch) Commit() error {
	if b.err != nil {
		b.Discard()
		return b.err
	}
	if err := b.batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (b *pebbleBatch) Discard() {
	_ = b.batch.Close()
}

var _ Store = (*PebbleStore)(nil)
var _ Batch = (*pebbleBatch)(nil)
