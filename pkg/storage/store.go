package storage

import "github.com/cowbatch/auction-pipeline/pkg/domain"

// Store is the persisted-state surface C5 reads and writes: the five
// relations named in §6 plus the single indexing watermark. Every write
// happens inside a Batch, which is the atomic transactional unit (§4.5
// "Transactional unit").
type Store interface {
	// LastEventBlock reads the persisted watermark for the named
	// indexer, or ok=false if it has never indexed anything.
	LastEventBlock(name string) (block uint64, ok bool, err error)

	// InteractionCount returns how many interaction rows of the given
	// execution phase already exist for uid, used to compute the next
	// hook interaction index without colliding with existing rows.
	InteractionCount(uid domain.OrderUid, execution InteractionExecution) (int, error)

	// NewBatch opens a new atomic write unit.
	NewBatch() Batch

	// GetOrder, GetBroadcast and GetQuote are the read-side surface the
	// external API server (pkg/api) queries; they see committed state
	// only, never a batch's uncommitted writes.
	GetOrder(uid domain.OrderUid) (OrderRow, bool, error)
	GetBroadcast(uid domain.OrderUid) (BroadcastRow, bool, error)
	GetQuote(uid domain.OrderUid) (QuoteRow, bool, error)

	Close() error
}

// Batch accumulates writes for one append_events/replace_events
// invocation. Nothing is visible to other readers until Commit; Discard
// (or never calling Commit) leaves persisted state exactly as it was
// before the batch was opened, the rollback-on-cancellation behavior
// §5 requires.
type Batch interface {
	PersistLastIndexedBlock(name string, block uint64)

	InsertOrder(row OrderRow)               // on-conflict ignore
	InsertBroadcast(row BroadcastRow)       // on-conflict update
	InsertQuote(row QuoteRow)               // on-conflict update
	InsertInteraction(row InteractionRow)   // on-conflict ignore
	InsertInvalidation(row InvalidationRow)

	// InsertEthFlowOrder persists the custom per-order-kind row a
	// pluggable sub-parser produced for a placement, on-conflict ignore.
	InsertEthFlowOrder(row EthFlowRow)

	// MarkReorgedFrom marks every broadcast row with BlockNumber >= from
	// as reorged, and DeleteInvalidationsFrom removes every invalidation
	// row with BlockNumber >= from. Both are used by replace_events
	// before the new events for the range are applied.
	MarkReorgedFrom(from uint64) error
	DeleteInvalidationsFrom(from uint64) error

	Commit() error
	Discard()
}
