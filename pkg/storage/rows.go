// Package storage persists the five relations C5 reads and writes plus
// the single indexing watermark, on top of the teacher's pebble-backed
// key/value store.
package storage

import (
	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/ethereum/go-ethereum/common"
)

// OrderClass tags a persisted order by how it entered the book.
type OrderClass int

const (
	ClassMarket OrderClass = iota
	ClassLimit
	ClassLiquidity
)

// OrderRow is the `orders` relation: uid primary key, on-conflict-ignore
// (§4.5 transactional unit) so a reorg replaying an unchanged placement
// is a no-op.
type OrderRow struct {
	Uid               domain.OrderUid
	SellToken         domain.Token
	BuyToken          domain.Token
	Receiver          *domain.Token
	SellAmount        domain.TokenAmount
	BuyAmount         domain.TokenAmount
	ValidTo           uint32
	AppData           common.Hash
	FeeAmount         domain.TokenAmount
	Kind              domain.Side
	PartiallyFillable bool
	Class             OrderClass
}

// BroadcastRow is the `onchain_placed_orders` relation: one row per
// placed uid (a later placement of the same uid overwrites it), carrying
// its classified placement error (if any) and whether it has since been
// reorged out.
type BroadcastRow struct {
	Uid            domain.OrderUid
	Sender         domain.Token
	BlockNumber    uint64
	BlockTimestamp uint32
	PlacementError string // empty means the placement succeeded
	Reorged        bool
}

// QuoteRow is the `order_quotes` relation: uid primary key,
// on-conflict-update, written only for placements whose quote resolved.
type QuoteRow struct {
	Uid            domain.OrderUid
	QuoteID        int64
	SellAmount     domain.TokenAmount
	BuyAmount      domain.TokenAmount
	GasAmount      float64
	GasPrice       float64
	SellTokenPrice float64
	Solver         domain.Token
	Verified       bool
	Metadata       []byte
	QuoteKind      string
}

// InteractionExecution distinguishes a pre- from a post-settlement hook.
type InteractionExecution int

const (
	ExecutionPre InteractionExecution = iota
	ExecutionPost
)

// InteractionRow is the `interactions` relation, keyed on
// (uid, index, execution).
type InteractionRow struct {
	Uid       domain.OrderUid
	Index     int
	Execution InteractionExecution
	Target    domain.Token
	CallData  []byte
	GasLimit  uint64
}

// InvalidationRow is the `onchain_order_invalidations` relation.
type InvalidationRow struct {
	Uid         domain.OrderUid
	BlockNumber uint64
}

// EthFlowRow is the custom per-order-kind relation a pluggable
// sub-parser produces, alongside (not instead of) the generic orders and
// broadcast rows every placement gets (§4.5 transactional unit).
type EthFlowRow struct {
	Uid        domain.OrderUid
	Owner      domain.Token
	ValidTo    uint32
	IsRefunded bool
}
