// Package onchain implements the reorg-safe on-chain order indexer (C5):
// consuming placement/invalidation events, resolving quotes, deriving hook
// interactions, and persisting everything as one transactional unit per
// block range.
package onchain

import (
	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/ethereum/go-ethereum/common"
)

// EventIndex uniquely identifies a log within the chain. Its ordering is
// lexicographic on (BlockNumber, LogIndex), matching spec.md's I5.
type EventIndex struct {
	BlockNumber int64
	LogIndex    int64
}

// Less reports whether e sorts before other under the lexicographic order
// spec.md §3 requires to be preserved across replays.
func (e EventIndex) Less(other EventIndex) bool {
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	return e.LogIndex < other.LogIndex
}

// Log is the minimal subset of chain log metadata the indexer needs. The
// transport that produces these (an RPC client / log subscription) is an
// external collaborator, so this is a plain data carrier with no behavior.
type Log struct {
	BlockNumber     uint64
	LogIndex        uint64
	TransactionHash common.Hash
}

// Index converts a Log into the EventIndex used for ordering and
// deduplication.
func (l Log) Index() EventIndex {
	return EventIndex{BlockNumber: int64(l.BlockNumber), LogIndex: int64(l.LogIndex)}
}

// RawOrderData mirrors the settlement contract's OrderData struct as
// emitted on an OrderPlacement event.
type RawOrderData struct {
	SellToken         domain.Token
	BuyToken          domain.Token
	Receiver          common.Address // zero address means "no receiver override"
	SellAmount        domain.TokenAmount
	BuyAmount         domain.TokenAmount
	ValidTo           uint32
	AppData           common.Hash
	FeeAmount         domain.TokenAmount
	Kind              OrderKind
	PartiallyFillable bool
	SellTokenBalance  BalanceKind
	BuyTokenBalance   BalanceKind
}

// OrderKind mirrors the contract-level sell/buy discriminator.
type OrderKind int

const (
	KindSell OrderKind = iota
	KindBuy
)

// BalanceKind mirrors the contract-level balance source/destination
// discriminator (Erc20, External, Internal); its exact values are a
// settlement-contract concern treated as a black box here.
type BalanceKind int

// Signature is the raw (scheme, data) pair attached to an OrderPlacement
// event.
type Signature struct {
	Scheme uint8
	Data   []byte
}

// OrderPlacementEvent is the contract event emitted when an order is
// placed on-chain.
type OrderPlacementEvent struct {
	Sender    common.Address
	Order     RawOrderData
	Signature Signature
	// Data carries scheme-specific encoded extras; for orders placed
	// against a solver quote, the first 8 bytes hold the big-endian
	// int64 quote_id (decodeQuoteID), empty/short Data means "no quote_id".
	Data []byte
}

// OrderInvalidationEvent is the contract event emitted when an
// on-chain-placed order is invalidated.
type OrderInvalidationEvent struct {
	OrderUid domain.OrderUid
}

// ContractEvent is either an OrderPlacementEvent or an
// OrderInvalidationEvent, tagged so callers can switch without a type
// assertion on every element.
type ContractEvent struct {
	Placement    *OrderPlacementEvent
	Invalidation *OrderInvalidationEvent
}

// EventLog pairs a decoded contract event with the log metadata it was
// read from.
type EventLog struct {
	Event ContractEvent
	Log   Log
}
