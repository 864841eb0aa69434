// Package estimate declares the price, gas, balance and signature
// collaborators the auction pipeline consumes when assembling auctions
// and deriving fresh quotes. Concrete implementations live outside this
// repo (solver quoting services, chain RPC); this package holds the
// interfaces plus the composition logic that exercises them.
package estimate

import (
	"context"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/ethereum/go-ethereum/common"
)

// Query asks a price estimator what the counterpart amount for a swap
// would be: selling Amount of SellToken (Side == Sell), or buying Amount
// of BuyToken (Side == Buy).
type Query struct {
	SellToken domain.Token
	BuyToken  domain.Token
	Side      domain.Side
	Amount    domain.TokenAmount
}

// Estimate is a price estimator's answer: the counterpart amount and the
// gas the estimated route is expected to cost.
type Estimate struct {
	OutAmount domain.TokenAmount
	Gas       uint64
}

// PriceEstimating quotes a single swap against external liquidity.
type PriceEstimating interface {
	EstimatePrice(ctx context.Context, query Query) (Estimate, error)
}

// NativePriceEstimating prices one atom of a token in native-token wei.
// The resulting map feeds Auction.NativePrices, which the score
// calculator uses to normalize per-trade surplus.
type NativePriceEstimating interface {
	EstimateNativePrice(ctx context.Context, token domain.Token) (domain.TokenAmount, error)
}

// GasPrice is an EIP-1559-style fee estimate in wei.
type GasPrice struct {
	MaxFeePerGas         float64
	MaxPriorityFeePerGas float64
}

// GasPriceEstimating estimates the current gas price.
type GasPriceEstimating interface {
	EstimateGasPrice(ctx context.Context) (GasPrice, error)
}

// BalanceQuery identifies one (owner, token) balance to fetch.
type BalanceQuery struct {
	Owner domain.Token
	Token domain.Token
}

// BalanceResult is the per-query outcome of a batched balance fetch:
// either a balance or the error that kept it from resolving.
type BalanceResult struct {
	Balance domain.TokenAmount
	Err     error
}

// BalanceFetching fetches owner balances in bulk, returning one result
// per query in query order.
type BalanceFetching interface {
	GetBalances(ctx context.Context, queries []BalanceQuery) ([]BalanceResult, error)
}

// SignatureValidating performs the on-chain EIP-1271 signature check for
// orders whose signing scheme delegates validity to a contract.
type SignatureValidating interface {
	ValidateSignature(ctx context.Context, signer domain.Token, digest common.Hash, signature []byte) error
}
