package onchain

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/big"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/holiman/uint256"
)

// QuoteSearchParameters is built from an on-chain order's parameters and
// handed to the OrderQuoting collaborator. Quote verification is
// intentionally left disabled by the caller for on-chain orders (§4.5 step
// 4), so this carries only what is needed to look a quote up, not to
// validate one.
type QuoteSearchParameters struct {
	SellToken domain.Token
	BuyToken  domain.Token
	Side      domain.Side
	Amount    domain.TokenAmount
}

// FeeParameters is the gas-cost model attached to a quote: how much gas
// the quoted settlement is expected to burn, at what gas price, and the
// sell token's price relative to the native token, so the fee can be
// expressed in sell-token atoms.
type FeeParameters struct {
	GasAmount      float64 `json:"gasAmount"`
	GasPrice       float64 `json:"gasPrice"`
	SellTokenPrice float64 `json:"sellTokenPrice"`
}

// Fee is the quoted fee in sell-token atoms: gas cost in native wei
// divided by the sell token's native price, rounded up so the protocol
// never undercharges by a fraction of an atom.
func (f FeeParameters) Fee() domain.TokenAmount {
	if f.SellTokenPrice <= 0 {
		return domain.NewTokenAmountFromUint64(0)
	}
	fee := math.Ceil(f.GasAmount * f.GasPrice / f.SellTokenPrice)
	if fee <= 0 || math.IsInf(fee, 0) || math.IsNaN(fee) {
		return domain.NewTokenAmountFromUint64(0)
	}
	asInt, _ := new(big.Float).SetFloat64(fee).Int(nil)
	v, overflow := uint256.FromBig(asInt)
	if overflow {
		v = new(uint256.Int).SetAllOne()
	}
	return domain.NewTokenAmount(v)
}

// QuoteKind distinguishes ordinary off-chain quotes from the two
// on-chain-order flavors, which get laxer validity handling because the
// placement transaction, not the quote, is what committed the user.
type QuoteKind int

const (
	QuoteKindStandard QuoteKind = iota
	QuoteKindEip1271OnchainOrder
	QuoteKindPreSignOnchainOrder
)

func (k QuoteKind) String() string {
	switch k {
	case QuoteKindEip1271OnchainOrder:
		return "eip1271onchainorder"
	case QuoteKindPreSignOnchainOrder:
		return "presignonchainorder"
	default:
		return "standard"
	}
}

// QuoteKindForScheme maps an on-chain placement's signing scheme to the
// quote kind its quote row is stored under.
func QuoteKindForScheme(scheme domain.SigningScheme) QuoteKind {
	if scheme == domain.Eip1271 {
		return QuoteKindEip1271OnchainOrder
	}
	return QuoteKindPreSignOnchainOrder
}

// Quote is the resolved price a solver offered for an order at placement
// time.
type Quote struct {
	ID         int64              `json:"id"`
	SellToken  domain.Token       `json:"sellToken"`
	BuyToken   domain.Token       `json:"buyToken"`
	SellAmount domain.TokenAmount `json:"sellAmount"`
	BuyAmount  domain.TokenAmount `json:"buyAmount"`
	Fee        FeeParameters      `json:"feeParameters"`
	Solver     domain.Token       `json:"solver"`
	Verified   bool               `json:"verified"`
	Metadata   json.RawMessage    `json:"metadata,omitempty"`
	ExpiresAt  int64              `json:"expiresAt"`
	Kind       QuoteKind          `json:"-"`
}

// QuoteErrorKind classifies a failed quote lookup per §6/§7, so a caller
// can record it in the placement row without inspecting error strings.
type QuoteErrorKind int

const (
	QuoteNotFound QuoteErrorKind = iota
	QuoteParameterMismatch
	QuoteExpired
	QuoteOther
)

func (k QuoteErrorKind) String() string {
	switch k {
	case QuoteNotFound:
		return "not_found"
	case QuoteParameterMismatch:
		return "parameter_mismatch"
	case QuoteExpired:
		return "expired"
	default:
		return "other"
	}
}

// QuoteError wraps a classified quote-lookup failure.
type QuoteError struct {
	Kind QuoteErrorKind
	Err  error
}

func (e *QuoteError) Error() string { return e.Kind.String() + ": " + e.Err.Error() }
func (e *QuoteError) Unwrap() error { return e.Err }

// ClassifyQuoteError maps a raw collaborator error to a QuoteErrorKind.
// Collaborators are expected to return sentinel errors for the well-known
// cases; anything else is QuoteOther.
func ClassifyQuoteError(err error) QuoteErrorKind {
	switch {
	case errors.Is(err, ErrQuoteNotFound):
		return QuoteNotFound
	case errors.Is(err, ErrQuoteParameterMismatch):
		return QuoteParameterMismatch
	case errors.Is(err, ErrQuoteExpired):
		return QuoteExpired
	default:
		return QuoteOther
	}
}

var (
	ErrQuoteNotFound          = errors.New("quote not found")
	ErrQuoteParameterMismatch = errors.New("quote parameter mismatch")
	ErrQuoteExpired           = errors.New("quote expired")
)

// PlacementErrorKind classifies why an on-chain placement's quote didn't
// resolve to a usable quote, for storage in BroadcastRow.PlacementError
// (§4.5 step 4: `{Ok(quote), PreValidationError, NonZeroFee, Other}`).
// This is a distinct taxonomy from QuoteErrorKind: QuoteErrorKind
// classifies OrderQuoting's own error surface (§6); PlacementErrorKind is
// the coarser classification the placement step records, following
// original_source's `OnchainOrderPlacementError` (onchain_order_events/
// mod.rs's `get_quote`, mapping a parameter-shaped validation failure to
// PreValidationError and everything else to Other, with NonZeroFee
// detected independently of the quote lookup itself).
type PlacementErrorKind int

const (
	PlacementPreValidationError PlacementErrorKind = iota
	PlacementNonZeroFee
	PlacementOther
)

func (k PlacementErrorKind) String() string {
	switch k {
	case PlacementPreValidationError:
		return "pre_validation_error"
	case PlacementNonZeroFee:
		return "non_zero_fee"
	default:
		return "other"
	}
}

// ClassifyPlacementError maps a failed FindQuote lookup to the placement-
// level taxonomy. Callers check the NonZeroFee condition themselves before
// reaching for this, since it isn't a property of the quote error at all.
func ClassifyPlacementError(err error) PlacementErrorKind {
	if ClassifyQuoteError(err) == QuoteParameterMismatch {
		return PlacementPreValidationError
	}
	return PlacementOther
}

// OrderQuoting is the external quote-resolution collaborator named in §6.
// A production implementation talks to the solver quoting service; this
// package only depends on the interface.
type OrderQuoting interface {
	FindQuote(ctx context.Context, quoteID *int64, params QuoteSearchParameters) (Quote, error)
}
