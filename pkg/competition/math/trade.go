// Package math implements the per-trade surplus and fee-policy arithmetic
// that the score calculator (C1) folds into each directed token pair's
// score. It mirrors the teacher's plain-struct, pure-function style
// (pkg/app/core/orderbook matching logic) rather than anything
// object-oriented.
package math

import (
	"fmt"
	"math/big"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/holiman/uint256"
)

// ClearingPrices is a (sell, buy) price pair denominated in the same
// underlying unit, used twice per trade: once for the solution's uniform
// clearing prices, once for the "custom" prices implied by the trade's
// own executed amounts.
type ClearingPrices struct {
	Sell domain.TokenAmount
	Buy  domain.TokenAmount
}

// Trade carries everything needed to compute one order's surplus within a
// solution: which side/assets it trades, how much executed, and both the
// uniform and custom clearing prices.
type Trade struct {
	UID      domain.OrderUid
	Side     domain.Side
	Sell     domain.Token
	Buy      domain.Token
	Executed domain.TokenAmount // executed_buy for Buy side, executed_sell for Sell side
	Uniform  ClearingPrices
	Custom   ClearingPrices
}

// Score computes the trade's surplus in native-token wei, net of any
// protocol fee policies, using nativePrices to convert the sell- or
// buy-side surplus into the auction's native token.
//
// The surplus is measured between the solution's uniform clearing price
// and the trade's own custom (executed-amount-implied) price: it values
// how much better the order did under the uniform price than it would
// have under the price it was actually promised, exactly mirroring the
// buy/sell surplus formulas used for order-level surplus elsewhere in the
// settlement pipeline, just with the custom price pair standing in for
// the order's limit price.
func (t Trade) Score(feePolicies []domain.FeePolicy, nativePrices map[domain.Token]domain.TokenAmount) (domain.Score, error) {
	var grossSurplus *big.Rat
	switch t.Side {
	case domain.Buy:
		grossSurplus = buyOrderSurplus(t.Uniform, t.Custom, t.Executed)
	default:
		grossSurplus = sellOrderSurplus(t.Uniform, t.Custom, t.Executed)
	}
	if grossSurplus == nil || grossSurplus.Sign() < 0 {
		return domain.ZeroScore(), nil
	}

	// Normalize into the native token: sell-side surplus is denominated in
	// the buy token, buy-side surplus in the sell token (matches
	// trade_surplus_in_native_token_with_prices).
	var referenceToken domain.Token
	var referencePrice, executedPrice domain.TokenAmount
	if t.Side == domain.Sell {
		referenceToken = t.Buy
		referencePrice = t.Uniform.Buy
		executedPrice = t.Uniform.Sell
	} else {
		referenceToken = t.Sell
		referencePrice = t.Uniform.Sell
		executedPrice = t.Uniform.Buy
	}
	if referencePrice.IsZero() {
		return domain.Score{}, fmt.Errorf("zero uniform clearing price for token %s", referenceToken)
	}
	nativePrice, ok := nativePrices[referenceToken]
	if !ok {
		return domain.Score{}, fmt.Errorf("missing native price for token %s", referenceToken)
	}

	surplusNative := ratToUint256(new(big.Rat).Mul(
		new(big.Rat).Quo(grossSurplus, toRat(referencePrice)),
		toRat(nativePrice),
	))

	// Executed volume, converted into the reference token at the uniform
	// clearing prices and then into the native token, as the basis for
	// volume-capped fee policies.
	executedVolumeNative := ratToUint256(new(big.Rat).Mul(
		new(big.Rat).Quo(
			new(big.Rat).Mul(toRat(t.Executed), toRat(executedPrice)),
			toRat(referencePrice),
		),
		toRat(nativePrice),
	))
	netSurplus := domain.NewTokenAmount(surplusNative)
	for _, policy := range feePolicies {
		fee := policy.ProtocolFee(netSurplus, domain.NewTokenAmount(executedVolumeNative))
		if fee.Uint256().Cmp(netSurplus.Uint256()) >= 0 {
			netSurplus = domain.NewTokenAmount(uint256.NewInt(0))
			break
		}
		netSurplus = domain.NewTokenAmount(new(uint256.Int).Sub(netSurplus.Uint256(), fee.Uint256()))
	}

	return domain.NewScoreFromUint256(netSurplus.Uint256()), nil
}

// buyOrderSurplus is the difference between what the trader was willing
// to pay (converting the executed buy amount through the custom price
// pair) and what they actually paid at the uniform clearing prices. Both
// legs are valued in price-weighted units; the caller divides by the
// reference leg's uniform price to land in sell-token terms. A custom
// price pair converts amounts as out = in * price_in / price_out, since
// the prices are the swapped executed amounts.
func buyOrderSurplus(uniform, custom ClearingPrices, executedBuy domain.TokenAmount) *big.Rat {
	sellPrice := toRat(custom.Sell)
	if sellPrice.Sign() == 0 {
		return nil
	}
	executed := toRat(executedBuy)

	limitSellAmount := new(big.Rat).Quo(new(big.Rat).Mul(executed, toRat(custom.Buy)), sellPrice)
	paidAtLimit := new(big.Rat).Mul(limitSellAmount, toRat(uniform.Sell))
	paidAtUniform := new(big.Rat).Mul(executed, toRat(uniform.Buy))
	return new(big.Rat).Sub(paidAtLimit, paidAtUniform)
}

// sellOrderSurplus is the difference between the proceeds received at the
// uniform clearing prices and what the trader was minimally willing to
// accept (the executed sell amount converted through the custom price
// pair), in price-weighted units like buyOrderSurplus.
func sellOrderSurplus(uniform, custom ClearingPrices, executedSell domain.TokenAmount) *big.Rat {
	buyPrice := toRat(custom.Buy)
	if buyPrice.Sign() == 0 {
		return nil
	}
	executed := toRat(executedSell)

	limitBuyAmount := new(big.Rat).Quo(new(big.Rat).Mul(executed, toRat(custom.Sell)), buyPrice)
	receivedAtUniform := new(big.Rat).Mul(executed, toRat(uniform.Sell))
	receivedAtLimit := new(big.Rat).Mul(limitBuyAmount, toRat(uniform.Buy))
	return new(big.Rat).Sub(receivedAtUniform, receivedAtLimit)
}

func toRat(a domain.TokenAmount) *big.Rat {
	return new(big.Rat).SetInt(a.Uint256().ToBig())
}

func ratToUint256(r *big.Rat) *uint256.Int {
	if r.Sign() <= 0 {
		return uint256.NewInt(0)
	}
	quotient := new(big.Int).Quo(r.Num(), r.Denom())
	v, overflow := uint256.FromBig(quotient)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return v
}
