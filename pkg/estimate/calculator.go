package estimate

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/cowbatch/auction-pipeline/pkg/onchain"
	"github.com/cowbatch/auction-pipeline/pkg/util"
)

// QuoteCalculator derives a fresh quote from the price, gas and
// native-price estimators when no solver-provided quote can be found:
// the calculate_quote half of the quoting surface, next to
// onchain.OrderQuoting's find-by-id half.
type QuoteCalculator struct {
	prices   PriceEstimating
	gas      GasPriceEstimating
	native   NativePriceEstimating
	clock    util.Clock
	validity time.Duration
}

func NewQuoteCalculator(prices PriceEstimating, gas GasPriceEstimating, native NativePriceEstimating, clock util.Clock, validity time.Duration) *QuoteCalculator {
	return &QuoteCalculator{prices: prices, gas: gas, native: native, clock: clock, validity: validity}
}

// CalculateQuote estimates the counterpart amount for the searched swap
// and prices its gas cost into sell-token atoms. The resulting quote is
// unverified; verification stays disabled for on-chain orders so that
// market-price checks can be lenient.
func (c *QuoteCalculator) CalculateQuote(ctx context.Context, params onchain.QuoteSearchParameters) (onchain.Quote, error) {
	estimate, err := c.prices.EstimatePrice(ctx, Query{
		SellToken: params.SellToken,
		BuyToken:  params.BuyToken,
		Side:      params.Side,
		Amount:    params.Amount,
	})
	if err != nil {
		return onchain.Quote{}, fmt.Errorf("estimate price: %w", err)
	}
	gasPrice, err := c.gas.EstimateGasPrice(ctx)
	if err != nil {
		return onchain.Quote{}, fmt.Errorf("estimate gas price: %w", err)
	}
	sellNative, err := c.native.EstimateNativePrice(ctx, params.SellToken)
	if err != nil {
		return onchain.Quote{}, fmt.Errorf("estimate native price of %s: %w", params.SellToken, err)
	}

	sellTokenPrice, _ := new(big.Float).SetInt(sellNative.Uint256().ToBig()).Float64()
	quote := onchain.Quote{
		SellToken: params.SellToken,
		BuyToken:  params.BuyToken,
		Fee: onchain.FeeParameters{
			GasAmount:      float64(estimate.Gas),
			GasPrice:       gasPrice.MaxFeePerGas,
			SellTokenPrice: sellTokenPrice,
		},
		Kind:      onchain.QuoteKindStandard,
		ExpiresAt: c.clock.Now().Add(c.validity).Unix(),
	}
	if params.Side == domain.Sell {
		quote.SellAmount = params.Amount
		quote.BuyAmount = estimate.OutAmount
	} else {
		quote.SellAmount = estimate.OutAmount
		quote.BuyAmount = params.Amount
	}
	return quote, nil
}
