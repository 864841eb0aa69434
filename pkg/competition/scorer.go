package competition

import (
	"fmt"

	"github.com/cowbatch/auction-pipeline/pkg/competition/math"
	"github.com/cowbatch/auction-pipeline/pkg/domain"
)

// ScoreByPair computes the per-directed-token-pair score of a solution
// (C1). Every trade that contributes to score (§4.1 step 1) is converted
// into a math.Trade and scored; the scores are summed per directed pair
// after native/weth normalisation. A missing uniform clearing price for
// either leg of a trade fails the whole computation, since a partially
// scored solution would give the fairness filter an inaccurate picture.
func ScoreByPair(solution domain.Solution, auction domain.Auction, weth domain.Token) (map[domain.DirectedTokenPair]domain.Score, error) {
	feePolicies := auction.FeePoliciesByOrder()
	scores := make(map[domain.DirectedTokenPair]domain.Score)

	for uid, traded := range solution.Trades {
		policies, hasPolicy := feePolicies[uid]
		if !auction.ContributesToScore(uid, hasPolicy && len(policies) > 0) {
			continue
		}

		uniformSell, ok := solution.Prices[traded.SellToken]
		if !ok {
			return nil, fmt.Errorf("no uniform clearing price for sell token of order %s", uid)
		}
		uniformBuy, ok := solution.Prices[traded.BuyToken]
		if !ok {
			return nil, fmt.Errorf("no uniform clearing price for buy token of order %s", uid)
		}

		executed := traded.ExecutedSell
		if traded.Side == domain.Buy {
			executed = traded.ExecutedBuy
		}

		trade := math.Trade{
			UID:      uid,
			Side:     traded.Side,
			Sell:     traded.SellToken,
			Buy:      traded.BuyToken,
			Executed: executed,
			Uniform:  math.ClearingPrices{Sell: uniformSell, Buy: uniformBuy},
			Custom:   math.ClearingPrices{Sell: traded.ExecutedBuy, Buy: traded.ExecutedSell},
		}

		score, err := trade.Score(policies, auction.NativePrices)
		if err != nil {
			return nil, fmt.Errorf("order %s: failed to compute score: %w", uid, err)
		}

		pair := domain.NewDirectedTokenPair(traded.SellToken, traded.BuyToken, weth)
		scores[pair] = scores[pair].Add(score)
	}

	return scores, nil
}

// TotalScore sums a per-pair score map into a single total.
func TotalScore(scores map[domain.DirectedTokenPair]domain.Score) domain.Score {
	total := domain.ZeroScore()
	for _, s := range scores {
		total = total.Add(s)
	}
	return total
}
