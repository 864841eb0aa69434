package competition

import "github.com/cowbatch/auction-pipeline/pkg/domain"

// MarkWinners is C3. It assumes participants are already sorted by total
// score descending (as FilterUnfairSolutions leaves them) and marks the
// greedy, pair-disjoint winning subset up to maxWinners.
func MarkWinners(participants []domain.Participant, maxWinners int, weth domain.Token) []domain.Participant {
	winnerIndexes := pickWinners(participants, maxWinners, weth)
	ranked := make([]domain.Participant, len(participants))
	for i, p := range participants {
		_, isWinner := winnerIndexes[i]
		ranked[i] = p.Rank(isWinner)
	}
	return ranked
}

// pickWinners returns the indexes of the winning solutions: greedily walk
// the (already score-sorted) input, accepting a solution only if none of
// its directed token pairs were already covered by an earlier winner.
func pickWinners(participants []domain.Participant, maxWinners int, weth domain.Token) map[int]struct{} {
	covered := make(map[domain.DirectedTokenPair]struct{})
	winners := make(map[int]struct{})

	for index, p := range participants {
		if len(winners) >= maxWinners {
			break
		}

		pairs := solutionPairs(p.Solution, weth)
		if disjoint(pairs, covered) {
			winners[index] = struct{}{}
			for pair := range pairs {
				covered[pair] = struct{}{}
			}
		}
	}
	return winners
}

func solutionPairs(solution domain.Solution, weth domain.Token) map[domain.DirectedTokenPair]struct{} {
	pairs := make(map[domain.DirectedTokenPair]struct{}, len(solution.Trades))
	for _, trade := range solution.Trades {
		pairs[domain.NewDirectedTokenPair(trade.SellToken, trade.BuyToken, weth)] = struct{}{}
	}
	return pairs
}

func disjoint(a, b map[domain.DirectedTokenPair]struct{}) bool {
	for pair := range a {
		if _, ok := b[pair]; ok {
			return false
		}
	}
	return true
}
