package competition

import "github.com/cowbatch/auction-pipeline/pkg/domain"

// ComputeReferenceScores is C4. For each distinct solver among the ranked
// participants, in ranking order, it recomputes the winner set with that
// solver's participants excluded and sums the resulting winners' scores.
// It stops once maxWinners solvers have a result. A hypothetical winner
// without a ComputedScore contributes 0 to the sum, per §4.4.
func ComputeReferenceScores(ranked []domain.Participant, maxWinners int, weth domain.Token) map[domain.Token]domain.Score {
	referenceScores := make(map[domain.Token]domain.Score)

	for _, p := range ranked {
		solver := p.Solution.SolverAddress
		if len(referenceScores) >= maxWinners {
			break
		}
		if _, done := referenceScores[solver]; done {
			continue
		}

		without := make([]domain.Participant, 0, len(ranked))
		for _, other := range ranked {
			if other.Solution.SolverAddress != solver {
				without = append(without, other)
			}
		}

		winnerIndexes := pickWinners(without, maxWinners, weth)
		total := domain.ZeroScore()
		for index := range winnerIndexes {
			if score, ok := without[index].Solution.ComputedScore(); ok {
				total = total.Add(score)
			}
		}
		referenceScores[solver] = total
	}

	return referenceScores
}
