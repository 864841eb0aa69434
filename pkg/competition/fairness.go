package competition

import (
	"bytes"
	"sort"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
)

// FilterUnfairSolutions is C2. It scores every participant (C1), drops any
// whose score computation failed, sorts survivors by total score
// descending (ties broken by (solver, solution id) ascending — the
// deterministic tie-break this implementation picked for the open
// question in spec.md §4.2/§9), computes per-pair baselines from
// single-pair solutions, and discards any multi-pair solution that scores
// below the baseline on some pair it touches.
func FilterUnfairSolutions(participants []domain.Participant, auction domain.Auction, weth domain.Token) []domain.Participant {
	scored := make([]domain.Participant, 0, len(participants))
	for _, p := range participants {
		pairScores, err := ScoreByPair(p.Solution, auction, weth)
		if err != nil {
			// Discard the whole solution: fairness guarantees rely on
			// every remaining solution having an accurate score.
			continue
		}
		p.PairScores = pairScores
		p.TotalScore = TotalScore(pairScores)
		p.Solution.SetComputedScore(p.TotalScore)
		scored = append(scored, p)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		cmp := scored[i].TotalScore.Cmp(scored[j].TotalScore)
		if cmp != 0 {
			return cmp > 0
		}
		return tieBreakLess(scored[i], scored[j])
	})

	baselines := computeBaselineScores(scored)

	fair := make([]domain.Participant, 0, len(scored))
	for _, p := range scored {
		if isFair(p, baselines) {
			fair = append(fair, p)
		}
	}
	return fair
}

// tieBreakLess orders participants with equal total score by ascending
// (solver address, solution id); a stable, deterministic rule since the
// spec leaves tie-breaking as an implementation choice.
func tieBreakLess(a, b domain.Participant) bool {
	sa, sb := a.Solution.SolverAddress, b.Solution.SolverAddress
	if sa != sb {
		return bytes.Compare(sa[:], sb[:]) < 0
	}
	return a.Solution.SolutionID < b.Solution.SolutionID
}

// computeBaselineScores returns, for each directed pair, the best score
// among solutions that trade exactly that one pair (§4.2 step 3).
func computeBaselineScores(scored []domain.Participant) map[domain.DirectedTokenPair]domain.Score {
	baselines := make(map[domain.DirectedTokenPair]domain.Score)
	for _, p := range scored {
		if len(p.PairScores) != 1 {
			continue
		}
		for pair, score := range p.PairScores {
			if current, ok := baselines[pair]; !ok || score.Cmp(current) > 0 {
				baselines[pair] = score
			}
		}
	}
	return baselines
}

// isFair implements §4.2 step 4: a participant survives if it trades
// exactly one directed pair, or if its score on every pair it touches is
// at least that pair's baseline (no baseline ⇒ accepted for that pair).
func isFair(p domain.Participant, baselines map[domain.DirectedTokenPair]domain.Score) bool {
	if len(p.PairScores) == 1 {
		return true
	}
	for pair, score := range p.PairScores {
		baseline, ok := baselines[pair]
		if !ok {
			continue
		}
		if !score.GreaterOrEqual(baseline) {
			return false
		}
	}
	return true
}
