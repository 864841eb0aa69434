package competition

import "github.com/cowbatch/auction-pipeline/pkg/domain"

// Arbitrator is the upstream-facing fairness/selection interface named in
// spec.md §6: filter unfair solutions, mark winners, and compute the
// reference score of each distinct solver in ranking order (winners and
// losers alike), up to MaxWinners solvers.
type Arbitrator interface {
	FilterUnfairSolutions(participants []domain.Participant, auction domain.Auction) []domain.Participant
	MarkWinners(participants []domain.Participant) []domain.Participant
	ComputeReferenceScores(ranked []domain.Participant) map[domain.Token]domain.Score
}

// Config is the combinatorial arbitrator's configuration: how many
// winners an auction may have, and which address stands in for the
// native-token sentinel when normalising directed token pairs.
type Config struct {
	MaxWinners       int
	WrappedNativeToken domain.Token
}

var _ Arbitrator = Config{}

func (c Config) FilterUnfairSolutions(participants []domain.Participant, auction domain.Auction) []domain.Participant {
	return FilterUnfairSolutions(participants, auction, c.WrappedNativeToken)
}

func (c Config) MarkWinners(participants []domain.Participant) []domain.Participant {
	return MarkWinners(participants, c.MaxWinners, c.WrappedNativeToken)
}

func (c Config) ComputeReferenceScores(ranked []domain.Participant) map[domain.Token]domain.Score {
	return ComputeReferenceScores(ranked, c.MaxWinners, c.WrappedNativeToken)
}

// RunCompetition is the convenience entry point a caller uses to drive
// one round end to end. It returns every surviving participant (ranked,
// with IsWinner set) and the reference scores ComputeReferenceScores
// produces for the ranked solvers.
func RunCompetition(arb Arbitrator, participants []domain.Participant, auction domain.Auction) (ranked []domain.Participant, referenceScores map[domain.Token]domain.Score) {
	fair := arb.FilterUnfairSolutions(participants, auction)
	ranked = arb.MarkWinners(fair)
	referenceScores = arb.ComputeReferenceScores(ranked)
	return ranked, referenceScores
}
