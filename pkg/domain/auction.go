package domain

// TradedOrder is the portion of a Solution describing how one order would
// be executed: which side, which assets, and the executed amounts.
type TradedOrder struct {
	OrderUid      OrderUid
	Side          Side
	SellToken     Token
	BuyToken      Token
	ExecutedSell  TokenAmount
	ExecutedBuy   TokenAmount
}

// Solution is one solver's proposed set of trades plus the uniform
// clearing prices it relies on.
type Solution struct {
	SolverAddress Token // 20-byte solver address, same representation as Token
	SolutionID    uint64
	Trades        map[OrderUid]TradedOrder
	Prices        map[Token]TokenAmount // uniform clearing price per token
	computedScore *Score                // set by the score calculator; nil until scored
}

// NewSolution builds an empty solution ready to have trades/prices added.
func NewSolution(solver Token, id uint64) Solution {
	return Solution{
		SolverAddress: solver,
		SolutionID:    id,
		Trades:        make(map[OrderUid]TradedOrder),
		Prices:        make(map[Token]TokenAmount),
	}
}

// SetComputedScore records the total score C1 computed for this solution.
func (s *Solution) SetComputedScore(score Score) { s.computedScore = &score }

// ComputedScore returns the score set by SetComputedScore, or false if the
// solution was never successfully scored (and should be treated as 0 for
// reference-score aggregation per spec §4.4).
func (s Solution) ComputedScore() (Score, bool) {
	if s.computedScore == nil {
		return ZeroScore(), false
	}
	return *s.computedScore, true
}

// Driver is the solver-operated submission endpoint behind a Solution.
type Driver struct {
	SubmissionAddress Token
	Name              string
}

// RankState tags a Participant with its post-selection status.
type RankState int

const (
	Unranked RankState = iota
	Ranked
)

// Participant wraps a Solution with its submitting driver and, once C3 has
// run, whether it won.
type Participant struct {
	Solution Solution
	Driver   Driver
	State    RankState
	IsWinner bool

	// PairScores and TotalScore are populated by the fairness filter (C1
	// applied within C2) and consumed by C3/C4. Nil PairScores means the
	// participant has not yet been scored.
	PairScores map[DirectedTokenPair]Score
	TotalScore Score
}

// Rank marks the participant ranked, recording winner status.
func (p Participant) Rank(isWinner bool) Participant {
	p.State = Ranked
	p.IsWinner = isWinner
	return p
}

// Auction is the input to one competition round: the orders under
// consideration, native prices, the JIT-owner allowlist and the block the
// auction was built against.
type Auction struct {
	Orders                      []Order
	NativePrices                map[Token]TokenAmount
	SurplusCapturingJitOwners   map[Token]struct{}
	BlockNumber                 uint64
}

// ContributesToScore reports whether the order identified by uid is
// allowed to capture surplus: either it carries a fee policy (found via
// feePolicyByOrder) or its owner is in the JIT allowlist.
func (a Auction) ContributesToScore(uid OrderUid, hasFeePolicy bool) bool {
	if hasFeePolicy {
		return true
	}
	_, isJIT := a.SurplusCapturingJitOwners[uid.Owner()]
	return isJIT
}

// FeePoliciesByOrder indexes the auction's orders by uid for O(1) lookup
// of fee policies and fee-policy presence during scoring.
func (a Auction) FeePoliciesByOrder() map[OrderUid][]FeePolicy {
	out := make(map[OrderUid][]FeePolicy, len(a.Orders))
	for _, o := range a.Orders {
		out[o.Uid] = o.FeePolicies
	}
	return out
}
