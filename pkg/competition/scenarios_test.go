package competition

import (
	"testing"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/ethereum/go-ethereum/common"
)

var (
	tokenA = common.HexToAddress("0x000000000000000000000000000000000000A1")
	tokenB = common.HexToAddress("0x000000000000000000000000000000000000B2")
	tokenC = common.HexToAddress("0x000000000000000000000000000000000000C3")
	tokenD = common.HexToAddress("0x000000000000000000000000000000000000D4")
	usdc   = common.HexToAddress("0x00000000000000000000000000000000005DC0")
	weth   = common.HexToAddress("0x000000000000000000000000000000000000FF")

	solverA = common.HexToAddress("0x00000000000000000000000000000000005A00")
	solverB = common.HexToAddress("0x00000000000000000000000000000000005B00")
	solverX = common.HexToAddress("0x00000000000000000000000000000000005C00")
	solverY = common.HexToAddress("0x00000000000000000000000000000000005D00")
)

func uidFor(owner common.Address, tag byte) domain.OrderUid {
	var uid domain.OrderUid
	uid[0] = tag
	copy(uid[32:52], owner[:])
	return uid
}

// scoredParticipant builds a participant whose single trade has already
// been arranged to score exactly `score` wei by using custom prices that
// make the uniform/custom surplus equal to `score` directly: uniform
// prices of 1:1 and executed amounts of (executed, executed-score), which
// the score calculator turns into custom prices (sell=executed-score,
// buy=executed), keep the arithmetic simple and exact for these integer
// scenarios.
func scoredParticipant(t *testing.T, solver common.Address, solutionID uint64, sell, buy common.Address, owner common.Address, score uint64) domain.Participant {
	t.Helper()
	const executed = 1_000_000
	sol := domain.NewSolution(solver, solutionID)
	uid := uidFor(owner, 1)
	sol.Prices[sell] = domain.NewTokenAmountFromUint64(1)
	sol.Prices[buy] = domain.NewTokenAmountFromUint64(1)
	// sell-side surplus = executedSell*uniformSell - limitBuyAmount*uniformBuy
	// limitBuyAmount = executedSell*customSell/customBuy
	// customSell=executedBuy=executed-score and customBuy=executedSell=executed
	// give surplus = executed*1 - (executed-score)*1 = score.
	sol.Trades[uid] = domain.TradedOrder{
		OrderUid:     uid,
		Side:         domain.Sell,
		SellToken:    sell,
		BuyToken:     buy,
		ExecutedSell: domain.NewTokenAmountFromUint64(executed),
		ExecutedBuy:  domain.NewTokenAmountFromUint64(executed - score),
	}
	return domain.Participant{
		Solution: sol,
		Driver:   domain.Driver{SubmissionAddress: solver},
	}
}

func auctionWithFeePolicy(owners ...domain.OrderUid) domain.Auction {
	orders := make([]domain.Order, 0, len(owners))
	for _, uid := range owners {
		orders = append(orders, domain.Order{Uid: uid, FeePolicies: []domain.FeePolicy{noopPolicy{}}})
	}
	nativePrices := map[domain.Token]domain.TokenAmount{
		tokenA: domain.NewTokenAmountFromUint64(1),
		tokenB: domain.NewTokenAmountFromUint64(1),
		tokenC: domain.NewTokenAmountFromUint64(1),
		tokenD: domain.NewTokenAmountFromUint64(1),
		usdc:   domain.NewTokenAmountFromUint64(1),
		weth:   domain.NewTokenAmountFromUint64(1),
	}
	return domain.Auction{Orders: orders, NativePrices: nativePrices, SurplusCapturingJitOwners: map[domain.Token]struct{}{}}
}

type noopPolicy struct{}

func (noopPolicy) ProtocolFee(domain.TokenAmount, domain.TokenAmount) domain.TokenAmount {
	return domain.NewTokenAmountFromUint64(0)
}

func winnerSolvers(t *testing.T, ranked []domain.Participant) []common.Address {
	t.Helper()
	var out []common.Address
	for _, p := range ranked {
		if p.IsWinner {
			out = append(out, p.Solution.SolverAddress)
		}
	}
	return out
}

func contains(addrs []common.Address, target common.Address) bool {
	for _, a := range addrs {
		if a == target {
			return true
		}
	}
	return false
}

// S1: two solutions, disjoint pairs, both win.
func TestScenario_S1_DisjointPairsBothWin(t *testing.T) {
	pA := scoredParticipant(t, solverA, 1, tokenA, tokenB, solverA, 10)
	pB := scoredParticipant(t, solverB, 1, tokenC, tokenD, solverB, 5)
	auction := auctionWithFeePolicy(uidFor(solverA, 1), uidFor(solverB, 1))
	cfg := Config{MaxWinners: 2, WrappedNativeToken: weth}

	ranked, refs := RunCompetition(cfg, []domain.Participant{pA, pB}, auction)

	winners := winnerSolvers(t, ranked)
	if !contains(winners, solverA) || !contains(winners, solverB) || len(winners) != 2 {
		t.Fatalf("expected both solvers to win, got %v", winners)
	}
	if refs[solverA].Cmp(domain.NewScoreFromUint64(5)) != 0 {
		t.Errorf("reference(solverA) = %s, want 5", refs[solverA])
	}
	if refs[solverB].Cmp(domain.NewScoreFromUint64(10)) != 0 {
		t.Errorf("reference(solverB) = %s, want 10", refs[solverB])
	}
}

// S2: two solutions on the same pair, higher score wins.
func TestScenario_S2_SamePairHigherWins(t *testing.T) {
	pA := scoredParticipant(t, solverA, 1, tokenA, tokenB, solverA, 10)
	pB := scoredParticipant(t, solverB, 1, tokenA, tokenB, solverB, 5)
	auction := auctionWithFeePolicy(uidFor(solverA, 1), uidFor(solverB, 1))
	cfg := Config{MaxWinners: 2, WrappedNativeToken: weth}

	ranked, refs := RunCompetition(cfg, []domain.Participant{pA, pB}, auction)

	winners := winnerSolvers(t, ranked)
	if len(winners) != 1 || winners[0] != solverA {
		t.Fatalf("expected only solverA to win, got %v", winners)
	}
	if refs[solverA].Cmp(domain.NewScoreFromUint64(5)) != 0 {
		t.Errorf("reference(solverA) = %s, want 5", refs[solverA])
	}
	if refs[solverB].Cmp(domain.NewScoreFromUint64(10)) != 0 {
		t.Errorf("reference(solverB) = %s, want 10", refs[solverB])
	}
}

// S3: a batched solution dominated by a baseline on one pair is discarded.
func TestScenario_S3_BatchedDominatedByBaseline(t *testing.T) {
	solX := domain.NewSolution(solverX, 1)
	solX.Prices[tokenA] = domain.NewTokenAmountFromUint64(1)
	solX.Prices[tokenB] = domain.NewTokenAmountFromUint64(1)
	solX.Prices[tokenC] = domain.NewTokenAmountFromUint64(1)
	solX.Prices[tokenD] = domain.NewTokenAmountFromUint64(1)
	uidAB := uidFor(solverX, 1)
	uidCD := uidFor(solverX, 2)
	const executed = 1_000_000
	solX.Trades[uidAB] = domain.TradedOrder{OrderUid: uidAB, Side: domain.Sell, SellToken: tokenA, BuyToken: tokenB,
		ExecutedSell: domain.NewTokenAmountFromUint64(executed), ExecutedBuy: domain.NewTokenAmountFromUint64(executed - 4)}
	solX.Trades[uidCD] = domain.TradedOrder{OrderUid: uidCD, Side: domain.Sell, SellToken: tokenC, BuyToken: tokenD,
		ExecutedSell: domain.NewTokenAmountFromUint64(executed), ExecutedBuy: domain.NewTokenAmountFromUint64(executed - 4)}
	pX := domain.Participant{Solution: solX, Driver: domain.Driver{SubmissionAddress: solverX}}

	pY := scoredParticipant(t, solverY, 1, tokenA, tokenB, solverY, 5)

	auction := auctionWithFeePolicy(uidAB, uidCD, uidFor(solverY, 1))
	cfg := Config{MaxWinners: 2, WrappedNativeToken: weth}

	ranked, refs := RunCompetition(cfg, []domain.Participant{pX, pY}, auction)

	winners := winnerSolvers(t, ranked)
	if len(winners) != 1 || winners[0] != solverY {
		t.Fatalf("expected only solverY to win (X dominated by baseline), got %v", winners)
	}
	if refs[solverY].Cmp(domain.ZeroScore()) != 0 {
		t.Errorf("reference(solverY) = %s, want 0", refs[solverY])
	}
}

// S4: native-token and wrapped-native-token legs conflict under C3.
func TestScenario_S4_NativeWrappedEquivalence(t *testing.T) {
	pP := scoredParticipant(t, solverA, 1, domain.NativeToken, usdc, solverA, 10)
	pQ := scoredParticipant(t, solverB, 1, weth, usdc, solverB, 5)
	auction := auctionWithFeePolicy(uidFor(solverA, 1), uidFor(solverB, 1))
	cfg := Config{MaxWinners: 2, WrappedNativeToken: weth}

	ranked, _ := RunCompetition(cfg, []domain.Participant{pP, pQ}, auction)

	winners := winnerSolvers(t, ranked)
	if len(winners) != 1 || winners[0] != solverA {
		t.Fatalf("expected only the higher-scoring native/weth solution to win, got %v", winners)
	}
}

// P2: winners never share a directed token pair.
func TestProperty_WinnersPairDisjoint(t *testing.T) {
	pA := scoredParticipant(t, solverA, 1, tokenA, tokenB, solverA, 10)
	pB := scoredParticipant(t, solverB, 1, tokenA, tokenB, solverB, 8)
	pX := scoredParticipant(t, solverX, 1, tokenC, tokenD, solverX, 3)
	auction := auctionWithFeePolicy(uidFor(solverA, 1), uidFor(solverB, 1), uidFor(solverX, 1))
	cfg := Config{MaxWinners: 3, WrappedNativeToken: weth}

	ranked, _ := RunCompetition(cfg, []domain.Participant{pA, pB, pX}, auction)

	seen := map[domain.DirectedTokenPair]bool{}
	for _, p := range ranked {
		if !p.IsWinner {
			continue
		}
		for _, trade := range p.Solution.Trades {
			pair := domain.NewDirectedTokenPair(trade.SellToken, trade.BuyToken, weth)
			if seen[pair] {
				t.Fatalf("pair %+v covered by more than one winner", pair)
			}
			seen[pair] = true
		}
	}
}

// P1: excluding a solver from reference-score recomputation can only
// reduce (or leave unchanged) the winners' total relative to the full
// winner set's total.
func TestProperty_ReferenceScoreBoundedByWinnerTotal(t *testing.T) {
	pA := scoredParticipant(t, solverA, 1, tokenA, tokenB, solverA, 10)
	pB := scoredParticipant(t, solverB, 1, tokenC, tokenD, solverB, 5)
	auction := auctionWithFeePolicy(uidFor(solverA, 1), uidFor(solverB, 1))
	cfg := Config{MaxWinners: 2, WrappedNativeToken: weth}

	ranked, refs := RunCompetition(cfg, []domain.Participant{pA, pB}, auction)

	total := domain.ZeroScore()
	for _, p := range ranked {
		if p.IsWinner {
			total = total.Add(p.TotalScore)
		}
	}
	for solver, ref := range refs {
		if ref.Cmp(total) > 0 {
			t.Fatalf("reference score for %s (%s) exceeds winner total (%s)", solver, ref, total)
		}
	}
}

// Equal-score solutions on the same pair resolve by the documented
// tie-break: ascending (solver address, solution id), independent of
// submission order.
func TestTieBreak_EqualScoresDeterministic(t *testing.T) {
	pA := scoredParticipant(t, solverA, 2, tokenA, tokenB, solverA, 7)
	pB := scoredParticipant(t, solverB, 1, tokenA, tokenB, solverB, 7)
	auction := auctionWithFeePolicy(uidFor(solverA, 1), uidFor(solverB, 1))
	cfg := Config{MaxWinners: 1, WrappedNativeToken: weth}

	for _, input := range [][]domain.Participant{{pA, pB}, {pB, pA}} {
		ranked, _ := RunCompetition(cfg, input, auction)
		winners := winnerSolvers(t, ranked)
		if len(winners) != 1 || winners[0] != solverA {
			t.Fatalf("tie must resolve to the lower solver address in any input order, got %v", winners)
		}
	}
}

// P3: a batched solution that beats (or matches) every touched pair's
// baseline survives the fairness filter.
func TestProperty_BatchedBeatingBaselinesSurvives(t *testing.T) {
	solX := domain.NewSolution(solverX, 1)
	solX.Prices[tokenA] = domain.NewTokenAmountFromUint64(1)
	solX.Prices[tokenB] = domain.NewTokenAmountFromUint64(1)
	solX.Prices[tokenC] = domain.NewTokenAmountFromUint64(1)
	solX.Prices[tokenD] = domain.NewTokenAmountFromUint64(1)
	uidAB := uidFor(solverX, 1)
	uidCD := uidFor(solverX, 2)
	const executed = 1_000_000
	solX.Trades[uidAB] = domain.TradedOrder{OrderUid: uidAB, Side: domain.Sell, SellToken: tokenA, BuyToken: tokenB,
		ExecutedSell: domain.NewTokenAmountFromUint64(executed), ExecutedBuy: domain.NewTokenAmountFromUint64(executed - 6)}
	solX.Trades[uidCD] = domain.TradedOrder{OrderUid: uidCD, Side: domain.Sell, SellToken: tokenC, BuyToken: tokenD,
		ExecutedSell: domain.NewTokenAmountFromUint64(executed), ExecutedBuy: domain.NewTokenAmountFromUint64(executed - 6)}
	pX := domain.Participant{Solution: solX, Driver: domain.Driver{SubmissionAddress: solverX}}

	pY := scoredParticipant(t, solverY, 1, tokenA, tokenB, solverY, 5)

	auction := auctionWithFeePolicy(uidAB, uidCD, uidFor(solverY, 1))
	cfg := Config{MaxWinners: 2, WrappedNativeToken: weth}

	ranked, _ := RunCompetition(cfg, []domain.Participant{pX, pY}, auction)

	winners := winnerSolvers(t, ranked)
	if len(winners) != 1 || winners[0] != solverX {
		t.Fatalf("the batched solution beats the A->B baseline (6 >= 5) and should win both pairs, got %v", winners)
	}
	for _, p := range ranked {
		if p.Solution.SolverAddress == solverX && !p.IsWinner {
			t.Error("batched solution beating every baseline must survive C2 and win")
		}
	}
}

// A solution missing a uniform clearing price for one traded token is
// discarded whole, not per trade.
func TestScoreByPair_MissingUniformPriceDiscardsSolution(t *testing.T) {
	sol := domain.NewSolution(solverA, 1)
	uid := uidFor(solverA, 1)
	sol.Prices[tokenA] = domain.NewTokenAmountFromUint64(1)
	// tokenB price intentionally absent
	sol.Trades[uid] = domain.TradedOrder{OrderUid: uid, Side: domain.Sell, SellToken: tokenA, BuyToken: tokenB,
		ExecutedSell: domain.NewTokenAmountFromUint64(100), ExecutedBuy: domain.NewTokenAmountFromUint64(90)}
	p := domain.Participant{Solution: sol, Driver: domain.Driver{SubmissionAddress: solverA}}

	auction := auctionWithFeePolicy(uid)
	fair := FilterUnfairSolutions([]domain.Participant{p}, auction, weth)
	if len(fair) != 0 {
		t.Fatalf("expected the unpriceable solution to be discarded, got %d survivors", len(fair))
	}
}
