package domain

import "github.com/holiman/uint256"

// Score is a wei-denominated value of the auction's native token. Scores
// accumulate across trades and solutions; addition saturates at the
// uint256 maximum rather than wrapping, even though in practice totals sit
// far below that ceiling.
type Score struct {
	v *uint256.Int
}

// ZeroScore is the additive identity.
func ZeroScore() Score { return Score{v: uint256.NewInt(0)} }

// NewScoreFromUint256 wraps an existing uint256 value as a Score.
func NewScoreFromUint256(v *uint256.Int) Score {
	if v == nil {
		return ZeroScore()
	}
	return Score{v: new(uint256.Int).Set(v)}
}

// NewScoreFromUint64 builds a Score from a plain integer, useful in tests.
func NewScoreFromUint64(v uint64) Score {
	return Score{v: uint256.NewInt(v)}
}

// Uint256 returns the underlying value. Callers must not mutate it.
func (s Score) Uint256() *uint256.Int {
	if s.v == nil {
		return uint256.NewInt(0)
	}
	return s.v
}

// Add returns s+other, saturating at the uint256 maximum on overflow.
func (s Score) Add(other Score) Score {
	sum, overflow := new(uint256.Int).AddOverflow(s.Uint256(), other.Uint256())
	if overflow {
		return Score{v: new(uint256.Int).SetAllOne()}
	}
	return Score{v: sum}
}

// Cmp compares two scores the way big.Int.Cmp does: -1, 0, 1.
func (s Score) Cmp(other Score) int {
	return s.Uint256().Cmp(other.Uint256())
}

// GreaterOrEqual reports whether s >= other.
func (s Score) GreaterOrEqual(other Score) bool {
	return s.Cmp(other) >= 0
}

func (s Score) String() string {
	return s.Uint256().String()
}

func (s Score) MarshalJSON() ([]byte, error) { return s.Uint256().MarshalJSON() }

func (s *Score) UnmarshalJSON(b []byte) error {
	v := new(uint256.Int)
	if err := v.UnmarshalJSON(b); err != nil {
		return err
	}
	s.v = v
	return nil
}

// SumScores folds a slice of scores with saturating Add, starting from zero.
func SumScores(scores []Score) Score {
	total := ZeroScore()
	for _, s := range scores {
		total = total.Add(s)
	}
	return total
}
