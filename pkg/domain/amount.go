package domain

import "github.com/holiman/uint256"

// TokenAmount is a 256-bit unsigned token quantity.
type TokenAmount struct {
	v *uint256.Int
}

// NewTokenAmount wraps a uint256 value as a TokenAmount.
func NewTokenAmount(v *uint256.Int) TokenAmount {
	if v == nil {
		return TokenAmount{v: uint256.NewInt(0)}
	}
	return TokenAmount{v: new(uint256.Int).Set(v)}
}

// NewTokenAmountFromUint64 is a convenience constructor for tests.
func NewTokenAmountFromUint64(v uint64) TokenAmount {
	return TokenAmount{v: uint256.NewInt(v)}
}

// Uint256 exposes the underlying value. Callers must not mutate it.
func (a TokenAmount) Uint256() *uint256.Int {
	if a.v == nil {
		return uint256.NewInt(0)
	}
	return a.v
}

// IsZero reports whether the amount is zero.
func (a TokenAmount) IsZero() bool { return a.Uint256().IsZero() }

func (a TokenAmount) String() string { return a.Uint256().String() }

// MarshalJSON encodes the amount as a decimal string, matching how the
// settlement contract's quote/order APIs serialize uint256 values.
func (a TokenAmount) MarshalJSON() ([]byte, error) { return a.Uint256().MarshalJSON() }

func (a *TokenAmount) UnmarshalJSON(b []byte) error {
	v := new(uint256.Int)
	if err := v.UnmarshalJSON(b); err != nil {
		return err
	}
	a.v = v
	return nil
}
