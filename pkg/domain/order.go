package domain

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// OrderUid is the 56-byte identifier a settlement contract assigns to an
// order: a 32-byte order digest followed by the 20-byte owner and 4-byte
// valid-to timestamp. Only the owner-extraction slice (bytes [32:52]) is
// interpreted by this package; the rest is opaque.
type OrderUid [56]byte

// Owner returns the order owner, decoded from the first 20 bytes after the
// 32-byte digest prefix, matching the contract's uid layout.
func (u OrderUid) Owner() common.Address {
	var addr common.Address
	copy(addr[:], u[32:52])
	return addr
}

func (u OrderUid) String() string {
	return "0x" + hex.EncodeToString(u[:])
}

func (u OrderUid) MarshalJSON() ([]byte, error) { return []byte(`"` + u.String() + `"`), nil }

func (u *OrderUid) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := OrderUidFromHex(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// OrderUidFromHex parses a "0x"-prefixed 112-hex-digit order uid.
func OrderUidFromHex(s string) (OrderUid, error) {
	var uid OrderUid
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return uid, fmt.Errorf("decode order uid: %w", err)
	}
	if len(b) != len(uid) {
		return uid, fmt.Errorf("order uid must be %d bytes, got %d", len(uid), len(b))
	}
	copy(uid[:], b)
	return uid, nil
}

// Side is the direction of an order.
type Side int

const (
	Sell Side = iota
	Buy
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// SigningScheme enumerates how an order's signature should be interpreted.
type SigningScheme int

const (
	Eip712 SigningScheme = iota
	EthSign
	Eip1271
	PreSign
)

// Interaction is a single auxiliary call a settlement must perform before
// or after executing an order's trade (a "hook").
type Interaction struct {
	Target   common.Address
	CallData []byte
	GasLimit uint64
}

// FeePolicy is implemented by the concrete protocol fee policies in
// package math (Surplus, PriceImprovement, Volume). It is declared here,
// rather than in math, so that Order can reference it without an import
// cycle between domain and competition/math.
type FeePolicy interface {
	// ProtocolFee returns the portion of grossSurplus (native-token wei;
	// math.Trade.Score passes the surplus left after any earlier policies)
	// the protocol retains for the given executed volume (also
	// native-token wei).
	ProtocolFee(grossSurplus, executedVolumeNative TokenAmount) TokenAmount
}

// Order is a single signed or on-chain-placed limit order.
type Order struct {
	Uid                OrderUid
	SellToken          Token
	BuyToken           Token
	SellAmount         TokenAmount
	BuyAmount          TokenAmount
	Kind               Side
	PartiallyFillable  bool
	ValidTo            uint32
	SigningScheme      SigningScheme
	AppData            common.Hash
	FeePolicies        []FeePolicy
	PreInteractions    []Interaction
	PostInteractions   []Interaction
}
