// Package domain holds the value types shared by the scoring and indexing
// pipelines: tokens, orders, solutions, auctions and scores.
package domain

import "github.com/ethereum/go-ethereum/common"

// NativeToken is the sentinel address used by orders that sell or buy the
// chain's native asset directly instead of its wrapped ERC20 form.
var NativeToken = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// Token is a 20-byte ERC20 (or native-sentinel) address.
type Token = common.Address

// AsERC20 maps the native-token sentinel to the configured wrapped native
// token address; every other token is returned unchanged. Two tokens are
// considered the same leg of a directed pair iff AsERC20 produces the same
// address for both.
func AsERC20(token Token, weth Token) Token {
	if token == NativeToken {
		return weth
	}
	return token
}

// DirectedTokenPair is an ordered (sell, buy) token pair after native/weth
// normalisation. A->B is distinct from B->A.
type DirectedTokenPair struct {
	Sell Token
	Buy  Token
}

// NewDirectedTokenPair builds a pair, normalising both legs against weth.
func NewDirectedTokenPair(sell, buy, weth Token) DirectedTokenPair {
	return DirectedTokenPair{Sell: AsERC20(sell, weth), Buy: AsERC20(buy, weth)}
}
