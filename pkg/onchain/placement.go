package onchain

import (
	"fmt"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/ethereum/go-ethereum/common"
)

// ErrUnknownSigningScheme is a protocol-violation error (§7): the
// settlement contract is only supposed to emit scheme 0 (EIP-1271) or 1
// (pre-sign) placements. Seeing anything else means a contract invariant
// broke, and the whole batch is aborted rather than dropping one event.
var ErrUnknownSigningScheme = fmt.Errorf("onchain: signature scheme is neither eip-1271 nor pre-sign")

// decodedPlacement is the (order_data, owner, signing_scheme, order_uid)
// tuple §4.5 step 2 derives from a raw placement event.
type decodedPlacement struct {
	Owner         common.Address
	SigningScheme domain.SigningScheme
	Uid           domain.OrderUid
	Receiver      *common.Address
}

// decodePlacement derives owner, signing scheme and order uid from a raw
// placement, returning ErrUnknownSigningScheme for any scheme outside
// {0,1}.
func decodePlacement(sep DomainSeparator, placement OrderPlacementEvent) (decodedPlacement, error) {
	var owner common.Address
	var scheme domain.SigningScheme

	switch placement.Signature.Scheme {
	case 0:
		scheme = domain.Eip1271
		if len(placement.Signature.Data) < 20 {
			return decodedPlacement{}, fmt.Errorf("eip-1271 signature data too short for owner: %w", ErrUnknownSigningScheme)
		}
		copy(owner[:], placement.Signature.Data[:20])
	case 1:
		scheme = domain.PreSign
		owner = placement.Sender
	default:
		return decodedPlacement{}, ErrUnknownSigningScheme
	}

	digest, err := OrderDigest(sep, placement.Order)
	if err != nil {
		return decodedPlacement{}, fmt.Errorf("hash order: %w", err)
	}
	uid := DeriveOrderUid(digest, owner, placement.Order.ValidTo)

	var receiver *common.Address
	if placement.Order.Receiver != (common.Address{}) {
		r := placement.Order.Receiver
		receiver = &r
	}

	return decodedPlacement{Owner: owner, SigningScheme: scheme, Uid: uid, Receiver: receiver}, nil
}

func (k OrderKind) toSide() domain.Side {
	if k == KindBuy {
		return domain.Buy
	}
	return domain.Sell
}

// orderClass returns Market or Limit per §4.5 step 5.
func orderClass(order RawOrderData) (isMarket bool) {
	return !order.FeeAmount.IsZero()
}

// outsideMarketPrice reports whether a successfully resolved quote's
// limits disagree with the order's own limits (§4.5 step 6). It has no
// effect on persistence; callers use it only to bump a metric.
func outsideMarketPrice(order RawOrderData, quote Quote) bool {
	return order.SellAmount.Uint256().Cmp(quote.SellAmount.Uint256()) != 0 ||
		order.BuyAmount.Uint256().Cmp(quote.BuyAmount.Uint256()) != 0 ||
		order.FeeAmount.Uint256().Cmp(quote.Fee.Fee().Uint256()) != 0
}
