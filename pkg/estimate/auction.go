package estimate

import (
	"context"
	"sync"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// AuctionBuilder assembles the competition input for one round: the
// orders still worth auctioning (owner balance present, contract
// signatures still valid) and the native price of every token they
// touch.
type AuctionBuilder struct {
	native     NativePriceEstimating
	balances   BalanceFetching
	signatures SignatureValidating
	jitOwners  map[domain.Token]struct{}
	maxInFlight int64
	log        *zap.Logger
}

func NewAuctionBuilder(native NativePriceEstimating, balances BalanceFetching, signatures SignatureValidating, jitOwners map[domain.Token]struct{}, maxInFlight int64, log *zap.Logger) *AuctionBuilder {
	if maxInFlight <= 0 {
		maxInFlight = 10
	}
	return &AuctionBuilder{
		native:      native,
		balances:    balances,
		signatures:  signatures,
		jitOwners:   jitOwners,
		maxInFlight: maxInFlight,
		log:         log,
	}
}

// Build filters orders down to the currently settleable subset and
// resolves native prices for every token they trade. signatures maps an
// order uid to its raw signature bytes for EIP-1271 orders; orders of
// other schemes need no entry.
func (b *AuctionBuilder) Build(ctx context.Context, orders []domain.Order, signatures map[domain.OrderUid][]byte, blockNumber uint64) (domain.Auction, error) {
	valid, err := b.validOrders(ctx, orders, signatures)
	if err != nil {
		return domain.Auction{}, err
	}
	prices, err := b.nativePrices(ctx, valid)
	if err != nil {
		return domain.Auction{}, err
	}
	return domain.Auction{
		Orders:                    valid,
		NativePrices:              prices,
		SurplusCapturingJitOwners: b.jitOwners,
		BlockNumber:               blockNumber,
	}, nil
}

// validOrders drops orders whose owner's sell balance no longer covers
// them (fully-fillable orders need the whole sell amount, partially-fillable
// ones any positive balance) and EIP-1271 orders whose contract
// signature no longer validates. A balance fetch error keeps the order:
// a transient RPC failure should not silently shrink the auction.
func (b *AuctionBuilder) validOrders(ctx context.Context, orders []domain.Order, signatures map[domain.OrderUid][]byte) ([]domain.Order, error) {
	queries := make([]BalanceQuery, len(orders))
	for i, o := range orders {
		queries[i] = BalanceQuery{Owner: o.Uid.Owner(), Token: o.SellToken}
	}
	results, err := b.balances.GetBalances(ctx, queries)
	if err != nil {
		return nil, err
	}

	valid := make([]domain.Order, 0, len(orders))
	for i, o := range orders {
		if i < len(results) && results[i].Err == nil {
			balance := results[i].Balance
			if o.PartiallyFillable {
				if balance.IsZero() {
					b.log.Debug("dropping order with zero sell balance", zap.Stringer("uid", o.Uid))
					continue
				}
			} else if balance.Uint256().Cmp(o.SellAmount.Uint256()) < 0 {
				b.log.Debug("dropping order with insufficient sell balance", zap.Stringer("uid", o.Uid))
				continue
			}
		}
		if o.SigningScheme == domain.Eip1271 {
			digest := digestOf(o.Uid)
			if err := b.signatures.ValidateSignature(ctx, o.Uid.Owner(), digest, signatures[o.Uid]); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				b.log.Debug("dropping order with invalid eip-1271 signature", zap.Stringer("uid", o.Uid), zap.Error(err))
				continue
			}
		}
		valid = append(valid, o)
	}
	return valid, nil
}

// nativePrices resolves the native price of every distinct token the
// orders touch, with at most maxInFlight estimator calls at a time. A
// token whose estimate fails is left out of the map; that invalidates
// only the solutions trading it, once the score calculator finds the
// price missing.
func (b *AuctionBuilder) nativePrices(ctx context.Context, orders []domain.Order) (map[domain.Token]domain.TokenAmount, error) {
	tokens := make(map[domain.Token]struct{}, 2*len(orders))
	for _, o := range orders {
		tokens[o.SellToken] = struct{}{}
		tokens[o.BuyToken] = struct{}{}
	}

	sem := semaphore.NewWeighted(b.maxInFlight)
	var wg sync.WaitGroup
	var mu sync.Mutex
	prices := make(map[domain.Token]domain.TokenAmount, len(tokens))

	for token := range tokens {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(token domain.Token) {
			defer wg.Done()
			defer sem.Release(1)
			price, err := b.native.EstimateNativePrice(ctx, token)
			if err != nil {
				b.log.Debug("native price estimate failed", zap.Stringer("token", token), zap.Error(err))
				return
			}
			mu.Lock()
			prices[token] = price
			mu.Unlock()
		}(token)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return prices, nil
}

// digestOf extracts the 32-byte order digest half of a uid, the message
// an EIP-1271 contract signature signs over.
func digestOf(uid domain.OrderUid) common.Hash {
	return common.BytesToHash(uid[:32])
}
