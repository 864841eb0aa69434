package onchain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/cowbatch/auction-pipeline/pkg/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// BlockTimestamps resolves a block number to its on-chain timestamp; the
// chain-RPC collaborator named in §6.
type BlockTimestamps interface {
	BlockTimestamp(ctx context.Context, blockNumber uint64) (uint32, error)
}

// ParserConfig configures one named indexer instance. Name is the
// watermark key (§6: `name="onchain_orders"`).
type ParserConfig struct {
	Name                 string
	Domain               DomainSeparator
	HooksTrampoline      domain.Token
	MaxConcurrentLookups int64
}

// OnchainOrderParser is C5: it turns (Event, Log) batches into the five
// persisted relations named in §6, under a single watermark.
type OnchainOrderParser struct {
	cfg     ParserConfig
	store   storage.Store
	quoting OrderQuoting
	appData AppDataStore
	ts      BlockTimestamps
	ethflow OnchainOrderParsing[EthFlowData, storage.EthFlowRow]
	metrics *Metrics
	log     *zap.Logger
}

// NewOnchainOrderParser wires the indexer's collaborators together. metrics
// may be nil, in which case observations are silently dropped.
func NewOnchainOrderParser(cfg ParserConfig, store storage.Store, quoting OrderQuoting, appData AppDataStore, ts BlockTimestamps, metrics *Metrics, log *zap.Logger) *OnchainOrderParser {
	if cfg.MaxConcurrentLookups <= 0 {
		cfg.MaxConcurrentLookups = 10
	}
	return &OnchainOrderParser{
		cfg:     cfg,
		store:   store,
		quoting: quoting,
		appData: appData,
		ts:      ts,
		ethflow: EthFlowParser{},
		metrics: metrics,
		log:     log,
	}
}

// LastEventBlock reads the persisted watermark for this indexer.
func (p *OnchainOrderParser) LastEventBlock() (uint64, bool, error) {
	return p.store.LastEventBlock(p.cfg.Name)
}

// PlacementUid re-derives the uid a placement event resolves to, without
// redoing quote/app-data/timestamp resolution. Used by callers (e.g. a
// WebSocket relay) that want to look up already-persisted state for an
// event they just saw applied.
func (p *OnchainOrderParser) PlacementUid(e EventLog) (domain.OrderUid, bool) {
	if e.Event.Placement == nil {
		return domain.OrderUid{}, false
	}
	decoded, err := decodePlacement(p.cfg.Domain, *e.Event.Placement)
	if err != nil {
		return domain.OrderUid{}, false
	}
	return decoded.Uid, true
}

// AppendEvents extends persisted state with newly observed events. It is
// idempotent on exact retransmission because every table write is
// on-conflict-ignore or on-conflict-update (§4.5 "append_events").
func (p *OnchainOrderParser) AppendEvents(ctx context.Context, events []EventLog) error {
	if len(events) == 0 {
		return nil
	}
	batch := p.store.NewBatch()
	if err := p.applyEvents(ctx, batch, events); err != nil {
		batch.Discard()
		return err
	}
	p.advanceWatermark(batch, events)
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit append_events: %w", err)
	}
	return nil
}

// ReplaceEvents marks every broadcast row at or after rangeStart as
// reorged, deletes every invalidation row at or after rangeStart, and
// then applies events, used on reorg (§4.5 "replace_events"). Order,
// quote and interaction rows are left in place.
func (p *OnchainOrderParser) ReplaceEvents(ctx context.Context, events []EventLog, rangeStart uint64) error {
	batch := p.store.NewBatch()
	if err := batch.MarkReorgedFrom(rangeStart); err != nil {
		batch.Discard()
		return fmt.Errorf("mark reorged: %w", err)
	}
	if err := batch.DeleteInvalidationsFrom(rangeStart); err != nil {
		batch.Discard()
		return fmt.Errorf("delete invalidations: %w", err)
	}
	if err := p.applyEvents(ctx, batch, events); err != nil {
		batch.Discard()
		return err
	}
	p.advanceWatermark(batch, events)
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit replace_events: %w", err)
	}
	return nil
}

func (p *OnchainOrderParser) advanceWatermark(batch storage.Batch, events []EventLog) {
	var max uint64
	for _, e := range events {
		if e.Log.BlockNumber > max {
			max = e.Log.BlockNumber
		}
	}
	batch.PersistLastIndexedBlock(p.cfg.Name, max)
}

// applyEvents is the transactional unit described in §4.5: partition,
// resolve placements with bounded-concurrency I/O, then write everything
// serially into batch.
func (p *OnchainOrderParser) applyEvents(ctx context.Context, batch storage.Batch, events []EventLog) error {
	placements, invalidations := PartitionEvents(events)

	for _, inv := range invalidations {
		batch.InsertInvalidation(storage.InvalidationRow{
			Uid:         inv.Event.Invalidation.OrderUid,
			BlockNumber: inv.Log.BlockNumber,
		})
	}

	customData, err := p.ethflow.ParseCustomEventData(placements)
	if err != nil {
		return fmt.Errorf("parse custom event data: %w", err)
	}
	ethflowRaw := make(map[EventIndex]EthFlowData, len(customData))
	for idx, entry := range customData {
		if entry.Ok {
			ethflowRaw[idx] = entry.Data
		}
	}

	resolved, err := p.resolvePlacements(ctx, placements, customData)
	if err != nil {
		return err
	}

	nextIndex := map[domain.OrderUid]map[storage.InteractionExecution]int{}
	var ethflowRows []storage.EthFlowRow
	for i, r := range resolved {
		if r.err != nil {
			p.log.Debug("dropping unparsable placement", zap.Error(r.err), zap.Uint64("block", placements[i].Log.BlockNumber))
			p.metrics.RecordError("bad_parsing")
			continue
		}
		p.writeResolvedPlacement(batch, placements[i].Log.BlockNumber, r, nextIndex)
		idx := placements[i].Log.Index()
		if entry, ok := customData[idx]; ok && entry.Ok {
			row := p.ethflow.CustomizedEventDataForEventIndex(idx, r.uid, ethflowRaw, *placements[i].Event.Placement)
			ethflowRows = append(ethflowRows, row)
		}
	}
	p.ethflow.AppendCustomOrderInfoToDB(batch, ethflowRows)
	return nil
}

func (p *OnchainOrderParser) writeResolvedPlacement(batch storage.Batch, blockNumber uint64, r resolvedPlacement, nextIndex map[domain.OrderUid]map[storage.InteractionExecution]int) {
	batch.InsertBroadcast(storage.BroadcastRow{
		Uid:            r.uid,
		Sender:         r.sender,
		BlockNumber:    blockNumber,
		BlockTimestamp: r.blockTimestamp,
		PlacementError: r.placementError,
	})

	class := storage.ClassLimit
	if r.isMarket {
		class = storage.ClassMarket
	}
	batch.InsertOrder(storage.OrderRow{
		Uid:               r.uid,
		SellToken:         r.order.SellToken,
		BuyToken:          r.order.BuyToken,
		Receiver:          r.receiver,
		SellAmount:        r.order.SellAmount,
		BuyAmount:         r.order.BuyAmount,
		ValidTo:           r.order.ValidTo,
		AppData:           r.order.AppData,
		FeeAmount:         r.order.FeeAmount,
		Kind:              r.order.Kind.toSide(),
		PartiallyFillable: r.order.PartiallyFillable,
		Class:             class,
	})

	if r.quote != nil {
		batch.InsertQuote(storage.QuoteRow{
			Uid:            r.uid,
			QuoteID:        r.quote.ID,
			SellAmount:     r.quote.SellAmount,
			BuyAmount:      r.quote.BuyAmount,
			GasAmount:      r.quote.Fee.GasAmount,
			GasPrice:       r.quote.Fee.GasPrice,
			SellTokenPrice: r.quote.Fee.SellTokenPrice,
			Solver:         r.quote.Solver,
			Verified:       r.quote.Verified,
			Metadata:       r.quote.Metadata,
			QuoteKind:      QuoteKindForScheme(r.scheme).String(),
		})
	}

	writeHooks := func(hooks []Hook, execution storage.InteractionExecution) {
		if len(hooks) == 0 {
			return
		}
		interaction, err := BuildHookInteraction(p.cfg.HooksTrampoline, hooks)
		if err != nil {
			p.log.Warn("dropping hooks, failed to build trampoline interaction", zap.Error(err), zap.Stringer("uid", r.uid))
			p.metrics.RecordError("bad_parsing")
			return
		}
		if nextIndex[r.uid] == nil {
			nextIndex[r.uid] = map[storage.InteractionExecution]int{}
		}
		index, ok := nextIndex[r.uid][execution]
		if !ok {
			count, err := p.store.InteractionCount(r.uid, execution)
			if err != nil {
				p.log.Warn("failed to read existing interaction count", zap.Error(err), zap.Stringer("uid", r.uid))
				count = 0
			}
			index = NextInteractionIndex(count)
		}
		batch.InsertInteraction(storage.InteractionRow{
			Uid: r.uid, Index: index, Execution: execution,
			Target: interaction.Target, CallData: interaction.CallData, GasLimit: interaction.GasLimit,
		})
		nextIndex[r.uid][execution] = index + 1
	}
	if r.appData != nil {
		writeHooks(r.appData.PreHooks, storage.ExecutionPre)
		writeHooks(r.appData.PostHooks, storage.ExecutionPost)
	}
}

// resolvedPlacement is the per-event output of the bounded-concurrency
// fan-out: everything I/O-dependent (timestamp, quote, app-data) has
// already been resolved, leaving only serial DB writes.
type resolvedPlacement struct {
	uid            domain.OrderUid
	sender         domain.Token
	receiver       *domain.Token
	scheme         domain.SigningScheme
	order          RawOrderData
	isMarket       bool
	blockTimestamp uint32
	placementError string
	quote          *Quote
	appData        *ParsedAppData
	err            error
}

// resolvePlacements fans out timestamp and quote lookups across
// placements with at most MaxConcurrentLookups in flight (§4.5 step 3-4,
// §5 "Indexer concurrency"), returning one resolvedPlacement per input
// in the same order.
func (p *OnchainOrderParser) resolvePlacements(ctx context.Context, placements []EventLog, customData map[EventIndex]OnchainOrderCustomData[EthFlowData]) ([]resolvedPlacement, error) {
	out := make([]resolvedPlacement, len(placements))
	if len(placements) == 0 {
		return out, nil
	}

	sem := semaphore.NewWeighted(p.cfg.MaxConcurrentLookups)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var fatalErr error

	for i, e := range placements {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, fmt.Errorf("acquire lookup slot: %w", err)
		}
		wg.Add(1)
		var quoteID *int64
		if entry, ok := customData[e.Log.Index()]; ok {
			quoteID = entry.QuoteID
		}
		go func(i int, e EventLog, quoteID *int64) {
			defer wg.Done()
			defer sem.Release(1)
			result, fatal := p.resolveOne(ctx, e, quoteID)
			out[i] = result
			if fatal != nil {
				mu.Lock()
				if fatalErr == nil {
					fatalErr = fatal
				}
				mu.Unlock()
			}
		}(i, e, quoteID)
	}

	wg.Wait()
	if fatalErr != nil {
		return nil, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *OnchainOrderParser) resolveOne(ctx context.Context, e EventLog, quoteID *int64) (resolvedPlacement, error) {
	placement := e.Event.Placement
	decoded, err := decodePlacement(p.cfg.Domain, *placement)
	if err != nil {
		if errors.Is(err, ErrUnknownSigningScheme) {
			return resolvedPlacement{}, fmt.Errorf("protocol violation at block %d: %w", e.Log.BlockNumber, err)
		}
		return resolvedPlacement{err: err}, nil
	}

	result := resolvedPlacement{
		uid:      decoded.Uid,
		sender:   placement.Sender,
		receiver: decoded.Receiver,
		scheme:   decoded.SigningScheme,
		order:    placement.Order,
		isMarket: orderClass(placement.Order),
	}

	if ts, err := p.ts.BlockTimestamp(ctx, e.Log.BlockNumber); err != nil {
		p.log.Debug("block timestamp lookup failed, continuing without it", zap.Error(err))
	} else {
		result.blockTimestamp = ts
	}

	quote, qerr := p.quoting.FindQuote(ctx, quoteID, QuoteSearchParameters{
		SellToken: placement.Order.SellToken,
		BuyToken:  placement.Order.BuyToken,
		Side:      placement.Order.Kind.toSide(),
		Amount:    placement.Order.SellAmount,
	})
	switch {
	case quoteID != nil && !placement.Order.FeeAmount.IsZero():
		// A quote-bound placement's fee comes from the resolved quote, not
		// the order itself (§4.5 step 4); a non-zero fee alongside a
		// supplied quote_id is a placement-level validation failure
		// independent of whether the quote lookup itself succeeded.
		result.placementError = PlacementNonZeroFee.String()
		p.metrics.RecordError("placement_" + PlacementNonZeroFee.String())
	case qerr != nil:
		kind := ClassifyPlacementError(qerr)
		result.placementError = kind.String()
		p.metrics.RecordError("placement_" + kind.String())
	default:
		result.quote = &quote
		if outsideMarketPrice(placement.Order, quote) {
			p.metrics.RecordOutsideMarketPrice()
		}
	}

	if raw, ok, ferr := p.appData.Fetch(ctx, placement.Order.AppData); ferr == nil && ok {
		if parsed, perr := p.appData.Parse(raw); perr == nil {
			result.appData = &parsed
		}
	} else if ferr == nil && !ok {
		p.metrics.RecordError("no_metadata")
	}

	return result, nil
}
