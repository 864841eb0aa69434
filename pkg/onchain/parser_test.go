package onchain

import (
	"context"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/cowbatch/auction-pipeline/pkg/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func quoteIDBytes(id int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return b[:]
}

var (
	sender      = common.HexToAddress("0x00000000000000000000000000000000001111")
	sellToken   = common.HexToAddress("0x00000000000000000000000000000000002222")
	buyToken    = common.HexToAddress("0x00000000000000000000000000000000003333")
	trampoline  = common.HexToAddress("0x00000000000000000000000000000000004444")
	appDataHash = common.HexToHash("0xaaaa000000000000000000000000000000000000000000000000000000bb")
)

type fakeQuoting struct {
	quote Quote
	err   error
}

func (f fakeQuoting) FindQuote(ctx context.Context, quoteID *int64, params QuoteSearchParameters) (Quote, error) {
	return f.quote, f.err
}

type fakeAppData struct {
	raw    []byte
	found  bool
	hooks  ParsedAppData
	parsed bool
}

func (f fakeAppData) Fetch(ctx context.Context, hash common.Hash) ([]byte, bool, error) {
	return f.raw, f.found, nil
}

func (f fakeAppData) Parse(raw []byte) (ParsedAppData, error) {
	if !f.parsed {
		return ParsedAppData{}, errors.New("unparseable")
	}
	return f.hooks, nil
}

type fakeTimestamps struct{ ts uint32 }

func (f fakeTimestamps) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint32, error) {
	return f.ts, nil
}

func testOrder(feeAmount uint64) RawOrderData {
	return RawOrderData{
		SellToken:  sellToken,
		BuyToken:   buyToken,
		SellAmount: domain.NewTokenAmountFromUint64(1_000_000),
		BuyAmount:  domain.NewTokenAmountFromUint64(900_000),
		ValidTo:    1_700_000_000,
		AppData:    appDataHash,
		FeeAmount:  domain.NewTokenAmountFromUint64(feeAmount),
		Kind:       KindSell,
	}
}

func presignPlacement(feeAmount uint64) OrderPlacementEvent {
	return OrderPlacementEvent{
		Sender:    sender,
		Order:     testOrder(feeAmount),
		Signature: Signature{Scheme: 1},
	}
}

func newTestParser(quoting OrderQuoting, appData AppDataStore) (*OnchainOrderParser, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	cfg := ParserConfig{
		Name:            "onchain_orders",
		Domain:          DomainSeparator{Name: "test", Version: "1", ChainID: 1, VerifyingContract: common.Address{}},
		HooksTrampoline: trampoline,
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	p := NewOnchainOrderParser(cfg, store, quoting, appData, fakeTimestamps{ts: 1234}, metrics, zap.NewNop())
	return p, store
}

// S5 analogue: happy-path placement. A market order (fee > 0) with a
// resolvable quote gets an orders row, a broadcast row, and a quotes row.
func TestAppendEvents_HappyPathPlacement(t *testing.T) {
	quoting := fakeQuoting{quote: Quote{
		ID:         7,
		SellAmount: domain.NewTokenAmountFromUint64(1_000_000),
		BuyAmount:  domain.NewTokenAmountFromUint64(900_000),
		Fee:        FeeParameters{GasAmount: 1000, GasPrice: 1, SellTokenPrice: 1},
	}}
	p, store := newTestParser(quoting, fakeAppData{})

	placement := presignPlacement(1000)
	log := Log{BlockNumber: 10, LogIndex: 0}
	events := []EventLog{{Event: ContractEvent{Placement: &placement}, Log: log}}

	if err := p.AppendEvents(context.Background(), events); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}

	orders := store.Orders()
	if len(orders) != 1 {
		t.Fatalf("expected 1 order row, got %d", len(orders))
	}
	var uid domain.OrderUid
	for u := range orders {
		uid = u
	}
	if orders[uid].Class != storage.ClassMarket {
		t.Errorf("expected market class for fee_amount > 0, got %v", orders[uid].Class)
	}
	if uid.Owner() != sender {
		t.Errorf("pre-sign owner should be sender: got %s want %s", uid.Owner(), sender)
	}

	broadcasts := store.Broadcasts()
	if broadcasts[uid].Sender != sender || broadcasts[uid].PlacementError != "" {
		t.Errorf("unexpected broadcast row: %+v", broadcasts[uid])
	}

	block, ok, err := p.LastEventBlock()
	if err != nil || !ok || block != 10 {
		t.Fatalf("watermark = (%d, %v, %v), want (10, true, nil)", block, ok, err)
	}
}

// Quote resolution failure: the order still enters the orders table (so
// it can later be pre-signed) but no quote row is written, and the
// classified error is recorded on the broadcast row (§7).
func TestAppendEvents_QuoteResolutionError(t *testing.T) {
	quoting := fakeQuoting{err: ErrQuoteNotFound}
	p, store := newTestParser(quoting, fakeAppData{})

	placement := presignPlacement(1000)
	events := []EventLog{{Event: ContractEvent{Placement: &placement}, Log: Log{BlockNumber: 5}}}

	if err := p.AppendEvents(context.Background(), events); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}

	if len(store.Orders()) != 1 {
		t.Fatalf("order row should still be written on quote failure")
	}
	var broadcast storage.BroadcastRow
	for _, b := range store.Broadcasts() {
		broadcast = b
	}
	if broadcast.PlacementError != PlacementOther.String() {
		t.Errorf("placement_error = %q, want %q", broadcast.PlacementError, PlacementOther.String())
	}
}

// A parameter-mismatch quote error is recorded as the placement-level
// PreValidationError, not the generic QuoteErrorKind string (§4.5 step 4's
// classification is distinct from §6's OrderQuoting error surface).
func TestAppendEvents_QuoteParameterMismatchIsPreValidationError(t *testing.T) {
	quoting := fakeQuoting{err: ErrQuoteParameterMismatch}
	p, store := newTestParser(quoting, fakeAppData{})

	placement := presignPlacement(1000)
	events := []EventLog{{Event: ContractEvent{Placement: &placement}, Log: Log{BlockNumber: 5}}}

	if err := p.AppendEvents(context.Background(), events); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	var broadcast storage.BroadcastRow
	for _, b := range store.Broadcasts() {
		broadcast = b
	}
	if broadcast.PlacementError != PlacementPreValidationError.String() {
		t.Errorf("placement_error = %q, want %q", broadcast.PlacementError, PlacementPreValidationError.String())
	}
}

// A placement carrying a solver-supplied quote_id (threaded through
// FindQuote's quoteID parameter) alongside a non-zero order fee_amount is
// classified NonZeroFee, even though the quote lookup itself succeeds.
func TestAppendEvents_QuoteIDWithNonZeroFee(t *testing.T) {
	quoting := fakeQuoting{quote: Quote{
		ID:         7,
		SellAmount: domain.NewTokenAmountFromUint64(1_000_000),
		BuyAmount:  domain.NewTokenAmountFromUint64(900_000),
		Fee:        FeeParameters{GasAmount: 1000, GasPrice: 1, SellTokenPrice: 1},
	}}
	p, store := newTestParser(quoting, fakeAppData{})

	placement := presignPlacement(1000)
	placement.Data = quoteIDBytes(42)
	events := []EventLog{{Event: ContractEvent{Placement: &placement}, Log: Log{BlockNumber: 5}}}

	if err := p.AppendEvents(context.Background(), events); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	var uid domain.OrderUid
	var broadcast storage.BroadcastRow
	for u, b := range store.Broadcasts() {
		uid, broadcast = u, b
	}
	if broadcast.PlacementError != PlacementNonZeroFee.String() {
		t.Errorf("placement_error = %q, want %q", broadcast.PlacementError, PlacementNonZeroFee.String())
	}
	if _, found, _ := store.GetQuote(uid); found {
		t.Errorf("expected no quote row when placement is rejected as NonZeroFee")
	}
}

// Protocol-violation: an unrecognized signature scheme aborts the whole
// batch with no partial writes and no watermark advance (§7).
func TestAppendEvents_ProtocolViolationAbortsBatch(t *testing.T) {
	quoting := fakeQuoting{quote: Quote{}}
	p, store := newTestParser(quoting, fakeAppData{})

	placement := presignPlacement(1000)
	placement.Signature.Scheme = 7
	events := []EventLog{{Event: ContractEvent{Placement: &placement}, Log: Log{BlockNumber: 5}}}

	err := p.AppendEvents(context.Background(), events)
	if err == nil {
		t.Fatal("expected protocol-violation error")
	}
	if len(store.Orders()) != 0 || len(store.Broadcasts()) != 0 {
		t.Fatalf("expected no partial writes, got %d orders, %d broadcasts", len(store.Orders()), len(store.Broadcasts()))
	}
	if _, ok, _ := p.LastEventBlock(); ok {
		t.Fatal("watermark must not advance on an aborted batch")
	}
}

// S6 analogue: reorg replay. A placement at block 10 is marked reorged
// once a range starting at block 10 is replaced, and the replacement
// batch's own events land normally.
func TestReplaceEvents_ReorgMarksPriorBroadcastReorged(t *testing.T) {
	quoting := fakeQuoting{quote: Quote{
		ID:         7,
		SellAmount: domain.NewTokenAmountFromUint64(1_000_000),
		BuyAmount:  domain.NewTokenAmountFromUint64(900_000),
		Fee:        FeeParameters{GasAmount: 1000, GasPrice: 1, SellTokenPrice: 1},
	}}
	p, store := newTestParser(quoting, fakeAppData{})

	placement := presignPlacement(1000)
	first := []EventLog{{Event: ContractEvent{Placement: &placement}, Log: Log{BlockNumber: 10}}}
	if err := p.AppendEvents(context.Background(), first); err != nil {
		t.Fatalf("initial AppendEvents: %v", err)
	}
	var originalUid domain.OrderUid
	for u := range store.Orders() {
		originalUid = u
	}

	reorgPlacement := presignPlacement(2000)
	reorgPlacement.Order.BuyAmount = domain.NewTokenAmountFromUint64(800_000)
	replacement := []EventLog{{Event: ContractEvent{Placement: &reorgPlacement}, Log: Log{BlockNumber: 11}}}

	if err := p.ReplaceEvents(context.Background(), replacement, 10); err != nil {
		t.Fatalf("ReplaceEvents: %v", err)
	}

	broadcasts := store.Broadcasts()
	if !broadcasts[originalUid].Reorged {
		t.Errorf("original block-10 broadcast should be marked reorged")
	}

	block, ok, err := p.LastEventBlock()
	if err != nil || !ok || block != 11 {
		t.Fatalf("watermark after replace = (%d, %v, %v), want (11, true, nil)", block, ok, err)
	}
}

// Invalidations partition independently of placements and persist
// directly, with no I/O resolution needed.
func TestAppendEvents_Invalidation(t *testing.T) {
	p, store := newTestParser(fakeQuoting{}, fakeAppData{})

	var uid domain.OrderUid
	uid[0] = 0x42
	inv := OrderInvalidationEvent{OrderUid: uid}
	events := []EventLog{{Event: ContractEvent{Invalidation: &inv}, Log: Log{BlockNumber: 3}}}

	if err := p.AppendEvents(context.Background(), events); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	rows := store.Invalidations()
	if len(rows) != 1 || rows[0].Uid != uid || rows[0].BlockNumber != 3 {
		t.Fatalf("unexpected invalidation rows: %+v", rows)
	}
}

// Non-empty pre-hooks get wrapped into a single trampoline interaction
// whose index starts at 0 for a fresh order.
func TestAppendEvents_HooksBuildTrampolineInteraction(t *testing.T) {
	quoting := fakeQuoting{quote: Quote{
		ID:         7,
		SellAmount: domain.NewTokenAmountFromUint64(1_000_000),
		BuyAmount:  domain.NewTokenAmountFromUint64(900_000),
		Fee:        FeeParameters{GasAmount: 1000, GasPrice: 1, SellTokenPrice: 1},
	}}
	appData := fakeAppData{found: true, parsed: true, hooks: ParsedAppData{
		PreHooks: []Hook{{Target: sellToken, CallData: []byte{0x01}, GasLimit: 50_000}},
	}}
	p, store := newTestParser(quoting, appData)

	placement := presignPlacement(1000)
	events := []EventLog{{Event: ContractEvent{Placement: &placement}, Log: Log{BlockNumber: 1}}}
	if err := p.AppendEvents(context.Background(), events); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}

	rows := store.Interactions()
	if len(rows) != 1 {
		t.Fatalf("expected 1 interaction row, got %d", len(rows))
	}
	if rows[0].Index != 0 || rows[0].Execution != storage.ExecutionPre || rows[0].Target != trampoline {
		t.Errorf("unexpected interaction row: %+v", rows[0])
	}
}

// The quote row carries the full resolved quote: its id, fee parameters,
// and the quote kind derived from the placement's signing scheme
// (pre-sign placements store presignonchainorder rows). Verification is
// disabled for on-chain orders, so the row is never marked verified.
func TestAppendEvents_QuoteRowContents(t *testing.T) {
	quoting := fakeQuoting{quote: Quote{
		ID:         7,
		SellAmount: domain.NewTokenAmountFromUint64(1_000_000),
		BuyAmount:  domain.NewTokenAmountFromUint64(900_000),
		Fee:        FeeParameters{GasAmount: 1000, GasPrice: 1, SellTokenPrice: 1},
	}}
	p, store := newTestParser(quoting, fakeAppData{})

	placement := presignPlacement(1000)
	events := []EventLog{{Event: ContractEvent{Placement: &placement}, Log: Log{BlockNumber: 2}}}
	if err := p.AppendEvents(context.Background(), events); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}

	quotes := store.Quotes()
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote row, got %d", len(quotes))
	}
	for _, row := range quotes {
		if row.QuoteID != 7 {
			t.Errorf("quote id = %d, want 7", row.QuoteID)
		}
		if row.QuoteKind != QuoteKindPreSignOnchainOrder.String() {
			t.Errorf("quote kind = %q, want %q", row.QuoteKind, QuoteKindPreSignOnchainOrder)
		}
		if row.Verified {
			t.Error("on-chain order quotes must not be marked verified")
		}
		if row.GasAmount != 1000 || row.GasPrice != 1 || row.SellTokenPrice != 1 {
			t.Errorf("unexpected fee parameters: %+v", row)
		}
	}
}

// Exact retransmission of the same batch leaves persisted state
// unchanged, and the number of order rows never exceeds the number of
// distinct placements in the stream.
func TestAppendEvents_ExactRetransmissionIsIdempotent(t *testing.T) {
	quoting := fakeQuoting{quote: Quote{
		ID:         7,
		SellAmount: domain.NewTokenAmountFromUint64(1_000_000),
		BuyAmount:  domain.NewTokenAmountFromUint64(900_000),
		Fee:        FeeParameters{GasAmount: 1000, GasPrice: 1, SellTokenPrice: 1},
	}}
	p, store := newTestParser(quoting, fakeAppData{})

	placement := presignPlacement(1000)
	var uid domain.OrderUid
	uid[0] = 0x99
	inv := OrderInvalidationEvent{OrderUid: uid}
	events := []EventLog{
		{Event: ContractEvent{Placement: &placement}, Log: Log{BlockNumber: 10, LogIndex: 0}},
		{Event: ContractEvent{Invalidation: &inv}, Log: Log{BlockNumber: 10, LogIndex: 1}},
	}

	if err := p.AppendEvents(context.Background(), events); err != nil {
		t.Fatalf("first AppendEvents: %v", err)
	}
	orders, broadcasts := store.Orders(), store.Broadcasts()
	quotes, invalidations := store.Quotes(), store.Invalidations()

	if err := p.AppendEvents(context.Background(), events); err != nil {
		t.Fatalf("second AppendEvents: %v", err)
	}
	if !reflect.DeepEqual(orders, store.Orders()) {
		t.Error("order rows changed on exact retransmission")
	}
	if !reflect.DeepEqual(broadcasts, store.Broadcasts()) {
		t.Error("broadcast rows changed on exact retransmission")
	}
	if !reflect.DeepEqual(quotes, store.Quotes()) {
		t.Error("quote rows changed on exact retransmission")
	}
	if !reflect.DeepEqual(invalidations, store.Invalidations()) {
		t.Error("invalidation rows changed on exact retransmission")
	}
	if len(store.Orders()) != 1 {
		t.Errorf("expected exactly 1 order row for 1 distinct placement, got %d", len(store.Orders()))
	}
}

// append_events(E) followed by replace_events(E, range) over the covering
// range converges on the same persisted state as a single
// replace_events(E, range): the replay clears the reorged flag the
// replacement's first phase set, reinserts the deleted invalidations, and
// touches nothing else.
func TestReplaceAfterAppendMatchesReplaceAlone(t *testing.T) {
	quote := Quote{
		ID:         7,
		SellAmount: domain.NewTokenAmountFromUint64(1_000_000),
		BuyAmount:  domain.NewTokenAmountFromUint64(900_000),
		Fee:        FeeParameters{GasAmount: 1000, GasPrice: 1, SellTokenPrice: 1},
	}

	placement := presignPlacement(1000)
	var uid domain.OrderUid
	uid[0] = 0x55
	inv := OrderInvalidationEvent{OrderUid: uid}
	events := []EventLog{
		{Event: ContractEvent{Placement: &placement}, Log: Log{BlockNumber: 10, LogIndex: 0}},
		{Event: ContractEvent{Invalidation: &inv}, Log: Log{BlockNumber: 10, LogIndex: 1}},
	}

	appended, appendedStore := newTestParser(fakeQuoting{quote: quote}, fakeAppData{})
	if err := appended.AppendEvents(context.Background(), events); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	if err := appended.ReplaceEvents(context.Background(), events, 10); err != nil {
		t.Fatalf("ReplaceEvents after append: %v", err)
	}

	replaced, replacedStore := newTestParser(fakeQuoting{quote: quote}, fakeAppData{})
	if err := replaced.ReplaceEvents(context.Background(), events, 10); err != nil {
		t.Fatalf("ReplaceEvents alone: %v", err)
	}

	if !reflect.DeepEqual(appendedStore.Orders(), replacedStore.Orders()) {
		t.Error("order rows diverge between append+replace and replace alone")
	}
	if !reflect.DeepEqual(appendedStore.Broadcasts(), replacedStore.Broadcasts()) {
		t.Errorf("broadcast rows diverge: %+v vs %+v", appendedStore.Broadcasts(), replacedStore.Broadcasts())
	}
	if !reflect.DeepEqual(appendedStore.Quotes(), replacedStore.Quotes()) {
		t.Error("quote rows diverge between append+replace and replace alone")
	}
	if !reflect.DeepEqual(appendedStore.Invalidations(), replacedStore.Invalidations()) {
		t.Error("invalidation rows diverge between append+replace and replace alone")
	}
}
