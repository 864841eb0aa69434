package onchain

import (
	"encoding/binary"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/cowbatch/auction-pipeline/pkg/storage"
)

// OnchainOrderCustomData is the per-event output of a sub-parser's first
// pass over a batch: every parser must surface a quote_id (§4.5 step 4
// requires one for quote resolution, whether or not this placement
// belongs to this parser's own kind), plus, when Ok, the kind-specific
// payload recognized for this event.
type OnchainOrderCustomData[EventData any] struct {
	QuoteID *int64
	Data    EventData
	Ok      bool
}

// OnchainOrderParsing is the pluggable sub-parser contract named in §4.5's
// transactional unit ("insert custom per-order-kind rows ... delegated to
// a pluggable sub-parser"). A concrete order kind (ethflow orders, etc.)
// implements it to recognize its own placements, decode their
// solver-supplied quote_id ahead of quote resolution, and project
// recognized placements into its own persisted row shape — independent of
// the generic orders/broadcast tables every placement gets. Grounded on
// original_source's `OnchainOrderParsing` trait (autopilot's
// onchain_order_events/mod.rs): a first pass keyed by EventIndex supplies
// quote_id before quotes are resolved, a second pass turns resolved
// order+custom data into the persisted row, and a final pass stages it.
type OnchainOrderParsing[EventData any, EventRow any] interface {
	// ParseCustomEventData runs once per batch, before quote resolution,
	// across every placement event so a parser can decode whatever
	// quote_id and kind-specific payload each event carries.
	ParseCustomEventData(events []EventLog) (map[EventIndex]OnchainOrderCustomData[EventData], error)
	// CustomizedEventDataForEventIndex projects one already-resolved
	// event (its derived uid and the first pass's decoded data for every
	// event in the batch) into the row this kind persists.
	CustomizedEventDataForEventIndex(index EventIndex, uid domain.OrderUid, data map[EventIndex]EventData, placement OrderPlacementEvent) EventRow
	// AppendCustomOrderInfoToDB stages every row this kind produced for
	// the current batch.
	AppendCustomOrderInfoToDB(batch storage.Batch, rows []EventRow)
}

// decodeQuoteID reads a big-endian int64 quote_id from a placement's
// scheme-specific Data, or nil when none was supplied.
func decodeQuoteID(data []byte) *int64 {
	if len(data) < 8 {
		return nil
	}
	id := int64(binary.BigEndian.Uint64(data[:8]))
	return &id
}

// EthFlowData is the subset of a placement relevant to ethflow orders:
// native-token sell orders that the settlement contract itself places on
// a user's behalf, refundable by the user once expired.
type EthFlowData struct {
	OrderUid domain.OrderUid
	Owner    domain.Token
	ValidTo  uint32
}

// EthFlowParser recognizes ethflow placements: a sell leg denominated in
// the native-token sentinel.
type EthFlowParser struct{}

var _ OnchainOrderParsing[EthFlowData, storage.EthFlowRow] = EthFlowParser{}

func (EthFlowParser) ParseCustomEventData(events []EventLog) (map[EventIndex]OnchainOrderCustomData[EthFlowData], error) {
	out := make(map[EventIndex]OnchainOrderCustomData[EthFlowData], len(events))
	for _, e := range events {
		placement := e.Event.Placement
		if placement == nil {
			continue
		}
		out[e.Log.Index()] = OnchainOrderCustomData[EthFlowData]{
			QuoteID: decodeQuoteID(placement.Data),
			Ok:      placement.Order.SellToken == domain.NativeToken,
		}
	}
	return out, nil
}

func (EthFlowParser) CustomizedEventDataForEventIndex(index EventIndex, uid domain.OrderUid, data map[EventIndex]EthFlowData, placement OrderPlacementEvent) storage.EthFlowRow {
	return storage.EthFlowRow{Uid: uid, Owner: uid.Owner(), ValidTo: placement.Order.ValidTo}
}

func (EthFlowParser) AppendCustomOrderInfoToDB(batch storage.Batch, rows []storage.EthFlowRow) {
	for _, row := range rows {
		batch.InsertEthFlowOrder(row)
	}
}
