package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
)

// Key prefixes, following the teacher's account-store convention: a
// short tag, then enough of the natural key to support prefix scans
// where the table needs one.
const (
	prefixOrder        = "ord:"
	prefixBroadcast    = "bcast:"
	prefixQuote        = "quote:"
	prefixInteraction  = "inter:"
	prefixInvalidation = "inval:"
	prefixWatermark    = "wm:"
	prefixEthFlow      = "ethflow:"
)

func orderKey(uid domain.OrderUid) []byte {
	return append([]byte(prefixOrder), uid[:]...)
}

func broadcastKey(uid domain.OrderUid) []byte {
	return append([]byte(prefixBroadcast), uid[:]...)
}

func broadcastPrefix() []byte { return []byte(prefixBroadcast) }

func quoteKey(uid domain.OrderUid) []byte {
	return append([]byte(prefixQuote), uid[:]...)
}

func interactionKey(uid domain.OrderUid, execution InteractionExecution, index int) []byte {
	key := append([]byte(prefixInteraction), uid[:]...)
	key = append(key, byte(execution))
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(index))
	return append(key, idx[:]...)
}

func interactionPrefix(uid domain.OrderUid, execution InteractionExecution) []byte {
	key := append([]byte(prefixInteraction), uid[:]...)
	return append(key, byte(execution))
}

func invalidationKey(uid domain.OrderUid, blockNumber uint64) []byte {
	key := append([]byte(prefixInvalidation), uid[:]...)
	var blk [8]byte
	binary.BigEndian.PutUint64(blk[:], blockNumber)
	return append(key, blk[:]...)
}

func invalidationPrefix() []byte { return []byte(prefixInvalidation) }

func ethFlowKey(uid domain.OrderUid) []byte {
	return append([]byte(prefixEthFlow), uid[:]...)
}

func watermarkKey(name string) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixWatermark, name))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan,
// adapted from the teacher's account key-range helper.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
