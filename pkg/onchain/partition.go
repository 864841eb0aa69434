package onchain

// PartitionEvents splits a chain-ordered batch into placements and
// invalidations while preserving each bucket's relative order, the same
// two-bucket-by-tag split the teacher's mempool classifier performs on
// raw transactions (§4.5 step 1).
func PartitionEvents(events []EventLog) (placements, invalidations []EventLog) {
	for _, e := range events {
		switch {
		case e.Event.Placement != nil:
			placements = append(placements, e)
		case e.Event.Invalidation != nil:
			invalidations = append(invalidations, e)
		}
	}
	return placements, invalidations
}
