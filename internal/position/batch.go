package position

import "fmt"

// IndexRange is an inclusive range of indices.
type IndexRange struct {
	From uint64
	To   uint64
}

// Len returns the number of indices covered.
func (r IndexRange) Len() int {
	return int(r.To - r.From + 1)
}

// SplitRange splits [0, count) into consecutive batches of at most batchSize.
func SplitRange(count, batchSize uint64) ([]IndexRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if count == 0 {
		return nil, nil
	}

	ranges := make([]IndexRange, 0, (count+batchSize-1)/batchSize)
	for start := uint64(0); start < count; {
		r := batchAt(start, count, batchSize)
		ranges = append(ranges, r)
		start = r.To + 1
	}
	return ranges, nil
}

// batchAt returns the batch of [0, count) that starts at start. start must be
// below count and batchSize above zero.
func batchAt(start, count, batchSize uint64) IndexRange {
	end := count - 1
	if count-start > batchSize {
		end = start + batchSize - 1
	}
	return IndexRange{From: start, To: end}
}
