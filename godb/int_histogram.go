package godb

import "sort"

// IntHistogram partitions [vMin, vMax] into nBins integer-aligned buckets of
// as-equal-as-possible width and tracks a per-bucket count in a fenwickTree,
// so range-selectivity estimates (EstimateSelectivity with LessThan /
// GreaterThan) are a prefix-sum query rather than an O(buckets) scan.
type IntHistogram struct {
	min     int64
	max     int64
	start   []int64
	size    []int64
	buckets *fenwickTree
}

// NewIntHistogram creates a new IntHistogram with the specified number of bins,
// or one bin per integer when [vMin, vMax] holds fewer integers than nBins.
//
// Min and max specify the range of values that the histogram will cover
// (inclusive).
func NewIntHistogram(nBins int64, vMin int64, vMax int64) (*IntHistogram, error) {
	if nBins <= 0 {
		return nil, newErr(DbError, "IntHistogram requires at least one bucket")
	}
	if vMin > vMax {
		return nil, newErr(DbError, "IntHistogram requires min <= max")
	}

	span := vMax - vMin + 1
	if nBins > span {
		nBins = span
	}

	per := span / nBins
	extra := span % nBins

	start := make([]int64, nBins)
	size := make([]int64, nBins)
	cur := vMin
	for i := int64(0); i < nBins; i++ {
		w := per
		if i < extra {
			w++
		}
		start[i] = cur
		size[i] = w
		cur += w
	}

	return &IntHistogram{
		min:     vMin,
		max:     vMax,
		start:   start,
		size:    size,
		buckets: newFenwickTree(int(nBins)),
	}, nil
}

// bucketFor returns the index of the bucket covering v. The caller must
// ensure min <= v <= max.
func (h *IntHistogram) bucketFor(v int64) int {
	idx := sort.Search(len(h.start), func(i int) bool { return h.start[i] > v })
	return idx - 1
}

// Add a value v to the histogram.
func (h *IntHistogram) AddValue(v int64) {
	if v < h.min || v > h.max {
		return
	}
	h.buckets.add(h.bucketFor(v), 1)
}

// countEqual returns the (fractional) count of values equal to v, estimated
// as the bucket's density: its count spread uniformly over its width.
func (h *IntHistogram) countEqual(v int64) float64 {
	if v < h.min || v > h.max {
		return 0
	}
	b := h.bucketFor(v)
	cnt := h.buckets.rangeSum(b, b)
	return float64(cnt) / float64(h.size[b])
}

// countGreaterThan returns the (fractional) count of values strictly
// greater than v.
func (h *IntHistogram) countGreaterThan(v int64) float64 {
	if v < h.min {
		return float64(h.buckets.total())
	}
	if v >= h.max {
		return 0
	}
	b := h.bucketFor(v)
	bucketEnd := h.start[b] + h.size[b] - 1
	covered := bucketEnd - v
	if covered < 0 {
		covered = 0
	}
	cnt := h.buckets.rangeSum(b, b)
	partial := float64(cnt) * float64(covered) / float64(h.size[b])
	above := h.buckets.rangeSum(b+1, len(h.start)-1)
	return float64(above) + partial
}

// countLessThan returns the (fractional) count of values strictly less
// than v.
func (h *IntHistogram) countLessThan(v int64) float64 {
	if v <= h.min {
		return 0
	}
	if v > h.max {
		return float64(h.buckets.total())
	}
	b := h.bucketFor(v)
	covered := v - h.start[b]
	if covered < 0 {
		covered = 0
	}
	if covered > h.size[b] {
		covered = h.size[b]
	}
	cnt := h.buckets.rangeSum(b, b)
	partial := float64(cnt) * float64(covered) / float64(h.size[b])
	below := h.buckets.rangeSum(0, b-1)
	return float64(below) + partial
}

// Estimate the selectivity of a predicate and operand on the values represented
// by this histogram.
//
// For example, if op is LessThan and v is 10, return the fraction of values that
// are less than 10.
func (h *IntHistogram) EstimateSelectivity(op BoolOp, v int64) float64 {
	total := h.buckets.total()
	if total == 0 {
		return 0
	}
	n := float64(total)

	switch op {
	case Equals:
		return h.countEqual(v) / n
	case NotEquals:
		return 1 - h.countEqual(v)/n
	case GreaterThan:
		return h.countGreaterThan(v) / n
	case GreaterThanOrEqual:
		return h.countGreaterThan(v-1) / n
	case LessThan:
		return h.countLessThan(v) / n
	case LessThanOrEqual:
		return h.countLessThan(v+1) / n
	default:
		return 0
	}
}
