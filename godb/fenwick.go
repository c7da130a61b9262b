package godb

// fenwickTree is a Binary Indexed Tree over n buckets supporting point
// update and prefix-sum query in O(log n), used by IntHistogram so that
// range selectivity estimates don't require an O(buckets) scan.
type fenwickTree struct {
	tree []int64
	n    int
}

func newFenwickTree(n int) *fenwickTree {
	return &fenwickTree{tree: make([]int64, n+1), n: n}
}

// add increments bucket i (0-indexed) by delta.
func (f *fenwickTree) add(i int, delta int64) {
	for i++; i <= f.n; i += i & (-i) {
		f.tree[i] += delta
	}
}

// prefixSum returns the sum of buckets [0, i] inclusive (0-indexed).
func (f *fenwickTree) prefixSum(i int) int64 {
	if i < 0 {
		return 0
	}
	if i >= f.n {
		i = f.n - 1
	}
	sum := int64(0)
	for i++; i > 0; i -= i & (-i) {
		sum += f.tree[i]
	}
	return sum
}

// rangeSum returns the sum of buckets [lo, hi] inclusive.
func (f *fenwickTree) rangeSum(lo, hi int) int64 {
	if hi < lo {
		return 0
	}
	return f.prefixSum(hi) - f.prefixSum(lo-1)
}

// total is the sum of every bucket.
func (f *fenwickTree) total() int64 {
	return f.prefixSum(f.n - 1)
}
