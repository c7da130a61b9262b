package godb

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStatsHeapFile(t *testing.T) (*BufferPool, *HeapFile) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "heap-*.dat")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	td := &TupleDesc{Fields: []FieldType{{Fname: "n", Ftype: IntType}, {Fname: "s", Ftype: StringType}}}
	catalog := NewCatalog()
	bp := NewBufferPool(defaultBufferPoolCapacity, catalog)
	hf, err := NewHeapFile(f.Name(), td, bp)
	require.NoError(t, err)
	catalog.AddTable("stats", hf)
	return bp, hf
}

func TestTableStatsEndToEnd(t *testing.T) {
	bp, hf := newStatsHeapFile(t)

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	names := []string{"a", "b", "a", "c", "a"}
	for i, name := range names {
		tup := &Tuple{Desc: *hf.Descriptor(), Fields: []Field{
			IntField{Value: int32(i * 10)},
			StringField{Value: name},
		}}
		require.NoError(t, bp.InsertTuple(tid, hf, tup))
	}
	bp.CommitTransaction(tid)

	stats, err := ComputeTableStats(bp, hf)
	require.NoError(t, err)

	assert.Equal(t, float64(hf.NumPages()*CostPerPage), stats.EstimateScanCost())
	assert.Equal(t, 3, stats.EstimateCardinality(0.5)) // round(5*0.5) = round(2.5) = 3

	sel, err := stats.EstimateSelectivity("n", GreaterThanOrEqual, IntField{Value: 0})
	require.NoError(t, err)
	assert.Equal(t, float64(1), sel)

	sel, err = stats.EstimateSelectivity("n", LessThan, IntField{Value: 0})
	require.NoError(t, err)
	assert.Equal(t, float64(0), sel)

	// "a" appears 3 of 5 times: the sketch should recover that it's the
	// heaviest hitter, something a uniform-bucket histogram estimate can't.
	freqA, err := stats.EstimateApproxFrequency("s", StringField{Value: "a"})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, freqA, 0.05)

	freqB, err := stats.EstimateApproxFrequency("s", StringField{Value: "b"})
	require.NoError(t, err)
	assert.Less(t, freqB, freqA)

	_, err = stats.EstimateApproxFrequency("nosuchfield", IntField{Value: 1})
	require.Error(t, err)
	code, ok := Code(err)
	require.True(t, ok)
	assert.Equal(t, NoSuchElementError, code)
}

func TestTableStatsUnknownFieldDefaultsToFullSelectivity(t *testing.T) {
	bp, hf := newStatsHeapFile(t)

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	tup := &Tuple{Desc: *hf.Descriptor(), Fields: []Field{IntField{Value: 1}, StringField{Value: "x"}}}
	require.NoError(t, bp.InsertTuple(tid, hf, tup))
	bp.CommitTransaction(tid)

	stats, err := ComputeTableStats(bp, hf)
	require.NoError(t, err)

	sel, err := stats.EstimateSelectivity("nosuchfield", Equals, IntField{Value: 1})
	require.NoError(t, err)
	assert.Equal(t, float64(1), sel)
}
