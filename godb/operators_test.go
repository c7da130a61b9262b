package godb

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpIntHeapFile(t *testing.T, fname string) (*BufferPool, *HeapFile) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "heap-*.dat")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	td := &TupleDesc{Fields: []FieldType{{Fname: fname, Ftype: IntType}}}
	catalog := NewCatalog()
	bp := NewBufferPool(defaultBufferPoolCapacity, catalog)
	hf, err := NewHeapFile(f.Name(), td, bp)
	require.NoError(t, err)
	catalog.AddTable(fname, hf)
	return bp, hf
}

func TestSeqScanContractAndNoSuchElement(t *testing.T) {
	bp, hf := newOpIntHeapFile(t, "n")

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	for _, v := range []int32{1, 2, 3} {
		require.NoError(t, bp.InsertTuple(tid, hf, &Tuple{Desc: *hf.Descriptor(), Fields: []Field{IntField{Value: v}}}))
	}
	bp.CommitTransaction(tid)

	scanTid := NewTID()
	scan := NewSeqScan(hf)
	require.NoError(t, scan.Open(scanTid))

	count := 0
	for {
		has, err := scan.HasNext()
		require.NoError(t, err)
		if !has {
			break
		}
		_, err = scan.Next()
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 3, count)

	// Past end of stream, Next reports NoSuchElementError.
	_, err := scan.Next()
	require.Error(t, err)
	code, ok := Code(err)
	require.True(t, ok)
	assert.Equal(t, NoSuchElementError, code)

	require.NoError(t, scan.Rewind())
	has, err := scan.HasNext()
	require.NoError(t, err)
	assert.True(t, has)
	require.NoError(t, scan.Close())
}

func TestFilterAppliesPredicate(t *testing.T) {
	bp, hf := newOpIntHeapFile(t, "n")

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	for _, v := range []int32{1, 2, 3, 4, 5} {
		require.NoError(t, bp.InsertTuple(tid, hf, &Tuple{Desc: *hf.Descriptor(), Fields: []Field{IntField{Value: v}}}))
	}
	bp.CommitTransaction(tid)

	scanTid := NewTID()
	filter := NewFilter(&Predicate{Field: "n", Op: GreaterThan, Value: IntField{Value: 2}}, NewSeqScan(hf))
	require.NoError(t, filter.Open(scanTid))
	defer filter.Close()

	var got []int32
	for {
		has, err := filter.HasNext()
		require.NoError(t, err)
		if !has {
			break
		}
		tup, err := filter.Next()
		require.NoError(t, err)
		got = append(got, tup.Fields[0].(IntField).Value)
	}
	assert.ElementsMatch(t, []int32{3, 4, 5}, got)
}

func TestJoinNestedLoopsRewindsInner(t *testing.T) {
	leftFile, err := os.CreateTemp(t.TempDir(), "left-*.dat")
	require.NoError(t, err)
	require.NoError(t, leftFile.Close())
	rightFile, err := os.CreateTemp(t.TempDir(), "right-*.dat")
	require.NoError(t, err)
	require.NoError(t, rightFile.Close())

	leftTd := &TupleDesc{Fields: []FieldType{{Fname: "id", Ftype: IntType}}}
	rightTd := &TupleDesc{Fields: []FieldType{{Fname: "owner_id", Ftype: IntType}, {Fname: "name", Ftype: StringType}}}

	catalog := NewCatalog()
	bp := NewBufferPool(defaultBufferPoolCapacity, catalog)
	left, err := NewHeapFile(leftFile.Name(), leftTd, bp)
	require.NoError(t, err)
	right, err := NewHeapFile(rightFile.Name(), rightTd, bp)
	require.NoError(t, err)
	catalog.AddTable("people", left)
	catalog.AddTable("pets", right)

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	for _, id := range []int32{1, 2} {
		require.NoError(t, bp.InsertTuple(tid, left, &Tuple{Desc: *leftTd, Fields: []Field{IntField{Value: id}}}))
	}
	pets := []struct {
		owner int32
		name  string
	}{{1, "fido"}, {1, "rex"}, {2, "tom"}}
	for _, p := range pets {
		require.NoError(t, bp.InsertTuple(tid, right, &Tuple{Desc: *rightTd, Fields: []Field{IntField{Value: p.owner}, StringField{Value: p.name}}}))
	}
	bp.CommitTransaction(tid)

	scanTid := NewTID()
	join := NewJoin(NewSeqScan(left), NewSeqScan(right), &JoinPredicate{LeftField: "id", Op: Equals, RightField: "owner_id"})
	require.NoError(t, join.Open(scanTid))
	defer join.Close()

	count := 0
	for {
		has, err := join.HasNext()
		require.NoError(t, err)
		if !has {
			break
		}
		_, err = join.Next()
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 3, count, "each outer row rewinds the inner scan: 2 pets for id=1, 1 pet for id=2")
}

func TestInsertOpIsSingleShot(t *testing.T) {
	bp, hf := newOpIntHeapFile(t, "n")

	srcTd := &TupleDesc{Fields: []FieldType{{Fname: "n", Ftype: IntType}}}
	srcTuples := []*Tuple{
		{Desc: *srcTd, Fields: []Field{IntField{Value: 1}}},
		{Desc: *srcTd, Fields: []Field{IntField{Value: 2}}},
	}
	src := newSliceOperator(srcTd, srcTuples)

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	ins := NewInsertOp(bp, hf, src)
	require.NoError(t, ins.Open(tid))

	has, err := ins.HasNext()
	require.NoError(t, err)
	require.True(t, has)
	tup, err := ins.Next()
	require.NoError(t, err)
	assert.Equal(t, int32(2), tup.Fields[0].(IntField).Value)

	has, err = ins.HasNext()
	require.NoError(t, err)
	assert.False(t, has)

	assert.Error(t, ins.Rewind())
	require.NoError(t, ins.Close())
	bp.CommitTransaction(tid)

	readTid := NewTID()
	got := scanAll(t, hf, readTid)
	assert.Len(t, got, 2)
}

func TestDeleteOpIsSingleShot(t *testing.T) {
	bp, hf := newOpIntHeapFile(t, "n")

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	for _, v := range []int32{1, 2, 3} {
		require.NoError(t, bp.InsertTuple(tid, hf, &Tuple{Desc: *hf.Descriptor(), Fields: []Field{IntField{Value: v}}}))
	}
	bp.CommitTransaction(tid)

	delTid := NewTID()
	require.NoError(t, bp.BeginTransaction(delTid))
	del := NewDeleteOp(bp, hf, NewFilter(&Predicate{Field: "n", Op: Equals, Value: IntField{Value: 2}}, NewSeqScan(hf)))
	require.NoError(t, del.Open(delTid))

	tup, err := del.Next()
	require.NoError(t, err)
	assert.Equal(t, int32(1), tup.Fields[0].(IntField).Value)

	assert.Error(t, del.Rewind())
	require.NoError(t, del.Close())
	bp.CommitTransaction(delTid)

	readTid := NewTID()
	got := scanAll(t, hf, readTid)
	assert.Len(t, got, 2)
}

// sliceOperator is a minimal in-memory Operator over a fixed tuple slice,
// used to feed InsertOp/DeleteOp in tests without a backing file.
type sliceOperator struct {
	operatorBase
	desc   *TupleDesc
	tuples []*Tuple
	idx    int
}

func newSliceOperator(desc *TupleDesc, tuples []*Tuple) *sliceOperator {
	return &sliceOperator{desc: desc, tuples: tuples}
}

func (s *sliceOperator) Descriptor() *TupleDesc { return s.desc }

func (s *sliceOperator) Open(tid TransactionID) error {
	s.idx = 0
	s.openBase()
	return nil
}

func (s *sliceOperator) produce() (*Tuple, error) {
	if s.idx >= len(s.tuples) {
		return nil, nil
	}
	t := s.tuples[s.idx]
	s.idx++
	return t, nil
}

func (s *sliceOperator) HasNext() (bool, error) { return s.hasNextVia(s.produce) }
func (s *sliceOperator) Next() (*Tuple, error)   { return s.nextVia(s.produce) }
func (s *sliceOperator) Rewind() error {
	s.idx = 0
	s.openBase()
	return nil
}
func (s *sliceOperator) Close() error {
	s.closeBase()
	return nil
}
