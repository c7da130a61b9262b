package godb

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPoolEvictsCleanPageOnMiss(t *testing.T) {
	orig := pageSize
	SetPageSizeForTesting(128)
	defer SetPageSizeForTesting(orig)

	f, err := os.CreateTemp(t.TempDir(), "heap-*.dat")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	td := &TupleDesc{Fields: []FieldType{{Fname: "n", Ftype: IntType}}}
	catalog := NewCatalog()
	bp := NewBufferPool(1, catalog)
	hf, err := NewHeapFile(f.Name(), td, bp)
	require.NoError(t, err)
	catalog.AddTable("t", hf)

	// Fill and commit page 0 so it's clean, then force a page-1 allocation:
	// the pool's single slot must evict page 0 to make room.
	n := numSlotsForTupleSize(td.bytesPerTuple())
	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	for i := 0; i < n; i++ {
		require.NoError(t, bp.InsertTuple(tid, hf, &Tuple{Desc: *td, Fields: []Field{IntField{Value: int32(i)}}}))
	}
	bp.CommitTransaction(tid)

	tid2 := NewTID()
	require.NoError(t, bp.BeginTransaction(tid2))
	require.NoError(t, bp.InsertTuple(tid2, hf, &Tuple{Desc: *td, Fields: []Field{IntField{Value: 999}}}))
	bp.CommitTransaction(tid2)

	assert.Equal(t, 2, hf.NumPages())
}

func TestBufferPoolEvictionSkipsDirtyPages(t *testing.T) {
	orig := pageSize
	SetPageSizeForTesting(128)
	defer SetPageSizeForTesting(orig)

	f, err := os.CreateTemp(t.TempDir(), "heap-*.dat")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	td := &TupleDesc{Fields: []FieldType{{Fname: "n", Ftype: IntType}}}
	catalog := NewCatalog()
	bp := NewBufferPool(1, catalog)
	hf, err := NewHeapFile(f.Name(), td, bp)
	require.NoError(t, err)
	catalog.AddTable("t", hf)

	n := numSlotsForTupleSize(td.bytesPerTuple())
	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	for i := 0; i < n; i++ {
		require.NoError(t, bp.InsertTuple(tid, hf, &Tuple{Desc: *td, Fields: []Field{IntField{Value: int32(i)}}}))
	}
	// Page 0 is now full and dirty, but not yet committed: with capacity 1,
	// a miss that needs to evict has nothing clean to evict.
	err = bp.InsertTuple(tid, hf, &Tuple{Desc: *td, Fields: []Field{IntField{Value: 999}}})
	require.Error(t, err)
	code, ok := Code(err)
	require.True(t, ok)
	assert.Equal(t, DbError, code)
}

// TestBufferPoolEvictionSkipsLockedCleanPages guards against evicting a page
// that is write-locked but not yet dirtied: stealing it from the cache would
// let the lock holder's later mutation land on an orphaned page object that
// transactionComplete can never find again, silently losing the write.
func TestBufferPoolEvictionSkipsLockedCleanPages(t *testing.T) {
	fa, err := os.CreateTemp(t.TempDir(), "heap-a-*.dat")
	require.NoError(t, err)
	require.NoError(t, fa.Close())
	fb, err := os.CreateTemp(t.TempDir(), "heap-b-*.dat")
	require.NoError(t, err)
	require.NoError(t, fb.Close())

	td := &TupleDesc{Fields: []FieldType{{Fname: "n", Ftype: IntType}}}
	catalog := NewCatalog()
	bp := NewBufferPool(1, catalog)
	hfA, err := NewHeapFile(fa.Name(), td, bp)
	require.NoError(t, err)
	hfB, err := NewHeapFile(fb.Name(), td, bp)
	require.NoError(t, err)
	catalog.AddTable("a", hfA)
	catalog.AddTable("b", hfB)

	// Seed page P (table A) so there's something to cache and write-lock.
	seedTid := NewTID()
	require.NoError(t, bp.BeginTransaction(seedTid))
	require.NoError(t, bp.InsertTuple(seedTid, hfA, &Tuple{Desc: *td, Fields: []Field{IntField{Value: 1}}}))
	bp.CommitTransaction(seedTid)

	t1 := NewTID()
	require.NoError(t, bp.BeginTransaction(t1))
	pP := PageId{TableID: hfA.TableID(), PageNo: 0}
	// T1 takes a write lock on P but hasn't dirtied it yet: P is clean but held.
	_, err = bp.GetPage(t1, pP, ReadWrite)
	require.NoError(t, err)

	t2 := NewTID()
	require.NoError(t, bp.BeginTransaction(t2))
	pQ := PageId{TableID: hfB.TableID(), PageNo: 0}
	// T2's miss on Q has nowhere to evict: P is the only cached page, and it's
	// locked by T1, not just dirty. This must fail rather than silently evict P.
	_, err = bp.GetPage(t2, pQ, ReadOnly)
	require.Error(t, err)
	code, ok := Code(err)
	require.True(t, ok)
	assert.Equal(t, DbError, code)
	bp.AbortTransaction(t2)

	// T1's later write against the still-cached P must actually land on disk.
	require.NoError(t, bp.InsertTuple(t1, hfA, &Tuple{Desc: *td, Fields: []Field{IntField{Value: 2}}}))
	bp.CommitTransaction(t1)

	onDisk, err := hfA.readPage(pP)
	require.NoError(t, err)
	assert.Equal(t, 2, onDisk.(*heapPage).numUsedSlots())
}

func TestCommitFlushesThenReleasesLocks(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "heap-*.dat")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	td := &TupleDesc{Fields: []FieldType{{Fname: "n", Ftype: IntType}}}
	catalog := NewCatalog()
	bp := NewBufferPool(defaultBufferPoolCapacity, catalog)
	hf, err := NewHeapFile(f.Name(), td, bp)
	require.NoError(t, err)
	catalog.AddTable("t", hf)

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	require.NoError(t, bp.InsertTuple(tid, hf, &Tuple{Desc: *td, Fields: []Field{IntField{Value: 1}}}))
	bp.CommitTransaction(tid)

	// Commit flushed the insert: it is on disk, not just in the cache.
	onDisk, err := hf.readPage(PageId{TableID: hf.TableID(), PageNo: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, onDisk.(*heapPage).numUsedSlots())

	// A fresh transaction must be able to take a write lock on the same
	// page immediately: commit released tid's locks.
	tid2 := NewTID()
	require.NoError(t, bp.BeginTransaction(tid2))
	_, err = bp.GetPage(tid2, PageId{TableID: hf.TableID(), PageNo: 0}, ReadWrite)
	require.NoError(t, err)
	bp.CommitTransaction(tid2)
}
