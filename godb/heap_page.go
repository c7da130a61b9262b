package godb

import (
	"bytes"
	"math/bits"
	"sync"
)

// heapPage is a slotted page: a header bitmap of N slots followed by N
// fixed-size tuple slots, where N = floor((PageSize*8) / (tupleSize*8 + 1)).
// Bit i of the header (little-bit order: bit i%8 of byte i/8) records
// whether slot i is in use. A page never shrinks its slot count once
// constructed; deleting a tuple only clears its header bit.
type heapPage struct {
	sync.Mutex

	desc   *TupleDesc
	pageNo int
	file   *HeapFile

	numSlots int
	tuples   []*Tuple // nil entry = free slot
	dirty    bool
	dirtyTid TransactionID
}

func headerBytes(numSlots int) int {
	return (numSlots + 7) / 8
}

func numSlotsForTupleSize(tupleSize int) int {
	return (PageSize() * 8) / (tupleSize*8 + 1)
}

// newHeapPage constructs an empty page: every header bit clear, every slot
// nil.
func newHeapPage(desc *TupleDesc, pageNo int, file *HeapFile) *heapPage {
	n := numSlotsForTupleSize(desc.bytesPerTuple())
	return &heapPage{
		desc:     desc,
		pageNo:   pageNo,
		file:     file,
		numSlots: n,
		tuples:   make([]*Tuple, n),
	}
}

func (h *heapPage) getNumSlots() int {
	return h.numSlots
}

func (h *heapPage) numUsedSlots() int {
	used := 0
	for _, t := range h.tuples {
		if t != nil {
			used++
		}
	}
	return used
}

// insertTuple places t into the lowest-index free slot, stamps its RecordId,
// and marks the page dirty. Returns DbError if the page is full.
func (h *heapPage) insertTuple(t *Tuple) (RecordId, error) {
	h.Lock()
	defer h.Unlock()

	for i, existing := range h.tuples {
		if existing != nil {
			continue
		}
		rid := RecordId{PID: PageId{TableID: h.file.TableID(), PageNo: h.pageNo}, Slot: i}
		stored := &Tuple{Desc: *h.desc, Fields: t.Fields, Rid: &rid}
		h.tuples[i] = stored
		t.Rid = &rid
		h.dirty = true
		return rid, nil
	}
	return RecordId{}, newErr(DbError, "page is full")
}

// deleteTuple clears rid's header bit. Fails if rid does not name a slot on
// this page, or the slot is already free.
func (h *heapPage) deleteTuple(rid RecordId) error {
	h.Lock()
	defer h.Unlock()

	if rid.PID != (PageId{TableID: h.file.TableID(), PageNo: h.pageNo}) {
		return newErr(DbError, "record id does not name a slot on this page")
	}
	if rid.Slot < 0 || rid.Slot >= len(h.tuples) {
		return newErr(DbError, "record id slot out of range")
	}
	if h.tuples[rid.Slot] == nil {
		return newErr(DbError, "slot already empty")
	}
	h.tuples[rid.Slot] = nil
	h.dirty = true
	return nil
}

func (h *heapPage) isDirty() bool {
	h.Lock()
	defer h.Unlock()
	return h.dirty
}

func (h *heapPage) setDirty(tid TransactionID, dirty bool) {
	h.Lock()
	defer h.Unlock()
	h.dirty = dirty
	if dirty {
		h.dirtyTid = tid
	}
}

func (h *heapPage) getFile() DBFile {
	return h.file
}

// toBuffer serializes the header bitmap followed by every slot (used slots
// hold their tuple's bytes, free slots hold zero bytes so slot offsets stay
// fixed), padded with zero bytes to PageSize.
func (h *heapPage) toBuffer() (*bytes.Buffer, error) {
	h.Lock()
	defer h.Unlock()

	buf := new(bytes.Buffer)
	header := make([]byte, headerBytes(h.numSlots))
	for i, t := range h.tuples {
		if t != nil {
			header[i/8] |= 1 << uint(i%8)
		}
	}
	if _, err := buf.Write(header); err != nil {
		return nil, wrapErr(IOError, "write heap page header", err)
	}

	tupleSize := h.desc.bytesPerTuple()
	for _, t := range h.tuples {
		if t == nil {
			if _, err := buf.Write(make([]byte, tupleSize)); err != nil {
				return nil, wrapErr(IOError, "write empty slot", err)
			}
			continue
		}
		if err := t.writeTo(buf); err != nil {
			return nil, wrapErr(IOError, "write tuple", err)
		}
	}

	if buf.Len() < PageSize() {
		buf.Write(make([]byte, PageSize()-buf.Len()))
	}
	return buf, nil
}

// initFromBuffer reads a page previously written by toBuffer. raw must be
// exactly PageSize() bytes.
func (h *heapPage) initFromBuffer(raw []byte) error {
	h.Lock()
	defer h.Unlock()

	tupleSize := h.desc.bytesPerTuple()
	h.numSlots = numSlotsForTupleSize(tupleSize)
	hdrLen := headerBytes(h.numSlots)
	if len(raw) < hdrLen {
		return newErr(DbError, "buffer too small for heap page header")
	}
	header := raw[:hdrLen]
	h.tuples = make([]*Tuple, h.numSlots)

	r := bytes.NewReader(raw[hdrLen:])
	for i := 0; i < h.numSlots; i++ {
		slotBytes := make([]byte, tupleSize)
		if _, err := r.Read(slotBytes); err != nil {
			return wrapErr(IOError, "read heap page slot", err)
		}
		used := header[i/8]&(1<<uint(i%8)) != 0
		if !used {
			continue
		}
		slotReader := bytes.NewReader(slotBytes)
		t, err := readTupleFrom(slotReader, h.desc)
		if err != nil {
			return err
		}
		rid := RecordId{PID: PageId{TableID: h.file.TableID(), PageNo: h.pageNo}, Slot: i}
		t.Rid = &rid
		h.tuples[i] = t
	}
	return nil
}

// tupleIter returns a closure yielding every non-nil tuple in slot order,
// nil,nil once exhausted.
func (h *heapPage) tupleIter() func() (*Tuple, error) {
	i := 0
	return func() (*Tuple, error) {
		h.Lock()
		defer h.Unlock()
		for i < len(h.tuples) {
			t := h.tuples[i]
			i++
			if t != nil {
				return t, nil
			}
		}
		return nil, nil
	}
}

func popcount(b []byte) int {
	n := 0
	for _, v := range b {
		n += bits.OnesCount8(v)
	}
	return n
}

// numEmptySlots returns numSlots minus the popcount of the header bitmap,
// read back from a serialized page rather than the live slot slice -- the
// spec invariant this checks is about the bitmap, not the in-memory view.
func (h *heapPage) numEmptySlots() (int, error) {
	buf, err := h.toBuffer()
	if err != nil {
		return 0, err
	}
	raw := buf.Bytes()
	hdrLen := headerBytes(h.numSlots)
	return h.numSlots - popcount(raw[:hdrLen]), nil
}
