package godb

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// HeapFile is an unordered collection of tuples backed by a regular file
// whose length is always a multiple of PageSize. Table identity is a stable
// hash of the file's absolute path, so the same file reopened in a later
// process still resolves to the same table id.
type HeapFile struct {
	mu sync.Mutex

	td          *TupleDesc
	backingFile string
	tableID     int
	numPages    int
	bp          *BufferPool
}

// NewHeapFile opens (creating if necessary) fromFile as the backing store
// for a table with schema td, caching pages through bp.
func NewHeapFile(fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	f, err := os.OpenFile(fromFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, wrapErr(IOError, "open heap file", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, wrapErr(IOError, "stat heap file", err)
	}

	abs, err := filepath.Abs(fromFile)
	if err != nil {
		abs = fromFile
	}
	h := fnv.New64a()
	h.Write([]byte(abs))

	return &HeapFile{
		td:          td,
		backingFile: fromFile,
		tableID:     int(h.Sum64()),
		numPages:    int(fi.Size()) / PageSize(),
		bp:          bp,
	}, nil
}

// BackingFile returns the path the HeapFile was opened with.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

// TableID is the stable identifier derived from the backing file's path.
func (f *HeapFile) TableID() int {
	return f.tableID
}

// NumPages is fileLength / PageSize.
func (f *HeapFile) NumPages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.numPages
}

func (f *HeapFile) Descriptor() *TupleDesc {
	return f.td
}

// readPage reads PAGE_SIZE bytes at pid's offset and constructs a heapPage.
func (f *HeapFile) readPage(pid PageId) (Page, error) {
	file, err := os.Open(f.backingFile)
	if err != nil {
		return nil, wrapErr(IOError, "open heap file for read", err)
	}
	defer file.Close()

	raw := make([]byte, PageSize())
	n, err := file.ReadAt(raw, int64(pid.PageNo)*int64(PageSize()))
	if err != nil {
		return nil, wrapErr(IOError, "read heap page", err)
	}
	if n != PageSize() {
		return nil, newErr(IOError, "short read of heap page")
	}

	page := newHeapPage(f.td, pid.PageNo, f)
	if err := page.initFromBuffer(raw); err != nil {
		return nil, err
	}
	return page, nil
}

// writePage seeks to p's offset and writes its bytes, extending the file if
// needed.
func (f *HeapFile) writePage(p Page) error {
	hp, ok := p.(*heapPage)
	if !ok {
		return newErr(DbError, "writePage given a non-heap page")
	}
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return wrapErr(IOError, "open heap file for write", err)
	}
	defer file.Close()

	buf, err := hp.toBuffer()
	if err != nil {
		return err
	}
	if _, err := file.WriteAt(buf.Bytes(), int64(hp.pageNo)*int64(PageSize())); err != nil {
		return wrapErr(IOError, "write heap page", err)
	}
	return nil
}

// insertTuple scans pages in order for the first with a free slot; failing
// that, it allocates and persists a new empty page before inserting. Returns
// the page the tuple landed on.
func (f *HeapFile) insertTuple(tid TransactionID, t *Tuple) ([]Page, error) {
	numPages := f.NumPages()

	for pno := 0; pno < numPages; pno++ {
		pid := PageId{TableID: f.tableID, PageNo: pno}
		page, err := f.bp.GetPage(tid, pid, ReadOnly)
		if err != nil {
			return nil, err
		}
		hp := page.(*heapPage)
		if hp.numUsedSlots() >= hp.getNumSlots() {
			continue
		}
		page, err = f.bp.GetPage(tid, pid, ReadWrite)
		if err != nil {
			return nil, err
		}
		hp = page.(*heapPage)
		if _, err := hp.insertTuple(t); err != nil {
			continue
		}
		return []Page{hp}, nil
	}

	f.mu.Lock()
	newPageNo := f.numPages
	emptyPage := newHeapPage(f.td, newPageNo, f)
	if err := f.writePage(emptyPage); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.numPages++
	f.mu.Unlock()

	pid := PageId{TableID: f.tableID, PageNo: newPageNo}
	page, err := f.bp.GetPage(tid, pid, ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := page.(*heapPage)
	if _, err := hp.insertTuple(t); err != nil {
		return nil, err
	}
	return []Page{hp}, nil
}

// deleteTuple removes t (identified by its Rid) from the page it names.
func (f *HeapFile) deleteTuple(tid TransactionID, t *Tuple) ([]Page, error) {
	if t.Rid == nil {
		return nil, newErr(DbError, "tuple has no record id, cannot delete")
	}
	rid := *t.Rid
	if rid.PID.PageNo < 0 || rid.PID.PageNo >= f.NumPages() {
		return nil, newErr(DbError, "record id names a page that does not exist")
	}

	page, err := f.bp.GetPage(tid, rid.PID, ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := page.(*heapPage)
	if err := hp.deleteTuple(rid); err != nil {
		return nil, err
	}
	return []Page{hp}, nil
}

// Iterator yields every tuple on every page in page order, through the
// BufferPool under READ_ONLY permission. Restartable via a fresh call;
// reflects whatever the buffer pool returns at the time of access.
func (f *HeapFile) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	pgNo := 0
	var pageIter func() (*Tuple, error)
	return func() (*Tuple, error) {
		for {
			if pageIter == nil {
				if pgNo >= f.NumPages() {
					return nil, nil
				}
				pid := PageId{TableID: f.tableID, PageNo: pgNo}
				page, err := f.bp.GetPage(tid, pid, ReadOnly)
				if err != nil {
					return nil, err
				}
				pageIter = page.(*heapPage).tupleIter()
				pgNo++
			}
			t, err := pageIter()
			if err != nil {
				return nil, err
			}
			if t == nil {
				pageIter = nil
				continue
			}
			return t, nil
		}
	}, nil
}

// LoadFromCSV populates the file from a CSV, one row per line, committing
// periodically so the buffer pool never fills with uncommitted pages.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Split(scanner.Text(), sep)
		if skipLastField {
			fields = fields[:len(fields)-1]
		}
		if lineNo == 1 && hasHeader {
			continue
		}
		if len(fields) != len(f.td.Fields) {
			return newErr(DbError, fmt.Sprintf("line %d: expected %d fields, got %d", lineNo, len(f.td.Fields), len(fields)))
		}

		values := make([]Field, len(fields))
		for i, raw := range fields {
			switch f.td.Fields[i].Ftype {
			case IntType:
				v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
				if err != nil {
					return newErr(DbError, fmt.Sprintf("line %d: %q is not an int", lineNo, raw))
				}
				values[i] = IntField{Value: int32(v)}
			case StringType:
				values[i] = StringField{Value: raw}
			}
		}

		tid := NewTID()
		t := &Tuple{Desc: *f.td, Fields: values}
		if _, err := f.insertTuple(tid, t); err != nil {
			return err
		}
		f.bp.CommitTransaction(tid)
	}
	if err := scanner.Err(); err != nil {
		return wrapErr(IOError, "scan csv", err)
	}
	return nil
}
