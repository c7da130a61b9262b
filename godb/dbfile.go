package godb

import "bytes"

// Page is one in-memory page as cached by the BufferPool. Pages carry no
// back-pointer to the pool that owns them; the pool alone decides their
// lifecycle (eviction, flush, discard) and indexes them by PageId.
type Page interface {
	// toBuffer serializes the page to exactly PageSize() bytes.
	toBuffer() (*bytes.Buffer, error)
	isDirty() bool
	setDirty(tid TransactionID, dirty bool)
	getFile() DBFile
}

// DBFile is the on-disk counterpart of a table: something the BufferPool can
// read pages from and write pages to, and the Catalog can hand out by table
// id. HeapFile is the only implementation.
type DBFile interface {
	readPage(pid PageId) (Page, error)
	writePage(p Page) error
	NumPages() int
	insertTuple(tid TransactionID, t *Tuple) ([]Page, error)
	deleteTuple(tid TransactionID, t *Tuple) ([]Page, error)
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
	Descriptor() *TupleDesc
	TableID() int
}
