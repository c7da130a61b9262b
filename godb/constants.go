package godb

// pageSize and maxStringLen are process-wide constants. Tests override them
// through the setters below rather than varying them per file.
var pageSize = 4096

const defaultMaxStringLen = 128

var maxStringLen = defaultMaxStringLen

// PageSize returns the current page size in bytes.
func PageSize() int {
	return pageSize
}

// SetPageSizeForTesting overrides the page size. It is not safe to call
// while any BufferPool or HeapFile is in use.
func SetPageSizeForTesting(size int) {
	pageSize = size
}

// MaxStringLen returns the maximum number of bytes a STRING field may store.
func MaxStringLen() int {
	return maxStringLen
}

// SetMaxStringLenForTesting overrides the maximum STRING field length.
func SetMaxStringLenForTesting(n int) {
	maxStringLen = n
}

// defaultBufferPoolCapacity is the number of pages the BufferPool caches
// when no explicit capacity is given.
const defaultBufferPoolCapacity = 100
