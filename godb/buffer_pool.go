package godb

import (
	"container/list"
	"sync"
)

// BufferPool caches pages read from disk, mediates every page access through
// a per-page ReadWriteLock, and enforces NO-STEAL/FORCE at transaction
// boundaries: a dirty page is never evicted or discarded silently, and a
// committing transaction's dirty pages are on disk before
// CommitTransaction returns.
type BufferPool struct {
	mu       sync.Mutex
	capacity int
	catalog  *Catalog

	pages map[PageId]Page
	order *list.List
	elems map[PageId]*list.Element

	locks    map[PageId]*rwLock
	holdings map[TransactionID]map[PageId]lockHolding

	graph *WaitsForGraph
}

// NewBufferPool returns an empty pool caching at most capacity pages, whose
// pages come from files registered in catalog.
func NewBufferPool(capacity int, catalog *Catalog) *BufferPool {
	return &BufferPool{
		capacity: capacity,
		catalog:  catalog,
		pages:    make(map[PageId]Page),
		order:    list.New(),
		elems:    make(map[PageId]*list.Element),
		locks:    make(map[PageId]*rwLock),
		holdings: make(map[TransactionID]map[PageId]lockHolding),
		graph:    NewWaitsForGraph(),
	}
}

func (bp *BufferPool) lockFor(pid PageId) *rwLock {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	l, ok := bp.locks[pid]
	if !ok {
		l = newRWLock(pid)
		bp.locks[pid] = l
	}
	return l
}

func (bp *BufferPool) holdingOf(tid TransactionID, pid PageId) lockHolding {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.holdings[tid][pid]
}

func (bp *BufferPool) setHolding(tid TransactionID, pid PageId, h lockHolding) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if bp.holdings[tid] == nil {
		bp.holdings[tid] = make(map[PageId]lockHolding)
	}
	bp.holdings[tid][pid] = h
}

// evictLocked removes the first clean page in insertion order that no
// transaction holds for writing. Must be called with bp.mu held. A page that
// is write-locked or mid-upgrade is ineligible even if it hasn't been dirtied
// yet: evicting it would let the writer's later mutation land on an orphaned
// page object that transactionComplete can never find again. A clean page
// held only by readers may be evicted. Fails with DbError if every cached
// page is dirty or write-locked.
func (bp *BufferPool) evictLocked() error {
	for e := bp.order.Front(); e != nil; e = e.Next() {
		pid := e.Value.(PageId)
		page := bp.pages[pid]
		if page.isDirty() {
			continue
		}
		if lock, ok := bp.locks[pid]; ok && lock.isWriteHeld() {
			continue
		}
		bp.order.Remove(e)
		delete(bp.elems, pid)
		delete(bp.pages, pid)
		Logger.Debugw("buffer pool evicted clean page", "page", pid.String())
		return nil
	}
	Logger.Warnw("buffer pool full of dirty or write-locked pages, cannot evict")
	return newErr(DbError, "all pages in buffer pool are dirty or write-locked")
}

func (bp *BufferPool) installLocked(pid PageId, page Page) {
	bp.pages[pid] = page
	bp.elems[pid] = bp.order.PushBack(pid)
}

// GetPage fetches pid under tid with the requested permission, acquiring or
// upgrading the page's lock as needed. It blocks on lock acquisition (after
// consulting the waits-for graph) but never blocks on cache fullness —
// eviction, when needed, happens synchronously before the fetch.
func (bp *BufferPool) GetPage(tid TransactionID, pid PageId, perm Permission) (Page, error) {
	bp.mu.Lock()
	page, cached := bp.pages[pid]
	if !cached {
		if len(bp.pages) >= bp.capacity {
			if err := bp.evictLocked(); err != nil {
				bp.mu.Unlock()
				return nil, err
			}
		}
		bp.mu.Unlock()

		file, err := bp.catalog.FileFor(pid.TableID)
		if err != nil {
			return nil, err
		}
		page, err = file.readPage(pid)
		if err != nil {
			return nil, err
		}

		bp.mu.Lock()
		if existing, ok := bp.pages[pid]; ok {
			// Lost the race to another goroutine's miss; use its copy.
			page = existing
		} else {
			bp.installLocked(pid, page)
		}
	}
	bp.mu.Unlock()

	lock := bp.lockFor(pid)
	holding := bp.holdingOf(tid, pid)

	switch {
	case holding == holdNone && perm == ReadOnly:
		Logger.Debugw("lock read", "tid", tid, "page", pid.String())
		if err := lock.lockRead(tid, bp.graph); err != nil {
			Logger.Warnw("lock request aborted", "tid", tid, "page", pid.String(), "error", err)
			return nil, err
		}
		bp.setHolding(tid, pid, holdRead)
	case holding == holdNone && perm == ReadWrite:
		Logger.Debugw("lock write", "tid", tid, "page", pid.String())
		if err := lock.lockWrite(tid, bp.graph); err != nil {
			Logger.Warnw("lock request aborted", "tid", tid, "page", pid.String(), "error", err)
			return nil, err
		}
		bp.setHolding(tid, pid, holdWrite)
	case holding == holdRead && perm == ReadWrite:
		Logger.Debugw("lock upgrade", "tid", tid, "page", pid.String())
		if err := lock.upgrade(tid, bp.graph); err != nil {
			Logger.Warnw("lock request aborted", "tid", tid, "page", pid.String(), "error", err)
			return nil, err
		}
		bp.setHolding(tid, pid, holdWrite)
	default:
		// holding == holdWrite (any perm), or holdRead+ReadOnly: already
		// sufficient, idempotent re-acquisition is a no-op.
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.pages[pid], nil
}

// InsertTuple routes t through file's insertTuple, then marks every page it
// dirtied with tid.
func (bp *BufferPool) InsertTuple(tid TransactionID, file DBFile, t *Tuple) error {
	pages, err := file.insertTuple(tid, t)
	if err != nil {
		return err
	}
	for _, p := range pages {
		p.setDirty(tid, true)
	}
	return nil
}

// DeleteTuple routes t through file's deleteTuple, then marks every page it
// dirtied with tid.
func (bp *BufferPool) DeleteTuple(tid TransactionID, file DBFile, t *Tuple) error {
	pages, err := file.deleteTuple(tid, t)
	if err != nil {
		return err
	}
	for _, p := range pages {
		p.setDirty(tid, true)
	}
	return nil
}

// BeginTransaction is a no-op hook kept for symmetry with CommitTransaction
// and AbortTransaction; no bookkeeping is needed before a transaction's
// first GetPage call.
func (bp *BufferPool) BeginTransaction(tid TransactionID) error {
	return nil
}

// CommitTransaction forces tid's dirty pages to disk, then releases its
// locks.
func (bp *BufferPool) CommitTransaction(tid TransactionID) {
	bp.transactionComplete(tid, true)
}

// AbortTransaction discards tid's dirty pages without writing them, then
// releases its locks.
func (bp *BufferPool) AbortTransaction(tid TransactionID) {
	bp.transactionComplete(tid, false)
}

func (bp *BufferPool) transactionComplete(tid TransactionID, commit bool) {
	bp.mu.Lock()
	held := bp.holdings[tid]
	pids := make([]PageId, 0, len(held))
	modes := make(map[PageId]lockHolding, len(held))
	for pid, h := range held {
		pids = append(pids, pid)
		modes[pid] = h
	}
	bp.mu.Unlock()

	for _, pid := range pids {
		if modes[pid] != holdWrite {
			continue
		}
		bp.mu.Lock()
		page, ok := bp.pages[pid]
		bp.mu.Unlock()
		if !ok {
			continue
		}
		if commit {
			if page.isDirty() {
				if file, err := bp.catalog.FileFor(pid.TableID); err == nil {
					_ = file.writePage(page)
				}
				page.setDirty(tid, false)
			}
		} else if page.isDirty() {
			Logger.Debugw("buffer pool discarding dirty page on abort", "page", pid.String())
			bp.mu.Lock()
			if e, ok := bp.elems[pid]; ok {
				bp.order.Remove(e)
				delete(bp.elems, pid)
			}
			delete(bp.pages, pid)
			bp.mu.Unlock()
		}
	}

	for _, pid := range pids {
		bp.lockFor(pid).unlock(tid, bp.graph)
	}

	bp.mu.Lock()
	delete(bp.holdings, tid)
	bp.mu.Unlock()
}

// FlushPage writes pid's cached copy to disk if present and dirty, then
// clears its dirty bit.
func (bp *BufferPool) FlushPage(pid PageId) error {
	bp.mu.Lock()
	page, ok := bp.pages[pid]
	bp.mu.Unlock()
	if !ok || !page.isDirty() {
		return nil
	}
	file, err := bp.catalog.FileFor(pid.TableID)
	if err != nil {
		return err
	}
	if err := file.writePage(page); err != nil {
		return err
	}
	page.setDirty(0, false)
	return nil
}

// FlushAllPages flushes every currently cached page.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	pids := make([]PageId, 0, len(bp.pages))
	for pid := range bp.pages {
		pids = append(pids, pid)
	}
	bp.mu.Unlock()

	for _, pid := range pids {
		if err := bp.FlushPage(pid); err != nil {
			return err
		}
	}
	return nil
}
