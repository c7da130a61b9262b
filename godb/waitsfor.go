package godb

import "sync"

type waitEdge struct {
	lock  PageId
	write bool
}

// WaitsForGraph prevents deadlock by refusing to grant a lock request that
// would close a cycle among transactions and the locks they hold or are
// waiting on. All bookkeeping is guarded by a single mutex, per spec.md §5:
// the graph itself is cheap enough that a global lock is not a bottleneck
// compared to page I/O.
type WaitsForGraph struct {
	mu sync.Mutex

	pending     map[TransactionID]waitEdge
	readHolders map[PageId]map[TransactionID]bool
	writeHolder map[PageId]TransactionID
	upgraders   map[PageId]TransactionID
}

// NewWaitsForGraph returns an empty graph.
func NewWaitsForGraph() *WaitsForGraph {
	return &WaitsForGraph{
		pending:     make(map[TransactionID]waitEdge),
		readHolders: make(map[PageId]map[TransactionID]bool),
		writeHolder: make(map[PageId]TransactionID),
		upgraders:   make(map[PageId]TransactionID),
	}
}

// holdersFor returns the transactions that a request for lock in the given
// mode must wait behind, excluding requester itself.
//
// A write holder is exclusive: it is the only conflict reported. Absent a
// write holder, a pending upgrader on the same lock counts as a writer (an
// upgrade-pending transaction blocks everyone else, read or write, the same
// way a writer would). A read request additionally skips every plain reader
// holder — reads never conflict with other reads.
func (g *WaitsForGraph) holdersFor(lock PageId, writeMode bool, requester TransactionID) []TransactionID {
	if w, ok := g.writeHolder[lock]; ok && w != requester {
		return []TransactionID{w}
	}

	var out []TransactionID
	if u, ok := g.upgraders[lock]; ok && u != requester {
		out = append(out, u)
	}
	if writeMode {
		for tid := range g.readHolders[lock] {
			if tid != requester && tid != g.upgraders[lock] {
				out = append(out, tid)
			}
		}
	}
	return out
}

// dfs walks the chain of pending waits starting at cur, looking for start.
// Must be called with g.mu held.
func (g *WaitsForGraph) dfs(start, cur TransactionID, visited map[TransactionID]bool) bool {
	edge, ok := g.pending[cur]
	if !ok {
		return false
	}
	for _, h := range g.holdersFor(edge.lock, edge.write, cur) {
		if h == start {
			return true
		}
		if visited[h] {
			continue
		}
		visited[h] = true
		if g.dfs(start, h, visited) {
			return true
		}
	}
	return false
}

// Wait records that tid is about to block waiting on lock in the given mode,
// and reports whether doing so would close a cycle. On a cycle, the pending
// edge is removed (the caller is expected to abort, not block) and the
// answer is true; otherwise the edge stays recorded until Acquire or a
// failed call clears it.
func (g *WaitsForGraph) Wait(tid TransactionID, lock PageId, writeMode bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if writeMode && g.readHolders[lock][tid] {
		g.upgraders[lock] = tid
	}
	g.pending[tid] = waitEdge{lock: lock, write: writeMode}

	cyclic := g.dfs(tid, tid, map[TransactionID]bool{})
	if cyclic {
		delete(g.pending, tid)
		if g.upgraders[lock] == tid {
			delete(g.upgraders, lock)
		}
	}
	return cyclic
}

// Acquire clears tid's pending wait on lock and records it as a holder.
func (g *WaitsForGraph) Acquire(tid TransactionID, lock PageId, writeMode bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.pending, tid)
	if writeMode {
		g.writeHolder[lock] = tid
		delete(g.readHolders[lock], tid)
		if g.upgraders[lock] == tid {
			delete(g.upgraders, lock)
		}
		return
	}
	if g.readHolders[lock] == nil {
		g.readHolders[lock] = make(map[TransactionID]bool)
	}
	g.readHolders[lock][tid] = true
}

// Release removes tid's held-by edge for lock in the given mode.
func (g *WaitsForGraph) Release(tid TransactionID, lock PageId, writeMode bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if writeMode {
		if g.writeHolder[lock] == tid {
			delete(g.writeHolder, lock)
		}
	} else {
		delete(g.readHolders[lock], tid)
	}
	if g.upgraders[lock] == tid {
		delete(g.upgraders, lock)
	}
}
