package godb

import (
	"fmt"
	"sync"
)

// Catalog is an in-process table-id -> file/name registry. It is built up
// programmatically by a caller (the demo binary, a test); loading a schema
// from an external file is out of scope here.
type Catalog struct {
	mu     sync.RWMutex
	files  map[int]DBFile
	names  map[int]string
	byName map[string]int
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		files:  make(map[int]DBFile),
		names:  make(map[int]string),
		byName: make(map[string]int),
	}
}

// AddTable registers file under name, returning its table id (file.TableID()).
func (c *Catalog) AddTable(name string, file DBFile) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := file.TableID()
	c.files[id] = file
	c.names[id] = name
	c.byName[name] = id
	return id
}

// FileFor returns the DBFile registered for tableID.
func (c *Catalog) FileFor(tableID int) (DBFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.files[tableID]
	if !ok {
		return nil, newErr(DbError, fmt.Sprintf("no table registered with id %d", tableID))
	}
	return f, nil
}

// NameFor returns the name a table was registered under.
func (c *Catalog) NameFor(tableID int) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, ok := c.names[tableID]
	if !ok {
		return "", newErr(DbError, fmt.Sprintf("no table registered with id %d", tableID))
	}
	return n, nil
}

// FileByName looks a table up by its registered name.
func (c *Catalog) FileByName(name string) (DBFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byName[name]
	if !ok {
		return nil, newErr(DbError, fmt.Sprintf("no table named %q", name))
	}
	return c.files[id], nil
}

// TableIDs returns every registered table id, in no particular order.
func (c *Catalog) TableIDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]int, 0, len(c.files))
	for id := range c.files {
		ids = append(ids, id)
	}
	return ids
}
