package knowledge

import (
	"sync/atomic"
)

// Catalog serves the current knowledge store and class index loaded from
// disk. Reload swaps both together, so a lookup sees either the old pair or
// the new one.
type Catalog struct {
	storePath string
	indexPath string
	current   atomic.Pointer[catalogState]
}

type catalogState struct {
	store *Store
	index ClassIndex
}

// OpenCatalog loads both files. Empty paths give empty tables.
func OpenCatalog(storePath, indexPath string) (*Catalog, error) {
	c := &Catalog{storePath: storePath, indexPath: indexPath}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads both files. On error the previous tables stay in place.
func (c *Catalog) Reload() error {
	store, err := LoadStore(c.storePath)
	if err != nil {
		return err
	}
	index, err := LoadClassIndex(c.indexPath)
	if err != nil {
		return err
	}
	c.current.Store(&catalogState{store: store, index: index})
	return nil
}

// Store returns the current knowledge store.
func (c *Catalog) Store() *Store {
	return c.current.Load().store
}

// Index returns the current class index.
func (c *Catalog) Index() ClassIndex {
	return c.current.Load().index
}

// Record looks up a knowledge record in the current store.
func (c *Catalog) Record(key string) (Record, bool) {
	return c.Store().Record(key)
}

// Lookup resolves an identifier in the current class index.
func (c *Catalog) Lookup(id string) (string, bool) {
	return c.Index().Lookup(id)
}

func (c *Catalog) paths() []string {
	var out []string
	for _, p := range []string{c.storePath, c.indexPath} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
