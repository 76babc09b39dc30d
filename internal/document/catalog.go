// Package document serves document classes over a store: the catalog of
// collections, the persistence service and the HTTP handler.
package document

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogotex/docmodel/pkg/odm"
)

var ErrUnknownCollection = errors.New("unknown collection")

// Catalog maps route names to the document classes served under them.
//
// A collection is served under its own name by its most general class.
// Further classes stored in the same collection, such as a subclass with a
// default query, are served under their class name.
type Catalog struct {
	mu      sync.RWMutex
	classes map[string]*odm.Class
}

func NewCatalog(classes ...*odm.Class) (*Catalog, error) {
	c := &Catalog{classes: make(map[string]*odm.Class)}
	for _, cl := range classes {
		if err := c.Add(cl); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers a document class. Embedded classes have no collection and
// are rejected, as is a class whose route is taken by another class.
func (c *Catalog) Add(cl *odm.Class) error {
	if cl.Kind() != odm.KindDocument {
		return fmt.Errorf("catalog: %s is %s, not a document class", cl.Name(), cl.Kind())
	}
	coll := cl.Options().CollectionName
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, have := range c.classes {
		if have == cl {
			return nil
		}
	}
	prev, ok := c.classes[coll]
	if !ok {
		return c.put(coll, cl)
	}
	if prev.IsSubclassOf(cl) {
		// the more general class takes over the collection route
		if err := c.put(prev.Name(), prev); err != nil {
			return err
		}
		c.classes[coll] = cl
		return nil
	}
	return c.put(cl.Name(), cl)
}

func (c *Catalog) put(route string, cl *odm.Class) error {
	if prev, ok := c.classes[route]; ok && prev != cl {
		return fmt.Errorf("catalog: route %q already served by %s", route, prev.Name())
	}
	c.classes[route] = cl
	return nil
}

// Class returns the class served under route.
func (c *Catalog) Class(route string) (*odm.Class, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.classes[route]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, route)
	}
	return cl, nil
}

// Routes returns the route names in sorted order.
func (c *Catalog) Routes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.classes))
	for name := range c.classes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
