// Package catalog holds the set of relational objects the query pipeline may
// read from. A Catalog is built once at startup and is safe for concurrent
// use without locking because it is never mutated after construction.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("catalog: not found")

type Object struct {
	Name   string
	IsView bool
}

// Listing splits the catalog into base tables and views, both in
// registration order.
type Listing struct {
	Tables []string `json:"tables"`
	Views  []string `json:"views"`
}

type Catalog struct {
	byName  map[string]Object
	ordered []Object
}

func New(objects ...Object) (*Catalog, error) {
	if len(objects) == 0 {
		return nil, fmt.Errorf("at least one object is required")
	}
	c := &Catalog{
		byName:  make(map[string]Object, len(objects)),
		ordered: make([]Object, 0, len(objects)),
	}
	for _, object := range objects {
		name := strings.TrimSpace(object.Name)
		if name == "" {
			return nil, fmt.Errorf("object name is required")
		}
		key := strings.ToLower(name)
		if _, exists := c.byName[key]; exists {
			return nil, fmt.Errorf("duplicate object %q", name)
		}
		object.Name = name
		c.byName[key] = object
		c.ordered = append(c.ordered, object)
	}
	return c, nil
}

func MustNew(objects ...Object) *Catalog {
	c, err := New(objects...)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the cultural-events schema served by the migrations in
// internal/migrations.
func Default() *Catalog {
	return MustNew(
		Object{Name: "Activity"},
		Object{Name: "Artist"},
		Object{Name: "Activity_Artist"},
		Object{Name: "Venue"},
		Object{Name: "Event"},
		Object{Name: "Attendee"},
		Object{Name: "Ticket"},
		Object{Name: "Rating"},
		Object{Name: "vw_events_enriched", IsView: true},
		Object{Name: "vw_event_sales", IsView: true},
		Object{Name: "vw_artists_by_activity", IsView: true},
		Object{Name: "vw_city_stats", IsView: true},
		Object{Name: "vw_activity_cost", IsView: true},
		Object{Name: "vw_upcoming_events", IsView: true},
	)
}

// Lookup matches names case-insensitively and returns the canonical spelling.
func (c *Catalog) Lookup(name string) (Object, bool) {
	object, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return object, ok
}

func (c *Catalog) Allowed(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

func (c *Catalog) Objects() []Object {
	out := make([]Object, len(c.ordered))
	copy(out, c.ordered)
	return out
}

func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.ordered))
	for _, object := range c.ordered {
		out = append(out, object.Name)
	}
	return out
}

func (c *Catalog) List() Listing {
	listing := Listing{Tables: []string{}, Views: []string{}}
	for _, object := range c.ordered {
		if object.IsView {
			listing.Views = append(listing.Views, object.Name)
			continue
		}
		listing.Tables = append(listing.Tables, object.Name)
	}
	return listing
}
