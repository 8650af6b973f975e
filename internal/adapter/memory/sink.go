// Package memory provides an in-memory sink used by tests and dry runs.
package memory

import (
	"context"
	"fmt"

	"github.com/couchcryptid/epi-data-etl/internal/domain"
)

// Sink keeps stored items in insertion order. Identifiers are sequential per
// class ("GeoLocation_1", "GeoLocation_2", ...) so output is reproducible.
type Sink struct {
	items     []domain.Item
	byID      map[string]int
	seq       map[string]int
	committed bool

	// FailWhen, if set, is consulted before every Store; a non-nil error is returned as-is.
	FailWhen func(domain.Item) error
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{
		byID: make(map[string]int),
		seq:  make(map[string]int),
	}
}

func (s *Sink) NewIdentifier(className string) string {
	s.seq[className]++
	return fmt.Sprintf("%s_%d", className, s.seq[className])
}

func (s *Sink) Store(_ context.Context, item domain.Item) error {
	if s.FailWhen != nil {
		if err := s.FailWhen(item); err != nil {
			return err
		}
	}
	if _, dup := s.byID[item.Identifier]; dup {
		return fmt.Errorf("item %s already stored", item.Identifier)
	}
	s.byID[item.Identifier] = len(s.items)
	s.items = append(s.items, item)
	return nil
}

func (s *Sink) Commit(_ context.Context) error {
	s.committed = true
	return nil
}

// Committed reports whether Commit has been called.
func (s *Sink) Committed() bool { return s.committed }

// Items returns all stored items in store order.
func (s *Sink) Items() []domain.Item { return s.items }

// ItemsOf returns the stored items of one class, in store order.
func (s *Sink) ItemsOf(className string) []domain.Item {
	var out []domain.Item
	for _, item := range s.items {
		if item.ClassName == className {
			out = append(out, item)
		}
	}
	return out
}

// Item looks up a stored item by identifier.
func (s *Sink) Item(id string) (domain.Item, bool) {
	i, ok := s.byID[id]
	if !ok {
		return domain.Item{}, false
	}
	return s.items[i], true
}
