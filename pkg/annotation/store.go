// Package annotation holds the ordered set of recognized dimensions for one
// editing session.
package annotation

import (
	"errors"
	"fmt"

	"github.com/menta2k/drawing-converter/pkg/types"
	"github.com/menta2k/drawing-converter/pkg/units"
)

var (
	// ErrNotFound is returned when no annotation has the requested id.
	ErrNotFound = errors.New("annotation not found")
	// ErrDuplicateID is returned when a replacement set reuses an id.
	ErrDuplicateID = errors.New("duplicate annotation id")
)

// Store is an ordered list of annotations. Order is the order the
// recognition pipeline emitted them in. There is no delete operation.
type Store struct {
	items []types.Annotation
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Replace swaps in a complete new set. The metric value of every record is
// recomputed from its imperial value. On error the store is left unchanged.
func (s *Store) Replace(annotations []types.Annotation) error {
	seen := make(map[int]struct{}, len(annotations))
	next := make([]types.Annotation, len(annotations))
	for i, a := range annotations {
		if _, ok := seen[a.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateID, a.ID)
		}
		seen[a.ID] = struct{}{}
		a.Metric = units.ToMetric(a.Imperial)
		if a.Unit == "" {
			a.Unit = types.InchUnit
		}
		next[i] = a
	}
	s.items = next
	return nil
}

// Update overwrites the imperial value of one annotation, recomputes its
// metric value and marks it as human verified.
func (s *Store) Update(id int, imperial string) (types.Annotation, error) {
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		s.items[i].Imperial = imperial
		s.items[i].Metric = units.ToMetric(imperial)
		s.items[i].Confidence = types.MaxConfidence
		return s.items[i], nil
	}
	return types.Annotation{}, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// Get returns the annotation with the given id.
func (s *Store) Get(id int) (types.Annotation, bool) {
	for _, a := range s.items {
		if a.ID == id {
			return a, true
		}
	}
	return types.Annotation{}, false
}

// All returns a copy of every annotation in order.
func (s *Store) All() []types.Annotation {
	out := make([]types.Annotation, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of annotations.
func (s *Store) Len() int {
	return len(s.items)
}

// LowConfidence returns the annotations below the threshold, in order.
func (s *Store) LowConfidence(threshold int) []types.Annotation {
	var out []types.Annotation
	for _, a := range s.items {
		if a.LowConfidence(threshold) {
			out = append(out, a)
		}
	}
	return out
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	return &Store{items: s.All()}
}
