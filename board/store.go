// Package board holds the element store: the ordered, z-ordered sequence of
// elements that makes up a board's content.
//
// A Store is owned by a single session goroutine and is not safe for
// concurrent use. Every mutation bumps Version; readers that need a stable
// view take a Snapshot.
package board

import (
	"errors"
	"time"

	"github.com/zlnvch/whiteboard/models"
)

const (
	EphemeralTTL  = 2000 * time.Millisecond
	SweepInterval = 350 * time.Millisecond
)

var (
	ErrDuplicateId = errors.New("element id already exists")
	ErrMissingId   = errors.New("element id is empty")
)

type Store struct {
	elements models.Elements
	ids      map[string]struct{}
	version  uint64

	snapshot        models.Elements
	snapshotVersion uint64
	hasSnapshot     bool
}

// NewStore builds a store from initial. Elements with empty or duplicate ids
// are dropped.
func NewStore(initial models.Elements) *Store {
	s := &Store{ids: make(map[string]struct{}, len(initial))}
	for _, el := range initial {
		_ = s.add(el)
	}
	return s
}

func (s *Store) add(el models.Element) error {
	id := el.Meta().Id
	if id == "" {
		return ErrMissingId
	}
	if _, ok := s.ids[id]; ok {
		return ErrDuplicateId
	}
	s.ids[id] = struct{}{}
	s.elements = append(s.elements, el)
	return nil
}

// Append adds el as the topmost element.
func (s *Store) Append(el models.Element) error {
	if err := s.add(el); err != nil {
		return err
	}
	s.version++
	return nil
}

func (s *Store) Get(id string) (models.Element, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.elements[i], true
	}
	return nil, false
}

// Mutate applies fn to the element with the given id in place.
func (s *Store) Mutate(id string, fn func(models.Element)) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	fn(s.elements[i])
	s.version++
	return true
}

func (s *Store) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.elements = append(s.elements[:i], s.elements[i+1:]...)
	delete(s.ids, id)
	s.version++
	return true
}

// SweepEphemeral removes laser strokes created more than ttl before now and
// returns their ids.
func (s *Store) SweepEphemeral(now time.Time, ttl time.Duration) []string {
	cutoff := now.Add(-ttl).UnixMilli()
	var removed []string
	kept := s.elements[:0]
	for _, el := range s.elements {
		if models.IsEphemeral(el) && el.Meta().CreatedAt < cutoff {
			removed = append(removed, el.Meta().Id)
			delete(s.ids, el.Meta().Id)
			continue
		}
		kept = append(kept, el)
	}
	// Clear the tail so dropped elements can be collected.
	for i := len(kept); i < len(s.elements); i++ {
		s.elements[i] = nil
	}
	s.elements = kept
	if len(removed) > 0 {
		s.version++
	}
	return removed
}

// HitTest returns the topmost element hit by the world point p.
func (s *Store) HitTest(p models.Point, buffer float64) (models.Element, bool) {
	for i := len(s.elements) - 1; i >= 0; i-- {
		if Hits(s.elements[i], p, buffer) {
			return s.elements[i], true
		}
	}
	return nil, false
}

// Snapshot returns an immutable deep copy of the current elements. The copy
// is reused until the next mutation.
func (s *Store) Snapshot() models.Elements {
	if !s.hasSnapshot || s.snapshotVersion != s.version {
		s.snapshot = s.elements.Clone()
		s.snapshotVersion = s.version
		s.hasSnapshot = true
	}
	return s.snapshot
}

func (s *Store) Version() uint64 {
	return s.version
}

func (s *Store) Len() int {
	return len(s.elements)
}

func (s *Store) indexOf(id string) int {
	if _, ok := s.ids[id]; !ok {
		return -1
	}
	for i, el := range s.elements {
		if el.Meta().Id == id {
			return i
		}
	}
	return -1
}
