package render

import (
	"errors"
	"html/template"
	"sync"
)

// ErrNoContainer is reported when an attempt's container is gone.
var ErrNoContainer = errors.New("render: container not found")

// Container is the per-record slot an attempt writes into.
type Container interface {
	// Fill replaces the container markup. It reports false once the container
	// has been removed or its board torn down.
	Fill(html template.HTML) bool
	// Done is closed when the container is removed or its board torn down.
	Done() <-chan struct{}
}

// ContainerResolver looks a record's container up.
type ContainerResolver interface {
	Resolve(recordID string) (Container, bool)
}

// ResolverFunc adapts a function to ContainerResolver.
type ResolverFunc func(recordID string) (Container, bool)

// Resolve implements ContainerResolver.
func (f ResolverFunc) Resolve(recordID string) (Container, bool) {
	return f(recordID)
}

// Slot is a Board's container for one record.
type Slot struct {
	mu     sync.Mutex
	html   template.HTML
	done   chan struct{}
	closed bool
}

func newSlot() *Slot {
	return &Slot{done: make(chan struct{})}
}

// Fill implements Container.
func (s *Slot) Fill(html template.HTML) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.html = html
	return true
}

// Done implements Container.
func (s *Slot) Done() <-chan struct{} {
	return s.done
}

// HTML returns the current markup.
func (s *Slot) HTML() template.HTML {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.html
}

func (s *Slot) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// Board holds one container per record for a single list render.
type Board struct {
	mu       sync.RWMutex
	slots    map[string]*Slot
	order    []string
	torn     bool
	tornDown chan struct{}
}

var _ ContainerResolver = (*Board)(nil)

// NewBoard creates a board with an empty container for every id. Duplicate
// ids share one container.
func NewBoard(recordIDs []string) *Board {
	b := &Board{
		slots:    make(map[string]*Slot, len(recordIDs)),
		order:    make([]string, 0, len(recordIDs)),
		tornDown: make(chan struct{}),
	}
	for _, id := range recordIDs {
		if _, ok := b.slots[id]; ok {
			continue
		}
		b.slots[id] = newSlot()
		b.order = append(b.order, id)
	}
	return b
}

// Resolve implements ContainerResolver. Nothing resolves after Teardown.
func (b *Board) Resolve(recordID string) (Container, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.torn {
		return nil, false
	}
	slot, ok := b.slots[recordID]
	if !ok {
		return nil, false
	}
	return slot, true
}

// HTML returns the markup of a record's container.
func (b *Board) HTML(recordID string) (template.HTML, bool) {
	b.mu.RLock()
	slot, ok := b.slots[recordID]
	b.mu.RUnlock()
	if !ok {
		return "", false
	}
	return slot.HTML(), true
}

// IDs returns the record ids in board order.
func (b *Board) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.order...)
}

// Len returns the number of live containers.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.slots)
}

// Remove drops a record's container, canceling any attempt writing to it.
func (b *Board) Remove(recordID string) {
	b.mu.Lock()
	slot, ok := b.slots[recordID]
	if ok {
		delete(b.slots, recordID)
		for i, id := range b.order {
			if id == recordID {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
	b.mu.Unlock()
	if ok {
		slot.close()
	}
}

// Teardown closes every container. It is safe to call more than once.
func (b *Board) Teardown() {
	b.mu.Lock()
	if b.torn {
		b.mu.Unlock()
		return
	}
	b.torn = true
	slots := make([]*Slot, 0, len(b.slots))
	for _, slot := range b.slots {
		slots = append(slots, slot)
	}
	close(b.tornDown)
	b.mu.Unlock()

	for _, slot := range slots {
		slot.close()
	}
}

// Done is closed once the board is torn down.
func (b *Board) Done() <-chan struct{} {
	return b.tornDown
}
