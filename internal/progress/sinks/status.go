package sinks

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/postshelf/internal/progress"
)

// RenderStatus is the latest known render outcome for one record.
type RenderStatus struct {
	RecordID   string    `json:"recordId"`
	URL        string    `json:"url"`
	Mode       string    `json:"mode"`
	State      string    `json:"state"`
	Strategy   string    `json:"strategy,omitempty"`
	Note       string    `json:"note,omitempty"`
	DurationMS int64     `json:"durationMs"`
	FinishedAt time.Time `json:"finishedAt"`
}

// StatusSink remembers the most recent completed render per record. It lives
// in memory only; render outcomes are never persisted.
type StatusSink struct {
	mu       sync.RWMutex
	latest   map[string]RenderStatus
	strategy map[[16]byte]string
}

// NewStatusSink builds an empty StatusSink.
func NewStatusSink() *StatusSink {
	return &StatusSink{
		latest:   make(map[string]RenderStatus),
		strategy: make(map[[16]byte]string),
	}
}

// Consume records strategy and completion events. Older completions never
// replace newer ones.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageStrategyStart:
			s.strategy[evt.AttemptID] = evt.Strategy
		case progress.StageRenderDone:
			strategy := s.strategy[evt.AttemptID]
			delete(s.strategy, evt.AttemptID)
			if prev, ok := s.latest[evt.RecordID]; ok && prev.FinishedAt.After(evt.TS) {
				continue
			}
			s.latest[evt.RecordID] = RenderStatus{
				RecordID:   evt.RecordID,
				URL:        evt.URL,
				Mode:       evt.Mode,
				State:      evt.State,
				Strategy:   strategy,
				Note:       evt.Note,
				DurationMS: evt.Dur.Milliseconds(),
				FinishedAt: evt.TS,
			}
		}
	}
	return nil
}

// Get returns the latest status for recordID.
func (s *StatusSink) Get(recordID string) (RenderStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.latest[recordID]
	return st, ok
}

// List returns statuses newest first, optionally filtered by state, paged by
// limit and offset.
func (s *StatusSink) List(state string, limit, offset int) []RenderStatus {
	s.mu.RLock()
	out := make([]RenderStatus, 0, len(s.latest))
	for _, st := range s.latest {
		if state != "" && !strings.EqualFold(st.State, state) {
			continue
		}
		out = append(out, st)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b RenderStatus) int {
		if c := b.FinishedAt.Compare(a.FinishedAt); c != 0 {
			return c
		}
		return strings.Compare(a.RecordID, b.RecordID)
	})
	if offset >= len(out) {
		return []RenderStatus{}
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Forget drops the status of a deleted record.
func (s *StatusSink) Forget(recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.latest, recordID)
}

// Close implements the Sink interface; it performs no action.
func (s *StatusSink) Close(context.Context) error {
	return nil
}
