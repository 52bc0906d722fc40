package render

import (
	"html/template"
	"strings"

	"github.com/JakeFAU/postshelf/internal/record"
)

// State is the lifecycle state of one render attempt.
type State string

// Render states. Every state except StatePending is terminal.
const (
	StatePending          State = "pending"
	StateSucceeded        State = "succeeded"
	StateFailedEmbeddable State = "failed-embeddable"
	StateFailedNetwork    State = "failed-network"
	StateTimedOut         State = "timed-out"
	StateInvalidURL       State = "invalid-url"
	StateCanceled         State = "canceled"
)

// Failed reports whether the attempt finished with a visible placeholder.
func (s State) Failed() bool {
	switch s {
	case StateFailedEmbeddable, StateFailedNetwork, StateTimedOut, StateInvalidURL:
		return true
	default:
		return false
	}
}

// Target is what the orchestrator needs to know about a record.
type Target struct {
	RecordID string
	URL      string
	Mode     record.APIType
}

// TargetFor builds the Target of rec.
func TargetFor(rec record.Record) Target {
	return Target{RecordID: rec.ID, URL: strings.TrimSpace(rec.URL), Mode: rec.Mode()}
}

// Result is the terminal outcome of one attempt.
type Result struct {
	RecordID string         `json:"recordId"`
	URL      string         `json:"url"`
	Mode     record.APIType `json:"mode"`
	State    State          `json:"state"`
	Strategy string         `json:"strategy,omitempty"`
	HTML     template.HTML  `json:"html"`
	Note     string         `json:"note,omitempty"`
}
