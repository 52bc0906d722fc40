// Package progress defines the event structures emitted by render attempts.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageBoardBuilt    Stage = "BOARD_BUILT"
	StageRenderStart   Stage = "RENDER_START"
	StageStrategyStart Stage = "STRATEGY_START"
	StageStrategyDone  Stage = "STRATEGY_DONE"
	StageRenderDone    Stage = "RENDER_DONE"
)

// Event captures a single milestone of a render attempt.
type Event struct {
	// AttemptID uniquely identifies one render attempt using the 16-byte UUID form.
	AttemptID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// RecordID is the record being rendered. Board events leave it empty.
	RecordID string
	// Mode is the record's rendering preference.
	Mode string
	// Strategy names the strategy for strategy events.
	Strategy string
	// State is the render state reached, set on done events.
	State string
	// URL is the post URL being rendered.
	URL string
	// Count carries the container count for board events.
	Count int
	// Dur captures the elapsed time of a strategy or the whole attempt.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.AttemptID == [16]byte{} {
		return errors.New("attempt id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageBoardBuilt:
	case StageRenderStart:
		if e.RecordID == "" {
			return errors.New("render start requires record id")
		}
	case StageStrategyStart, StageStrategyDone:
		if e.RecordID == "" || e.Strategy == "" {
			return errors.New("strategy events require record id and strategy")
		}
		if e.Stage == StageStrategyDone && e.State == "" {
			return errors.New("strategy done requires state")
		}
	case StageRenderDone:
		if e.RecordID == "" {
			return errors.New("render done requires record id")
		}
		if e.State == "" {
			return errors.New("render done requires state")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// AttemptUUID converts the binary attempt ID to uuid.UUID.
func (e Event) AttemptUUID() uuid.UUID {
	return uuid.UUID(e.AttemptID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
