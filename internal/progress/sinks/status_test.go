package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/postshelf/internal/progress"
)

func done(id [16]byte, record, state string, ts time.Time) progress.Event {
	return progress.Event{
		AttemptID: id,
		TS:        ts,
		Stage:     progress.StageRenderDone,
		RecordID:  record,
		Mode:      "embed",
		State:     state,
		Dur:       1500 * time.Millisecond,
	}
}

func TestStatusSinkKeepsLatest(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a1 := progress.UUIDToBytes(uuid.New())
	a2 := progress.UUIDToBytes(uuid.New())

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{AttemptID: a2, TS: base, Stage: progress.StageStrategyStart, RecordID: "r1", Strategy: "embed"},
		done(a2, "r1", "succeeded", base.Add(2*time.Second)),
		done(a1, "r1", "timed-out", base.Add(time.Second)),
		done(progress.UUIDToBytes(uuid.New()), "r2", "failed-network", base.Add(3*time.Second)),
	}))

	st, ok := sink.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "succeeded", st.State, "older completion must not win")
	assert.Equal(t, "embed", st.Strategy)
	assert.Equal(t, int64(1500), st.DurationMS)

	all := sink.List("", 0, 0)
	require.Len(t, all, 2)
	assert.Equal(t, "r2", all[0].RecordID)

	failed := sink.List("FAILED-NETWORK", 0, 0)
	require.Len(t, failed, 1)
	assert.Equal(t, "r2", failed[0].RecordID)

	assert.Len(t, sink.List("", 1, 0), 1)
	assert.Equal(t, "r1", sink.List("", 1, 1)[0].RecordID)
	assert.Empty(t, sink.List("", 0, 5))

	sink.Forget("r1")
	_, ok = sink.Get("r1")
	assert.False(t, ok)
}

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))
	id := progress.UUIDToBytes(uuid.New())
	now := time.Now()

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{AttemptID: id, TS: now, Stage: progress.StageRenderStart, RecordID: "r1", Mode: "embed"},
		done(id, "r1", "succeeded", now),
		done(id, "r2", "failed-embeddable", now),
	}))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "r2", entries[2].ContextMap()["record_id"])
	assert.Equal(t, "failed-embeddable", entries[2].ContextMap()["state"])
}
