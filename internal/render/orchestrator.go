package render

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/postshelf/internal/metrics"
	"github.com/JakeFAU/postshelf/internal/progress"
)

// Timing defaults.
const (
	DefaultSettleDelay    = 300 * time.Millisecond
	DefaultAttemptTimeout = 45 * time.Second
)

const tracerName = "github.com/JakeFAU/postshelf/internal/render"

// Config tunes the orchestrator.
type Config struct {
	// SettleDelay is waited after a board is built before attempts start.
	SettleDelay time.Duration
	// AttemptTimeout bounds a whole attempt across all of its strategies.
	// Zero disables the bound.
	AttemptTimeout time.Duration
	// TracerProvider receives attempt and strategy spans. Nil uses the
	// global provider.
	TracerProvider trace.TracerProvider
}

func (c Config) withDefaults() Config {
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.AttemptTimeout < 0 {
		c.AttemptTimeout = 0
	}
	return c
}

// Orchestrator runs render attempts and owns the current board.
type Orchestrator struct {
	table   Table
	emitter progress.Emitter
	logger  *zap.Logger
	cfg     Config
	tracer  trace.Tracer
	now     func() time.Time

	mu    sync.Mutex
	board *Board
}

// NewOrchestrator wires an orchestrator. A nil emitter discards progress
// events and a nil logger is replaced by a no-op logger.
func NewOrchestrator(table Table, emitter progress.Emitter, cfg Config, logger *zap.Logger) *Orchestrator {
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Orchestrator{
		table:   table,
		emitter: emitter,
		logger:  logger,
		cfg:     cfg.withDefaults(),
		tracer:  tp.Tracer(tracerName),
		now:     time.Now,
	}
}

// Board returns the current board, or nil before the first RenderAll.
func (o *Orchestrator) Board() *Board {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.board
}

// Forget drops a record's container from the current board, canceling its
// in-flight attempt.
func (o *Orchestrator) Forget(recordID string) {
	if b := o.Board(); b != nil {
		b.Remove(recordID)
	}
}

// Close tears the current board down.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	b := o.board
	o.board = nil
	o.mu.Unlock()
	if b != nil {
		b.Teardown()
	}
}

// RenderAll replaces the current board with one container per target and
// renders every target into it concurrently. The previous board is torn down
// first, canceling its attempts. Results are in target order; targets whose
// containers vanished report StateCanceled.
func (o *Orchestrator) RenderAll(ctx context.Context, targets []Target) (*Board, []Result, error) {
	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.RecordID
	}
	board := NewBoard(ids)

	o.mu.Lock()
	prev := o.board
	o.board = board
	o.mu.Unlock()
	if prev != nil {
		prev.Teardown()
	}

	o.emit(progress.Event{
		AttemptID: progress.UUIDToBytes(uuid.New()),
		Stage:     progress.StageBoardBuilt,
		Count:     board.Len(),
	})
	for _, id := range board.IDs() {
		if c, ok := board.Resolve(id); ok {
			c.Fill(Loading())
		}
	}

	results := make([]Result, len(targets))
	if err := o.settle(ctx, board); err != nil {
		for i, t := range targets {
			results[i] = canceledResult(t)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return board, results, ctxErr
		}
		return board, results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = o.Render(gctx, board, t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return board, results, err
	}
	return board, results, ctx.Err()
}

func (o *Orchestrator) settle(ctx context.Context, board *Board) error {
	if o.cfg.SettleDelay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(o.cfg.SettleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-board.Done():
		return ErrNoContainer
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Render runs target's strategies in order and writes the terminal markup
// into the container containers resolves for it. When the container is
// missing, or disappears before the attempt ends, nothing is written and the
// result is StateCanceled.
func (o *Orchestrator) Render(ctx context.Context, containers ContainerResolver, target Target) (res Result) {
	attemptID := progress.UUIDToBytes(uuid.New())
	start := o.now()
	ctx, span := o.tracer.Start(ctx, "render.attempt", trace.WithAttributes(
		attribute.String("record.id", target.RecordID),
		attribute.String("render.mode", string(target.Mode)),
	))
	defer func() { endSpan(span, res.Strategy, res.State, res.Note) }()

	res = Result{RecordID: target.RecordID, URL: target.URL, Mode: target.Mode, State: StatePending}

	container, ok := containers.Resolve(target.RecordID)
	if !ok {
		res.State = StateCanceled
		res.Note = ErrNoContainer.Error()
		o.emitDone(attemptID, target, res, start)
		return res
	}

	metrics.IncActiveRenders()
	defer metrics.DecActiveRenders()
	o.emit(progress.Event{
		AttemptID: attemptID,
		Stage:     progress.StageRenderStart,
		RecordID:  target.RecordID,
		Mode:      string(target.Mode),
		URL:       target.URL,
	})

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func(done <-chan struct{}) {
		select {
		case <-container.Done():
			cancel()
		case <-done:
		}
	}(attemptCtx.Done())
	if o.cfg.AttemptTimeout > 0 {
		var cancelTimeout context.CancelFunc
		attemptCtx, cancelTimeout = context.WithTimeout(attemptCtx, o.cfg.AttemptTimeout)
		defer cancelTimeout()
	}

	strategies := o.table.For(target.Mode)
	if len(strategies) == 0 {
		return o.finish(attemptID, target, container, containers, start, res,
			Outcome{State: StateFailedNetwork, Message: MessageNoStrategy})
	}

	for i, strategy := range strategies {
		res.Strategy = strategy.Name()
		strategyStart := o.now()
		o.emit(progress.Event{
			AttemptID: attemptID,
			Stage:     progress.StageStrategyStart,
			RecordID:  target.RecordID,
			Mode:      string(target.Mode),
			Strategy:  strategy.Name(),
			URL:       target.URL,
		})

		strategyCtx, strategySpan := o.tracer.Start(attemptCtx, "render.strategy")
		out := strategy.Attempt(strategyCtx, target)
		endSpan(strategySpan, strategy.Name(), out.State, noteFor(out))
		if out.State == StateCanceled {
			if torn(ctx, container) {
				res.State = StateCanceled
				res.Note = noteFor(out)
				o.emitStrategyDone(attemptID, target, strategy.Name(), StateCanceled, strategyStart, res.Note)
				o.emitDone(attemptID, target, res, start)
				return res
			}
			// Only the attempt deadline is left to have fired.
			out = Outcome{State: StateTimedOut, Message: MessageTimedOut, Err: out.Err}
		}
		o.emitStrategyDone(attemptID, target, strategy.Name(), out.State, strategyStart, noteFor(out))

		last := i == len(strategies)-1
		if out.State == StateSucceeded || out.State == StateInvalidURL || !strategy.Soft() || last {
			return o.finish(attemptID, target, container, containers, start, res, out)
		}
		o.logger.Debug("strategy failed, handing over",
			zap.String("record_id", target.RecordID),
			zap.String("strategy", strategy.Name()),
			zap.String("state", string(out.State)),
			zap.Error(out.Err),
		)
	}
	// Unreachable: the last strategy always finishes the attempt.
	return res
}

func (o *Orchestrator) finish(
	attemptID [16]byte,
	target Target,
	container Container,
	containers ContainerResolver,
	start time.Time,
	res Result,
	out Outcome,
) Result {
	html := out.HTML
	if out.State != StateSucceeded {
		html = Placeholder(out.State, out.Message, out.Detail, target.URL)
	}
	res.Note = noteFor(out)

	current, ok := containers.Resolve(target.RecordID)
	if !ok || current != container || !container.Fill(html) {
		res.State = StateCanceled
		if res.Note == "" {
			res.Note = ErrNoContainer.Error()
		}
		o.emitDone(attemptID, target, res, start)
		return res
	}

	res.State = out.State
	res.HTML = html
	o.emitDone(attemptID, target, res, start)
	return res
}

func (o *Orchestrator) emitStrategyDone(attemptID [16]byte, target Target, name string, state State, start time.Time, note string) {
	o.emit(progress.Event{
		AttemptID: attemptID,
		Stage:     progress.StageStrategyDone,
		RecordID:  target.RecordID,
		Mode:      string(target.Mode),
		Strategy:  name,
		State:     string(state),
		URL:       target.URL,
		Dur:       o.since(start),
		Note:      note,
	})
}

func (o *Orchestrator) emitDone(attemptID [16]byte, target Target, res Result, start time.Time) {
	o.emit(progress.Event{
		AttemptID: attemptID,
		Stage:     progress.StageRenderDone,
		RecordID:  target.RecordID,
		Mode:      string(target.Mode),
		Strategy:  res.Strategy,
		State:     string(res.State),
		URL:       target.URL,
		Dur:       o.since(start),
		Note:      res.Note,
	})
}

func (o *Orchestrator) emit(evt progress.Event) {
	if evt.TS.IsZero() {
		evt.TS = o.now().UTC()
	}
	o.emitter.Emit(evt)
}

func (o *Orchestrator) since(start time.Time) time.Duration {
	if d := o.now().Sub(start); d > 0 {
		return d
	}
	return 0
}

func endSpan(span trace.Span, strategy string, state State, note string) {
	span.SetAttributes(
		attribute.String("render.strategy", strategy),
		attribute.String("render.state", string(state)),
	)
	if state.Failed() {
		span.SetStatus(codes.Error, note)
	}
	span.End()
}

func torn(ctx context.Context, container Container) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-container.Done():
		return true
	default:
		return false
	}
}

func noteFor(out Outcome) string {
	switch {
	case out.Err != nil && !errors.Is(out.Err, context.Canceled):
		return out.Err.Error()
	case out.Detail != "":
		return out.Detail
	default:
		return ""
	}
}

func canceledResult(t Target) Result {
	return Result{RecordID: t.RecordID, URL: t.URL, Mode: t.Mode, State: StateCanceled}
}
