package chatrunner

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/events"
	"github.com/go-go-golems/chatwidget/pkg/persistence/turnlog"
	"github.com/go-go-golems/chatwidget/pkg/transport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// TurnResult summarizes one Ask.
type TurnResult struct {
	// Submitted is false when the text was blank and nothing happened.
	Submitted bool
	TurnID    string
	Query     string
	Reply     string
	Chunks    int
	// Err is the transport failure, if the turn failed. The transcript
	// shows the fixed apology instead.
	Err error
}

func (r TurnResult) Failed() bool { return r.Err != nil }

// Runner drives turns: it feeds the reducer from a Transport and publishes
// a bus event after every transition.
type Runner struct {
	reducer   *conversation.Reducer
	transport transport.Transport
	bus       *events.Bus
	turns     turnlog.Store
	clock     func() time.Time
}

type RunnerOption func(*Runner)

// WithBus publishes every transition. Without a bus nothing is published.
func WithBus(b *events.Bus) RunnerOption {
	return func(r *Runner) { r.bus = b }
}

// WithTurnLog records every finished turn.
func WithTurnLog(s turnlog.Store) RunnerOption {
	return func(r *Runner) { r.turns = s }
}

func WithClock(clock func() time.Time) RunnerOption {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func NewRunner(reducer *conversation.Reducer, t transport.Transport, opts ...RunnerOption) *Runner {
	r := &Runner{reducer: reducer, transport: t, clock: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Reducer() *conversation.Reducer { return r.reducer }

func (r *Runner) SessionID() string { return r.reducer.SessionID() }

func (r *Runner) Snapshot() []conversation.Message { return r.reducer.Snapshot() }

// Ask runs one turn to completion. Transport failures become the apology
// message and are not returned; the error is reserved for bus and turn log
// failures.
func (r *Runner) Ask(ctx context.Context, text string) error {
	_, err := r.AskStream(ctx, text, nil)
	return err
}

// AskStream is Ask with a callback invoked for every chunk after the
// reducer has applied it.
func (r *Runner) AskStream(ctx context.Context, text string, onChunk func(string)) (TurnResult, error) {
	req, ok := r.reducer.Submit(text)
	if !ok {
		return TurnResult{}, nil
	}

	res := TurnResult{Submitted: true, TurnID: req.TurnID.String(), Query: req.Query}
	started := r.clock()
	var sideErrs []error

	sideErrs = r.publish(sideErrs, events.New(events.TypeSubmitted, req.SessionID, req.TurnID, started))

	var reply strings.Builder
	for chunk, err := range r.transport.StreamAsk(ctx, req.Query, req.SessionID) {
		if err != nil {
			res.Err = err
			break
		}
		if chunk == "" {
			continue
		}
		r.reducer.OnChunk(chunk)
		reply.WriteString(chunk)
		res.Chunks++
		if onChunk != nil {
			onChunk(chunk)
		}
		e := events.New(events.TypeChunk, req.SessionID, req.TurnID, r.clock())
		e.Chunk = chunk
		sideErrs = r.publish(sideErrs, e)
	}
	res.Reply = reply.String()

	finished := r.clock()
	record := turnlog.Record{
		SessionID:    req.SessionID,
		TurnID:       res.TurnID,
		Query:        req.Query,
		Reply:        res.Reply,
		Chunks:       res.Chunks,
		StartedAtMs:  started.UnixMilli(),
		FinishedAtMs: finished.UnixMilli(),
	}

	if res.Err != nil {
		r.reducer.OnStreamError(res.Err)
		e := events.New(events.TypeFailed, req.SessionID, req.TurnID, finished)
		e.Error = res.Err.Error()
		sideErrs = r.publish(sideErrs, e)
		record.Outcome = turnlog.OutcomeFailed
		record.Error = res.Err.Error()
	} else {
		r.reducer.OnStreamEnd()
		sideErrs = r.publish(sideErrs, events.New(events.TypeCompleted, req.SessionID, req.TurnID, finished))
		record.Outcome = turnlog.OutcomeDelivered
	}

	if r.turns != nil {
		// the turn log write must survive a cancelled turn context
		if err := r.turns.Save(context.WithoutCancel(ctx), record); err != nil {
			log.Warn().Err(err).Str("component", "chatrunner").Str("turn_id", res.TurnID).Msg("turn log write failed")
			sideErrs = append(sideErrs, errors.Wrap(err, "save turn"))
		}
	}

	log.Debug().
		Str("component", "chatrunner").
		Str("turn_id", res.TurnID).
		Int("chunks", res.Chunks).
		Bool("failed", res.Failed()).
		Dur("took", finished.Sub(started)).
		Msg("turn finished")

	if len(sideErrs) > 0 {
		return res, sideErrs[0]
	}
	return res, nil
}

func (r *Runner) publish(errs []error, e events.Event) []error {
	if r.bus == nil {
		return errs
	}
	if err := r.bus.Publish(e); err != nil {
		log.Warn().Err(err).Str("component", "chatrunner").Str("type", string(e.Type)).Msg("event publish failed")
		return append(errs, err)
	}
	return errs
}
