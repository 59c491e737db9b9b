// Package turnlog keeps an audit trail of finished turns. It is write-mostly
// and is never read back into a live transcript.
package turnlog

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
)

// Record is one finished turn.
type Record struct {
	SessionID    string  `json:"session_id" yaml:"session_id"`
	TurnID       string  `json:"turn_id" yaml:"turn_id"`
	Query        string  `json:"query" yaml:"query"`
	Reply        string  `json:"reply" yaml:"reply"`
	Outcome      Outcome `json:"outcome" yaml:"outcome"`
	Error        string  `json:"error,omitempty" yaml:"error,omitempty"`
	Chunks       int     `json:"chunks" yaml:"chunks"`
	StartedAtMs  int64   `json:"started_at_ms" yaml:"started_at_ms"`
	FinishedAtMs int64   `json:"finished_at_ms" yaml:"finished_at_ms"`
}

// Query filters List. Results are newest first.
type Query struct {
	SessionID string
	Outcome   Outcome
	SinceMs   int64
	Limit     int
}

const defaultLimit = 200

type Store interface {
	Save(ctx context.Context, r Record) error
	List(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

func validate(r Record) error {
	if strings.TrimSpace(r.SessionID) == "" {
		return errors.New("turn log: session id is empty")
	}
	if strings.TrimSpace(r.TurnID) == "" {
		return errors.New("turn log: turn id is empty")
	}
	switch r.Outcome {
	case OutcomeDelivered, OutcomeFailed:
	default:
		return errors.Errorf("turn log: unknown outcome %q", r.Outcome)
	}
	return nil
}

func limitOf(q Query) int {
	if q.Limit <= 0 {
		return defaultLimit
	}
	return q.Limit
}
