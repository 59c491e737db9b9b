// Package transport produces the chunk sequences the conversation reducer
// consumes. A Transport owns the underlying connection and releases it on
// every path, including a consumer that stops iterating early.
package transport

import (
	"context"
	"fmt"
	"iter"
)

// Transport performs one streamed ask call.
//
// The returned sequence is lazy, finite and not restartable. It ends when
// the server closes the response, or yields exactly one non-nil *Error as
// its final element.
type Transport interface {
	StreamAsk(ctx context.Context, query, sessionID string) iter.Seq2[string, error]
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, query, sessionID string) iter.Seq2[string, error]

func (f Func) StreamAsk(ctx context.Context, query, sessionID string) iter.Seq2[string, error] {
	return f(ctx, query, sessionID)
}

type Kind int

const (
	KindNetwork Kind = iota
	KindStatus
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is the only error type a Transport yields.
type Error struct {
	Kind       Kind
	StatusCode int
	// Message is what the server said, if anything. It is kept for logs only.
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindStatus && e.Message != "":
		return fmt.Sprintf("ask failed with status %d: %s", e.StatusCode, e.Message)
	case e.Kind == KindStatus:
		return fmt.Sprintf("ask failed with status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("ask %s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("ask %s error", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Fail returns a sequence that yields err and stops.
func Fail(err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}

// Chunks returns a sequence over fixed chunks.
func Chunks(chunks ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}
