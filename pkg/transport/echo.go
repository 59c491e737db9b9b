package transport

import (
	"context"
	"iter"
	"strings"
	"time"
)

// DefaultEchoDelay paces echoed words so the typing indicator is visible.
const DefaultEchoDelay = 60 * time.Millisecond

// Echo returns an offline Transport that streams the query back word by
// word, pausing delay between words. It is used by the CLI's --echo mode.
func Echo(delay time.Duration) Func {
	return func(ctx context.Context, query, _ string) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			words := strings.SplitAfter("You said: "+query, " ")
			for _, w := range words {
				if delay > 0 {
					select {
					case <-ctx.Done():
						yield("", &Error{Kind: KindNetwork, Err: ctx.Err()})
						return
					case <-time.After(delay):
					}
				} else if err := ctx.Err(); err != nil {
					yield("", &Error{Kind: KindNetwork, Err: err})
					return
				}
				if !yield(w, nil) {
					return
				}
			}
		}
	}
}
