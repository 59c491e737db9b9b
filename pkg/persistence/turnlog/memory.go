package turnlog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// InMemoryStore is a size-limited Store with the same ordering as the
// SQLite store.
type InMemoryStore struct {
	mu         sync.Mutex
	maxRecords int
	records    []Record
	seq        []int64
	next       int64
}

var _ Store = &InMemoryStore{}

func NewInMemoryStore(maxRecords int) *InMemoryStore {
	if maxRecords <= 0 {
		maxRecords = 1000
	}
	return &InMemoryStore{maxRecords: maxRecords}
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) Save(_ context.Context, r Record) error {
	if s == nil {
		return errors.New("in-memory turn log: nil store")
	}
	if err := validate(r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	for i := range s.records {
		if s.records[i].SessionID == r.SessionID && s.records[i].TurnID == r.TurnID {
			r.Query = s.records[i].Query
			r.StartedAtMs = s.records[i].StartedAtMs
			s.records[i] = r
			return nil
		}
	}
	s.records = append(s.records, r)
	s.seq = append(s.seq, s.next)
	if len(s.records) > s.maxRecords {
		s.records = s.records[1:]
		s.seq = s.seq[1:]
	}
	return nil
}

func (s *InMemoryStore) List(_ context.Context, q Query) ([]Record, error) {
	if s == nil {
		return nil, errors.New("in-memory turn log: nil store")
	}
	s.mu.Lock()
	type item struct {
		r   Record
		seq int64
	}
	var items []item
	sessionID := strings.TrimSpace(q.SessionID)
	for i, r := range s.records {
		if sessionID != "" && r.SessionID != sessionID {
			continue
		}
		if q.Outcome != "" && r.Outcome != q.Outcome {
			continue
		}
		if q.SinceMs > 0 && r.FinishedAtMs < q.SinceMs {
			continue
		}
		items = append(items, item{r: r, seq: s.seq[i]})
	}
	s.mu.Unlock()

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].r.FinishedAtMs != items[j].r.FinishedAtMs {
			return items[i].r.FinishedAtMs > items[j].r.FinishedAtMs
		}
		return items[i].seq > items[j].seq
	})

	limit := limitOf(q)
	out := make([]Record, 0, min(limit, len(items)))
	for _, it := range items {
		if len(out) == limit {
			break
		}
		out = append(out, it.r)
	}
	return out, nil
}
