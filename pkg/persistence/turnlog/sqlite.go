package turnlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite turn log: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DSNForFile returns a WAL-mode DSN for a database file.
func DSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite turn log: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS turn_log (
			session_id TEXT NOT NULL,
			turn_id TEXT NOT NULL,
			query TEXT NOT NULL,
			reply TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			chunks INTEGER NOT NULL DEFAULT 0,
			started_at_ms INTEGER NOT NULL,
			finished_at_ms INTEGER NOT NULL,
			PRIMARY KEY (session_id, turn_id)
		);`,
		`CREATE INDEX IF NOT EXISTS turn_log_by_session ON turn_log(session_id, finished_at_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS turn_log_by_finished ON turn_log(finished_at_ms DESC);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite turn log: migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, r Record) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite turn log: db is nil")
	}
	if err := validate(r); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turn_log (
			session_id, turn_id, query, reply, outcome, error, chunks, started_at_ms, finished_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, turn_id) DO UPDATE SET
			reply = excluded.reply,
			outcome = excluded.outcome,
			error = excluded.error,
			chunks = excluded.chunks,
			finished_at_ms = excluded.finished_at_ms
	`, r.SessionID, r.TurnID, r.Query, r.Reply, string(r.Outcome), r.Error, r.Chunks, r.StartedAtMs, r.FinishedAtMs)
	if err != nil {
		return errors.Wrap(err, "sqlite turn log: insert")
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, q Query) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite turn log: db is nil")
	}

	clauses := []string{}
	args := []any{}
	if v := strings.TrimSpace(q.SessionID); v != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, v)
	}
	if q.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(q.Outcome))
	}
	if q.SinceMs > 0 {
		clauses = append(clauses, "finished_at_ms >= ?")
		args = append(args, q.SinceMs)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT session_id, turn_id, query, reply, outcome, error, chunks, started_at_ms, finished_at_ms
		FROM turn_log
		%s
		ORDER BY finished_at_ms DESC, rowid DESC
		LIMIT ?
	`, where)
	args = append(args, limitOf(q))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite turn log: query")
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var r Record
		var outcome string
		if err := rows.Scan(&r.SessionID, &r.TurnID, &r.Query, &r.Reply, &outcome, &r.Error, &r.Chunks, &r.StartedAtMs, &r.FinishedAtMs); err != nil {
			return nil, errors.Wrap(err, "sqlite turn log: scan")
		}
		r.Outcome = Outcome(outcome)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite turn log: rows")
	}
	return out, nil
}
