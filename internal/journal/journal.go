package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/cellnode/internal/transport"
)

// DefaultBuffer is the number of envelopes Record holds for the writer.
const DefaultBuffer = 1024

// ErrNoSessions is returned when the journal has never recorded a session.
var ErrNoSessions = errors.New("journal has no sessions")

// Session is one recorded run of the node.
type Session struct {
	ID        string
	Node      string
	StartedAt time.Time
	EndedAt   *time.Time
	Events    int
}

// Entry is one recorded envelope.
type Entry struct {
	Seq       int64
	SessionID string
	transport.Envelope
}

// Journal records dispatched envelopes to SQLite. Record is called on the
// dispatch goroutine and never blocks it; Run performs the writes.
type Journal struct {
	db      *sql.DB
	logger  *slog.Logger
	pending chan transport.Envelope
	dropped atomic.Int64
	session string
}

func New(db *sql.DB, logger *slog.Logger) *Journal {
	return &Journal{
		db:      db,
		logger:  logger,
		pending: make(chan transport.Envelope, DefaultBuffer),
	}
}

// Begin opens a new session for node. Envelopes passed to Record are
// written under it.
func (j *Journal) Begin(ctx context.Context, node string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := j.db.ExecContext(ctx, `
INSERT INTO journal_session(id, node, started_at)
VALUES(?, ?, ?);
`, id, node, now)
	if err != nil {
		return "", fmt.Errorf("begin journal session: %w", err)
	}
	j.session = id
	j.logger.Info("journal session started", "session_id", id)
	return id, nil
}

// End stamps the session end time.
func (j *Journal) End(ctx context.Context, sessionID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := j.db.ExecContext(ctx, `UPDATE journal_session SET ended_at = ? WHERE id = ?;`, now, sessionID); err != nil {
		return fmt.Errorf("end journal session: %w", err)
	}
	return nil
}

// Record is a transport.Tap. When the writer falls behind the envelope is
// dropped from the journal; dispatch is unaffected.
func (j *Journal) Record(env transport.Envelope) {
	select {
	case j.pending <- env:
	default:
		if j.dropped.Add(1) == 1 {
			j.logger.Warn("journal writer behind, dropping envelopes", "channel", env.Channel)
		}
	}
}

// Dropped returns how many envelopes Record could not buffer.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Run writes recorded envelopes until ctx is cancelled, then flushes what is
// buffered and closes the session.
func (j *Journal) Run(ctx context.Context) error {
	if j.session == "" {
		return fmt.Errorf("journal session not started")
	}
	for {
		select {
		case env := <-j.pending:
			if err := j.Append(ctx, j.session, env); err != nil {
				j.logger.Error("failed to journal envelope", "channel", env.Channel, "id", env.ID, "error", err)
			}
		case <-ctx.Done():
			if err := j.flush(); err != nil {
				return err
			}
			return ctx.Err()
		}
	}
}

func (j *Journal) flush() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n := 0
	for {
		select {
		case env := <-j.pending:
			if err := j.Append(ctx, j.session, env); err != nil {
				return fmt.Errorf("flush journal: %w", err)
			}
			n++
		default:
			j.logger.Info("journal session closed", "session_id", j.session, "flushed", n, "dropped", j.Dropped())
			return j.End(ctx, j.session)
		}
	}
}

// Append writes one envelope under sessionID.
func (j *Journal) Append(ctx context.Context, sessionID string, env transport.Envelope) error {
	_, err := j.db.ExecContext(ctx, `
INSERT INTO event_journal(session_id, envelope_id, bus_seq, channel, payload, at)
VALUES(?, ?, ?, ?, ?, ?);
`, sessionID, env.ID, env.Seq, env.Channel, string(env.Payload), env.At.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// Sessions lists recorded sessions, newest first.
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT s.id, s.node, s.started_at, s.ended_at, COUNT(e.seq)
FROM journal_session s
LEFT JOIN event_journal e ON e.session_id = s.id
GROUP BY s.id
ORDER BY s.rowid DESC;
`)
	if err != nil {
		return nil, fmt.Errorf("list journal sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s          Session
			startedAtS string
			endedAtS   sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Node, &startedAtS, &endedAtS, &s.Events); err != nil {
			return nil, fmt.Errorf("scan journal session: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, startedAtS); err == nil {
			s.StartedAt = t
		}
		if endedAtS.Valid {
			if t, err := time.Parse(time.RFC3339Nano, endedAtS.String); err == nil {
				s.EndedAt = &t
			}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list journal sessions: %w", err)
	}
	return out, nil
}

// LatestSession returns the most recently started session.
func (j *Journal) LatestSession(ctx context.Context) (Session, error) {
	sessions, err := j.Sessions(ctx)
	if err != nil {
		return Session{}, err
	}
	if len(sessions) == 0 {
		return Session{}, ErrNoSessions
	}
	return sessions[0], nil
}

// Entries returns the envelopes of a session in recording order.
func (j *Journal) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT seq, session_id, envelope_id, bus_seq, channel, payload, at
FROM event_journal
WHERE session_id = ?
ORDER BY seq ASC;
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read journal entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			payload string
			atS     string
		)
		if err := rows.Scan(&e.Seq, &e.SessionID, &e.ID, &e.Envelope.Seq, &e.Channel, &payload, &atS); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Payload = []byte(payload)
		if t, err := time.Parse(time.RFC3339Nano, atS); err == nil {
			e.At = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read journal entries: %w", err)
	}
	return out, nil
}
