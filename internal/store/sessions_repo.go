package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lockcycled/internal/core"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrCycleNotFound   = errors.New("cycle not found")
)

func (s *Store) InsertSession(ctx context.Context, session *core.Session) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO sessions (id, mode, status, started_at, ended_at, cycles, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, session.ID, session.Mode, session.Status,
		session.StartedAt.UTC().Format(time.RFC3339Nano), nullableTime(session.EndedAt),
		session.Cycles, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) MarkSessionEnded(ctx context.Context, id string, status core.SessionStatus, endedAt time.Time, cycles int) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, ended_at = ?, cycles = ?
		WHERE id = ?
	`, status, endedAt.UTC().Format(time.RFC3339Nano), cycles, id)
	if err != nil {
		return fmt.Errorf("mark session ended: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*core.Session, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, mode, status, started_at, ended_at, cycles
		FROM sessions WHERE id = ?
	`, id)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *Store) ListSessions(ctx context.Context, limit, offset int) ([]*core.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, mode, status, started_at, ended_at, cycles
		FROM sessions
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var sessions []*core.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// PruneOldSessions removes sessions (and their cycles) beyond the retention
// limit.
func (s *Store) PruneOldSessions(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
		DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)
	`, s.SessionKeep)
	if err != nil {
		return fmt.Errorf("prune sessions: %w", err)
	}
	return nil
}

func (s *Store) InsertCycle(ctx context.Context, cycle *core.Cycle) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO cycles (id, session_id, seq, lock_hold_ms, status, started_at, ended_at, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cycle.ID, cycle.SessionID, cycle.Seq, cycle.LockHold.Milliseconds(), cycle.Status,
		cycle.StartedAt.UTC().Format(time.RFC3339Nano), nullableTime(cycle.EndedAt),
		nullableString(cycle.Error), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

func (s *Store) MarkCycleEnded(ctx context.Context, id string, status core.CycleStatus, endedAt time.Time, errMsg *string) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE cycles
		SET status = ?, ended_at = ?, error = ?
		WHERE id = ?
	`, status, endedAt.UTC().Format(time.RFC3339Nano), nullableString(errMsg), id)
	if err != nil {
		return fmt.Errorf("mark cycle ended: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCycleNotFound
	}
	return nil
}

func (s *Store) ListCycles(ctx context.Context, sessionID string, limit, offset int) ([]*core.Cycle, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, session_id, seq, lock_hold_ms, status, started_at, ended_at, error
		FROM cycles
		WHERE session_id = ?
		ORDER BY seq ASC
		LIMIT ? OFFSET ?
	`, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()
	var cycles []*core.Cycle
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cycles, nil
}

func scanSession(scanner interface {
	Scan(dest ...any) error
}) (*core.Session, error) {
	var (
		id        string
		mode      string
		status    string
		startedAt string
		endedAt   sql.NullString
		cycles    int
	)
	if err := scanner.Scan(&id, &mode, &status, &startedAt, &endedAt, &cycles); err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session := &core.Session{
		ID:        id,
		Mode:      core.Mode(mode),
		Status:    core.SessionStatus(status),
		StartedAt: mustParseTime(startedAt),
		Cycles:    cycles,
	}
	if endedAt.Valid {
		t := mustParseTime(endedAt.String)
		session.EndedAt = &t
	}
	return session, nil
}

func scanCycle(scanner interface {
	Scan(dest ...any) error
}) (*core.Cycle, error) {
	var (
		id         string
		sessionID  string
		seq        int
		lockHoldMs int64
		status     string
		startedAt  string
		endedAt    sql.NullString
		errMsg     sql.NullString
	)
	if err := scanner.Scan(&id, &sessionID, &seq, &lockHoldMs, &status, &startedAt, &endedAt, &errMsg); err != nil {
		return nil, fmt.Errorf("scan cycle: %w", err)
	}
	cycle := &core.Cycle{
		ID:        id,
		SessionID: sessionID,
		Seq:       seq,
		LockHold:  time.Duration(lockHoldMs) * time.Millisecond,
		Status:    core.CycleStatus(status),
		StartedAt: mustParseTime(startedAt),
	}
	if endedAt.Valid {
		t := mustParseTime(endedAt.String)
		cycle.EndedAt = &t
	}
	if errMsg.Valid {
		cycle.Error = &errMsg.String
	}
	return cycle, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func mustParseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		panic(fmt.Sprintf("invalid stored time %q: %v", value, err))
	}
	return t
}
