// Package storage persists live sessions and archives completed ones.
// File: storage/sql_store.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"go-lift-control/logger"
	"go-lift-control/models"
	"go-lift-control/services"
)

var _ services.SessionStore = (*SQLStore)(nil)

// Dialect selects the SQL flavour spoken by the store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// schema is portable between SQLite and Postgres. Timestamps are unix millis.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS live_sessions (
	   id TEXT PRIMARY KEY,
	   competition_id TEXT NOT NULL,
	   status TEXT NOT NULL,
	   current_discipline TEXT NOT NULL,
	   current_attempt_id TEXT NOT NULL,
	   current_athlete_id TEXT NOT NULL,
	   current_attempt_number INTEGER NOT NULL,
	   current_round INTEGER NOT NULL,
	   total_rounds INTEGER NOT NULL,
	   awaiting_next INTEGER NOT NULL,
	   timer_duration_ms BIGINT NOT NULL,
	   timer_remaining_ms BIGINT NOT NULL,
	   judges TEXT NOT NULL,
	   auto_advance INTEGER NOT NULL,
	   show_results INTEGER NOT NULL,
	   spectator_access INTEGER NOT NULL,
	   timeout_policy TEXT NOT NULL,
	   created_at BIGINT NOT NULL,
	   updated_at BIGINT NOT NULL,
	   started_at BIGINT NOT NULL,
	   ended_at BIGINT NOT NULL
	 )`,
	`CREATE TABLE IF NOT EXISTS queue_items (
	   id TEXT NOT NULL,
	   session_id TEXT NOT NULL,
	   athlete_id TEXT NOT NULL,
	   athlete_name TEXT NOT NULL,
	   discipline TEXT NOT NULL,
	   attempt_number INTEGER NOT NULL,
	   requested_weight DOUBLE PRECISION NOT NULL,
	   queue_order INTEGER NOT NULL,
	   status TEXT NOT NULL,
	   PRIMARY KEY (session_id, id)
	 )`,
	`CREATE INDEX IF NOT EXISTS idx_queue_items_order ON queue_items (session_id, queue_order)`,
	`CREATE TABLE IF NOT EXISTS judge_votes (
	   session_id TEXT NOT NULL,
	   attempt_id TEXT NOT NULL,
	   judge_id TEXT NOT NULL,
	   decision TEXT NOT NULL,
	   notes TEXT NOT NULL,
	   voted_at BIGINT NOT NULL,
	   PRIMARY KEY (session_id, attempt_id, judge_id)
	 )`,
}

// SQLStore is a SessionStore on database/sql, backed by SQLite or Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLStore connects to the database and applies the schema.
func OpenSQLStore(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	var driver string
	switch dialect {
	case DialectSQLite:
		driver = "sqlite"
	case DialectPostgres:
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// one writer keeps SQLite free of SQLITE_BUSY and :memory: on one handle
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", dialect, err)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info.Printf("[OpenSQLStore] %s store ready", dialect)
	return s, nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSession upserts a session. An older snapshot never overwrites a newer one.
func (s *SQLStore) SaveSession(ctx context.Context, ls models.LiveSession) error {
	judges, err := json.Marshal(ls.Judges)
	if err != nil {
		return fmt.Errorf("encode judges: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO live_sessions (
		   id, competition_id, status, current_discipline, current_attempt_id,
		   current_athlete_id, current_attempt_number, current_round, total_rounds,
		   awaiting_next, timer_duration_ms, timer_remaining_ms, judges,
		   auto_advance, show_results, spectator_access, timeout_policy,
		   created_at, updated_at, started_at, ended_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   competition_id = excluded.competition_id,
		   status = excluded.status,
		   current_discipline = excluded.current_discipline,
		   current_attempt_id = excluded.current_attempt_id,
		   current_athlete_id = excluded.current_athlete_id,
		   current_attempt_number = excluded.current_attempt_number,
		   current_round = excluded.current_round,
		   total_rounds = excluded.total_rounds,
		   awaiting_next = excluded.awaiting_next,
		   timer_duration_ms = excluded.timer_duration_ms,
		   timer_remaining_ms = excluded.timer_remaining_ms,
		   judges = excluded.judges,
		   auto_advance = excluded.auto_advance,
		   show_results = excluded.show_results,
		   spectator_access = excluded.spectator_access,
		   timeout_policy = excluded.timeout_policy,
		   updated_at = excluded.updated_at,
		   started_at = excluded.started_at,
		   ended_at = excluded.ended_at
		 WHERE live_sessions.updated_at <= excluded.updated_at`),
		ls.ID, ls.CompetitionID, string(ls.Status), ls.CurrentDiscipline, ls.CurrentAttemptID,
		ls.CurrentAthleteID, ls.CurrentAttemptNumber, ls.CurrentRound, ls.TotalRounds,
		boolToInt(ls.AwaitingNext), ls.Timer.Duration.Milliseconds(), ls.Timer.Remaining.Milliseconds(), string(judges),
		boolToInt(ls.Settings.AutoAdvance), boolToInt(ls.Settings.ShowResults), boolToInt(ls.Settings.SpectatorAccess),
		string(ls.Settings.TimeoutPolicy),
		toMillis(ls.CreatedAt), toMillis(ls.UpdatedAt), toMillis(ls.StartedAt), toMillis(ls.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", ls.ID, err)
	}
	return nil
}

// SaveQueueItems upserts items in one transaction.
func (s *SQLStore) SaveQueueItems(ctx context.Context, items []models.QueueItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO queue_items (
		   id, session_id, athlete_id, athlete_name, discipline,
		   attempt_number, requested_weight, queue_order, status
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, id) DO UPDATE SET
		   athlete_id = excluded.athlete_id,
		   athlete_name = excluded.athlete_name,
		   discipline = excluded.discipline,
		   attempt_number = excluded.attempt_number,
		   requested_weight = excluded.requested_weight,
		   queue_order = excluded.queue_order,
		   status = excluded.status`))
	if err != nil {
		return fmt.Errorf("prepare queue upsert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.ExecContext(ctx,
			it.ID, it.SessionID, it.AthleteID, it.AthleteName, it.Discipline,
			it.AttemptNumber, it.RequestedWeight, it.Order, string(it.Status),
		); err != nil {
			return fmt.Errorf("save queue item %s: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit queue items: %w", err)
	}
	return nil
}

// SaveVote upserts one judge's vote; a re-vote replaces the earlier one.
func (s *SQLStore) SaveVote(ctx context.Context, sessionID, attemptID string, v models.JudgeVote) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO judge_votes (session_id, attempt_id, judge_id, decision, notes, voted_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, attempt_id, judge_id) DO UPDATE SET
		   decision = excluded.decision,
		   notes = excluded.notes,
		   voted_at = excluded.voted_at`),
		sessionID, attemptID, v.JudgeID, string(v.Decision), v.Notes, toMillis(v.At),
	)
	if err != nil {
		return fmt.Errorf("save vote of %s: %w", v.JudgeID, err)
	}
	return nil
}

const sessionColumns = `id, competition_id, status, current_discipline, current_attempt_id,
	current_athlete_id, current_attempt_number, current_round, total_rounds,
	awaiting_next, timer_duration_ms, timer_remaining_ms, judges,
	auto_advance, show_results, spectator_access, timeout_policy,
	created_at, updated_at, started_at, ended_at`

// LoadSession reads one session.
func (s *SQLStore) LoadSession(ctx context.Context, id string) (models.LiveSession, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+sessionColumns+` FROM live_sessions WHERE id = ?`), id)
	ls, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LiveSession{}, fmt.Errorf("%w: %s", services.ErrSessionNotFound, id)
	}
	return ls, err
}

// ListSessions returns every stored session, oldest first.
func (s *SQLStore) ListSessions(ctx context.Context) ([]models.LiveSession, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM live_sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []models.LiveSession
	for rows.Next() {
		ls, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ls)
	}
	return out, rows.Err()
}

// ListQueueItems returns a session's queue in lift order.
func (s *SQLStore) ListQueueItems(ctx context.Context, sessionID string) ([]models.QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, session_id, athlete_id, athlete_name, discipline,
		        attempt_number, requested_weight, queue_order, status
		   FROM queue_items
		  WHERE session_id = ?
		  ORDER BY queue_order`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var out []models.QueueItem
	for rows.Next() {
		var (
			it     models.QueueItem
			status string
		)
		if err := rows.Scan(&it.ID, &it.SessionID, &it.AthleteID, &it.AthleteName, &it.Discipline,
			&it.AttemptNumber, &it.RequestedWeight, &it.Order, &status); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		it.Status = models.QueueStatus(status)
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListVotes returns the votes stored for one attempt ordered by judge.
func (s *SQLStore) ListVotes(ctx context.Context, sessionID, attemptID string) ([]models.JudgeVote, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT judge_id, decision, notes, voted_at
		   FROM judge_votes
		  WHERE session_id = ? AND attempt_id = ?
		  ORDER BY judge_id`), sessionID, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var out []models.JudgeVote
	for rows.Next() {
		var (
			v        models.JudgeVote
			decision string
			at       int64
		)
		if err := rows.Scan(&v.JudgeID, &decision, &v.Notes, &at); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.Decision = models.Decision(decision)
		v.At = fromMillis(at)
		out = append(out, v)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (models.LiveSession, error) {
	var (
		ls                                   models.LiveSession
		status, judges, policy               string
		awaiting, auto, show, spectators     int
		durationMs, remainingMs              int64
		createdAt, updatedAt, startedAt, end int64
	)
	err := row.Scan(
		&ls.ID, &ls.CompetitionID, &status, &ls.CurrentDiscipline, &ls.CurrentAttemptID,
		&ls.CurrentAthleteID, &ls.CurrentAttemptNumber, &ls.CurrentRound, &ls.TotalRounds,
		&awaiting, &durationMs, &remainingMs, &judges,
		&auto, &show, &spectators, &policy,
		&createdAt, &updatedAt, &startedAt, &end,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.LiveSession{}, err
		}
		return models.LiveSession{}, fmt.Errorf("scan session: %w", err)
	}
	if err := json.Unmarshal([]byte(judges), &ls.Judges); err != nil {
		return models.LiveSession{}, fmt.Errorf("decode judges of %s: %w", ls.ID, err)
	}
	ls.Status = models.SessionStatus(status)
	ls.AwaitingNext = awaiting != 0
	ls.Timer = models.TimerState{
		Duration:  time.Duration(durationMs) * time.Millisecond,
		Remaining: time.Duration(remainingMs) * time.Millisecond,
	}
	ls.Settings = models.SessionSettings{
		AutoAdvance:     auto != 0,
		ShowResults:     show != 0,
		SpectatorAccess: spectators != 0,
		TimeoutPolicy:   models.TimeoutPolicy(policy),
	}
	ls.CreatedAt = fromMillis(createdAt)
	ls.UpdatedAt = fromMillis(updatedAt)
	ls.StartedAt = fromMillis(startedAt)
	ls.EndedAt = fromMillis(end)
	return ls, nil
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// toMillis stores the zero time as 0 so it round-trips.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
