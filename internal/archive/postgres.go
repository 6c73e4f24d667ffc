package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fluentia/fluentia/internal/correction"
)

const ddlPracticeTurns = `
CREATE TABLE IF NOT EXISTS practice_turns (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    role        TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    language    TEXT         NOT NULL DEFAULT '',
    scenario    TEXT         NOT NULL DEFAULT '',
    level       TEXT         NOT NULL DEFAULT '',
    correction  JSONB,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_practice_turns_session_id
    ON practice_turns (session_id);

CREATE INDEX IF NOT EXISTS idx_practice_turns_session_created
    ON practice_turns (session_id, created_at);
`

// PostgresStore is a [Store] backed by a practice_turns table.
// All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Compile-time interface assertion.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and ensures the schema exists. The
// migration is idempotent and safe to run on every start.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlPracticeTurns); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Ping checks database connectivity, for readiness probes.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RecordTurn implements [Store].
func (s *PostgresStore) RecordTurn(ctx context.Context, turn Turn) error {
	var corr []byte
	if turn.Correction != nil {
		var err error
		corr, err = json.Marshal(turn.Correction)
		if err != nil {
			return fmt.Errorf("archive: marshal correction: %w", err)
		}
	}

	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const q = `
		INSERT INTO practice_turns
		    (session_id, role, content, language, scenario, level, correction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, q,
		turn.SessionID,
		turn.Role,
		turn.Content,
		turn.Language,
		turn.Scenario,
		turn.Level,
		corr,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("archive: record turn: %w", err)
	}
	return nil
}

// RecentTurns implements [Store]. It returns the last limit turns of a
// session in chronological order.
func (s *PostgresStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
		SELECT session_id, role, content, language, scenario, level, correction, created_at
		FROM (
		    SELECT *
		    FROM   practice_turns
		    WHERE  session_id = $1
		    ORDER  BY created_at DESC
		    LIMIT  $2
		) latest
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: recent turns: %w", err)
	}
	return collectTurns(rows)
}

// Close implements [Store].
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// collectTurns scans pgx rows into Turn values.
func collectTurns(rows pgx.Rows) ([]Turn, error) {
	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Turn, error) {
		var (
			t    Turn
			corr []byte
		)
		if err := row.Scan(
			&t.SessionID,
			&t.Role,
			&t.Content,
			&t.Language,
			&t.Scenario,
			&t.Level,
			&corr,
			&t.CreatedAt,
		); err != nil {
			return Turn{}, err
		}
		if len(corr) > 0 {
			var r correction.Result
			if err := json.Unmarshal(corr, &r); err != nil {
				return Turn{}, err
			}
			t.Correction = &r
		}
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: scan rows: %w", err)
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}
