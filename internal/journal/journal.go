// Package journal keeps a SQLite record of mission progress and final scores.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome is a recorded step transition.
type Outcome string

const (
	Started Outcome = "started"
	Won     Outcome = "won"
	Lost    Outcome = "lost"
)

// Step is one step transition.
type Step struct {
	Scenario string
	Step     string
	Index    int
	Outcome  Outcome
	// At is the simulated time of the transition.
	At time.Duration
	// RecordedAt is the wall-clock time; zero means now.
	RecordedAt time.Time
}

// Rank places a score among every score recorded for its scenario.
// Position is 1 for the best (shortest) score.
type Rank struct {
	Position int
	Total    int
}

// ErrNotConfigured is returned by a nil or closed journal.
var ErrNotConfigured = errors.New("journal: not configured")

const schema = `
CREATE TABLE IF NOT EXISTS steps (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	scenario    TEXT    NOT NULL,
	step        TEXT    NOT NULL,
	step_index  INTEGER NOT NULL,
	outcome     TEXT    NOT NULL,
	sim_ms      INTEGER NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scores (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	scenario    TEXT    NOT NULL,
	score_ms    INTEGER NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS scores_scenario ON scores (scenario, score_ms);
`

// Journal is a SQLite-backed mission journal.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordStep stores a step transition.
func (j *Journal) RecordStep(ctx context.Context, s Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if j == nil || j.db == nil {
		return ErrNotConfigured
	}
	if s.Step == "" {
		return fmt.Errorf("step id is required")
	}
	if s.RecordedAt.IsZero() {
		s.RecordedAt = j.now()
	}
	_, err := j.db.ExecContext(ctx, `
INSERT INTO steps (scenario, step, step_index, outcome, sim_ms, recorded_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		s.Scenario,
		s.Step,
		s.Index,
		string(s.Outcome),
		s.At.Milliseconds(),
		s.RecordedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return nil
}

// RecordScore stores a final score and returns its rank.
func (j *Journal) RecordScore(ctx context.Context, scenario string, score time.Duration) (Rank, error) {
	if err := ctx.Err(); err != nil {
		return Rank{}, err
	}
	if j == nil || j.db == nil {
		return Rank{}, ErrNotConfigured
	}
	_, err := j.db.ExecContext(ctx, `
INSERT INTO scores (scenario, score_ms, recorded_at) VALUES (?, ?, ?)
`, scenario, score.Milliseconds(), j.now().UTC().UnixMilli())
	if err != nil {
		return Rank{}, fmt.Errorf("record score: %w", err)
	}
	return j.Rank(ctx, scenario, score)
}

// Rank places score among the recorded scores of scenario without storing it.
// Ties share the better position.
func (j *Journal) Rank(ctx context.Context, scenario string, score time.Duration) (Rank, error) {
	if j == nil || j.db == nil {
		return Rank{}, ErrNotConfigured
	}
	var better, total int
	err := j.db.QueryRowContext(ctx, `
SELECT
	COALESCE(SUM(CASE WHEN score_ms < ? THEN 1 ELSE 0 END), 0),
	COUNT(*)
FROM scores WHERE scenario = ?
`, score.Milliseconds(), scenario).Scan(&better, &total)
	if err != nil {
		return Rank{}, fmt.Errorf("rank score: %w", err)
	}
	if total == 0 {
		total = 1
	}
	return Rank{Position: better + 1, Total: total}, nil
}

// Steps lists the newest step transitions of scenario, newest first.
func (j *Journal) Steps(ctx context.Context, scenario string, limit int) ([]Step, error) {
	if j == nil || j.db == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT scenario, step, step_index, outcome, sim_ms, recorded_at
FROM steps WHERE scenario = ?
ORDER BY id DESC
LIMIT ?
`, scenario, limit)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []Step
	for rows.Next() {
		var (
			s        Step
			outcome  string
			simMs    int64
			recorded int64
		)
		if err := rows.Scan(&s.Scenario, &s.Step, &s.Index, &outcome, &simMs, &recorded); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		s.Outcome = Outcome(outcome)
		s.At = time.Duration(simMs) * time.Millisecond
		s.RecordedAt = time.UnixMilli(recorded).UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return out, nil
}
