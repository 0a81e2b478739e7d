// Package sqlite archives published briefings in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 20

// Archive stores one row per briefing run.
type Archive struct {
	db *sql.DB
}

// Open opens or creates the archive at path and applies the schema.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return a, nil
}

func (a *Archive) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS briefings (
			run_id TEXT PRIMARY KEY,
			generated_at TEXT NOT NULL,
			edition TEXT NOT NULL,
			engine TEXT NOT NULL,
			gap_count INTEGER NOT NULL,
			hazard_count INTEGER NOT NULL,
			body BLOB NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_briefings_generated_at ON briefings(generated_at);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Name identifies the archive in logs and metrics.
func (a *Archive) Name() string { return "sqlite" }

// Publish stores a briefing. Re-publishing a run replaces the earlier row.
func (a *Archive) Publish(ctx context.Context, b domain.Briefing) error {
	if b.RunID == "" {
		return errors.New("briefing has no run id")
	}
	body, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal briefing: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO briefings (run_id, generated_at, edition, engine, gap_count, hazard_count, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.RunID, b.GeneratedAt.UTC().Format(timeLayout), b.Edition, b.Engine, len(b.DataGaps), hazardCount(b), body,
	)
	if err != nil {
		return fmt.Errorf("insert briefing %s: %w", b.RunID, err)
	}
	return nil
}

// Latest returns the most recently generated briefing. ok is false when the
// archive is empty.
func (a *Archive) Latest(ctx context.Context) (b domain.Briefing, ok bool, err error) {
	var body []byte
	err = a.db.QueryRowContext(ctx,
		`SELECT body FROM briefings ORDER BY generated_at DESC, run_id DESC LIMIT 1`,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Briefing{}, false, nil
	}
	if err != nil {
		return domain.Briefing{}, false, fmt.Errorf("query latest briefing: %w", err)
	}
	if err := json.Unmarshal(body, &b); err != nil {
		return domain.Briefing{}, false, fmt.Errorf("decode briefing: %w", err)
	}
	return b, true, nil
}

// Get returns one briefing by run id.
func (a *Archive) Get(ctx context.Context, runID string) (domain.Briefing, bool, error) {
	var body []byte
	err := a.db.QueryRowContext(ctx, `SELECT body FROM briefings WHERE run_id = ?`, runID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Briefing{}, false, nil
	}
	if err != nil {
		return domain.Briefing{}, false, fmt.Errorf("query briefing %s: %w", runID, err)
	}
	var b domain.Briefing
	if err := json.Unmarshal(body, &b); err != nil {
		return domain.Briefing{}, false, fmt.Errorf("decode briefing: %w", err)
	}
	return b, true, nil
}

// List returns up to limit entries, newest first. A limit of zero or less
// means DefaultListLimit.
func (a *Archive) List(ctx context.Context, limit int) ([]domain.ArchiveEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT run_id, generated_at, edition, engine, gap_count, hazard_count
		FROM briefings
		ORDER BY generated_at DESC, run_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list briefings: %w", err)
	}
	defer rows.Close()

	entries := []domain.ArchiveEntry{}
	for rows.Next() {
		var (
			e  domain.ArchiveEntry
			ts string
		)
		if err := rows.Scan(&e.RunID, &ts, &e.Edition, &e.Engine, &e.GapCount, &e.HazardCount); err != nil {
			return nil, fmt.Errorf("scan briefing row: %w", err)
		}
		if e.GeneratedAt, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse generated_at %q: %w", ts, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// hazardCount counts distinct hazards across all regions.
func hazardCount(b domain.Briefing) int {
	seen := make(map[string]bool)
	for _, r := range b.Regions {
		for _, h := range r.Hazards {
			seen[h.ID] = true
		}
	}
	return len(seen)
}
