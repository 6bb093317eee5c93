// File: internal/memory/sqlite_store.go
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/config"
	"github.com/Firstp1ck/android-agent/internal/textutil"
)

// SQLiteStore persists the experience cache across sessions. It implements
// the same matching and learning semantics as InMemoryStore; rows are ordered
// by insertion rowid so tie-breaking stays deterministic after a restart.
type SQLiteStore struct {
	logger *zap.Logger
	cfg    config.MemoryConfig
	db     *sql.DB
	now    func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS templates (
    id                 TEXT PRIMARY KEY,
    pattern            TEXT NOT NULL,
    normalized_pattern TEXT NOT NULL,
    actions            BLOB NOT NULL,
    parameter_slots    BLOB,
    success_rate       REAL NOT NULL,
    use_count          INTEGER NOT NULL,
    created_at         TIMESTAMP NOT NULL,
    last_used_at       TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS counters (
    name  TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);
INSERT OR IGNORE INTO counters (name, value) VALUES ('total_executions', 0);
`

// NewSQLiteStore opens (and if necessary creates) the template database at
// the configured path.
func NewSQLiteStore(cfg config.MemoryConfig, logger *zap.Logger) (*SQLiteStore, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 5000
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = 0.70
	}
	if cfg.UpdateThreshold <= 0 {
		cfg.UpdateThreshold = 0.90
	}

	db, err := sql.Open("sqlite3", cfg.SQLitePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open template database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize template schema: %w", err)
	}

	return &SQLiteStore{
		logger: logger.Named("memory.sqlite"),
		cfg:    cfg,
		db:     db,
		now:    time.Now,
	}, nil
}

// FindMatch loads stored patterns in insertion order and returns the best
// template at or above the match threshold.
func (s *SQLiteStore) FindMatch(ctx context.Context, queryText string) (*schemas.TemplateMatch, error) {
	normalized := textutil.Normalize(queryText)
	if normalized == "" {
		return nil, nil
	}

	best, bestScore, err := s.bestMatch(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if best == nil || bestScore < s.cfg.MatchThreshold {
		return nil, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE templates SET last_used_at = ? WHERE id = ?`, s.now(), best.ID); err != nil {
		return nil, fmt.Errorf("failed to touch template: %w", err)
	}

	return &schemas.TemplateMatch{Template: *best, Confidence: bestScore}, nil
}

// LearnFromExecution reinforces a near-identical template in place or inserts
// a new row, evicting least recently used rows beyond capacity.
func (s *SQLiteStore) LearnFromExecution(ctx context.Context, plan schemas.ActionPlan, results []schemas.ActionResult) error {
	if len(results) == 0 {
		return nil
	}
	successes := 0
	for _, r := range results {
		if r.Success {
			successes++
		}
	}
	newRate := float64(successes) / float64(len(results))
	normalized := textutil.Normalize(plan.Description)

	if _, err := s.db.ExecContext(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = 'total_executions'`); err != nil {
		return fmt.Errorf("failed to count execution: %w", err)
	}

	best, bestScore, err := s.bestMatch(ctx, normalized)
	if err != nil {
		return err
	}

	now := s.now()
	if best != nil && bestScore > s.cfg.UpdateThreshold {
		useCount := best.UseCount + 1
		rate := (best.SuccessRate*float64(useCount-1) + newRate) / float64(useCount)
		_, err := s.db.ExecContext(ctx,
			`UPDATE templates SET use_count = ?, success_rate = ?, last_used_at = ? WHERE id = ?`,
			useCount, rate, now, best.ID)
		if err != nil {
			return fmt.Errorf("failed to reinforce template: %w", err)
		}
		return nil
	}

	actions, slots := deriveTemplate(plan)
	actionsBlob, err := schemas.MarshalActions(actions)
	if err != nil {
		return fmt.Errorf("failed to encode template actions: %w", err)
	}
	var slotsBlob []byte
	if len(slots) > 0 {
		if slotsBlob, err = jsonAPI.Marshal(slots); err != nil {
			return fmt.Errorf("failed to encode parameter slots: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (id, pattern, normalized_pattern, actions, parameter_slots, success_rate, use_count, created_at, last_used_at)
         VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		uuid.NewString(), plan.Description, normalized, actionsBlob, slotsBlob, newRate, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}

	return s.evict(ctx)
}

// Stats reads counts and the mean success rate from the database.
func (s *SQLiteStore) Stats(ctx context.Context) (schemas.MemoryStats, error) {
	var stats schemas.MemoryStats
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(success_rate), 0) FROM templates`)
	if err := row.Scan(&stats.TemplateCount, &stats.AverageSuccessRate); err != nil {
		return stats, fmt.Errorf("failed to read template stats: %w", err)
	}
	row = s.db.QueryRowContext(ctx,
		`SELECT value FROM counters WHERE name = 'total_executions'`)
	if err := row.Scan(&stats.TotalExecutions); err != nil {
		return stats, fmt.Errorf("failed to read execution counter: %w", err)
	}
	return stats, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// bestMatch scans all rows in rowid order and scores each stored pattern.
// The capacity bound keeps this a small table; no index gymnastics needed.
func (s *SQLiteStore) bestMatch(ctx context.Context, normalized string) (*schemas.TaskTemplate, float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pattern, normalized_pattern, actions, parameter_slots, success_rate, use_count, created_at, last_used_at
         FROM templates ORDER BY rowid ASC`)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var (
		best      *schemas.TaskTemplate
		bestScore float64
	)
	for rows.Next() {
		var (
			tpl         schemas.TaskTemplate
			actionsBlob []byte
			slotsBlob   []byte
		)
		if err := rows.Scan(&tpl.ID, &tpl.Pattern, &tpl.NormalizedPattern, &actionsBlob, &slotsBlob,
			&tpl.SuccessRate, &tpl.UseCount, &tpl.CreatedAt, &tpl.LastUsedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan template row: %w", err)
		}
		if score := textutil.Similarity(normalized, tpl.NormalizedPattern); score > bestScore {
			actions, err := schemas.UnmarshalActions(actionsBlob)
			if err != nil {
				// A corrupt row should not poison matching; skip it.
				s.logger.Warn("Skipping undecodable template row", zap.String("id", tpl.ID), zap.Error(err))
				continue
			}
			tpl.Actions = actions
			if len(slotsBlob) > 0 {
				if err := jsonAPI.Unmarshal(slotsBlob, &tpl.ParameterSlots); err != nil {
					s.logger.Warn("Skipping template row with undecodable slots", zap.String("id", tpl.ID), zap.Error(err))
					continue
				}
			}
			copied := tpl
			best = &copied
			bestScore = score
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error during template row iteration: %w", err)
	}
	return best, bestScore, nil
}

func (s *SQLiteStore) evict(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
        DELETE FROM templates WHERE id IN (
            SELECT id FROM templates ORDER BY last_used_at ASC, rowid ASC
            LIMIT MAX(0, (SELECT COUNT(*) FROM templates) - ?)
        )`, s.cfg.Capacity)
	if err != nil {
		return fmt.Errorf("failed to evict templates: %w", err)
	}
	return nil
}
