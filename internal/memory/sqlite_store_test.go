// File: internal/memory/sqlite_store_test.go
package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/config"
)

func newSQLiteTestStore(t *testing.T, path string, cfg config.MemoryConfig) *SQLiteStore {
	t.Helper()
	cfg.SQLitePath = path
	s, err := NewSQLiteStore(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteLearnAndMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.db")
	s := newSQLiteTestStore(t, path, config.MemoryConfig{MatchThreshold: 0.70, UpdateThreshold: 0.90})
	ctx := context.Background()

	require.NoError(t, s.LearnFromExecution(ctx, planFor("send message to john"), successResults(2)))

	match, err := s.FindMatch(ctx, "send message to john")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.InDelta(t, 1.0, match.Confidence, 1e-9)
	require.Len(t, match.Template.Actions, 1)
	assert.Equal(t, "a1", match.Template.Actions[0].Meta().ID)

	// Below the floor: no match.
	match, err = s.FindMatch(ctx, "send message to jane")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestSQLiteReinforcement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.db")
	s := newSQLiteTestStore(t, path, config.MemoryConfig{UpdateThreshold: 0.90})
	ctx := context.Background()

	require.NoError(t, s.LearnFromExecution(ctx, planFor("open spotify"), successResults(2)))
	failing := []schemas.ActionResult{
		schemas.NewSuccessResult("a1", time.Millisecond, "ok"),
		schemas.NewFailureResult("a2", time.Millisecond, "boom", false),
	}
	require.NoError(t, s.LearnFromExecution(ctx, planFor("open spotify"), failing))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TemplateCount)
	assert.Equal(t, 2, stats.TotalExecutions)
	assert.InDelta(t, 0.75, stats.AverageSuccessRate, 1e-9)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.db")
	cfg := config.MemoryConfig{MatchThreshold: 0.70}
	ctx := context.Background()

	s := newSQLiteTestStore(t, path, cfg)
	require.NoError(t, s.LearnFromExecution(ctx, planFor("open spotify"), successResults(1)))
	require.NoError(t, s.Close())

	reopened := newSQLiteTestStore(t, path, cfg)
	match, err := reopened.FindMatch(ctx, "open spotify")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "open spotify", match.Template.Pattern)

	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TemplateCount)
	assert.Equal(t, 1, stats.TotalExecutions)
}

func TestSQLiteEviction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.db")
	s := newSQLiteTestStore(t, path, config.MemoryConfig{Capacity: 2, MatchThreshold: 0.5})
	ctx := context.Background()

	base := time.Unix(1000, 0)
	current := base
	s.now = func() time.Time { return current }

	require.NoError(t, s.LearnFromExecution(ctx, planFor("open spotify"), successResults(1)))
	current = base.Add(time.Minute)
	require.NoError(t, s.LearnFromExecution(ctx, planFor("call mom please"), successResults(1)))
	current = base.Add(2 * time.Minute)
	require.NoError(t, s.LearnFromExecution(ctx, planFor("turn on bluetooth"), successResults(1)))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TemplateCount)

	// The oldest template was evicted.
	match, err := s.FindMatch(ctx, "open spotify")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestFactorySelectsImplementation(t *testing.T) {
	logger := zap.NewNop()

	inmem, err := New(config.MemoryConfig{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &InMemoryStore{}, inmem)

	path := filepath.Join(t.TempDir(), "templates.db")
	persistent, err := New(config.MemoryConfig{SQLitePath: path}, logger)
	require.NoError(t, err)
	defer persistent.Close()
	assert.IsType(t, &SQLiteStore{}, persistent)
}
