// File: internal/memory/store_test.go
package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/config"
	"github.com/Firstp1ck/android-agent/internal/textutil"
)

func newTestStore(t *testing.T, cfg config.MemoryConfig) *InMemoryStore {
	t.Helper()
	s := NewInMemoryStore(cfg, zap.NewNop())
	return s
}

func planFor(description string) schemas.ActionPlan {
	actions := []schemas.Action{
		schemas.Home{ActionMeta: schemas.ActionMeta{ID: "a1", Description: "go home", Safety: schemas.SafetySafe}},
	}
	return schemas.NewActionPlan("p1", description, actions, true, nil)
}

func successResults(n int) []schemas.ActionResult {
	results := make([]schemas.ActionResult, n)
	for i := range results {
		results[i] = schemas.NewSuccessResult("a1", time.Millisecond, "ok")
	}
	return results
}

func TestFindMatchThreshold(t *testing.T) {
	s := newTestStore(t, config.MemoryConfig{MatchThreshold: 0.70})
	ctx := context.Background()

	require.NoError(t, s.LearnFromExecution(ctx, planFor("send message to john"), successResults(2)))

	// Identical query scores 1.0.
	match, err := s.FindMatch(ctx, "send message to john")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.InDelta(t, 1.0, match.Confidence, 1e-9)

	// One token of four swapped: 3/5 = 0.6, below the floor.
	match, err = s.FindMatch(ctx, "send message to jane")
	require.NoError(t, err)
	assert.Nil(t, match)

	// Unrelated query never matches.
	match, err = s.FindMatch(ctx, "turn on bluetooth")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestFindMatchEmptyQuery(t *testing.T) {
	s := newTestStore(t, config.MemoryConfig{})
	match, err := s.FindMatch(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestFindMatchTieFirstInsertedWins(t *testing.T) {
	s := newTestStore(t, config.MemoryConfig{MatchThreshold: 0.5})
	ctx := context.Background()

	// Same normalized pattern inserted twice; force two templates by keeping
	// similarity between them below the update threshold using distinct
	// patterns with equal similarity to the probe.
	first := schemas.TaskTemplate{
		ID: "first", Pattern: "open whatsapp now",
		NormalizedPattern: textutil.Normalize("open whatsapp now"),
		CreatedAt:         time.Unix(1, 0), LastUsedAt: time.Unix(1, 0),
	}
	second := schemas.TaskTemplate{
		ID: "second", Pattern: "open whatsapp please",
		NormalizedPattern: textutil.Normalize("open whatsapp please"),
		CreatedAt:         time.Unix(2, 0), LastUsedAt: time.Unix(2, 0),
	}
	s.Seed([]schemas.TaskTemplate{first, second})

	// "open whatsapp" scores 2/3 against both.
	match, err := s.FindMatch(ctx, "open whatsapp")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "first", match.Template.ID)
	assert.InDelta(t, 2.0/3.0, match.Confidence, 1e-9)
}

func TestLearnReinforcesNearIdenticalTemplate(t *testing.T) {
	s := newTestStore(t, config.MemoryConfig{UpdateThreshold: 0.90})
	ctx := context.Background()

	require.NoError(t, s.LearnFromExecution(ctx, planFor("open spotify"), successResults(2)))

	// Identical description reinforces in place with a running mean.
	failing := []schemas.ActionResult{
		schemas.NewSuccessResult("a1", time.Millisecond, "ok"),
		schemas.NewFailureResult("a2", time.Millisecond, "boom", false),
	}
	require.NoError(t, s.LearnFromExecution(ctx, planFor("open spotify"), failing))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TemplateCount)
	assert.Equal(t, 2, stats.TotalExecutions)
	// (1.0 + 0.5) / 2
	assert.InDelta(t, 0.75, stats.AverageSuccessRate, 1e-9)
}

func TestLearnInsertsDistinctTemplate(t *testing.T) {
	s := newTestStore(t, config.MemoryConfig{UpdateThreshold: 0.90})
	ctx := context.Background()

	require.NoError(t, s.LearnFromExecution(ctx, planFor("open spotify"), successResults(1)))
	require.NoError(t, s.LearnFromExecution(ctx, planFor("call mom on speaker"), successResults(1)))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TemplateCount)
}

func TestLearnIgnoresEmptyResults(t *testing.T) {
	s := newTestStore(t, config.MemoryConfig{})
	require.NoError(t, s.LearnFromExecution(context.Background(), planFor("open spotify"), nil))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TemplateCount)
	assert.Zero(t, stats.TotalExecutions)
}

func TestEvictionDropsLeastRecentlyUsed(t *testing.T) {
	s := newTestStore(t, config.MemoryConfig{Capacity: 2, MatchThreshold: 0.5})
	ctx := context.Background()

	base := time.Unix(1000, 0)
	current := base
	s.now = func() time.Time { return current }

	require.NoError(t, s.LearnFromExecution(ctx, planFor("open spotify"), successResults(1)))
	current = base.Add(time.Minute)
	require.NoError(t, s.LearnFromExecution(ctx, planFor("call mom please"), successResults(1)))

	// Touch the older template so the middle one becomes the LRU victim.
	current = base.Add(2 * time.Minute)
	match, err := s.FindMatch(ctx, "open spotify")
	require.NoError(t, err)
	require.NotNil(t, match)

	current = base.Add(3 * time.Minute)
	require.NoError(t, s.LearnFromExecution(ctx, planFor("turn on bluetooth"), successResults(1)))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TemplateCount)

	// The touched template survived; the untouched one is gone.
	match, err = s.FindMatch(ctx, "open spotify")
	require.NoError(t, err)
	assert.NotNil(t, match)
	match, err = s.FindMatch(ctx, "call mom please")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestFindMatchReturnsClone(t *testing.T) {
	s := newTestStore(t, config.MemoryConfig{MatchThreshold: 0.5})
	ctx := context.Background()

	require.NoError(t, s.LearnFromExecution(ctx, planFor("open spotify"), successResults(1)))

	match, err := s.FindMatch(ctx, "open spotify")
	require.NoError(t, err)
	require.NotNil(t, match)
	require.Len(t, match.Template.Actions, 1)

	// Mutating the returned copy must not corrupt the stored template.
	match.Template.Actions[0] = schemas.Back{ActionMeta: schemas.ActionMeta{ID: "hacked"}}
	again, err := s.FindMatch(ctx, "open spotify")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "a1", again.Template.Actions[0].Meta().ID)
}
