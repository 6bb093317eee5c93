// File: internal/memory/store.go
// Description: The experience cache. Successful plans are memorized as task
// templates; new queries are matched against stored patterns by Jaccard
// similarity so the planner can be bypassed entirely on a good hit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/config"
	"github.com/Firstp1ck/android-agent/internal/textutil"
)

// Store is the experience cache contract consumed by the orchestrator.
type Store interface {
	// FindMatch returns the best-scoring template for the query, or nil when
	// no stored pattern reaches the match threshold. Confidence equals the
	// raw similarity score.
	FindMatch(ctx context.Context, queryText string) (*schemas.TemplateMatch, error)
	// LearnFromExecution folds an executed plan's outcome into the store:
	// reinforcing a near-identical template in place, or inserting a new one.
	LearnFromExecution(ctx context.Context, plan schemas.ActionPlan, results []schemas.ActionResult) error
	// Stats reports the externally observable store statistics.
	Stats(ctx context.Context) (schemas.MemoryStats, error)
	Close() error
}

// InMemoryStore is the default, process-local Store. It keeps templates in
// insertion order so equal-score matches resolve deterministically (first
// inserted wins) and evicts the least recently used template once the
// configured capacity is exceeded.
type InMemoryStore struct {
	logger *zap.Logger
	cfg    config.MemoryConfig

	mu              sync.Mutex
	templates       []*schemas.TaskTemplate
	totalExecutions int

	now func() time.Time
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory experience cache.
func NewInMemoryStore(cfg config.MemoryConfig, logger *zap.Logger) *InMemoryStore {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 5000
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = 0.70
	}
	if cfg.UpdateThreshold <= 0 {
		cfg.UpdateThreshold = 0.90
	}
	return &InMemoryStore{
		logger: logger.Named("memory"),
		cfg:    cfg,
		now:    time.Now,
	}
}

// FindMatch scores the query against every stored pattern and returns the
// single best template at or above the match threshold.
func (s *InMemoryStore) FindMatch(_ context.Context, queryText string) (*schemas.TemplateMatch, error) {
	normalized := textutil.Normalize(queryText)
	if normalized == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		best      *schemas.TaskTemplate
		bestScore float64
	)
	for _, tpl := range s.templates {
		// Strict greater-than keeps the first-inserted template on ties.
		if score := textutil.Similarity(normalized, tpl.NormalizedPattern); score > bestScore {
			bestScore = score
			best = tpl
		}
	}

	if best == nil || bestScore < s.cfg.MatchThreshold {
		return nil, nil
	}

	best.LastUsedAt = s.now()
	match := &schemas.TemplateMatch{Template: cloneTemplate(best), Confidence: bestScore}
	s.logger.Debug("Experience cache hit",
		zap.String("template_id", best.ID),
		zap.Float64("confidence", bestScore))
	return match, nil
}

// LearnFromExecution updates the store after a plan ran. The new success rate
// is successes/len(results); a template whose pattern is nearly identical to
// the plan's description (similarity above the update threshold) absorbs the
// outcome as a cumulative running mean, otherwise a fresh template is stored
// with its parameter values lifted into typed slots.
func (s *InMemoryStore) LearnFromExecution(_ context.Context, plan schemas.ActionPlan, results []schemas.ActionResult) error {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalExecutions++

	var (
		best      *schemas.TaskTemplate
		bestScore float64
	)
	for _, tpl := range s.templates {
		if score := textutil.Similarity(normalized, tpl.NormalizedPattern); score > bestScore {
			bestScore = score
			best = tpl
		}
	}

	if best != nil && bestScore > s.cfg.UpdateThreshold {
		best.UseCount++
		best.SuccessRate = (best.SuccessRate*float64(best.UseCount-1) + newRate) / float64(best.UseCount)
		best.LastUsedAt = s.now()
		s.logger.Debug("Reinforced existing template",
			zap.String("template_id", best.ID),
			zap.Int("use_count", best.UseCount),
			zap.Float64("success_rate", best.SuccessRate))
		return nil
	}

	actions, slots := deriveTemplate(plan)
	now := s.now()
	tpl := &schemas.TaskTemplate{
		ID:                uuid.NewString(),
		Pattern:           plan.Description,
		NormalizedPattern: normalized,
		Actions:           actions,
		ParameterSlots:    slots,
		SuccessRate:       newRate,
		UseCount:          1,
		CreatedAt:         now,
		LastUsedAt:        now,
	}
	s.templates = append(s.templates, tpl)
	s.evictLocked()
	s.logger.Debug("Stored new template", zap.String("template_id", tpl.ID))
	return nil
}

// evictLocked drops least-recently-used templates until the store fits its
// capacity again. Caller holds the mutex.
func (s *InMemoryStore) evictLocked() {
	for len(s.templates) > s.cfg.Capacity {
		oldest := 0
		for i, tpl := range s.templates {
			if tpl.LastUsedAt.Before(s.templates[oldest].LastUsedAt) {
				oldest = i
			}
		}
		evicted := s.templates[oldest]
		s.templates = append(s.templates[:oldest], s.templates[oldest+1:]...)
		s.logger.Debug("Evicted template over capacity", zap.String("template_id", evicted.ID))
	}
}

// Stats reports counts and the unweighted mean success rate across templates.
func (s *InMemoryStore) Stats(_ context.Context) (schemas.MemoryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := schemas.MemoryStats{
		TemplateCount:   len(s.templates),
		TotalExecutions: s.totalExecutions,
	}
	if len(s.templates) == 0 {
		return stats, nil
	}
	sum := 0.0
	for _, tpl := range s.templates {
		sum += tpl.SuccessRate
	}
	stats.AverageSuccessRate = sum / float64(len(s.templates))
	return stats, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// Seed inserts templates directly, preserving the given order. Used when
// hydrating from a persistent store and by tests.
func (s *InMemoryStore) Seed(templates []schemas.TaskTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Oldest first so eviction order stays meaningful after a reload.
	sorted := append([]schemas.TaskTemplate(nil), templates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	for i := range sorted {
		tpl := sorted[i]
		s.templates = append(s.templates, &tpl)
	}
	s.evictLocked()
}

func cloneTemplate(tpl *schemas.TaskTemplate) schemas.TaskTemplate {
	out := *tpl
	out.Actions = append([]schemas.Action(nil), tpl.Actions...)
	out.ParameterSlots = append([]schemas.ParameterSlot(nil), tpl.ParameterSlots...)
	return out
}
