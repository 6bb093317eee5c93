// File: internal/agent/agent.go
// Description: The orchestrator. Owns the session state machine and drives the
// full pipeline for each query: experience-cache lookup, plan construction,
// the consent gate, stepwise execution with rollback and, on full success,
// learning. All pipeline failures come back as structured responses; ProcessQuery
// and HandleConsent never return an error to the caller.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/config"
	"github.com/Firstp1ck/android-agent/internal/memory"
)

// State is the orchestrator's coarse session state.
type State string

const (
	StateIdle            State = "IDLE"
	StateProcessing      State = "PROCESSING"
	StateAwaitingConsent State = "AWAITING_CONSENT"
	StateExecuting       State = "EXECUTING"
	StateError           State = "ERROR"
)

// ActionRunner executes one action and reports a structured result. Satisfied
// by the executor.
type ActionRunner interface {
	Execute(ctx context.Context, action schemas.Action) schemas.ActionResult
}

// QueryPlanner turns queries into plans and text answers. Satisfied by the
// planner.
type QueryPlanner interface {
	// CreatePlan builds a plan for an actionable query; (nil, nil) means the
	// query should be answered conversationally.
	CreatePlan(ctx context.Context, query schemas.Query) (*schemas.ActionPlan, error)
	// AdaptTemplate re-grounds a memorized template in the query.
	AdaptTemplate(tpl schemas.TaskTemplate, query schemas.Query) schemas.ActionPlan
	// GenerateTextResponse answers a purely informational query.
	GenerateTextResponse(ctx context.Context, query schemas.Query) (string, error)
}

// Progress reports execution position for UI surfaces. Step is 1-based.
type Progress struct {
	PlanID string
	Step   int
	Total  int
}

// Orchestrator coordinates the query pipeline. It is safe for concurrent use;
// one query or consent decision is processed at a time.
type Orchestrator struct {
	logger   *zap.Logger
	cfg      config.AgentConfig
	planner  QueryPlanner
	executor ActionRunner
	store    memory.Store

	mu           sync.Mutex
	state        State
	pending      *pendingPlan
	conversation []schemas.ConversationEntry

	// onProgress, when set, is invoked before each action runs.
	onProgress func(Progress)
	now        func() time.Time
}

// pendingPlan holds a plan parked at the consent boundary together with the
// query it answers.
type pendingPlan struct {
	plan      schemas.ActionPlan
	query     schemas.Query
	fromCache bool
}

// New wires the orchestrator from its collaborators. The store may be nil,
// which disables both template reuse and learning.
func New(cfg config.AgentConfig, pl QueryPlanner, exec ActionRunner, store memory.Store, logger *zap.Logger) *Orchestrator {
	if cfg.PlanningTimeout <= 0 {
		cfg.PlanningTimeout = 30 * time.Second
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.70
	}
	return &Orchestrator{
		logger:   logger.Named("agent"),
		cfg:      cfg,
		planner:  pl,
		executor: exec,
		store:    store,
		state:    StateIdle,
		now:      time.Now,
	}
}

// State returns the current session state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SetProgressFunc installs a callback fired before each executed action.
func (o *Orchestrator) SetProgressFunc(fn func(Progress)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onProgress = fn
}

// History returns a copy of the conversation log.
func (o *Orchestrator) History() []schemas.ConversationEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]schemas.ConversationEntry(nil), o.conversation...)
}

// ClearHistory drops the conversation log. The experience cache is untouched.
func (o *Orchestrator) ClearHistory() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conversation = nil
}

// Stats exposes the experience store statistics.
func (o *Orchestrator) Stats(ctx context.Context) (schemas.MemoryStats, error) {
	if o.store == nil {
		return schemas.MemoryStats{}, nil
	}
	return o.store.Stats(ctx)
}

// ProcessQuery runs the pipeline for one user query. It returns exactly one
// response: Completed for conversational queries, AwaitingConsent for gated
// plans, or the terminal outcome of an ungated execution.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query schemas.Query) schemas.AgentResponse {
	start := o.now()

	o.mu.Lock()
	if o.state == StateAwaitingConsent {
		// A parked plan blocks new queries; resolving consent comes first.
		o.mu.Unlock()
		return o.respond(query.ID, schemas.StatusFailed,
			"a plan is awaiting consent; approve or reject it first", nil, nil, start)
	}
	o.state = StateProcessing
	o.mu.Unlock()

	o.appendEntry(schemas.RoleUser, query.Text, nil)
	o.logger.Info("Processing query", zap.String("query_id", query.ID))

	plan, fromCache, err := o.obtainPlan(ctx, query)
	if err != nil {
		o.logger.Warn("Planning failed", zap.String("query_id", query.ID), zap.Error(err))
		o.setState(StateIdle)
		resp := o.respond(query.ID, schemas.StatusFailed,
			fmt.Sprintf("planning failed: %v", err), nil, nil, start)
		o.appendEntry(schemas.RoleAgent, resp.Message, nil)
		return resp
	}
	if plan == nil {
		// Conversational or unplannable: answer with text.
		text, err := o.planner.GenerateTextResponse(ctx, query)
		if err != nil {
			o.setState(StateIdle)
			resp := o.respond(query.ID, schemas.StatusFailed,
				fmt.Sprintf("could not answer: %v", err), nil, nil, start)
			o.appendEntry(schemas.RoleAgent, resp.Message, nil)
			return resp
		}
		o.setState(StateIdle)
		resp := o.respond(query.ID, schemas.StatusCompleted, text, nil, nil, start)
		o.appendEntry(schemas.RoleAgent, text, nil)
		return resp
	}

	if o.needsConsent(*plan) {
		o.mu.Lock()
		o.state = StateAwaitingConsent
		o.pending = &pendingPlan{plan: *plan, query: query, fromCache: fromCache}
		o.mu.Unlock()
		o.logger.Info("Plan parked for consent",
			zap.String("plan_id", plan.ID),
			zap.String("safety", string(plan.SafetyLevel)),
			zap.Bool("from_cache", fromCache))
		resp := o.respond(query.ID, schemas.StatusAwaitingConsent,
			"plan requires approval before execution", plan, nil, start)
		o.appendEntry(schemas.RoleAgent, resp.Message, plan)
		return resp
	}

	return o.executePlan(ctx, query, *plan, start)
}

// obtainPlan prefers a memorized template above the similarity threshold and
// falls back to fresh planning under the planning timeout. A nil plan with a
// nil error means the query should be answered conversationally; a planning
// error fails the query.
func (o *Orchestrator) obtainPlan(ctx context.Context, query schemas.Query) (*schemas.ActionPlan, bool, error) {
	if o.store != nil {
		match, err := o.store.FindMatch(ctx, query.Text)
		if err != nil {
			o.logger.Warn("Experience cache lookup failed", zap.Error(err))
		} else if match != nil && match.Confidence >= o.cfg.SimilarityThreshold {
			o.logger.Info("Reusing memorized template",
				zap.String("template_id", match.Template.ID),
				zap.Float64("confidence", match.Confidence))
			plan := o.planner.AdaptTemplate(match.Template, query)
			return &plan, true, nil
		}
	}

	planCtx, cancel := context.WithTimeout(ctx, o.cfg.PlanningTimeout)
	defer cancel()

	plan, err := o.planner.CreatePlan(planCtx, query)
	if err != nil {
		return nil, false, err
	}
	return plan, false, nil
}

// needsConsent implements the gate: explicit plan flags, critical safety and
// the global preview switch all force a stop at the boundary.
func (o *Orchestrator) needsConsent(plan schemas.ActionPlan) bool {
	return plan.RequiresConsent || plan.SafetyLevel == schemas.SafetyCritical || o.cfg.AlwaysPreview
}

// HandleConsent resolves a parked plan. Outside AwaitingConsent it fails
// without side effects. A rejection cancels cleanly and never touches the
// experience cache; a modification must carry a non-empty replacement plan.
func (o *Orchestrator) HandleConsent(ctx context.Context, decision schemas.ConsentDecision) schemas.AgentResponse {
	start := o.now()

	o.mu.Lock()
	if o.state != StateAwaitingConsent || o.pending == nil {
		o.mu.Unlock()
		return o.respond("", schemas.StatusFailed, "no plan is awaiting consent", nil, nil, start)
	}
	pending := *o.pending
	if decision.PlanID != "" && decision.PlanID != pending.plan.ID {
		o.mu.Unlock()
		return o.respond(pending.query.ID, schemas.StatusFailed,
			fmt.Sprintf("consent decision targets unknown plan %q", decision.PlanID), nil, nil, start)
	}
	o.pending = nil
	o.mu.Unlock()

	switch decision.Choice {
	case schemas.ConsentRejected:
		o.setState(StateIdle)
		o.logger.Info("Plan rejected", zap.String("plan_id", pending.plan.ID), zap.String("reason", decision.Reason))
		resp := o.respond(pending.query.ID, schemas.StatusCancelled, "plan rejected", &pending.plan, nil, start)
		o.appendEntry(schemas.RoleAgent, resp.Message, &pending.plan)
		return resp

	case schemas.ConsentModified:
		if decision.ModifiedPlan == nil || len(decision.ModifiedPlan.Actions) == 0 {
			o.setState(StateIdle)
			return o.respond(pending.query.ID, schemas.StatusFailed,
				"modified consent requires a plan with at least one action", &pending.plan, nil, start)
		}
		// Rebuild so the safety level reflects the edited actions.
		plan := schemas.NewActionPlan(
			decision.ModifiedPlan.ID,
			decision.ModifiedPlan.Description,
			decision.ModifiedPlan.Actions,
			false,
			decision.ModifiedPlan.RollbackActions,
		)
		plan.Parameters = pending.plan.Parameters
		o.logger.Info("Executing modified plan", zap.String("plan_id", plan.ID))
		return o.executePlan(ctx, pending.query, plan, start)

	case schemas.ConsentApproved:
		return o.executePlan(ctx, pending.query, pending.plan, start)

	default:
		o.setState(StateIdle)
		return o.respond(pending.query.ID, schemas.StatusFailed,
			fmt.Sprintf("unknown consent choice %q", decision.Choice), &pending.plan, nil, start)
	}
}

// executePlan runs the plan's actions in order. The first non-recoverable
// failure halts execution, optionally triggers rollback and yields a Failed
// response; only a fully successful run is learned.
func (o *Orchestrator) executePlan(ctx context.Context, query schemas.Query, plan schemas.ActionPlan, start time.Time) schemas.AgentResponse {
	o.setState(StateExecuting)

	results := make([]schemas.ActionResult, 0, len(plan.Actions))
	halted := false
	for i, action := range plan.Actions {
		o.reportProgress(Progress{PlanID: plan.ID, Step: i + 1, Total: len(plan.Actions)})

		result := o.executor.Execute(ctx, action)
		results = append(results, result)
		if !result.Success && !result.Recoverable {
			o.logger.Warn("Plan halted on non-recoverable failure",
				zap.String("plan_id", plan.ID),
				zap.Int("step", i+1),
				zap.String("error", result.Error))
			halted = true
			break
		}
	}

	allSucceeded := !halted && allSuccessful(results)

	if halted && o.cfg.AutoRollback && len(plan.RollbackActions) > 0 {
		o.rollback(ctx, plan)
	}

	if allSucceeded && o.store != nil {
		if err := o.store.LearnFromExecution(ctx, plan, results); err != nil {
			o.logger.Warn("Failed to memorize execution", zap.String("plan_id", plan.ID), zap.Error(err))
		}
	}

	o.setState(StateIdle)

	var resp schemas.AgentResponse
	if allSucceeded {
		resp = o.respond(query.ID, schemas.StatusCompleted, "plan executed successfully", &plan, results, start)
	} else {
		resp = o.respond(query.ID, schemas.StatusFailed, executionFailureMessage(results), &plan, results, start)
	}
	o.appendEntry(schemas.RoleAgent, resp.Message, &plan)
	o.logger.Info("Plan finished",
		zap.String("plan_id", plan.ID),
		zap.String("status", string(resp.Status)),
		zap.Duration("latency", resp.Latency))
	return resp
}

// rollback runs the plan's compensating actions best-effort; failures are
// logged and swallowed.
func (o *Orchestrator) rollback(ctx context.Context, plan schemas.ActionPlan) {
	o.logger.Info("Rolling back plan", zap.String("plan_id", plan.ID))
	for _, action := range plan.RollbackActions {
		if result := o.executor.Execute(ctx, action); !result.Success {
			o.logger.Warn("Rollback action failed",
				zap.String("plan_id", plan.ID),
				zap.String("action_id", result.ActionID),
				zap.String("error", result.Error))
		}
	}
}

func (o *Orchestrator) reportProgress(p Progress) {
	o.mu.Lock()
	fn := o.onProgress
	o.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) appendEntry(role schemas.ConversationRole, text string, plan *schemas.ActionPlan) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conversation = append(o.conversation, schemas.ConversationEntry{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Plan:      plan,
		Timestamp: o.now(),
	})
}

func (o *Orchestrator) respond(queryID string, status schemas.ResponseStatus, message string, plan *schemas.ActionPlan, results []schemas.ActionResult, start time.Time) schemas.AgentResponse {
	return schemas.AgentResponse{
		QueryID: queryID,
		Status:  status,
		Message: message,
		Plan:    plan,
		Results: results,
		Latency: o.now().Sub(start),
	}
}

func allSuccessful(results []schemas.ActionResult) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return len(results) > 0
}

func executionFailureMessage(results []schemas.ActionResult) string {
	for i, r := range results {
		if !r.Success && !r.Recoverable {
			return fmt.Sprintf("plan halted at step %d: %s", i+1, r.Error)
		}
	}
	for i, r := range results {
		if !r.Success {
			return fmt.Sprintf("step %d failed: %s", i+1, r.Error)
		}
	}
	return "plan execution failed"
}
