// File: api/schemas/schemas.go
// Description: Core data model shared across the agent pipeline. These types
// are the contract between the orchestrator, planner, executor and memory
// packages and carry no behavior beyond small invariant helpers.
package schemas

import (
	"time"
)

// SafetyLevel classifies how risky an action (or a whole plan) is.
type SafetyLevel string

const (
	// SafetySafe marks read-only steps (navigation, waiting, scrolling).
	SafetySafe SafetyLevel = "SAFE"
	// SafetyNormal marks reversible side effects (opening an app, focusing a field).
	SafetyNormal SafetyLevel = "NORMAL"
	// SafetyCritical marks irreversible or sensitive steps (sending a message,
	// placing a call). Critical plans are always gated behind consent.
	SafetyCritical SafetyLevel = "CRITICAL"
)

// rank orders safety levels so the maximum over a plan can be computed.
// Unknown values rank lowest so a malformed level can never loosen gating.
func (s SafetyLevel) rank() int {
	switch s {
	case SafetyCritical:
		return 2
	case SafetyNormal:
		return 1
	case SafetySafe:
		return 0
	default:
		return -1
	}
}

// MaxSafety returns the stricter of two safety levels.
func MaxSafety(a, b SafetyLevel) SafetyLevel {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// QueryContext captures the device situation at submission time. All fields
// are advisory; planners must tolerate their absence.
type QueryContext struct {
	CurrentApp string   `json:"current_app,omitempty"`
	TimeOfDay  string   `json:"time_of_day,omitempty"`
	RecentApps []string `json:"recent_apps,omitempty"`
}

// Query is a single immutable user request.
type Query struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Timestamp time.Time    `json:"timestamp"`
	Context   QueryContext `json:"context"`
}

// ActionPlan is an ordered sequence of device actions produced by the planner
// (or adapted from a memorized template). A plan is consumed by exactly one
// execution attempt; only its pattern may be memorized for reuse.
type ActionPlan struct {
	ID              string      `json:"id"`
	Description     string      `json:"description"`
	Actions         []Action    `json:"actions"`
	SafetyLevel     SafetyLevel `json:"safety_level"`
	RequiresConsent bool        `json:"requires_consent"`
	RollbackActions []Action    `json:"rollback_actions,omitempty"`
	// Parameters maps slot names to the concrete values this plan was built
	// with. When the plan is memorized, each value becomes a {name}
	// placeholder in the stored template.
	Parameters map[string]string `json:"parameters,omitempty"`
}

// NewActionPlan builds a plan and enforces the invariant that the plan's
// safety level is the maximum level among its actions. Callers never set the
// plan level independently.
func NewActionPlan(id, description string, actions []Action, requiresConsent bool, rollback []Action) ActionPlan {
	level := SafetySafe
	for _, a := range actions {
		level = MaxSafety(level, a.Meta().Safety)
	}
	return ActionPlan{
		ID:              id,
		Description:     description,
		Actions:         actions,
		SafetyLevel:     level,
		RequiresConsent: requiresConsent,
		RollbackActions: rollback,
	}
}

// ActionResult reports the outcome of one executed action. Exactly one result
// is produced per action, synchronously, by the executor.
type ActionResult struct {
	ActionID    string        `json:"action_id"`
	Success     bool          `json:"success"`
	Duration    time.Duration `json:"duration"`
	Message     string        `json:"message,omitempty"`
	Error       string        `json:"error,omitempty"`
	Recoverable bool          `json:"recoverable,omitempty"`
}

// NewSuccessResult constructs a successful result for an action.
func NewSuccessResult(actionID string, d time.Duration, message string) ActionResult {
	return ActionResult{ActionID: actionID, Success: true, Duration: d, Message: message}
}

// NewFailureResult constructs a failed result. Recoverable failures do not by
// themselves abort a running plan; non-recoverable ones halt it.
func NewFailureResult(actionID string, d time.Duration, errMsg string, recoverable bool) ActionResult {
	return ActionResult{ActionID: actionID, Success: false, Duration: d, Error: errMsg, Recoverable: recoverable}
}

// ResponseStatus is the terminal classification of a processed query.
type ResponseStatus string

const (
	StatusCompleted       ResponseStatus = "COMPLETED"
	StatusFailed          ResponseStatus = "FAILED"
	StatusCancelled       ResponseStatus = "CANCELLED"
	StatusAwaitingConsent ResponseStatus = "AWAITING_CONSENT"
)

// AgentResponse is what the orchestrator hands back for every query or
// consent decision. Internal errors never escape raw; they are summarized in
// Message with an appropriate status.
type AgentResponse struct {
	QueryID string         `json:"query_id"`
	Status  ResponseStatus `json:"status"`
	Message string         `json:"message"`
	Plan    *ActionPlan    `json:"plan,omitempty"`
	Results []ActionResult `json:"results,omitempty"`
	Latency time.Duration  `json:"latency"`
}

// ConsentChoice enumerates the decisions the consent boundary can deliver.
type ConsentChoice string

const (
	ConsentApproved ConsentChoice = "APPROVED"
	ConsentRejected ConsentChoice = "REJECTED"
	ConsentModified ConsentChoice = "MODIFIED"
)

// ConsentDecision resolves a pending AwaitingConsent state. ModifiedPlan must
// carry at least one action when Choice is ConsentModified.
type ConsentDecision struct {
	PlanID       string        `json:"plan_id"`
	Choice       ConsentChoice `json:"decision"`
	ModifiedPlan *ActionPlan   `json:"modified_plan,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// ConversationRole distinguishes the two kinds of conversation entries.
type ConversationRole string

const (
	RoleUser  ConversationRole = "USER"
	RoleAgent ConversationRole = "AGENT"
)

// ConversationEntry is one turn in the append-only conversation log owned by
// the orchestrator.
type ConversationEntry struct {
	ID        string           `json:"id"`
	Role      ConversationRole `json:"role"`
	Text      string           `json:"text"`
	Plan      *ActionPlan      `json:"plan,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
