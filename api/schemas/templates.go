// File: api/schemas/templates.go
package schemas

import "time"

// SlotType identifies which extractor fills a template parameter when a
// memorized plan is adapted to a new query.
type SlotType string

const (
	SlotText    SlotType = "TEXT"
	SlotTime    SlotType = "TIME"
	SlotDate    SlotType = "DATE"
	SlotContact SlotType = "CONTACT"
	SlotApp     SlotType = "APP"
	SlotNumber  SlotType = "NUMBER"
)

// ParameterSlot is a named, typed hole in a template's actions. The slot name
// appears as a "{name}" placeholder inside text-bearing actions.
type ParameterSlot struct {
	Name string   `json:"name"`
	Type SlotType `json:"type"`
}

// TaskTemplate is a memorized (pattern, action-list) pair with aggregate
// success statistics. Templates are updated in place as executions reinforce
// them; the containing store is capacity bounded.
type TaskTemplate struct {
	ID                string          `json:"id"`
	Pattern           string          `json:"pattern"`
	NormalizedPattern string          `json:"normalized_pattern"`
	Actions           []Action        `json:"actions"`
	ParameterSlots    []ParameterSlot `json:"parameter_slots,omitempty"`
	SuccessRate       float64         `json:"success_rate"`
	UseCount          int             `json:"use_count"`
	CreatedAt         time.Time       `json:"created_at"`
	LastUsedAt        time.Time       `json:"last_used_at"`
}

// TemplateMatch pairs a matched template with the similarity score that
// selected it. Confidence equals the raw Jaccard score.
type TemplateMatch struct {
	Template   TaskTemplate `json:"template"`
	Confidence float64      `json:"confidence"`
}

// MemoryStats is the externally observable summary of the experience store.
type MemoryStats struct {
	TemplateCount      int     `json:"template_count"`
	TotalExecutions    int     `json:"total_executions"`
	AverageSuccessRate float64 `json:"average_success_rate"`
}
