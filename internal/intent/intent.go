// File: internal/intent/intent.go
// Description: Classified intents produced by the rule-first parser. The
// planner dispatches on ActionName; parameters are free-form slots extracted
// from the query text, every one of them optional.
package intent

// Kind is the top-level classification of a query.
type Kind string

const (
	// KindActionable means the query maps to a device task.
	KindActionable Kind = "ACTIONABLE"
	// KindInformational means the query only needs a text answer.
	KindInformational Kind = "INFORMATIONAL"
	// KindUnclear means the query could not be classified; the caller falls
	// back to a text-only response.
	KindUnclear Kind = "UNCLEAR"
)

// ActionName identifies which plan constructor handles an actionable intent.
type ActionName string

const (
	ActionInstallApp     ActionName = "INSTALL_APP"
	ActionOpenApp        ActionName = "OPEN_APP"
	ActionCreateEvent    ActionName = "CREATE_EVENT"
	ActionCreateReminder ActionName = "CREATE_REMINDER"
	ActionSendMessage    ActionName = "SEND_MESSAGE"
	ActionMakeCall       ActionName = "MAKE_CALL"
	ActionSearch         ActionName = "SEARCH"
	ActionOpenSettings   ActionName = "OPEN_SETTINGS"
)

// Parameter slot keys shared with the planner. A missing key means the slot
// could not be extracted; downstream code substitutes permissive defaults.
const (
	SlotContact = "contact"
	SlotMessage = "message"
	SlotApp     = "app"
	SlotQuery   = "query"
	SlotTitle   = "title"
	SlotDate    = "date"
	SlotTime    = "time"
	SlotTask    = "task"
	SlotSection = "section"
)

// Intent is the result of parsing one query.
type Intent struct {
	Kind       Kind              `json:"kind"`
	Action     ActionName        `json:"action,omitempty"`
	Target     string            `json:"target,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Actionable reports whether the intent carries a device task.
func (i Intent) Actionable() bool { return i.Kind == KindActionable }

// Param returns the named slot value, or fallback when absent or empty.
func (i Intent) Param(key, fallback string) string {
	if v, ok := i.Parameters[key]; ok && v != "" {
		return v
	}
	return fallback
}
