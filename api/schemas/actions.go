// File: api/schemas/actions.go
package schemas

import "time"

// Selector matches UI nodes by any combination of optional fields. A selector
// with no field set matches nothing; the zero value is deliberately inert so
// an accidentally empty selector can never mean "match everything".
type Selector struct {
	Text         string `json:"text,omitempty"`
	TextContains string `json:"text_contains,omitempty"`
	Desc         string `json:"desc,omitempty"`
	DescContains string `json:"desc_contains,omitempty"`
	ID           string `json:"id,omitempty"`
	IDContains   string `json:"id_contains,omitempty"`
	ClassName    string `json:"class_name,omitempty"`
}

// IsEmpty reports whether no matching field is set.
func (s Selector) IsEmpty() bool {
	return s == Selector{}
}

// ScrollDirection is the axis and sense of a scroll gesture.
type ScrollDirection string

const (
	ScrollUp    ScrollDirection = "UP"
	ScrollDown  ScrollDirection = "DOWN"
	ScrollLeft  ScrollDirection = "LEFT"
	ScrollRight ScrollDirection = "RIGHT"
)

// WaitKind distinguishes a pure delay from a condition poll.
type WaitKind string

const (
	// WaitDelay sleeps for the action's timeout.
	WaitDelay WaitKind = "DELAY"
	// WaitPresent polls until a node matching the selector appears.
	WaitPresent WaitKind = "PRESENT"
	// WaitAbsent polls until no node matching the selector remains.
	WaitAbsent WaitKind = "ABSENT"
)

// WaitCondition describes what a Wait action is waiting for.
type WaitCondition struct {
	Kind     WaitKind `json:"kind"`
	Selector Selector `json:"selector,omitempty"`
}

// ActionMeta carries the fields common to every action variant. Actions are
// immutable once built.
type ActionMeta struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Safety      SafetyLevel `json:"safety_level"`
}

// Meta returns the shared metadata; embedding ActionMeta satisfies this half
// of the Action interface for every variant.
func (m ActionMeta) Meta() ActionMeta { return m }

// Action is the closed set of device actions the executor understands. The
// isAction marker keeps the set sealed to this package; consumers dispatch
// with an exhaustive type switch over the variants below.
type Action interface {
	Meta() ActionMeta
	isAction()
}

// LaunchApp opens an application, a store listing or a URL. Target may be a
// human label ("calculator"), a fully qualified package id, a market:// URI
// or an http(s) URL.
type LaunchApp struct {
	ActionMeta
	Target string `json:"target"`
}

// Click activates the first UI node matching Selector.
type Click struct {
	ActionMeta
	Selector Selector      `json:"selector"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// InputText focuses the node matching Selector and types Text into it.
type InputText struct {
	ActionMeta
	Selector Selector `json:"selector"`
	Text     string   `json:"text"`
}

// Scroll performs a swipe gesture covering Amount of the screen extent
// (0 < Amount <= 1) in the given direction.
type Scroll struct {
	ActionMeta
	Direction ScrollDirection `json:"direction"`
	Amount    float64         `json:"amount"`
}

// Wait either sleeps or polls for a UI condition, bounded by Timeout.
type Wait struct {
	ActionMeta
	Condition WaitCondition `json:"condition"`
	Timeout   time.Duration `json:"timeout"`
}

// Back presses the global back navigation control.
type Back struct {
	ActionMeta
}

// Home navigates to the device home screen.
type Home struct {
	ActionMeta
}

func (LaunchApp) isAction() {}
func (Click) isAction()     {}
func (InputText) isAction() {}
func (Scroll) isAction()    {}
func (Wait) isAction()      {}
func (Back) isAction()      {}
func (Home) isAction()      {}
