// File: internal/planner/planner.go
// Description: Turns classified intents into ordered action plans. Each
// intent action has a dedicated constructor that decides the step sequence,
// per-step safety levels and any rollback actions. Plan-level safety is never
// assigned directly; schemas.NewActionPlan derives it from the steps.
package planner

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/intent"
)

// Well-known package ids used by the plan constructors. The executor's
// resolution cache handles anything more exotic.
const (
	pkgMessages = "com.google.android.apps.messaging"
	pkgDialer   = "com.google.android.dialer"
	pkgCalendar = "com.google.android.calendar"
	pkgClock    = "com.google.android.deskclock"
	pkgSettings = "com.android.settings"
)

// Planner builds action plans from queries.
type Planner struct {
	logger *zap.Logger
	parser *intent.Parser
	llm    schemas.LLMClient // optional; used only for text-only responses
}

// New creates a Planner. llm may be nil; text responses then use a canned
// fallback.
func New(logger *zap.Logger, parser *intent.Parser, llm schemas.LLMClient) *Planner {
	return &Planner{
		logger: logger.Named("planner"),
		parser: parser,
		llm:    llm,
	}
}

// CreatePlan parses the query and builds a plan for actionable intents.
// Informational and unclear queries yield (nil, nil); the caller falls back
// to a text-only response.
func (p *Planner) CreatePlan(ctx context.Context, query schemas.Query) (*schemas.ActionPlan, error) {
	parsed := p.parser.Parse(ctx, query.Text)
	if !parsed.Actionable() {
		p.logger.Debug("Query is not actionable", zap.String("kind", string(parsed.Kind)))
		return nil, nil
	}

	var (
		description string
		actions     []schemas.Action
		rollback    []schemas.Action
	)

	switch parsed.Action {
	case intent.ActionCreateReminder:
		description, actions, rollback = p.reminderActions(parsed)
	case intent.ActionSendMessage:
		description, actions, rollback = p.messageActions(parsed)
	case intent.ActionOpenApp:
		description, actions, rollback = p.openAppActions(parsed)
	case intent.ActionInstallApp:
		description, actions, rollback = p.installAppActions(parsed)
	case intent.ActionCreateEvent:
		description, actions, rollback = p.calendarEventActions(parsed)
	case intent.ActionMakeCall:
		description, actions, rollback = p.callActions(parsed)
	case intent.ActionSearch:
		description, actions, rollback = p.searchActions(parsed)
	case intent.ActionOpenSettings:
		description, actions, rollback = p.settingsActions(parsed)
	default:
		description, actions, rollback = p.genericActions(parsed)
	}

	if rollback == nil {
		rollback = []schemas.Action{newHome(schemas.SafetySafe, "Return to home screen")}
	}

	// Every freshly generated plan is previewed; consent may still be waived
	// by policy at the orchestrator for non-critical plans.
	plan := schemas.NewActionPlan(uuid.NewString(), description, actions, true, rollback)
	plan.Parameters = parsed.Parameters
	p.logger.Info("Plan created",
		zap.String("plan_id", plan.ID),
		zap.String("description", plan.Description),
		zap.Int("steps", len(plan.Actions)),
		zap.String("safety", string(plan.SafetyLevel)))
	return &plan, nil
}

// GenerateTextResponse produces a text-only answer for purely informational
// turns. No planning is performed.
func (p *Planner) GenerateTextResponse(ctx context.Context, query schemas.Query) (string, error) {
	if p.llm == nil {
		return "I can help with device tasks like opening apps, sending messages or setting reminders. Could you rephrase that as something to do on this device?", nil
	}
	prompt := fmt.Sprintf(
		"You are a concise assistant running on a phone. Answer the user's question in at most three sentences.\n\nQuestion: %s", query.Text)
	reply, err := p.llm.Generate(ctx, prompt, 256)
	if err != nil {
		return "", fmt.Errorf("text response generation failed: %w", err)
	}
	return reply, nil
}

// -- Plan constructors --

func (p *Planner) reminderActions(in intent.Intent) (string, []schemas.Action, []schemas.Action) {
	task := in.Param(intent.SlotTask, "reminder")
	actions := []schemas.Action{
		newLaunchApp(pkgClock, schemas.SafetyNormal, "Open the clock app"),
		newWaitPresent(schemas.Selector{TextContains: "Alarm"}, 5*time.Second, "Wait for the clock app"),
		newClick(schemas.Selector{DescContains: "Add"}, schemas.SafetyNormal, "Tap the add button"),
		newInputText(schemas.Selector{ClassName: "android.widget.EditText"}, task, schemas.SafetyNormal, "Enter the reminder text"),
	}
	if t := in.Param(intent.SlotTime, ""); t != "" {
		actions = append(actions,
			newInputText(schemas.Selector{IDContains: "time"}, t, schemas.SafetyNormal, "Enter the reminder time"))
	}
	actions = append(actions,
		newClick(schemas.Selector{Text: "Save"}, schemas.SafetyNormal, "Save the reminder"))
	rollback := []schemas.Action{
		newBack("Dismiss the reminder editor"),
		newHome(schemas.SafetySafe, "Return to home screen"),
	}
	return fmt.Sprintf("Set a reminder to %s", task), actions, rollback
}

func (p *Planner) messageActions(in intent.Intent) (string, []schemas.Action, []schemas.Action) {
	contact := in.Param(intent.SlotContact, "")
	body := in.Param(intent.SlotMessage, "Hello")
	actions := []schemas.Action{
		newLaunchApp(pkgMessages, schemas.SafetyNormal, "Open the messages app"),
		newWaitPresent(schemas.Selector{DescContains: "conversation"}, 5*time.Second, "Wait for the conversation list"),
		newClick(schemas.Selector{DescContains: "Start chat"}, schemas.SafetyNormal, "Start a new conversation"),
	}
	if contact != "" {
		actions = append(actions,
			newInputText(schemas.Selector{IDContains: "recipient"}, contact, schemas.SafetyNormal, fmt.Sprintf("Address the message to %s", contact)))
	}
	actions = append(actions,
		// Entering the body and sending are the irreversible part of this
		// flow; both steps are always CRITICAL.
		newInputText(schemas.Selector{IDContains: "compose"}, body, schemas.SafetyCritical, "Enter the message text"),
		newClick(schemas.Selector{DescContains: "Send"}, schemas.SafetyCritical, "Send the message"),
	)
	rollback := []schemas.Action{
		newBack("Leave the conversation"),
		newHome(schemas.SafetySafe, "Return to home screen"),
	}
	who := contact
	if who == "" {
		who = "a contact"
	}
	return fmt.Sprintf("Send a message to %s", who), actions, rollback
}

func (p *Planner) openAppActions(in intent.Intent) (string, []schemas.Action, []schemas.Action) {
	app := in.Param(intent.SlotApp, in.Target)
	actions := []schemas.Action{
		newLaunchApp(app, schemas.SafetyNormal, fmt.Sprintf("Open %s", app)),
	}
	return fmt.Sprintf("Open %s", app), actions, nil
}

func (p *Planner) installAppActions(in intent.Intent) (string, []schemas.Action, []schemas.Action) {
	app := in.Param(intent.SlotApp, in.Target)
	actions := []schemas.Action{
		newLaunchApp("market://search?q="+url.QueryEscape(app), schemas.SafetyNormal, fmt.Sprintf("Search the app store for %s", app)),
		newWaitPresent(schemas.Selector{Text: "Install"}, 10*time.Second, "Wait for the store listing"),
		newClick(schemas.Selector{Text: "Install"}, schemas.SafetyNormal, fmt.Sprintf("Install %s", app)),
	}
	return fmt.Sprintf("Install %s", app), actions, nil
}

func (p *Planner) calendarEventActions(in intent.Intent) (string, []schemas.Action, []schemas.Action) {
	title := in.Param(intent.SlotTitle, "New event")
	date := in.Param(intent.SlotDate, "today")
	actions := []schemas.Action{
		newLaunchApp(pkgCalendar, schemas.SafetyNormal, "Open the calendar app"),
		newWaitPresent(schemas.Selector{DescContains: "Create new event"}, 5*time.Second, "Wait for the calendar"),
		newClick(schemas.Selector{DescContains: "Create new event"}, schemas.SafetyNormal, "Create a new event"),
		newInputText(schemas.Selector{TextContains: "Add title"}, title, schemas.SafetyNormal, "Enter the event title"),
	}
	if t := in.Param(intent.SlotTime, ""); t != "" {
		actions = append(actions,
			newInputText(schemas.Selector{IDContains: "time"}, t, schemas.SafetyNormal, "Enter the event time"))
	}
	actions = append(actions,
		newClick(schemas.Selector{Text: "Save"}, schemas.SafetyNormal, "Save the event"))
	rollback := []schemas.Action{
		newBack("Dismiss the event editor"),
		newHome(schemas.SafetySafe, "Return to home screen"),
	}
	return fmt.Sprintf("Create a calendar event %q for %s", title, date), actions, rollback
}

func (p *Planner) callActions(in intent.Intent) (string, []schemas.Action, []schemas.Action) {
	contact := in.Param(intent.SlotContact, in.Target)
	actions := []schemas.Action{
		newLaunchApp(pkgDialer, schemas.SafetyNormal, "Open the phone app"),
		newWaitPresent(schemas.Selector{DescContains: "dial"}, 5*time.Second, "Wait for the dialer"),
		newInputText(schemas.Selector{IDContains: "search"}, contact, schemas.SafetyNormal, fmt.Sprintf("Look up %s", contact)),
		// Initiating the call is the irreversible step.
		newClick(schemas.Selector{DescContains: "Call"}, schemas.SafetyCritical, fmt.Sprintf("Call %s", contact)),
	}
	return fmt.Sprintf("Call %s", contact), actions, nil
}

func (p *Planner) searchActions(in intent.Intent) (string, []schemas.Action, []schemas.Action) {
	query := in.Param(intent.SlotQuery, in.Target)
	actions := []schemas.Action{
		newLaunchApp("https://www.google.com/search?q="+url.QueryEscape(query), schemas.SafetyNormal, fmt.Sprintf("Search the web for %s", query)),
	}
	return fmt.Sprintf("Search for %s", query), actions, nil
}

func (p *Planner) settingsActions(in intent.Intent) (string, []schemas.Action, []schemas.Action) {
	section := in.Param(intent.SlotSection, "settings")
	actions := []schemas.Action{
		newLaunchApp(pkgSettings, schemas.SafetyNormal, "Open settings"),
	}
	if section != "settings" {
		actions = append(actions,
			newInputText(schemas.Selector{IDContains: "search"}, section, schemas.SafetyNormal, fmt.Sprintf("Search settings for %s", section)),
			newClick(schemas.Selector{TextContains: section}, schemas.SafetyNormal, fmt.Sprintf("Open the %s section", section)),
		)
	}
	return fmt.Sprintf("Open %s settings", section), actions, nil
}

// genericActions handles actionable intents no dedicated constructor claims.
// The target is treated as an app name and handed to the executor's resolver;
// with no target at all the plan degrades to a single annotated Home action.
func (p *Planner) genericActions(in intent.Intent) (string, []schemas.Action, []schemas.Action) {
	if in.Target != "" {
		return fmt.Sprintf("Open %s", in.Target), []schemas.Action{
			newLaunchApp(in.Target, schemas.SafetyNormal, fmt.Sprintf("Open %s", in.Target)),
		}, nil
	}
	return "Unresolved request", []schemas.Action{
		newHome(schemas.SafetySafe, "Could not resolve the request; returning home"),
	}, nil
}

// -- Action helpers --

func newMeta(description string, safety schemas.SafetyLevel) schemas.ActionMeta {
	return schemas.ActionMeta{ID: uuid.NewString(), Description: description, Safety: safety}
}

func newLaunchApp(target string, safety schemas.SafetyLevel, description string) schemas.Action {
	return schemas.LaunchApp{ActionMeta: newMeta(description, safety), Target: target}
}

func newClick(sel schemas.Selector, safety schemas.SafetyLevel, description string) schemas.Action {
	return schemas.Click{ActionMeta: newMeta(description, safety), Selector: sel, Timeout: 5 * time.Second}
}

func newInputText(sel schemas.Selector, text string, safety schemas.SafetyLevel, description string) schemas.Action {
	return schemas.InputText{ActionMeta: newMeta(description, safety), Selector: sel, Text: text}
}

func newWaitPresent(sel schemas.Selector, timeout time.Duration, description string) schemas.Action {
	return schemas.Wait{
		ActionMeta: newMeta(description, schemas.SafetySafe),
		Condition:  schemas.WaitCondition{Kind: schemas.WaitPresent, Selector: sel},
		Timeout:    timeout,
	}
}

func newBack(description string) schemas.Action {
	return schemas.Back{ActionMeta: newMeta(description, schemas.SafetySafe)}
}

func newHome(safety schemas.SafetyLevel, description string) schemas.Action {
	return schemas.Home{ActionMeta: newMeta(description, safety)}
}
