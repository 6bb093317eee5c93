// File: internal/intent/parser.go
// Description: Rule-first intent parsing. Rules are evaluated in a fixed
// order and the first match wins; there is no scoring. Only when no rule
// fires does the parser spend a language-model call, and any failure of that
// call downgrades the query to UNCLEAR instead of surfacing an error.
package intent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/textutil"
)

// Parser classifies normalized query text into intents.
type Parser struct {
	logger *zap.Logger
	llm    schemas.LLMClient // optional; nil disables the fallback call
	rules  []rule
}

// rule is one ordered pattern. match operates on normalized text and returns
// the extracted target and parameter slots when it fires.
type rule struct {
	action ActionName
	match  func(normalized string) (ok bool, target string, params map[string]string)
}

// NewParser creates a parser. llm may be nil, in which case unmatched queries
// classify as UNCLEAR without any external call.
func NewParser(logger *zap.Logger, llm schemas.LLMClient) *Parser {
	p := &Parser{
		logger: logger.Named("intent_parser"),
		llm:    llm,
	}
	p.rules = orderedRules()
	return p
}

// Parse classifies the given raw query text. It never returns an error; all
// ambiguity collapses into KindUnclear.
func (p *Parser) Parse(ctx context.Context, text string) Intent {
	normalized := textutil.Normalize(text)
	if normalized == "" {
		return Intent{Kind: KindUnclear}
	}

	// Rule order is load-bearing: an install request must not be misread as
	// a plain app-open, so install patterns run first.
	for _, r := range p.rules {
		if ok, target, params := r.match(normalized); ok {
			p.logger.Debug("Intent matched by rule",
				zap.String("action", string(r.action)),
				zap.String("target", target))
			return Intent{Kind: KindActionable, Action: r.action, Target: target, Parameters: params}
		}
	}

	if isConversational(normalized) {
		return Intent{Kind: KindInformational}
	}

	return p.classifyWithLLM(ctx, text, normalized)
}

// classifyWithLLM issues the external classification call. The prompt carries
// the literal user text; the textual category in the reply maps onto Intent.
func (p *Parser) classifyWithLLM(ctx context.Context, raw, normalized string) Intent {
	if p.llm == nil {
		return Intent{Kind: KindUnclear}
	}

	prompt := fmt.Sprintf(
		"Classify the following request from a phone user. Reply with exactly one word: "+
			"ACTIONABLE if it asks the phone to do something, INFORMATIONAL if it only needs a "+
			"spoken or written answer, or UNCLEAR otherwise.\n\nRequest: %q", raw)

	reply, err := p.llm.Generate(ctx, prompt, 16)
	if err != nil {
		// Timeouts and transport errors are a classification outcome here,
		// never a propagated failure.
		p.logger.Warn("LLM intent classification failed; treating query as unclear", zap.Error(err))
		return Intent{Kind: KindUnclear}
	}

	category := strings.ToUpper(strings.TrimSpace(reply))
	switch {
	case strings.Contains(category, "ACTIONABLE"):
		// No rule captured a concrete action; the planner's generic
		// constructor takes the whole request as its target.
		return Intent{Kind: KindActionable, Target: normalized}
	case strings.Contains(category, "INFORMATIONAL"):
		return Intent{Kind: KindInformational}
	default:
		return Intent{Kind: KindUnclear}
	}
}

// -- Rule table --

var (
	reInstall = regexp.MustCompile(`^(?:please |can you )?(?:install|download)(?: the)?(?: app(?: called)?)? ?(.*)$`)
	reOpen    = regexp.MustCompile(`^(?:please |can you )?(?:open|launch|start)(?: up)?(?: the)? ?(.*)$`)

	reEventTrigger = regexp.MustCompile(`\b(?:create|add|schedule|put|set up)\b.*\b(?:event|meeting|appointment|calendar)\b|\b(?:event|meeting|appointment)\b.*\b(?:calendar)\b`)
	reEventTitle   = regexp.MustCompile(`\b(?:called|titled|named|for) (.+?)(?: on [a-z0-9 ]+| at [a-z0-9 ]+|$)`)
	reDate         = regexp.MustCompile(`\b(?:on|for) (today|tomorrow|(?:next )?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)|next week)\b`)
	reTime         = regexp.MustCompile(`\bat (\d{1,2}(?: ?\d{2})?(?: ?(?:am|pm))?|noon|midnight)\b`)

	reRemind      = regexp.MustCompile(`\bremind me (?:to|about) (.+?)(?: at (?:\d{1,2}(?: ?\d{2})?(?: ?(?:am|pm))?|noon|midnight)\b.*)?$`)
	reReminderSet = regexp.MustCompile(`^(?:set|create|add)(?: a| an)? reminder (?:to|for|about) (.+)$`)

	reMsgTo   = regexp.MustCompile(`\b(?:send|write)(?: a| an)? (?:message|text|msg|sms) to ([a-z0-9]+(?: [a-z0-9]+)??)(?: (?:saying|that|telling (?:him|her|them)) (.+))?$`)
	reTextCmd = regexp.MustCompile(`^(?:text|message) ([a-z0-9]+)(?: (?:saying|that) )?(.*)$`)

	reCall = regexp.MustCompile(`^(?:please |can you )?(?:call|dial|phone)(?: to)? (.+)$`)

	reSearch = regexp.MustCompile(`^(?:please |can you )?(?:search(?: the web)?(?: for)?|google|look up|find) (.+)$`)

	reSettingsSection = regexp.MustCompile(`\b(wi ?fi|bluetooth|display|brightness|sound|volume|battery|network|storage|location)\b`)
	reSettings        = regexp.MustCompile(`\bsettings?\b|\bturn (?:on|off)\b`)
)

// orderedRules builds the fixed-order rule table. Order mirrors resolution
// priority, not likelihood: install before open, open before calendar, and
// settings last as the broadest catch.
func orderedRules() []rule {
	return []rule{
		{ActionInstallApp, matchInstall},
		{ActionOpenApp, matchOpen},
		{ActionCreateEvent, matchEvent},
		{ActionCreateReminder, matchReminder},
		{ActionSendMessage, matchMessage},
		{ActionMakeCall, matchCall},
		{ActionSearch, matchSearch},
		{ActionOpenSettings, matchSettings},
	}
}

func matchInstall(s string) (bool, string, map[string]string) {
	m := reInstall.FindStringSubmatch(s)
	if m == nil {
		return false, "", nil
	}
	app := trimAppName(m[1])
	params := map[string]string{}
	if app != "" {
		params[SlotApp] = app
	}
	return true, app, params
}

func matchOpen(s string) (bool, string, map[string]string) {
	m := reOpen.FindStringSubmatch(s)
	if m == nil {
		return false, "", nil
	}
	app := trimAppName(m[1])
	if app == "" {
		// "open" with no object is not an app-open request.
		return false, "", nil
	}
	return true, app, map[string]string{SlotApp: app}
}

func matchEvent(s string) (bool, string, map[string]string) {
	if !reEventTrigger.MatchString(s) {
		return false, "", nil
	}
	params := map[string]string{}
	if m := reEventTitle.FindStringSubmatch(s); m != nil {
		params[SlotTitle] = strings.TrimSpace(m[1])
	}
	if m := reDate.FindStringSubmatch(s); m != nil {
		params[SlotDate] = m[1]
	}
	if m := reTime.FindStringSubmatch(s); m != nil {
		params[SlotTime] = m[1]
	}
	return true, params[SlotTitle], params
}

func matchReminder(s string) (bool, string, map[string]string) {
	var task string
	if m := reRemind.FindStringSubmatch(s); m != nil {
		task = strings.TrimSpace(m[1])
	} else if m := reReminderSet.FindStringSubmatch(s); m != nil {
		task = strings.TrimSpace(m[1])
	} else {
		return false, "", nil
	}
	params := map[string]string{SlotTask: task}
	if m := reTime.FindStringSubmatch(s); m != nil {
		params[SlotTime] = m[1]
	}
	if m := reDate.FindStringSubmatch(s); m != nil {
		params[SlotDate] = m[1]
	}
	return true, task, params
}

func matchMessage(s string) (bool, string, map[string]string) {
	if m := reMsgTo.FindStringSubmatch(s); m != nil {
		params := map[string]string{SlotContact: m[1]}
		if m[2] != "" {
			params[SlotMessage] = strings.TrimSpace(m[2])
		}
		return true, m[1], params
	}
	if m := reTextCmd.FindStringSubmatch(s); m != nil {
		params := map[string]string{SlotContact: m[1]}
		if body := strings.TrimSpace(m[2]); body != "" {
			params[SlotMessage] = body
		}
		return true, m[1], params
	}
	return false, "", nil
}

func matchCall(s string) (bool, string, map[string]string) {
	m := reCall.FindStringSubmatch(s)
	if m == nil {
		return false, "", nil
	}
	contact := strings.TrimSpace(m[1])
	return true, contact, map[string]string{SlotContact: contact}
}

func matchSearch(s string) (bool, string, map[string]string) {
	m := reSearch.FindStringSubmatch(s)
	if m == nil {
		return false, "", nil
	}
	query := strings.TrimSpace(m[1])
	return true, query, map[string]string{SlotQuery: query}
}

func matchSettings(s string) (bool, string, map[string]string) {
	if !reSettings.MatchString(s) && !reSettingsSection.MatchString(s) {
		return false, "", nil
	}
	section := "settings"
	if m := reSettingsSection.FindStringSubmatch(s); m != nil {
		section = strings.ReplaceAll(m[1], " ", "")
	}
	return true, section, map[string]string{SlotSection: section}
}

// trimAppName strips filler around an extracted app name ("the", a trailing
// "app", "for me").
func trimAppName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " for me")
	s = strings.TrimSuffix(s, " app")
	s = strings.TrimPrefix(s, "the ")
	return strings.TrimSpace(s)
}

// conversational openers that never describe a device task. These shortcut
// the LLM call for the common small-talk and question cases.
var questionStarters = map[string]struct{}{
	"what": {}, "whats": {}, "who": {}, "whos": {}, "when": {}, "where": {},
	"why": {}, "how": {}, "is": {}, "are": {}, "do": {}, "does": {}, "did": {},
	"tell": {}, "explain": {},
}

var greetings = map[string]struct{}{
	"hello": {}, "hi": {}, "hey": {}, "thanks": {}, "thank": {}, "good": {},
	"yo": {}, "ok": {}, "okay": {},
}

func isConversational(normalized string) bool {
	tokens := textutil.Tokenize(normalized)
	if len(tokens) == 0 {
		return false
	}
	if _, ok := greetings[tokens[0]]; ok {
		return true
	}
	if _, ok := questionStarters[tokens[0]]; ok {
		return true
	}
	return false
}
