// File: internal/planner/adapt.go
// Description: Template adaptation. A matched task template is re-grounded in
// the new query by extracting a value for each declared parameter slot and
// substituting {slot} placeholders inside text-bearing actions. The adapted
// plan's safety level is recomputed from its actions.
package planner

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/textutil"
)

// AdaptTemplate rebuilds a memorized template into a one-shot plan for the
// given query. Slots that cannot be extracted keep their placeholder text;
// downstream behavior stays permissive rather than failing the adaptation.
func (p *Planner) AdaptTemplate(tpl schemas.TaskTemplate, query schemas.Query) schemas.ActionPlan {
	values := make(map[string]string, len(tpl.ParameterSlots))
	for _, slot := range tpl.ParameterSlots {
		if v, ok := extractSlot(slot.Type, query.Text); ok {
			values[slot.Name] = v
		}
	}

	actions := make([]schemas.Action, 0, len(tpl.Actions))
	for _, a := range tpl.Actions {
		actions = append(actions, substituteAction(a, values))
	}
	rollback := []schemas.Action{
		schemas.Home{ActionMeta: newMeta("Return to home screen", schemas.SafetySafe)},
	}

	// Cache-derived plans always require consent, whatever their safety level.
	plan := schemas.NewActionPlan(uuid.NewString(), tpl.Pattern, actions, true, rollback)
	plan.Parameters = values
	p.logger.Info("Adapted template into plan",
		zap.String("template_id", tpl.ID),
		zap.String("plan_id", plan.ID),
		zap.Int("filled_slots", len(values)))
	return plan
}

// substituteAction returns a copy of the action with fresh identity and all
// {slot} placeholders in its text-bearing fields replaced.
func substituteAction(a schemas.Action, values map[string]string) schemas.Action {
	meta := a.Meta()
	meta.ID = uuid.NewString()
	meta.Description = substitute(meta.Description, values)

	switch v := a.(type) {
	case schemas.LaunchApp:
		v.ActionMeta = meta
		v.Target = substitute(v.Target, values)
		return v
	case schemas.Click:
		v.ActionMeta = meta
		v.Selector = substituteSelector(v.Selector, values)
		return v
	case schemas.InputText:
		v.ActionMeta = meta
		v.Selector = substituteSelector(v.Selector, values)
		v.Text = substitute(v.Text, values)
		return v
	case schemas.Scroll:
		v.ActionMeta = meta
		return v
	case schemas.Wait:
		v.ActionMeta = meta
		v.Condition.Selector = substituteSelector(v.Condition.Selector, values)
		return v
	case schemas.Back:
		v.ActionMeta = meta
		return v
	case schemas.Home:
		v.ActionMeta = meta
		return v
	default:
		return a
	}
}

func substituteSelector(sel schemas.Selector, values map[string]string) schemas.Selector {
	sel.Text = substitute(sel.Text, values)
	sel.TextContains = substitute(sel.TextContains, values)
	sel.Desc = substitute(sel.Desc, values)
	sel.DescContains = substitute(sel.DescContains, values)
	return sel
}

func substitute(s string, values map[string]string) string {
	if s == "" || len(values) == 0 || !strings.Contains(s, "{") {
		return s
	}
	for name, value := range values {
		s = strings.ReplaceAll(s, "{"+name+"}", value)
	}
	return s
}

// -- Slot extractors --
// One dedicated extractor per slot type, each returning an optional value.
// They operate on normalized text and never error.

var (
	reSlotTime    = regexp.MustCompile(`\b(?:at )?(\d{1,2}(?: ?\d{2})?(?: ?(?:am|pm))|\d{1,2} ?(?:am|pm)|noon|midnight)\b`)
	reSlotDate    = regexp.MustCompile(`\b(today|tomorrow|(?:next )?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)|next week)\b`)
	reSlotContact = regexp.MustCompile(`\b(?:to|call|with) ([a-z]+)\b`)
	reSlotApp     = regexp.MustCompile(`\b(?:open|launch|start|install|download|using|in) (?:the )?([a-z0-9 ]+?)(?: app)?$`)
	reSlotNumber  = regexp.MustCompile(`\b(\d+)\b`)
	reSlotBody    = regexp.MustCompile(`\b(?:saying|that says|that) (.+)$`)
)

func extractSlot(kind schemas.SlotType, queryText string) (string, bool) {
	normalized := textutil.Normalize(queryText)
	switch kind {
	case schemas.SlotTime:
		return firstGroup(reSlotTime, normalized)
	case schemas.SlotDate:
		return firstGroup(reSlotDate, normalized)
	case schemas.SlotContact:
		return firstGroup(reSlotContact, normalized)
	case schemas.SlotApp:
		return firstGroup(reSlotApp, normalized)
	case schemas.SlotNumber:
		return firstGroup(reSlotNumber, normalized)
	case schemas.SlotText:
		if v, ok := firstGroup(reSlotBody, normalized); ok {
			return v, true
		}
		// Free text falls back to the whole normalized query.
		if normalized != "" {
			return normalized, true
		}
		return "", false
	default:
		return "", false
	}
}

func firstGroup(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
