// File: internal/memory/template.go
// Description: Turns an executed plan into template form before it is stored.
// Each plan parameter value that appears as a whole word in a text-bearing
// action field is replaced with a {name} placeholder, and a typed parameter
// slot is declared so adaptation knows which extractor refills it.
package memory

import (
	"regexp"
	"sort"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/intent"
)

// slotTypeFor maps a plan parameter name to the slot type whose extractor
// refills it at adaptation time. Names without a dedicated extractor carry
// free text.
func slotTypeFor(name string) schemas.SlotType {
	switch name {
	case intent.SlotContact:
		return schemas.SlotContact
	case intent.SlotApp:
		return schemas.SlotApp
	case intent.SlotTime:
		return schemas.SlotTime
	case intent.SlotDate:
		return schemas.SlotDate
	default:
		return schemas.SlotText
	}
}

// deriveTemplate rewrites the plan's actions for storage and returns the
// parameter slots that were actually substituted somewhere. A parameter whose
// value never appears in any action produces no slot; adaptation would have
// nothing to fill.
func deriveTemplate(plan schemas.ActionPlan) ([]schemas.Action, []schemas.ParameterSlot) {
	actions := append([]schemas.Action(nil), plan.Actions...)
	if len(plan.Parameters) == 0 {
		return actions, nil
	}

	names := make([]string, 0, len(plan.Parameters))
	for name, value := range plan.Parameters {
		if name != "" && value != "" {
			names = append(names, name)
		}
	}
	// Longest value first so a parameter contained in another never clobbers
	// it; name order breaks length ties deterministically.
	sort.Slice(names, func(i, j int) bool {
		vi, vj := plan.Parameters[names[i]], plan.Parameters[names[j]]
		if len(vi) != len(vj) {
			return len(vi) > len(vj)
		}
		return names[i] < names[j]
	})

	var slots []schemas.ParameterSlot
	for _, name := range names {
		// Whole-word, case-insensitive; a value like "hi" must not match
		// inside "this".
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(plan.Parameters[name]) + `\b`)
		if err != nil {
			continue
		}
		placeholder := "{" + name + "}"
		substituted := false
		for i, a := range actions {
			rewritten, hit := parameterizeAction(a, re, placeholder)
			if hit {
				actions[i] = rewritten
				substituted = true
			}
		}
		if substituted {
			slots = append(slots, schemas.ParameterSlot{Name: name, Type: slotTypeFor(name)})
		}
	}
	return actions, slots
}

// parameterizeAction returns a copy of the action with every match of re in
// its text-bearing fields replaced by the placeholder, and reports whether
// anything changed.
func parameterizeAction(a schemas.Action, re *regexp.Regexp, placeholder string) (schemas.Action, bool) {
	hit := false
	repl := func(s string) string {
		out := re.ReplaceAllString(s, placeholder)
		if out != s {
			hit = true
		}
		return out
	}

	meta := a.Meta()
	meta.Description = repl(meta.Description)

	switch v := a.(type) {
	case schemas.LaunchApp:
		v.ActionMeta = meta
		v.Target = repl(v.Target)
		return v, hit
	case schemas.Click:
		v.ActionMeta = meta
		v.Selector = parameterizeSelector(v.Selector, repl)
		return v, hit
	case schemas.InputText:
		v.ActionMeta = meta
		v.Selector = parameterizeSelector(v.Selector, repl)
		v.Text = repl(v.Text)
		return v, hit
	case schemas.Scroll:
		v.ActionMeta = meta
		return v, hit
	case schemas.Wait:
		v.ActionMeta = meta
		v.Condition.Selector = parameterizeSelector(v.Condition.Selector, repl)
		return v, hit
	case schemas.Back:
		v.ActionMeta = meta
		return v, hit
	case schemas.Home:
		v.ActionMeta = meta
		return v, hit
	default:
		return a, false
	}
}

func parameterizeSelector(sel schemas.Selector, repl func(string) string) schemas.Selector {
	sel.Text = repl(sel.Text)
	sel.TextContains = repl(sel.TextContains)
	sel.Desc = repl(sel.Desc)
	sel.DescContains = repl(sel.DescContains)
	return sel
}
