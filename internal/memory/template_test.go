// File: internal/memory/template_test.go
package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/config"
)

func messagePlan() schemas.ActionPlan {
	actions := []schemas.Action{
		schemas.InputText{
			ActionMeta: schemas.ActionMeta{ID: "a1", Description: "Address the message to john", Safety: schemas.SafetyNormal},
			Selector:   schemas.Selector{IDContains: "recipient"},
			Text:       "john",
		},
		schemas.InputText{
			ActionMeta: schemas.ActionMeta{ID: "a2", Description: "Enter the message text", Safety: schemas.SafetyCritical},
			Selector:   schemas.Selector{IDContains: "compose"},
			Text:       "hi",
		},
		schemas.Click{
			ActionMeta: schemas.ActionMeta{ID: "a3", Description: "Send the message", Safety: schemas.SafetyCritical},
			Selector:   schemas.Selector{DescContains: "Send"},
		},
	}
	plan := schemas.NewActionPlan("p1", "Send a message to john", actions, true, nil)
	plan.Parameters = map[string]string{"contact": "john", "message": "hi"}
	return plan
}

func TestDeriveTemplateSubstitutesPlaceholders(t *testing.T) {
	actions, slots := deriveTemplate(messagePlan())
	require.Len(t, actions, 3)

	recipient, ok := actions[0].(schemas.InputText)
	require.True(t, ok)
	assert.Equal(t, "{contact}", recipient.Text)
	assert.Equal(t, "Address the message to {contact}", recipient.Meta().Description)

	body, ok := actions[1].(schemas.InputText)
	require.True(t, ok)
	assert.Equal(t, "{message}", body.Text)
	// "hi" never appears as a whole word elsewhere; descriptions stay intact.
	assert.Equal(t, "Enter the message text", body.Meta().Description)

	require.Len(t, slots, 2)
	byName := map[string]schemas.SlotType{}
	for _, slot := range slots {
		byName[slot.Name] = slot.Type
	}
	assert.Equal(t, schemas.SlotContact, byName["contact"])
	assert.Equal(t, schemas.SlotText, byName["message"])
}

func TestDeriveTemplateMatchesWholeWordsOnly(t *testing.T) {
	actions := []schemas.Action{
		schemas.InputText{
			ActionMeta: schemas.ActionMeta{ID: "a1", Description: "Enter this text"},
			Selector:   schemas.Selector{IDContains: "compose"},
			Text:       "hi to this historian",
		},
	}
	plan := schemas.NewActionPlan("p1", "send hi", actions, true, nil)
	plan.Parameters = map[string]string{"message": "hi"}

	rewritten, slots := deriveTemplate(plan)
	body := rewritten[0].(schemas.InputText)
	assert.Equal(t, "{message} to this historian", body.Text)
	assert.Equal(t, "Enter this text", body.Meta().Description)
	require.Len(t, slots, 1)
}

func TestDeriveTemplateDropsUnusedParameters(t *testing.T) {
	actions := []schemas.Action{
		schemas.Home{ActionMeta: schemas.ActionMeta{ID: "a1", Description: "go home"}},
	}
	plan := schemas.NewActionPlan("p1", "go home", actions, true, nil)
	plan.Parameters = map[string]string{"contact": "john"}

	_, slots := deriveTemplate(plan)
	assert.Empty(t, slots)
}

func TestDeriveTemplateWithoutParameters(t *testing.T) {
	plan := planFor("open spotify")
	actions, slots := deriveTemplate(plan)
	assert.Len(t, actions, len(plan.Actions))
	assert.Empty(t, slots)
}

func TestLearnStoresParameterizedTemplate(t *testing.T) {
	s := newTestStore(t, config.MemoryConfig{MatchThreshold: 0.70})
	ctx := context.Background()

	require.NoError(t, s.LearnFromExecution(ctx, messagePlan(), successResults(3)))

	match, err := s.FindMatch(ctx, "send a message to john")
	require.NoError(t, err)
	require.NotNil(t, match)
	require.Len(t, match.Template.ParameterSlots, 2)

	recipient := match.Template.Actions[0].(schemas.InputText)
	assert.Equal(t, "{contact}", recipient.Text)
	body := match.Template.Actions[1].(schemas.InputText)
	assert.Equal(t, "{message}", body.Text)
}

func TestSQLitePersistsParameterSlots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.db")
	cfg := config.MemoryConfig{MatchThreshold: 0.70}
	ctx := context.Background()

	s := newSQLiteTestStore(t, path, cfg)
	require.NoError(t, s.LearnFromExecution(ctx, messagePlan(), successResults(3)))
	require.NoError(t, s.Close())

	reopened := newSQLiteTestStore(t, path, cfg)
	match, err := reopened.FindMatch(ctx, "send a message to john")
	require.NoError(t, err)
	require.NotNil(t, match)

	require.Len(t, match.Template.ParameterSlots, 2)
	byName := map[string]schemas.SlotType{}
	for _, slot := range match.Template.ParameterSlots {
		byName[slot.Name] = slot.Type
	}
	assert.Equal(t, schemas.SlotContact, byName["contact"])
	assert.Equal(t, schemas.SlotText, byName["message"])

	recipient := match.Template.Actions[0].(schemas.InputText)
	assert.Equal(t, "{contact}", recipient.Text)
}
