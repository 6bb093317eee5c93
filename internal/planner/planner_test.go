// File: internal/planner/planner_test.go
package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/intent"
)

type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Generate(context.Context, string, int) (string, error) {
	return s.reply, s.err
}

func (s *stubLLM) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func newTestPlanner(llm schemas.LLMClient) *Planner {
	logger := zap.NewNop()
	return New(logger, intent.NewParser(logger, llm), llm)
}

func queryOf(text string) schemas.Query {
	return schemas.Query{ID: "q1", Text: text, Timestamp: time.Now()}
}

func TestCreatePlanNonActionable(t *testing.T) {
	p := newTestPlanner(nil)

	for _, text := range []string{"hello there", "what time is it", ""} {
		plan, err := p.CreatePlan(context.Background(), queryOf(text))
		require.NoError(t, err)
		assert.Nil(t, plan, "text %q", text)
	}
}

func TestCreatePlanMessageIsCritical(t *testing.T) {
	p := newTestPlanner(nil)

	plan, err := p.CreatePlan(context.Background(), queryOf("send a message to john saying running late"))
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, schemas.SafetyCritical, plan.SafetyLevel)
	assert.True(t, plan.RequiresConsent)
	assert.NotEmpty(t, plan.RollbackActions)

	// The composed body must make it into an input step.
	var sawBody bool
	for _, a := range plan.Actions {
		if in, ok := a.(schemas.InputText); ok && in.Text == "running late" {
			sawBody = true
			assert.Equal(t, schemas.SafetyCritical, in.Meta().Safety)
		}
	}
	assert.True(t, sawBody, "message body not found in plan")

	// The parsed slot values ride along for later templatization.
	assert.Equal(t, "john", plan.Parameters["contact"])
	assert.Equal(t, "running late", plan.Parameters["message"])
}

func TestCreatePlanOpenAppIsNormal(t *testing.T) {
	p := newTestPlanner(nil)

	plan, err := p.CreatePlan(context.Background(), queryOf("open spotify"))
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, schemas.SafetyNormal, plan.SafetyLevel)
	require.Len(t, plan.Actions, 1)
	launch, ok := plan.Actions[0].(schemas.LaunchApp)
	require.True(t, ok)
	assert.Equal(t, "spotify", launch.Target)
	// Default rollback returns home.
	require.Len(t, plan.RollbackActions, 1)
	assert.IsType(t, schemas.Home{}, plan.RollbackActions[0])
}

func TestCreatePlanInstallTargetsStore(t *testing.T) {
	p := newTestPlanner(nil)

	plan, err := p.CreatePlan(context.Background(), queryOf("install whatsapp"))
	require.NoError(t, err)
	require.NotNil(t, plan)

	launch, ok := plan.Actions[0].(schemas.LaunchApp)
	require.True(t, ok)
	assert.Equal(t, "market://search?q=whatsapp", launch.Target)
	assert.Equal(t, schemas.SafetyNormal, plan.SafetyLevel)
}

func TestCreatePlanCallIsCritical(t *testing.T) {
	p := newTestPlanner(nil)

	plan, err := p.CreatePlan(context.Background(), queryOf("call mom"))
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, schemas.SafetyCritical, plan.SafetyLevel)
}

func TestCreatePlanUniqueActionIDs(t *testing.T) {
	p := newTestPlanner(nil)

	plan, err := p.CreatePlan(context.Background(), queryOf("remind me to buy milk at 5pm"))
	require.NoError(t, err)
	require.NotNil(t, plan)

	seen := map[string]bool{}
	for _, a := range plan.Actions {
		id := a.Meta().ID
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate action id %s", id)
		seen[id] = true
	}
}

func TestGenerateTextResponse(t *testing.T) {
	t.Run("without llm", func(t *testing.T) {
		p := newTestPlanner(nil)
		text, err := p.GenerateTextResponse(context.Background(), queryOf("what can you do"))
		require.NoError(t, err)
		assert.NotEmpty(t, text)
	})

	t.Run("with llm", func(t *testing.T) {
		p := newTestPlanner(&stubLLM{reply: "I can open apps."})
		text, err := p.GenerateTextResponse(context.Background(), queryOf("what can you do"))
		require.NoError(t, err)
		assert.Equal(t, "I can open apps.", text)
	})

	t.Run("llm failure surfaces", func(t *testing.T) {
		p := newTestPlanner(&stubLLM{err: errors.New("timeout")})
		_, err := p.GenerateTextResponse(context.Background(), queryOf("what can you do"))
		assert.Error(t, err)
	})
}
