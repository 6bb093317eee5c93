// File: internal/intent/parser_test.go
package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLLM struct {
	reply string
	err   error
	calls int
}

func (s *stubLLM) Generate(_ context.Context, _ string, _ int) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubLLM) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func TestParseRules(t *testing.T) {
	p := NewParser(zap.NewNop(), nil)

	tests := []struct {
		name   string
		text   string
		action ActionName
		target string
		params map[string]string
	}{
		{
			name:   "install app",
			text:   "Install WhatsApp",
			action: ActionInstallApp,
			target: "whatsapp",
			params: map[string]string{SlotApp: "whatsapp"},
		},
		{
			name:   "download with filler",
			text:   "please download the spotify app for me",
			action: ActionInstallApp,
			target: "spotify",
		},
		{
			name:   "open app",
			text:   "open the calculator",
			action: ActionOpenApp,
			target: "calculator",
		},
		{
			name:   "launch app",
			text:   "launch Chrome",
			action: ActionOpenApp,
			target: "chrome",
		},
		{
			name:   "calendar event with details",
			text:   "create a meeting called standup on monday at 9am",
			action: ActionCreateEvent,
			target: "standup",
			params: map[string]string{SlotTitle: "standup", SlotDate: "monday", SlotTime: "9am"},
		},
		{
			name:   "reminder",
			text:   "remind me to buy milk at 5pm",
			action: ActionCreateReminder,
			target: "buy milk",
			params: map[string]string{SlotTask: "buy milk", SlotTime: "5pm"},
		},
		{
			name:   "set reminder form",
			text:   "set a reminder to water the plants",
			action: ActionCreateReminder,
			target: "water the plants",
		},
		{
			name:   "message with body",
			text:   "send a message to john saying running late",
			action: ActionSendMessage,
			target: "john",
			params: map[string]string{SlotContact: "john", SlotMessage: "running late"},
		},
		{
			name:   "terse text command",
			text:   "text anna see you soon",
			action: ActionSendMessage,
			target: "anna",
			params: map[string]string{SlotContact: "anna", SlotMessage: "see you soon"},
		},
		{
			name:   "call",
			text:   "call mom",
			action: ActionMakeCall,
			target: "mom",
		},
		{
			name:   "search",
			text:   "search for coffee shops nearby",
			action: ActionSearch,
			target: "coffee shops nearby",
		},
		{
			name:   "settings section",
			text:   "turn on wifi",
			action: ActionOpenSettings,
			target: "wifi",
			params: map[string]string{SlotSection: "wifi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := p.Parse(context.Background(), tt.text)
			require.Equal(t, KindActionable, in.Kind)
			assert.Equal(t, tt.action, in.Action)
			assert.Equal(t, tt.target, in.Target)
			for k, v := range tt.params {
				assert.Equal(t, v, in.Parameters[k], "param %s", k)
			}
		})
	}
}

func TestParseInstallBeatsOpen(t *testing.T) {
	// "install" must never be consumed by the broader open rule.
	p := NewParser(zap.NewNop(), nil)
	in := p.Parse(context.Background(), "install telegram")
	require.Equal(t, KindActionable, in.Kind)
	assert.Equal(t, ActionInstallApp, in.Action)
}

func TestParseConversational(t *testing.T) {
	p := NewParser(zap.NewNop(), nil)

	for _, text := range []string{"hello there", "what is the weather like", "thanks a lot"} {
		in := p.Parse(context.Background(), text)
		assert.Equal(t, KindInformational, in.Kind, "text %q", text)
	}
}

func TestParseEmptyAndUnclear(t *testing.T) {
	p := NewParser(zap.NewNop(), nil)

	assert.Equal(t, KindUnclear, p.Parse(context.Background(), "").Kind)
	assert.Equal(t, KindUnclear, p.Parse(context.Background(), "   !!!  ").Kind)
	// No rule, not conversational, no llm configured.
	assert.Equal(t, KindUnclear, p.Parse(context.Background(), "frobnicate the veeblefetzer").Kind)
}

func TestParseLLMFallback(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  Kind
	}{
		{"actionable", "ACTIONABLE", nil, KindActionable},
		{"informational", "informational", nil, KindInformational},
		{"garbage reply", "banana", nil, KindUnclear},
		{"llm failure downgrades", "", errors.New("timeout"), KindUnclear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &stubLLM{reply: tt.reply, err: tt.err}
			p := NewParser(zap.NewNop(), llm)

			in := p.Parse(context.Background(), "frobnicate the veeblefetzer")
			assert.Equal(t, tt.want, in.Kind)
			assert.Equal(t, 1, llm.calls)
		})
	}
}

func TestParseRuleMatchSkipsLLM(t *testing.T) {
	llm := &stubLLM{reply: "ACTIONABLE"}
	p := NewParser(zap.NewNop(), llm)

	in := p.Parse(context.Background(), "open spotify")
	require.Equal(t, KindActionable, in.Kind)
	assert.Zero(t, llm.calls)
}
