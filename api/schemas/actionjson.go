// File: api/schemas/actionjson.go
// Description: JSON codec for the Action sum type. Actions cross a process
// boundary in two places (the persistent template store and diagnostic
// output), so each variant is wrapped in a small type-tagged envelope.
package schemas

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Wire tags for the action envelope. Stable; stored templates depend on them.
const (
	actionTagLaunchApp = "launch_app"
	actionTagClick     = "click"
	actionTagInputText = "input_text"
	actionTagScroll    = "scroll"
	actionTagWait      = "wait"
	actionTagBack      = "back"
	actionTagHome      = "home"
)

type actionEnvelope struct {
	Type string              `json:"type"`
	Data jsoniter.RawMessage `json:"data"`
}

// MarshalActions encodes an action list into a type-tagged JSON array.
func MarshalActions(actions []Action) ([]byte, error) {
	envelopes := make([]actionEnvelope, 0, len(actions))
	for _, a := range actions {
		tag, err := actionTag(a)
		if err != nil {
			return nil, err
		}
		data, err := jsonAPI.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s action: %w", tag, err)
		}
		envelopes = append(envelopes, actionEnvelope{Type: tag, Data: data})
	}
	return jsonAPI.Marshal(envelopes)
}

// UnmarshalActions decodes a type-tagged JSON array back into actions.
// Unknown tags are an error; stored data from a newer version must not be
// silently dropped.
func UnmarshalActions(data []byte) ([]Action, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var envelopes []actionEnvelope
	if err := jsonAPI.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("failed to decode action list: %w", err)
	}

	actions := make([]Action, 0, len(envelopes))
	for _, env := range envelopes {
		action, err := decodeAction(env)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func actionTag(a Action) (string, error) {
	switch a.(type) {
	case LaunchApp:
		return actionTagLaunchApp, nil
	case Click:
		return actionTagClick, nil
	case InputText:
		return actionTagInputText, nil
	case Scroll:
		return actionTagScroll, nil
	case Wait:
		return actionTagWait, nil
	case Back:
		return actionTagBack, nil
	case Home:
		return actionTagHome, nil
	default:
		return "", fmt.Errorf("unknown action variant %T", a)
	}
}

func decodeAction(env actionEnvelope) (Action, error) {
	var (
		action Action
		err    error
	)
	switch env.Type {
	case actionTagLaunchApp:
		var a LaunchApp
		err = jsonAPI.Unmarshal(env.Data, &a)
		action = a
	case actionTagClick:
		var a Click
		err = jsonAPI.Unmarshal(env.Data, &a)
		action = a
	case actionTagInputText:
		var a InputText
		err = jsonAPI.Unmarshal(env.Data, &a)
		action = a
	case actionTagScroll:
		var a Scroll
		err = jsonAPI.Unmarshal(env.Data, &a)
		action = a
	case actionTagWait:
		var a Wait
		err = jsonAPI.Unmarshal(env.Data, &a)
		action = a
	case actionTagBack:
		var a Back
		err = jsonAPI.Unmarshal(env.Data, &a)
		action = a
	case actionTagHome:
		var a Home
		err = jsonAPI.Unmarshal(env.Data, &a)
		action = a
	default:
		return nil, fmt.Errorf("unknown action tag %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s action: %w", env.Type, err)
	}
	return action, nil
}
