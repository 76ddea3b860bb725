package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Reserved action types dispatched by the store itself.
const (
	// ActionInit is dispatched once when a store is created.
	ActionInit = "@@tessera/INIT"

	// ActionReplace is dispatched every time the reducer is replaced.
	ActionReplace = "@@tessera/REPLACE"
)

// Action is the unit of change sent through Dispatch.
// Namespaced action types are conventionally "<namespace>/<name>".
type Action struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Meta    any    `json:"meta,omitempty"`
	Error   bool   `json:"error,omitempty"`
}

// ReducerFunc applies an action to a state and returns the next state.
// It must return the input state untouched when the action does not apply.
type ReducerFunc func(state any, action Action) any

// NewAction builds an action. A nil payload or meta is left out, and an
// error payload marks the action as an error.
func NewAction(actionType string, payload, meta any) Action {
	action := Action{Type: actionType}
	if payload != nil {
		action.Payload = payload
		if _, ok := payload.(error); ok {
			action.Error = true
		}
	}
	if meta != nil {
		action.Meta = meta
	}
	return action
}

// HasPayload reports whether the action carries a payload.
func (a Action) HasPayload() bool {
	return a.Payload != nil
}

// DecodePayload decodes the action payload into target (a pointer).
// Payloads that came over the wire as generic maps are decoded field by
// field using "json" tags.
func DecodePayload(action Action, target any) error {
	if action.Payload == nil {
		return fmt.Errorf("action %q has no payload", action.Type)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return fmt.Errorf("failed to build payload decoder: %w", err)
	}
	if err := decoder.Decode(action.Payload); err != nil {
		return fmt.Errorf("failed to decode payload of %q: %w", action.Type, err)
	}
	return nil
}
