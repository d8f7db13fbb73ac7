package gateway

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type wsSchemaRegistry struct {
	once    sync.Once
	initErr error
	frame   *jsonschema.Schema
	types   map[string]*jsonschema.Schema
}

var wsSchemas wsSchemaRegistry

func initWSSchemas() error {
	wsSchemas.once.Do(func() {
		frame, err := jsonschema.CompileString("ws_frame", wsFrameSchema)
		if err != nil {
			wsSchemas.initErr = err
			return
		}
		wsSchemas.frame = frame

		types := map[string]string{
			frameUserInput:        wsUserInputSchema,
			frameToolConfirmation: wsToolConfirmationSchema,
			frameCancel:           wsCancelSchema,
		}

		wsSchemas.types = make(map[string]*jsonschema.Schema, len(types))
		for name, schema := range types {
			compiled, err := jsonschema.CompileString("ws_type_"+name, schema)
			if err != nil {
				wsSchemas.initErr = err
				return
			}
			wsSchemas.types[name] = compiled
		}
	})
	return wsSchemas.initErr
}

// validateFrame checks the envelope and then the type-specific shape.
func validateFrame(raw []byte, frame *wsFrame) error {
	if err := initWSSchemas(); err != nil {
		return err
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if err := wsSchemas.frame.Validate(payload); err != nil {
		return err
	}
	schema := wsSchemas.types[frame.Type]
	if schema == nil {
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
	return schema.Validate(payload)
}

const wsFrameSchema = `{
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": true
}`

const wsUserInputSchema = `{
  "type": "object",
  "required": ["type", "value"],
  "properties": {
    "type": { "const": "user_input" },
    "value": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": false
}`

const wsToolConfirmationSchema = `{
  "type": "object",
  "required": ["type", "callId", "outcome"],
  "properties": {
    "type": { "const": "tool_confirmation_response" },
    "callId": { "type": "string", "minLength": 1 },
    "outcome": {
      "enum": [
        "approve",
        "approve_always_server",
        "approve_always_tool",
        "modify_with_editor",
        "cancel"
      ]
    },
    "modifiedArgs": { "type": "object" }
  },
  "additionalProperties": false
}`

const wsCancelSchema = `{
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": { "const": "cancel" }
  },
  "additionalProperties": false
}`
