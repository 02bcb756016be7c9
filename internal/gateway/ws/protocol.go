package ws

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/aether-games/echoes-engine/internal/gateway"
)

// Frame types.
const (
	TypeHello   = "hello"
	TypeWelcome = "welcome"
	TypeAction  = "action"
	TypeSay     = "say"
	TypeResult  = "result"
	TypeMessage = "message"
	TypeEdit    = "edit"
)

const inboundSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "oneOf": [
    {
      "type": "object",
      "required": ["type", "grant"],
      "properties": {
        "type": {"const": "hello"},
        "grant": {"type": "string", "minLength": 1, "maxLength": 4096}
      }
    },
    {
      "type": "object",
      "required": ["type", "token"],
      "properties": {
        "type": {"const": "action"},
        "token": {"type": "string", "minLength": 1, "maxLength": 128},
        "group_id": {"type": "string", "maxLength": 128}
      }
    },
    {
      "type": "object",
      "required": ["type", "text"],
      "properties": {
        "type": {"const": "say"},
        "text": {"type": "string", "minLength": 1, "maxLength": 2000}
      }
    }
  ]
}`

func compileInbound() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("inbound.schema.json", inboundSchema)
}

// InboundFrame is any frame a client may send.
type InboundFrame struct {
	Type    string `json:"type"`
	Grant   string `json:"grant,omitempty"`
	Token   string `json:"token,omitempty"`
	GroupID string `json:"group_id,omitempty"`
	Text    string `json:"text,omitempty"`
}

// OutboundFrame is any frame the server sends.
type OutboundFrame struct {
	Type    string            `json:"type"`
	ID      gateway.MessageID `json:"id,omitempty"`
	As      string            `json:"as,omitempty"`
	Text    string            `json:"text,omitempty"`
	Buttons []gateway.Button  `json:"buttons,omitempty"`
	OK      *bool             `json:"ok,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// decodeInbound validates raw against the inbound schema and decodes it.
func decodeInbound(schema *jsonschema.Schema, raw []byte) (InboundFrame, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return InboundFrame{}, fmt.Errorf("decode frame: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return InboundFrame{}, fmt.Errorf("invalid frame: %w", err)
	}
	var f InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return InboundFrame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}
