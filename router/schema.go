package router

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Message schemas, one per route family. Extra fields are allowed; the
// dispatcher forwards the payload as received, so unknown keys pass through
// to handlers untouched.
const (
	controlSchemaJSON = `{
		"type": "object",
		"required": ["game_id", "token", "type"],
		"properties": {
			"game_id": {"type": "string"},
			"token": {"type": "string"},
			"type": {
				"type": "string",
				"enum": ["game.control.start", "game.control.pause", "game.control.resume"]
			}
		}
	}`

	speedControlSchemaJSON = `{
		"type": "object",
		"required": ["game_id", "token", "type", "speed"],
		"properties": {
			"game_id": {"type": "string"},
			"token": {"type": "string"},
			"speed": {"type": "integer", "minimum": 1, "maximum": 7},
			"type": {"type": "string", "enum": ["game.control.speed"]}
		}
	}`

	joinSchemaJSON = `{
		"type": "object",
		"required": ["game_id", "type"],
		"properties": {
			"game_id": {"type": "string"},
			"type": {"type": "string", "enum": ["game.join"]}
		}
	}`
)

var (
	controlSchema      = mustCompileSchema(controlSchemaJSON)
	speedControlSchema = mustCompileSchema(speedControlSchemaJSON)
	joinSchema         = mustCompileSchema(joinSchemaJSON)
)

func mustCompileSchema(doc string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("invalid message schema: %v", err))
	}
	return schema
}
