package config

import (
	gojson "github.com/goccy/go-json"
	"github.com/kaptinlin/jsonschema"

	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/huskyerr"
)

// configSchema is the JSON Schema the merged configuration document
// must satisfy before the engine trusts it, grounded directly on
// jrossi/ccfeedback's linters/json/json.go use of
// kaptinlin/jsonschema (NewCompiler().Compile(...) then
// schema.Validate(data)).
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "mode": {
      "type": "string",
      "enum": ["GitHooksBlocking", "GitHooksNonBlocking", "CI", "CLI", "Pipeline", "MCP"]
    },
    "max_workers": {"type": "integer", "minimum": 1},
    "fail_fast": {"type": "boolean"},
    "progress": {"type": "boolean"},
    "tools": {"type": "object"},
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["pattern", "tool"],
        "properties": {
          "pattern": {"type": "string"},
          "tool": {"type": "string"}
        }
      }
    },
    "configured": {"type": "array", "items": {"type": "string"}}
  }
}`

var compiledSchema *jsonschema.Schema

func schema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	compiler := jsonschema.NewCompiler()
	s, err := compiler.Compile([]byte(configSchema))
	if err != nil {
		return nil, err
	}
	compiledSchema = s
	return s, nil
}

// Validate checks cfg against configSchema, surfacing any violation as
// a *huskyerr.ConfigError.
func Validate(cfg *Config) error {
	s, err := schema()
	if err != nil {
		return huskyerr.NewConfigError(huskyerr.InvalidValue, "compile config schema: %v", err)
	}

	data, err := gojson.Marshal(cfg)
	if err != nil {
		return huskyerr.NewConfigError(huskyerr.InvalidValue, "marshal config for validation: %v", err)
	}

	var doc any
	if err := gojson.Unmarshal(data, &doc); err != nil {
		return huskyerr.NewConfigError(huskyerr.InvalidValue, "unmarshal config for validation: %v", err)
	}

	if err := s.Validate(doc); err != nil {
		return huskyerr.NewConfigError(huskyerr.InvalidValue, "config failed schema validation: %v", err)
	}
	return nil
}
