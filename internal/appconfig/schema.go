// internal/appconfig/schema.go
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema describes the shape of config/config.json.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "model": {
      "type": "object",
      "properties": {
        "type": {"type": "string", "enum": ["", "llama.cpp", "llamacpp", "llama-cpp", "llama-server", "ollama"]},
        "url": {"type": "string"},
        "name": {"type": "string"},
        "path": {"type": "string"},
        "managed": {"type": "boolean"},
        "serverBinary": {"type": "string"},
        "contextSize": {"type": "integer", "minimum": 0},
        "gpuLayers": {"type": "integer", "minimum": -1},
        "maxRetries": {"type": "integer", "minimum": 0, "maximum": 10},
        "retryDelayMs": {"type": "integer", "minimum": 0}
      },
      "additionalProperties": false
    },
    "embedding": {
      "type": "object",
      "properties": {
        "type": {"type": "string", "enum": ["", "tfidf", "tf-idf", "llama.cpp", "llamacpp", "llama-cpp", "llama-server", "ollama"]},
        "url": {"type": "string"},
        "model": {"type": "string"}
      },
      "additionalProperties": false
    },
    "store": {
      "type": "object",
      "properties": {
        "backend": {"type": "string", "enum": ["", "memory", "qdrant"]},
        "qdrantHost": {"type": "string"},
        "qdrantPort": {"type": "integer", "minimum": 0, "maximum": 65535},
        "collection": {"type": "string"}
      },
      "additionalProperties": false
    },
    "rag": {
      "type": "object",
      "properties": {
        "topK": {"type": "integer", "minimum": 0}
      },
      "additionalProperties": false
    },
    "corpus": {"type": "string"},
    "listen": {"type": "string"},
    "timeout": {"type": "integer", "minimum": 0},
    "logFile": {"type": "string"},
    "debug": {"type": "boolean"},
    "metrics": {"type": "boolean"},
    "metricsFile": {"type": "string"}
  },
  "additionalProperties": false
}`

// ValidateJSON checks a raw JSON configuration document against the config schema.
func ValidateJSON(raw []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(configSchema), gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("config schema validation failed: %w", err)
	}
	if !result.Valid() {
		var issues []string
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return fmt.Errorf("config does not match schema: %s", strings.Join(issues, "; "))
	}
	return nil
}

// ValidateFile reads path and validates it with ValidateJSON. Non-JSON files are skipped.
func ValidateFile(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file %q: %w", path, err)
	}
	return ValidateJSON(raw)
}
