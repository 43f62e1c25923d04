package services

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"math-showcase/config"
)

const datasetPageSchemaURL = "dataset-page.json"

// datasetPageSchema beschreibt die Teile einer Dataset-Page, auf die sich der Normalizer verlässt.
const datasetPageSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["samples"],
  "properties": {
    "datasetId": {"type": "string"},
    "page": {"type": "integer", "minimum": 1},
    "pageSize": {"type": "integer", "minimum": 1},
    "total": {"type": "integer", "minimum": 0},
    "samples": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "content"],
        "properties": {
          "id": {"type": "string"},
          "content": {
            "type": "object",
            "properties": {
              "prompt_md": {"type": ["string", "null"]},
              "answer_md": {"type": ["string", "null"]},
              "solution_md": {"type": ["string", "null"]}
            }
          },
          "annotations": {"type": "object"}
        }
      }
    }
  }
}`

// PageValidator prüft dekodierte Pages gegen das Dataset-Page-Schema.
// Im warn-Modus werden Verstöße geloggt und die Page trotzdem normalisiert.
type PageValidator struct {
	mode   string
	schema *jsonschema.Schema
	logger *zap.Logger
}

// NewPageValidator kompiliert das Page-Schema für den gegebenen Modus.
func NewPageValidator(mode string, logger *zap.Logger) (*PageValidator, error) {
	v := &PageValidator{mode: mode, logger: logger}
	if mode == config.SchemaModeOff {
		return v, nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(datasetPageSchemaURL, strings.NewReader(datasetPageSchema)); err != nil {
		return nil, fmt.Errorf("add page schema: %w", err)
	}
	schema, err := compiler.Compile(datasetPageSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile page schema: %w", err)
	}
	v.schema = schema
	return v, nil
}

// Validate liefert nur im strict-Modus einen Fehler.
func (v *PageValidator) Validate(path string, page any) error {
	if v == nil || v.schema == nil {
		return nil
	}
	err := v.schema.Validate(page)
	if err == nil {
		return nil
	}
	if v.mode == config.SchemaModeStrict {
		return fmt.Errorf("page does not match schema: %w", err)
	}
	v.logger.Warn("Page does not match schema", zap.String("file", path), zap.Error(err))
	return nil
}
