// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pattern-flywheel/historian/pkg/log"
)

// patternLibrarySchema is the JSON Schema a pattern-library import
// document must satisfy, validated the same way config.json is:
// against an embedded schema before any value is trusted.
const patternLibrarySchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["patterns"],
	"properties": {
		"patterns": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "roles"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"category": {"type": "string"},
					"description": {"type": "string"},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1},
					"roles": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["name"],
							"properties": {
								"name": {"type": "string", "minLength": 1},
								"required": {"type": "boolean"},
								"weight": {"type": "number", "minimum": 0},
								"namingPatterns": {"type": "array", "items": {"type": "string"}},
								"expectedUnit": {"type": "string"},
								"hasRange": {"type": "boolean"},
								"expectedMin": {"type": "number"},
								"expectedMax": {"type": "number"},
								"hasInterval": {"type": "boolean"},
								"typicalIntervalSeconds": {"type": "number", "minimum": 0}
							}
						}
					}
				}
			}
		}
	}
}`

// LoadPatternLibrary validates a JSON pattern-library document against
// patternLibrarySchema and upserts every pattern it contains, letting
// operators seed or refresh the catalog without hand-written SQL.
func LoadPatternLibrary(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("REPOSITORY/PATTERNLIBRARY > read %s: %w", path, err)
	}

	schema, err := jsonschema.CompileString("pattern-library.json", patternLibrarySchema)
	if err != nil {
		return fmt.Errorf("REPOSITORY/PATTERNLIBRARY > compile schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("REPOSITORY/PATTERNLIBRARY > parse %s: %w", path, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("REPOSITORY/PATTERNLIBRARY > %s failed validation: %w", path, err)
	}

	var doc PatternImportDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("REPOSITORY/PATTERNLIBRARY > decode %s: %w", path, err)
	}

	repo := GetPatternRepository()
	for _, entry := range doc.Patterns {
		if entry.Confidence == 0 {
			entry.Confidence = 0.5
		}
		if err := repo.Upsert(entry); err != nil {
			return fmt.Errorf("REPOSITORY/PATTERNLIBRARY > upsert %s: %w", entry.Name, err)
		}
		log.Infof("REPOSITORY/PATTERNLIBRARY > loaded pattern %q (%d roles)", entry.Name, len(entry.Roles))
	}
	return nil
}
