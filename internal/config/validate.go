// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate checks instance against the given JSON Schema, returning an
// error instead of aborting the process: a bad config.json should fail
// cleanly with a message, not crash inside a schema compiler, and
// should be caught before any of the fatal-startup conditions that
// follow config load.
func Validate(schema string, instance json.RawMessage) error {
	sch, err := jsonschema.CompileString("config.schema.json", schema)
	if err != nil {
		return fmt.Errorf("CONFIG/VALIDATE > compile schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		return fmt.Errorf("CONFIG/VALIDATE > parse instance: %w", err)
	}

	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("CONFIG/VALIDATE > %w", err)
	}
	return nil
}
