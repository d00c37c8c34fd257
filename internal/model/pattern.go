// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"encoding/json"
	"regexp"
	"time"
)

// Pattern is an equipment template in the pattern library: a named,
// reusable shape (a set of roles) that a cluster of correlated tags can
// be matched against. Confidence starts at the library's seed value and
// is adjusted by the learning loop (C11) on every approve/reject.
type Pattern struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Category       string     `db:"category" json:"category"`
	Description    string     `db:"description" json:"description"`
	Confidence     float64    `db:"confidence" json:"confidence"`
	Active         bool       `db:"active" json:"active"`
	ExampleCount   int64      `db:"example_count" json:"exampleCount"`
	RejectionCount int64      `db:"rejection_count" json:"rejectionCount"`
	LastMatchedAt  *time.Time `db:"last_matched_at" json:"lastMatchedAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`

	Roles []PatternRole `db:"-" json:"roles,omitempty"`
}

// PatternRole is one slot a pattern expects a cluster member to fill,
// e.g. "supply temperature" or "compressor status" on a chiller pattern.
// NamingPatterns is stored as a JSON array of regular expressions; a role
// matches a tag when its name satisfies any one of them.
type PatternRole struct {
	ID                 string  `db:"id" json:"id"`
	PatternID          string  `db:"pattern_id" json:"patternId"`
	Name               string  `db:"name" json:"name"`
	Required           bool    `db:"required" json:"required"`
	Weight             float64 `db:"weight" json:"weight"`
	NamingPatternsJSON string  `db:"naming_patterns" json:"-"`
	ExpectedUnit       string  `db:"expected_unit" json:"expectedUnit"`
	HasRange           bool    `db:"has_range" json:"hasRange"`
	ExpectedMin        float64 `db:"expected_min" json:"expectedMin"`
	ExpectedMax        float64 `db:"expected_max" json:"expectedMax"`
	HasInterval        bool    `db:"has_interval" json:"hasInterval"`
	TypicalIntervalSec float64 `db:"typical_interval_seconds" json:"typicalIntervalSeconds"`
	Position           int     `db:"position" json:"position"`
}

// NamingRegexes compiles NamingPatternsJSON, the naming matcher's only
// consumer of the stored column. Patterns are matched case-insensitively
// by prefixing each with "(?i)".
func (r PatternRole) NamingRegexes() ([]*regexp.Regexp, error) {
	var patterns []string
	if r.NamingPatternsJSON != "" {
		if err := json.Unmarshal([]byte(r.NamingPatternsJSON), &patterns); err != nil {
			return nil, err
		}
	}
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}
