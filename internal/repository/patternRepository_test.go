// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternRepositoryUpsertAndReplaceRoles(t *testing.T) {
	repo := GetPatternRepository()

	entry := PatternImportEntry{
		Name:       "air-handling-unit",
		Category:   "hvac",
		Confidence: 0.6,
		Roles: []PatternImportRoleEntry{
			{Name: "supply-temp", Required: true, Weight: 1, NamingPatterns: []string{"(?i)supply.*temp"}, ExpectedUnit: "degF", HasRange: true, ExpectedMin: 40, ExpectedMax: 90},
			{Name: "fan-status", Required: true, Weight: 0.5, NamingPatterns: []string{"(?i)fan.*status"}},
		},
	}
	require.NoError(t, repo.Upsert(entry))

	patterns, err := repo.Active()
	require.NoError(t, err)

	var found bool
	for _, p := range patterns {
		if p.Name == "air-handling-unit" {
			found = true
			assert.Len(t, p.Roles, 2)
		}
	}
	assert.True(t, found)

	// Re-upsert with one fewer role; the role set must be replaced, not appended.
	entry.Roles = entry.Roles[:1]
	require.NoError(t, repo.Upsert(entry))

	patterns, err = repo.Active()
	require.NoError(t, err)
	for _, p := range patterns {
		if p.Name == "air-handling-unit" {
			assert.Len(t, p.Roles, 1)
		}
	}
}

func TestPatternRepositoryUpdateConfidence(t *testing.T) {
	repo := GetPatternRepository()
	require.NoError(t, repo.Upsert(PatternImportEntry{Name: "boiler", Confidence: 0.5, Roles: []PatternImportRoleEntry{{Name: "flame-status"}}}))

	patterns, err := repo.Active()
	require.NoError(t, err)
	var id string
	for _, p := range patterns {
		if p.Name == "boiler" {
			id = p.ID
		}
	}
	require.NotEmpty(t, id)

	require.NoError(t, repo.UpdateConfidence(id, 0.55, 1, 0, nil))

	updated, err := repo.GetByID(id)
	require.NoError(t, err)
	assert.InDelta(t, 0.55, updated.Confidence, 0.0001)
	assert.Equal(t, int64(1), updated.ExampleCount)
}
