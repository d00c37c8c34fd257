// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pattern-flywheel/historian/internal/model"
)

// seedSuggestionFixtures creates a cluster and pattern pair unique to
// the calling test, so every test exercises its own (cluster, pattern)
// suggestion slot rather than colliding on the shared database.
func seedSuggestionFixtures(t *testing.T, members []int64, patternName string) (clusterID, patternID string) {
	t.Helper()

	cluster := &model.Cluster{MemberSequenceIDs: members, Cohesion: 0.7}
	require.NoError(t, GetClusterRepository().Upsert(cluster))

	require.NoError(t, GetPatternRepository().Upsert(PatternImportEntry{
		Name: patternName, Confidence: 0.5,
		Roles: []PatternImportRoleEntry{{Name: "fan-speed"}},
	}))
	patterns, err := GetPatternRepository().Active()
	require.NoError(t, err)
	for _, p := range patterns {
		if p.Name == patternName {
			patternID = p.ID
		}
	}
	require.NotEmpty(t, patternID)
	return cluster.ID, patternID
}

func TestSuggestionRepositoryUpsertAndResolve(t *testing.T) {
	clusterID, patternID := seedSuggestionFixtures(t, []int64{30, 31}, "cooling-tower")
	repo := GetSuggestionRepository()

	s := &model.Suggestion{
		ClusterID: clusterID, PatternID: patternID,
		Overall: 0.82, ExpiresAt: time.Now().Add(72 * time.Hour),
	}
	require.NoError(t, repo.Upsert(s))

	pending, err := repo.Pending()
	require.NoError(t, err)
	assert.NotEmpty(t, pending)

	// Re-scoring the same pair while pending updates in place, not
	// duplicates: the matcher always builds a fresh Suggestion, and the
	// (cluster, pattern) slot keeps the first row's ID.
	rescored := &model.Suggestion{
		ClusterID: clusterID, PatternID: patternID,
		Overall: 0.9, ExpiresAt: time.Now().Add(72 * time.Hour),
	}
	require.NoError(t, repo.Upsert(rescored))
	pendingAfter, err := repo.Pending()
	require.NoError(t, err)
	assert.Len(t, pendingAfter, len(pending))

	updated, err := repo.GetByID(s.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, updated.Overall, 1e-9)

	require.NoError(t, repo.Resolve(s.ID, model.SuggestionApproved, "operator1", nil))

	_, err = GetSuggestionRepository().GetByID(s.ID)
	require.NoError(t, err)

	// Resolving an already-resolved suggestion is an error, not silently ignored.
	err = repo.Resolve(s.ID, model.SuggestionRejected, "operator1", nil)
	assert.Error(t, err)
}

func TestSuggestionRepositoryExpirePending(t *testing.T) {
	clusterID, patternID := seedSuggestionFixtures(t, []int64{40, 41}, "chilled-water-plant")
	repo := GetSuggestionRepository()

	s := &model.Suggestion{
		ClusterID: clusterID, PatternID: patternID,
		Overall: 0.5, ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.Upsert(s))

	expired, err := repo.ExpirePending(time.Now())
	require.NoError(t, err)
	assert.Contains(t, expired, s.ID)

	fetched, err := repo.GetByID(s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionExpired, fetched.State)
}
