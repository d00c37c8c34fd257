// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package learning

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/internal/repository"
)

var tagNameSeq int64

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "historian-learning-test")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	repository.Connect(filepath.Join(dir, "test.db"))
	os.Exit(m.Run())
}

// seedSuggestion builds one tag, one pattern, one 3-member cluster, and
// a pending suggestion linking them, returning the suggestion ID and
// the pattern ID.
func seedSuggestion(t *testing.T, confidence float64) (suggestionID, patternID string) {
	t.Helper()

	tagRepo := repository.GetTagRepository()
	var seqs []int64
	for i := 0; i < 3; i++ {
		n := atomic.AddInt64(&tagNameSeq, 1)
		tag := &model.Tag{Name: fmt.Sprintf("P101_FLOW_%d_%d", n, i), SourceID: "src1", Enabled: true}
		require.NoError(t, tagRepo.Create(tag))
		seqs = append(seqs, tag.SequenceID)
	}

	patternName := fmt.Sprintf("centrifugal-pump-%d", atomic.AddInt64(&tagNameSeq, 1))
	require.NoError(t, repository.GetPatternRepository().Upsert(repository.PatternImportEntry{
		Name:       patternName,
		Category:   "rotating",
		Confidence: confidence,
		Roles:      []repository.PatternImportRoleEntry{{Name: "flow", Weight: 1}},
	}))
	patterns, err := repository.GetPatternRepository().Active()
	require.NoError(t, err)
	for _, p := range patterns {
		if p.Name == patternName {
			patternID = p.ID
		}
	}
	require.NotEmpty(t, patternID)

	cluster := &model.Cluster{MemberSequenceIDs: seqs, Cohesion: 0.82}
	require.NoError(t, repository.GetClusterRepository().Upsert(cluster))

	s := &model.Suggestion{
		ClusterID:   cluster.ID,
		PatternID:   patternID,
		Overall:     0.7,
		Explanation: "test suggestion",
		ExpiresAt:   time.Now().Add(30 * 24 * time.Hour),
	}
	require.NoError(t, repository.GetSuggestionRepository().Upsert(s))
	return s.ID, patternID
}

func TestApproveBoostsConfidenceAndBindsEveryTag(t *testing.T) {
	id, patternID := seedSuggestion(t, 0.70)

	require.NoError(t, Approve(Config{}, id, "reviewer1"))

	pattern, err := repository.GetPatternRepository().GetByID(patternID)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, pattern.Confidence, 1e-9)
	assert.Equal(t, int64(1), pattern.ExampleCount)

	bindings, err := repository.GetBindingRepository().ForPattern(patternID)
	require.NoError(t, err)
	assert.Len(t, bindings, 3)

	entries, err := repository.GetFeedbackRepository().ForSuggestion(id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.FeedbackApprove, entries[0].Action)
	assert.InDelta(t, 0.70, *entries[0].ConfidenceBefore, 1e-9)
	assert.InDelta(t, 0.75, *entries[0].ConfidenceAfter, 1e-9)
}

func TestApproveTwiceStaysIdempotentOnBindingsAndFeedback(t *testing.T) {
	id, patternID := seedSuggestion(t, 0.70)

	require.NoError(t, Approve(Config{}, id, "reviewer1"))
	firstPattern, err := repository.GetPatternRepository().GetByID(patternID)
	require.NoError(t, err)

	// Resolve() only transitions a pending suggestion; re-approving an
	// already-approved suggestion must fail rather than double-apply
	// the confidence boost.
	err = Approve(Config{}, id, "reviewer1")
	assert.Error(t, err)

	bindings, err := repository.GetBindingRepository().ForPattern(patternID)
	require.NoError(t, err)
	assert.Len(t, bindings, 3)

	entries, err := repository.GetFeedbackRepository().ForSuggestion(id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.InDelta(t, firstPattern.Confidence, *entries[0].ConfidenceAfter, 1e-9)

	secondPattern, err := repository.GetPatternRepository().GetByID(patternID)
	require.NoError(t, err)
	assert.InDelta(t, firstPattern.Confidence, secondPattern.Confidence, 1e-9)
}

func TestRejectPenalizesAndFloorsAtThirtyPercent(t *testing.T) {
	id, patternID := seedSuggestion(t, 0.50)

	require.NoError(t, Reject(Config{}, id, "reviewer1", "false positive"))
	pattern, err := repository.GetPatternRepository().GetByID(patternID)
	require.NoError(t, err)
	assert.InDelta(t, 0.47, pattern.Confidence, 1e-9)

	id2, patternID2 := seedSuggestionForPattern(t, patternID)
	require.NoError(t, Reject(Config{}, id2, "reviewer1", "still wrong"))
	pattern, err = repository.GetPatternRepository().GetByID(patternID2)
	require.NoError(t, err)
	assert.InDelta(t, 0.44, pattern.Confidence, 1e-9)

	// Drive it well below the floor with further rejections; it must
	// never go under 0.30.
	for i := 0; i < 20; i++ {
		sid, _ := seedSuggestionForPattern(t, patternID)
		require.NoError(t, Reject(Config{}, sid, "reviewer1", "no"))
	}
	pattern, err = repository.GetPatternRepository().GetByID(patternID2)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pattern.Confidence, 0.30-1e-9)
}

// seedSuggestionForPattern creates a fresh cluster/suggestion pair
// against an already-existing pattern, so repeated rejections can be
// applied to the same pattern across several suggestions.
func seedSuggestionForPattern(t *testing.T, patternID string) (suggestionID, pid string) {
	t.Helper()
	tagRepo := repository.GetTagRepository()
	var seqs []int64
	for i := 0; i < 3; i++ {
		n := atomic.AddInt64(&tagNameSeq, 1)
		tag := &model.Tag{Name: fmt.Sprintf("T_%d_%d", n, i), SourceID: "src1", Enabled: true}
		require.NoError(t, tagRepo.Create(tag))
		seqs = append(seqs, tag.SequenceID)
	}
	cluster := &model.Cluster{MemberSequenceIDs: seqs, Cohesion: 0.6}
	require.NoError(t, repository.GetClusterRepository().Upsert(cluster))

	s := &model.Suggestion{
		ClusterID:   cluster.ID,
		PatternID:   patternID,
		Overall:     0.6,
		Explanation: "test suggestion",
		ExpiresAt:   time.Now().Add(30 * 24 * time.Hour),
	}
	require.NoError(t, repository.GetSuggestionRepository().Upsert(s))
	return s.ID, patternID
}

func TestDeferRecordsFeedbackWithoutTouchingConfidence(t *testing.T) {
	id, patternID := seedSuggestion(t, 0.65)
	require.NoError(t, Defer(id, "reviewer2"))

	pattern, err := repository.GetPatternRepository().GetByID(patternID)
	require.NoError(t, err)
	assert.InDelta(t, 0.65, pattern.Confidence, 1e-9)

	entries, err := repository.GetFeedbackRepository().ForSuggestion(id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.FeedbackDefer, entries[0].Action)
	assert.Nil(t, entries[0].ConfidenceBefore)
}

func TestApplyDecayIsLinearInDaysSinceLastMatch(t *testing.T) {
	require.NoError(t, repository.GetPatternRepository().Upsert(repository.PatternImportEntry{
		Name: "decay-target", Confidence: 0.80,
	}))
	patterns, err := repository.GetPatternRepository().Active()
	require.NoError(t, err)
	var id string
	for _, p := range patterns {
		if p.Name == "decay-target" {
			id = p.ID
		}
	}
	require.NotEmpty(t, id)

	tenDaysAgo := time.Now().Add(-10 * 24 * time.Hour)
	_, err = repository.GetConnection().DB.Exec(`UPDATE pattern SET last_matched_at = ? WHERE id = ?`, tenDaysAgo, id)
	require.NoError(t, err)

	require.NoError(t, ApplyDecay(Config{}))

	pattern, err := repository.GetPatternRepository().GetByID(id)
	require.NoError(t, err)
	expected := 0.80 * (1 - 0.005*10)
	assert.InDelta(t, expected, pattern.Confidence, 0.01)
}

func TestApplyDecayNeverCrossesFloor(t *testing.T) {
	require.NoError(t, repository.GetPatternRepository().Upsert(repository.PatternImportEntry{
		Name: "decay-floor-target", Confidence: 0.31,
	}))
	patterns, err := repository.GetPatternRepository().Active()
	require.NoError(t, err)
	var id string
	for _, p := range patterns {
		if p.Name == "decay-floor-target" {
			id = p.ID
		}
	}
	require.NotEmpty(t, id)

	ancient := time.Now().Add(-900 * 24 * time.Hour)
	_, err = repository.GetConnection().DB.Exec(`UPDATE pattern SET last_matched_at = ? WHERE id = ?`, ancient, id)
	require.NoError(t, err)

	require.NoError(t, ApplyDecay(Config{}))

	pattern, err := repository.GetPatternRepository().GetByID(id)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pattern.Confidence, 0.30-1e-9)
}

func TestExpireSuggestionsTransitionsPastDueOnly(t *testing.T) {
	id, patternID := seedSuggestion(t, 0.5)
	_, err := repository.GetConnection().DB.Exec(`UPDATE suggestion SET expires_at = ? WHERE id = ?`, time.Now().Add(-time.Hour), id)
	require.NoError(t, err)

	stillFresh, _ := seedSuggestionForPattern(t, patternID)

	count, err := ExpireSuggestions()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)

	s, err := repository.GetSuggestionRepository().GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionExpired, s.State)

	fresh, err := repository.GetSuggestionRepository().GetByID(stillFresh)
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionPending, fresh.State)
}
