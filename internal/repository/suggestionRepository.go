// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pattern-flywheel/historian/internal/model"
)

// SuggestionRepository owns the human-review queue: proposed (cluster,
// pattern) matches awaiting approve/reject/defer.
type SuggestionRepository struct {
	db *DBConnection
}

var (
	suggestionRepoOnce     sync.Once
	suggestionRepoInstance *SuggestionRepository
)

// GetSuggestionRepository returns the process-wide suggestion
// repository singleton.
func GetSuggestionRepository() *SuggestionRepository {
	suggestionRepoOnce.Do(func() {
		suggestionRepoInstance = &SuggestionRepository{db: GetConnection()}
	})
	return suggestionRepoInstance
}

// Upsert inserts a new suggestion for a (cluster, pattern) pair, or
// refreshes the scores of an existing pending one — the matcher (C10)
// re-scores a cluster every cycle and must not spawn a duplicate row
// for a pair already awaiting review.
func (r *SuggestionRepository) Upsert(s *model.Suggestion) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.State == "" {
		s.State = model.SuggestionPending
	}

	_, err := r.db.DB.Exec(`
		INSERT INTO suggestion (id, cluster_id, pattern_id, naming_score, correlation_score, range_score, rate_score, overall, explanation, explanation_json, state, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cluster_id, pattern_id) DO UPDATE SET
			naming_score = excluded.naming_score,
			correlation_score = excluded.correlation_score,
			range_score = excluded.range_score,
			rate_score = excluded.rate_score,
			overall = excluded.overall,
			explanation = excluded.explanation,
			explanation_json = excluded.explanation_json,
			expires_at = excluded.expires_at
		WHERE suggestion.state = 'pending'`,
		s.ID, s.ClusterID, s.PatternID, s.NamingScore, s.CorrelationScore, s.RangeScore, s.RateScore,
		s.Overall, s.Explanation, s.ExplanationJSON, s.State, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("REPOSITORY/SUGGESTION > upsert cluster=%s pattern=%s: %w", s.ClusterID, s.PatternID, err)
	}
	return nil
}

// HasRecentPending reports whether a cluster already has a pending
// suggestion created since since, the guard the behavioral matcher
// (C10) uses to skip clusters it has already proposed a match for
// within the last hour.
func (r *SuggestionRepository) HasRecentPending(clusterID string, since time.Time) (bool, error) {
	var count int
	if err := r.db.DB.Get(&count, `SELECT COUNT(*) FROM suggestion WHERE cluster_id = ? AND state = 'pending' AND created_at >= ?`, clusterID, since); err != nil {
		return false, fmt.Errorf("REPOSITORY/SUGGESTION > has recent pending %s: %w", clusterID, err)
	}
	return count > 0, nil
}

// Pending returns every suggestion awaiting review, highest score first.
func (r *SuggestionRepository) Pending() ([]*model.Suggestion, error) {
	var suggestions []*model.Suggestion
	if err := r.db.DB.Select(&suggestions, `SELECT * FROM suggestion WHERE state = 'pending' ORDER BY overall DESC`); err != nil {
		return nil, fmt.Errorf("REPOSITORY/SUGGESTION > pending: %w", err)
	}
	return suggestions, nil
}

// GetByID fetches one suggestion by ID.
func (r *SuggestionRepository) GetByID(id string) (*model.Suggestion, error) {
	var s model.Suggestion
	if err := r.db.DB.Get(&s, `SELECT * FROM suggestion WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("REPOSITORY/SUGGESTION > get %s: %w", id, err)
	}
	return &s, nil
}

// Resolve transitions a suggestion out of the pending state, recording
// who decided and (for rejections) why.
func (r *SuggestionRepository) Resolve(id string, state model.SuggestionState, reviewer string, rejectionReason *string) error {
	now := time.Now()
	res, err := r.db.DB.Exec(`
		UPDATE suggestion
		SET state = ?, reviewer = ?, reviewed_at = ?, rejection_reason = ?
		WHERE id = ? AND state = 'pending'`,
		state, reviewer, now, rejectionReason, id)
	if err != nil {
		return fmt.Errorf("REPOSITORY/SUGGESTION > resolve %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("REPOSITORY/SUGGESTION > resolve %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("REPOSITORY/SUGGESTION > %s is not pending (already reviewed or missing)", id)
	}
	return nil
}

// ExpirePending expires every pending suggestion whose ExpiresAt has
// passed, returning the expired IDs so the caller can emit feedback
// entries and a patterns.updated event for each.
func (r *SuggestionRepository) ExpirePending(asOf time.Time) ([]string, error) {
	var ids []string
	if err := r.db.DB.Select(&ids, `SELECT id FROM suggestion WHERE state = 'pending' AND expires_at < ?`, asOf); err != nil {
		return nil, fmt.Errorf("REPOSITORY/SUGGESTION > find expired: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := r.db.DB.Exec(`UPDATE suggestion SET state = 'expired', reviewed_at = ? WHERE state = 'pending' AND expires_at < ?`, asOf, asOf); err != nil {
		return nil, fmt.Errorf("REPOSITORY/SUGGESTION > expire: %w", err)
	}
	return ids, nil
}

// PurgeResolvedBefore deletes resolved (non-pending) suggestions older
// than cutoff, returning the deleted rows so the caller can archive them
// first if cold-archiving is configured.
func (r *SuggestionRepository) PurgeResolvedBefore(cutoff time.Time) ([]*model.Suggestion, error) {
	var rows []*model.Suggestion
	if err := r.db.DB.Select(&rows, `SELECT * FROM suggestion WHERE state != 'pending' AND created_at < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("REPOSITORY/SUGGESTION > find purge candidates: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if _, err := r.db.DB.Exec(`DELETE FROM suggestion WHERE state != 'pending' AND created_at < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("REPOSITORY/SUGGESTION > purge: %w", err)
	}
	return rows, nil
}
