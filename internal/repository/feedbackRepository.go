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

// FeedbackRepository owns the append-only review audit trail.
type FeedbackRepository struct {
	db *DBConnection
}

var (
	feedbackRepoOnce     sync.Once
	feedbackRepoInstance *FeedbackRepository
)

// GetFeedbackRepository returns the process-wide feedback repository
// singleton.
func GetFeedbackRepository() *FeedbackRepository {
	feedbackRepoOnce.Do(func() {
		feedbackRepoInstance = &FeedbackRepository{db: GetConnection()}
	})
	return feedbackRepoInstance
}

// Create appends one feedback entry. Entries are never updated or
// deleted outside of the maintenance purge (C11), which archives before
// deleting rather than mutating in place.
func (r *FeedbackRepository) Create(f *model.FeedbackEntry) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	_, err := r.db.DB.Exec(`
		INSERT INTO feedback_entry (id, suggestion_id, action, actor, confidence_before, confidence_after, rejection_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.SuggestionID, f.Action, f.Actor, f.ConfidenceBefore, f.ConfidenceAfter, f.RejectionReason, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("REPOSITORY/FEEDBACK > create for suggestion %s: %w", f.SuggestionID, err)
	}
	return nil
}

// ForSuggestion returns the feedback history for one suggestion, oldest
// first.
func (r *FeedbackRepository) ForSuggestion(suggestionID string) ([]*model.FeedbackEntry, error) {
	var entries []*model.FeedbackEntry
	if err := r.db.DB.Select(&entries, `SELECT * FROM feedback_entry WHERE suggestion_id = ? ORDER BY created_at`, suggestionID); err != nil {
		return nil, fmt.Errorf("REPOSITORY/FEEDBACK > for suggestion %s: %w", suggestionID, err)
	}
	return entries, nil
}

// PurgeBefore deletes feedback entries older than cutoff, returning the
// deleted rows so the caller can cold-archive them first.
func (r *FeedbackRepository) PurgeBefore(cutoff time.Time) ([]*model.FeedbackEntry, error) {
	var rows []*model.FeedbackEntry
	if err := r.db.DB.Select(&rows, `SELECT * FROM feedback_entry WHERE created_at < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("REPOSITORY/FEEDBACK > find purge candidates: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if _, err := r.db.DB.Exec(`DELETE FROM feedback_entry WHERE created_at < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("REPOSITORY/FEEDBACK > purge: %w", err)
	}
	return rows, nil
}
