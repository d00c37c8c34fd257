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

// BindingRepository owns durable tag-to-pattern-role assignments, the
// output of an approved suggestion.
type BindingRepository struct {
	db *DBConnection
}

var (
	bindingRepoOnce     sync.Once
	bindingRepoInstance *BindingRepository
)

// GetBindingRepository returns the process-wide binding repository
// singleton.
func GetBindingRepository() *BindingRepository {
	bindingRepoOnce.Do(func() {
		bindingRepoInstance = &BindingRepository{db: GetConnection()}
	})
	return bindingRepoInstance
}

// Create records a binding, ignoring a duplicate (tag, pattern) pair
// rather than erroring: approving the same suggestion twice (a retried
// operator command, a redelivered queue message) must be a no-op.
func (r *BindingRepository) Create(b *model.Binding) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.BoundAt.IsZero() {
		b.BoundAt = time.Now()
	}

	_, err := r.db.DB.Exec(`
		INSERT INTO binding (id, tag_id, pattern_id, role_name, reviewer, confidence_at_binding, bound_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tag_id, pattern_id) DO NOTHING`,
		b.ID, b.TagID, b.PatternID, b.RoleName, b.Reviewer, b.ConfidenceAtBinding, b.BoundAt)
	if err != nil {
		return fmt.Errorf("REPOSITORY/BINDING > create tag=%s pattern=%s: %w", b.TagID, b.PatternID, err)
	}
	return nil
}

// ForPattern returns every binding currently held against a pattern.
func (r *BindingRepository) ForPattern(patternID string) ([]*model.Binding, error) {
	var bindings []*model.Binding
	if err := r.db.DB.Select(&bindings, `SELECT * FROM binding WHERE pattern_id = ? ORDER BY bound_at`, patternID); err != nil {
		return nil, fmt.Errorf("REPOSITORY/BINDING > for pattern %s: %w", patternID, err)
	}
	return bindings, nil
}

// ForTag returns every binding currently held for a tag (usually zero
// or one, but a tag can in principle satisfy roles in more than one
// pattern).
func (r *BindingRepository) ForTag(tagID string) ([]*model.Binding, error) {
	var bindings []*model.Binding
	if err := r.db.DB.Select(&bindings, `SELECT * FROM binding WHERE tag_id = ? ORDER BY bound_at`, tagID); err != nil {
		return nil, fmt.Errorf("REPOSITORY/BINDING > for tag %s: %w", tagID, err)
	}
	return bindings, nil
}

// Delete removes a binding, the "unbind" operator action.
func (r *BindingRepository) Delete(id string) error {
	if _, err := r.db.DB.Exec(`DELETE FROM binding WHERE id = ?`, id); err != nil {
		return fmt.Errorf("REPOSITORY/BINDING > delete %s: %w", id, err)
	}
	return nil
}
