// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pattern-flywheel/historian/internal/model"
)

// PatternRepository owns the pattern library: the catalog of equipment
// templates (patterns) and the roles each one expects a cluster member
// to fill.
type PatternRepository struct {
	db *DBConnection
}

var (
	patternRepoOnce     sync.Once
	patternRepoInstance *PatternRepository
)

// GetPatternRepository returns the process-wide pattern repository
// singleton.
func GetPatternRepository() *PatternRepository {
	patternRepoOnce.Do(func() {
		patternRepoInstance = &PatternRepository{db: GetConnection()}
	})
	return patternRepoInstance
}

// Active returns every active pattern with its roles attached, the set
// the matcher (C10) scores candidate clusters against. Both the
// is_active flag and the confidence >= 0.30 floor gate a pattern's
// eligibility here, not just one or the other.
func (r *PatternRepository) Active() ([]*model.Pattern, error) {
	var patterns []*model.Pattern
	if err := r.db.DB.Select(&patterns, `SELECT * FROM pattern WHERE active = 1 AND confidence >= 0.30 ORDER BY name`); err != nil {
		return nil, fmt.Errorf("REPOSITORY/PATTERN > active: %w", err)
	}
	for _, p := range patterns {
		roles, err := r.rolesFor(p.ID)
		if err != nil {
			return nil, err
		}
		p.Roles = roles
	}
	return patterns, nil
}

// GetByID fetches one pattern with its roles attached.
func (r *PatternRepository) GetByID(id string) (*model.Pattern, error) {
	var p model.Pattern
	if err := r.db.DB.Get(&p, `SELECT * FROM pattern WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("REPOSITORY/PATTERN > get %s: %w", id, err)
	}
	roles, err := r.rolesFor(p.ID)
	if err != nil {
		return nil, err
	}
	p.Roles = roles
	return &p, nil
}

func (r *PatternRepository) rolesFor(patternID string) ([]model.PatternRole, error) {
	var roles []model.PatternRole
	if err := r.db.DB.Select(&roles, `SELECT * FROM pattern_role WHERE pattern_id = ? ORDER BY position`, patternID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("REPOSITORY/PATTERN > roles for %s: %w", patternID, err)
	}
	return roles, nil
}

// UpdateConfidence persists a pattern's new confidence and counters in
// one write; called from the learning loop (C11) after every review
// decision.
func (r *PatternRepository) UpdateConfidence(id string, confidence float64, exampleDelta, rejectionDelta int64, matchedAt *time.Time) error {
	_, err := r.db.DB.Exec(`
		UPDATE pattern
		SET confidence = ?, example_count = example_count + ?, rejection_count = rejection_count + ?,
		    last_matched_at = COALESCE(?, last_matched_at)
		WHERE id = ?`,
		confidence, exampleDelta, rejectionDelta, matchedAt, id)
	if err != nil {
		return fmt.Errorf("REPOSITORY/PATTERN > update confidence %s: %w", id, err)
	}
	return nil
}

// ApplyDecay reduces confidence by the daily decay formula, floored at
// minConfidence, in a single SQL-level update. Only active patterns
// above the floor that have gone without a match for at least a full
// day decay; a pattern matched within the last 24h is left alone.
func (r *PatternRepository) ApplyDecay(decayPerDay, minConfidence float64) error {
	_, err := r.db.DB.Exec(`
		UPDATE pattern
		SET confidence = MAX(?, confidence * (1 - ? * (julianday('now') - julianday(COALESCE(last_matched_at, created_at)))))
		WHERE active = 1
		  AND confidence > ?
		  AND julianday('now') - julianday(COALESCE(last_matched_at, created_at)) >= 1.0`,
		minConfidence, decayPerDay, minConfidence)
	if err != nil {
		return fmt.Errorf("REPOSITORY/PATTERN > apply decay: %w", err)
	}
	return nil
}

// PatternImportDoc is the shape of a JSON pattern-library import
// document: a flat list of patterns with their roles inlined, validated
// against patternLibrarySchema before any row is written.
type PatternImportDoc struct {
	Patterns []PatternImportEntry `json:"patterns"`
}

// PatternImportEntry is one pattern within a PatternImportDoc.
type PatternImportEntry struct {
	Name        string                   `json:"name"`
	Category    string                   `json:"category"`
	Description string                   `json:"description"`
	Confidence  float64                  `json:"confidence"`
	Roles       []PatternImportRoleEntry `json:"roles"`
}

// PatternImportRoleEntry is one role within a PatternImportEntry.
type PatternImportRoleEntry struct {
	Name               string   `json:"name"`
	Required           bool     `json:"required"`
	Weight             float64  `json:"weight"`
	NamingPatterns     []string `json:"namingPatterns"`
	ExpectedUnit       string   `json:"expectedUnit"`
	HasRange           bool     `json:"hasRange"`
	ExpectedMin        float64  `json:"expectedMin"`
	ExpectedMax        float64  `json:"expectedMax"`
	HasInterval        bool     `json:"hasInterval"`
	TypicalIntervalSec float64  `json:"typicalIntervalSeconds"`
}

// Upsert bulk-inserts or updates a pattern and replaces its role set in
// one transaction, the unit of work LoadPatternLibrary applies per
// catalog entry.
func (r *PatternRepository) Upsert(entry PatternImportEntry) (err error) {
	tx, err := r.db.DB.Beginx()
	if err != nil {
		return fmt.Errorf("REPOSITORY/PATTERN > upsert begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var id string
	now := time.Now()
	err = tx.Get(&id, `
		INSERT INTO pattern (id, name, category, description, confidence, active, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(name) DO UPDATE SET
			category = excluded.category,
			description = excluded.description
		RETURNING id`,
		uuid.NewString(), entry.Name, entry.Category, entry.Description, entry.Confidence, now)
	if err != nil {
		return fmt.Errorf("REPOSITORY/PATTERN > upsert %s: %w", entry.Name, err)
	}

	if _, err = tx.Exec(`DELETE FROM pattern_role WHERE pattern_id = ?`, id); err != nil {
		return fmt.Errorf("REPOSITORY/PATTERN > clear roles for %s: %w", entry.Name, err)
	}

	for i, role := range entry.Roles {
		namingJSON, marshalErr := json.Marshal(role.NamingPatterns)
		if marshalErr != nil {
			err = marshalErr
			return fmt.Errorf("REPOSITORY/PATTERN > marshal naming patterns for %s.%s: %w", entry.Name, role.Name, err)
		}
		if _, err = tx.Exec(`
			INSERT INTO pattern_role (id, pattern_id, name, required, weight, naming_patterns, expected_unit, has_range, expected_min, expected_max, has_interval, typical_interval_seconds, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), id, role.Name, role.Required, role.Weight, string(namingJSON),
			role.ExpectedUnit, role.HasRange, role.ExpectedMin, role.ExpectedMax, role.HasInterval, role.TypicalIntervalSec, i); err != nil {
			return fmt.Errorf("REPOSITORY/PATTERN > insert role %s.%s: %w", entry.Name, role.Name, err)
		}
	}

	return tx.Commit()
}
