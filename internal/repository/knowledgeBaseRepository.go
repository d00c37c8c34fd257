// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"fmt"
	"sync"

	"github.com/pattern-flywheel/historian/internal/model"
)

// KnowledgeBaseRepository owns the four reference tables the proactive
// matcher (C10) consults: abbreviations, unit-to-measurement-type
// mappings, naming conventions, and the measurement-type hierarchy.
// These change rarely (UpsertAbbreviation and UpsertUnitMapping are the
// only writers here) and are read far more often than written, so every getter loads its table in full rather than
// querying per-token.
type KnowledgeBaseRepository struct {
	db *DBConnection
}

var (
	kbRepoOnce     sync.Once
	kbRepoInstance *KnowledgeBaseRepository
)

// GetKnowledgeBaseRepository returns the process-wide knowledge-base
// repository singleton.
func GetKnowledgeBaseRepository() *KnowledgeBaseRepository {
	kbRepoOnce.Do(func() {
		kbRepoInstance = &KnowledgeBaseRepository{db: GetConnection()}
	})
	return kbRepoInstance
}

// Abbreviations returns the full abbreviation dictionary.
func (r *KnowledgeBaseRepository) Abbreviations() ([]model.Abbreviation, error) {
	var rows []model.Abbreviation
	if err := r.db.DB.Select(&rows, `SELECT * FROM kb_abbreviation ORDER BY priority DESC`); err != nil {
		return nil, fmt.Errorf("REPOSITORY/KNOWLEDGEBASE > abbreviations: %w", err)
	}
	return rows, nil
}

// UnitMappings returns the full unit-symbol to measurement-type table.
func (r *KnowledgeBaseRepository) UnitMappings() ([]model.UnitMapping, error) {
	var rows []model.UnitMapping
	if err := r.db.DB.Select(&rows, `SELECT * FROM kb_unit_mapping`); err != nil {
		return nil, fmt.Errorf("REPOSITORY/KNOWLEDGEBASE > unit mappings: %w", err)
	}
	return rows, nil
}

// NamingConventions returns the full naming-convention regex table.
func (r *KnowledgeBaseRepository) NamingConventions() ([]model.NamingConvention, error) {
	var rows []model.NamingConvention
	if err := r.db.DB.Select(&rows, `SELECT * FROM kb_naming_convention`); err != nil {
		return nil, fmt.Errorf("REPOSITORY/KNOWLEDGEBASE > naming conventions: %w", err)
	}
	return rows, nil
}

// MeasurementTypes returns the full measurement-type hierarchy.
func (r *KnowledgeBaseRepository) MeasurementTypes() ([]model.MeasurementType, error) {
	var rows []model.MeasurementType
	if err := r.db.DB.Select(&rows, `SELECT * FROM kb_measurement_type`); err != nil {
		return nil, fmt.Errorf("REPOSITORY/KNOWLEDGEBASE > measurement types: %w", err)
	}
	return rows, nil
}

// UpsertAbbreviation adds or replaces one abbreviation entry.
func (r *KnowledgeBaseRepository) UpsertAbbreviation(a model.Abbreviation) error {
	_, err := r.db.DB.Exec(`
		INSERT INTO kb_abbreviation (token, context, expansion, priority, measurement_type)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(token, context) DO UPDATE SET
			expansion = excluded.expansion,
			priority = excluded.priority,
			measurement_type = excluded.measurement_type`,
		a.Token, a.Context, a.Expansion, a.Priority, a.MeasurementType)
	if err != nil {
		return fmt.Errorf("REPOSITORY/KNOWLEDGEBASE > upsert abbreviation %s: %w", a.Token, err)
	}
	return nil
}

// UpsertUnitMapping adds or replaces one unit mapping entry.
func (r *KnowledgeBaseRepository) UpsertUnitMapping(u model.UnitMapping) error {
	_, err := r.db.DB.Exec(`
		INSERT INTO kb_unit_mapping (unit_symbol, measurement_type)
		VALUES (?, ?)
		ON CONFLICT(unit_symbol) DO UPDATE SET measurement_type = excluded.measurement_type`,
		u.UnitSymbol, u.MeasurementType)
	if err != nil {
		return fmt.Errorf("REPOSITORY/KNOWLEDGEBASE > upsert unit mapping %s: %w", u.UnitSymbol, err)
	}
	return nil
}
