// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/pkg/log"
)

// TagRepository owns the tag catalog: one row per addressable
// measurement stream, keyed by both a stable UUID and the compact
// monotonic SequenceID the time-series gateway indexes on.
type TagRepository struct {
	db *DBConnection
}

var (
	tagRepoOnce     sync.Once
	tagRepoInstance *TagRepository
)

// GetTagRepository returns the process-wide tag repository singleton.
func GetTagRepository() *TagRepository {
	tagRepoOnce.Do(func() {
		tagRepoInstance = &TagRepository{db: GetConnection()}
	})
	return tagRepoInstance
}

// Create inserts a new tag, assigning it a UUID and the next SequenceID
// (one past the current maximum; SequenceIDs are never reused, even
// across deletes, so time-series data keyed by an old ID can never be
// silently reattributed to a different tag).
func (r *TagRepository) Create(t *model.Tag) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	return r.db.DB.Get(&t.SequenceID, `
		INSERT INTO tag (id, sequence_id, name, source_id, address, description, unit, value_type, enabled, typical_interval_seconds, created_at)
		VALUES (?, COALESCE((SELECT MAX(sequence_id) + 1 FROM tag), 1), ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING sequence_id`,
		t.ID, t.Name, t.SourceID, t.Address, t.Description, t.Unit, t.ValueType, t.Enabled, t.TypicalIntervalSec, t.CreatedAt)
}

// GetByID fetches a tag by its UUID.
func (r *TagRepository) GetByID(id string) (*model.Tag, error) {
	var t model.Tag
	if err := r.db.DB.Get(&t, `SELECT * FROM tag WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("REPOSITORY/TAG > get %s: %w", id, err)
	}
	return &t, nil
}

// GetBySequenceID fetches a tag by its time-series SequenceID, the hot
// path used when the correlation engine and pattern matcher resolve
// cluster members back to catalog metadata.
func (r *TagRepository) GetBySequenceID(sequenceID int64) (*model.Tag, error) {
	var t model.Tag
	if err := r.db.DB.Get(&t, `SELECT * FROM tag WHERE sequence_id = ?`, sequenceID); err != nil {
		return nil, fmt.Errorf("REPOSITORY/TAG > get sequence %d: %w", sequenceID, err)
	}
	return &t, nil
}

// ListEnabled returns every enabled tag, optionally restricted to one
// source, ordered by SequenceID for deterministic iteration.
func (r *TagRepository) ListEnabled(sourceID string) ([]*model.Tag, error) {
	q := sb.Select("*").From("tag").Where(sq.Eq{"enabled": true}).OrderBy("sequence_id")
	if sourceID != "" {
		q = q.Where(sq.Eq{"source_id": sourceID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var tags []*model.Tag
	if err := r.db.DB.Select(&tags, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("REPOSITORY/TAG > list enabled: %w", err)
	}
	return tags, nil
}

// SetEnabled flips a tag's Enabled flag, used by the operator surface
// to pull a misbehaving source out of the ingestion poll set.
func (r *TagRepository) SetEnabled(id string, enabled bool) error {
	res, err := r.db.DB.Exec(`UPDATE tag SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("REPOSITORY/TAG > set enabled %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		log.Warnf("REPOSITORY/TAG > set enabled: no such tag %s", id)
	}
	return nil
}
