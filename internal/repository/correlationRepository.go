// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"fmt"
	"sync"
	"time"

	"github.com/pattern-flywheel/historian/internal/model"
)

// CorrelationRepository owns the persisted correlation graph edges the
// cluster detector (C9) reads to build its weighted graph. The fast
// per-pair cache (internal/cache) is a TTL'd read accelerator in front
// of this table, not a replacement for it.
type CorrelationRepository struct {
	db *DBConnection
}

var (
	correlationRepoOnce     sync.Once
	correlationRepoInstance *CorrelationRepository
)

// GetCorrelationRepository returns the process-wide correlation
// repository singleton.
func GetCorrelationRepository() *CorrelationRepository {
	correlationRepoOnce.Do(func() {
		correlationRepoInstance = &CorrelationRepository{db: GetConnection()}
	})
	return correlationRepoInstance
}

// Upsert records a tag pair's correlation, canonicalizing key order so
// (a,b) and (b,a) never produce two rows.
func (r *CorrelationRepository) Upsert(e *model.CorrelationEdge) error {
	a, b := e.SequenceIDA, e.SequenceIDB
	if a > b {
		a, b = b, a
	}
	_, err := r.db.DB.Exec(`
		INSERT INTO correlation_edge (sequence_id_a, sequence_id_b, r, sample_count, window_start, window_end, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sequence_id_a, sequence_id_b) DO UPDATE SET
			r             = excluded.r,
			sample_count  = excluded.sample_count,
			window_start  = excluded.window_start,
			window_end    = excluded.window_end,
			computed_at   = excluded.computed_at`,
		a, b, e.R, e.SampleCount, e.WindowStart, e.WindowEnd, e.ComputedAt)
	if err != nil {
		return fmt.Errorf("REPOSITORY/CORRELATION > upsert (%d,%d): %w", a, b, err)
	}
	return nil
}

// RecentEdges returns every edge computed at or after cutoff, the
// input to the cluster detector's graph build.
func (r *CorrelationRepository) RecentEdges(cutoff time.Time) ([]*model.CorrelationEdge, error) {
	var edges []*model.CorrelationEdge
	if err := r.db.DB.Select(&edges, `SELECT * FROM correlation_edge WHERE computed_at >= ?`, cutoff); err != nil {
		return nil, fmt.Errorf("REPOSITORY/CORRELATION > recent edges: %w", err)
	}
	return edges, nil
}

// PurgeOlderThan deletes edges last computed before cutoff, part of
// the daily maintenance job (C11), returning the deleted rows so the
// caller can archive them first.
func (r *CorrelationRepository) PurgeOlderThan(cutoff time.Time) ([]*model.CorrelationEdge, error) {
	var rows []*model.CorrelationEdge
	if err := r.db.DB.Select(&rows, `SELECT * FROM correlation_edge WHERE computed_at < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("REPOSITORY/CORRELATION > find purge candidates: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if _, err := r.db.DB.Exec(`DELETE FROM correlation_edge WHERE computed_at < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("REPOSITORY/CORRELATION > purge: %w", err)
	}
	return rows, nil
}
