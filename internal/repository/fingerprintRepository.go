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

// FingerprintRepository owns the behavioral aggregator's (C7) output
// table: one row per tag, overwritten wholesale on every recompute.
type FingerprintRepository struct {
	db *DBConnection
}

var (
	fingerprintRepoOnce     sync.Once
	fingerprintRepoInstance *FingerprintRepository
)

// GetFingerprintRepository returns the process-wide fingerprint
// repository singleton.
func GetFingerprintRepository() *FingerprintRepository {
	fingerprintRepoOnce.Do(func() {
		fingerprintRepoInstance = &FingerprintRepository{db: GetConnection()}
	})
	return fingerprintRepoInstance
}

// Upsert overwrites a tag's fingerprint row in place.
func (r *FingerprintRepository) Upsert(f *model.Fingerprint) error {
	_, err := r.db.DB.Exec(`
		INSERT INTO fingerprint (sequence_id, sample_count, mean, stddev, min, max, update_rate, window_start, window_end, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sequence_id) DO UPDATE SET
			sample_count = excluded.sample_count,
			mean         = excluded.mean,
			stddev       = excluded.stddev,
			min          = excluded.min,
			max          = excluded.max,
			update_rate  = excluded.update_rate,
			window_start = excluded.window_start,
			window_end   = excluded.window_end,
			computed_at  = excluded.computed_at`,
		f.SequenceID, f.SampleCount, f.Mean, f.Stddev, f.Min, f.Max, f.UpdateRate, f.WindowStart, f.WindowEnd, f.ComputedAt)
	if err != nil {
		return fmt.Errorf("REPOSITORY/FINGERPRINT > upsert %d: %w", f.SequenceID, err)
	}
	return nil
}

// Get fetches a tag's fingerprint. A fingerprint older than
// staleAfter is treated as absent staleness rule.
func (r *FingerprintRepository) Get(sequenceID int64, staleAfter time.Duration) (*model.Fingerprint, error) {
	var f model.Fingerprint
	if err := r.db.DB.Get(&f, `SELECT * FROM fingerprint WHERE sequence_id = ?`, sequenceID); err != nil {
		return nil, fmt.Errorf("REPOSITORY/FINGERPRINT > get %d: %w", sequenceID, err)
	}
	if staleAfter > 0 && time.Since(f.ComputedAt) > staleAfter {
		return nil, fmt.Errorf("REPOSITORY/FINGERPRINT > fingerprint for %d is stale", sequenceID)
	}
	return &f, nil
}

// All returns every fingerprint, used by the correlation engine to
// build candidate groups without one query per tag.
func (r *FingerprintRepository) All() ([]*model.Fingerprint, error) {
	var fps []*model.Fingerprint
	if err := r.db.DB.Select(&fps, `SELECT * FROM fingerprint`); err != nil {
		return nil, fmt.Errorf("REPOSITORY/FINGERPRINT > all: %w", err)
	}
	return fps, nil
}

// PurgeOlderThan deletes fingerprints not recomputed since cutoff, part
// of the daily maintenance job (C11), returning the deleted rows so the
// caller can archive them first.
func (r *FingerprintRepository) PurgeOlderThan(cutoff time.Time) ([]*model.Fingerprint, error) {
	var rows []*model.Fingerprint
	if err := r.db.DB.Select(&rows, `SELECT * FROM fingerprint WHERE computed_at < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("REPOSITORY/FINGERPRINT > find purge candidates: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if _, err := r.db.DB.Exec(`DELETE FROM fingerprint WHERE computed_at < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("REPOSITORY/FINGERPRINT > purge: %w", err)
	}
	return rows, nil
}
