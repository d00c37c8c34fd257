// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pattern-flywheel/historian/internal/model"
)

// ClusterRepository owns detected clusters: groups of tags the
// correlation graph and Louvain detector (C9) judged to move together.
type ClusterRepository struct {
	db *DBConnection
}

var (
	clusterRepoOnce     sync.Once
	clusterRepoInstance *ClusterRepository
)

// GetClusterRepository returns the process-wide cluster repository
// singleton.
func GetClusterRepository() *ClusterRepository {
	clusterRepoOnce.Do(func() {
		clusterRepoInstance = &ClusterRepository{db: GetConnection()}
	})
	return clusterRepoInstance
}

// ClusterID computes the deterministic MD5-based ID for a set of member
// sequence IDs: the hex digest of the sorted, comma-joined list. Equal
// membership always yields an equal ID; this is what makes re-detection
// idempotent instead of spawning a new row every run.
func ClusterID(memberSequenceIDs []int64) string {
	sorted := append([]int64(nil), memberSequenceIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	h := md5.New()
	for i, id := range sorted {
		if i > 0 {
			h.Write([]byte{','})
		}
		fmt.Fprintf(h, "%d", id)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Upsert inserts a newly detected cluster or refreshes an existing one
// with the same membership (same ID), bumping UpdatedAt and Cohesion
// and reactivating it if it had gone stale.
func (r *ClusterRepository) Upsert(c *model.Cluster) error {
	membersJSON, err := json.Marshal(c.MemberSequenceIDs)
	if err != nil {
		return fmt.Errorf("REPOSITORY/CLUSTER > marshal members: %w", err)
	}
	c.MemberSequenceIDsJSON = string(membersJSON)
	if c.ID == "" {
		c.ID = ClusterID(c.MemberSequenceIDs)
	}
	now := time.Now()
	if c.DetectedAt.IsZero() {
		c.DetectedAt = now
	}
	c.UpdatedAt = now

	_, err = r.db.DB.Exec(`
		INSERT INTO cluster (id, member_sequence_ids, cohesion, active, proactive, detected_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cohesion = excluded.cohesion,
			active = 1,
			updated_at = excluded.updated_at`,
		c.ID, c.MemberSequenceIDsJSON, c.Cohesion, c.Proactive, c.DetectedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("REPOSITORY/CLUSTER > upsert %s: %w", c.ID, err)
	}
	return nil
}

// Active returns every currently active cluster, decoding its member
// list from JSON.
func (r *ClusterRepository) Active() ([]*model.Cluster, error) {
	var clusters []*model.Cluster
	if err := r.db.DB.Select(&clusters, `SELECT * FROM cluster WHERE active = 1 ORDER BY updated_at DESC`); err != nil {
		return nil, fmt.Errorf("REPOSITORY/CLUSTER > active: %w", err)
	}
	for _, c := range clusters {
		if err := json.Unmarshal([]byte(c.MemberSequenceIDsJSON), &c.MemberSequenceIDs); err != nil {
			return nil, fmt.Errorf("REPOSITORY/CLUSTER > decode members %s: %w", c.ID, err)
		}
	}
	return clusters, nil
}

// GetByID fetches one cluster by ID, decoding its member list.
func (r *ClusterRepository) GetByID(id string) (*model.Cluster, error) {
	var c model.Cluster
	if err := r.db.DB.Get(&c, `SELECT * FROM cluster WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("REPOSITORY/CLUSTER > get %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(c.MemberSequenceIDsJSON), &c.MemberSequenceIDs); err != nil {
		return nil, fmt.Errorf("REPOSITORY/CLUSTER > decode members %s: %w", id, err)
	}
	return &c, nil
}

// DeactivateStale marks every active cluster not refreshed since before
// cutoff inactive; called from the daily maintenance job once detection
// output has shifted away from a previously stable grouping.
func (r *ClusterRepository) DeactivateStale(cutoff time.Time) (int64, error) {
	res, err := r.db.DB.Exec(`UPDATE cluster SET active = 0 WHERE active = 1 AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("REPOSITORY/CLUSTER > deactivate stale: %w", err)
	}
	return res.RowsAffected()
}

// PurgeInactiveWithout deletes inactive clusters updated before cutoff
// that no pending or approved suggestion still references, returning
// the deleted rows so the caller can archive them first.
func (r *ClusterRepository) PurgeInactiveWithout(cutoff time.Time) ([]*model.Cluster, error) {
	const selectq = `
		SELECT * FROM cluster
		WHERE active = 0 AND updated_at < ?
		AND id NOT IN (SELECT cluster_id FROM suggestion WHERE state IN ('pending', 'approved'))`

	var rows []*model.Cluster
	if err := r.db.DB.Select(&rows, selectq, cutoff); err != nil {
		return nil, fmt.Errorf("REPOSITORY/CLUSTER > find purge candidates: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	for _, c := range rows {
		if err := json.Unmarshal([]byte(c.MemberSequenceIDsJSON), &c.MemberSequenceIDs); err != nil {
			return nil, fmt.Errorf("REPOSITORY/CLUSTER > decode members %s: %w", c.ID, err)
		}
	}

	const deleteq = `
		DELETE FROM cluster
		WHERE active = 0 AND updated_at < ?
		AND id NOT IN (SELECT cluster_id FROM suggestion WHERE state IN ('pending', 'approved'))`
	if _, err := r.db.DB.Exec(deleteq, cutoff); err != nil {
		return nil, fmt.Errorf("REPOSITORY/CLUSTER > purge: %w", err)
	}
	return rows, nil
}
