// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package learning

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pattern-flywheel/historian/internal/archiver"
	"github.com/pattern-flywheel/historian/internal/repository"
	"github.com/pattern-flywheel/historian/pkg/log"
)

// expiredSuggestionRetention and fingerprintRetention are fixed
// retentions, as opposed to the configurable
// MaintenanceConfig.RetentionDays that governs the correlation cache
// and feedback log.
const (
	expiredSuggestionRetention = 7 * 24 * time.Hour
	inactiveClusterRetention   = 7 * 24 * time.Hour
	fingerprintRetention       = 7 * 24 * time.Hour
)

// MaintenanceConfig governs the daily maintenance/purge job.
type MaintenanceConfig struct {
	RetentionDays int
	ArchiveBucket string
	ArchiveRegion string
}

func (c MaintenanceConfig) retention() time.Duration {
	days := c.RetentionDays
	if days <= 0 {
		days = 90
	}
	return time.Duration(days) * 24 * time.Hour
}

// Report tallies what a maintenance run purged, for operator logging.
type Report struct {
	ExpiredSuggestions int
	PurgedSuggestions  int
	PurgedCorrelations int
	PurgedClusters     int
	PurgedFeedback     int
	PurgedFingerprints int
}

// RunMaintenance implements the daily maintenance job:
// expire stale suggestions, then purge everything past its retention
// window, cold-archiving each purged batch to S3 first when cfg names
// an ArchiveBucket.
func RunMaintenance(cfg MaintenanceConfig) (*Report, error) {
	now := time.Now().UTC()
	report := &Report{}

	archiving := cfg.ArchiveBucket != ""

	expiredIDs, err := repository.GetSuggestionRepository().ExpirePending(now)
	if err != nil {
		return report, fmt.Errorf("LEARNING/MAINTENANCE > expire suggestions: %w", err)
	}
	report.ExpiredSuggestions = len(expiredIDs)

	resolvedCutoff := now.Add(-expiredSuggestionRetention)
	purgedSuggestions, err := repository.GetSuggestionRepository().PurgeResolvedBefore(resolvedCutoff)
	if err != nil {
		return report, fmt.Errorf("LEARNING/MAINTENANCE > purge suggestions: %w", err)
	}
	if archiving && len(purgedSuggestions) > 0 {
		archiveBatch(now, "suggestions", purgedSuggestions)
	}
	report.PurgedSuggestions = len(purgedSuggestions)

	correlationCutoff := now.Add(-cfg.retention())
	purgedCorrelations, err := repository.GetCorrelationRepository().PurgeOlderThan(correlationCutoff)
	if err != nil {
		return report, fmt.Errorf("LEARNING/MAINTENANCE > purge correlation edges: %w", err)
	}
	if archiving && len(purgedCorrelations) > 0 {
		archiveBatch(now, "correlation_edges", purgedCorrelations)
	}
	report.PurgedCorrelations = len(purgedCorrelations)

	clusterCutoff := now.Add(-inactiveClusterRetention)
	purgedClusters, err := repository.GetClusterRepository().PurgeInactiveWithout(clusterCutoff)
	if err != nil {
		return report, fmt.Errorf("LEARNING/MAINTENANCE > purge clusters: %w", err)
	}
	if archiving && len(purgedClusters) > 0 {
		archiveBatch(now, "clusters", purgedClusters)
	}
	report.PurgedClusters = len(purgedClusters)

	feedbackCutoff := now.Add(-cfg.retention())
	purgedFeedback, err := repository.GetFeedbackRepository().PurgeBefore(feedbackCutoff)
	if err != nil {
		return report, fmt.Errorf("LEARNING/MAINTENANCE > purge feedback: %w", err)
	}
	if archiving && len(purgedFeedback) > 0 {
		archiveBatch(now, "feedback", purgedFeedback)
	}
	report.PurgedFeedback = len(purgedFeedback)

	fingerprintCutoff := now.Add(-fingerprintRetention)
	purgedFingerprints, err := repository.GetFingerprintRepository().PurgeOlderThan(fingerprintCutoff)
	if err != nil {
		return report, fmt.Errorf("LEARNING/MAINTENANCE > purge fingerprints: %w", err)
	}
	if archiving && len(purgedFingerprints) > 0 {
		archiveBatch(now, "fingerprints", purgedFingerprints)
	}
	report.PurgedFingerprints = len(purgedFingerprints)

	if archiving {
		archiver.WaitForArchiving()
	}

	// Every fast-cache write already carries a TTL (internal/cache's
	// Put* accessors always pass one from Config) so there is nothing
	// to backfill here; refreshing table statistics is the one
	// remaining per-run step.
	if err := repository.GetConnection().Optimize(); err != nil {
		log.Warnf("LEARNING/MAINTENANCE > optimize: %v", err)
	}

	return report, nil
}

// archiveBatch marshals rows to newline-delimited JSON and enqueues an
// async write keyed by kind, the run's date and the run's timestamp in
// nanoseconds, so each run writes its own object and repeated runs on
// the same day do not collide.
func archiveBatch(asOf time.Time, kind string, rows interface{}) {
	data, err := marshalNDJSON(rows)
	if err != nil {
		log.Errorf("LEARNING/MAINTENANCE > marshal %s batch: %v", kind, err)
		return
	}
	key := fmt.Sprintf("%s/%s/%d.ndjson", kind, asOf.Format("2006-01-02"), asOf.UnixNano())
	archiver.Enqueue(key, data)
}

func marshalNDJSON(rows interface{}) ([]byte, error) {
	// rows is always a slice of pointers to model structs; json.Marshal
	// on the slice directly would emit one JSON array instead of one
	// object per line, so each element is marshaled and joined.
	v, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, err
	}
	var out []byte
	for _, item := range items {
		out = append(out, item...)
		out = append(out, '\n')
	}
	return out, nil
}
