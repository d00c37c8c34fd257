// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"fmt"
	"time"

	"github.com/pattern-flywheel/historian/internal/config"
	"github.com/pattern-flywheel/historian/internal/flywheel"
	"github.com/pattern-flywheel/historian/internal/ingest"
	"github.com/pattern-flywheel/historian/internal/learning"
)

// sourceAdapter resolves a configured source to the adapter that
// drives it. No concrete protocol adapter ships with this module
// — only the replay fixture adapter, so a
// source with no ReplayFixture set cannot be wired up outside a test.
func sourceAdapter(src config.SourceConfig) (ingest.SourceAdapter, error) {
	if src.ReplayFixture == "" {
		return nil, fmt.Errorf("source %s has no replayFixture configured and no protocol adapter ships with this build", src.ID)
	}
	return ingest.NewReplayAdapter(src.ReplayFixture)
}

// Fixed cache TTLs not broken out into their own config keys; the
// correlation family takes its TTL from correlation.cacheTtlHours and
// the fingerprint family uses a fixed 48h (fingerprintTTL).
const (
	valueTTL          = 30 * time.Second
	clusterSummaryTTL = 5 * time.Minute
)

func correlationTTL() time.Duration {
	hours := config.Keys.Correlation.CacheTTLHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func fingerprintTTL() time.Duration {
	return 48 * time.Hour
}

func aggregatorConfig() flywheel.AggregatorConfig {
	return flywheel.AggregatorConfig{
		MinSamples:  config.Keys.Behavioral.MinSamples,
		WindowHours: config.Keys.Behavioral.WindowHours,
	}
}

func correlationConfig() flywheel.CorrelationConfig {
	return flywheel.CorrelationConfig{
		MinR:        config.Keys.Correlation.MinR,
		WindowHours: config.Keys.Correlation.WindowHours,
		MinSamples:  config.Keys.Correlation.MinSamples,
	}
}

func clusterConfig() flywheel.ClusterConfig {
	return flywheel.ClusterConfig{
		MinSize:     config.Keys.Cluster.MinSize,
		MaxSize:     config.Keys.Cluster.MaxSize,
		MinCohesion: config.Keys.Cluster.MinCohesion,
	}
}

func matchingConfig() flywheel.MatchingConfig {
	return flywheel.MatchingConfig{
		MinConfidence:          config.Keys.Matching.MinConfidence,
		ProactiveMinConfidence: config.Keys.Matching.ProactiveMinConfidence,
		MaxPerCluster:          config.Keys.Matching.MaxPerCluster,
		Weights:                flywheel.MatchWeights(config.Keys.Matching.Weights),
		ProactiveWeights:       flywheel.MatchWeights(config.Keys.Matching.ProactiveWeights),
	}
}

func learningConfig() learning.Config {
	return learning.Config{
		Boost:       config.Keys.Learning.Boost,
		Penalty:     config.Keys.Learning.Penalty,
		DecayPerDay: config.Keys.Learning.DecayPerDay,
		Floor:       config.Keys.Learning.Floor,
	}
}

func maintenanceConfig() learning.MaintenanceConfig {
	return learning.MaintenanceConfig{
		RetentionDays: config.Keys.Maintenance.RetentionDays,
		ArchiveBucket: config.Keys.Maintenance.ArchiveBucket,
		ArchiveRegion: config.Keys.Maintenance.ArchiveRegion,
	}
}

func approveSuggestion(id, reviewer string) error {
	return learning.Approve(learningConfig(), id, reviewer)
}

func rejectSuggestion(id, reviewer, reason string) error {
	return learning.Reject(learningConfig(), id, reviewer, reason)
}
