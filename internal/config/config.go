// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config is a flat configuration bag: a JSON file merged with
// environment overrides, validated against an embedded JSON Schema
// before any value is trusted.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/pattern-flywheel/historian/pkg/log"
)

// Keys holds the live configuration, populated by Init.
var Keys = Config{
	MetadataStoreDSN: "./var/historian.db",
	Queue: QueueConfig{
		Replicas:   1,
		AckWaitSec: 30,
	},
	Pipeline: PipelineConfig{
		PollIntervalMs: 5000,
		BatchSize:      10000,
	},
	Behavioral: BehavioralConfig{
		MinSamples:  50,
		WindowHours: 24,
	},
	Correlation: CorrelationConfig{
		MinR:          0.60,
		WindowHours:   168,
		MinSamples:    100,
		CacheTTLHours: 24,
	},
	Cluster: ClusterConfig{
		MinSize:     3,
		MaxSize:     50,
		MinCohesion: 0.50,
	},
	Matching: MatchingConfig{
		MinConfidence:          0.50,
		ProactiveMinConfidence: 0.40,
		MaxPerCluster:          5,
		Weights: MatchWeights{
			Naming:      0.30,
			Correlation: 0.40,
			Range:       0.20,
			Rate:        0.10,
		},
		ProactiveWeights: MatchWeights{
			Naming:         0.50,
			Range:          0.25,
			Rate:           0.15,
			KnowledgeBoost: 0.10,
		},
	},
	Learning: LearningConfig{
		Boost:       0.05,
		Penalty:     0.03,
		DecayPerDay: 0.005,
		Floor:       0.30,
	},
	Maintenance: MaintenanceConfig{
		RetentionDays: 90,
	},
}

// Config is the root of the configuration bag.
type Config struct {
	MetadataStoreDSN string             `json:"metadataStoreDsn"`
	Queue            QueueConfig        `json:"queue"`
	Pipeline         PipelineConfig     `json:"pipeline"`
	Behavioral       BehavioralConfig   `json:"behavioral"`
	Correlation      CorrelationConfig  `json:"correlation"`
	Cluster          ClusterConfig      `json:"cluster"`
	Matching         MatchingConfig     `json:"matching"`
	Learning         LearningConfig     `json:"learning"`
	Maintenance      MaintenanceConfig  `json:"maintenance"`
	Sources          []SourceConfig     `json:"sources,omitempty"`
	Metrics          MetricsConfig      `json:"metrics"`
}

// MetricsConfig governs the optional Prometheus exposition endpoint.
// A blank Addr leaves the pipeline counters collected but unexposed.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty"`
}

// SourceConfig names one ingestion source the poller should drive. No
// protocol adapter ships with this module — only
// the replay fixture adapter used for local development and tests, so
// ReplayFixture is the only way to wire a source up outside of a test.
type SourceConfig struct {
	ID            string `json:"id"`
	ReplayFixture string `json:"replayFixture,omitempty"`
}

// QueueConfig configures the JetStream connection (C5).
type QueueConfig struct {
	Address       string `json:"address"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	CredsFilePath string `json:"credsFilePath"`
	Replicas      int    `json:"replicas"`
	AckWaitSec    int    `json:"ackWaitSeconds"`
}

// PipelineConfig governs the ingestion pipeline (C6).
type PipelineConfig struct {
	PollIntervalMs int `json:"pollIntervalMs"`
	BatchSize      int `json:"batchSize"`
}

// BehavioralConfig governs the behavioral aggregator (C7).
type BehavioralConfig struct {
	MinSamples  int `json:"minSamples"`
	WindowHours int `json:"windowHours"`
}

// CorrelationConfig governs the correlation engine (C8).
type CorrelationConfig struct {
	MinR          float64 `json:"minR"`
	WindowHours   int     `json:"windowHours"`
	MinSamples    int     `json:"minSamples"`
	CacheTTLHours int     `json:"cacheTtlHours"`
}

// ClusterConfig governs the cluster detector (C9).
type ClusterConfig struct {
	MinSize     int     `json:"minSize"`
	MaxSize     int     `json:"maxSize"`
	MinCohesion float64 `json:"minCohesion"`
}

// MatchWeights are the per-factor weights the pattern matcher (C10)
// combines into an overall score.
type MatchWeights struct {
	Naming         float64 `json:"naming"`
	Correlation    float64 `json:"correlation,omitempty"`
	Range          float64 `json:"range"`
	Rate           float64 `json:"rate"`
	KnowledgeBoost float64 `json:"knowledgeBoost,omitempty"`
}

// MatchingConfig governs the pattern matcher (C10), both behavioral and
// proactive submodes.
type MatchingConfig struct {
	MinConfidence          float64      `json:"minConfidence"`
	ProactiveMinConfidence float64      `json:"proactiveMinConfidence"`
	MaxPerCluster          int          `json:"maxPerCluster"`
	Weights                MatchWeights `json:"weights"`
	ProactiveWeights       MatchWeights `json:"proactiveWeights"`
}

// LearningConfig governs confidence learning (C11).
type LearningConfig struct {
	Boost       float64 `json:"boost"`
	Penalty     float64 `json:"penalty"`
	DecayPerDay float64 `json:"decayPerDay"`
	Floor       float64 `json:"floor"`
}

// MaintenanceConfig governs the daily maintenance/purge job (C11).
type MaintenanceConfig struct {
	RetentionDays int    `json:"retentionDays"`
	ArchiveBucket string `json:"archiveBucket,omitempty"`
	ArchiveRegion string `json:"archiveRegion,omitempty"`
}

// Init loads .env (if present), reads flagConfigFile, validates it
// against configSchema, and decodes it over the defaults in Keys. A
// missing config file is not an error — Keys keeps its defaults — but
// a malformed one is a fatal startup condition.
func Init(flagConfigFile string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("CONFIG > could not load .env: %v", err)
	}

	if flagConfigFile == "" {
		return nil
	}

	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("CONFIG > read %s: %w", flagConfigFile, err)
	}

	if err := Validate(configSchema, raw); err != nil {
		return fmt.Errorf("CONFIG > %s failed validation: %w", flagConfigFile, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		return fmt.Errorf("CONFIG > decode %s: %w", flagConfigFile, err)
	}

	return nil
}
