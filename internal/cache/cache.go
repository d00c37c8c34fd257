// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cache is the current-value cache (C4): a TTL-governed façade
// over an LRU cache, exposing the key families value:, corr:, and
// cluster-summary, plus a fingerprint-snapshot family the aggregator
// (C7) uses to hand its latest output to the matcher without a
// database round-trip.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/pattern-flywheel/historian/pkg/lrucache"
)

// Config holds the per-family TTLs and the overall memory budget, all
// supplied by the caller; the historian command takes only the correlation TTL
// from configuration (internal/config) and uses fixed values for the rest.
type Config struct {
	MaxMemoryBytes     int
	ValueTTL           time.Duration
	CorrelationTTL     time.Duration
	ClusterSummaryTTL  time.Duration
	FingerprintTTL     time.Duration
}

// Cache wraps a single lrucache.Cache instance with typed, namespaced
// accessors. One instance per process, sized by Config.MaxMemoryBytes.
type Cache struct {
	lru *lrucache.Cache
	cfg Config
}

var (
	once     sync.Once
	instance *Cache
)

// Get returns the process-wide cache singleton, initializing it with
// cfg on first call. Subsequent calls ignore cfg.
func Get(cfg Config) *Cache {
	once.Do(func() {
		instance = &Cache{lru: lrucache.New(cfg.MaxMemoryBytes), cfg: cfg}
	})
	return instance
}

func valueKey(sequenceID int64) string    { return fmt.Sprintf("value:%d", sequenceID) }
func corrKey(a, b int64) string           { return fmt.Sprintf("corr:%d:%d", minInt64(a, b), maxInt64(a, b)) }
func clusterSummaryKey(id string) string  { return fmt.Sprintf("clustersummary:%s", id) }
func fingerprintKey(sequenceID int64) string {
	return fmt.Sprintf("fingerprint:%d", sequenceID)
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// PutValue caches a tag's current (value, timestamp) pair.
func (c *Cache) PutValue(sequenceID int64, value float64, ts time.Time) {
	c.lru.Put(valueKey(sequenceID), ValueEntry{Value: value, Timestamp: ts}, 1, c.cfg.ValueTTL)
}

// ValueEntry is what PutValue/GetValue store.
type ValueEntry struct {
	Value     float64
	Timestamp time.Time
}

// GetValue returns a tag's cached current value, if present and unexpired.
func (c *Cache) GetValue(sequenceID int64) (ValueEntry, bool) {
	v := c.lru.Get(valueKey(sequenceID), nil)
	if v == nil {
		return ValueEntry{}, false
	}
	return v.(ValueEntry), true
}

// PutCorrelation caches the last-computed Pearson r for a tag pair. Key
// order is normalized so (a,b) and (b,a) hit the same slot.
func (c *Cache) PutCorrelation(a, b int64, r float64, sampleCount int) {
	c.lru.Put(corrKey(a, b), CorrelationEntry{R: r, SampleCount: sampleCount}, 1, c.cfg.CorrelationTTL)
}

// CorrelationEntry is what PutCorrelation/GetCorrelation store.
type CorrelationEntry struct {
	R           float64
	SampleCount int
}

// GetCorrelation returns a tag pair's cached correlation, if present.
func (c *Cache) GetCorrelation(a, b int64) (CorrelationEntry, bool) {
	v := c.lru.Get(corrKey(a, b), nil)
	if v == nil {
		return CorrelationEntry{}, false
	}
	return v.(CorrelationEntry), true
}

// PutClusterSummary caches a cluster's latest cohesion/member-count
// snapshot, read by operator-facing status queries.
func (c *Cache) PutClusterSummary(clusterID string, summary ClusterSummary) {
	c.lru.Put(clusterSummaryKey(clusterID), summary, 1, c.cfg.ClusterSummaryTTL)
}

// ClusterSummary is what PutClusterSummary/GetClusterSummary store.
type ClusterSummary struct {
	MemberCount int
	Cohesion    float64
	UpdatedAt   time.Time
}

// GetClusterSummary returns a cluster's cached summary, if present.
func (c *Cache) GetClusterSummary(clusterID string) (ClusterSummary, bool) {
	v := c.lru.Get(clusterSummaryKey(clusterID), nil)
	if v == nil {
		return ClusterSummary{}, false
	}
	return v.(ClusterSummary), true
}

// PutFingerprint caches a tag's latest behavioral fingerprint (C7
// output), letting the matcher (C10) read the aggregator's most recent
// pass without a repository round-trip.
func (c *Cache) PutFingerprint(sequenceID int64, fp interface{}) {
	c.lru.Put(fingerprintKey(sequenceID), fp, 1, c.cfg.FingerprintTTL)
}

// GetFingerprint returns a tag's cached fingerprint, if present. The
// caller type-asserts to the concrete fingerprint type (internal/flywheel).
func (c *Cache) GetFingerprint(sequenceID int64) (interface{}, bool) {
	v := c.lru.Get(fingerprintKey(sequenceID), nil)
	return v, v != nil
}
