// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pattern-flywheel/historian/pkg/lrucache"
)

func newTestCache() *Cache {
	return &Cache{
		lru: lrucache.New(1 << 20),
		cfg: Config{
			MaxMemoryBytes:    1 << 20,
			ValueTTL:          time.Minute,
			CorrelationTTL:    time.Minute,
			ClusterSummaryTTL: time.Minute,
			FingerprintTTL:    time.Minute,
		},
	}
}

func TestCacheValueRoundTrip(t *testing.T) {
	c := newTestCache()
	now := time.Now()
	c.PutValue(7, 42.5, now)

	v, ok := c.GetValue(7)
	assert.True(t, ok)
	assert.Equal(t, 42.5, v.Value)
	assert.Equal(t, now, v.Timestamp)

	_, ok = c.GetValue(8)
	assert.False(t, ok)
}

func TestCacheCorrelationKeyIsOrderIndependent(t *testing.T) {
	c := newTestCache()
	c.PutCorrelation(3, 9, 0.87, 120)

	entry, ok := c.GetCorrelation(9, 3)
	assert.True(t, ok)
	assert.InDelta(t, 0.87, entry.R, 1e-9)
	assert.Equal(t, 120, entry.SampleCount)
}

func TestCacheClusterSummaryAndFingerprint(t *testing.T) {
	c := newTestCache()
	c.PutClusterSummary("cluster-1", ClusterSummary{MemberCount: 4, Cohesion: 0.7})

	summary, ok := c.GetClusterSummary("cluster-1")
	assert.True(t, ok)
	assert.Equal(t, 4, summary.MemberCount)

	c.PutFingerprint(5, "fp-placeholder")
	fp, ok := c.GetFingerprint(5)
	assert.True(t, ok)
	assert.Equal(t, "fp-placeholder", fp)
}
