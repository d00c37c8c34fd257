// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package flywheel is the analytical core of the pattern flywheel: the
// behavioral aggregator (C7), correlation engine (C8), cluster detector
// (C9), and pattern matcher (C10). Each is a pure compute step invoked
// by internal/scheduler on a cadence, reading from the time-series
// store and repositories and writing its result back through them.
package flywheel

import (
	"math"
	"time"

	"github.com/pattern-flywheel/historian/internal/cache"
	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/internal/repository"
	"github.com/pattern-flywheel/historian/internal/timeseries"
	"github.com/pattern-flywheel/historian/pkg/log"
)

// AggregatorConfig governs the behavioral aggregator (C7).
type AggregatorConfig struct {
	MinSamples  int
	WindowHours int
}

// RunAggregator computes a fresh fingerprint for every enabled tag with
// at least MinSamples over the last WindowHours
// Tags below the sample floor are left alone — any existing fingerprint
// simply ages toward the staleness threshold enforced on read.
func RunAggregator(cfg AggregatorConfig, store *timeseries.Store, c *cache.Cache) (computed int, err error) {
	tags, err := repository.GetTagRepository().ListEnabled("")
	if err != nil {
		return 0, err
	}

	windowHours := cfg.WindowHours
	if windowHours <= 0 {
		windowHours = 24
	}
	minSamples := cfg.MinSamples
	if minSamples <= 0 {
		minSamples = 50
	}

	to := time.Now().UTC()
	from := to.Add(-time.Duration(windowHours) * time.Hour)
	windowSeconds := to.Sub(from).Seconds()

	repo := repository.GetFingerprintRepository()
	for _, tag := range tags {
		agg, err := store.ComputeAggregate(tag.SequenceID, from, to)
		if err != nil {
			continue
		}
		if agg.Count < int64(minSamples) {
			continue
		}

		fp := &model.Fingerprint{
			SequenceID:  tag.SequenceID,
			SampleCount: agg.Count,
			Mean:        agg.Mean,
			Stddev:      agg.Stddev,
			Min:         agg.Min,
			Max:         agg.Max,
			UpdateRate:  updateRate(agg.Count, windowSeconds),
			WindowStart: from,
			WindowEnd:   to,
			ComputedAt:  to,
		}
		if err := repo.Upsert(fp); err != nil {
			log.Warnf("FLYWHEEL/AGGREGATOR > upsert fingerprint for sequence %d: %v", tag.SequenceID, err)
			continue
		}
		if c != nil {
			c.PutFingerprint(tag.SequenceID, fp)
		}
		computed++
	}
	return computed, nil
}

func updateRate(count int64, windowSeconds float64) float64 {
	if windowSeconds <= 0 {
		return 0
	}
	return float64(count) / windowSeconds
}

// clip bounds v to [lo, hi].
func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
