// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package flywheel

import (
	"math"
	"sort"
	"time"

	"github.com/pattern-flywheel/historian/internal/cache"
	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/internal/repository"
	"github.com/pattern-flywheel/historian/internal/timeseries"
	"github.com/pattern-flywheel/historian/pkg/log"
)

// CorrelationConfig governs the correlation engine (C8).
type CorrelationConfig struct {
	MinR               float64
	WindowHours        int
	MinSamples         int
	ChangeSuppressAbs  float64
}

// CorrelationResult is one pair's outcome, returned from RunCorrelation
// for callers that want a summary (e.g. the operator surface).
type CorrelationResult struct {
	SequenceIDA int64
	SequenceIDB int64
	R           float64
	SampleCount int
	PValue      float64
	Suppressed  bool
}

// RunCorrelation groups enabled tags into candidate buckets, computes
// the pairwise ASOF correlation within each bucket, and persists edges
// that clear MinR
func RunCorrelation(cfg CorrelationConfig, store *timeseries.Store, c *cache.Cache) ([]CorrelationResult, error) {
	fps, err := repository.GetFingerprintRepository().All()
	if err != nil {
		return nil, err
	}
	if len(fps) < 2 {
		return nil, nil
	}

	windowHours := cfg.WindowHours
	if windowHours <= 0 {
		windowHours = 168
	}
	minSamples := cfg.MinSamples
	if minSamples <= 0 {
		minSamples = 100
	}
	minR := cfg.MinR
	if minR <= 0 {
		minR = 0.60
	}
	suppressThreshold := cfg.ChangeSuppressAbs
	if suppressThreshold <= 0 {
		suppressThreshold = 0.10
	}

	to := time.Now().UTC()
	from := to.Add(-time.Duration(windowHours) * time.Hour)

	groups := candidateGroups(fps)

	edgeRepo := repository.GetCorrelationRepository()
	var results []CorrelationResult
	for _, group := range groups {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i].SequenceID, group[j].SequenceID
				if a > b {
					a, b = b, a
				}

				r, n, err := store.ASOF(a, b, from, to)
				if err != nil || n < minSamples {
					continue
				}
				absR := math.Abs(r)
				if absR < minR {
					continue
				}

				suppressed := false
				if c != nil {
					if prior, ok := c.GetCorrelation(a, b); ok && math.Abs(absR-math.Abs(prior.R)) < suppressThreshold {
						suppressed = true
					}
					c.PutCorrelation(a, b, absR, n)
				}

				if !suppressed {
					edge := &model.CorrelationEdge{SequenceIDA: a, SequenceIDB: b, R: absR, SampleCount: int64(n), WindowStart: from, WindowEnd: to, ComputedAt: to}
					if err := edgeRepo.Upsert(edge); err != nil {
						log.Warnf("FLYWHEEL/CORRELATION > upsert edge (%d,%d): %v", a, b, err)
						continue
					}
				}

				results = append(results, CorrelationResult{
					SequenceIDA: a,
					SequenceIDB: b,
					R:           absR,
					SampleCount: n,
					PValue:      fisherZPValue(absR, n),
					Suppressed:  suppressed,
				})
			}
		}
	}
	return results, nil
}

// candidateGroups partitions fingerprints so that only pairs within
// factor-of-two update rate and matching value-range bucket are
// compared, keeping the candidate count far below n²/2. Anchors are
// picked greedily by ascending update rate.
func candidateGroups(fps []*model.Fingerprint) [][]*model.Fingerprint {
	sorted := make([]*model.Fingerprint, len(fps))
	copy(sorted, fps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UpdateRate < sorted[j].UpdateRate })

	assigned := make([]bool, len(sorted))
	var groups [][]*model.Fingerprint
	for i, anchor := range sorted {
		if assigned[i] {
			continue
		}
		group := []*model.Fingerprint{anchor}
		assigned[i] = true
		anchorBucket := rangeBucket(anchor)

		for j := i + 1; j < len(sorted); j++ {
			if assigned[j] {
				continue
			}
			candidate := sorted[j]
			if !withinFactorOfTwo(anchor.UpdateRate, candidate.UpdateRate) {
				continue
			}
			if rangeBucket(candidate) != anchorBucket {
				continue
			}
			group = append(group, candidate)
			assigned[j] = true
		}
		if len(group) >= 2 {
			groups = append(groups, group)
		}
	}
	return groups
}

func withinFactorOfTwo(a, b float64) bool {
	if a <= 0 || b <= 0 {
		return a == b
	}
	ratio := a / b
	return ratio >= 0.5 && ratio <= 2.0
}

// rangeBucket quantizes a fingerprint's observed value span onto a
// log10 scale so tags whose magnitudes differ by orders of ten never
// land in the same candidate group.
func rangeBucket(fp *model.Fingerprint) int {
	span := fp.Max - fp.Min
	if span <= 0 {
		return math.MinInt32
	}
	return int(math.Floor(math.Log10(span)))
}

// fisherZPValue derives an approximate two-tailed p-value for a
// Pearson coefficient via the Fisher z-transform and the Abramowitz &
// Stegun 26.2.17 normal-CDF approximation. Informational only — never
// used to filter edges
func fisherZPValue(r float64, n int) float64 {
	if n < 4 || math.Abs(r) >= 1 {
		return 0
	}
	z := 0.5 * math.Log((1+r)/(1-r))
	se := 1 / math.Sqrt(float64(n)-3)
	zScore := math.Abs(z / se)
	return 2 * (1 - normalCDF(zScore))
}

// normalCDF approximates the standard normal CDF via Abramowitz &
// Stegun formula 26.2.17 (max error 7.5e-8).
func normalCDF(x float64) float64 {
	const (
		b1 = 0.319381530
		b2 = -0.356563782
		b3 = 1.781477937
		b4 = -1.821255978
		b5 = 1.330274429
		p  = 0.2316419
		c  = 0.39894228
	)
	if x >= 0 {
		t := 1 / (1 + p*x)
		return 1 - c*math.Exp(-x*x/2)*t*(t*(t*(t*(t*b5+b4)+b3)+b2)+b1)
	}
	return 1 - normalCDF(-x)
}
