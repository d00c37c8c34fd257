// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package timeseries

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pattern-flywheel/historian/internal/model"
)

// DefaultFrequency is the alignment interval assumed for a tag that has
// not yet reported a TypicalIntervalSec. Writes still succeed at any
// cadence; this only governs gap-fill granularity.
const DefaultFrequency int64 = 10

// Aggregate summarizes a tag's samples over a time window.
type Aggregate struct {
	Min    float64
	Max    float64
	Mean   float64
	Stddev float64
	Count  int64
}

// Store is the process-wide in-memory time-series buffer, one chain per
// tag SequenceID. A single global instance is shared by ingestion
// writers and the analytical readers (C7-C10).
type Store struct {
	mu      sync.RWMutex
	buffers map[int64]*buffer
	freq    map[int64]int64
}

var (
	storeOnce     sync.Once
	storeInstance *Store
)

// GetStore returns the process-wide time-series store singleton.
func GetStore() *Store {
	storeOnce.Do(func() {
		storeInstance = &Store{
			buffers: make(map[int64]*buffer),
			freq:    make(map[int64]int64),
		}
	})
	return storeInstance
}

// RegisterFrequency records the alignment interval for a tag's buffer
// chain. Called once when a tag is loaded from the catalog; if never
// called, DefaultFrequency is used on first write.
func (s *Store) RegisterFrequency(sequenceID int64, intervalSeconds float64) {
	freq := int64(intervalSeconds)
	if freq <= 0 {
		freq = DefaultFrequency
	}
	s.mu.Lock()
	s.freq[sequenceID] = freq
	s.mu.Unlock()
}

func (s *Store) frequencyFor(sequenceID int64) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.freq[sequenceID]; ok {
		return f
	}
	return DefaultFrequency
}

// Append writes every point of a batch into its tag's buffer chain. The
// batch must already have passed model.Batch.Disambiguate(); Append
// does not itself resolve (sequence_id, timestamp) collisions.
func (s *Store) Append(batch *model.Batch) error {
	for _, p := range batch.Points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("TIMESERIES > append rejected point for sequence %d: %w", p.SequenceID, err)
		}
		s.write(p.SequenceID, p.Timestamp.Unix(), p.Value)
	}
	return nil
}

func (s *Store) write(sequenceID, ts int64, value float64) {
	freq := s.frequencyFor(sequenceID)

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buffers[sequenceID]
	if !ok {
		b = newBuffer(ts, freq)
		s.buffers[sequenceID] = b
		b.lastUsed = time.Now().Unix()
	}

	nb, err := b.write(ts, value)
	if err != nil {
		// A point older than the chain's current start is dropped:
		// ingestion already deduplicates/orders within a batch, so this
		// only fires for severely out-of-order redelivery.
		return
	}
	nb.lastUsed = time.Now().Unix()
	s.buffers[sequenceID] = nb
}

// Last returns the most recent non-NaN sample recorded for a tag.
func (s *Store) Last(sequenceID int64) (value float64, ts time.Time, err error) {
	s.mu.RLock()
	b, ok := s.buffers[sequenceID]
	s.mu.RUnlock()
	if !ok {
		return 0, time.Time{}, ErrNoData
	}

	v, unix, found := b.last()
	if !found {
		return 0, time.Time{}, ErrNoData
	}
	return v, time.Unix(unix, 0).UTC(), nil
}

// Range returns up to limit samples for a tag between from and to
// (exclusive), oldest first. limit <= 0 means unbounded.
func (s *Store) Range(sequenceID int64, from, to time.Time, limit int) ([]float64, []time.Time, error) {
	s.mu.RLock()
	b, ok := s.buffers[sequenceID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNoData
	}

	freq := s.frequencyFor(sequenceID)
	fromUnix, toUnix := from.Unix(), to.Unix()
	n := int((toUnix-fromUnix)/freq) + 1
	if n <= 0 {
		return nil, nil, nil
	}
	buf := make([]float64, n)

	data, actualFrom, _, err := b.read(fromUnix, toUnix, buf)
	if err != nil {
		return nil, nil, err
	}
	if limit > 0 && len(data) > limit {
		data = data[len(data)-limit:]
		actualFrom += int64(len(buf)-len(data)) * freq
	}

	timestamps := make([]time.Time, len(data))
	for i := range data {
		timestamps[i] = time.Unix(actualFrom+int64(i)*freq, 0).UTC()
	}
	return data, timestamps, nil
}

// ComputeAggregate computes min/max/mean/stddev/count over [from, to).
func (s *Store) ComputeAggregate(sequenceID int64, from, to time.Time) (Aggregate, error) {
	values, _, err := s.Range(sequenceID, from, to, 0)
	if err != nil {
		return Aggregate{}, err
	}

	agg := Aggregate{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		agg.Count++
		sum += v
		if v < agg.Min {
			agg.Min = v
		}
		if v > agg.Max {
			agg.Max = v
		}
	}
	if agg.Count == 0 {
		return Aggregate{}, ErrNoData
	}
	agg.Mean = sum / float64(agg.Count)

	// Sample (not population) standard deviation; a single sample has
	// no spread to estimate.
	if agg.Count > 1 {
		var variance float64
		for _, v := range values {
			if math.IsNaN(v) {
				continue
			}
			d := v - agg.Mean
			variance += d * d
		}
		agg.Stddev = math.Sqrt(variance / float64(agg.Count-1))
	}
	return agg, nil
}

// ASOF performs a nearest-preceding-sample join of two tags over [from,
// to) and returns the Pearson correlation coefficient of the aligned
// pairs plus how many pairs contributed. It is the hand-rolled join the
// correlation engine (C8) runs candidate pairs through; no external
// time-series database is assumed.
func (s *Store) ASOF(sequenceIDA, sequenceIDB int64, from, to time.Time) (pearsonR float64, sampleCount int, err error) {
	valuesA, timesA, err := s.Range(sequenceIDA, from, to, 0)
	if err != nil {
		return 0, 0, err
	}
	valuesB, timesB, err := s.Range(sequenceIDB, from, to, 0)
	if err != nil {
		return 0, 0, err
	}
	if len(valuesA) == 0 || len(valuesB) == 0 {
		return 0, 0, ErrNoData
	}

	var xs, ys []float64
	j := 0
	for i, ta := range timesA {
		if math.IsNaN(valuesA[i]) {
			continue
		}
		for j < len(timesB)-1 && !timesB[j+1].After(ta) {
			j++
		}
		if timesB[j].After(ta) || math.IsNaN(valuesB[j]) {
			continue
		}
		xs = append(xs, valuesA[i])
		ys = append(ys, valuesB[j])
	}

	if len(xs) < 2 {
		return 0, len(xs), nil
	}
	return pearson(xs, ys), len(xs), nil
}

func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumX2 += xs[i] * xs[i]
		sumY2 += ys[i] * ys[i]
	}
	num := n*sumXY - sumX*sumY
	den := math.Sqrt((n*sumX2 - sumX*sumX) * (n*sumY2 - sumY*sumY))
	if den == 0 {
		return 0
	}
	return num / den
}

// Sweep frees buffer links older than the retention cutoff across every
// tag, returning the number of links freed. The daily maintenance job
// (C11) does not call it.
func (s *Store) Sweep(cutoff time.Time) int {
	threshold := cutoff.Unix()
	s.mu.Lock()
	defer s.mu.Unlock()

	freed := 0
	for id, b := range s.buffers {
		delme, n := b.free(threshold)
		freed += n
		if delme {
			delete(s.buffers, id)
			delete(s.freq, id)
		}
	}
	return freed
}
