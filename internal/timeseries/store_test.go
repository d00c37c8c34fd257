// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package timeseries

import (
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pattern-flywheel/historian/internal/model"
)

func TestStoreAppendLastAndRange(t *testing.T) {
	s := &Store{buffers: make(map[int64]*buffer), freq: make(map[int64]int64)}
	s.RegisterFrequency(1, 1)

	base := time.Unix(1_700_000_000, 0).UTC()
	batch := &model.Batch{SourceID: "plc-1"}
	for i := 0; i < 5; i++ {
		batch.Points = append(batch.Points, model.DataPoint{
			SequenceID: 1, Timestamp: base.Add(time.Duration(i) * time.Second), Value: float64(i),
		})
	}
	require.NoError(t, s.Append(batch))

	last, ts, err := s.Last(1)
	require.NoError(t, err)
	assert.Equal(t, float64(4), last)
	assert.Equal(t, base.Add(4*time.Second), ts)

	values, _, err := s.Range(1, base, base.Add(5*time.Second), 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, values)
}

func TestStoreASOFPerfectCorrelation(t *testing.T) {
	s := &Store{buffers: make(map[int64]*buffer), freq: make(map[int64]int64)}
	s.RegisterFrequency(10, 1)
	s.RegisterFrequency(20, 1)

	base := time.Unix(1_700_000_000, 0).UTC()
	batch := &model.Batch{SourceID: "plc-1"}
	for i := 0; i < 20; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		batch.Points = append(batch.Points,
			model.DataPoint{SequenceID: 10, Timestamp: ts, Value: float64(i)},
			model.DataPoint{SequenceID: 20, Timestamp: ts, Value: float64(i) * 2},
		)
	}
	require.NoError(t, s.Append(batch))

	r, n, err := s.ASOF(10, 20, base, base.Add(20*time.Second))
	require.NoError(t, err)
	assert.Greater(t, n, 10)
	assert.InDelta(t, 1.0, r, 1e-9)
}

func TestStoreComputeAggregate(t *testing.T) {
	s := &Store{buffers: make(map[int64]*buffer), freq: make(map[int64]int64)}
	s.RegisterFrequency(1, 1)
	base := time.Unix(1_700_000_000, 0).UTC()

	batch := &model.Batch{SourceID: "plc-1"}
	for _, v := range []float64{1, 2, 3, 4, 5} {
		batch.Points = append(batch.Points, model.DataPoint{SequenceID: 1, Timestamp: base, Value: v})
		base = base.Add(time.Second)
	}
	require.NoError(t, s.Append(batch))

	agg, err := s.ComputeAggregate(1, time.Unix(1_700_000_000, 0).UTC(), base)
	require.NoError(t, err)
	assert.Equal(t, int64(5), agg.Count)
	assert.Equal(t, 1.0, agg.Min)
	assert.Equal(t, 5.0, agg.Max)
	assert.InDelta(t, 3.0, agg.Mean, 1e-9)
}

func TestStoreSweepFreesOldBuffers(t *testing.T) {
	s := &Store{buffers: make(map[int64]*buffer), freq: make(map[int64]int64)}
	s.RegisterFrequency(1, 1)

	old := time.Unix(1_000_000_000, 0).UTC()
	s.write(1, old.Unix(), 1.0)

	freed := s.Sweep(time.Now())
	assert.GreaterOrEqual(t, freed, 1)

	_, _, err := s.Last(1)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := &Store{buffers: make(map[int64]*buffer), freq: make(map[int64]int64)}
	s.RegisterFrequency(42, 5)
	base := time.Unix(1_700_000_000, 0).UTC()
	for i := 0; i < 3; i++ {
		s.write(42, base.Add(time.Duration(i*5)*time.Second).Unix(), float64(i)+0.5)
	}

	path, err := s.Checkpoint(dir)
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	restored := &Store{buffers: make(map[int64]*buffer), freq: make(map[int64]int64)}
	n, err := restored.Restore(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, _, err := restored.Last(42)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(v))
}
