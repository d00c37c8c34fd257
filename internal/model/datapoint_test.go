// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDataPointValidate(t *testing.T) {
	good := DataPoint{SequenceID: 1, Timestamp: time.Now(), Value: 42.0}
	assert.NoError(t, good.Validate())

	nan := DataPoint{SequenceID: 1, Timestamp: time.Now(), Value: math.NaN()}
	assert.Error(t, nan.Validate())

	inf := DataPoint{SequenceID: 1, Timestamp: time.Now(), Value: math.Inf(1)}
	assert.Error(t, inf.Validate())

	preEpoch := DataPoint{SequenceID: 1, Timestamp: time.Unix(-100, 0), Value: 1.0}
	assert.Error(t, preEpoch.Validate())
}

func TestBatchDisambiguate(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := Batch{Points: []DataPoint{
		{SequenceID: 1, Timestamp: ts, Value: 1},
		{SequenceID: 1, Timestamp: ts, Value: 2},
		{SequenceID: 1, Timestamp: ts, Value: 3},
		{SequenceID: 2, Timestamp: ts, Value: 9},
	}}

	b.Disambiguate()

	assert.True(t, b.Points[0].Timestamp.Equal(ts))
	assert.True(t, b.Points[1].Timestamp.Equal(ts.Add(1*time.Microsecond)))
	assert.True(t, b.Points[2].Timestamp.Equal(ts.Add(2*time.Microsecond)))
	assert.True(t, b.Points[3].Timestamp.Equal(ts))

	// idempotent: running again on the already-disambiguated batch changes nothing
	before := make([]time.Time, len(b.Points))
	for i, p := range b.Points {
		before[i] = p.Timestamp
	}
	b.Disambiguate()
	for i, p := range b.Points {
		assert.True(t, p.Timestamp.Equal(before[i]))
	}
}
