// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobReturnsNilOnFirstSuccessWithoutSleeping(t *testing.T) {
	calls := 0
	err := Job(func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestJobRetriesThroughScheduleThenReturnsFinalError(t *testing.T) {
	orig := AnalysisSchedule
	AnalysisSchedule = []time.Duration{time.Millisecond, time.Millisecond}
	defer func() { AnalysisSchedule = orig }()

	calls := 0
	wantErr := errors.New("still unreachable")
	err := Job(func() error {
		calls++
		return wantErr
	})
	assert.Equal(t, wantErr, err)
	// One initial attempt plus one retry per schedule entry.
	assert.Equal(t, len(AnalysisSchedule)+1, calls)
}

func TestJobSucceedsPartwayThroughSchedule(t *testing.T) {
	orig := AnalysisSchedule
	AnalysisSchedule = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	defer func() { AnalysisSchedule = orig }()

	calls := 0
	err := Job(func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestReaderReturnsNilOnFirstSuccessWithoutSleeping(t *testing.T) {
	calls := 0
	err := Reader(3, func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestReaderExhaustsAttemptsThenReturnsFinalError(t *testing.T) {
	calls := 0
	wantErr := errors.New("read failed")
	err := Reader(3, func() error {
		calls++
		return wantErr
	})
	assert.Equal(t, wantErr, err)
	assert.Equal(t, 3, calls)
}

func TestReaderSingleAttemptNeverSleeps(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Reader(1, func() error {
		calls++
		return errors.New("fail")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
