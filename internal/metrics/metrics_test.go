// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveJobReturnsUnderlyingErrorAndRecordsDuration(t *testing.T) {
	before := testutil.CollectAndCount(JobDuration)

	wantErr := errors.New("boom")
	err := ObserveJob("unit-test-job", func() error { return wantErr })
	assert.Equal(t, wantErr, err)

	after := testutil.CollectAndCount(JobDuration)
	assert.Equal(t, before+1, after)
}

func TestObserveJobSucceeds(t *testing.T) {
	called := false
	err := ObserveJob("unit-test-job-ok", func() error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestServeNoAddrIsNoop(t *testing.T) {
	// A blank address must return immediately rather than blocking on
	// ListenAndServe.
	Serve(nil, "")
}
