// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package retry implements two fixed retry schedules for transient
// external I/O: a capped exponential backoff for analysis jobs
// (queue/store unreachable mid-run) and a short linear backoff for
// individual reads. Both are literal constants rather than a
// general-purpose policy, so a tiny local loop replaces what would
// otherwise be a backoff library dependency.
package retry

import "time"

// AnalysisSchedule is the 3-attempt, 30s/60s/120s backoff used by
// analysis jobs (C7-C11) on transient queue/store failure.
var AnalysisSchedule = []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}

// Job retries fn on error using AnalysisSchedule, sleeping between
// attempts and returning the final attempt's error. It does not retry
// past the schedule: on exhaustion, the caller records the structured
// error and the job exits non-fatally, same as any other failed run.
func Job(fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= len(AnalysisSchedule) {
			return err
		}
		time.Sleep(AnalysisSchedule[attempt])
	}
}

// Reader retries fn up to attempts times with a linear 100ms*attempt
// backoff, the schedule for transient failures inside
// individual read paths (queue fetch, source adapter poll).
func Reader(attempts int, fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			return err
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return err
}
