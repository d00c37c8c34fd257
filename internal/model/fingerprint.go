// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import "time"

// Fingerprint is a tag's behavioral summary over its most recent
// aggregation window (C7): sample count, mean, sample standard
// deviation, min, max, and update rate (samples per second). A fresh
// computation overwrites the prior row outright.
type Fingerprint struct {
	SequenceID  int64     `db:"sequence_id" json:"sequenceId"`
	SampleCount int64     `db:"sample_count" json:"sampleCount"`
	Mean        float64   `db:"mean" json:"mean"`
	Stddev      float64   `db:"stddev" json:"stddev"`
	Min         float64   `db:"min" json:"min"`
	Max         float64   `db:"max" json:"max"`
	UpdateRate  float64   `db:"update_rate" json:"updateRate"`
	WindowStart time.Time `db:"window_start" json:"windowStart"`
	WindowEnd   time.Time `db:"window_end" json:"windowEnd"`
	ComputedAt  time.Time `db:"computed_at" json:"computedAt"`
}

// CorrelationEdge is the persisted outcome of one candidate pair's
// pairwise correlation (C8): |r| between two tags' series, canonically
// keyed with SequenceIDA < SequenceIDB.
type CorrelationEdge struct {
	SequenceIDA int64     `db:"sequence_id_a" json:"sequenceIdA"`
	SequenceIDB int64     `db:"sequence_id_b" json:"sequenceIdB"`
	R           float64   `db:"r" json:"r"`
	SampleCount int64     `db:"sample_count" json:"sampleCount"`
	WindowStart time.Time `db:"window_start" json:"windowStart"`
	WindowEnd   time.Time `db:"window_end" json:"windowEnd"`
	ComputedAt  time.Time `db:"computed_at" json:"computedAt"`
}
