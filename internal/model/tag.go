// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package model holds the immutable telemetry data types shared by every
// component of the pattern flywheel: the tag/point catalog entry, the
// datapoint sample, and the batch that crosses the queue boundary.
package model

import "time"

// ValueType is the declared scalar kind of a tag's readings.
type ValueType string

const (
	ValueTypeDouble  ValueType = "double"
	ValueTypeInteger ValueType = "integer"
	ValueTypeBoolean ValueType = "boolean"
	ValueTypeString  ValueType = "string"
)

// Tag (a.k.a. Point) is a single addressable measurement stream from an
// industrial source. SequenceID is the compact monotonic key used by the
// time-series gateway; it is assigned once at creation and never reused.
type Tag struct {
	ID                 string    `db:"id" json:"id"`
	SequenceID         int64     `db:"sequence_id" json:"sequenceId"`
	Name               string    `db:"name" json:"name"`
	SourceID           string    `db:"source_id" json:"sourceId"`
	Address            string    `db:"address" json:"address"`
	Description        string    `db:"description" json:"description"`
	Unit               string    `db:"unit" json:"unit"`
	ValueType          ValueType `db:"value_type" json:"valueType"`
	Enabled            bool      `db:"enabled" json:"enabled"`
	TypicalIntervalSec float64   `db:"typical_interval_seconds" json:"typicalIntervalSeconds"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
}
