// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"fmt"
	"math"
	"time"
)

// epoch is the earliest timestamp a DataPoint may carry.
var epoch = time.Unix(0, 0).UTC()

// DataPoint is a single immutable telemetry sample.
type DataPoint struct {
	SequenceID  int64     `json:"sequenceId"`
	Timestamp   time.Time `json:"timestamp"`
	Value       float64   `json:"value"`
	Quality     Quality   `json:"quality"`
	SourceTag   string    `json:"sourceTag,omitempty"`
	ReceiveTime time.Time `json:"receiveTime"`
}

// Validate enforces the two hard invariants from the data model: the value
// must be finite and the timestamp must not precede the Unix epoch. Every
// ingestion boundary (poller output, queue consumer input, backfill chunk)
// must call this before the point is allowed further into the pipeline.
func (p *DataPoint) Validate() error {
	if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		return fmt.Errorf("MODEL/DATAPOINT > non-finite value for sequence id %d", p.SequenceID)
	}
	if p.Timestamp.Before(epoch) {
		return fmt.Errorf("MODEL/DATAPOINT > timestamp %s for sequence id %d is before the epoch", p.Timestamp, p.SequenceID)
	}
	return nil
}

// Batch is an ordered group of DataPoints crossing the queue boundary as one
// atomic unit.
type Batch struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"createdAt"`
	SourceID  string      `json:"sourceId"`
	Points    []DataPoint `json:"points"`
}

// Disambiguate assigns a deterministic microsecond offset (row index * 1µs)
// to points that collide on (sequence id, timestamp) within this batch, so
// the time-series store's uniqueness invariant holds after a write. It
// operates on a per-sequence-id basis and is idempotent: re-running it on an
// already-disambiguated batch is a no-op because distinct rows are by then
// already distinct.
func (b *Batch) Disambiguate() {
	seen := map[int64]map[int64]int{}
	for i := range b.Points {
		p := &b.Points[i]
		byTS, ok := seen[p.SequenceID]
		if !ok {
			byTS = map[int64]int{}
			seen[p.SequenceID] = byTS
		}
		ts := p.Timestamp.UnixNano()
		if _, collided := byTS[ts]; collided {
			p.Timestamp = p.Timestamp.Add(time.Duration(i) * time.Microsecond)
		} else {
			byTS[ts] = i
		}
	}
}
