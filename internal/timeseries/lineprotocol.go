// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// This file decodes the InfluxDB line-protocol batched ingest format.
// Decoding is a pure function, independent of any particular
// subscription loop or fixed tag scheme, so both the poller-originated
// and queue-originated ingestion paths (C6) can share it, and tag
// resolution (name -> sequence id) is injected rather than hardcoded to
// specific tag names.
package timeseries

import (
	"fmt"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"

	"github.com/pattern-flywheel/historian/internal/model"
)

// TagResolver maps a line-protocol measurement name to the catalog
// SequenceID it corresponds to. Returns ok=false for an unrecognized
// measurement, which the decoder treats as a skip, not an error: an
// unseen tag name shows up whenever a source starts reporting a new
// point before the catalog has been updated, not as malformed input.
type TagResolver func(measurement string) (sequenceID int64, ok bool)

// DecodeBatch parses a line-protocol payload into a Batch, resolving
// each line's measurement name through resolve and skipping lines for
// unknown tags or non-numeric "value" fields. The returned batch is not
// yet disambiguated; callers append it through Store.Append only after
// calling Batch.Disambiguate, exactly as every other ingestion path
// does.
func DecodeBatch(data []byte, sourceID string, resolve TagResolver) (*model.Batch, error) {
	dec := lineprotocol.NewDecoderWithBytes(data)
	batch := &model.Batch{SourceID: sourceID, CreatedAt: time.Now()}

	for dec.Next() {
		measurement, err := dec.Measurement()
		if err != nil {
			return nil, fmt.Errorf("TIMESERIES/LINEPROTOCOL > measurement: %w", err)
		}

		sequenceID, ok := resolve(string(measurement))

		for {
			key, value, err := dec.NextTag()
			if err != nil {
				return nil, fmt.Errorf("TIMESERIES/LINEPROTOCOL > tag: %w", err)
			}
			if key == nil {
				break
			}
			_ = value
		}

		var fieldValue float64
		haveValue := false
		for {
			key, val, err := dec.NextField()
			if err != nil {
				return nil, fmt.Errorf("TIMESERIES/LINEPROTOCOL > field: %w", err)
			}
			if key == nil {
				break
			}
			if string(key) != "value" {
				continue
			}
			switch val.Kind() {
			case lineprotocol.Float:
				fieldValue = val.FloatV()
				haveValue = true
			case lineprotocol.Int:
				fieldValue = float64(val.IntV())
				haveValue = true
			case lineprotocol.Uint:
				fieldValue = float64(val.UintV())
				haveValue = true
			}
		}

		ts, err := dec.Time(lineprotocol.Nanosecond, time.Now())
		if err != nil {
			return nil, fmt.Errorf("TIMESERIES/LINEPROTOCOL > time: %w", err)
		}

		if !ok || !haveValue {
			continue
		}

		batch.Points = append(batch.Points, model.DataPoint{
			SequenceID:  sequenceID,
			Timestamp:   ts,
			Value:       fieldValue,
			Quality:     model.QualityGood,
			SourceTag:   string(measurement),
			ReceiveTime: time.Now(),
		})
	}
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("TIMESERIES/LINEPROTOCOL > decode: %w", err)
	}

	return batch, nil
}
