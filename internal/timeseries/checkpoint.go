// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package timeseries

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/pattern-flywheel/historian/pkg/log"
)

// checkpointSchema is the Avro record for one tag's buffer chain
// snapshot (sequenceId/frequency/start/values). Avro object container
// files buy schema evolution and a standard codec over a hand-rolled
// binary reader/writer pair.
const checkpointSchema = `{
	"type": "record",
	"name": "TagCheckpoint",
	"fields": [
		{"name": "sequenceId", "type": "long"},
		{"name": "frequency", "type": "long"},
		{"name": "start", "type": "long"},
		{"name": "values", "type": {"type": "array", "items": "double"}}
	]
}`

// Checkpoint writes every in-memory buffer chain's head link to a
// single Avro object container file under dir, named by the wall-clock
// time it was taken. Only the head link is persisted (the most recent
// BufferCap samples per tag); older links are not written.
func (s *Store) Checkpoint(dir string) (string, error) {
	codec, err := goavro.NewCodec(checkpointSchema)
	if err != nil {
		return "", fmt.Errorf("TIMESERIES/CHECKPOINT > build codec: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("TIMESERIES/CHECKPOINT > mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("checkpoint-%d.avro", time.Now().Unix()))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("TIMESERIES/CHECKPOINT > create %s: %w", path, err)
	}
	defer f.Close()

	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{W: f, Codec: codec})
	if err != nil {
		return "", fmt.Errorf("TIMESERIES/CHECKPOINT > open writer: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	written := 0
	for sequenceID, b := range s.buffers {
		values := make([]interface{}, len(b.data))
		for i, v := range b.data {
			values[i] = v
		}
		record := map[string]interface{}{
			"sequenceId": sequenceID,
			"frequency":  b.frequency,
			"start":      b.start,
			"values":     values,
		}
		if err := writer.Append([]interface{}{record}); err != nil {
			return "", fmt.Errorf("TIMESERIES/CHECKPOINT > append sequence %d: %w", sequenceID, err)
		}
		written++
	}

	log.Infof("TIMESERIES/CHECKPOINT > wrote %d tag buffers to %s", written, path)
	return path, nil
}

// Restore loads every tag buffer chain recorded in an Avro checkpoint
// file, replacing whatever (if anything) the store currently holds for
// that tag. No historian subcommand calls it at startup.
func (s *Store) Restore(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("TIMESERIES/CHECKPOINT > open %s: %w", path, err)
	}
	defer f.Close()

	reader, err := goavro.NewOCFReader(f)
	if err != nil {
		return 0, fmt.Errorf("TIMESERIES/CHECKPOINT > open reader: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restored := 0
	for reader.Scan() {
		datum, err := reader.Read()
		if err != nil {
			return restored, fmt.Errorf("TIMESERIES/CHECKPOINT > read record: %w", err)
		}
		rec, ok := datum.(map[string]interface{})
		if !ok {
			continue
		}

		sequenceID := rec["sequenceId"].(int64)
		freq := rec["frequency"].(int64)
		start := rec["start"].(int64)
		rawValues, _ := rec["values"].([]interface{})

		b := &buffer{frequency: freq, start: start, data: make([]float64, len(rawValues))}
		for i, v := range rawValues {
			b.data[i] = v.(float64)
		}
		b.lastUsed = time.Now().Unix()

		s.buffers[sequenceID] = b
		s.freq[sequenceID] = freq
		restored++
	}
	if err := reader.Err(); err != nil {
		return restored, fmt.Errorf("TIMESERIES/CHECKPOINT > scan %s: %w", path, err)
	}

	log.Infof("TIMESERIES/CHECKPOINT > restored %d tag buffers from %s", restored, path)
	return restored, nil
}
