// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/internal/queue"
	"github.com/pattern-flywheel/historian/internal/retry"
	"github.com/pattern-flywheel/historian/internal/timeseries"
	"github.com/pattern-flywheel/historian/pkg/log"
)

func marshalBatch(b *model.Batch) ([]byte, error) {
	return json.Marshal(b)
}

func unmarshalBatch(data []byte) (*model.Batch, error) {
	var b model.Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// TimeSeriesWriter is the second consumer of the telemetry topic: it
// fetches batches and writes them into the process-wide time-series
// store, line-protocol style, skipping (logging, not failing) any
// message it cannot deserialize.
type TimeSeriesWriter struct {
	consumer *queue.Consumer
	store    *timeseries.Store
}

// NewTimeSeriesWriter binds a durable consumer on the telemetry topic
// under durableName.
func NewTimeSeriesWriter(client *queue.Client, durableName string) (*TimeSeriesWriter, error) {
	consumer, err := queue.NewConsumer(client, queue.TopicTelemetryLive, durableName)
	if err != nil {
		return nil, fmt.Errorf("INGEST/WRITER > %w", err)
	}
	return &TimeSeriesWriter{consumer: consumer, store: timeseries.GetStore()}, nil
}

// RunOnce fetches up to batchSize pending messages and writes each
// batch into the store, acking on success and nak-ing on a transient
// store error so JetStream redelivers it.
func (w *TimeSeriesWriter) RunOnce(batchSize int, waitFor time.Duration) (int, error) {
	var msgs []*queue.Message
	fetchErr := retry.Reader(3, func() error {
		var err error
		msgs, err = w.consumer.Fetch(batchSize, waitFor)
		return err
	})
	if fetchErr != nil {
		return 0, fmt.Errorf("INGEST/WRITER > fetch: %w", fetchErr)
	}

	written := 0
	for _, m := range msgs {
		batch, err := unmarshalBatch(m.Data)
		if err != nil {
			log.Warnf("INGEST/WRITER > dropping undecodable message on %s: %v", m.Subject, err)
			_ = m.Ack()
			continue
		}

		if err := w.store.Append(batch); err != nil {
			log.Warnf("INGEST/WRITER > append failed for batch %s, nak for redelivery: %v", batch.ID, err)
			_ = m.Nak()
			continue
		}
		written += len(batch.Points)
		_ = m.Ack()
	}
	return written, nil
}
