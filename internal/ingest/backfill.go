// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/internal/queue"
	"github.com/pattern-flywheel/historian/internal/repository"
	"github.com/pattern-flywheel/historian/pkg/log"
)

// DefaultChunkDuration is the interval a backfill request is sliced
// into when ChunkDuration is left zero.
const DefaultChunkDuration = 30 * 24 * time.Hour

// BackfillRequest is one {sourceType, tagAddresses, startTime, endTime,
// chunkDuration} historical data request.
type BackfillRequest struct {
	ID            string
	SourceID      string
	TagAddresses  []string
	StartTime     time.Time
	EndTime       time.Time
	ChunkDuration time.Duration
}

// BackfillStats is the queryable per-request progress the operator
// surface (`historian backfill`) reads back.
type BackfillStats struct {
	RequestID       string
	ChunksTotal     int
	ChunksDone      int
	ChunksFailed    int
	PointsProcessed int64
}

// BackfillWorker pulls requests from a bounded channel (capacity 20,
// drop-oldest on overflow) and processes them one at a time.
type BackfillWorker struct {
	adapters map[string]SourceAdapter
	pub      *queue.Publisher

	requests chan *BackfillRequest

	mu    sync.Mutex
	stats map[string]*BackfillStats
}

// NewBackfillWorker constructs a worker over a fixed adapter registry
// (sourceID -> SourceAdapter) and a publisher bound to the backfill
// topic.
func NewBackfillWorker(adapters map[string]SourceAdapter, pub *queue.Publisher) *BackfillWorker {
	return &BackfillWorker{
		adapters: adapters,
		pub:      pub,
		requests: make(chan *BackfillRequest, 20),
		stats:    make(map[string]*BackfillStats),
	}
}

// Enqueue submits a request, assigning it an ID and returning it. If
// the bounded channel is full, the oldest queued request is dropped to
// make room — the explicit overflow policy — and its stats entry
// is removed since it will never run.
func (w *BackfillWorker) Enqueue(req *BackfillRequest) *BackfillRequest {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.ChunkDuration <= 0 {
		req.ChunkDuration = DefaultChunkDuration
	}

	w.mu.Lock()
	w.stats[req.ID] = &BackfillStats{RequestID: req.ID, ChunksTotal: countChunks(req.StartTime, req.EndTime, req.ChunkDuration)}
	w.mu.Unlock()

	select {
	case w.requests <- req:
	default:
		select {
		case dropped := <-w.requests:
			w.mu.Lock()
			delete(w.stats, dropped.ID)
			w.mu.Unlock()
			log.Warnf("INGEST/BACKFILL > queue full, dropped oldest request %s", dropped.ID)
		default:
		}
		w.requests <- req
	}
	return req
}

// Stats returns a snapshot of a request's progress, or false if unknown
// (never queued, or dropped for overflow before it ran).
func (w *BackfillWorker) Stats(requestID string) (BackfillStats, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.stats[requestID]
	if !ok {
		return BackfillStats{}, false
	}
	return *s, true
}

// Run drains the request channel until ctx is cancelled, processing one
// request fully before pulling the next.
func (w *BackfillWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			w.process(ctx, req)
		}
	}
}

func (w *BackfillWorker) process(ctx context.Context, req *BackfillRequest) {
	adapter, ok := w.adapters[req.SourceID]
	if !ok {
		log.Errorf("INGEST/BACKFILL > no adapter registered for source %s, dropping request %s", req.SourceID, req.ID)
		return
	}

	wanted := toSet(req.TagAddresses)
	tags, err := repository.GetTagRepository().ListEnabled(req.SourceID)
	if err != nil {
		log.Errorf("INGEST/BACKFILL > list tags for %s: %v", req.SourceID, err)
		return
	}
	tagsByAddress := make(map[string]*model.Tag, len(req.TagAddresses))
	for _, t := range tags {
		if wanted[t.Address] {
			tagsByAddress[t.Address] = t
		}
	}

	chunkStart := req.StartTime
	for chunkStart.Before(req.EndTime) {
		chunkEnd := chunkStart.Add(req.ChunkDuration)
		if chunkEnd.After(req.EndTime) {
			chunkEnd = req.EndTime
		}

		points, err := w.runChunk(ctx, req, adapter, tagsByAddress, chunkStart, chunkEnd)
		w.mu.Lock()
		s := w.stats[req.ID]
		if err != nil {
			log.Errorf("INGEST/BACKFILL > chunk [%s,%s) of request %s failed: %v", chunkStart, chunkEnd, req.ID, err)
			if s != nil {
				s.ChunksFailed++
			}
		} else if s != nil {
			s.ChunksDone++
			s.PointsProcessed += int64(points)
		}
		w.mu.Unlock()

		chunkStart = chunkEnd
	}
}

func (w *BackfillWorker) runChunk(ctx context.Context, req *BackfillRequest, adapter SourceAdapter, tagsByAddress map[string]*model.Tag, from, to time.Time) (int, error) {
	readings, err := adapter.ReadHistoricalBatch(ctx, req.TagAddresses, from, to)
	if err != nil {
		return 0, fmt.Errorf("read historical batch: %w", err)
	}

	batch := &model.Batch{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), SourceID: req.SourceID}
	for _, r := range readings {
		tag, ok := tagsByAddress[r.Address]
		if !ok {
			continue
		}
		value, ok := Coerce(r.Value)
		if !ok {
			continue
		}
		point := model.DataPoint{
			SequenceID:  tag.SequenceID,
			Timestamp:   r.Timestamp,
			Value:       value,
			Quality:     model.QualityGood,
			SourceTag:   tag.Address,
			ReceiveTime: time.Now().UTC(),
		}
		if err := point.Validate(); err != nil {
			continue
		}
		batch.Points = append(batch.Points, point)
	}
	if len(batch.Points) == 0 {
		return 0, nil
	}
	batch.Disambiguate()

	if w.pub != nil {
		data, err := marshalBatch(batch)
		if err != nil {
			return 0, fmt.Errorf("marshal: %w", err)
		}
		if _, err := w.pub.Publish(req.SourceID, data); err != nil {
			return 0, fmt.Errorf("publish: %w", err)
		}
	}
	return len(batch.Points), nil
}

func countChunks(from, to time.Time, chunk time.Duration) int {
	if chunk <= 0 {
		chunk = DefaultChunkDuration
	}
	total := to.Sub(from)
	if total <= 0 {
		return 0
	}
	n := int(total / chunk)
	if total%chunk != 0 {
		n++
	}
	return n
}
