// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/internal/repository"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "historian-ingest-test")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	repository.Connect(filepath.Join(dir, "test.db"))
	os.Exit(m.Run())
}

// stubAdapter serves synthetic history and can be told to fail any
// chunk whose start time matches failFrom.
type stubAdapter struct {
	failFrom time.Time
}

func (a *stubAdapter) Initialize(ctx context.Context, sourceID string) error { return nil }
func (a *stubAdapter) IsAvailable(ctx context.Context) bool                  { return true }

func (a *stubAdapter) ReadCurrentValues(ctx context.Context, addresses []string) ([]Reading, error) {
	out := make([]Reading, len(addresses))
	for i, addr := range addresses {
		out[i] = Reading{Address: addr, Value: float64(i), Timestamp: time.Now().UTC()}
	}
	return out, nil
}

func (a *stubAdapter) ReadHistoricalBatch(ctx context.Context, addresses []string, from, to time.Time) ([]Reading, error) {
	if !a.failFrom.IsZero() && from.Equal(a.failFrom) {
		return nil, errors.New("stub: chunk unavailable")
	}
	var out []Reading
	for _, addr := range addresses {
		out = append(out,
			Reading{Address: addr, Value: 1.0, Timestamp: from},
			Reading{Address: addr, Value: 2.0, Timestamp: from.Add(time.Hour)},
		)
	}
	return out, nil
}

func seedBackfillTag(t *testing.T, sourceID string) *model.Tag {
	t.Helper()
	tag := &model.Tag{
		Name:     fmt.Sprintf("%s.flow", sourceID),
		SourceID: sourceID,
		Address:  fmt.Sprintf("%s/A1", sourceID),
		Enabled:  true,
	}
	require.NoError(t, repository.GetTagRepository().Create(tag))
	return tag
}

// A 65-day request at the default 30-day chunk slices into exactly
// three chunks, and a failure in the middle chunk still completes the
// other two.
func TestBackfillChunkingSplitsAndSurvivesMidChunkFailure(t *testing.T) {
	tag := seedBackfillTag(t, "src-bf-1")

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(65 * 24 * time.Hour)
	adapter := &stubAdapter{failFrom: start.Add(30 * 24 * time.Hour)}

	w := NewBackfillWorker(map[string]SourceAdapter{"src-bf-1": adapter}, nil)
	req := w.Enqueue(&BackfillRequest{
		SourceID:     "src-bf-1",
		TagAddresses: []string{tag.Address},
		StartTime:    start,
		EndTime:      end,
	})
	w.process(context.Background(), req)

	stats, ok := w.Stats(req.ID)
	require.True(t, ok)
	assert.Equal(t, 3, stats.ChunksTotal)
	assert.Equal(t, 2, stats.ChunksDone)
	assert.Equal(t, 1, stats.ChunksFailed)
	assert.Equal(t, int64(4), stats.PointsProcessed)
}

func TestCountChunksExactAndRemainder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	chunk := 30 * 24 * time.Hour

	assert.Equal(t, 3, countChunks(base, base.Add(65*24*time.Hour), chunk))
	assert.Equal(t, 2, countChunks(base, base.Add(60*24*time.Hour), chunk))
	assert.Equal(t, 1, countChunks(base, base.Add(time.Hour), chunk))
	assert.Equal(t, 0, countChunks(base, base, chunk))
}

// Enqueue beyond the bounded capacity drops the oldest queued request
// and forgets its stats, never blocking the caller.
func TestBackfillEnqueueDropsOldestOnOverflow(t *testing.T) {
	w := NewBackfillWorker(nil, nil)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var first *BackfillRequest
	for i := 0; i < cap(w.requests); i++ {
		req := w.Enqueue(&BackfillRequest{SourceID: "src", StartTime: start, EndTime: start.Add(time.Hour)})
		if i == 0 {
			first = req
		}
	}
	overflow := w.Enqueue(&BackfillRequest{SourceID: "src", StartTime: start, EndTime: start.Add(time.Hour)})

	_, ok := w.Stats(first.ID)
	assert.False(t, ok, "oldest request's stats must be dropped on overflow")
	_, ok = w.Stats(overflow.ID)
	assert.True(t, ok)
}

func TestCoerceAcceptsNumericKindsOnly(t *testing.T) {
	v, ok := Coerce(3.5)
	assert.True(t, ok)
	assert.Equal(t, 3.5, v)

	v, ok = Coerce(int64(7))
	assert.True(t, ok)
	assert.Equal(t, 7.0, v)

	v, ok = Coerce(true)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok = Coerce("42")
	assert.False(t, ok)
	_, ok = Coerce(nil)
	assert.False(t, ok)
}

// A batch crossing the queue boundary must come back with the same
// ordered points and quality codes it left with.
func TestBatchMarshalRoundTripPreservesOrderAndQuality(t *testing.T) {
	ts := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	in := &model.Batch{
		ID:        "batch-1",
		CreatedAt: ts,
		SourceID:  "plc-9",
		Points: []model.DataPoint{
			{SequenceID: 1, Timestamp: ts, Value: 1.5, Quality: model.QualityGood},
			{SequenceID: 1, Timestamp: ts.Add(time.Second), Value: 2.5, Quality: model.QualityUncertain},
			{SequenceID: 2, Timestamp: ts, Value: math.Pi, Quality: model.QualitySubstituted},
		},
	}

	data, err := marshalBatch(in)
	require.NoError(t, err)
	out, err := unmarshalBatch(data)
	require.NoError(t, err)

	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.SourceID, out.SourceID)
	require.Len(t, out.Points, len(in.Points))
	for i := range in.Points {
		assert.Equal(t, in.Points[i].SequenceID, out.Points[i].SequenceID)
		assert.True(t, in.Points[i].Timestamp.Equal(out.Points[i].Timestamp))
		assert.Equal(t, in.Points[i].Value, out.Points[i].Value)
		assert.Equal(t, in.Points[i].Quality, out.Points[i].Quality)
	}
}
