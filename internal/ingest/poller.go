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

	"golang.org/x/time/rate"

	"github.com/google/uuid"

	"github.com/pattern-flywheel/historian/internal/cache"
	"github.com/pattern-flywheel/historian/internal/metrics"
	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/internal/queue"
	"github.com/pattern-flywheel/historian/internal/repository"
	"github.com/pattern-flywheel/historian/internal/retry"
	"github.com/pattern-flywheel/historian/pkg/log"
)

// Poller drives one source's current-value read loop at a configured
// interval, publishing each read as a Batch to the telemetry topic and
// refreshing the current-value cache
type Poller struct {
	sourceID string
	adapter  SourceAdapter
	pub      *queue.Publisher
	cache    *cache.Cache
	limiter  *rate.Limiter

	mu     sync.RWMutex
	status ConnectionStatus
}

// NewPoller constructs a Poller for one source. pub may be nil, in
// which case batches are coerced and cached but not published — the
// behavior the queue gateway already has when no broker is configured.
func NewPoller(sourceID string, adapter SourceAdapter, pub *queue.Publisher, c *cache.Cache, pollInterval time.Duration) *Poller {
	// Burst of 1: a source is never polled faster than its own
	// interval even if Run is invoked out of its normal cadence (e.g.
	// a manual "match-now"-style trigger).
	every := rate.Every(pollInterval)
	return &Poller{
		sourceID: sourceID,
		adapter:  adapter,
		pub:      pub,
		cache:    c,
		limiter:  rate.NewLimiter(every, 1),
		status:   StatusDisconnected,
	}
}

// Status returns the poller's advisory connection status.
func (p *Poller) Status() ConnectionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Poller) setStatus(s ConnectionStatus) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// PollOnce fetches enabled tags for the source, reads their current
// values, coerces and disambiguates them into a Batch, publishes it,
// and updates the current-value cache entry for each tag. It respects
// the poller's rate limiter, returning immediately without error if
// called before the next token is available.
func (p *Poller) PollOnce(ctx context.Context) error {
	if !p.limiter.Allow() {
		return nil
	}

	p.setStatus(StatusConnecting)
	if !p.adapter.IsAvailable(ctx) {
		p.setStatus(StatusError)
		return fmt.Errorf("INGEST/POLLER > source %s unavailable", p.sourceID)
	}

	tags, err := repository.GetTagRepository().ListEnabled(p.sourceID)
	if err != nil {
		p.setStatus(StatusError)
		return fmt.Errorf("INGEST/POLLER > list tags for %s: %w", p.sourceID, err)
	}
	if len(tags) == 0 {
		p.setStatus(StatusConnected)
		return nil
	}

	bySequence := make(map[string]*model.Tag, len(tags))
	addresses := make([]string, 0, len(tags))
	for _, t := range tags {
		bySequence[t.Address] = t
		addresses = append(addresses, t.Address)
	}

	var readings []Reading
	readErr := retry.Reader(3, func() error {
		var err error
		readings, err = p.adapter.ReadCurrentValues(ctx, addresses)
		return err
	})
	if readErr != nil {
		p.setStatus(StatusError)
		return fmt.Errorf("INGEST/POLLER > read current values for %s: %w", p.sourceID, readErr)
	}
	p.setStatus(StatusConnected)

	batch := &model.Batch{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), SourceID: p.sourceID}
	for _, r := range readings {
		tag, ok := bySequence[r.Address]
		if !ok {
			continue
		}
		value, ok := Coerce(r.Value)
		if !ok {
			log.Warnf("INGEST/POLLER > skipping non-numeric reading for %s", tag.Address)
			metrics.PointsSkipped.WithLabelValues("non_numeric").Inc()
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
			log.Warnf("INGEST/POLLER > skipping invalid point for %s: %v", tag.Address, err)
			metrics.PointsSkipped.WithLabelValues("invalid").Inc()
			continue
		}
		batch.Points = append(batch.Points, point)
		if p.cache != nil {
			p.cache.PutValue(tag.SequenceID, value, r.Timestamp)
		}
	}

	if len(batch.Points) == 0 {
		return nil
	}
	batch.Disambiguate()

	if p.pub == nil {
		return nil
	}
	data, err := marshalBatch(batch)
	if err != nil {
		return fmt.Errorf("INGEST/POLLER > marshal batch for %s: %w", p.sourceID, err)
	}
	if _, err := p.pub.Publish(p.sourceID, data); err != nil {
		metrics.PublishFailures.WithLabelValues(string(queue.TopicTelemetryLive)).Inc()
		return fmt.Errorf("INGEST/POLLER > publish batch for %s: %w", p.sourceID, err)
	}
	return nil
}

// Coerce reduces an adapter-reported reading to a float64, rejecting
// strings and other non-numeric kinds; NaN and ±Inf pass through here
// and are rejected afterwards by the point's Validate
func Coerce(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
