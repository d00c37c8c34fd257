// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics collects process-wide pipeline counters and, when
// configured, exposes them on a minimal Prometheus endpoint. The
// counters themselves are always live; only the HTTP exposition is
// optional.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pattern-flywheel/historian/pkg/log"
)

var (
	// PointsSkipped counts telemetry points dropped at ingestion
	// (non-numeric, non-finite, pre-epoch), labeled by reason.
	PointsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "historian_points_skipped_total",
		Help: "Telemetry points dropped before reaching the time-series store.",
	}, []string{"reason"})

	// PublishFailures counts queue publishes that could not be
	// acknowledged within their deadline.
	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "historian_publish_failures_total",
		Help: "Queue publishes that failed or timed out.",
	}, []string{"topic"})

	// SuggestionsCreated counts suggestions upserted by either
	// matcher submode.
	SuggestionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "historian_suggestions_created_total",
		Help: "Suggestions upserted by the pattern matcher.",
	}, []string{"mode"})

	// JobDuration records wall-clock time for each analytical job run.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "historian_job_duration_seconds",
		Help: "Duration of each scheduled analytical job run.",
	}, []string{"job"})
)

// ObserveJob times fn under the named job's histogram.
func ObserveJob(job string, fn func() error) error {
	start := time.Now()
	err := fn()
	JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	return err
}

// Serve starts the /metrics HTTP endpoint on addr and blocks until ctx
// is cancelled. A blank addr is a no-op — counters keep accumulating
// in-process but nothing exposes them.
func Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("METRICS > shutdown: %v", err)
		}
	}()

	log.Infof("METRICS > listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warnf("METRICS > server: %v", err)
	}
}
