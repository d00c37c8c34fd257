// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scheduler drives the analytical jobs (C7-C11) on independent
// cadences: one process-wide gocron.Scheduler, one NewJob call per job
// in Start, each wrapped in singleton mode so concurrent executions of the
// same job are prevented by a scheduler option instead of hand-rolled
// locking. Each job's underlying run is itself wrapped in retry.Job so
// a transient queue/store failure mid-run gets a capped backoff before
// the job gives up for that cadence.
package scheduler

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/pattern-flywheel/historian/internal/cache"
	"github.com/pattern-flywheel/historian/internal/flywheel"
	"github.com/pattern-flywheel/historian/internal/learning"
	"github.com/pattern-flywheel/historian/internal/metrics"
	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/internal/retry"
	"github.com/pattern-flywheel/historian/internal/timeseries"
	"github.com/pattern-flywheel/historian/pkg/log"
)

// Cadences holds the independent run intervals for each analytical
// job. Zero values fall back to the documented defaults.
type Cadences struct {
	Aggregator  time.Duration // default 5m
	Correlation time.Duration // default 15m
	Cluster     time.Duration // default 15m
	Matcher     time.Duration // default 15m
	Learning    time.Duration // default 1h
	Maintenance time.Duration // default 24h
}

func (c Cadences) withDefaults() Cadences {
	if c.Aggregator <= 0 {
		c.Aggregator = 5 * time.Minute
	}
	if c.Correlation <= 0 {
		c.Correlation = 15 * time.Minute
	}
	if c.Cluster <= 0 {
		c.Cluster = 15 * time.Minute
	}
	if c.Matcher <= 0 {
		c.Matcher = 15 * time.Minute
	}
	if c.Learning <= 0 {
		c.Learning = time.Hour
	}
	if c.Maintenance <= 0 {
		c.Maintenance = 24 * time.Hour
	}
	return c
}

// Deps bundles every process-wide handle an analytical job reads from
// or writes through.
type Deps struct {
	Store *timeseries.Store
	Cache *cache.Cache

	Aggregator  flywheel.AggregatorConfig
	Correlation flywheel.CorrelationConfig
	Cluster     flywheel.ClusterConfig
	Matching    flywheel.MatchingConfig
	Learning    learning.Config
	Maintenance learning.MaintenanceConfig
}

// Scheduler owns the process-wide gocron instance registering C7-C11.
type Scheduler struct {
	s gocron.Scheduler
}

// Start builds and starts the scheduler, registering one job per
// analytical component at the cadence cds names. Each job runs in
// singleton-reschedule mode: an overrunning invocation is never
// double-started, and the next tick is skipped rather than queued.
func Start(deps Deps, cds Cadences) (*Scheduler, error) {
	cds = cds.withDefaults()

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sched := &Scheduler{s: s}

	if _, err := s.NewJob(
		gocron.DurationJob(cds.Aggregator),
		gocron.NewTask(func() {
			var n int
			if err := metrics.ObserveJob("aggregator", func() error {
				return retry.Job(func() error {
					var runErr error
					n, runErr = flywheel.RunAggregator(deps.Aggregator, deps.Store, deps.Cache)
					return runErr
				})
			}); err != nil {
				log.Errorf("SCHEDULER > aggregator run failed after retries: %v", err)
				return
			}
			log.Infof("SCHEDULER > aggregator computed %d fingerprints", n)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	if _, err := s.NewJob(
		gocron.DurationJob(cds.Correlation),
		gocron.NewTask(func() {
			var results []flywheel.CorrelationResult
			if err := metrics.ObserveJob("correlation", func() error {
				return retry.Job(func() error {
					var runErr error
					results, runErr = flywheel.RunCorrelation(deps.Correlation, deps.Store, deps.Cache)
					return runErr
				})
			}); err != nil {
				log.Errorf("SCHEDULER > correlation run failed after retries: %v", err)
				return
			}
			log.Infof("SCHEDULER > correlation produced %d edges", len(results))
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	if _, err := s.NewJob(
		gocron.DurationJob(cds.Cluster),
		gocron.NewTask(func() {
			var clusters []*model.Cluster
			if err := metrics.ObserveJob("cluster", func() error {
				return retry.Job(func() error {
					var runErr error
					clusters, runErr = flywheel.RunClusterDetector(deps.Cluster, deps.Cache)
					return runErr
				})
			}); err != nil {
				log.Errorf("SCHEDULER > cluster detection failed after retries: %v", err)
				return
			}
			log.Infof("SCHEDULER > detected %d clusters", len(clusters))
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	if _, err := s.NewJob(
		gocron.DurationJob(cds.Matcher),
		gocron.NewTask(func() {
			var n int
			if err := metrics.ObserveJob("matcher_behavioral", func() error {
				return retry.Job(func() error {
					var runErr error
					n, runErr = flywheel.RunBehavioralMatcher(deps.Matching)
					return runErr
				})
			}); err != nil {
				log.Errorf("SCHEDULER > behavioral matcher failed after retries: %v", err)
				return
			}
			log.Infof("SCHEDULER > behavioral matcher produced %d suggestions", n)

			var m int
			if err := metrics.ObserveJob("matcher_proactive", func() error {
				return retry.Job(func() error {
					var runErr error
					m, runErr = flywheel.RunProactiveMatcher(deps.Matching, "")
					return runErr
				})
			}); err != nil {
				log.Errorf("SCHEDULER > proactive matcher failed after retries: %v", err)
				return
			}
			log.Infof("SCHEDULER > proactive matcher produced %d suggestions", m)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	if _, err := s.NewJob(
		gocron.DurationJob(cds.Learning),
		gocron.NewTask(func() {
			if err := metrics.ObserveJob("learning_decay", func() error {
				return retry.Job(func() error {
					return learning.ApplyDecay(deps.Learning)
				})
			}); err != nil {
				log.Errorf("SCHEDULER > confidence decay failed after retries: %v", err)
			}
			var n int
			if err := metrics.ObserveJob("learning_expiry", func() error {
				return retry.Job(func() error {
					var runErr error
					n, runErr = learning.ExpireSuggestions()
					return runErr
				})
			}); err != nil {
				log.Errorf("SCHEDULER > suggestion expiry failed after retries: %v", err)
				return
			}
			log.Infof("SCHEDULER > learning run: %d suggestions expired", n)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	if _, err := s.NewJob(
		gocron.DurationJob(cds.Maintenance),
		gocron.NewTask(func() {
			var report *learning.Report
			if err := metrics.ObserveJob("maintenance", func() error {
				return retry.Job(func() error {
					var runErr error
					report, runErr = learning.RunMaintenance(deps.Maintenance)
					return runErr
				})
			}); err != nil {
				log.Errorf("SCHEDULER > maintenance run failed after retries: %v", err)
				return
			}
			log.Infof("SCHEDULER > maintenance purged suggestions=%d correlations=%d clusters=%d feedback=%d fingerprints=%d",
				report.PurgedSuggestions, report.PurgedCorrelations, report.PurgedClusters,
				report.PurgedFeedback, report.PurgedFingerprints)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	s.Start()
	return sched, nil
}

// Shutdown stops the scheduler, waiting for any in-flight job to
// observe its own cancellation point and return.
func (sc *Scheduler) Shutdown() error {
	if sc == nil {
		return nil
	}
	return sc.s.Shutdown()
}
