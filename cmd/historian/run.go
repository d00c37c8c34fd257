// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pattern-flywheel/historian/internal/archiver"
	"github.com/pattern-flywheel/historian/internal/cache"
	"github.com/pattern-flywheel/historian/internal/config"
	"github.com/pattern-flywheel/historian/internal/ingest"
	"github.com/pattern-flywheel/historian/internal/metrics"
	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/internal/queue"
	"github.com/pattern-flywheel/historian/internal/repository"
	"github.com/pattern-flywheel/historian/internal/scheduler"
	"github.com/pattern-flywheel/historian/internal/timeseries"
	"github.com/pattern-flywheel/historian/pkg/log"
	"github.com/pattern-flywheel/historian/pkg/runtimeEnv"
)

// cmdRun starts every long-lived piece of the pipeline — per-source
// pollers, the telemetry writer, the backfill worker, and the
// analytical scheduler — and blocks until SIGINT/SIGTERM, tearing
// everything down in reverse order of startup.
func cmdRun(store *timeseries.Store, c *cache.Cache) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := config.Keys.Metrics.Addr; addr != "" {
		go metrics.Serve(ctx, addr)
	}

	for _, t := range listAllTags() {
		store.RegisterFrequency(t.SequenceID, t.TypicalIntervalSec)
	}

	if bucket := config.Keys.Maintenance.ArchiveBucket; bucket != "" {
		target, err := archiver.NewTarget(ctx, archiver.TargetConfig{
			Bucket: bucket,
			Region: config.Keys.Maintenance.ArchiveRegion,
		})
		if err != nil {
			log.Errorf("RUN > archiver target: %v", err)
			return exitFatal
		}
		archiver.Start(target)
	}

	client := queue.GetClient()

	var wg sync.WaitGroup

	adapters := map[string]ingest.SourceAdapter{}
	var pub *queue.Publisher
	if client != nil {
		var err error
		pub, err = queue.NewPublisher(client, queue.TopicTelemetryLive)
		if err != nil {
			log.Errorf("RUN > publisher: %v", err)
			return exitFatal
		}
	}

	pollInterval := time.Duration(config.Keys.Pipeline.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	for _, src := range config.Keys.Sources {
		adapter, err := sourceAdapter(src)
		if err != nil {
			log.Errorf("RUN > source %s: %v", src.ID, err)
			continue
		}
		if err := adapter.Initialize(ctx, src.ID); err != nil {
			log.Errorf("RUN > initialize source %s: %v", src.ID, err)
			continue
		}
		adapters[src.ID] = adapter

		poller := ingest.NewPoller(src.ID, adapter, pub, c, pollInterval)
		wg.Add(1)
		go func(sourceID string) {
			defer wg.Done()
			ticker := time.NewTicker(pollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := poller.PollOnce(ctx); err != nil {
						log.Warnf("RUN > poll %s: %v", sourceID, err)
					}
				}
			}
		}(src.ID)
	}

	backfillWorker := ingest.NewBackfillWorker(adapters, pub)
	wg.Add(1)
	go func() {
		defer wg.Done()
		backfillWorker.Run(ctx)
	}()

	if client != nil {
		writer, err := ingest.NewTimeSeriesWriter(client, "historian-writer")
		if err != nil {
			log.Errorf("RUN > time-series writer: %v", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-ctx.Done():
						return
					default:
					}
					n, err := writer.RunOnce(config.Keys.Pipeline.BatchSize, time.Second)
					if err != nil {
						log.Warnf("RUN > time-series writer: %v", err)
						continue
					}
					if n == 0 {
						time.Sleep(time.Second)
					}
				}
			}()
		}
	}

	sched, err := scheduler.Start(scheduler.Deps{
		Store:       store,
		Cache:       c,
		Aggregator:  aggregatorConfig(),
		Correlation: correlationConfig(),
		Cluster:     clusterConfig(),
		Matching:    matchingConfig(),
		Learning:    learningConfig(),
		Maintenance: maintenanceConfig(),
	}, scheduler.Cadences{})
	if err != nil {
		log.Errorf("RUN > scheduler: %v", err)
		return exitFatal
	}

	runtimeEnv.SystemdNotifiy(true, "running")
	log.Info("RUN > pipeline started")

	<-ctx.Done()
	log.Info("RUN > shutdown signal received, draining")

	if err := sched.Shutdown(); err != nil {
		log.Warnf("RUN > scheduler shutdown: %v", err)
	}
	wg.Wait()

	return exitCanceled
}

func listAllTags() []*model.Tag {
	tags, err := repository.GetTagRepository().ListEnabled("")
	if err != nil {
		log.Warnf("RUN > list tags: %v", err)
		return nil
	}
	return tags
}
