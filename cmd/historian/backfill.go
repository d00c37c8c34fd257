// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pattern-flywheel/historian/internal/config"
	"github.com/pattern-flywheel/historian/internal/ingest"
	"github.com/pattern-flywheel/historian/internal/queue"
	"github.com/pattern-flywheel/historian/internal/repository"
	"github.com/pattern-flywheel/historian/pkg/log"
)

// cmdBackfill implements `historian backfill <source> <start> <end>
// [--chunk=30d]`: it drives its own BackfillWorker (there is no
// running `historian run` process to hand the request to — this
// command is a self-contained batch job), submits exactly one
// request, and blocks until every chunk has been processed or failed,
// printing a final progress line.
func cmdBackfill(args []string) int {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	chunk := fs.String("chunk", "30d", "chunk duration, e.g. 30d or 720h")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	rest := fs.Args()
	if len(rest) != 3 {
		fmt.Fprintln(os.Stderr, "usage: historian backfill <source> <start-RFC3339> <end-RFC3339> [--chunk=30d]")
		return exitUsage
	}
	sourceID, startRaw, endRaw := rest[0], rest[1], rest[2]

	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "historian backfill: bad start time %q: %v\n", startRaw, err)
		return exitUsage
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "historian backfill: bad end time %q: %v\n", endRaw, err)
		return exitUsage
	}
	if !end.After(start) {
		fmt.Fprintln(os.Stderr, "historian backfill: end must be after start")
		return exitUsage
	}
	chunkDur, err := parseChunkDuration(*chunk)
	if err != nil {
		fmt.Fprintf(os.Stderr, "historian backfill: bad --chunk %q: %v\n", *chunk, err)
		return exitUsage
	}

	var srcCfg config.SourceConfig
	found := false
	for _, s := range config.Keys.Sources {
		if s.ID == sourceID {
			srcCfg = s
			found = true
			break
		}
	}
	if !found {
		fmt.Fprintf(os.Stderr, "historian backfill: source %q is not configured\n", sourceID)
		return exitUsage
	}
	adapter, err := sourceAdapter(srcCfg)
	if err != nil {
		log.Errorf("BACKFILL > %v", err)
		return exitFatal
	}

	tags, err := repository.GetTagRepository().ListEnabled(sourceID)
	if err != nil {
		log.Errorf("BACKFILL > list tags for %s: %v", sourceID, err)
		return exitFatal
	}
	addresses := make([]string, 0, len(tags))
	for _, t := range tags {
		addresses = append(addresses, t.Address)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := adapter.Initialize(ctx, sourceID); err != nil {
		log.Errorf("BACKFILL > initialize %s: %v", sourceID, err)
		return exitFatal
	}

	var pub *queue.Publisher
	if client := queue.GetClient(); client != nil {
		pub, err = queue.NewPublisher(client, queue.TopicTelemetryBackfill)
		if err != nil {
			log.Errorf("BACKFILL > publisher: %v", err)
			return exitFatal
		}
	}

	worker := ingest.NewBackfillWorker(map[string]ingest.SourceAdapter{sourceID: adapter}, pub)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	req := worker.Enqueue(&ingest.BackfillRequest{
		SourceID:      sourceID,
		TagAddresses:  addresses,
		StartTime:     start,
		EndTime:       end,
		ChunkDuration: chunkDur,
	})

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Warn("BACKFILL > cancelled")
			return exitCanceled
		case <-ticker.C:
			stats, ok := worker.Stats(req.ID)
			if !ok {
				continue
			}
			log.Infof("BACKFILL > %s: %d/%d chunks done, %d failed, %d points",
				req.ID, stats.ChunksDone, stats.ChunksTotal, stats.ChunksFailed, stats.PointsProcessed)
			if stats.ChunksDone+stats.ChunksFailed >= stats.ChunksTotal {
				stop()
				<-workerDone
				if stats.ChunksFailed > 0 {
					return exitFatal
				}
				return exitOK
			}
		}
	}
}

// parseChunkDuration accepts either a whole-day suffix ("30d") or any
// time.ParseDuration string ("720h").
func parseChunkDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("want a positive whole number of days, got %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
