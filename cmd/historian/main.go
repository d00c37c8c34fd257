// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command historian is the Pattern Flywheel operator surface: a single
// binary exposing the subcommands run, backfill, status, match-now,
// approve, reject, and load-patterns as a flag-and-subcommand entry
// point, with no HTTP server, GraphQL schema, or web UI.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/gops/agent"

	"github.com/pattern-flywheel/historian/internal/cache"
	"github.com/pattern-flywheel/historian/internal/config"
	"github.com/pattern-flywheel/historian/internal/queue"
	"github.com/pattern-flywheel/historian/internal/repository"
	"github.com/pattern-flywheel/historian/internal/timeseries"
	"github.com/pattern-flywheel/historian/pkg/log"
	"github.com/pattern-flywheel/historian/pkg/runtimeEnv"
)

// Exit codes: 0 success, 2 usage error, 3 fatal external-dependency
// failure at startup, 4 operation cancelled.
const (
	exitOK       = 0
	exitUsage    = 2
	exitFatal    = 3
	exitCanceled = 4
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: historian [flags] <command> [args]

commands:
  run                                   start the ingestion and analytical pipeline
  backfill <source> <start> <end> [--chunk=30d]
                                         submit a historical backfill request and wait for it to drain
  status                                print pipeline and pending-suggestion counts
  match-now [--source=<id>]             run the behavioral and proactive matchers once, synchronously
  approve <suggestion-id> [--reason=…]  approve a pending suggestion
  reject <suggestion-id> --reason=…     reject a pending suggestion
  load-patterns <path>                  seed/refresh the pattern catalog from a JSON document

flags:`)
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

// run contains the whole CLI so defers (closing the metadata store,
// the queue client) fire before os.Exit.
func run() int {
	var (
		flagConfigFile = flag.String("config", "./config.json", "path to config.json")
		flagLogLevel   = flag.String("loglevel", "info", "log level: debug, info, warn, error")
		flagGops       = flag.Bool("gops", false, "start the gops debug agent")
	)
	flag.Usage = usage
	flag.Parse()

	log.SetLogLevel(*flagLogLevel)

	if *flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Warnf("MAIN > gops agent failed to start: %v", err)
		}
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return exitUsage
	}
	cmd, rest := args[0], args[1:]

	if err := config.Init(*flagConfigFile); err != nil {
		log.Errorf("MAIN > config: %v", err)
		return exitFatal
	}

	repository.Connect(config.Keys.MetadataStoreDSN)
	defer repository.GetConnection().DB.Close()

	queue.Connect(queue.Config(config.Keys.Queue))

	c := cache.Get(cache.Config{
		MaxMemoryBytes:    256 << 20,
		ValueTTL:          valueTTL,
		CorrelationTTL:    correlationTTL(),
		ClusterSummaryTTL: clusterSummaryTTL,
		FingerprintTTL:    fingerprintTTL(),
	})
	store := timeseries.GetStore()

	runtimeEnv.SystemdNotifiy(true, "dispatching "+cmd)

	switch cmd {
	case "run":
		return cmdRun(store, c)
	case "backfill":
		return cmdBackfill(rest)
	case "status":
		return cmdStatus(store)
	case "match-now":
		return cmdMatchNow(rest)
	case "approve":
		return cmdApprove(rest)
	case "reject":
		return cmdReject(rest)
	case "load-patterns":
		return cmdLoadPatterns(rest)
	default:
		fmt.Fprintf(os.Stderr, "historian: unknown command %q\n\n", cmd)
		usage()
		return exitUsage
	}
}
