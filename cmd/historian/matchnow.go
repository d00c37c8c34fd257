// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"flag"

	"github.com/pattern-flywheel/historian/internal/flywheel"
	"github.com/pattern-flywheel/historian/pkg/log"
)

// cmdMatchNow implements `historian match-now [--source=<id>]`: runs
// the behavioral matcher and the proactive matcher synchronously, one
// pass each, outside of the scheduler's cadence — useful right after
// loading a new pattern library or wiring up a new source.
func cmdMatchNow(args []string) int {
	fs := flag.NewFlagSet("match-now", flag.ContinueOnError)
	source := fs.String("source", "", "restrict the proactive matcher to one source ID")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg := matchingConfig()

	n, err := flywheel.RunBehavioralMatcher(cfg)
	if err != nil {
		log.Errorf("MATCH-NOW > behavioral matcher: %v", err)
		return exitFatal
	}
	log.Infof("MATCH-NOW > behavioral matcher produced %d suggestions", n)

	m, err := flywheel.RunProactiveMatcher(cfg, *source)
	if err != nil {
		log.Errorf("MATCH-NOW > proactive matcher: %v", err)
		return exitFatal
	}
	log.Infof("MATCH-NOW > proactive matcher produced %d suggestions", m)

	return exitOK
}
