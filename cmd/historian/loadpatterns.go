// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"fmt"
	"os"

	"github.com/pattern-flywheel/historian/internal/repository"
	"github.com/pattern-flywheel/historian/pkg/log"
)

// cmdLoadPatterns implements `historian load-patterns <path>`: seeds
// or refreshes the pattern catalog from a JSON document, the operator
// path into LoadPatternLibrary that replaces hand-written SQL inserts.
// Not one of the named commands, but the catalog has to be
// populated somehow before the matcher (C10) has anything to score
// against, so the operator surface carries it as a thin wrapper.
func cmdLoadPatterns(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: historian load-patterns <path-to-pattern-library.json>")
		return exitUsage
	}
	if err := repository.LoadPatternLibrary(args[0]); err != nil {
		log.Errorf("LOAD-PATTERNS > %v", err)
		return exitFatal
	}
	log.Infof("LOAD-PATTERNS > loaded pattern library from %s", args[0])
	return exitOK
}
