// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"

	"github.com/pattern-flywheel/historian/pkg/log"
)

// cmdApprove implements `historian approve <suggestion-id> [--reason=…]`.
// The reason flag is accepted but informational only — approval never
// needs a justification, only rejection does; if given, it is written
// to the approval log line only and is not stored.
func cmdApprove(args []string) int {
	fs := flag.NewFlagSet("approve", flag.ContinueOnError)
	reason := fs.String("reason", "", "optional note, written to the approval log line (not stored)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "usage: historian approve <suggestion-id> [--reason=…]")
		return exitUsage
	}

	reviewer := currentUser()
	if err := approveSuggestion(rest[0], reviewer); err != nil {
		log.Errorf("APPROVE > %v", err)
		return exitFatal
	}
	if *reason != "" {
		log.Infof("APPROVE > %s approved by %s (%s)", rest[0], reviewer, *reason)
	} else {
		log.Infof("APPROVE > %s approved by %s", rest[0], reviewer)
	}
	return exitOK
}

// cmdReject implements `historian reject <suggestion-id> --reason=…`.
// Unlike approve, a reason is required and persisted on the suggestion
// row for later review.
func cmdReject(args []string) int {
	fs := flag.NewFlagSet("reject", flag.ContinueOnError)
	reason := fs.String("reason", "", "why this suggestion was rejected (required)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "usage: historian reject <suggestion-id> --reason=…")
		return exitUsage
	}
	if *reason == "" {
		fmt.Fprintln(os.Stderr, "historian reject: --reason is required")
		return exitUsage
	}

	reviewer := currentUser()
	if err := rejectSuggestion(rest[0], reviewer, *reason); err != nil {
		log.Errorf("REJECT > %v", err)
		return exitFatal
	}
	log.Infof("REJECT > %s rejected by %s: %s", rest[0], reviewer, *reason)
	return exitOK
}

func currentUser() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "operator"
	}
	return u.Username
}
