// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ingest is the ingestion pipeline (C6): a poll-based reader
// per source, a telemetry-topic consumer that writes into the
// time-series store, and a backfill worker. None of them is a scheduler
// job: each runs as its own goroutine, the reader as a per-source poll
// loop.
package ingest

import (
	"context"
	"time"
)

// Reading is one raw value a SourceAdapter hands back for a tag
// address, before Coerce has validated it.
type Reading struct {
	Address   string
	Value     interface{}
	Timestamp time.Time
}

// SourceAdapter is the boundary between the ingestion pipeline and a
// concrete industrial protocol (OPC-UA, PI, CSV, ...). No protocol
// implementation ships with this module — only the interface and a
// fixture-driven replay adapter — per the Non-goals.
type SourceAdapter interface {
	// Initialize prepares the adapter for a given source (e.g. dialing
	// a connection); called once before any read.
	Initialize(ctx context.Context, sourceID string) error

	// IsAvailable reports whether the adapter can currently serve reads,
	// feeding the advisory DataSource connection status.
	IsAvailable(ctx context.Context) bool

	// ReadCurrentValues returns the latest reading for each requested
	// tag address, in any order; addresses with no current value are
	// simply omitted from the result.
	ReadCurrentValues(ctx context.Context, addresses []string) ([]Reading, error)

	// ReadHistoricalBatch returns every reading for addresses within
	// [from, to), used by the backfill worker one chunk at a time.
	ReadHistoricalBatch(ctx context.Context, addresses []string, from, to time.Time) ([]Reading, error)
}

// ConnectionStatus is the advisory DataSource state machine:
// disconnected -> connecting -> {connected, error} -> disconnected,
// with error re-entrant after a cool-down. It is never persisted; it
// only informs operator-facing status queries.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)
