// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package repository is the metadata store gateway (C2): the
// transactional, UPSERT-capable home for patterns, roles, clusters,
// suggestions, bindings, the knowledge base, and feedback. It is built on
// sqlx over sqlite3, with squirrel for the one dynamically filtered query
// (TagRepository.ListEnabled).
package repository

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/pattern-flywheel/historian/pkg/log"
)

var (
	dbConnOnce     sync.Once
	dbConnInstance *DBConnection
)

// DBConnection wraps the process-wide sqlx handle. Only sqlite3 is
// supported; nothing in this domain needs a second backend.
type DBConnection struct {
	DB *sqlx.DB
}

// Connect opens (and, on first call, migrates) the metadata store. It is
// one of the fatal-startup conditions: an unreachable store here aborts
// the process with exit code 3.
func Connect(dsn string) {
	dbConnOnce.Do(func() {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &Hooks{}))

		dbHandle, err := sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", dsn))
		if err != nil {
			log.Abortf("REPOSITORY/DBCONNECTION > could not open metadata store: %s", err.Error())
		}

		// sqlite does not multithread; one connection avoids lock contention.
		dbHandle.SetMaxOpenConns(1)

		if err := MigrateUp(dbHandle.DB); err != nil {
			log.Abortf("REPOSITORY/DBCONNECTION > could not migrate metadata store: %s", err.Error())
		}

		dbConnInstance = &DBConnection{DB: dbHandle}
	})
}

// GetConnection returns the singleton connection. Exits the process (via
// log.Fatal) if Connect was never called — a programming-error guard.
func GetConnection() *DBConnection {
	if dbConnInstance == nil {
		log.Fatal("REPOSITORY/DBCONNECTION > metadata store not initialized, call Connect first")
	}
	return dbConnInstance
}

// Optimize refreshes table statistics. Called from the daily maintenance
// job (C11).
func (c *DBConnection) Optimize() error {
	start := time.Now()
	if _, err := c.DB.Exec(`ANALYZE`); err != nil {
		return fmt.Errorf("REPOSITORY/DBCONNECTION > optimize: %w", err)
	}
	log.Debugf("REPOSITORY/DBCONNECTION > ANALYZE took %s", time.Since(start))
	return nil
}
