// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"os"
	"path/filepath"
	"testing"
)

// TestMain opens one on-disk sqlite database (sqlite3's :memory: does
// not survive the connection-pool churn sqlx can do under load) shared
// by every test in this package.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "historian-repo-test")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	Connect(filepath.Join(dir, "test.db"))

	os.Exit(m.Run())
}
