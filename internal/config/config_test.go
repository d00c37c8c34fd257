// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMissingFileKeepsDefaults(t *testing.T) {
	require.NoError(t, Init(filepath.Join(t.TempDir(), "does-not-exist.json")))
	assert.Equal(t, 5000, Keys.Pipeline.PollIntervalMs)
}

func TestInitOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pipeline": {"pollIntervalMs": 2000}, "cluster": {"minSize": 4}}`), 0o644))

	require.NoError(t, Init(path))
	assert.Equal(t, 2000, Keys.Pipeline.PollIntervalMs)
	assert.Equal(t, 4, Keys.Cluster.MinSize)
}

func TestInitRejectsMalformedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"correlation": {"minR": 5}}`), 0o644))

	err := Init(path)
	assert.Error(t, err)
}
