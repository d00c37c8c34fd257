// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pattern-flywheel/historian/internal/model"
)

func TestClusterIDIsDeterministicAndOrderIndependent(t *testing.T) {
	a := ClusterID([]int64{3, 1, 2})
	b := ClusterID([]int64{1, 2, 3})
	assert.Equal(t, a, b)

	c := ClusterID([]int64{1, 2, 4})
	assert.NotEqual(t, a, c)
}

func TestClusterRepositoryUpsertIsIdempotent(t *testing.T) {
	repo := GetClusterRepository()

	members := []int64{10, 11, 12}
	c1 := &model.Cluster{MemberSequenceIDs: members, Cohesion: 0.8}
	require.NoError(t, repo.Upsert(c1))

	c2 := &model.Cluster{MemberSequenceIDs: members, Cohesion: 0.9}
	require.NoError(t, repo.Upsert(c2))
	assert.Equal(t, c1.ID, c2.ID)

	fetched, err := repo.GetByID(c1.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, fetched.Cohesion, 0.0001)
	assert.ElementsMatch(t, members, fetched.MemberSequenceIDs)
}

func TestClusterRepositoryDeactivateStale(t *testing.T) {
	repo := GetClusterRepository()
	c := &model.Cluster{MemberSequenceIDs: []int64{20, 21}, Cohesion: 0.5}
	require.NoError(t, repo.Upsert(c))

	n, err := repo.DeactivateStale(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	active, err := repo.Active()
	require.NoError(t, err)
	for _, a := range active {
		assert.NotEqual(t, c.ID, a.ID)
	}
}
