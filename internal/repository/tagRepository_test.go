// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pattern-flywheel/historian/internal/model"
)

func TestTagRepositoryCreateAndLookup(t *testing.T) {
	repo := GetTagRepository()

	tag := &model.Tag{
		Name:               "chiller1.supply.temp",
		SourceID:           "plc-1",
		Address:            "DB10.DBD0",
		Unit:               "degF",
		ValueType:          model.ValueTypeDouble,
		Enabled:            true,
		TypicalIntervalSec: 5,
	}
	require.NoError(t, repo.Create(tag))
	assert.NotEmpty(t, tag.ID)
	assert.Greater(t, tag.SequenceID, int64(0))

	byID, err := repo.GetByID(tag.ID)
	require.NoError(t, err)
	assert.Equal(t, tag.Name, byID.Name)

	bySeq, err := repo.GetBySequenceID(tag.SequenceID)
	require.NoError(t, err)
	assert.Equal(t, tag.ID, bySeq.ID)

	second := &model.Tag{Name: "chiller1.return.temp", SourceID: "plc-1", Address: "DB10.DBD4", ValueType: model.ValueTypeDouble, Enabled: true}
	require.NoError(t, repo.Create(second))
	assert.Equal(t, tag.SequenceID+1, second.SequenceID)

	enabled, err := repo.ListEnabled("plc-1")
	require.NoError(t, err)
	assert.Len(t, enabled, 2)

	require.NoError(t, repo.SetEnabled(tag.ID, false))
	enabled, err = repo.ListEnabled("plc-1")
	require.NoError(t, err)
	assert.Len(t, enabled, 1)
}
