// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package flywheel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pattern-flywheel/historian/internal/model"
)

func edge(a, b int64, r float64) *model.CorrelationEdge {
	return &model.CorrelationEdge{SequenceIDA: a, SequenceIDB: b, R: r}
}

// Five tags with uniformly high pairwise correlation must land in one
// community whose cohesion matches the edge weight, modeling the
// "happy path, pump" scenario's five-tag centrifugal-pump cluster.
func TestDetectClustersFindsOneDenseGroup(t *testing.T) {
	edges := []*model.CorrelationEdge{
		edge(1, 2, 0.82), edge(1, 3, 0.80), edge(1, 4, 0.78), edge(1, 5, 0.81),
		edge(2, 3, 0.83), edge(2, 4, 0.79), edge(2, 5, 0.80),
		edge(3, 4, 0.82), edge(3, 5, 0.79),
		edge(4, 5, 0.81),
	}
	candidates := detectClusters(edges, ClusterConfig{})
	if assert.Len(t, candidates, 1) {
		assert.Len(t, candidates[0].MemberSequenceIDs, 5)
		assert.GreaterOrEqual(t, candidates[0].Cohesion, 0.50)
	}
}

// Two dense triads connected by one weak cross-edge must not merge into
// a single 6-member community; modularity keeps them apart.
func TestDetectClustersSeparatesWeaklyLinkedGroups(t *testing.T) {
	edges := []*model.CorrelationEdge{
		edge(1, 2, 0.90), edge(1, 3, 0.88), edge(2, 3, 0.91),
		edge(4, 5, 0.92), edge(4, 6, 0.89), edge(5, 6, 0.90),
		edge(3, 4, 0.61),
	}
	candidates := detectClusters(edges, ClusterConfig{})
	for _, c := range candidates {
		assert.LessOrEqual(t, len(c.MemberSequenceIDs), 5)
	}
}

func TestDetectClustersRejectsUndersizedAndLowCohesionGroups(t *testing.T) {
	// A single pair (size 2) never clears MinSize even at r=1.0.
	candidates := detectClusters([]*model.CorrelationEdge{edge(1, 2, 1.0)}, ClusterConfig{})
	assert.Empty(t, candidates)

	// Three nodes whose only surviving edges average under the 0.50 floor.
	low := []*model.CorrelationEdge{edge(1, 2, 0.40), edge(1, 3, 0.42), edge(2, 3, 0.38)}
	candidates = detectClusters(low, ClusterConfig{})
	assert.Empty(t, candidates)
}

func TestDetectClustersBoundarySizesAreRetained(t *testing.T) {
	// Exactly 3 members at exactly the 0.50 cohesion floor: retained.
	three := []*model.CorrelationEdge{edge(1, 2, 0.50), edge(1, 3, 0.50), edge(2, 3, 0.50)}
	candidates := detectClusters(three, ClusterConfig{})
	if assert.Len(t, candidates, 1) {
		assert.Len(t, candidates[0].MemberSequenceIDs, 3)
		assert.InDelta(t, 0.50, candidates[0].Cohesion, 1e-9)
	}
}

func TestInternalCohesionIsMeanOfInducedSubgraphEdges(t *testing.T) {
	g := buildGraph([]*model.CorrelationEdge{edge(1, 2, 0.6), edge(2, 3, 0.8), edge(1, 3, 1.0)})
	cohesion := internalCohesion(g, []int64{1, 2, 3})
	assert.InDelta(t, 0.8, cohesion, 1e-9)
}

func TestBuildGraphIgnoresSelfLoopsAndIsSymmetric(t *testing.T) {
	g := buildGraph([]*model.CorrelationEdge{edge(1, 1, 0.9), edge(1, 2, 0.7)})
	assert.InDelta(t, 0.7, g.neighbors[1][2], 1e-9)
	assert.InDelta(t, 0.7, g.neighbors[2][1], 1e-9)
	assert.NotContains(t, g.neighbors[1], int64(1))
}

func TestCandidateGroupsRespectsRateFactorAndRangeBucket(t *testing.T) {
	fps := []*model.Fingerprint{
		{SequenceID: 1, UpdateRate: 1.0, Min: 0, Max: 100},
		{SequenceID: 2, UpdateRate: 1.5, Min: 0, Max: 120},
		// Twenty times the update rate of the anchor: never grouped with it.
		{SequenceID: 3, UpdateRate: 20.0, Min: 0, Max: 110},
		// Same rate bucket but a value range three orders of magnitude
		// wider: different range bucket, not grouped either.
		{SequenceID: 4, UpdateRate: 1.2, Min: 0, Max: 100000},
	}
	groups := candidateGroups(fps)
	var found bool
	for _, g := range groups {
		has1, has2 := false, false
		for _, fp := range g {
			if fp.SequenceID == 1 {
				has1 = true
			}
			if fp.SequenceID == 2 {
				has2 = true
			}
		}
		if has1 && has2 {
			found = true
			assert.Len(t, g, 2, "tag 3 (rate outlier) and tag 4 (range outlier) must not join the group")
		}
	}
	assert.True(t, found, "expected tags 1 and 2 in the same candidate group")
}

func TestWithinFactorOfTwo(t *testing.T) {
	assert.True(t, withinFactorOfTwo(1.0, 2.0))
	assert.True(t, withinFactorOfTwo(2.0, 1.0))
	assert.False(t, withinFactorOfTwo(1.0, 2.01))
	assert.True(t, withinFactorOfTwo(0, 0))
	assert.False(t, withinFactorOfTwo(0, 1))
}

func TestFisherZPValueIsInformationalAndBoundedByZeroOne(t *testing.T) {
	p := fisherZPValue(0.82, 168)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
	// Strong correlation on many samples should be very significant.
	assert.Less(t, p, 0.01)
	// Too few samples: defined as zero rather than blowing up on n-3<=0.
	assert.Equal(t, 0.0, fisherZPValue(0.9, 2))
	assert.Equal(t, 0.0, fisherZPValue(1.0, 100))
}

func TestNormalCDFIsSymmetricAroundZero(t *testing.T) {
	assert.InDelta(t, 0.5, normalCDF(0), 1e-6)
	assert.InDelta(t, 1-normalCDF(1.96), normalCDF(-1.96), 1e-6)
	assert.InDelta(t, 0.975, normalCDF(1.96), 1e-3)
}

func TestRangeOverlapClipsToZeroOnNoOverlap(t *testing.T) {
	assert.Equal(t, 0.0, rangeOverlap(0, 10, 20, 30))
	full := rangeOverlap(0, 100, 0, 100)
	assert.InDelta(t, 1.0, full, 1e-9)
	partial := rangeOverlap(0, 50, 25, 100)
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)
}

func TestNamingScoreFractionOfAllRolesWhenNoneRequired(t *testing.T) {
	tags := []*model.Tag{{Name: "P101_FLOW"}, {Name: "P101_AMPS"}}
	roles := []model.PatternRole{
		{Name: "flow", Required: false, NamingPatternsJSON: `["(?i)flow"]`},
		{Name: "pressure", Required: false, NamingPatternsJSON: `["(?i)press"]`},
	}
	score, matched := namingScore(tags, roles)
	assert.InDelta(t, 0.5, score, 1e-9)
	assert.Equal(t, []string{"flow"}, matched)
}

func TestNamingScoreUsesRequiredRolesOnlyWhenPresent(t *testing.T) {
	tags := []*model.Tag{{Name: "P101_FLOW"}}
	roles := []model.PatternRole{
		{Name: "flow", Required: true, NamingPatternsJSON: `["(?i)flow"]`},
		{Name: "optional-temp", Required: false, NamingPatternsJSON: `["(?i)temp"]`},
	}
	score, _ := namingScore(tags, roles)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestNamingScoreTreatsInvalidRegexAsUnmatched(t *testing.T) {
	tags := []*model.Tag{{Name: "P101_FLOW"}}
	roles := []model.PatternRole{
		{Name: "broken", Required: true, NamingPatternsJSON: `["("]`},
	}
	score, matched := namingScore(tags, roles)
	assert.Equal(t, 0.0, score)
	assert.Empty(t, matched)
}

func TestRateScoreNeutralWithoutDeclaredInterval(t *testing.T) {
	tags := []*model.Tag{{Name: "P101_FLOW", TypicalIntervalSec: 5}}
	roles := []model.PatternRole{{Name: "flow"}}
	assert.InDelta(t, 0.5, rateScore(tags, roles), 1e-9)
}

func TestRateScorePeaksWhenActualMatchesExpected(t *testing.T) {
	tags := []*model.Tag{{Name: "P101_FLOW", TypicalIntervalSec: 5, SequenceID: 1}}
	roles := []model.PatternRole{{
		Name: "flow", HasInterval: true, TypicalIntervalSec: 5,
		NamingPatternsJSON: `["(?i)flow"]`,
	}}
	assert.InDelta(t, 1.0, rateScore(tags, roles), 1e-9)
}

func TestCommonPrefixOfTagNames(t *testing.T) {
	assert.Equal(t, "P101_", commonPrefix([]string{"P101_FLOW", "P101_AMPS", "P101_DIS_TEMP"}))
	assert.Equal(t, "", commonPrefix([]string{"P101_FLOW", "KSH_001_Power"}))
	assert.Equal(t, "", commonPrefix(nil))
}

func TestTokenizeLowercasesAndSplitsOnSeparators(t *testing.T) {
	assert.Equal(t, []string{"p101", "dis", "press"}, Tokenize("P101_DIS_PRESS"))
	assert.Equal(t, []string{"ksh", "001", "windspeed"}, Tokenize("KSH.001-WindSpeed"))
}

func TestExtractPrefixPrefersSkeletonsOverFallback(t *testing.T) {
	assert.Equal(t, "P101", extractPrefix("P101_DIS_PRESS"))
	assert.Equal(t, "KSH001", extractPrefix("KSH001.RotorRPM"))
	assert.Equal(t, "foo", extractPrefix("foo-bar-baz"))
}

func TestGroupByPrefixKeepsOnlyGroupsAtOrAboveMinSize(t *testing.T) {
	tags := []*model.Tag{
		{Name: "P101_A"}, {Name: "P101_B"}, {Name: "P101_C"},
		{Name: "Q9_X"}, {Name: "Q9_Y"},
	}
	groups := groupByPrefix(tags, 3)
	assert.Len(t, groups, 1)
	assert.Len(t, groups[0], 3)
}

func TestAbbreviationIndexHighestPriorityWins(t *testing.T) {
	idx := newAbbreviationIndex([]model.Abbreviation{
		{Token: "press", Context: "generic", Priority: 1, MeasurementType: "pressure"},
		{Token: "PRESS", Context: "pump", Priority: 5, MeasurementType: "discharge-pressure"},
	})
	entry, ok := idx.lookup("press")
	assert.True(t, ok)
	assert.Equal(t, "discharge-pressure", entry.MeasurementType)
}

func TestInferMeasurementTypePrefersAbbreviationOverUnit(t *testing.T) {
	abbrevs := newAbbreviationIndex([]model.Abbreviation{
		{Token: "flow", Priority: 1, MeasurementType: "flow-rate"},
	})
	units := newUnitIndex([]model.UnitMapping{{UnitSymbol: "gpm", MeasurementType: "volumetric-flow"}})

	mt, count := inferMeasurementType([]string{"p101", "flow"}, abbrevs, units, "gpm")
	assert.Equal(t, "flow-rate", mt)
	assert.Equal(t, 1, count)

	mt2, count2 := inferMeasurementType([]string{"p101", "xyz"}, abbrevs, units, "gpm")
	assert.Equal(t, "volumetric-flow", mt2)
	assert.Equal(t, 0, count2)
}

func TestUpdateRateAndClip(t *testing.T) {
	assert.InDelta(t, 2.0, updateRate(7200, 3600), 1e-9)
	assert.Equal(t, 0.0, updateRate(10, 0))
	assert.Equal(t, 1.0, clip(5, 0, 1))
	assert.Equal(t, 0.0, clip(-5, 0, 1))
	assert.Equal(t, 0.5, clip(0.5, 0, 1))
}

func TestRangeBucketQuantizesOnLog10Span(t *testing.T) {
	small := &model.Fingerprint{Min: 0, Max: 10}
	large := &model.Fingerprint{Min: 0, Max: 100000}
	assert.NotEqual(t, rangeBucket(small), rangeBucket(large))
	zero := &model.Fingerprint{Min: 5, Max: 5}
	assert.Equal(t, math.MinInt32, rangeBucket(zero))
}

func TestWeightedNamingScoreWeightsByRoleWeight(t *testing.T) {
	tags := []*model.Tag{{Name: "KSH_001_WindSpeed"}, {Name: "KSH_001_Power"}}
	roles := []model.PatternRole{
		{Name: "wind-speed", Weight: 3, NamingPatternsJSON: `["(?i)windspeed"]`},
		{Name: "power", Weight: 1, NamingPatternsJSON: `["(?i)power"]`},
		{Name: "unmatched", Weight: 1, NamingPatternsJSON: `["(?i)zzz-never"]`},
	}
	score := weightedNamingScore(tags, roles)
	assert.InDelta(t, 4.0/5.0, score, 1e-9)
}

func TestWeightedNamingScoreDefaultsZeroWeightToOne(t *testing.T) {
	tags := []*model.Tag{{Name: "P101_FLOW"}}
	roles := []model.PatternRole{{Name: "flow", Weight: 0, NamingPatternsJSON: `["(?i)flow"]`}}
	assert.InDelta(t, 1.0, weightedNamingScore(tags, roles), 1e-9)
}

func TestUnitMatchScoreNeutralWhenNoRoleDeclaresUnit(t *testing.T) {
	tags := []*model.Tag{{Name: "P101_FLOW", Unit: "gpm"}}
	roles := []model.PatternRole{{Name: "flow", NamingPatternsJSON: `["(?i)flow"]`}}
	assert.InDelta(t, 0.5, unitMatchScore(tags, roles), 1e-9)
}

func TestUnitMatchScoreRequiresBothNameAndUnitMatch(t *testing.T) {
	tags := []*model.Tag{{Name: "P101_FLOW", Unit: "gpm"}, {Name: "P101_AMPS", Unit: "amp"}}
	roles := []model.PatternRole{
		{Name: "flow", ExpectedUnit: "gpm", NamingPatternsJSON: `["(?i)flow"]`},
		{Name: "current", ExpectedUnit: "amp", NamingPatternsJSON: `["(?i)zzz-never"]`},
	}
	// "flow" role matches both name and unit on the first tag; "current"
	// role's unit matches the second tag but its name regex never does.
	assert.InDelta(t, 0.5, unitMatchScore(tags, roles), 1e-9)
}

func TestMetadataScoreNeutralWithoutRelevantTerms(t *testing.T) {
	tags := []*model.Tag{{Description: "", Address: ""}}
	pattern := &model.Pattern{Name: "", Category: ""}
	assert.InDelta(t, 0.5, metadataScore(tags, pattern), 1e-9)
}

func TestMetadataScoreAveragesPerTagTermCoverage(t *testing.T) {
	tags := []*model.Tag{
		{Description: "centrifugal pump discharge pressure transmitter"},
		{Description: "unrelated flow totalizer"},
	}
	pattern := &model.Pattern{Name: "Centrifugal Pump", Category: "rotating"}
	score := metadataScore(tags, pattern)
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 1.0)
}

func TestRelevantTermsDropsShortTokensAndDuplicates(t *testing.T) {
	terms := relevantTerms("Centrifugal Pump", "Pump Systems")
	assert.Contains(t, terms, "centrifugal")
	assert.Contains(t, terms, "pump")
	assert.Contains(t, terms, "systems")
	count := 0
	for _, term := range terms {
		if term == "pump" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestKnowledgeBoostScoreTakesMaxConventionBoostPlusAbbreviationBonus(t *testing.T) {
	tags := []*model.Tag{{Name: "area1.pump1.flow"}, {Name: "area1.pump1.press"}}
	conventions := []model.NamingConvention{
		{Pattern: `^area\d+\.`, ConfidenceBoost: 0.10},
		{Pattern: `^zone`, ConfidenceBoost: 0.50},
	}
	abbrevs := newAbbreviationIndex([]model.Abbreviation{
		{Token: "flow", Priority: 1, MeasurementType: "flow-rate"},
		{Token: "press", Priority: 1, MeasurementType: "pressure"},
	})
	boost := knowledgeBoostScore(tags, conventions, abbrevs)
	// Only the matching convention's boost applies; "flow" and "press"
	// both resolve (mean 1 match/tag), below the >=2 bonus threshold.
	assert.InDelta(t, 0.10, boost, 1e-9)
}

func TestKnowledgeBoostScoreAddsBonusAtTwoAbbreviationsPerTag(t *testing.T) {
	tags := []*model.Tag{{Name: "p101_dis_press"}}
	abbrevs := newAbbreviationIndex([]model.Abbreviation{
		{Token: "dis", Priority: 1, MeasurementType: "discharge"},
		{Token: "press", Priority: 1, MeasurementType: "pressure"},
	})
	boost := knowledgeBoostScore(tags, nil, abbrevs)
	assert.InDelta(t, 0.05, boost, 1e-9)
}

func TestAssignRolesKeepsOnlyAssignmentsAtOrAboveThreshold(t *testing.T) {
	tags := []*model.Tag{
		{Name: "P101_FLOW", Unit: "gpm"},
		{Name: "P101_AMPS", Unit: "amp"},
	}
	roles := []model.PatternRole{
		{Name: "flow-rate", ExpectedUnit: "gpm", NamingPatternsJSON: `["(?i)flow"]`},
		{Name: "vibration", NamingPatternsJSON: `["(?i)zzz-never-matches"]`},
	}
	units := newUnitIndex(nil)
	abbrevs := newAbbreviationIndex(nil)
	assignments := assignRoles(tags, roles, units, abbrevs)
	assert.Equal(t, "P101_FLOW", assignments["flow-rate"])
	_, unmatched := assignments["vibration"]
	assert.False(t, unmatched)
}
