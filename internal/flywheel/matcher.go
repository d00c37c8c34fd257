// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package flywheel

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pattern-flywheel/historian/internal/metrics"
	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/internal/repository"
	"github.com/pattern-flywheel/historian/pkg/log"
)

// SuggestionTTL is the default lifetime of a pending suggestion before
// the daily maintenance job expires it.
const SuggestionTTL = 30 * 24 * time.Hour

// fingerprintStaleAfter is the age past which a persisted fingerprint
// no longer informs the range sub-score; a tag whose aggregator output
// has gone this stale is treated as having no fingerprint at all.
const fingerprintStaleAfter = 48 * time.Hour

// MatchWeights are the per-factor weights combined into one submode's
// overall score.
type MatchWeights struct {
	Naming         float64
	Correlation    float64
	Range          float64
	Rate           float64
	KnowledgeBoost float64
}

// MatchingConfig governs the pattern matcher (C10), both submodes.
type MatchingConfig struct {
	MinConfidence          float64
	ProactiveMinConfidence float64
	MaxPerCluster          int
	Weights                MatchWeights
	ProactiveWeights       MatchWeights
}

// explanation is the structured record persisted alongside the
// human-readable text "both must survive round-trip"
// requirement and REDESIGN FLAG (c): two distinct fields, never one
// concatenated string.
type explanation struct {
	Pattern           string              `json:"pattern"`
	Mode              string              `json:"mode"`
	NamingScore       float64             `json:"namingScore"`
	CorrelationOrUnit float64             `json:"correlationOrUnit"`
	RangeOrMetadata   float64             `json:"rangeOrMetadata"`
	RateOrKnowledge   float64             `json:"rateOrKnowledge"`
	Overall           float64             `json:"overall"`
	MatchedRoles      []string            `json:"matchedRoles,omitempty"`
	Tokens            map[string][]string `json:"tokens,omitempty"`
}

// RunBehavioralMatcher implements the behavioral submode:
// score every active cluster without a recent pending suggestion
// against the active pattern library, persisting the top scorers.
func RunBehavioralMatcher(cfg MatchingConfig) (int, error) {
	clusters, err := repository.GetClusterRepository().Active()
	if err != nil {
		return 0, err
	}
	patterns, err := repository.GetPatternRepository().Active()
	if err != nil {
		return 0, err
	}
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Confidence > patterns[j].Confidence })

	weights := cfg.Weights
	if weights == (MatchWeights{}) {
		weights = MatchWeights{Naming: 0.30, Correlation: 0.40, Range: 0.20, Rate: 0.10}
	}
	minConfidence := cfg.MinConfidence
	if minConfidence <= 0 {
		minConfidence = 0.50
	}
	maxPerCluster := cfg.MaxPerCluster
	if maxPerCluster <= 0 {
		maxPerCluster = 5
	}

	suggestionRepo := repository.GetSuggestionRepository()
	tagRepo := repository.GetTagRepository()
	now := time.Now().UTC()
	since := now.Add(-time.Hour)

	created := 0
	for _, cl := range clusters {
		hasRecent, err := suggestionRepo.HasRecentPending(cl.ID, since)
		if err != nil {
			log.Warnf("FLYWHEEL/MATCHER > recent-pending check for %s: %v", cl.ID, err)
			continue
		}
		if hasRecent {
			continue
		}

		tags := make([]*model.Tag, 0, len(cl.MemberSequenceIDs))
		for _, seq := range cl.MemberSequenceIDs {
			t, err := tagRepo.GetBySequenceID(seq)
			if err != nil {
				continue
			}
			tags = append(tags, t)
		}
		if len(tags) == 0 {
			continue
		}

		type scored struct {
			pattern *model.Pattern
			naming  float64
			rang    float64
			rate    float64
			overall float64
			roles   []string
		}
		var results []scored
		for _, p := range patterns {
			naming, matchedRoles := namingScore(tags, p.Roles)
			rang := rangeScore(tags, p.Roles)
			rate := rateScore(tags, p.Roles)
			overall := weights.Naming*naming + weights.Correlation*cl.Cohesion + weights.Range*rang + weights.Rate*rate
			if overall < minConfidence {
				continue
			}
			results = append(results, scored{pattern: p, naming: naming, rang: rang, rate: rate, overall: overall, roles: matchedRoles})
		}
		sort.Slice(results, func(i, j int) bool { return results[i].overall > results[j].overall })
		if len(results) > maxPerCluster {
			results = results[:maxPerCluster]
		}

		prefix := commonPrefix(tagNames(tags))
		for _, res := range results {
			expl := explanation{
				Pattern:           res.pattern.Name,
				Mode:              "behavioral",
				NamingScore:       res.naming,
				CorrelationOrUnit: cl.Cohesion,
				RangeOrMetadata:   res.rang,
				RateOrKnowledge:   res.rate,
				Overall:           res.overall,
				MatchedRoles:      res.roles,
			}
			explJSON, err := json.Marshal(expl)
			if err != nil {
				return created, fmt.Errorf("FLYWHEEL/MATCHER > marshal explanation: %w", err)
			}

			s := &model.Suggestion{
				ClusterID:        cl.ID,
				PatternID:        res.pattern.ID,
				NamingScore:      res.naming,
				CorrelationScore: cl.Cohesion,
				RangeScore:       res.rang,
				RateScore:        res.rate,
				Overall:          res.overall,
				Explanation: fmt.Sprintf("cluster %q matched %s (naming %.2f, correlation %.2f, range %.2f, rate %.2f); roles matched: %s",
					prefix, res.pattern.Name, res.naming, cl.Cohesion, res.rang, res.rate, strings.Join(res.roles, ", ")),
				ExplanationJSON: string(explJSON),
				CreatedAt:       now,
				ExpiresAt:       now.Add(SuggestionTTL),
			}
			if err := suggestionRepo.Upsert(s); err != nil {
				log.Warnf("FLYWHEEL/MATCHER > upsert suggestion cluster=%s pattern=%s: %v", cl.ID, res.pattern.ID, err)
				continue
			}
			metrics.SuggestionsCreated.WithLabelValues("behavioral").Inc()
			created++
		}
	}
	return created, nil
}

// namingScore implements the behavioral naming sub-score.
func namingScore(tags []*model.Tag, roles []model.PatternRole) (float64, []string) {
	rolesToCheck := roles
	var required []model.PatternRole
	for _, r := range roles {
		if r.Required {
			required = append(required, r)
		}
	}
	if len(required) > 0 {
		rolesToCheck = required
	}
	if len(rolesToCheck) == 0 {
		return 0, nil
	}

	matched := 0
	var matchedNames []string
	for _, role := range rolesToCheck {
		regexes, err := role.NamingRegexes()
		if err != nil {
			// Invalid regex in a role's naming patterns: the role is
			// treated as unmatched for this iteration.
			continue
		}
		if tagMatchesAny(tags, regexes) {
			matched++
			matchedNames = append(matchedNames, role.Name)
		}
	}
	return float64(matched) / float64(len(rolesToCheck)), matchedNames
}

func tagMatchesAny(tags []*model.Tag, regexes []*regexp.Regexp) bool {
	for _, t := range tags {
		for _, re := range regexes {
			if re.MatchString(t.Name) {
				return true
			}
		}
	}
	return false
}

// bestMatchingTag returns the first tag whose name matches one of
// role's naming regexes. Unlike the proactive submode's assignRoles, it
// does not score unit or measurement-type fit.
func bestMatchingTag(tags []*model.Tag, role model.PatternRole) *model.Tag {
	regexes, err := role.NamingRegexes()
	if err != nil {
		return nil
	}
	for _, t := range tags {
		for _, re := range regexes {
			if re.MatchString(t.Name) {
				return t
			}
		}
	}
	return nil
}

// rangeScore implements the range sub-score: mean, over
// role/matched-tag pairs where the role declares a range, of the
// fractional [min,max] overlap, clipped to [0,1]; neutral 0.5 when no
// role declares a range.
func rangeScore(tags []*model.Tag, roles []model.PatternRole) float64 {
	fpRepo := repository.GetFingerprintRepository()
	var sum float64
	var count int
	for _, role := range roles {
		if !role.HasRange {
			continue
		}
		tag := bestMatchingTag(tags, role)
		if tag == nil {
			continue
		}
		fp, err := fpRepo.Get(tag.SequenceID, fingerprintStaleAfter)
		if err != nil {
			continue
		}
		sum += clip(rangeOverlap(fp.Min, fp.Max, role.ExpectedMin, role.ExpectedMax), 0, 1)
		count++
	}
	if count == 0 {
		return 0.5
	}
	return sum / float64(count)
}

func rangeOverlap(observedMin, observedMax, expectedMin, expectedMax float64) float64 {
	lo := math.Max(observedMin, expectedMin)
	hi := math.Min(observedMax, expectedMax)
	if hi <= lo {
		return 0
	}
	union := math.Max(observedMax, expectedMax) - math.Min(observedMin, expectedMin)
	if union <= 0 {
		return 0
	}
	return (hi - lo) / union
}

// rateScore implements the rate sub-score via the
// log-normal proximity formula, neutral 0.5 when no role declares an
// interval.
func rateScore(tags []*model.Tag, roles []model.PatternRole) float64 {
	var sum float64
	var count int
	for _, role := range roles {
		if !role.HasInterval || role.TypicalIntervalSec <= 0 {
			continue
		}
		tag := bestMatchingTag(tags, role)
		if tag == nil || tag.TypicalIntervalSec <= 0 {
			continue
		}
		lnRatio := math.Log(tag.TypicalIntervalSec / role.TypicalIntervalSec)
		sum += math.Exp(-0.5 * lnRatio * lnRatio)
		count++
	}
	if count == 0 {
		return 0.5
	}
	return sum / float64(count)
}

func tagNames(tags []*model.Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names
}

// commonPrefix returns the longest common byte prefix of names, used
// as the cluster's display name in a suggestion's explanation text.
func commonPrefix(names []string) string {
	if len(names) == 0 {
		return ""
	}
	prefix := names[0]
	for _, n := range names[1:] {
		for !strings.HasPrefix(n, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}
