// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package flywheel

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pattern-flywheel/historian/internal/metrics"
	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/internal/repository"
	"github.com/pattern-flywheel/historian/pkg/log"
)

// minProactiveGroupSize is the floor on a prefix group's tag count
// before it is scored against the pattern library.
const minProactiveGroupSize = 3

// RunProactiveMatcher implements the knowledge-based
// submode for newly-registered tags that have no correlation data yet.
// sourceID restricts the candidate tag set to one source; empty means
// every source.
func RunProactiveMatcher(cfg MatchingConfig, sourceID string) (int, error) {
	candidates, err := unanalyzedTags(sourceID)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	patterns, err := repository.GetPatternRepository().Active()
	if err != nil {
		return 0, err
	}

	abbrevEntries, err := repository.GetKnowledgeBaseRepository().Abbreviations()
	if err != nil {
		return 0, err
	}
	unitMappings, err := repository.GetKnowledgeBaseRepository().UnitMappings()
	if err != nil {
		return 0, err
	}
	conventions, err := repository.GetKnowledgeBaseRepository().NamingConventions()
	if err != nil {
		return 0, err
	}
	abbrevs := newAbbreviationIndex(abbrevEntries)
	units := newUnitIndex(unitMappings)

	weights := cfg.ProactiveWeights
	if weights == (MatchWeights{}) {
		weights = MatchWeights{Naming: 0.50, Range: 0.25, Rate: 0.15, KnowledgeBoost: 0.10}
	}
	minConfidence := cfg.ProactiveMinConfidence
	if minConfidence <= 0 {
		minConfidence = 0.40
	}
	maxPerCluster := cfg.MaxPerCluster
	if maxPerCluster <= 0 {
		maxPerCluster = 5
	}

	groups := groupByPrefix(candidates, minProactiveGroupSize)
	clusterRepo := repository.GetClusterRepository()
	suggestionRepo := repository.GetSuggestionRepository()
	now := time.Now().UTC()

	created := 0
	for _, group := range groups {
		sequenceIDs := make([]int64, len(group))
		for i, t := range group {
			sequenceIDs[i] = t.SequenceID
		}
		clusterID := repository.ClusterID(sequenceIDs)

		var results []proactiveMatch
		for _, p := range patterns {
			naming := weightedNamingScore(group, p.Roles)
			unitMatch := unitMatchScore(group, p.Roles)
			metadata := metadataScore(group, p)
			boost := knowledgeBoostScore(group, conventions, abbrevs)

			overall := (weights.Naming*naming + weights.Range*unitMatch + weights.Rate*metadata + weights.KnowledgeBoost*boost) * p.Confidence
			if overall < minConfidence {
				continue
			}

			assignments := assignRoles(group, p.Roles, units, abbrevs)
			results = append(results, proactiveMatch{
				pattern: p, naming: naming, unitMatch: unitMatch, metadata: metadata,
				knowledgeBoost: boost, overall: overall, assignments: assignments,
			})
		}

		sort.Slice(results, func(i, j int) bool { return results[i].overall > results[j].overall })
		if len(results) > maxPerCluster {
			results = results[:maxPerCluster]
		}
		if len(results) == 0 {
			continue
		}

		cl := &model.Cluster{
			ID:                clusterID,
			MemberSequenceIDs: sequenceIDs,
			Cohesion:          0,
			Active:            true,
			Proactive:         true,
			DetectedAt:        now,
			UpdatedAt:         now,
		}
		if err := clusterRepo.Upsert(cl); err != nil {
			return created, fmt.Errorf("FLYWHEEL/PROACTIVE > upsert cluster: %w", err)
		}

		prefix := commonPrefix(tagNames(group))
		for _, res := range results {
			matchedRoles := make([]string, 0, len(res.assignments))
			for role, tag := range res.assignments {
				matchedRoles = append(matchedRoles, fmt.Sprintf("%s=%s", role, tag))
			}
			tokens := map[string][]string{}
			for _, t := range group {
				tokens[t.Name] = Tokenize(t.Name)
			}

			expl := explanation{
				Pattern:           res.pattern.Name,
				Mode:              "proactive",
				NamingScore:       res.naming,
				CorrelationOrUnit: res.unitMatch,
				RangeOrMetadata:   res.metadata,
				RateOrKnowledge:   res.knowledgeBoost,
				Overall:           res.overall,
				MatchedRoles:      matchedRoles,
				Tokens:            tokens,
			}
			explJSON, err := json.Marshal(expl)
			if err != nil {
				return created, fmt.Errorf("FLYWHEEL/PROACTIVE > marshal explanation: %w", err)
			}

			s := &model.Suggestion{
				ClusterID:        cl.ID,
				PatternID:        res.pattern.ID,
				NamingScore:      res.naming,
				CorrelationScore: 0,
				RangeScore:       res.unitMatch,
				RateScore:        res.metadata,
				Overall:          res.overall,
				Explanation: fmt.Sprintf("group %q matched %s proactively (naming %.2f, unit %.2f, metadata %.2f, knowledge %.2f); role assignments: %s",
					prefix, res.pattern.Name, res.naming, res.unitMatch, res.metadata, res.knowledgeBoost, strings.Join(matchedRoles, ", ")),
				ExplanationJSON: string(explJSON),
				CreatedAt:       now,
				ExpiresAt:       now.Add(SuggestionTTL),
			}
			if err := suggestionRepo.Upsert(s); err != nil {
				log.Warnf("FLYWHEEL/PROACTIVE > upsert suggestion cluster=%s pattern=%s: %v", cl.ID, res.pattern.ID, err)
				continue
			}
			metrics.SuggestionsCreated.WithLabelValues("proactive").Inc()
			created++
		}
	}
	return created, nil
}

// proactiveMatch is one scored (group, pattern) candidate awaiting
// suggestion creation.
type proactiveMatch struct {
	pattern        *model.Pattern
	naming         float64
	unitMatch      float64
	metadata       float64
	knowledgeBoost float64
	overall        float64
	assignments    map[string]string // role name -> tag name
}

// unanalyzedTags returns enabled tags with no existing binding and no
// membership in a still-active proactive cluster.
func unanalyzedTags(sourceID string) ([]*model.Tag, error) {
	tags, err := repository.GetTagRepository().ListEnabled(sourceID)
	if err != nil {
		return nil, err
	}

	clusters, err := repository.GetClusterRepository().Active()
	if err != nil {
		return nil, err
	}
	inProactiveCluster := make(map[int64]bool)
	for _, cl := range clusters {
		if !cl.Proactive {
			continue
		}
		for _, seq := range cl.MemberSequenceIDs {
			inProactiveCluster[seq] = true
		}
	}

	bindingRepo := repository.GetBindingRepository()
	var out []*model.Tag
	for _, t := range tags {
		if inProactiveCluster[t.SequenceID] {
			continue
		}
		bindings, err := bindingRepo.ForTag(t.ID)
		if err != nil {
			return nil, err
		}
		if len(bindings) > 0 {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// weightedNamingScore is the proactive naming score: the weighted
// fraction of roles whose regex set matches any tag name in the group.
func weightedNamingScore(tags []*model.Tag, roles []model.PatternRole) float64 {
	var totalWeight, matchedWeight float64
	for _, role := range roles {
		w := role.Weight
		if w <= 0 {
			w = 1
		}
		totalWeight += w
		regexes, err := role.NamingRegexes()
		if err != nil {
			continue
		}
		if tagMatchesAny(tags, regexes) {
			matchedWeight += w
		}
	}
	if totalWeight == 0 {
		return 0
	}
	return matchedWeight / totalWeight
}

// unitMatchScore is the proactive unit-match sub-score.
func unitMatchScore(tags []*model.Tag, roles []model.PatternRole) float64 {
	var withUnit, matched int
roles:
	for _, role := range roles {
		if role.ExpectedUnit == "" {
			continue
		}
		withUnit++
		regexes, err := role.NamingRegexes()
		if err != nil {
			continue
		}
		for _, t := range tags {
			if !strings.EqualFold(t.Unit, role.ExpectedUnit) {
				continue
			}
			for _, re := range regexes {
				if re.MatchString(t.Name) {
					matched++
					continue roles
				}
			}
		}
	}
	if withUnit == 0 {
		return 0.5
	}
	return float64(matched) / float64(withUnit)
}

// metadataScore is the proactive metadata sub-score: per-tag average
// coverage of pattern-derived terms (length > 2) in the tag's
// description + address.
func metadataScore(tags []*model.Tag, p *model.Pattern) float64 {
	terms := relevantTerms(p.Name, p.Category)
	if len(terms) == 0 || len(tags) == 0 {
		return 0.5
	}

	var sum float64
	for _, t := range tags {
		haystack := strings.ToLower(t.Description + " " + t.Address)
		hits := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				hits++
			}
		}
		sum += float64(hits) / float64(len(terms))
	}
	return sum / float64(len(tags))
}

func relevantTerms(fields ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, field := range fields {
		for _, tok := range Tokenize(field) {
			if len(tok) <= 2 || seen[tok] {
				continue
			}
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// compileCaseInsensitive compiles pattern as a case-insensitive regex,
// the same convention PatternRole.NamingRegexes uses for role patterns.
func compileCaseInsensitive(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

// knowledgeBoostScore is the proactive knowledge-boost sub-score: the
// maximum confidence_boost among naming conventions
// whose regex matches the first tag's name, plus 0.05 if the mean
// matched-abbreviation count per tag is >= 2.
func knowledgeBoostScore(tags []*model.Tag, conventions []model.NamingConvention, abbrevs *abbreviationIndex) float64 {
	if len(tags) == 0 {
		return 0
	}
	first := tags[0].Name
	var maxBoost float64
	for _, c := range conventions {
		re, err := compileCaseInsensitive(c.Pattern)
		if err != nil || !re.MatchString(first) {
			continue
		}
		if c.ConfidenceBoost > maxBoost {
			maxBoost = c.ConfidenceBoost
		}
	}

	var totalMatches int
	for _, t := range tags {
		for _, tok := range Tokenize(t.Name) {
			if _, ok := abbrevs.lookup(tok); ok {
				totalMatches++
			}
		}
	}
	meanMatches := float64(totalMatches) / float64(len(tags))
	if meanMatches >= 2 {
		maxBoost += 0.05
	}
	return maxBoost
}

// assignRoles implements per-role tag assignment: the best tag per
// role by naming-regex hit (+0.6),
// matching unit (+0.3), and inferred-measurement match with the role
// name (+0.1), keeping assignments scoring >= 0.30.
func assignRoles(tags []*model.Tag, roles []model.PatternRole, units unitIndex, abbrevs *abbreviationIndex) map[string]string {
	assignments := make(map[string]string)
	for _, role := range roles {
		regexes, err := role.NamingRegexes()
		if err != nil {
			continue
		}

		var bestTag *model.Tag
		var bestScore float64
		for _, t := range tags {
			var score float64
			for _, re := range regexes {
				if re.MatchString(t.Name) {
					score += 0.6
					break
				}
			}
			if role.ExpectedUnit != "" && strings.EqualFold(t.Unit, role.ExpectedUnit) {
				score += 0.3
			}
			if measured, _ := inferMeasurementType(Tokenize(t.Name), abbrevs, units, t.Unit); measured != "" &&
				strings.Contains(strings.ToLower(role.Name), strings.ToLower(measured)) {
				score += 0.1
			}
			if score > bestScore {
				bestScore = score
				bestTag = t
			}
		}
		if bestTag != nil && bestScore >= 0.30 {
			assignments[role.Name] = bestTag.Name
		}
	}
	return assignments
}
