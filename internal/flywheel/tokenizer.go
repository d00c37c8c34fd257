// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package flywheel

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pattern-flywheel/historian/internal/model"
)

// tokenSplit matches the separator runs a tag name is split on before
// abbreviation lookup proactive tokenizer.
var tokenSplit = regexp.MustCompile(`[_.\-\s]+`)

// Tokenize splits a tag name into lowercase tokens on underscores,
// dots, dashes, and whitespace.
func Tokenize(name string) []string {
	parts := tokenSplit.Split(name, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, strings.ToLower(p))
	}
	return out
}

// abbreviationIndex resolves a token to its highest-priority
// abbreviation entry, case-insensitive: when more than one entry
// matches a token, the highest Priority wins. An entry's Context is not
// consulted.
type abbreviationIndex struct {
	byToken map[string][]model.Abbreviation
}

func newAbbreviationIndex(entries []model.Abbreviation) *abbreviationIndex {
	idx := &abbreviationIndex{byToken: make(map[string][]model.Abbreviation)}
	for _, e := range entries {
		key := strings.ToLower(e.Token)
		idx.byToken[key] = append(idx.byToken[key], e)
	}
	for _, bucket := range idx.byToken {
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].Priority > bucket[j].Priority })
	}
	return idx
}

func (idx *abbreviationIndex) lookup(token string) (model.Abbreviation, bool) {
	bucket, ok := idx.byToken[strings.ToLower(token)]
	if !ok || len(bucket) == 0 {
		return model.Abbreviation{}, false
	}
	return bucket[0], true
}

// unitIndex resolves an engineering unit symbol to its measurement
// type.
type unitIndex map[string]string

func newUnitIndex(mappings []model.UnitMapping) unitIndex {
	idx := make(unitIndex, len(mappings))
	for _, m := range mappings {
		idx[strings.ToLower(m.UnitSymbol)] = m.MeasurementType
	}
	return idx
}

func (idx unitIndex) measurementType(unit string) (string, bool) {
	t, ok := idx[strings.ToLower(unit)]
	return t, ok
}

// inferMeasurementType resolves a tag's measurement type from its
// matched abbreviations first, falling back to its declared unit.
func inferMeasurementType(tokens []string, abbrevs *abbreviationIndex, units unitIndex, tagUnit string) (string, int) {
	matchedCount := 0
	inferred := ""
	for _, tok := range tokens {
		if entry, ok := abbrevs.lookup(tok); ok {
			matchedCount++
			if inferred == "" && entry.MeasurementType != "" {
				inferred = entry.MeasurementType
			}
		}
	}
	if inferred != "" {
		return inferred, matchedCount
	}
	if t, ok := units.measurementType(tagUnit); ok {
		return t, matchedCount
	}
	return "", matchedCount
}

// groupPrefixSkeletons is the prioritized list of regex skeletons,
// tried in order until one captures a non-empty prefix.
var groupPrefixSkeletons = []*regexp.Regexp{
	regexp.MustCompile(`^([A-Za-z]+_?\d+)_`),
	regexp.MustCompile(`^([A-Za-z]+\d+)\.`),
}

// extractPrefix returns a tag name's group prefix: the first
// groupPrefixSkeletons match, or else the segment before the first
// underscore/dot/dash.
func extractPrefix(name string) string {
	for _, re := range groupPrefixSkeletons {
		if m := re.FindStringSubmatch(name); m != nil {
			return m[1]
		}
	}
	if i := strings.IndexAny(name, "_.-"); i >= 0 {
		return name[:i]
	}
	return name
}

// groupByPrefix partitions tags by extractPrefix, keeping groups with
// at least minSize members.
func groupByPrefix(tags []*model.Tag, minSize int) [][]*model.Tag {
	byPrefix := make(map[string][]*model.Tag)
	var order []string
	for _, t := range tags {
		prefix := extractPrefix(t.Name)
		if _, ok := byPrefix[prefix]; !ok {
			order = append(order, prefix)
		}
		byPrefix[prefix] = append(byPrefix[prefix], t)
	}

	var groups [][]*model.Tag
	for _, prefix := range order {
		if len(byPrefix[prefix]) >= minSize {
			groups = append(groups, byPrefix[prefix])
		}
	}
	return groups
}
