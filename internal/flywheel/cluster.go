// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package flywheel

import (
	"math/rand"
	"time"

	"github.com/pattern-flywheel/historian/internal/cache"
	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/internal/repository"
)

// ClusterConfig governs the cluster detector (C9).
type ClusterConfig struct {
	MinSize     int
	MaxSize     int
	MinCohesion float64
}

const (
	louvainGainThreshold = 0.001
	louvainMaxPasses     = 100
)

// graph is an undirected weighted adjacency list over correlation
// edges, built fresh on every detector run from the last 24h of
// persisted edges.
type graph struct {
	neighbors map[int64]map[int64]float64
	degree    map[int64]float64
	totalW    float64
}

func buildGraph(edges []*model.CorrelationEdge) *graph {
	g := &graph{
		neighbors: make(map[int64]map[int64]float64),
		degree:    make(map[int64]float64),
	}
	add := func(a, b int64, w float64) {
		if g.neighbors[a] == nil {
			g.neighbors[a] = make(map[int64]float64)
		}
		g.neighbors[a][b] += w
		g.degree[a] += w
	}
	for _, e := range edges {
		if e.SequenceIDA == e.SequenceIDB {
			continue
		}
		add(e.SequenceIDA, e.SequenceIDB, e.R)
		add(e.SequenceIDB, e.SequenceIDA, e.R)
		g.totalW += e.R
	}
	return g
}

func (g *graph) nodes() []int64 {
	out := make([]int64, 0, len(g.neighbors))
	for n := range g.neighbors {
		out = append(out, n)
	}
	return out
}

// louvainOneLevel runs a single level of Louvain modularity
// optimization: each node starts in its own community; repeated passes
// move nodes to the neighbor community with the best modularity gain
// until a pass makes no move or louvainMaxPasses is reached, using the
// standard gain formula's m/d(v)/Σ decomposition.
func louvainOneLevel(g *graph) map[int64]int64 {
	community := make(map[int64]int64, len(g.neighbors))
	commSigma := make(map[int64]float64, len(g.neighbors))
	for n := range g.neighbors {
		community[n] = n
		commSigma[n] = g.degree[n]
	}

	m := g.totalW
	if m == 0 {
		return community
	}

	nodes := g.nodes()
	for pass := 0; pass < louvainMaxPasses; pass++ {
		order := make([]int64, len(nodes))
		copy(order, nodes)
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		moved := false
		for _, v := range order {
			cCurrent := community[v]
			dv := g.degree[v]

			weightByComm := make(map[int64]float64)
			for w, weight := range g.neighbors[v] {
				weightByComm[community[w]] += weight
			}

			// Remove v from its current community before evaluating
			// moves, so the "C\{v}" terms in the modularity-gain
			// formula are the community sigma with v's own degree
			// excluded.
			sigmaCWithoutV := commSigma[cCurrent] - dv
			weightToCurrentWithoutV := weightByComm[cCurrent]

			bestComm := cCurrent
			bestGain := 0.0
			for target, weightToTarget := range weightByComm {
				if target == cCurrent {
					continue
				}
				sigmaT := commSigma[target]
				gain := (weightToTarget-weightToCurrentWithoutV)/m -
					dv*(sigmaT-sigmaCWithoutV)/(2*m*m)
				if gain > bestGain {
					bestGain = gain
					bestComm = target
				}
			}

			if bestComm != cCurrent && bestGain > louvainGainThreshold {
				commSigma[cCurrent] -= dv
				commSigma[bestComm] += dv
				community[v] = bestComm
				moved = true
			}
		}

		if !moved {
			break
		}
	}
	return community
}

// ClusterCandidate is one validated community: a group of tags plus
// the graph's internal mean edge weight among them (cohesion).
type ClusterCandidate struct {
	MemberSequenceIDs []int64
	Cohesion          float64
}

// detectClusters runs one Louvain level and keeps communities meeting
// the size and cohesion bounds.
func detectClusters(edges []*model.CorrelationEdge, cfg ClusterConfig) []ClusterCandidate {
	minSize, maxSize, minCohesion := cfg.MinSize, cfg.MaxSize, cfg.MinCohesion
	if minSize <= 0 {
		minSize = 3
	}
	if maxSize <= 0 {
		maxSize = 50
	}
	if minCohesion <= 0 {
		minCohesion = 0.50
	}

	g := buildGraph(edges)
	if len(g.neighbors) == 0 {
		return nil
	}
	community := louvainOneLevel(g)

	members := make(map[int64][]int64)
	for n, c := range community {
		members[c] = append(members[c], n)
	}

	var candidates []ClusterCandidate
	for _, group := range members {
		if len(group) < minSize || len(group) > maxSize {
			continue
		}
		cohesion := internalCohesion(g, group)
		if cohesion < minCohesion {
			continue
		}
		candidates = append(candidates, ClusterCandidate{MemberSequenceIDs: group, Cohesion: cohesion})
	}
	return candidates
}

func internalCohesion(g *graph, members []int64) float64 {
	inGroup := make(map[int64]bool, len(members))
	for _, m := range members {
		inGroup[m] = true
	}

	var sum float64
	var count int
	seen := make(map[[2]int64]bool)
	for _, a := range members {
		for b, w := range g.neighbors[a] {
			if !inGroup[b] || a == b {
				continue
			}
			key := [2]int64{a, b}
			if a > b {
				key = [2]int64{b, a}
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			sum += w
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// RunClusterDetector builds the correlation graph from the last 24h of
// edges, runs one Louvain level, and upserts validated communities as
// active clusters, deactivating any previously-active cluster not
// re-detected this run once it is older than the 24h staleness window.
func RunClusterDetector(cfg ClusterConfig, c *cache.Cache) ([]*model.Cluster, error) {
	now := time.Now().UTC()
	edges, err := repository.GetCorrelationRepository().RecentEdges(now.Add(-24 * time.Hour))
	if err != nil {
		return nil, err
	}

	candidates := detectClusters(edges, cfg)
	clusterRepo := repository.GetClusterRepository()

	var clusters []*model.Cluster
	for _, cand := range candidates {
		id := repository.ClusterID(cand.MemberSequenceIDs)
		cl := &model.Cluster{
			ID:                id,
			MemberSequenceIDs: cand.MemberSequenceIDs,
			Cohesion:          cand.Cohesion,
			Active:            true,
			Proactive:         false,
			DetectedAt:        now,
			UpdatedAt:         now,
		}
		if err := clusterRepo.Upsert(cl); err != nil {
			return nil, err
		}
		if c != nil {
			c.PutClusterSummary(id, cache.ClusterSummary{
				MemberCount: len(cand.MemberSequenceIDs),
				Cohesion:    cand.Cohesion,
				UpdatedAt:   now,
			})
		}
		clusters = append(clusters, cl)
	}

	if _, err := clusterRepo.DeactivateStale(now.Add(-24 * time.Hour)); err != nil {
		return nil, err
	}
	return clusters, nil
}
