// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"time"

	"github.com/pattern-flywheel/historian/internal/repository"
	"github.com/pattern-flywheel/historian/internal/timeseries"
	"github.com/pattern-flywheel/historian/pkg/log"
)

// cmdStatus prints a snapshot of the catalog, cluster, and
// human-review queue sizes — enough to tell an operator whether the
// pipeline is producing anything without standing up a UI.
func cmdStatus(store *timeseries.Store) int {
	tags, err := repository.GetTagRepository().ListEnabled("")
	if err != nil {
		log.Errorf("STATUS > list tags: %v", err)
		return exitFatal
	}

	fingerprints, err := repository.GetFingerprintRepository().All()
	if err != nil {
		log.Errorf("STATUS > list fingerprints: %v", err)
		return exitFatal
	}

	clusters, err := repository.GetClusterRepository().Active()
	if err != nil {
		log.Errorf("STATUS > list clusters: %v", err)
		return exitFatal
	}

	patterns, err := repository.GetPatternRepository().Active()
	if err != nil {
		log.Errorf("STATUS > list patterns: %v", err)
		return exitFatal
	}

	pending, err := repository.GetSuggestionRepository().Pending()
	if err != nil {
		log.Errorf("STATUS > list suggestions: %v", err)
		return exitFatal
	}

	recentEdges, err := repository.GetCorrelationRepository().RecentEdges(time.Now().Add(-7 * 24 * time.Hour))
	if err != nil {
		log.Errorf("STATUS > list correlation edges: %v", err)
		return exitFatal
	}

	log.Infof("STATUS > tags=%d fingerprints=%d correlation_edges(7d)=%d active_clusters=%d active_patterns=%d pending_suggestions=%d",
		len(tags), len(fingerprints), len(recentEdges), len(clusters), len(patterns), len(pending))

	for _, s := range pending {
		log.Infof("STATUS >   suggestion %s cluster=%s pattern=%s overall=%.2f created=%s",
			s.ID, s.ClusterID, s.PatternID, s.Overall, s.CreatedAt.Format(time.RFC3339))
	}

	return exitOK
}
