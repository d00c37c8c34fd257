// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package learning is the pattern flywheel's learning loop (C11):
// applying human review decisions to pattern confidence, decaying
// confidence for patterns that have gone quiet, expiring stale
// suggestions, and running the daily maintenance purge.
package learning

import (
	"fmt"
	"time"

	"github.com/pattern-flywheel/historian/internal/model"
	"github.com/pattern-flywheel/historian/internal/repository"
)

// Config governs confidence learning, mirroring config.LearningConfig.
type Config struct {
	Boost       float64
	Penalty     float64
	DecayPerDay float64
	Floor       float64
}

func (c Config) withDefaults() Config {
	if c.Boost <= 0 {
		c.Boost = 0.05
	}
	if c.Penalty <= 0 {
		c.Penalty = 0.03
	}
	if c.DecayPerDay <= 0 {
		c.DecayPerDay = 0.005
	}
	if c.Floor <= 0 {
		c.Floor = 0.30
	}
	return c
}

// Approve applies the approval outcome to suggestion id:
// the pattern's confidence rises by Boost (capped at 1.00), every
// cluster member tag gets a durable binding, and a feedback entry
// records the before/after confidence.
func Approve(cfg Config, id, reviewer string) error {
	cfg = cfg.withDefaults()
	suggestionRepo := repository.GetSuggestionRepository()
	s, err := suggestionRepo.GetByID(id)
	if err != nil {
		return err
	}
	pattern, err := repository.GetPatternRepository().GetByID(s.PatternID)
	if err != nil {
		return err
	}
	cluster, err := repository.GetClusterRepository().GetByID(s.ClusterID)
	if err != nil {
		return err
	}

	before := pattern.Confidence
	after := minF(1.00, before+cfg.Boost)
	now := time.Now()

	tagRepo := repository.GetTagRepository()
	bindingRepo := repository.GetBindingRepository()
	for _, seq := range cluster.MemberSequenceIDs {
		tag, err := tagRepo.GetBySequenceID(seq)
		if err != nil {
			continue
		}
		if err := bindingRepo.Create(&model.Binding{
			TagID:               tag.ID,
			PatternID:           pattern.ID,
			Reviewer:            reviewer,
			ConfidenceAtBinding: s.Overall,
			BoundAt:             now,
		}); err != nil {
			return fmt.Errorf("LEARNING/REVIEW > bind tag %s to pattern %s: %w", tag.ID, pattern.ID, err)
		}
	}

	if err := suggestionRepo.Resolve(id, model.SuggestionApproved, reviewer, nil); err != nil {
		return err
	}
	if err := repository.GetPatternRepository().UpdateConfidence(pattern.ID, after, 1, 0, &now); err != nil {
		return err
	}
	return repository.GetFeedbackRepository().Create(&model.FeedbackEntry{
		SuggestionID:     id,
		Action:           model.FeedbackApprove,
		Actor:            reviewer,
		ConfidenceBefore: &before,
		ConfidenceAfter:  &after,
		CreatedAt:        now,
	})
}

// Reject applies the rejection outcome: the pattern's
// confidence falls by Penalty (floored at 0.30), the rejection reason
// is stored on the suggestion, and a feedback entry is appended.
func Reject(cfg Config, id, reviewer, reason string) error {
	cfg = cfg.withDefaults()
	suggestionRepo := repository.GetSuggestionRepository()
	s, err := suggestionRepo.GetByID(id)
	if err != nil {
		return err
	}
	pattern, err := repository.GetPatternRepository().GetByID(s.PatternID)
	if err != nil {
		return err
	}

	before := pattern.Confidence
	after := maxF(0.30, before-cfg.Penalty)

	if err := suggestionRepo.Resolve(id, model.SuggestionRejected, reviewer, &reason); err != nil {
		return err
	}
	if err := repository.GetPatternRepository().UpdateConfidence(pattern.ID, after, 0, 1, nil); err != nil {
		return err
	}
	return repository.GetFeedbackRepository().Create(&model.FeedbackEntry{
		SuggestionID:     id,
		Action:           model.FeedbackReject,
		Actor:            reviewer,
		ConfidenceBefore: &before,
		ConfidenceAfter:  &after,
		RejectionReason:  &reason,
		CreatedAt:        time.Now(),
	})
}

// Defer records a defer decision without touching pattern confidence.
func Defer(id, reviewer string) error {
	if err := repository.GetSuggestionRepository().Resolve(id, model.SuggestionDeferred, reviewer, nil); err != nil {
		return err
	}
	return repository.GetFeedbackRepository().Create(&model.FeedbackEntry{
		SuggestionID: id,
		Action:       model.FeedbackDefer,
		Actor:        reviewer,
		CreatedAt:    time.Now(),
	})
}

// ApplyDecay runs the confidence decay across every active
// pattern in a single SQL-level update.
func ApplyDecay(cfg Config) error {
	cfg = cfg.withDefaults()
	return repository.GetPatternRepository().ApplyDecay(cfg.DecayPerDay, cfg.Floor)
}

// ExpireSuggestions transitions every pending suggestion past its
// expiry into the expired state, returning how many were expired.
func ExpireSuggestions() (int, error) {
	ids, err := repository.GetSuggestionRepository().ExpirePending(time.Now())
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
