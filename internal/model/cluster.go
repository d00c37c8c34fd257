// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import "time"

// Cluster is a group of tags the correlation graph and the Louvain
// detector (C9) judged to move together. ID is deterministic: the MD5
// of the sorted member sequence IDs, so re-detecting the same group of
// tags on a later run always yields the same cluster row instead of a
// new one. MemberSequenceIDs is stored denormalized as a JSON array
// rather than a join table, since membership only ever changes as a
// whole (a cluster with a different member set is, by construction, a
// different cluster) and is always read back in full.
type Cluster struct {
	ID                    string    `db:"id" json:"id"`
	MemberSequenceIDsJSON string    `db:"member_sequence_ids" json:"-"`
	Cohesion              float64   `db:"cohesion" json:"cohesion"`
	Active                bool      `db:"active" json:"active"`
	Proactive             bool      `db:"proactive" json:"proactive"`
	DetectedAt            time.Time `db:"detected_at" json:"detectedAt"`
	UpdatedAt             time.Time `db:"updated_at" json:"updatedAt"`

	MemberSequenceIDs []int64 `db:"-" json:"memberSequenceIds,omitempty"`
}

// SuggestionState is the human-review lifecycle state of a Suggestion.
type SuggestionState string

const (
	SuggestionPending  SuggestionState = "pending"
	SuggestionApproved SuggestionState = "approved"
	SuggestionRejected SuggestionState = "rejected"
	SuggestionDeferred SuggestionState = "deferred"
	SuggestionExpired  SuggestionState = "expired"
)

// Suggestion is a proposed (cluster, pattern) match awaiting human
// review. The four sub-scores and ExplanationJSON are kept distinct
// from the human-readable Explanation text structured
// explanation requirement: the UI (out of scope here) renders one, the
// operator reads the other.
type Suggestion struct {
	ID               string          `db:"id" json:"id"`
	ClusterID        string          `db:"cluster_id" json:"clusterId"`
	PatternID        string          `db:"pattern_id" json:"patternId"`
	NamingScore      float64         `db:"naming_score" json:"namingScore"`
	CorrelationScore float64         `db:"correlation_score" json:"correlationScore"`
	RangeScore       float64         `db:"range_score" json:"rangeScore"`
	RateScore        float64         `db:"rate_score" json:"rateScore"`
	Overall          float64         `db:"overall" json:"overall"`
	Explanation      string          `db:"explanation" json:"explanation"`
	ExplanationJSON  string          `db:"explanation_json" json:"explanationJson"`
	State            SuggestionState `db:"state" json:"state"`
	Reviewer         *string         `db:"reviewer" json:"reviewer,omitempty"`
	ReviewedAt       *time.Time      `db:"reviewed_at" json:"reviewedAt,omitempty"`
	RejectionReason  *string         `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	ExpiresAt        time.Time       `db:"expires_at" json:"expiresAt"`
}

// Binding is the durable, approved assignment of a tag to a pattern
// role. It outlives the suggestion that produced it (a suggestion can
// later be pruned by maintenance; the binding stays until explicitly
// unbound).
type Binding struct {
	ID                  string    `db:"id" json:"id"`
	TagID               string    `db:"tag_id" json:"tagId"`
	PatternID           string    `db:"pattern_id" json:"patternId"`
	RoleName            *string   `db:"role_name" json:"roleName,omitempty"`
	Reviewer            string    `db:"reviewer" json:"reviewer"`
	ConfidenceAtBinding float64   `db:"confidence_at_binding" json:"confidenceAtBinding"`
	BoundAt             time.Time `db:"bound_at" json:"boundAt"`
}

// FeedbackAction is the reviewer decision that produced a FeedbackEntry.
type FeedbackAction string

const (
	FeedbackApprove FeedbackAction = "approve"
	FeedbackReject  FeedbackAction = "reject"
	FeedbackDefer   FeedbackAction = "defer"
)

// FeedbackEntry is the append-only audit trail of every review decision,
// carrying the pattern confidence before/after so the learning curve in
// C11 can be replayed or inspected without recomputing it.
type FeedbackEntry struct {
	ID               string         `db:"id" json:"id"`
	SuggestionID     string         `db:"suggestion_id" json:"suggestionId"`
	Action           FeedbackAction `db:"action" json:"action"`
	Actor            string         `db:"actor" json:"actor"`
	ConfidenceBefore *float64       `db:"confidence_before" json:"confidenceBefore,omitempty"`
	ConfidenceAfter  *float64       `db:"confidence_after" json:"confidenceAfter,omitempty"`
	RejectionReason  *string        `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
}
