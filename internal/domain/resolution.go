package domain

import "time"

// ResolvedByAuto marks resolutions applied without an external decision.
const ResolvedByAuto = "auto"

// ResolutionRecord is the persisted outcome of resolving one conflict. It is
// the only path through which this service writes merged documents back.
type ResolutionRecord struct {
	ID                    string             `json:"id"`
	DocumentID            string             `json:"document_id"`
	Strategy              ResolutionStrategy `json:"strategy"`
	Merged                *Merged            `json:"merged"`
	ResolvedAt            time.Time          `json:"resolved_at"`
	ResolvedBy            string             `json:"resolved_by"`
	SupersededRevisionIDs []string           `json:"superseded_revision_ids"`

	// ResolutionRevisionID is the revision the write-back produced.
	ResolutionRevisionID string `json:"resolution_revision_id"`

	// PriorRevisions snapshots the superseded revision set so the resolution
	// can be undone within the grace window.
	PriorRevisions []*Revision `json:"prior_revisions"`
}

type RuleCondition string

const (
	ConditionAlways   RuleCondition = "always"
	ConditionDiffers  RuleCondition = "differs"
	ConditionOneEmpty RuleCondition = "one_empty"
)

type RuleAction string

const (
	ActionPreferNewer    RuleAction = "prefer_newer"
	ActionPreferNonEmpty RuleAction = "prefer_non_empty"
	ActionPreferLocal    RuleAction = "prefer_local"
	ActionPreferRemote   RuleAction = "prefer_remote"
	ActionPreferMax      RuleAction = "prefer_max"
)

// MergeRule is one entry of a user-defined rule set. Rules are evaluated
// top-down; the first rule matching a field decides it.
type MergeRule struct {
	Field     string        `json:"field" validate:"required"`
	Condition RuleCondition `json:"condition" validate:"required,oneof=always differs one_empty"`
	Action    RuleAction    `json:"action" validate:"required,oneof=prefer_newer prefer_non_empty prefer_local prefer_remote prefer_max"`
}
