package domain

import (
	"sort"
	"time"
)

type ConflictType string

const (
	ConflictEditEdit         ConflictType = "edit_edit"
	ConflictEditDelete       ConflictType = "edit_delete"
	ConflictMergeCandidate   ConflictType = "merge_candidate"
	ConflictVersionMismatch  ConflictType = "version_mismatch"
	ConflictChecksumMismatch ConflictType = "checksum_mismatch"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type ResolutionStrategy string

const (
	StrategyLastWriteWins      ResolutionStrategy = "last_write_wins"
	StrategyPreserveNonDeleted ResolutionStrategy = "preserve_non_deleted"
	StrategyFieldMerge         ResolutionStrategy = "field_merge"
	StrategyRuleSet            ResolutionStrategy = "rule_set"
	StrategyManual             ResolutionStrategy = "manual"
)

func (s ResolutionStrategy) IsValid() bool {
	switch s {
	case StrategyLastWriteWins, StrategyPreserveNonDeleted, StrategyFieldMerge, StrategyRuleSet, StrategyManual:
		return true
	default:
		return false
	}
}

type ConflictStatus string

const (
	StatusDetected         ConflictStatus = "detected"
	StatusAwaitingDecision ConflictStatus = "awaiting_decision"
	StatusAutoResolving    ConflictStatus = "auto_resolving"
	StatusManualResolving  ConflictStatus = "manual_resolving"
	StatusResolved         ConflictStatus = "resolved"
	StatusFailed           ConflictStatus = "failed"
)

// Conflict is a transient divergence between revisions of one document. It is
// rebuilt on every detection run and never persisted on its own.
type Conflict struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Type       ConflictType   `json:"type"`
	Severity   Severity       `json:"severity"`
	Status     ConflictStatus `json:"status"`

	// Base is the common baseline revision when one is known, nil otherwise.
	Base   *Revision `json:"base,omitempty"`
	Local  *Revision `json:"local"`
	Remote *Revision `json:"remote"`

	// ContenderIDs holds every contending revision id, including ones reduced
	// away when more than two devices diverged. A resolution supersedes all
	// of them.
	ContenderIDs []string `json:"contender_ids"`

	ConflictingFields   []string `json:"conflicting_fields"`
	AutoResolvable      bool     `json:"auto_resolvable"`
	SuggestedResolution *Merged  `json:"suggested_resolution,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}

// SupersededIDs is the full revision set a resolution of this conflict
// replaces: the base (when known) plus every contender, sorted.
func (c *Conflict) SupersededIDs() []string {
	set := make(map[string]bool, len(c.ContenderIDs)+1)
	for _, id := range c.ContenderIDs {
		set[id] = true
	}
	if c.Base != nil {
		set[c.Base.RevisionID] = true
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Merged is a strategy's output: the document to write back, or a tombstone.
type Merged struct {
	Fields  Fields `json:"fields"`
	Deleted bool   `json:"deleted"`
}

type ResolveConflictRequest struct {
	Strategy     ResolutionStrategy    `json:"strategy" validate:"required,oneof=last_write_wins preserve_non_deleted field_merge rule_set manual"`
	FieldChoices map[string]FieldValue `json:"field_choices,omitempty"`
	Rules        []MergeRule           `json:"rules,omitempty"`
}
