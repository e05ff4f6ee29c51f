package strategy

import (
	"errors"
	"fmt"
	"strings"

	"taskforge-sync-server/internal/domain"
)

// Strategy turns a conflict into a merged document, or fails with a named
// error. Strategies are pure: no I/O, no mutation of the conflict.
type Strategy interface {
	Name() domain.ResolutionStrategy
	Apply(c *domain.Conflict) (*domain.Merged, error)
}

var (
	_ Strategy = (*LastWriteWins)(nil)
	_ Strategy = (*PreserveNonDeleted)(nil)
	_ Strategy = (*FieldMerge)(nil)
	_ Strategy = (*RuleSet)(nil)
	_ Strategy = (*Manual)(nil)
)

// ErrNoLiveRevision means preserve-non-deleted found nothing to preserve.
var ErrNoLiveRevision = errors.New("no live revision to preserve")

// ErrNotEditDelete means preserve-non-deleted was applied to the wrong
// conflict type.
var ErrNotEditDelete = errors.New("preserve-non-deleted only applies to edit-delete conflicts")

// ErrTombstoneContender means a field-level merge was attempted against a
// deletion, which has no field set to merge.
var ErrTombstoneContender = errors.New("cannot field-merge against a deletion tombstone")

// UnresolvedFieldsError reports fields both sides changed to different values.
// Partial carries everything that did merge, so callers can escalate only the
// listed fields.
type UnresolvedFieldsError struct {
	Fields  []string
	Partial domain.Fields
}

func (e *UnresolvedFieldsError) Error() string {
	return fmt.Sprintf("fields require a per-field decision: %s", strings.Join(e.Fields, ", "))
}

// MissingChoiceError reports conflicting fields a manual decision left out.
type MissingChoiceError struct {
	Fields []string
}

func (e *MissingChoiceError) Error() string {
	return fmt.Sprintf("manual decision missing choices for: %s", strings.Join(e.Fields, ", "))
}

// For builds the strategy named by the request. Rule sets and manual
// decisions carry their parameters in the request.
func For(req *domain.ResolveConflictRequest) (Strategy, error) {
	switch req.Strategy {
	case domain.StrategyLastWriteWins:
		return &LastWriteWins{}, nil
	case domain.StrategyPreserveNonDeleted:
		return &PreserveNonDeleted{}, nil
	case domain.StrategyFieldMerge:
		return &FieldMerge{}, nil
	case domain.StrategyRuleSet:
		return &RuleSet{Rules: req.Rules}, nil
	case domain.StrategyManual:
		return &Manual{Choices: req.FieldChoices}, nil
	default:
		return nil, fmt.Errorf("unknown resolution strategy: %s", req.Strategy)
	}
}
