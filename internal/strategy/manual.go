package strategy

import (
	"errors"

	"taskforge-sync-server/internal/domain"
)

// Manual composes the final document from externally supplied per-field
// choices. Every conflicting field needs a choice; anything less fails before
// a partial document can be written.
type Manual struct {
	Choices map[string]domain.FieldValue
}

func (s *Manual) Name() domain.ResolutionStrategy {
	return domain.StrategyManual
}

func (s *Manual) Apply(c *domain.Conflict) (*domain.Merged, error) {
	if c.Local == nil || c.Remote == nil {
		return nil, errors.New("manual resolution needs both contending revisions")
	}

	var missing []string
	for _, name := range c.ConflictingFields {
		if _, ok := s.Choices[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingChoiceError{Fields: missing}
	}

	// Non-conflicting fields come from whatever three-way merging can settle;
	// the explicit choices override the rest.
	base := make(domain.Fields)
	switch {
	case c.Local.Deleted && !c.Remote.Deleted:
		base = c.Remote.Fields.Clone()
	case c.Remote.Deleted && !c.Local.Deleted:
		base = c.Local.Fields.Clone()
	default:
		merged, err := (&FieldMerge{}).Apply(c)
		if err != nil {
			var unres *UnresolvedFieldsError
			if !errors.As(err, &unres) {
				return nil, err
			}
			base = unres.Partial
		} else {
			base = merged.Fields
		}
	}

	for name, choice := range s.Choices {
		base[name] = choice.Clone()
	}
	return &domain.Merged{Fields: base}, nil
}
