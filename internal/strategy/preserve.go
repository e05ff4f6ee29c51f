package strategy

import "taskforge-sync-server/internal/domain"

// PreserveNonDeleted keeps the live side of an edit-delete conflict and
// discards the tombstone. It is never applied implicitly: discarding a
// deletion requires this strategy to be chosen by an explicit decision.
type PreserveNonDeleted struct{}

func (s *PreserveNonDeleted) Name() domain.ResolutionStrategy {
	return domain.StrategyPreserveNonDeleted
}

func (s *PreserveNonDeleted) Apply(c *domain.Conflict) (*domain.Merged, error) {
	if c.Type != domain.ConflictEditDelete {
		return nil, ErrNotEditDelete
	}

	var live *domain.Revision
	switch {
	case c.Local != nil && !c.Local.Deleted:
		live = c.Local
	case c.Remote != nil && !c.Remote.Deleted:
		live = c.Remote
	default:
		return nil, ErrNoLiveRevision
	}

	return &domain.Merged{Fields: live.Fields.Clone()}, nil
}
