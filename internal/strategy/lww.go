package strategy

import (
	"errors"

	"taskforge-sync-server/internal/domain"
)

// LastWriteWins picks the later revision wholesale. Ties on the timestamp
// break by lexicographically higher device id, so every replica picks the
// same winner without shared clocks.
type LastWriteWins struct{}

func (s *LastWriteWins) Name() domain.ResolutionStrategy {
	return domain.StrategyLastWriteWins
}

// Winner returns the revision last-write-wins would keep.
func (s *LastWriteWins) Winner(local, remote *domain.Revision) *domain.Revision {
	if local.ModifiedAt.After(remote.ModifiedAt) {
		return local
	}
	if remote.ModifiedAt.After(local.ModifiedAt) {
		return remote
	}
	if local.DeviceID > remote.DeviceID {
		return local
	}
	return remote
}

func (s *LastWriteWins) Apply(c *domain.Conflict) (*domain.Merged, error) {
	if c.Local == nil || c.Remote == nil {
		return nil, errors.New("last-write-wins needs both contending revisions")
	}
	winner := s.Winner(c.Local, c.Remote)
	return &domain.Merged{
		Fields:  winner.Fields.Clone(),
		Deleted: winner.Deleted,
	}, nil
}
