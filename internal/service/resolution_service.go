package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"taskforge-sync-server/internal/detector"
	"taskforge-sync-server/internal/domain"
	"taskforge-sync-server/internal/repository"
	"taskforge-sync-server/internal/strategy"

	"github.com/google/uuid"
)

// EventSink receives discrete conflict lifecycle events. The websocket
// manager implements it; a nil sink disables event emission.
type EventSink interface {
	ConflictDetected(c *domain.Conflict)
	ConflictResolved(record *domain.ResolutionRecord)
	ResolutionUndone(documentID, resolutionID string)
}

// ResolutionService orchestrates detection and resolution. It owns the
// pending-conflict registry and serializes resolution per document; detection
// for distinct documents runs freely in parallel.
type ResolutionService struct {
	revisions   repository.RevisionStore
	resolutions repository.ResolutionRepository
	detector    *detector.Detector
	classifier  *detector.Classifier
	schema      domain.Schema
	undoWindow  time.Duration
	events      EventSink

	mu       sync.Mutex
	pending  map[string]*domain.Conflict // by document id
	byID     map[string]*domain.Conflict
	resolved map[string]string // document id -> last resolved conflict id
	docLocks map[string]*sync.Mutex
}

func NewResolutionService(
	revisions repository.RevisionStore,
	resolutions repository.ResolutionRepository,
	det *detector.Detector,
	classifier *detector.Classifier,
	schema domain.Schema,
	undoWindow time.Duration,
	events EventSink,
) *ResolutionService {
	return &ResolutionService{
		revisions:   revisions,
		resolutions: resolutions,
		detector:    det,
		classifier:  classifier,
		schema:      schema,
		undoWindow:  undoWindow,
		events:      events,
		pending:     make(map[string]*domain.Conflict),
		byID:        make(map[string]*domain.Conflict),
		resolved:    make(map[string]string),
		docLocks:    make(map[string]*sync.Mutex),
	}
}

func (s *ResolutionService) docLock(documentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.docLocks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		s.docLocks[documentID] = lock
	}
	return lock
}

// DetectDocument runs detection over the document's current revision set.
// A pending conflict for the document is replaced only when the divergence
// itself changed: re-detection over an unchanged revision set keeps the
// existing conflict, so listed conflict ids stay stable across scan passes.
func (s *ResolutionService) DetectDocument(documentID string) (*domain.Conflict, error) {
	revs, err := s.revisions.GetRevisions(documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load revisions: %w", err)
	}

	conflict, err := s.detector.Detect(documentID, revs)
	if err != nil {
		return nil, err
	}

	if conflict == nil {
		s.clearPending(documentID)
		return nil, nil
	}

	s.classifier.Classify(conflict)
	registered, fresh := s.registerPending(conflict)
	if fresh {
		s.emitDetected(registered)
	}
	return registered, nil
}

func (s *ResolutionService) ListPending() []*domain.Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Conflict, 0, len(s.pending))
	for _, c := range s.pending {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})
	return out
}

func (s *ResolutionService) GetConflict(conflictID string) (*domain.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[conflictID]
	if !ok {
		return nil, ErrConflictNotFound
	}
	return c, nil
}

// Resolve applies an external decision to a pending conflict.
func (s *ResolutionService) Resolve(conflictID string, req *domain.ResolveConflictRequest, resolvedBy string) (*domain.ResolutionRecord, error) {
	c, err := s.GetConflict(conflictID)
	if err != nil {
		return nil, err
	}

	lock := s.docLock(c.DocumentID)
	lock.Lock()
	defer lock.Unlock()

	// a duplicate delivery of an already-applied decision returns the record
	// it produced, before staleness can reject it
	if existing, err := s.resolutions.FindBySuperseded(c.DocumentID, c.SupersededIDs()); err != nil {
		return nil, fmt.Errorf("failed to check prior resolutions: %w", err)
	} else if existing != nil {
		c.Status = domain.StatusResolved
		s.retirePending(c)
		return existing, nil
	}

	current, err := s.checkCurrent(c)
	if err != nil {
		return nil, err
	}

	strat, err := strategy.For(req)
	if err != nil {
		return nil, &DecisionError{Cause: err}
	}

	c.Status = domain.StatusManualResolving
	merged, err := strat.Apply(c)
	if err != nil {
		s.requeue(c)
		return nil, &DecisionError{Cause: err}
	}

	return s.finalize(c, current, strat.Name(), merged, resolvedBy)
}

// AutoResolve applies the classifier's suggested resolution. Only conflicts
// the classifier marked auto-resolvable qualify; everything else waits for an
// explicit decision.
func (s *ResolutionService) AutoResolve(conflictID string) (*domain.ResolutionRecord, error) {
	c, err := s.GetConflict(conflictID)
	if err != nil {
		return nil, err
	}
	if !c.AutoResolvable || c.SuggestedResolution == nil {
		return nil, ErrNotAutoResolvable
	}

	lock := s.docLock(c.DocumentID)
	lock.Lock()
	defer lock.Unlock()

	if existing, err := s.resolutions.FindBySuperseded(c.DocumentID, c.SupersededIDs()); err != nil {
		return nil, fmt.Errorf("failed to check prior resolutions: %w", err)
	} else if existing != nil {
		c.Status = domain.StatusResolved
		s.retirePending(c)
		return existing, nil
	}

	current, err := s.checkCurrent(c)
	if err != nil {
		return nil, err
	}

	c.Status = domain.StatusAutoResolving
	return s.finalize(c, current, domain.StrategyFieldMerge, c.SuggestedResolution, domain.ResolvedByAuto)
}

// Undo reverts a resolution within the grace window, restoring the exact
// pre-resolution revision set.
func (s *ResolutionService) Undo(resolutionID string) error {
	record, err := s.resolutions.Get(resolutionID)
	if err != nil {
		return err
	}

	if s.undoWindow <= 0 || time.Since(record.ResolvedAt) > s.undoWindow {
		return ErrNotUndoable
	}

	lock := s.docLock(record.DocumentID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.revisions.RestoreRevisions(record.DocumentID, record.PriorRevisions, record.ResolutionRevisionID); err != nil {
		if errors.Is(err, repository.ErrSuperseded) {
			// something newer already built on the resolution
			return ErrNotUndoable
		}
		return fmt.Errorf("failed to restore revisions: %w", err)
	}

	if err := s.resolutions.Delete(record.ID); err != nil {
		return fmt.Errorf("failed to delete resolution record: %w", err)
	}

	if s.events != nil {
		s.events.ResolutionUndone(record.DocumentID, record.ID)
	}

	// the divergence is live again
	if _, err := s.DetectDocument(record.DocumentID); err != nil {
		return err
	}
	return nil
}

func (s *ResolutionService) History(documentID string) ([]*domain.ResolutionRecord, error) {
	return s.resolutions.ListByDocument(documentID)
}

// checkCurrent verifies the conflict still describes the document's current
// revision set. On divergence the stale conflict is dropped, detection
// re-runs, and the decision is rejected.
func (s *ResolutionService) checkCurrent(c *domain.Conflict) ([]*domain.Revision, error) {
	current, err := s.revisions.GetRevisions(c.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load revisions: %w", err)
	}

	currentIDs := make([]string, 0, len(current))
	for _, rev := range current {
		currentIDs = append(currentIDs, rev.RevisionID)
	}
	sort.Strings(currentIDs)

	if !equalIDs(currentIDs, c.SupersededIDs()) {
		s.clearPending(c.DocumentID)
		if _, err := s.DetectDocument(c.DocumentID); err != nil {
			return nil, err
		}
		return nil, &StaleDecisionError{DocumentID: c.DocumentID}
	}

	return current, nil
}

func (s *ResolutionService) finalize(c *domain.Conflict, prior []*domain.Revision, strategyName domain.ResolutionStrategy, merged *domain.Merged, resolvedBy string) (*domain.ResolutionRecord, error) {
	if !merged.Deleted {
		if err := s.schema.Validate(merged.Fields); err != nil {
			s.requeue(c)
			return nil, &ValidationError{Cause: err}
		}
	}

	var maxSeq int64
	for _, rev := range prior {
		if rev.Sequence > maxSeq {
			maxSeq = rev.Sequence
		}
	}

	resolution := &domain.Revision{
		DocumentID: c.DocumentID,
		RevisionID: uuid.New().String(),
		DeviceID:   resolvedBy,
		Sequence:   maxSeq + 1,
		Fields:     merged.Fields,
		ModifiedAt: time.Now(),
		Deleted:    merged.Deleted,
	}
	resolution.Checksum = resolution.ComputeChecksum()

	superseded := c.SupersededIDs()
	if err := s.revisions.WriteResolved(c.DocumentID, resolution, superseded); err != nil {
		if errors.Is(err, repository.ErrSuperseded) {
			// lost the optimistic race; detect against the winner's state
			s.clearPending(c.DocumentID)
			if _, derr := s.DetectDocument(c.DocumentID); derr != nil {
				return nil, derr
			}
			return nil, fmt.Errorf("write-back rejected: %w", repository.ErrSuperseded)
		}
		s.requeue(c)
		return nil, fmt.Errorf("failed to write merged document: %w", err)
	}

	record := &domain.ResolutionRecord{
		ID:                    uuid.New().String(),
		DocumentID:            c.DocumentID,
		Strategy:              strategyName,
		Merged:                merged,
		ResolvedAt:            resolution.ModifiedAt,
		ResolvedBy:            resolvedBy,
		SupersededRevisionIDs: superseded,
		ResolutionRevisionID:  resolution.RevisionID,
		PriorRevisions:        prior,
	}
	if err := s.resolutions.Create(record); err != nil {
		return nil, fmt.Errorf("failed to persist resolution record: %w", err)
	}

	c.Status = domain.StatusResolved
	s.retirePending(c)
	if s.events != nil {
		s.events.ConflictResolved(record)
	}
	return record, nil
}

// requeue returns a conflict whose resolution attempt failed to its queue
// state so it can be retried with the same or an escalated strategy.
func (s *ResolutionService) requeue(c *domain.Conflict) {
	if c.AutoResolvable {
		c.Status = domain.StatusDetected
	} else {
		c.Status = domain.StatusAwaitingDecision
	}
}

// registerPending queues a detected conflict. When the document already has a
// pending conflict over the same revision set with the same classification,
// that conflict is kept instead, id and detection time intact; replacement
// only happens when the underlying divergence changed.
func (s *ResolutionService) registerPending(c *domain.Conflict) (*domain.Conflict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.pending[c.DocumentID]; ok {
		if old.Type == c.Type && equalIDs(old.SupersededIDs(), c.SupersededIDs()) {
			return old, false
		}
		delete(s.byID, old.ID)
	}
	s.pending[c.DocumentID] = c
	s.byID[c.ID] = c
	return c, true
}

// retirePending takes a resolved conflict out of the pending queue but keeps
// it addressable, so a re-submitted decision can still find it and be answered
// with the record the first submission produced.
func (s *ResolutionService) retirePending(c *domain.Conflict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.resolved[c.DocumentID]; ok && prev != c.ID {
		delete(s.byID, prev)
	}
	s.resolved[c.DocumentID] = c.ID
	if cur, ok := s.pending[c.DocumentID]; ok && cur.ID == c.ID {
		delete(s.pending, c.DocumentID)
	}
	s.byID[c.ID] = c
}

func (s *ResolutionService) clearPending(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.pending[documentID]; ok {
		delete(s.byID, old.ID)
		delete(s.pending, documentID)
	}
}

func (s *ResolutionService) emitDetected(c *domain.Conflict) {
	if s.events != nil {
		s.events.ConflictDetected(c)
	}
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
