package service

import (
	"context"
	"log"
	"time"

	"taskforge-sync-server/internal/repository"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the exponential backoff used for resolution write-backs.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// ScanService is the in-process sync coordinator. It walks the known
// documents, runs detection, auto-resolves what the classifier allows, and
// retries transient failures with bounded exponential backoff. Conflicts
// needing a decision just stay pending; they never time out.
type ScanService struct {
	revisions repository.RevisionStore
	engine    *ResolutionService
	interval  time.Duration
	retry     RetryPolicy
}

func NewScanService(revisions repository.RevisionStore, engine *ResolutionService, interval time.Duration, retry RetryPolicy) *ScanService {
	return &ScanService{
		revisions: revisions,
		engine:    engine,
		interval:  interval,
		retry:     retry,
	}
}

func (s *ScanService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ScanOnce(ctx); err != nil {
				log.Printf("scan pass failed: %v", err)
			}
		}
	}
}

// ScanOnce runs one detection pass over every known document.
func (s *ScanService) ScanOnce(ctx context.Context) error {
	documentIDs, err := s.revisions.ListDocuments()
	if err != nil {
		return err
	}

	for _, documentID := range documentIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conflict, err := s.engine.DetectDocument(documentID)
		if err != nil {
			log.Printf("detection failed for document %s: %v", documentID, err)
			continue
		}
		if conflict == nil || !conflict.AutoResolvable {
			continue
		}

		if err := s.autoResolveWithRetry(ctx, conflict.ID); err != nil {
			log.Printf("auto-resolution failed for document %s: %v", documentID, err)
		}
	}

	return nil
}

func (s *ScanService) autoResolveWithRetry(ctx context.Context, conflictID string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retry.InitialInterval
	bo.MaxInterval = s.retry.MaxInterval
	bo.MaxElapsedTime = s.retry.MaxElapsedTime

	operation := func() error {
		_, err := s.engine.AutoResolve(conflictID)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}
