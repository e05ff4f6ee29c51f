package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taskforge-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// ErrSuperseded means the document's current revision set changed underfoot:
// the optimistic write-back check failed and detection must re-run.
var ErrSuperseded = errors.New("revision set superseded")

// RevisionStore is the record-store surface this subsystem consumes. The
// record store remains the source of truth; WriteResolved is the only write
// path and it is conditional on the superseded set still being current.
type RevisionStore interface {
	GetRevisions(documentID string) ([]*domain.Revision, error)
	ListDocuments() ([]string, error)
	WriteResolved(documentID string, resolution *domain.Revision, superseded []string) error
	RestoreRevisions(documentID string, prior []*domain.Revision, undoneRevisionID string) error
}

type headDoc struct {
	Rev         string    `json:"_rev,omitempty"`
	DocumentID  string    `json:"document_id"`
	RevisionIDs []string  `json:"revision_ids"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type revisionStore struct {
	client *kivik.Client
	dbName string
}

func NewRevisionStore(client *kivik.Client, dbName string) RevisionStore {
	return &revisionStore{
		client: client,
		dbName: dbName,
	}
}

func headID(documentID string) string { return fmt.Sprintf("head:%s", documentID) }

func revID(documentID, revisionID string) string {
	return fmt.Sprintf("rev:%s:%s", documentID, revisionID)
}

func (r *revisionStore) GetRevisions(documentID string) ([]*domain.Revision, error) {
	db := r.client.DB(r.dbName)

	var head headDoc
	row := db.Get(context.Background(), headID(documentID))
	if err := row.ScanDoc(&head); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read document head: %w", err)
	}

	revisions := make([]*domain.Revision, 0, len(head.RevisionIDs))
	for _, id := range head.RevisionIDs {
		var rev domain.Revision
		row := db.Get(context.Background(), revID(documentID, id))
		if err := row.ScanDoc(&rev); err != nil {
			return nil, fmt.Errorf("failed to read revision %s: %w", id, err)
		}
		revisions = append(revisions, &rev)
	}

	return revisions, nil
}

func (r *revisionStore) ListDocuments() ([]string, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"revision_ids": map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var head headDoc
		if err := rows.ScanDoc(&head); err != nil {
			continue
		}
		ids = append(ids, head.DocumentID)
	}

	return ids, nil
}

func (r *revisionStore) WriteResolved(documentID string, resolution *domain.Revision, superseded []string) error {
	db := r.client.DB(r.dbName)

	var head headDoc
	row := db.Get(context.Background(), headID(documentID))
	if err := row.ScanDoc(&head); err != nil {
		return fmt.Errorf("failed to read document head: %w", err)
	}

	allowed := make(map[string]bool, len(superseded))
	for _, id := range superseded {
		allowed[id] = true
	}
	for _, id := range head.RevisionIDs {
		if !allowed[id] {
			return ErrSuperseded
		}
	}

	if _, err := db.Put(context.Background(), revID(documentID, resolution.RevisionID), resolution); err != nil {
		return fmt.Errorf("failed to write resolution revision: %w", err)
	}

	head.RevisionIDs = []string{resolution.RevisionID}
	head.UpdatedAt = time.Now()
	if _, err := db.Put(context.Background(), headID(documentID), head); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return ErrSuperseded
		}
		return fmt.Errorf("failed to update document head: %w", err)
	}

	return nil
}

func (r *revisionStore) RestoreRevisions(documentID string, prior []*domain.Revision, undoneRevisionID string) error {
	db := r.client.DB(r.dbName)

	var head headDoc
	row := db.Get(context.Background(), headID(documentID))
	if err := row.ScanDoc(&head); err != nil {
		return fmt.Errorf("failed to read document head: %w", err)
	}

	// only the resolution being undone may sit at the head
	if len(head.RevisionIDs) != 1 || head.RevisionIDs[0] != undoneRevisionID {
		return ErrSuperseded
	}

	ids := make([]string, 0, len(prior))
	for _, rev := range prior {
		docID := revID(documentID, rev.RevisionID)
		row := db.Get(context.Background(), docID)
		if err := row.ScanDoc(&domain.Revision{}); err != nil {
			if kivik.HTTPStatus(err) != http.StatusNotFound {
				return fmt.Errorf("failed to check prior revision: %w", err)
			}
			if _, err := db.Put(context.Background(), docID, rev); err != nil {
				return fmt.Errorf("failed to restore prior revision: %w", err)
			}
		}
		ids = append(ids, rev.RevisionID)
	}

	head.RevisionIDs = ids
	head.UpdatedAt = time.Now()
	if _, err := db.Put(context.Background(), headID(documentID), head); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return ErrSuperseded
		}
		return fmt.Errorf("failed to restore document head: %w", err)
	}

	return nil
}
