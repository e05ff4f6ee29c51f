package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"taskforge-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

var ErrResolutionNotFound = errors.New("resolution record not found")

type ResolutionRepository interface {
	Create(record *domain.ResolutionRecord) error
	Get(id string) (*domain.ResolutionRecord, error)
	ListByDocument(documentID string) ([]*domain.ResolutionRecord, error)
	FindBySuperseded(documentID string, superseded []string) (*domain.ResolutionRecord, error)
	Delete(id string) error
}

type resolutionRepository struct {
	client *kivik.Client
	dbName string
}

func NewResolutionRepository(client *kivik.Client, dbName string) ResolutionRepository {
	return &resolutionRepository{
		client: client,
		dbName: dbName,
	}
}

func resolutionDocID(id string) string { return fmt.Sprintf("resolution:%s", id) }

func (r *resolutionRepository) Create(record *domain.ResolutionRecord) error {
	db := r.client.DB(r.dbName)

	if _, err := db.Put(context.Background(), resolutionDocID(record.ID), record); err != nil {
		return fmt.Errorf("failed to create resolution record: %w", err)
	}

	return nil
}

func (r *resolutionRepository) Get(id string) (*domain.ResolutionRecord, error) {
	db := r.client.DB(r.dbName)

	row := db.Get(context.Background(), resolutionDocID(id))

	var record domain.ResolutionRecord
	if err := row.ScanDoc(&record); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrResolutionNotFound
		}
		return nil, fmt.Errorf("failed to read resolution record: %w", err)
	}

	return &record, nil
}

func (r *resolutionRepository) ListByDocument(documentID string) ([]*domain.ResolutionRecord, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"document_id": documentID,
			"strategy":    map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list resolution records: %w", err)
	}
	defer rows.Close()

	var records []*domain.ResolutionRecord
	for rows.Next() {
		var record domain.ResolutionRecord
		if err := rows.ScanDoc(&record); err != nil {
			continue
		}
		records = append(records, &record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ResolvedAt.Before(records[j].ResolvedAt)
	})

	return records, nil
}

func (r *resolutionRepository) FindBySuperseded(documentID string, superseded []string) (*domain.ResolutionRecord, error) {
	records, err := r.ListByDocument(documentID)
	if err != nil {
		return nil, err
	}

	want := append([]string(nil), superseded...)
	sort.Strings(want)

	for _, record := range records {
		got := append([]string(nil), record.SupersededRevisionIDs...)
		sort.Strings(got)
		if equalStrings(want, got) {
			return record, nil
		}
	}

	return nil, nil
}

func (r *resolutionRepository) Delete(id string) error {
	db := r.client.DB(r.dbName)

	docID := resolutionDocID(id)
	row := db.Get(context.Background(), docID)

	var doc map[string]interface{}
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return ErrResolutionNotFound
		}
		return fmt.Errorf("failed to read resolution record: %w", err)
	}

	rev, _ := doc["_rev"].(string)
	if _, err := db.Delete(context.Background(), docID, rev); err != nil {
		return fmt.Errorf("failed to delete resolution record: %w", err)
	}

	return nil
}

func equalStrings(a, b []string) bool {
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
