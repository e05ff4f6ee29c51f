package repository

import (
	"context"
	"fmt"
	"time"

	"taskforge-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type DeviceRepository interface {
	Create(device *domain.Device) error
	FindByID(deviceID string) (*domain.Device, error)
	List() ([]*domain.Device, error)
	Revoke(deviceID string) error
	UpdateLastActive(deviceID string) error
}

type deviceRepository struct {
	client *kivik.Client
	dbName string
}

func NewDeviceRepository(client *kivik.Client, dbName string) DeviceRepository {
	return &deviceRepository{
		client: client,
		dbName: dbName,
	}
}

func deviceDocID(id string) string { return fmt.Sprintf("device:%s", id) }

func (r *deviceRepository) Create(device *domain.Device) error {
	db := r.client.DB(r.dbName)

	if _, err := db.Put(context.Background(), deviceDocID(device.ID), device); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	return nil
}

func (r *deviceRepository) FindByID(deviceID string) (*domain.Device, error) {
	db := r.client.DB(r.dbName)

	row := db.Get(context.Background(), deviceDocID(deviceID))

	var device domain.Device
	if err := row.ScanDoc(&device); err != nil {
		return nil, fmt.Errorf("failed to find device: %w", err)
	}

	return &device, nil
}

func (r *deviceRepository) List() ([]*domain.Device, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"platform": map[string]interface{}{"$exists": true},
			"key_hash": map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*domain.Device
	for rows.Next() {
		var device domain.Device
		if err := rows.ScanDoc(&device); err != nil {
			continue
		}
		devices = append(devices, &device)
	}

	return devices, nil
}

func (r *deviceRepository) Revoke(deviceID string) error {
	return r.patch(deviceID, func(doc map[string]interface{}) {
		doc["is_revoked"] = true
	})
}

func (r *deviceRepository) UpdateLastActive(deviceID string) error {
	return r.patch(deviceID, func(doc map[string]interface{}) {
		doc["last_active"] = time.Now()
	})
}

func (r *deviceRepository) patch(deviceID string, mutate func(map[string]interface{})) error {
	db := r.client.DB(r.dbName)
	docID := deviceDocID(deviceID)

	var doc map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&doc); err != nil {
		return fmt.Errorf("failed to fetch device for update: %w", err)
	}

	mutate(doc)

	if _, err := db.Put(context.Background(), docID, doc); err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}

	return nil
}
