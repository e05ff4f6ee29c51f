package service

import (
	"errors"
	"testing"
	"time"

	"taskforge-sync-server/internal/domain"
	"taskforge-sync-server/pkg/jwt"
)

type mockDeviceRepo struct {
	devices map[string]*domain.Device
}

func newMockDeviceRepo() *mockDeviceRepo {
	return &mockDeviceRepo{devices: make(map[string]*domain.Device)}
}

func (m *mockDeviceRepo) Create(device *domain.Device) error {
	m.devices[device.ID] = device
	return nil
}

func (m *mockDeviceRepo) FindByID(deviceID string) (*domain.Device, error) {
	device, ok := m.devices[deviceID]
	if !ok {
		return nil, errors.New("device not found")
	}
	return device, nil
}

func (m *mockDeviceRepo) List() ([]*domain.Device, error) {
	var out []*domain.Device
	for _, d := range m.devices {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDeviceRepo) Revoke(deviceID string) error {
	device, ok := m.devices[deviceID]
	if !ok {
		return errors.New("device not found")
	}
	device.IsRevoked = true
	return nil
}

func (m *mockDeviceRepo) UpdateLastActive(deviceID string) error {
	device, ok := m.devices[deviceID]
	if !ok {
		return errors.New("device not found")
	}
	device.LastActive = time.Now()
	return nil
}

func TestDeviceService_EnrollAndLogin(t *testing.T) {
	repo := newMockDeviceRepo()
	svc := NewDeviceService(repo, "test-secret", time.Hour)

	enrolled, err := svc.Enroll(&domain.EnrollDeviceRequest{
		Name:      "laptop",
		Platform:  "linux",
		AccessKey: "correct-horse-battery",
	})
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if enrolled.Token == "" {
		t.Fatal("expected a token on enrollment")
	}

	claims, err := jwt.ValidateToken(enrolled.Token, "test-secret")
	if err != nil {
		t.Fatalf("token validation failed: %v", err)
	}
	if claims.DeviceID != enrolled.Device.ID {
		t.Errorf("token carries device %q, want %q", claims.DeviceID, enrolled.Device.ID)
	}

	login, err := svc.Login(&domain.DeviceLoginRequest{
		DeviceID:  enrolled.Device.ID,
		AccessKey: "correct-horse-battery",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if login.Token == "" {
		t.Error("expected a token on login")
	}
}

func TestDeviceService_LoginWrongKey(t *testing.T) {
	repo := newMockDeviceRepo()
	svc := NewDeviceService(repo, "test-secret", time.Hour)

	enrolled, err := svc.Enroll(&domain.EnrollDeviceRequest{
		Name:      "laptop",
		Platform:  "linux",
		AccessKey: "correct-horse-battery",
	})
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	if _, err := svc.Login(&domain.DeviceLoginRequest{
		DeviceID:  enrolled.Device.ID,
		AccessKey: "wrong-key-entirely",
	}); err == nil {
		t.Error("expected login to fail with the wrong key")
	}
}

func TestDeviceService_RevokedDeviceCannotLogin(t *testing.T) {
	repo := newMockDeviceRepo()
	svc := NewDeviceService(repo, "test-secret", time.Hour)

	enrolled, err := svc.Enroll(&domain.EnrollDeviceRequest{
		Name:      "old-phone",
		Platform:  "android",
		AccessKey: "correct-horse-battery",
	})
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	if err := svc.Revoke(enrolled.Device.ID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	_, err = svc.Login(&domain.DeviceLoginRequest{
		DeviceID:  enrolled.Device.ID,
		AccessKey: "correct-horse-battery",
	})
	if !errors.Is(err, ErrDeviceRevoked) {
		t.Errorf("expected ErrDeviceRevoked, got %v", err)
	}
}
