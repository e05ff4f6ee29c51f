package service

import (
	"errors"
	"fmt"
	"time"

	"taskforge-sync-server/internal/domain"
	"taskforge-sync-server/internal/repository"
	"taskforge-sync-server/pkg/hash"
	"taskforge-sync-server/pkg/jwt"

	"github.com/google/uuid"
)

type DeviceService struct {
	repo          repository.DeviceRepository
	jwtSecret     string
	jwtExpiration time.Duration
}

func NewDeviceService(repo repository.DeviceRepository, jwtSecret string, jwtExpiration time.Duration) *DeviceService {
	return &DeviceService{
		repo:          repo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *DeviceService) Enroll(req *domain.EnrollDeviceRequest) (*domain.DeviceTokenResponse, error) {
	keyHash, err := hash.Hash(req.AccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to hash access key: %w", err)
	}

	now := time.Now()
	device := &domain.Device{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Platform:   req.Platform,
		KeyHash:    keyHash,
		LastActive: now,
		CreatedAt:  now,
	}

	if err := s.repo.Create(device); err != nil {
		return nil, err
	}

	token, err := jwt.GenerateToken(device.ID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &domain.DeviceTokenResponse{
		Device: toDeviceResponse(device),
		Token:  token,
	}, nil
}

func (s *DeviceService) Login(req *domain.DeviceLoginRequest) (*domain.DeviceTokenResponse, error) {
	device, err := s.repo.FindByID(req.DeviceID)
	if err != nil {
		return nil, err
	}

	if device.IsRevoked {
		return nil, ErrDeviceRevoked
	}

	if err := hash.Compare(device.KeyHash, req.AccessKey); err != nil {
		return nil, errors.New("invalid access key")
	}

	if err := s.repo.UpdateLastActive(device.ID); err != nil {
		return nil, err
	}

	token, err := jwt.GenerateToken(device.ID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &domain.DeviceTokenResponse{
		Device: toDeviceResponse(device),
		Token:  token,
	}, nil
}

func (s *DeviceService) List() ([]*domain.DeviceResponse, error) {
	devices, err := s.repo.List()
	if err != nil {
		return nil, err
	}

	var responses []*domain.DeviceResponse
	for _, d := range devices {
		responses = append(responses, toDeviceResponse(d))
	}
	return responses, nil
}

func (s *DeviceService) Revoke(deviceID string) error {
	if _, err := s.repo.FindByID(deviceID); err != nil {
		return err
	}
	return s.repo.Revoke(deviceID)
}

func toDeviceResponse(d *domain.Device) *domain.DeviceResponse {
	return &domain.DeviceResponse{
		ID:         d.ID,
		Name:       d.Name,
		Platform:   d.Platform,
		LastActive: d.LastActive,
		IsRevoked:  d.IsRevoked,
	}
}
