package domain

import "time"

// Device is an enrolled replica. Its id ends up on every revision it edits and
// in the audit trail of every resolution it decides.
type Device struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Platform   string    `json:"platform"`
	KeyHash    string    `json:"key_hash"`
	LastActive time.Time `json:"last_active"`
	CreatedAt  time.Time `json:"created_at"`
	IsRevoked  bool      `json:"is_revoked"`
}

type EnrollDeviceRequest struct {
	Name      string `json:"name" validate:"required"`
	Platform  string `json:"platform" validate:"required"`
	AccessKey string `json:"access_key" validate:"required,min=8"`
}

type DeviceLoginRequest struct {
	DeviceID  string `json:"device_id" validate:"required"`
	AccessKey string `json:"access_key" validate:"required"`
}

type DeviceResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Platform   string    `json:"platform"`
	LastActive time.Time `json:"last_active"`
	IsRevoked  bool      `json:"is_revoked"`
}

type DeviceTokenResponse struct {
	Device *DeviceResponse `json:"device"`
	Token  string          `json:"token"`
}
