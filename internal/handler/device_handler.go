package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"taskforge-sync-server/internal/domain"
	"taskforge-sync-server/internal/middleware"
	"taskforge-sync-server/internal/service"
	"taskforge-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type DeviceHandler struct {
	deviceService *service.DeviceService
	validate      *validator.Validate
}

func NewDeviceHandler(deviceService *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
		validate:      validator.New(),
	}
}

func (h *DeviceHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req domain.EnrollDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	resp, err := h.deviceService.Enroll(&req)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	response.Created(w, resp)
}

func (h *DeviceHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.DeviceLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	resp, err := h.deviceService.Login(&req)
	if err != nil {
		if errors.Is(err, service.ErrDeviceRevoked) {
			response.Unauthorized(w, "device has been revoked")
			return
		}
		response.Unauthorized(w, "invalid device credentials")
		return
	}

	response.Success(w, resp)
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	if middleware.GetDeviceID(r) == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	devices, err := h.deviceService.List()
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	response.Success(w, devices)
}

func (h *DeviceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if middleware.GetDeviceID(r) == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := h.deviceService.Revoke(mux.Vars(r)["id"]); err != nil {
		response.NotFound(w, "device not found")
		return
	}

	response.Success(w, map[string]interface{}{"revoked": true})
}
