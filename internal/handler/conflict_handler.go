package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"taskforge-sync-server/internal/domain"
	"taskforge-sync-server/internal/middleware"
	"taskforge-sync-server/internal/repository"
	"taskforge-sync-server/internal/service"
	"taskforge-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type ConflictHandler struct {
	engine   *service.ResolutionService
	validate *validator.Validate
}

func NewConflictHandler(engine *service.ResolutionService) *ConflictHandler {
	return &ConflictHandler{
		engine:   engine,
		validate: validator.New(),
	}
}

func (h *ConflictHandler) List(w http.ResponseWriter, r *http.Request) {
	if middleware.GetDeviceID(r) == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	response.Success(w, h.engine.ListPending())
}

func (h *ConflictHandler) Get(w http.ResponseWriter, r *http.Request) {
	if middleware.GetDeviceID(r) == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	conflict, err := h.engine.GetConflict(mux.Vars(r)["id"])
	if err != nil {
		response.NotFound(w, "conflict not found")
		return
	}

	response.Success(w, conflict)
}

func (h *ConflictHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	deviceID := middleware.GetDeviceID(r)
	if deviceID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	record, err := h.engine.Resolve(mux.Vars(r)["id"], &req, deviceID)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	response.Success(w, record)
}

func (h *ConflictHandler) Undo(w http.ResponseWriter, r *http.Request) {
	if middleware.GetDeviceID(r) == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	err := h.engine.Undo(mux.Vars(r)["id"])
	switch {
	case err == nil:
		response.Success(w, map[string]interface{}{"undone": true})
	case errors.Is(err, repository.ErrResolutionNotFound):
		response.NotFound(w, "resolution not found")
	case errors.Is(err, service.ErrNotUndoable):
		response.Conflict(w, "resolution is no longer undoable")
	default:
		response.InternalError(w, err.Error())
	}
}

func (h *ConflictHandler) History(w http.ResponseWriter, r *http.Request) {
	if middleware.GetDeviceID(r) == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	records, err := h.engine.History(mux.Vars(r)["id"])
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	response.Success(w, records)
}

func (h *ConflictHandler) writeResolveError(w http.ResponseWriter, err error) {
	var decision *service.DecisionError
	var validation *service.ValidationError
	var stale *service.StaleDecisionError

	switch {
	case errors.Is(err, service.ErrConflictNotFound):
		response.NotFound(w, "conflict not found")
	case errors.As(err, &decision):
		response.UnprocessableEntity(w, decision.Error())
	case errors.As(err, &validation):
		response.UnprocessableEntity(w, validation.Error())
	case errors.As(err, &stale), errors.Is(err, repository.ErrSuperseded):
		response.Conflict(w, err.Error())
	default:
		response.InternalError(w, err.Error())
	}
}
