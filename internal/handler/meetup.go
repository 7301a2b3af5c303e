package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meetapp/meetapp/internal/auth"
	"github.com/meetapp/meetapp/internal/clock"
	"github.com/meetapp/meetapp/internal/handler/dto"
	"github.com/meetapp/meetapp/internal/service"
)

// MeetupHandler handles HTTP requests for meetup operations.
type MeetupHandler struct {
	svc    *service.MeetupService
	clock  clock.Clock
	logger *slog.Logger
}

// NewMeetupHandler creates a new MeetupHandler.
func NewMeetupHandler(svc *service.MeetupService, clk clock.Clock, logger *slog.Logger) *MeetupHandler {
	if clk == nil {
		clk = clock.System()
	}
	return &MeetupHandler{
		svc:    svc,
		clock:  clk,
		logger: logger.With("component", "meetup_handler"),
	}
}

// List handles GET /api/v1/meetups.
func (h *MeetupHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := 1
	if p := query.Get("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, CodeValidation, "page must be a number")
			return
		}
		page = parsed
	}

	out, err := h.svc.List(r.Context(), service.ListMeetupsInput{
		Date: query.Get("date"),
		Page: page,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, dto.ToMeetupListResponse(out.Meetups, out.Page, userID, h.clock.Now()))
}

// Create handles POST /api/v1/meetups.
func (h *MeetupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	input, ok := decodeMeetup(w, r)
	if !ok {
		return
	}

	meetup, err := h.svc.Create(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToMeetupResponse(meetup, h.clock.Now()))
}

// Update handles PUT /api/v1/meetups/{id}.
func (h *MeetupHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	input, ok := decodeMeetup(w, r)
	if !ok {
		return
	}

	meetup, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), userID, input)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToMeetupResponse(meetup, h.clock.Now()))
}

// Delete handles DELETE /api/v1/meetups/{id}.
func (h *MeetupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Organizing handles GET /api/v1/organizing.
func (h *MeetupHandler) Organizing(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	meetups, err := h.svc.ListOrganizing(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": dto.ToMeetupResponses(meetups, h.clock.Now()),
	})
}

func decodeMeetup(w http.ResponseWriter, r *http.Request) (service.MeetupInput, bool) {
	var req dto.MeetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, CodeValidation, "invalid request body")
		return service.MeetupInput{}, false
	}
	return service.MeetupInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Date:        req.Date,
		ImageID:     req.ImageID,
	}, true
}

// requireUser returns the caller identity set by the identity middleware.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeErrorJSON(w, http.StatusUnauthorized, CodeUnauthorized, "missing caller identity")
		return "", false
	}
	return userID, true
}
