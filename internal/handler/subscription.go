package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/meetapp/meetapp/internal/clock"
	"github.com/meetapp/meetapp/internal/handler/dto"
	"github.com/meetapp/meetapp/internal/service"
)

// SubscriptionHandler handles HTTP requests for subscriptions.
type SubscriptionHandler struct {
	svc    *service.SubscriptionService
	clock  clock.Clock
	logger *slog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(svc *service.SubscriptionService, clk clock.Clock, logger *slog.Logger) *SubscriptionHandler {
	if clk == nil {
		clk = clock.System()
	}
	return &SubscriptionHandler{
		svc:    svc,
		clock:  clk,
		logger: logger.With("component", "subscription_handler"),
	}
}

// Subscribe handles POST /api/v1/subscriptions.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}

	out, err := h.svc.Subscribe(r.Context(), userID, req.MeetupID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToSubscribeResponse(out))
}

// List handles GET /api/v1/subscriptions.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	subs, err := h.svc.ListMine(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToSubscriptionListResponse(subs, h.clock.Now()))
}

// Calendar handles GET /api/v1/subscriptions/calendar.ics.
func (h *SubscriptionHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	body, err := h.svc.Calendar(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="meetapp.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
