// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"net/http"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// apiEndpoints is the route table advertised by the root endpoint.
var apiEndpoints = []string{
	"GET /api/v1/meetups",
	"POST /api/v1/meetups",
	"PUT /api/v1/meetups/{id}",
	"DELETE /api/v1/meetups/{id}",
	"GET /api/v1/organizing",
	"GET /api/v1/subscriptions",
	"POST /api/v1/subscriptions",
	"GET /api/v1/subscriptions/calendar.ics",
}

type serviceInfo struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Identity  string   `json:"identity_header"`
	Endpoints []string `json:"endpoints"`
}

// Handler serves the endpoints that need no dependencies.
type Handler struct {
	identityHeader string
}

// New creates a Handler that advertises identityHeader as the header API
// callers must send.
func New(identityHeader string) *Handler {
	return &Handler{identityHeader: identityHeader}
}

// Hello describes the service and its routes.
// GET /
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, serviceInfo{
		Service:   "meetapp",
		Version:   Version,
		Identity:  h.identityHeader,
		Endpoints: apiEndpoints,
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeErrorJSON(w, http.StatusNotFound, CodeNotFound, "resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeErrorJSON(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
