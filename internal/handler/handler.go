// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arducoaching/slot-booking/internal/model"
	"github.com/arducoaching/slot-booking/internal/service"
	"github.com/arducoaching/slot-booking/internal/store"
)

// SlotHandler holds all HTTP handlers for the booking API.
type SlotHandler struct {
	svc *service.BookingService
}

// NewSlotHandler constructs a SlotHandler.
func NewSlotHandler(svc *service.BookingService) *SlotHandler {
	return &SlotHandler{svc: svc}
}

// NewRouter mounts the API routes. Each route group rejects unsupported
// verbs with 405 and an Allow header listing what it accepts.
func NewRouter(h *SlotHandler) chi.Router {
	r := chi.NewRouter()

	r.Get("/api/health", h.Health)

	r.Route("/api/slots", func(r chi.Router) {
		r.Get("/", h.ListSlots)
		r.Post("/", h.PublishSlot)
		r.Delete("/", h.RemoveSlot)
		r.MethodNotAllowed(methodNotAllowed("GET, POST, DELETE"))
	})

	r.Route("/api/reserve", func(r chi.Router) {
		r.Post("/", h.Reserve)
		r.Patch("/", h.Reserve)
		r.MethodNotAllowed(methodNotAllowed("POST, PATCH"))
	})

	return r
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.MessageResponse{Message: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func methodNotAllowed(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// ListSlots handles GET /api/slots
// Returns all slots sorted ascending by scheduledAt; ?upcoming=1 restricts
// the listing to slots that have not started yet.
func (h *SlotHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	upcoming := r.URL.Query().Get("upcoming") == "1"

	slots, err := h.svc.List(r.Context(), upcoming)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list slots")
		return
	}
	if slots == nil {
		slots = []model.Slot{}
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, model.SlotsResponse{Slots: slots})
}

// PublishSlot handles POST /api/slots
// Creates a new slot with the given schedule and capacity.
func (h *SlotHandler) PublishSlot(w http.ResponseWriter, r *http.Request) {
	var req model.PublishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	slot, err := h.svc.Publish(r.Context(), req)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to publish slot")
		return
	}

	writeJSON(w, http.StatusCreated, model.PublishResponse{Message: "slot published", Slot: slot})
}

// RemoveSlot handles DELETE /api/slots?id=...
// Removal is idempotent: deleting an id that is already gone succeeds.
func (h *SlotHandler) RemoveSlot(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Remove(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to remove slot")
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "slot removed"})
}

// Reserve handles POST|PATCH /api/reserve
// Claims one seat on a slot; the capacity check and increment are atomic in
// the store, so concurrent requests can never oversell.
func (h *SlotHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req model.ReserveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	remaining, err := h.svc.Reserve(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "slot not found")
		case errors.Is(err, store.ErrSlotFull):
			writeError(w, http.StatusConflict, "slot is fully booked")
		default:
			writeError(w, http.StatusInternalServerError, "failed to reserve slot")
		}
		return
	}

	writeJSON(w, http.StatusOK, model.ReserveResponse{Message: "reservation recorded", Remaining: remaining})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// Health handles GET /api/health
// Reports liveness and backing-store reachability.
func (h *SlotHandler) Health(w http.ResponseWriter, r *http.Request) {
	storageOK := h.svc.Ping(r.Context()) == nil
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "storage": storageOK})
}
