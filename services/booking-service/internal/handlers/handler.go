package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/slots"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

type Handler struct {
	slots   *slots.Generator
	booking *booking.Service
	store   storage.Store
	logger  *slog.Logger
}

func New(generator *slots.Generator, svc *booking.Service, store storage.Store, logger *slog.Logger) *Handler {
	return &Handler{slots: generator, booking: svc, store: store, logger: logger}
}

// Register mounts the API routes. Every route expects an identity in the
// request context (see identity.Verifier).
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/slots", h.CreateSlots)
	mux.HandleFunc("GET /api/v1/slots/available", h.AvailableSlots)
	mux.HandleFunc("DELETE /api/v1/slots/{id}", h.DeleteSlot)
	mux.HandleFunc("GET /api/v1/providers/{id}/slots", h.ProviderSlots)
	mux.HandleFunc("POST /api/v1/bookings", h.Book)
	mux.HandleFunc("POST /api/v1/admin/bookings", h.AdminBook)
	mux.HandleFunc("GET /api/v1/appointments", h.ListAppointments)
	mux.HandleFunc("POST /api/v1/appointments/{id}/transition", h.Transition)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	who, ok := identity.FromContext(r.Context())
	if !ok || !who.Valid() {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "caller identity required")
		return identity.Identity{}, false
	}
	return who, true
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindState:
		return http.StatusConflict
	case apperr.KindTimeout:
		return http.StatusServiceUnavailable
	case apperr.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// statusClientClosedRequest is the nginx convention for a caller that went
// away before the response was ready.
const statusClientClosedRequest = 499

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *apperr.Error
	switch {
	case errors.As(err, &e):
	case errors.Is(err, context.Canceled):
		h.logger.Info("request cancelled by client",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", httpx.RequestIDFromContext(r.Context()),
		)
		httpx.WriteError(w, statusClientClosedRequest, "canceled", "request cancelled")
		return
	default:
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
			"request_id", httpx.RequestIDFromContext(r.Context()),
		)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	httpx.WriteError(w, statusFor(e.Kind), e.Code(), msg)
}

// fromDate reads ?from=YYYY-MM-DD, defaulting to today.
func (h *Handler) fromDate(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("from"))
	if raw == "" {
		return h.slots.Today(), nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperr.Validation("from must be YYYY-MM-DD")
	}
	return d, nil
}

func parseLimit(r *http.Request) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
		return n
	}
	return 0
}
