package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type bookRequest struct {
	SlotID  string `json:"slot_id"`
	Purpose string `json:"purpose"`
}

type adminBookRequest struct {
	SlotID        string `json:"slot_id"`
	Purpose       string `json:"purpose"`
	RequesterKind string `json:"requester_kind"`
	RequesterID   string `json:"requester_id"`
}

type bookResponse struct {
	AppointmentID string `json:"appointment_id"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

type appointmentItem struct {
	ID            string `json:"id"`
	SlotID        string `json:"slot_id"`
	ProviderID    string `json:"provider_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	RequesterKind string `json:"requester_kind"`
	RequesterID   string `json:"requester_id"`
	BookedBy      string `json:"booked_by,omitempty"`
	Purpose       string `json:"purpose,omitempty"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		ID:            a.ID,
		SlotID:        a.SlotID,
		ProviderID:    a.ProviderID,
		Date:          a.SlotDate.Format(model.DateLayout),
		StartTime:     a.StartTime.Format("15:04"),
		EndTime:       a.EndTime.Format("15:04"),
		RequesterKind: string(a.RequesterKind),
		RequesterID:   a.RequesterID,
		BookedBy:      a.BookedBy,
		Purpose:       a.Purpose,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	who, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, string(apperr.KindValidation), "invalid json body")
		return
	}

	id, err := h.booking.BookSlot(r.Context(), who, req.SlotID, req.Purpose)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, bookResponse{AppointmentID: id})
}

func (h *Handler) AdminBook(w http.ResponseWriter, r *http.Request) {
	who, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req adminBookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, string(apperr.KindValidation), "invalid json body")
		return
	}
	kind, ok := identity.ParseKind(strings.TrimSpace(req.RequesterKind))
	if !ok {
		h.writeError(w, r, apperr.Validation("requester_kind must be recipient or donor"))
		return
	}

	requester := identity.Identity{Kind: kind, ID: req.RequesterID}
	id, err := h.booking.BookSlotFor(r.Context(), who, requester, req.SlotID, req.Purpose)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, bookResponse{AppointmentID: id})
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	who, ok := h.caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := model.AppointmentFilter{
		ProviderID:    strings.TrimSpace(q.Get("provider_id")),
		RequesterKind: model.RequesterKind(strings.TrimSpace(q.Get("requester_kind"))),
		RequesterID:   strings.TrimSpace(q.Get("requester_id")),
		Status:        model.Status(strings.TrimSpace(q.Get("status"))),
		Limit:         parseLimit(r),
	}

	appts, err := h.booking.ListAppointments(r.Context(), who, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	who, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, string(apperr.KindValidation), "invalid json body")
		return
	}

	id := r.PathValue("id")
	if err := h.booking.TransitionAppointment(r.Context(), who, id, model.Status(strings.TrimSpace(req.Status))); err != nil {
		h.writeError(w, r, err)
		return
	}
	appt, err := h.store.GetAppointment(r.Context(), strings.TrimSpace(id))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentItem(appt))
}
