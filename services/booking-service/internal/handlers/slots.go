package handlers

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/slots"
)

type createSlotsRequest struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

type createSlotsResponse struct {
	Created int        `json:"created"`
	Skipped int        `json:"skipped"`
	Slots   []slotItem `json:"slots"`
}

type slotItem struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	IsBooked   bool   `json:"is_booked"`
}

func toSlotItem(s model.Slot) slotItem {
	return slotItem{
		ID:         s.ID,
		ProviderID: s.ProviderID,
		Date:       s.Date.Format(model.DateLayout),
		StartTime:  s.StartTime.Format("15:04"),
		EndTime:    s.EndTime.Format("15:04"),
		IsBooked:   s.IsBooked,
	}
}

func toSlotItems(in []model.Slot) []slotItem {
	items := make([]slotItem, 0, len(in))
	for _, s := range in {
		items = append(items, toSlotItem(s))
	}
	return items
}

func (h *Handler) CreateSlots(w http.ResponseWriter, r *http.Request) {
	who, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createSlotsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, string(apperr.KindValidation), "invalid json body")
		return
	}
	date, err := model.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		h.writeError(w, r, apperr.Validation("date must be YYYY-MM-DD"))
		return
	}
	start, err := model.ParseClock(strings.TrimSpace(req.StartTime))
	if err != nil {
		h.writeError(w, r, apperr.Validation("start_time must be HH:MM"))
		return
	}
	end, err := model.ParseClock(strings.TrimSpace(req.EndTime))
	if err != nil {
		h.writeError(w, r, apperr.Validation("end_time must be HH:MM"))
		return
	}

	res, err := h.slots.Generate(r.Context(), who, slots.Request{
		ProviderID: req.ProviderID,
		Date:       date,
		Start:      start,
		End:        end,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if len(res.Created) == 0 {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, createSlotsResponse{
		Created: len(res.Created),
		Skipped: res.Skipped,
		Slots:   toSlotItems(res.Created),
	})
}

func (h *Handler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	from, err := h.fromDate(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))

	list, err := h.store.ListAvailableSlots(r.Context(), from, providerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSlotItems(list))
}

func (h *Handler) ProviderSlots(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	providerID := strings.TrimSpace(r.PathValue("id"))
	if providerID == "" {
		h.writeError(w, r, apperr.Validation("provider id is required"))
		return
	}
	from, err := h.fromDate(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	list, err := h.store.ListSlotsByProvider(r.Context(), providerID, from)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSlotItems(list))
}

func (h *Handler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	who, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.slots.Delete(r.Context(), who, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
