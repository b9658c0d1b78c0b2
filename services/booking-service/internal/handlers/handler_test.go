package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/slots"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage/memory"
)

var now = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New(time.Second)
	clock := func() time.Time { return now }
	gen := slots.NewGenerator(store, logger, slots.Options{Now: clock})
	svc := booking.NewService(store, logger, clock)

	mux := http.NewServeMux()
	New(gen, svc, store, logger).Register(mux)
	return identity.NewVerifier("", nil, logger).Middleware(mux)
}

func do(t *testing.T, h http.Handler, method, path, role, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if role != "" {
		req.Header.Set(identity.HeaderRole, role)
		req.Header.Set(identity.HeaderUserID, user)
	}
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	return rw
}

func decode[T any](t *testing.T, rw *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rw.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rw.Body.String(), err)
	}
	return v
}

func TestSlotAndBookingFlow(t *testing.T) {
	h := newServer(t)

	rw := do(t, h, http.MethodPost, "/api/v1/slots", "provider", "dr-1", map[string]string{
		"date": "2026-10-20", "start_time": "09:00", "end_time": "11:00",
	})
	if rw.Code != http.StatusCreated {
		t.Fatalf("create slots: %d %s", rw.Code, rw.Body.String())
	}
	created := decode[createSlotsResponse](t, rw)
	if created.Created != 4 || created.Skipped != 0 {
		t.Fatalf("unexpected create response %+v", created)
	}

	rw = do(t, h, http.MethodGet, "/api/v1/slots/available?provider_id=dr-1&from=2026-10-20", "donor", "don-1", nil)
	available := decode[[]slotItem](t, rw)
	if len(available) != 4 || available[0].StartTime != "09:00" {
		t.Fatalf("unexpected available slots %+v", available)
	}

	slotID := available[0].ID
	rw = do(t, h, http.MethodPost, "/api/v1/bookings", "donor", "don-1", map[string]string{"slot_id": slotID, "purpose": "donation"})
	if rw.Code != http.StatusCreated {
		t.Fatalf("book: %d %s", rw.Code, rw.Body.String())
	}
	apptID := decode[bookResponse](t, rw).AppointmentID

	rw = do(t, h, http.MethodPost, "/api/v1/bookings", "recipient", "rec-1", map[string]string{"slot_id": slotID})
	if rw.Code != http.StatusConflict || decode[httpx.ErrorBody](t, rw).Code != "already_booked" {
		t.Fatalf("expected already_booked conflict, got %d %s", rw.Code, rw.Body.String())
	}
	rw = do(t, h, http.MethodPost, "/api/v1/bookings", "donor", "don-1", map[string]string{"slot_id": available[1].ID})
	if rw.Code != http.StatusConflict || decode[httpx.ErrorBody](t, rw).Code != "duplicate_for_date" {
		t.Fatalf("expected duplicate_for_date conflict, got %d %s", rw.Code, rw.Body.String())
	}

	rw = do(t, h, http.MethodGet, "/api/v1/providers/dr-1/slots?from=2026-10-20", "admin", "adm", nil)
	all := decode[[]slotItem](t, rw)
	if len(all) != 4 || !all[0].IsBooked {
		t.Fatalf("unexpected provider slots %+v", all)
	}

	rw = do(t, h, http.MethodPost, "/api/v1/appointments/"+apptID+"/transition", "donor", "don-1", map[string]string{"status": "Completed"})
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for requester completing, got %d", rw.Code)
	}
	rw = do(t, h, http.MethodPost, "/api/v1/appointments/"+apptID+"/transition", "donor", "don-1", map[string]string{"status": "Cancelled"})
	if rw.Code != http.StatusOK || decode[appointmentItem](t, rw).Status != "Cancelled" {
		t.Fatalf("cancel: %d %s", rw.Code, rw.Body.String())
	}
	rw = do(t, h, http.MethodPost, "/api/v1/appointments/"+apptID+"/transition", "admin", "adm", map[string]string{"status": "Completed"})
	if rw.Code != http.StatusConflict || decode[httpx.ErrorBody](t, rw).Code != "state" {
		t.Fatalf("expected state conflict, got %d %s", rw.Code, rw.Body.String())
	}

	rw = do(t, h, http.MethodGet, "/api/v1/appointments?status=Cancelled", "donor", "don-1", nil)
	if items := decode[[]appointmentItem](t, rw); len(items) != 1 || items[0].ID != apptID {
		t.Fatalf("unexpected appointments %+v", items)
	}

	rw = do(t, h, http.MethodDelete, "/api/v1/slots/"+slotID, "provider", "dr-1", nil)
	if rw.Code != http.StatusNoContent {
		t.Fatalf("delete released slot: %d %s", rw.Code, rw.Body.String())
	}
}

func TestAdminBooking(t *testing.T) {
	h := newServer(t)
	rw := do(t, h, http.MethodPost, "/api/v1/slots", "admin", "adm", map[string]string{
		"provider_id": "dr-9", "date": "2026-10-22", "start_time": "13:00", "end_time": "13:30",
	})
	slotID := decode[createSlotsResponse](t, rw).Slots[0].ID

	body := map[string]string{"slot_id": slotID, "requester_kind": "recipient", "requester_id": "rec-5", "purpose": "follow-up"}
	if rw := do(t, h, http.MethodPost, "/api/v1/admin/bookings", "provider", "dr-9", body); rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for provider, got %d", rw.Code)
	}
	rw = do(t, h, http.MethodPost, "/api/v1/admin/bookings", "admin", "adm", body)
	if rw.Code != http.StatusCreated {
		t.Fatalf("admin book: %d %s", rw.Code, rw.Body.String())
	}

	rw = do(t, h, http.MethodGet, "/api/v1/appointments", "recipient", "rec-5", nil)
	items := decode[[]appointmentItem](t, rw)
	if len(items) != 1 || items[0].BookedBy != "adm" || items[0].Purpose != "follow-up" {
		t.Fatalf("unexpected appointments %+v", items)
	}
}

func TestClientCancellation(t *testing.T) {
	h := newServer(t)
	rw := do(t, h, http.MethodPost, "/api/v1/slots", "provider", "dr-1", map[string]string{
		"date": "2026-10-20", "start_time": "09:00", "end_time": "09:30",
	})
	slotID := decode[createSlotsResponse](t, rw).Slots[0].ID

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	body, _ := json.Marshal(map[string]string{"slot_id": slotID})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewReader(body)).WithContext(ctx)
	req.Header.Set(identity.HeaderRole, "donor")
	req.Header.Set(identity.HeaderUserID, "don-1")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != statusClientClosedRequest || decode[httpx.ErrorBody](t, rw).Code != "canceled" {
		t.Fatalf("expected %d canceled, got %d %s", statusClientClosedRequest, rw.Code, rw.Body.String())
	}

	rw = do(t, h, http.MethodGet, "/api/v1/slots/available?provider_id=dr-1&from=2026-10-20", "donor", "don-1", nil)
	if got := decode[[]slotItem](t, rw); len(got) != 1 || got[0].IsBooked {
		t.Fatalf("cancelled booking changed the slot: %+v", got)
	}
}

func TestErrorMapping(t *testing.T) {
	h := newServer(t)

	if rw := do(t, h, http.MethodGet, "/api/v1/slots/available", "", "", nil); rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rw.Code)
	}
	rw := do(t, h, http.MethodPost, "/api/v1/slots", "provider", "dr-1", map[string]string{
		"date": "2026-10-19", "start_time": "09:00", "end_time": "10:00",
	})
	if rw.Code != http.StatusBadRequest || decode[httpx.ErrorBody](t, rw).Code != "validation" {
		t.Fatalf("expected 400 for today, got %d %s", rw.Code, rw.Body.String())
	}
	if rw := do(t, h, http.MethodPost, "/api/v1/slots", "provider", "dr-1", map[string]string{"bogus": "x"}); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rw.Code)
	}
	rw = do(t, h, http.MethodPost, "/api/v1/bookings", "recipient", "rec-1", map[string]string{"slot_id": "6f1f5f37-7c55-4c1e-9d0a-0f4b8d7c2a11"})
	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown slot, got %d", rw.Code)
	}
	if rw := do(t, h, http.MethodGet, "/api/v1/slots/available?from=tomorrow", "donor", "d", nil); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad from, got %d", rw.Code)
	}

	// Repeating a request that creates nothing is a benign 200.
	first := do(t, h, http.MethodPost, "/api/v1/slots", "provider", "dr-1", map[string]string{
		"date": "2026-10-21", "start_time": "09:00", "end_time": "09:30",
	})
	again := do(t, h, http.MethodPost, "/api/v1/slots", "provider", "dr-1", map[string]string{
		"date": "2026-10-21", "start_time": "09:00", "end_time": "09:30",
	})
	if first.Code != http.StatusCreated || again.Code != http.StatusOK || decode[createSlotsResponse](t, again).Skipped != 1 {
		t.Fatalf("unexpected repeat responses %d / %d %s", first.Code, again.Code, again.Body.String())
	}
}
