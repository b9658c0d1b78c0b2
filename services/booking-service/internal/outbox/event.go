package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
)

// Event types. The Kafka topic name equals the event type.
const (
	TypeAppointmentBooked    = "booking.appointment.booked.v1"
	TypeAppointmentCompleted = "booking.appointment.completed.v1"
	TypeAppointmentCancelled = "booking.appointment.cancelled.v1"
	TypeSlotsCreated         = "booking.slots.created.v1"
)

const (
	AggregateAppointment = "appointment"
	AggregateProvider    = "provider"
)

// Event is the domain event envelope written to the outbox in the same
// transaction as the state change it describes.
type Event struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
}

// New encodes payload as JSON and captures the trace context of ctx so the
// publisher can continue the trace when the event leaves the outbox.
func New(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	return Event{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       b,
		Traceparent:   traceparent,
		Tracestate:    tracestate,
	}, nil
}

// Record is a stored event awaiting publication.
type Record struct {
	ID int64
	Event
	CreatedAt time.Time
}

type AppointmentPayload struct {
	AppointmentID string `json:"appointment_id"`
	SlotID        string `json:"slot_id"`
	ProviderID    string `json:"provider_id"`
	RequesterKind string `json:"requester_kind"`
	RequesterID   string `json:"requester_id"`
	BookedBy      string `json:"booked_by,omitempty"`
	Status        string `json:"status"`
	SlotDate      string `json:"slot_date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type SlotsCreatedPayload struct {
	ProviderID string   `json:"provider_id"`
	Date       string   `json:"date"`
	SlotIDs    []string `json:"slot_ids"`
	Skipped    int      `json:"skipped"`
}
