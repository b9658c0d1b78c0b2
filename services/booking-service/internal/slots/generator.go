// Package slots generates a provider's fixed-length slots for one date.
package slots

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Generator struct {
	store  storage.Store
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
	tracer trace.Tracer
}

type Options struct {
	// Location decides what "today" is; defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

func NewGenerator(store storage.Store, logger *slog.Logger, opts Options) *Generator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generator{
		store:  store,
		logger: logger,
		loc:    opts.Location,
		now:    opts.Now,
		tracer: otel.Tracer("booking-service/slots"),
	}
}

// Request asks for slots on Date covering [Start, End), both given as
// offsets from midnight.
type Request struct {
	ProviderID string
	Date       time.Time
	Start      time.Duration
	End        time.Duration
}

type Result struct {
	Created []model.Slot
	Skipped int
}

var errSkip = errors.New("candidate overlaps an existing slot")

// Generate walks the range in SlotLength steps and inserts every candidate
// that does not overlap an existing slot of the provider. Each candidate is
// checked and inserted in its own transaction under the provider-day lock.
func (g *Generator) Generate(ctx context.Context, who identity.Identity, req Request) (Result, error) {
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" && who.Kind == identity.KindProvider {
		req.ProviderID = who.ID
	}
	if err := g.authorize(who, req.ProviderID); err != nil {
		return Result{}, err
	}
	if err := g.validate(req); err != nil {
		return Result{}, err
	}
	date := model.Civil(req.Date)

	ctx, span := g.tracer.Start(ctx, "slots.Generate", trace.WithAttributes(
		attribute.String("provider.id", req.ProviderID),
		attribute.String("slot.date", date.Format(model.DateLayout)),
	))
	defer span.End()

	var res Result
	candidates := availability.Candidates(model.At(date, req.Start), model.At(date, req.End), model.SlotLength)
	for _, iv := range candidates {
		slot, err := g.createOne(ctx, req.ProviderID, date, iv)
		switch {
		case err == nil:
			res.Created = append(res.Created, slot)
		case errors.Is(err, errSkip), errors.Is(err, storage.ErrSlotOverlap):
			res.Skipped++
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "slot insert failed")
			return res, translate(err)
		}
	}
	span.SetAttributes(attribute.Int("slots.created", len(res.Created)), attribute.Int("slots.skipped", res.Skipped))

	if len(res.Created) == 0 {
		g.logger.Warn("no slots created",
			"provider_id", req.ProviderID,
			"date", date.Format(model.DateLayout),
			"candidates", len(candidates),
			"skipped", res.Skipped,
		)
		return res, nil
	}

	if err := g.emitCreated(ctx, req.ProviderID, date, res); err != nil {
		// Slots are already committed.
		g.logger.Error("slots created event failed", "provider_id", req.ProviderID, "err", err)
	}
	g.logger.Info("slots created",
		"provider_id", req.ProviderID,
		"date", date.Format(model.DateLayout),
		"created", len(res.Created),
		"skipped", res.Skipped,
	)
	return res, nil
}

func (g *Generator) createOne(ctx context.Context, providerID string, date time.Time, iv availability.Interval) (model.Slot, error) {
	slot := model.Slot{
		ID:         uuid.NewString(),
		ProviderID: providerID,
		Date:       date,
		StartTime:  iv.Start,
		EndTime:    iv.End,
		CreatedAt:  g.now().UTC(),
	}
	err := g.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockProviderDay(ctx, providerID, date); err != nil {
			return err
		}
		existing, err := tx.ListSlotsForDay(ctx, providerID, date)
		if err != nil {
			return err
		}
		day := availability.NewSet()
		for _, s := range existing {
			day.Insert(s.Interval())
		}
		if day.OverlapsAny(iv) {
			return errSkip
		}
		return tx.CreateSlot(ctx, slot)
	})
	if err != nil {
		return model.Slot{}, err
	}
	return slot, nil
}

func (g *Generator) emitCreated(ctx context.Context, providerID string, date time.Time, res Result) error {
	ids := make([]string, 0, len(res.Created))
	for _, s := range res.Created {
		ids = append(ids, s.ID)
	}
	evt, err := outbox.New(ctx, outbox.AggregateProvider, providerID, outbox.TypeSlotsCreated, outbox.SlotsCreatedPayload{
		ProviderID: providerID,
		Date:       date.Format(model.DateLayout),
		SlotIDs:    ids,
		Skipped:    res.Skipped,
	})
	if err != nil {
		return err
	}
	return g.store.InTx(ctx, func(tx storage.Tx) error {
		return tx.AddEvent(ctx, evt)
	})
}

// Today is the current civil date in the configured location.
func (g *Generator) Today() time.Time {
	return model.Civil(g.now().In(g.loc))
}

func (g *Generator) authorize(who identity.Identity, providerID string) error {
	switch who.Kind {
	case identity.KindAdmin:
		return nil
	case identity.KindProvider:
		if providerID == who.ID {
			return nil
		}
		return apperr.Forbidden("providers may only create their own slots")
	}
	return apperr.Forbidden("only providers and admins may create slots")
}

func (g *Generator) validate(req Request) error {
	if req.ProviderID == "" {
		return apperr.Validation("provider_id is required")
	}
	if req.Date.IsZero() {
		return apperr.Validation("date is required")
	}
	if !model.Civil(req.Date).After(g.Today()) {
		return apperr.Validation("date must be after today (%s)", g.Today().Format(model.DateLayout))
	}
	if req.Start < 0 || req.End > 24*time.Hour {
		return apperr.Validation("range must lie within the day")
	}
	if req.Start >= req.End {
		return apperr.Validation("start_time must be before end_time")
	}
	return nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, storage.ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperr.Timeout("timed out waiting for the provider's day", err)
	}
	return err
}
