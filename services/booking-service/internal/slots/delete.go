package slots

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

// Delete removes an unbooked slot. Providers may delete only their own
// slots; a slot of another provider is reported as not found.
func (g *Generator) Delete(ctx context.Context, who identity.Identity, slotID string) error {
	if who.Kind != identity.KindProvider && who.Kind != identity.KindAdmin {
		return apperr.Forbidden("only providers and admins may delete slots")
	}
	slotID = strings.TrimSpace(slotID)
	if _, err := uuid.Parse(slotID); err != nil {
		return apperr.Validation("slot_id must be a uuid")
	}

	err := g.store.InTx(ctx, func(tx storage.Tx) error {
		slot, err := tx.LockSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if who.Kind == identity.KindProvider && slot.ProviderID != who.ID {
			return storage.ErrNotFound
		}
		if slot.IsBooked {
			return apperr.Conflict(apperr.ReasonSlotBooked, "slot is booked")
		}
		return tx.DeleteSlot(ctx, slotID)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("slot not found")
	}
	if err != nil {
		return translate(err)
	}
	g.logger.Info("slot deleted", "slot_id", slotID, "actor_kind", string(who.Kind), "actor_id", who.ID)
	return nil
}
