// Package identity carries the authenticated caller explicitly through every
// booking call. The HTTP middleware is the only place that reads transport
// credentials; everything below it takes an Identity argument.
package identity

import (
	"context"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type Kind string

const (
	KindRecipient Kind = "recipient"
	KindDonor     Kind = "donor"
	KindProvider  Kind = "provider"
	KindAdmin     Kind = "admin"
)

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindRecipient, KindDonor, KindProvider, KindAdmin:
		return Kind(s), true
	}
	return "", false
}

type Identity struct {
	Kind Kind
	ID   string
}

func (id Identity) Valid() bool {
	_, ok := ParseKind(string(id.Kind))
	return ok && id.ID != ""
}

// Requester reports whether the caller can hold appointments and as which kind.
func (id Identity) Requester() (model.RequesterKind, bool) {
	switch id.Kind {
	case KindRecipient:
		return model.RequesterRecipient, true
	case KindDonor:
		return model.RequesterDonor, true
	}
	return "", false
}

type ctxKey struct{}

// NewContext is used by the transport layer only; services receive Identity
// as an argument.
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
