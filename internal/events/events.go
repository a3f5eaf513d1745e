// Package events describes the ledger events published after every committed
// mutation and fans them out to the configured brokers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"totalx/internal/core"
)

type Kind string

const (
	KindMovementAppended Kind = "movement.appended"
	KindMovementUndone   Kind = "movement.undone"
	KindStoreReset       Kind = "store.reset"
	KindAdminGranted     Kind = "admin.granted"
	KindAdminRevoked     Kind = "admin.revoked"
)

// AffectsStore reports whether consumers should refresh the event's store.
func (k Kind) AffectsStore() bool {
	switch k {
	case KindMovementAppended, KindMovementUndone, KindStoreReset:
		return true
	}
	return false
}

// Event is the wire form shared by every publisher. StoreKey is empty for
// admin registry events.
type Event struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	StoreKey   string        `json:"store_key,omitempty"`
	Principal  core.Identity `json:"principal,omitempty"`
	Target     core.Identity `json:"target,omitempty"`
	MovementID int64         `json:"movement_id,omitempty"`
	Amount     *core.Money   `json:"amount,omitempty"`
	Balance    *core.Money   `json:"balance,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// New returns an event with a fresh ID and the current time.
func New(kind Kind, principal core.Identity) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Principal:  principal,
		OccurredAt: time.Now().UTC(),
	}
}

// MovementEvent describes an append or undo on key.
func MovementEvent(kind Kind, key core.StoreKey, m core.Movement, balance core.Money) Event {
	e := New(kind, m.Principal)
	e.StoreKey = key.String()
	e.MovementID = m.ID
	amount := m.Amount
	e.Amount = &amount
	e.Balance = &balance
	return e
}

// ResetEvent describes a reset of key requested by actor.
func ResetEvent(key core.StoreKey, actor core.Identity) Event {
	e := New(KindStoreReset, actor)
	e.StoreKey = key.String()
	zero := core.Zero
	e.Balance = &zero
	return e
}

// AdminEvent describes a grant or revoke of target by actor.
func AdminEvent(granted bool, actor, target core.Identity) Event {
	kind := KindAdminRevoked
	if granted {
		kind = KindAdminGranted
	}
	e := New(kind, actor)
	e.Target = target
	return e
}

// Key parses the event's store key.
func (e Event) Key() (core.StoreKey, error) {
	return core.ParseStoreKey(e.StoreKey)
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	if e.Kind == "" {
		return Event{}, errors.New("event without kind")
	}
	return e, nil
}

// Publisher delivers events to one broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

// NewFanout returns Nop when no publisher is given.
func NewFanout(publishers ...Publisher) Publisher {
	var out Fanout
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return Nop{}
	}
	return out
}

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
