package storage

import (
	"context"

	"totalx/internal/core"
)

// Ports implemented by every persistence backend.
type (
	// MovementStore persists one ordered movement log per store key.
	// Every mutation is committed before the method returns.
	MovementStore interface {
		// Append persists m at the end of key's log and returns it with its assigned ID.
		Append(ctx context.Context, key core.StoreKey, m core.Movement) (core.Movement, error)
		// ReadAll returns key's movements in insertion order; empty for unknown keys.
		ReadAll(ctx context.Context, key core.StoreKey) ([]core.Movement, error)
		// UndoLast removes and returns the most recent movement. removed is false
		// when the log is empty.
		UndoLast(ctx context.Context, key core.StoreKey) (m core.Movement, removed bool, err error)
		// Reset discards every movement of key.
		Reset(ctx context.Context, key core.StoreKey) error
		// Keys lists the stores that currently hold movements.
		Keys(ctx context.Context) ([]core.StoreKey, error)
	}

	// AdminStore persists the dynamic admin identities in grant order.
	AdminStore interface {
		ListAdmins(ctx context.Context) ([]core.Identity, error)
		AddAdmin(ctx context.Context, id, grantedBy core.Identity) error
		RemoveAdmin(ctx context.Context, id core.Identity) error
	}

	// Repository is a complete backend.
	Repository interface {
		MovementStore
		AdminStore
		Close() error
	}
)

// TimeFormat is the text encoding of timestamps in SQL backends.
const TimeFormat = "2006-01-02T15:04:05.999999999Z07:00"
