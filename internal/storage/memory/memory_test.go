package memory

import (
	"context"
	"testing"
	"time"

	"totalx/internal/core"
)

func TestMemoryStoreAppendUndoReset(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := core.PersonalKey(core.MustIdentity("@mario"))

	for _, cents := range []int64{10000, -3000} {
		m := core.Movement{Principal: key.Owner(), Amount: core.MoneyFromCents(cents), Timestamp: time.Now()}
		if _, err := s.Append(ctx, key, m); err != nil {
			t.Fatalf("append %d: %v", cents, err)
		}
	}

	got, _ := s.ReadAll(ctx, key)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("unexpected log: %+v", got)
	}

	last, removed, err := s.UndoLast(ctx, key)
	if err != nil || !removed || last.Amount.String() != "-30.00" {
		t.Fatalf("unexpected undo: m=%+v removed=%v err=%v", last, removed, err)
	}

	if err := s.Reset(ctx, key); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, removed, _ := s.UndoLast(ctx, key); removed {
		t.Fatalf("expected nothing to undo after reset")
	}
	if keys, _ := s.Keys(ctx); len(keys) != 0 {
		t.Fatalf("expected no keys, got %v", keys)
	}
}

func TestMemoryStoreReadAllReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := core.AdminKey()
	m := core.Movement{Principal: core.MustIdentity("@root"), Amount: core.MoneyFromCents(500), Timestamp: time.Now()}
	if _, err := s.Append(ctx, key, m); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, _ := s.ReadAll(ctx, key)
	got[0].Amount = core.MoneyFromCents(1)

	again, _ := s.ReadAll(ctx, key)
	if again[0].Amount.Cents() != 500 {
		t.Fatalf("caller mutated the store: %v", again[0].Amount)
	}
}

func TestMemoryStoreRejectsZeroAmount(t *testing.T) {
	s := New()
	_, err := s.Append(context.Background(), core.AdminKey(), core.Movement{Principal: core.MustIdentity("@root")})
	if err == nil {
		t.Fatalf("expected zero amount to be rejected")
	}
}

func TestMemoryStoreAdmins(t *testing.T) {
	ctx := context.Background()
	s := New()
	root := core.MustIdentity("@root")
	for _, h := range []string{"@b", "@a", "@b"} {
		if err := s.AddAdmin(ctx, core.MustIdentity(h), root); err != nil {
			t.Fatalf("add %s: %v", h, err)
		}
	}
	admins, _ := s.ListAdmins(ctx)
	if len(admins) != 2 || admins[0] != "@b" || admins[1] != "@a" {
		t.Fatalf("unexpected admins: %v", admins)
	}

	if err := s.RemoveAdmin(ctx, "@b"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	admins, _ = s.ListAdmins(ctx)
	if len(admins) != 1 || admins[0] != "@a" {
		t.Fatalf("unexpected admins after remove: %v", admins)
	}
}
