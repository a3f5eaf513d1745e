// Package admin holds the set of identities that write to the shared admin
// store: a fixed core from configuration plus dynamic members granted at
// runtime and persisted through a storage.AdminStore.
package admin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"totalx/internal/core"
	"totalx/internal/log"
	"totalx/internal/storage"
)

// Policy decides who may grant and revoke dynamic admins.
type Policy string

const (
	// PolicyRoot lets only fixed admins mutate the registry.
	PolicyRoot Policy = "root"
	// PolicyAny lets every admin mutate the registry.
	PolicyAny Policy = "any"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyRoot, nil
	case PolicyRoot, PolicyAny:
		return p, nil
	default:
		return "", fmt.Errorf("unknown admin policy %q (want root or any)", s)
	}
}

// GrantResult reports what a toggle did to the target.
type GrantResult struct {
	Target  core.Identity
	Granted bool // false means the target was revoked
}

type Registry struct {
	store  storage.AdminStore
	policy Policy
	logger *log.Logger

	mu      sync.RWMutex
	fixed   []core.Identity
	dynamic []core.Identity
}

// Load builds the registry from the fixed set and the persisted dynamic
// members. Persisted entries that are also fixed are ignored.
func Load(ctx context.Context, fixed []core.Identity, store storage.AdminStore, policy Policy) (*Registry, error) {
	if len(fixed) == 0 {
		return nil, errors.New("at least one fixed admin is required")
	}
	r := &Registry{
		store:  store,
		policy: policy,
		logger: log.WithComponent(log.ComponentAdmin),
		fixed:  slices.Clone(fixed),
	}

	dynamic, err := r.loadDynamic(ctx)
	if err != nil {
		return nil, err
	}
	r.dynamic = dynamic

	r.logger.InfoContext(ctx, "Admin registry loaded",
		"fixed", len(r.fixed),
		"dynamic", len(r.dynamic),
		"policy", string(policy))
	return r, nil
}

func (r *Registry) Policy() Policy { return r.policy }

// Refresh reloads the dynamic members from the store, picking up grants and
// revocations made by other processes sharing it. On error the registry
// keeps its previous members.
func (r *Registry) Refresh(ctx context.Context) error {
	dynamic, err := r.loadDynamic(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.dynamic = dynamic
	r.mu.Unlock()
	return nil
}

func (r *Registry) loadDynamic(ctx context.Context) ([]core.Identity, error) {
	persisted, err := r.store.ListAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load admins: %w", core.ErrPersistence, err)
	}
	dynamic := make([]core.Identity, 0, len(persisted))
	for _, id := range persisted {
		if r.isFixed(id) || slices.Contains(dynamic, id) {
			continue
		}
		dynamic = append(dynamic, id)
	}
	return dynamic, nil
}

func (r *Registry) IsAdmin(id core.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isFixed(id) || slices.Contains(r.dynamic, id)
}

// List returns fixed members in configuration order, then dynamic members in
// grant order.
func (r *Registry) List() []core.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Identity, 0, len(r.fixed)+len(r.dynamic))
	out = append(out, r.fixed...)
	return append(out, r.dynamic...)
}

// Grant toggles target's dynamic membership on behalf of requester.
//
// A fixed target is always rejected with core.ErrProtectedIdentity, before
// the requester is even checked. The change is persisted before it becomes
// visible, so a storage failure leaves the registry as it was.
func (r *Registry) Grant(ctx context.Context, requester, target core.Identity) (GrantResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isFixed(target) {
		return GrantResult{}, fmt.Errorf("%w: %s", core.ErrProtectedIdentity, target)
	}
	if !r.mayMutate(requester) {
		return GrantResult{}, fmt.Errorf("%w: %s may not change admins", core.ErrUnauthorized, requester)
	}

	if i := slices.Index(r.dynamic, target); i >= 0 {
		if err := r.store.RemoveAdmin(ctx, target); err != nil {
			return GrantResult{}, fmt.Errorf("%w: remove admin: %w", core.ErrPersistence, err)
		}
		r.dynamic = slices.Delete(r.dynamic, i, i+1)
		r.logger.InfoContext(ctx, "Admin revoked", log.FieldActor, requester.String(), log.FieldTarget, target.String())
		return GrantResult{Target: target, Granted: false}, nil
	}

	if err := r.store.AddAdmin(ctx, target, requester); err != nil {
		return GrantResult{}, fmt.Errorf("%w: add admin: %w", core.ErrPersistence, err)
	}
	r.dynamic = append(r.dynamic, target)
	r.logger.InfoContext(ctx, "Admin granted", log.FieldActor, requester.String(), log.FieldTarget, target.String())
	return GrantResult{Target: target, Granted: true}, nil
}

func (r *Registry) mayMutate(requester core.Identity) bool {
	if r.isFixed(requester) {
		return true
	}
	return r.policy == PolicyAny && slices.Contains(r.dynamic, requester)
}

func (r *Registry) isFixed(id core.Identity) bool {
	return slices.Contains(r.fixed, id)
}
