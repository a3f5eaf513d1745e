// Package principal maps an acting identity to the store it writes to.
package principal

import "totalx/internal/core"

// Membership answers whether an identity belongs to the admin pool.
type Membership interface {
	IsAdmin(id core.Identity) bool
}

type Resolver struct {
	admins Membership
}

func NewResolver(admins Membership) *Resolver {
	return &Resolver{admins: admins}
}

// Resolve returns the admin key for admins and the actor's personal key
// otherwise. Membership is checked on every call, so a grant or revoke takes
// effect on the actor's next request.
func (r *Resolver) Resolve(actor core.Identity) core.StoreKey {
	if r.admins.IsAdmin(actor) {
		return core.AdminKey()
	}
	return core.PersonalKey(actor)
}
