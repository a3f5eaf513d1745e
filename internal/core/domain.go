package core

import (
	"fmt"
	"strings"
	"time"
)

const adminKeyName = "admin"
const personalKeyPrefix = "personal:"

type (
	// StoreKey identifies one movement log: the shared admin pool or a
	// personal log owned by a single identity.
	StoreKey struct {
		admin bool
		owner Identity
	}

	// Movement is one signed entry of a store. Amount > 0 is an entrata
	// (credit), amount < 0 an uscita (debit).
	Movement struct {
		ID        int64     `json:"id"`
		Principal Identity  `json:"principal"`
		Amount    Money     `json:"amount"`
		Timestamp time.Time `json:"timestamp"`
	}
)

// AdminKey is the key of the shared admin store.
func AdminKey() StoreKey { return StoreKey{admin: true} }

// PersonalKey is the key of owner's personal store.
func PersonalKey(owner Identity) StoreKey { return StoreKey{owner: owner} }

func (k StoreKey) IsAdmin() bool   { return k.admin }
func (k StoreKey) Owner() Identity { return k.owner }
func (k StoreKey) IsZero() bool    { return !k.admin && k.owner == "" }

// String renders "admin" or "personal:@handle"; ParseStoreKey is its inverse.
func (k StoreKey) String() string {
	if k.admin {
		return adminKeyName
	}
	return personalKeyPrefix + string(k.owner)
}

// ParseStoreKey parses the output of StoreKey.String.
func ParseStoreKey(s string) (StoreKey, error) {
	if s == adminKeyName {
		return AdminKey(), nil
	}
	if !strings.HasPrefix(s, personalKeyPrefix) {
		return StoreKey{}, fmt.Errorf("%w: %q", ErrInvalidStoreKey, s)
	}
	owner, err := ParseIdentity(strings.TrimPrefix(s, personalKeyPrefix))
	if err != nil {
		return StoreKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidStoreKey, s, err)
	}
	return PersonalKey(owner), nil
}

func (m Movement) Validate() error {
	if m.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if m.Principal == "" {
		return ErrInvalidIdentity
	}
	return nil
}

// Kind returns "Entrata" for credits and "Uscita" for debits.
func (m Movement) Kind() string {
	if m.Amount.IsCredit() {
		return "Entrata"
	}
	return "Uscita"
}
