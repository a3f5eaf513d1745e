package core

import (
	"fmt"
	"strings"
	"unicode"
)

// Identity is the canonical handle of an actor.
//
// The canonical form is the trimmed handle, lower-cased, with exactly one
// leading "@". Two identities are equal iff their canonical forms are equal,
// so comparisons are case-insensitive everywhere.
type Identity string

// ParseIdentity normalizes a raw handle ("Mario", "@Mario ", "@@mario") into
// its canonical form ("@mario").
func ParseIdentity(raw string) (Identity, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "@")
	if s == "" {
		return "", fmt.Errorf("%w: empty handle", ErrInvalidIdentity)
	}
	if strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentity, raw)
	}
	if len(s) > 64 {
		return "", fmt.Errorf("%w: handle too long", ErrInvalidIdentity)
	}
	return Identity("@" + strings.ToLower(s)), nil
}

// MustIdentity is ParseIdentity for constants and tests.
func MustIdentity(raw string) Identity {
	id, err := ParseIdentity(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseIdentities parses a list of handles, dropping duplicates while keeping order.
func ParseIdentities(raw []string) ([]Identity, error) {
	seen := make(map[Identity]struct{}, len(raw))
	out := make([]Identity, 0, len(raw))
	for _, r := range raw {
		id, err := ParseIdentity(r)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func (id Identity) String() string { return string(id) }

// Handle returns the identity without its leading "@", e.g. for file names.
func (id Identity) Handle() string { return strings.TrimPrefix(string(id), "@") }
