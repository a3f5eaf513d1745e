package core

import (
	"errors"
	"testing"
)

func TestParseIdentity(t *testing.T) {
	cases := []struct {
		in  string
		out Identity
		ok  bool
	}{
		{"@Elanyx03", "@elanyx03", true},
		{"elanyx03", "@elanyx03", true},
		{"  @@Mario ", "@mario", true},
		{"@", "", false},
		{"", "", false},
		{"@ma rio", "", false},
	}
	for _, tc := range cases {
		got, err := ParseIdentity(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.out, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidIdentity) {
			t.Fatalf("%q expected ErrInvalidIdentity, got %v", tc.in, err)
		}
	}
}

func TestParseIdentitiesDedupe(t *testing.T) {
	ids, err := ParseIdentities([]string{"@A", "a", "@b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "@a" || ids[1] != "@b" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestStoreKeyRoundTrip(t *testing.T) {
	for _, k := range []StoreKey{AdminKey(), PersonalKey(MustIdentity("@mario"))} {
		back, err := ParseStoreKey(k.String())
		if err != nil || back != k {
			t.Fatalf("round trip of %s gave %v (err=%v)", k, back, err)
		}
	}
	if _, err := ParseStoreKey("nope"); !errors.Is(err, ErrInvalidStoreKey) {
		t.Fatalf("expected ErrInvalidStoreKey, got %v", err)
	}
}
