package jwt

import (
	"errors"
	"testing"
	"time"
)

// FuzzVerify feeds arbitrary strings to Verify for both classes.
// Invalid input must be rejected with one of the classified errors, never a panic.
func FuzzVerify(f *testing.F) {
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	mgr, _ := newTestManager(f, clock, func(c *Config) {
		c.Issuer = "fuzz-test"
		c.Leeway = 30 * time.Second
	})

	access, err := mgr.Issue(accessClaims("u1"), 5*time.Minute)
	if err != nil {
		f.Fatal(err)
	}
	refresh, err := mgr.Issue(refreshClaims("u1"), time.Hour)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(access)
	f.Add(refresh)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJFZERTQSJ9.eyJjbHMiOiJhY2Nlc3MifQ.invalid")
	f.Add("eyJhbGciOiJub25lIn0.eyJjbHMiOiJyZWZyZXNoIn0.")

	f.Fuzz(func(t *testing.T, input string) {
		for _, class := range []TokenClass{ClassAccess, ClassRefresh} {
			claims, err := mgr.Verify(input, class)
			if err != nil {
				if !errors.Is(err, ErrMalformed) &&
					!errors.Is(err, ErrSignatureInvalid) &&
					!errors.Is(err, ErrExpired) &&
					!errors.Is(err, ErrTokenTypeMismatch) {
					t.Fatalf("unclassified verify error: %v", err)
				}
				continue
			}
			if claims == nil || claims.Class != class {
				t.Fatalf("Verify returned %+v without error for class %s", claims, class)
			}
		}
	})
}
