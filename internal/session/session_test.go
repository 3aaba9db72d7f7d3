package session

import (
	"errors"
	"testing"
	"time"
)

func TestManagerFiresOnSubscribeAndTransitions(t *testing.T) {
	m := NewManager()
	var got []string
	stop := m.OnChange(func(id string) { got = append(got, id) })

	m.SignIn("u1")
	m.SignIn("u1")
	m.SignOut()

	want := []string{"", "u1", ""}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Event %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	stop()
	m.SignIn("u2")
	if len(got) != len(want) {
		t.Errorf("Expected no events after stop, got %v", got)
	}
	if id, ok := m.CurrentUser(); !ok || id != "u2" {
		t.Errorf("Expected u2 signed in, got %q %t", id, ok)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, exp, err := issuer.Issue("u1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("Expected expiry in the future, got %v", exp)
	}

	userID, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if userID != "u1" {
		t.Errorf("Expected u1, got %q", userID)
	}
}

func TestTokenRejections(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, _, err := issuer.Issue("u1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	other := NewTokenIssuer("another", time.Hour)
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for a foreign secret, got %v", err)
	}

	expired := NewTokenIssuer("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := expired.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for an expired token, got %v", err)
	}

	if _, err := issuer.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for garbage, got %v", err)
	}

	if _, _, err := NewTokenIssuer("", time.Hour).Issue("u1"); err == nil {
		t.Error("Expected an error without a secret")
	}
}

func TestIssueRequiresPositiveTTL(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Minute} {
		if token, _, err := NewTokenIssuer("secret", ttl).Issue("u1"); err == nil {
			t.Errorf("Expected an error for ttl %v, got token %q", ttl, token)
		}
	}
}
