package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("secret", 60)
	token, expiresAt, err := tm.GenerateToken("mail-fetcher")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("expected expiry in the future")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.ClientID != "mail-fetcher" {
		t.Errorf("client id = %q, want mail-fetcher", claims.ClientID)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	t.Parallel()

	token, _, err := NewTokenManager("secret-a", 60).GenerateToken("client")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := NewTokenManager("secret-b", 60).ParseToken(token); err == nil {
		t.Fatal("expected rejection for a token signed with a different secret")
	}
}

func TestParseToken_Garbage(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenManager("secret", 60).ParseToken("not.a.token"); err == nil {
		t.Fatal("expected parse error")
	}
}
