package clash

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestParseTokenClaims(t *testing.T) {
	srv := newTestPortal(t)
	sessions, acct := openTestAccount(t, srv, newTestPortalConfig(srv))
	keys := NewKeyManager(sessions, StaticIP(testIP))

	claims, err := acct.Session.Claims()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if claims.Subject != "developer/"+srv.DeveloperID {
		t.Errorf("Expected developer subject, got %s", claims.Subject)
	}
	if !reflect.DeepEqual(claims.Scopes, []string{ScopeClash}) {
		t.Errorf("Expected clash scope, got %v", claims.Scopes)
	}
	if !claims.Expiry().After(time.Now()) {
		t.Errorf("Expected a future expiry, got %v", claims.Expiry())
	}

	key, err := keys.CreateKey(context.Background(), acct, "bot")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	keyClaims, err := ParseTokenClaims(key.Key)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reflect.DeepEqual(keyClaims.Cidrs(), []string{testIP}) {
		t.Errorf("Expected cidrs [%s], got %v", testIP, keyClaims.Cidrs())
	}
}

func TestParseTokenClaims_Garbage(t *testing.T) {
	_, err := ParseTokenClaims("not-a-token")
	if !errors.Is(err, ErrSerializationFailed) {
		t.Fatalf("Expected SERIALIZATION_FAILED, got %v", err)
	}
}

func TestTokenClaims_NoExpiry(t *testing.T) {
	claims := &TokenClaims{}
	if !claims.Expiry().IsZero() {
		t.Errorf("Expected zero expiry, got %v", claims.Expiry())
	}
	if claims.Cidrs() != nil {
		t.Errorf("Expected no cidrs, got %v", claims.Cidrs())
	}
}
