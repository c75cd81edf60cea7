package clash

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/alexbotov/clashapi/internal/portaltest"
)

const testIP = "203.0.113.7"

func openTestAccount(t *testing.T, srv *portaltest.Server, cfg *PortalConfig) (*SessionManager, *Account) {
	t.Helper()
	sessions := NewSessionManager(cfg)
	acct, err := OpenAccount(context.Background(), sessions, testCredentials())
	if err != nil {
		t.Fatalf("Failed to open account: %v", err)
	}
	return sessions, acct
}

func keyIDs(ks *KeySet) []string {
	var ids []string
	for _, k := range ks.Keys() {
		ids = append(ids, k.ID)
	}
	return ids
}

func TestCreateAndRevokeKey(t *testing.T) {
	srv := newTestPortal(t)
	srv.AddKey(portaltest.Key{ID: "k1", Name: "existing", CidrRanges: []string{"198.51.100.1"}, Key: "secret-1"})
	cfg := newTestPortalConfig(srv)
	sessions, acct := openTestAccount(t, srv, cfg)
	keys := NewKeyManager(sessions, StaticIP(testIP))
	ctx := context.Background()

	if acct.Keys.Len() != 1 {
		t.Fatalf("Expected 1 key, got %d", acct.Keys.Len())
	}

	k2, err := keys.CreateKey(ctx, acct, "bot")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reflect.DeepEqual(k2.CidrRanges, []string{testIP}) {
		t.Errorf("Expected cidr ranges [%s], got %v", testIP, k2.CidrRanges)
	}
	if k2.Key == "" {
		t.Error("Expected the key secret")
	}
	if ids := keyIDs(acct.Keys); !reflect.DeepEqual(ids, []string{"k1", k2.ID}) {
		t.Errorf("Expected [k1 %s], got %v", k2.ID, ids)
	}

	var sent map[string]interface{}
	if err := json.Unmarshal(srv.LastBody("/apikey/create"), &sent); err != nil {
		t.Fatalf("Failed to decode create body: %v", err)
	}
	if sent["name"] != "bot" || sent["scopes"] != ScopeClash || sent["description"] != cfg.KeyDescription {
		t.Errorf("Unexpected create body %v", sent)
	}

	if _, err := keys.RevokeKey(ctx, acct, "k1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ids := keyIDs(acct.Keys); !reflect.DeepEqual(ids, []string{k2.ID}) {
		t.Errorf("Expected [%s], got %v", k2.ID, ids)
	}
	if len(srv.Keys()) != 1 {
		t.Errorf("Expected the portal to hold 1 key, got %d", len(srv.Keys()))
	}
}

func TestCreateKey_IPFailure(t *testing.T) {
	srv := newTestPortal(t)
	sessions, acct := openTestAccount(t, srv, newTestPortalConfig(srv))
	resolver := IPResolverFunc(func(ctx context.Context) (string, error) {
		return "", errors.New("no route to host")
	})
	keys := NewKeyManager(sessions, resolver)

	_, err := keys.CreateKey(context.Background(), acct, "bot")
	if !errors.Is(err, ErrFailedGetIP) {
		t.Fatalf("Expected FAILED_GET_IP, got %v", err)
	}
	if !strings.Contains(err.Error(), "no route to host") {
		t.Errorf("Expected the resolver message, got %v", err)
	}
	if srv.Calls("/apikey/create") != 0 {
		t.Errorf("Expected no create call, got %d", srv.Calls("/apikey/create"))
	}
	if acct.Keys.Len() != 0 {
		t.Errorf("Expected no keys, got %d", acct.Keys.Len())
	}
}

func TestCreateKey_NullScope(t *testing.T) {
	srv := newTestPortal(t)
	cfg := newTestPortalConfig(srv)
	cfg.KeyScope = ""
	sessions, acct := openTestAccount(t, srv, cfg)
	keys := NewKeyManager(sessions, StaticIP(testIP))

	if _, err := keys.CreateKey(context.Background(), acct, "bot"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if body := string(srv.LastBody("/apikey/create")); !strings.Contains(body, `"scopes":null`) {
		t.Errorf("Expected null scopes, got %s", body)
	}
}

func TestCreateKey_BareResponse(t *testing.T) {
	srv := newTestPortal(t)
	srv.CreateBareKey = true
	sessions, acct := openTestAccount(t, srv, newTestPortalConfig(srv))
	keys := NewKeyManager(sessions, StaticIP(testIP))

	key, err := keys.CreateKey(context.Background(), acct, "bot")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if key.ID == "" || key.Key == "" {
		t.Errorf("Expected a complete key, got %+v", key)
	}
	if acct.Keys.Len() != 1 {
		t.Errorf("Expected 1 key, got %d", acct.Keys.Len())
	}
}

func TestCreateKey_PortalError(t *testing.T) {
	srv := newTestPortal(t)
	sessions, acct := openTestAccount(t, srv, newTestPortalConfig(srv))
	keys := NewKeyManager(sessions, StaticIP(testIP))
	srv.FailWith("/apikey/create", 400, `{"status":{"code":400,"message":"badRequest"}}`)

	_, err := keys.CreateKey(context.Background(), acct, "bot")
	if !errors.Is(err, ErrBadParameters) {
		t.Fatalf("Expected BAD_PARAMETERS, got %v", err)
	}
	if acct.Keys.Len() != 0 {
		t.Errorf("Expected no keys, got %d", acct.Keys.Len())
	}
}

func TestCreateKey_NotReady(t *testing.T) {
	srv := newTestPortal(t)
	sessions, acct := openTestAccount(t, srv, newTestPortalConfig(srv))
	keys := NewKeyManager(sessions, StaticIP(testIP))

	if _, err := sessions.Logout(context.Background(), acct.Session); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, err := keys.CreateKey(context.Background(), acct, "bot")
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("Expected NOT_READY, got %v", err)
	}
	if srv.Calls("/apikey/create") != 0 {
		t.Error("Expected no create call")
	}
	if _, err := keys.CreateKey(context.Background(), nil, "bot"); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected NOT_READY for a nil account, got %v", err)
	}
}

func TestRevokeKey_FailureKeepsCache(t *testing.T) {
	srv := newTestPortal(t)
	srv.AddKey(portaltest.Key{ID: "k1", Name: "existing"})
	sessions, acct := openTestAccount(t, srv, newTestPortalConfig(srv))
	keys := NewKeyManager(sessions, StaticIP(testIP))
	srv.FailWith("/apikey/revoke", 403, "")

	_, err := keys.RevokeKey(context.Background(), acct, "k1")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("Expected ACCESS_DENIED, got %v", err)
	}
	if acct.Keys.Len() != 1 {
		t.Errorf("Expected the key to stay cached, got %d keys", acct.Keys.Len())
	}
}

func TestRevokeKey_RemovesDuplicates(t *testing.T) {
	srv := newTestPortal(t)
	sessions, acct := openTestAccount(t, srv, newTestPortalConfig(srv))
	keys := NewKeyManager(sessions, StaticIP(testIP))
	acct.Keys = NewKeySet(APIKey{ID: "dup"}, APIKey{ID: "keep"}, APIKey{ID: "dup"})

	if _, err := keys.RevokeKey(context.Background(), acct, "dup"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ids := keyIDs(acct.Keys); !reflect.DeepEqual(ids, []string{"keep"}) {
		t.Errorf("Expected [keep], got %v", ids)
	}
}

func TestRefresh(t *testing.T) {
	srv := newTestPortal(t)
	sessions, acct := openTestAccount(t, srv, newTestPortalConfig(srv))
	keys := NewKeyManager(sessions, StaticIP(testIP))

	srv.AddKey(portaltest.Key{ID: "external", Name: "made elsewhere"})
	if acct.Keys.Len() != 0 {
		t.Fatalf("Expected the cache to be stale, got %d keys", acct.Keys.Len())
	}

	if err := keys.Refresh(context.Background(), acct); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := acct.Keys.Get("external"); !ok {
		t.Error("Expected the refreshed set to hold the external key")
	}
}

func TestEnsureKey_Reuse(t *testing.T) {
	srv := newTestPortal(t)
	srv.AddKey(portaltest.Key{ID: "k1", Name: "bot", CidrRanges: []string{testIP}, Key: "secret-1"})
	sessions, acct := openTestAccount(t, srv, newTestPortalConfig(srv))
	keys := NewKeyManager(sessions, StaticIP(testIP))

	key, created, err := keys.EnsureKey(context.Background(), acct, "bot")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if created || key.ID != "k1" {
		t.Errorf("Expected to reuse k1, got %s (created=%v)", key.ID, created)
	}
	if srv.Calls("/apikey/create") != 0 {
		t.Error("Expected no create call")
	}
}

func TestEnsureKey_Rotates(t *testing.T) {
	srv := newTestPortal(t)
	srv.AddKey(portaltest.Key{ID: "old", Name: "bot", CidrRanges: []string{"198.51.100.1"}})
	srv.AddKey(portaltest.Key{ID: "other", Name: "dashboard", CidrRanges: []string{"198.51.100.2"}})
	cfg := newTestPortalConfig(srv)
	cfg.MaxKeys = 2
	sessions, acct := openTestAccount(t, srv, cfg)
	keys := NewKeyManager(sessions, StaticIP(testIP))

	key, created, err := keys.EnsureKey(context.Background(), acct, "bot")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !created {
		t.Error("Expected a new key")
	}
	if !key.AllowsIP(testIP) {
		t.Errorf("Expected the new key to allow %s, got %v", testIP, key.CidrRanges)
	}
	if _, ok := acct.Keys.Get("old"); ok {
		t.Error("Expected the old key to be revoked")
	}
	if ids := keyIDs(acct.Keys); !reflect.DeepEqual(ids, []string{"other", key.ID}) {
		t.Errorf("Expected [other %s], got %v", key.ID, ids)
	}
}

func TestEnsureKey_LimitWithoutCandidate(t *testing.T) {
	srv := newTestPortal(t)
	srv.AddKey(portaltest.Key{ID: "other", Name: "dashboard"})
	cfg := newTestPortalConfig(srv)
	cfg.MaxKeys = 1
	sessions, acct := openTestAccount(t, srv, cfg)
	keys := NewKeyManager(sessions, StaticIP(testIP))

	_, _, err := keys.EnsureKey(context.Background(), acct, "bot")
	if !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("Expected INVALID_PARAMETERS, got %v", err)
	}
	if srv.Calls("/apikey/revoke") != 0 || srv.Calls("/apikey/create") != 0 {
		t.Error("Expected no key changes")
	}
}
