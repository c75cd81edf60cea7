package keyring

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexbotov/clashapi/internal/audit"
	"github.com/alexbotov/clashapi/internal/portaltest"
	"github.com/alexbotov/clashapi/pkg/clash"
)

const (
	testEmail    = "dev@example.com"
	testPassword = "hunter2"
	testIP       = "203.0.113.7"
)

type fixture struct {
	srv     *portaltest.Server
	audit   *audit.Service
	keyring *Keyring
}

func newFixture(t *testing.T, configure func(*clash.PortalConfig), opts ...Option) *fixture {
	t.Helper()
	srv := portaltest.New(testEmail, testPassword)
	t.Cleanup(srv.Close)

	cfg := clash.DefaultPortalConfig()
	cfg.BaseURL = srv.PortalURL()
	cfg.Timeout = 5 * time.Second
	if configure != nil {
		configure(cfg)
	}

	sessions := clash.NewSessionManager(cfg)
	keys := clash.NewKeyManager(sessions, clash.StaticIP(testIP))
	creds := clash.NewCredentialsBuilder().Add(testEmail, testPassword).Build()
	svc := audit.New(audit.NewMemoryStore(0))

	k, err := Open(context.Background(), sessions, keys, creds, append([]Option{WithAudit(svc)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { k.Close(context.Background()) })

	return &fixture{srv: srv, audit: svc, keyring: k}
}

func eventTypes(t *testing.T, svc *audit.Service) []string {
	t.Helper()
	events, err := svc.Events(context.Background(), nil)
	require.NoError(t, err)
	types := make([]string, len(events))
	for i, e := range events {
		types[len(events)-1-i] = e.Type
	}
	return types
}

func TestOpen_LoginFailure(t *testing.T) {
	srv := portaltest.New(testEmail, testPassword)
	defer srv.Close()

	cfg := clash.DefaultPortalConfig()
	cfg.BaseURL = srv.PortalURL()
	sessions := clash.NewSessionManager(cfg)
	creds := clash.NewCredentialsBuilder().Add(testEmail, "wrong").Build()
	svc := audit.New(audit.NewMemoryStore(0))

	_, err := Open(context.Background(), sessions, clash.NewKeyManager(sessions, clash.StaticIP(testIP)), creds, WithAudit(svc))
	require.Error(t, err)
	assert.True(t, errors.Is(err, clash.ErrAccessDenied))
	assert.Equal(t, []string{audit.EventLoginFailed}, eventTypes(t, svc))
}

func TestKeyring_CreateAndRevoke(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	key, err := f.keyring.Create(ctx, "bot")
	require.NoError(t, err)
	assert.NotEmpty(t, key.Key, "create returns the secret")
	assert.Equal(t, []string{testIP}, key.CidrRanges)

	keys, err := f.keyring.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Empty(t, keys[0].Key, "listed keys are redacted")

	require.NoError(t, f.keyring.Revoke(ctx, key.ID))
	keys, err = f.keyring.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.Equal(t, []string{audit.EventLogin, audit.EventKeyCreated, audit.EventKeyRevoked}, eventTypes(t, f.audit))
}

func TestKeyring_Ensure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, created, err := f.keyring.Ensure(ctx, "bot")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.keyring.Ensure(ctx, "bot")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	token, err := f.keyring.Token(ctx, "bot")
	require.NoError(t, err)
	assert.Equal(t, first.Key, token)
	assert.Equal(t, 1, f.srv.Calls("/apikey/create"))
}

func TestKeyring_EnsureRotationIsAudited(t *testing.T) {
	f := newFixture(t, func(cfg *clash.PortalConfig) { cfg.MaxKeys = 1 })
	ctx := context.Background()

	f.srv.AddKey(portaltest.Key{ID: "old", Name: "bot", CidrRanges: []string{"198.51.100.1"}})
	_, err := f.keyring.Refresh(ctx)
	require.NoError(t, err)

	key, created, err := f.keyring.Ensure(ctx, "bot")
	require.NoError(t, err)
	assert.True(t, created)

	events, err := f.audit.Events(ctx, &audit.EventFilter{KeyID: "old"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventKeyRevoked, events[0].Type)

	events, err = f.audit.Events(ctx, &audit.EventFilter{KeyID: key.ID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventKeyCreated, events[0].Type)
	assert.Equal(t, testIP, events[0].IPAddress)
}

func TestKeyring_Session(t *testing.T) {
	f := newFixture(t, nil)

	info, err := f.keyring.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.srv.DeveloperID, info.DeveloperID)
	assert.Equal(t, "logged_in", info.State)
	assert.True(t, info.ExpiresAt.After(time.Now()))
}

func TestKeyring_ConcurrentCreates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.keyring.Create(ctx, "worker")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	keys, err := f.keyring.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 5)
	assert.Len(t, f.srv.Keys(), 5)
}

func TestKeyring_AbandonedCreateRefreshes(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Stall("/apikey/create", 500*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := f.keyring.Create(ctx, "bot")
	require.Error(t, err)

	keys, err := f.keyring.Keys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1, "the key created by the portal is picked up by the refresh")
	assert.Equal(t, "bot", keys[0].Name)
}

func TestKeyring_CancelledBeforeRun(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.keyring.Create(ctx, "bot")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.srv.Calls("/apikey/create"))
}

func TestKeyring_Close(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.keyring.Close(ctx))
	assert.Equal(t, 1, f.srv.Calls("/logout"))

	_, err := f.keyring.Keys(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.keyring.Close(ctx), ErrClosed)
}

func TestKeyring_Reopen(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	before, err := f.keyring.Session(ctx)
	require.NoError(t, err)

	f.srv.AddKey(portaltest.Key{ID: "external", Name: "made elsewhere"})
	require.NoError(t, f.keyring.Reopen(ctx))

	after, err := f.keyring.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Keys)
	assert.False(t, after.IssuedAt.Before(before.IssuedAt))
	assert.Equal(t, 2, f.srv.Calls("/login"))
}

func TestKeyring_RejectedSessionLogsInAgain(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.srv.AddKey(portaltest.Key{ID: "external", Name: "made elsewhere"})

	f.srv.ExpireSessions()
	keys, err := f.keyring.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	assert.Equal(t, 2, f.srv.Calls("/login"))

	f.srv.ExpireSessions()
	key, created, err := f.keyring.Ensure(ctx, "bot")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "bot", key.Name)
	assert.Equal(t, 3, f.srv.Calls("/login"))
	assert.Contains(t, eventTypes(t, f.audit), audit.EventKeyCreated)
}

func TestKeyring_RejectedSessionRetriesOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.srv.FailWith("/apikey/list", 403, `{"error":"forbidden","description":"no session"}`)
	_, err := f.keyring.Refresh(ctx)
	assert.ErrorIs(t, err, clash.ErrAccessDenied)
	assert.Equal(t, 2, f.srv.Calls("/login"), "one login per rejected request")

	f.srv.ClearFailures()
	_, err = f.keyring.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, f.srv.Calls("/login"))

	_, err = f.keyring.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, f.srv.Calls("/login"), "a working session is kept")
}

func TestKeyring_ExpiredSessionLogsInAgain(t *testing.T) {
	var skew atomic.Int64
	clock := func() time.Time { return time.Now().Add(time.Duration(skew.Load())) }
	f := newFixture(t, nil, WithClock(clock))
	ctx := context.Background()

	_, err := f.keyring.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.srv.Calls("/login"))

	skew.Store(int64(2 * time.Hour))
	_, err = f.keyring.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.srv.Calls("/login"))
	assert.Equal(t, 1, f.srv.Calls("/logout"))

	_, err = f.keyring.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.srv.Calls("/login"), "cached reads do not log in")
}

func TestKeyring_RejectedLoginKeepsError(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.srv.ExpireSessions()
	f.srv.FailWith("/login", 500, `{"reason":"unknownException"}`)
	_, err := f.keyring.Refresh(ctx)
	assert.ErrorIs(t, err, clash.ErrAccessDenied)
	assert.Contains(t, eventTypes(t, f.audit), audit.EventLoginFailed)
}
