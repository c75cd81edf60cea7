// Package keyring owns one developer account on a single goroutine so the
// management API and CLI can share its session and key cache safely
package keyring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alexbotov/clashapi/internal/audit"
	"github.com/alexbotov/clashapi/pkg/clash"
)

// ErrClosed is returned by every operation after Close
var ErrClosed = errors.New("keyring is closed")

// refreshTimeout bounds the refresh that follows an abandoned create
const refreshTimeout = 30 * time.Second

// SessionInfo describes the active portal session without its token
type SessionInfo struct {
	State       string    `json:"state"`
	DeveloperID string    `json:"developer_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Tier        string    `json:"tier"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Keys        int       `json:"keys"`
}

type request struct {
	ctx  context.Context
	fn   func(ctx context.Context, acct *clash.Account) error
	errc chan error
	// relogin marks operations that use the portal session
	relogin bool
}

// Keyring serializes every operation on one clash.Account
type Keyring struct {
	sessions *clash.SessionManager
	keys     *clash.KeyManager
	creds    *clash.Credentials
	audit    *audit.Service
	logger   *zap.Logger
	now      func() time.Time

	// acct is only touched on the owner goroutine
	acct *clash.Account

	ops       chan request
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// Option configures a Keyring
type Option func(*Keyring)

// WithAudit records lifecycle events in svc
func WithAudit(svc *audit.Service) Option {
	return func(k *Keyring) {
		k.audit = svc
	}
}

// WithLogger sets the keyring logger
func WithLogger(logger *zap.Logger) Option {
	return func(k *Keyring) {
		k.logger = logger
	}
}

// WithClock sets the clock used to check session expiry
func WithClock(now func() time.Time) Option {
	return func(k *Keyring) {
		k.now = now
	}
}

// Open logs in, loads the key list and starts the owner goroutine
func Open(ctx context.Context, sessions *clash.SessionManager, keys *clash.KeyManager, creds *clash.Credentials, opts ...Option) (*Keyring, error) {
	k := &Keyring{
		sessions: sessions,
		keys:     keys,
		creds:    creds,
		logger:   zap.NewNop(),
		now:      time.Now,
		ops:      make(chan request),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.logger = k.logger.Named("keyring")

	acct, err := k.open(ctx)
	if err != nil {
		return nil, err
	}
	k.acct = acct

	go k.run()
	return k, nil
}

func (k *Keyring) open(ctx context.Context) (*clash.Account, error) {
	acct, err := clash.OpenAccount(ctx, k.sessions, k.creds)
	if err != nil {
		k.record(ctx, audit.EventLoginFailed, audit.SeverityWarning, "portal login failed",
			map[string]string{"kind": clash.KindOf(err).String()})
		return nil, fmt.Errorf("failed to open account: %w", err)
	}

	k.logger.Info("account opened",
		zap.String("developer_id", acct.Session.Developer.ID),
		zap.Int("keys", acct.Keys.Len()))
	k.record(ctx, audit.EventLogin, audit.SeverityInfo, "logged in to the developer portal",
		map[string]int{"keys": acct.Keys.Len()}, audit.WithDeveloper(acct.Session.Developer.ID))
	return acct, nil
}

func (k *Keyring) run() {
	defer close(k.stopped)
	for {
		select {
		case req := <-k.ops:
			if err := req.ctx.Err(); err != nil {
				req.errc <- err
				continue
			}
			req.errc <- k.serve(req)
		case <-k.done:
			return
		}
	}
}

// serve runs req on the owner goroutine. Portal operations log in again
// first when the session has expired, and once more when the portal rejects
// the session.
func (k *Keyring) serve(req request) error {
	if !req.relogin {
		return req.fn(req.ctx, k.acct)
	}

	if s := k.acct.Session; s.ExpiresInSeconds > 0 && s.Expired(k.now()) {
		k.logger.Info("session expired, logging in again", zap.Time("expired_at", s.ExpiresAt()))
		if err := k.reopen(req.ctx); err != nil {
			return err
		}
	}

	err := req.fn(req.ctx, k.acct)
	if clash.KindOf(err) != clash.KindAccessDenied || req.ctx.Err() != nil {
		return err
	}

	k.logger.Info("portal rejected the session, logging in again")
	if rerr := k.reopen(req.ctx); rerr != nil {
		k.logger.Warn("login after rejected session failed", zap.Error(rerr))
		return err
	}
	return req.fn(req.ctx, k.acct)
}

// do runs fn on the owner goroutine. A cancelled ctx abandons the wait; an
// operation already in flight still completes.
func (k *Keyring) do(ctx context.Context, fn func(ctx context.Context, acct *clash.Account) error) error {
	return k.submit(request{ctx: ctx, fn: fn, errc: make(chan error, 1)})
}

// doPortal is do for operations that send the session to the portal
func (k *Keyring) doPortal(ctx context.Context, fn func(ctx context.Context, acct *clash.Account) error) error {
	return k.submit(request{ctx: ctx, fn: fn, errc: make(chan error, 1), relogin: true})
}

func (k *Keyring) submit(req request) error {
	ctx := req.ctx

	select {
	case k.ops <- req:
	case <-k.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close logs out and stops the owner goroutine. The keyring is closed even
// when logout fails.
func (k *Keyring) Close(ctx context.Context) error {
	err := k.do(ctx, func(ctx context.Context, acct *clash.Account) error {
		if _, err := k.sessions.Logout(ctx, acct.Session); err != nil {
			return fmt.Errorf("failed to log out: %w", err)
		}
		k.record(ctx, audit.EventLogout, audit.SeverityInfo, "logged out of the developer portal", nil,
			audit.WithDeveloper(acct.Session.Developer.ID))
		return nil
	})
	if errors.Is(err, ErrClosed) {
		return err
	}

	k.closeOnce.Do(func() { close(k.done) })
	<-k.stopped
	return err
}

// Session describes the active session
func (k *Keyring) Session(ctx context.Context) (*SessionInfo, error) {
	var info *SessionInfo
	err := k.do(ctx, func(ctx context.Context, acct *clash.Account) error {
		s := acct.Session
		info = &SessionInfo{
			State:       k.sessions.State().String(),
			DeveloperID: s.Developer.ID,
			Name:        s.Developer.Name,
			Email:       s.Developer.Email,
			Tier:        s.Developer.Tier,
			IssuedAt:    s.IssuedAt,
			ExpiresAt:   s.ExpiresAt(),
			Keys:        acct.Keys.Len(),
		}
		return nil
	})
	return info, err
}

// Keys returns the cached keys with secrets removed
func (k *Keyring) Keys(ctx context.Context) ([]clash.APIKey, error) {
	var keys []clash.APIKey
	err := k.do(ctx, func(ctx context.Context, acct *clash.Account) error {
		keys = redacted(acct.Keys)
		return nil
	})
	return keys, err
}

// Refresh reloads the key list from the portal
func (k *Keyring) Refresh(ctx context.Context) ([]clash.APIKey, error) {
	var keys []clash.APIKey
	err := k.doPortal(ctx, func(ctx context.Context, acct *clash.Account) error {
		if err := k.keys.Refresh(ctx, acct); err != nil {
			return err
		}
		k.record(ctx, audit.EventKeysRefreshed, audit.SeverityInfo, "reloaded the key list",
			map[string]int{"keys": acct.Keys.Len()}, audit.WithDeveloper(acct.Session.Developer.ID))
		keys = redacted(acct.Keys)
		return nil
	})
	return keys, err
}

// Create creates a key for the current public IP
func (k *Keyring) Create(ctx context.Context, name string) (*clash.APIKey, error) {
	var key *clash.APIKey
	err := k.doPortal(ctx, func(ctx context.Context, acct *clash.Account) error {
		created, err := k.keys.CreateKey(ctx, acct, name)
		if err != nil {
			k.createFailed(ctx, acct, name, err)
			return err
		}
		k.keyCreated(ctx, acct, created)
		key = created
		return nil
	})
	return key, err
}

// Revoke revokes the key with the given id
func (k *Keyring) Revoke(ctx context.Context, id string) error {
	return k.doPortal(ctx, func(ctx context.Context, acct *clash.Account) error {
		if _, err := k.keys.RevokeKey(ctx, acct, id); err != nil {
			k.record(ctx, audit.EventKeyRevokeFailed, audit.SeverityWarning, "key revoke failed",
				map[string]string{"kind": clash.KindOf(err).String()},
				audit.WithDeveloper(acct.Session.Developer.ID), audit.WithKey(id))
			return err
		}
		k.record(ctx, audit.EventKeyRevoked, audit.SeverityInfo, "revoked key", nil,
			audit.WithDeveloper(acct.Session.Developer.ID), audit.WithKey(id))
		return nil
	})
}

// Ensure returns a key named name usable from the current IP, rotating the
// oldest key of that name when the account is full. The bool reports whether
// a key was created.
func (k *Keyring) Ensure(ctx context.Context, name string) (*clash.APIKey, bool, error) {
	var (
		key     *clash.APIKey
		created bool
	)
	err := k.doPortal(ctx, func(ctx context.Context, acct *clash.Account) error {
		before := acct.Keys.Keys()
		ensured, isNew, err := k.keys.EnsureKey(ctx, acct, name)
		if err != nil {
			k.createFailed(ctx, acct, name, err)
			return err
		}

		if isNew {
			for _, old := range before {
				if _, ok := acct.Keys.Get(old.ID); !ok {
					k.record(ctx, audit.EventKeyRevoked, audit.SeverityInfo, "rotated out key", nil,
						audit.WithDeveloper(acct.Session.Developer.ID), audit.WithKey(old.ID))
				}
			}
			k.keyCreated(ctx, acct, ensured)
		} else {
			k.record(ctx, audit.EventKeyReused, audit.SeverityInfo, "reused key",
				map[string]string{"name": ensured.Name},
				audit.WithDeveloper(acct.Session.Developer.ID), audit.WithKey(ensured.ID))
		}

		key, created = ensured, isNew
		return nil
	})
	return key, created, err
}

// Token returns the secret of a key named name usable from the current IP
func (k *Keyring) Token(ctx context.Context, name string) (string, error) {
	key, _, err := k.Ensure(ctx, name)
	if err != nil {
		return "", err
	}
	return key.Key, nil
}

// Reopen logs out (best effort) and logs in again with the same credentials,
// replacing the session and the key cache
func (k *Keyring) Reopen(ctx context.Context) error {
	return k.do(ctx, func(ctx context.Context, _ *clash.Account) error {
		return k.reopen(ctx)
	})
}

func (k *Keyring) reopen(ctx context.Context) error {
	if _, err := k.sessions.Logout(ctx, k.acct.Session); err != nil {
		k.logger.Warn("logout before reopen failed", zap.Error(err))
	}
	fresh, err := k.open(ctx)
	if err != nil {
		return err
	}
	k.acct = fresh
	return nil
}

func (k *Keyring) keyCreated(ctx context.Context, acct *clash.Account, key *clash.APIKey) {
	var ip string
	if len(key.CidrRanges) > 0 {
		ip = key.CidrRanges[0]
	}
	k.record(ctx, audit.EventKeyCreated, audit.SeverityInfo, "created key",
		map[string]interface{}{"name": key.Name, "cidr_ranges": key.CidrRanges},
		audit.WithDeveloper(acct.Session.Developer.ID), audit.WithKey(key.ID), audit.WithIP(ip))
}

// createFailed records the failure. When the caller gave up mid-request the
// portal may still have created the key, so the cache is reloaded.
func (k *Keyring) createFailed(ctx context.Context, acct *clash.Account, name string, err error) {
	k.record(ctx, audit.EventKeyCreateFailed, audit.SeverityWarning, "key create failed",
		map[string]string{"name": name, "kind": clash.KindOf(err).String()},
		audit.WithDeveloper(acct.Session.Developer.ID))

	if ctx.Err() == nil {
		return
	}

	rctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := k.keys.Refresh(rctx, acct); err != nil {
		k.logger.Warn("refresh after abandoned create failed", zap.Error(err))
		return
	}
	k.logger.Info("refreshed keys after abandoned create", zap.Int("keys", acct.Keys.Len()))
}

// record writes an audit event. Audit failures never fail the operation.
func (k *Keyring) record(ctx context.Context, eventType string, severity audit.Severity, description string, data interface{}, opts ...audit.EventOption) {
	if k.audit == nil {
		return
	}
	opts = append(opts, audit.WithComponent("keyring"))
	_ = k.audit.Log(context.WithoutCancel(ctx), eventType, severity, description, data, opts...)
}

func redacted(ks *clash.KeySet) []clash.APIKey {
	keys := ks.Keys()
	for i := range keys {
		keys[i] = keys[i].Redacted()
	}
	return keys
}
