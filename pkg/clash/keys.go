package clash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// KeySet is the local, ordered cache of an account's keys. It changes only
// through key creation (append) and revocation (remove by id).
type KeySet struct {
	keys []APIKey
}

func NewKeySet(keys ...APIKey) *KeySet {
	ks := &KeySet{keys: make([]APIKey, len(keys))}
	copy(ks.keys, keys)
	return ks
}

// Keys returns a copy of the keys in order
func (ks *KeySet) Keys() []APIKey {
	if ks == nil {
		return nil
	}
	out := make([]APIKey, len(ks.keys))
	copy(out, ks.keys)
	return out
}

func (ks *KeySet) Len() int {
	if ks == nil {
		return 0
	}
	return len(ks.keys)
}

func (ks *KeySet) Get(id string) (APIKey, bool) {
	if ks == nil {
		return APIKey{}, false
	}
	for _, k := range ks.keys {
		if k.ID == id {
			return k, true
		}
	}
	return APIKey{}, false
}

// Find returns the first key with the given name that allows ip
func (ks *KeySet) Find(name, ip string) (APIKey, bool) {
	if ks == nil {
		return APIKey{}, false
	}
	for _, k := range ks.keys {
		if k.Name == name && k.AllowsIP(ip) {
			return k, true
		}
	}
	return APIKey{}, false
}

func (ks *KeySet) add(k APIKey) {
	ks.keys = append(ks.keys, k)
}

// remove drops every key with the id and reports how many were removed
func (ks *KeySet) remove(id string) int {
	kept := ks.keys[:0]
	for _, k := range ks.keys {
		if k.ID != id {
			kept = append(kept, k)
		}
	}
	removed := len(ks.keys) - len(kept)
	ks.keys = kept
	return removed
}

// KeyManager creates and revokes keys for an Account
type KeyManager struct {
	sessions *SessionManager
	resolver IPResolver
	logger   *zap.Logger
}

func NewKeyManager(sessions *SessionManager, resolver IPResolver) *KeyManager {
	return &KeyManager{
		sessions: sessions,
		resolver: resolver,
		logger:   sessions.logger.Named("keys"),
	}
}

func (km *KeyManager) ready(acct *Account) error {
	if acct == nil {
		return newError(KindNotReady, "no account")
	}
	if err := km.sessions.ready(acct.Session); err != nil {
		return err
	}
	if acct.Keys == nil {
		acct.Keys = NewKeySet()
	}
	return nil
}

// CreateKey creates a key bound to the current public IP and appends it to
// the account's key set. No portal call is made when the IP cannot be found.
func (km *KeyManager) CreateKey(ctx context.Context, acct *Account, name string) (*APIKey, error) {
	if err := km.ready(acct); err != nil {
		return nil, err
	}

	ip, err := resolveIP(ctx, km.resolver)
	if err != nil {
		km.logger.Warn("ip lookup failed", zap.Error(err))
		return nil, err
	}

	return km.create(ctx, acct, name, ip)
}

func (km *KeyManager) create(ctx context.Context, acct *Account, name, ip string) (*APIKey, error) {
	cfg := km.sessions.config
	req := &createKeyRequest{
		Name:        name,
		Description: cfg.KeyDescription,
		CidrRanges:  []string{ip},
	}
	if cfg.KeyScope != "" {
		scope := cfg.KeyScope
		req.Scopes = &scope
	}

	raw, err := km.sessions.postRaw(ctx, acct.Session, PathKeyCreate, req)
	if err != nil {
		return nil, err
	}

	key, err := decodeCreatedKey(raw)
	if err != nil {
		return nil, err
	}
	if key.ID == "" {
		return nil, newError(KindSerializationFailed, "create response has no key")
	}

	acct.Keys.add(*key)
	km.logger.Info("created key",
		zap.String("key_id", key.ID),
		zap.String("name", key.Name),
		zap.Strings("cidr_ranges", key.CidrRanges))

	return key, nil
}

// RevokeKey revokes the key and removes every cached key with that id. The
// cache is left untouched on failure.
func (km *KeyManager) RevokeKey(ctx context.Context, acct *Account, id string) (*LogoutResponse, error) {
	if err := km.ready(acct); err != nil {
		return nil, err
	}

	var resp LogoutResponse
	if err := km.sessions.post(ctx, acct.Session, PathKeyRevoke, &revokeKeyRequest{ID: id}, &resp); err != nil {
		return nil, err
	}

	removed := acct.Keys.remove(id)
	km.logger.Info("revoked key", zap.String("key_id", id), zap.Int("removed", removed))

	return &resp, nil
}

// Refresh replaces the cached key set with the portal's list
func (km *KeyManager) Refresh(ctx context.Context, acct *Account) error {
	if err := km.ready(acct); err != nil {
		return err
	}

	keys, err := km.sessions.ListKeys(ctx, acct.Session)
	if err != nil {
		return err
	}

	acct.Keys = keys
	return nil
}

// EnsureKey returns a key named name that allows the current IP, creating one
// when needed. When the account is at its key limit the oldest key with the
// same name is revoked first. The bool reports whether a key was created.
func (km *KeyManager) EnsureKey(ctx context.Context, acct *Account, name string) (*APIKey, bool, error) {
	if err := km.ready(acct); err != nil {
		return nil, false, err
	}

	ip, err := resolveIP(ctx, km.resolver)
	if err != nil {
		return nil, false, err
	}

	if k, ok := acct.Keys.Find(name, ip); ok {
		return &k, false, nil
	}

	if limit := km.sessions.config.MaxKeys; acct.Keys.Len() >= limit {
		victim, ok := oldestNamed(acct.Keys, name)
		if !ok {
			return nil, false, newError(KindInvalidParameters,
				fmt.Sprintf("account holds %d keys and none is named %q", acct.Keys.Len(), name))
		}
		km.logger.Info("rotating key", zap.String("key_id", victim.ID), zap.String("name", name))
		if _, err := km.RevokeKey(ctx, acct, victim.ID); err != nil {
			return nil, false, err
		}
	}

	key, err := km.create(ctx, acct, name, ip)
	if err != nil {
		return nil, false, err
	}
	return key, true, nil
}

func oldestNamed(ks *KeySet, name string) (APIKey, bool) {
	for _, k := range ks.keys {
		if k.Name == name {
			return k, true
		}
	}
	return APIKey{}, false
}

// decodeCreatedKey accepts both the enveloped create response and a bare key
// object. In the bare form "key" holds the secret string.
func decodeCreatedKey(raw []byte) (*APIKey, error) {
	var fields map[string]json.RawMessage
	if err := decodeBody(raw, &fields); err != nil {
		return nil, err
	}

	var status Status
	if rawStatus, ok := fields["status"]; ok && json.Unmarshal(rawStatus, &status) == nil && !status.OK() {
		return nil, newError(KindUnknown, status.Message)
	}

	nested := bytes.HasPrefix(bytes.TrimSpace(fields["key"]), []byte("{"))
	if !nested {
		var bare APIKey
		if err := decodeBody(raw, &bare); err != nil {
			return nil, err
		}
		return &bare, nil
	}

	var resp KeyCreateResponse
	if err := decodeBody(raw, &resp); err != nil {
		return nil, err
	}
	return resp.Key, nil
}
