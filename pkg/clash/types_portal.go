package clash

import (
	"encoding/json"
	"net/netip"
	"strings"
)

// LoginResponse is returned by the portal login endpoint
type LoginResponse struct {
	Status                  Status    `json:"status"`
	SessionExpiresInSeconds uint32    `json:"sessionExpiresInSeconds"`
	Auth                    *Auth     `json:"auth,omitempty"`
	Developer               Developer `json:"developer"`
	TemporaryAPIToken       string    `json:"temporaryAPIToken"`
	SwaggerURL              string    `json:"swaggerUrl"`
}

// Auth describes the portal login session
type Auth struct {
	UID   string  `json:"uid"`
	Token string  `json:"token"`
	UA    *string `json:"ua,omitempty"`
	IP    *string `json:"ip,omitempty"`
}

// Developer is the profile of the logged in portal account. AllowedScopes and
// MaxCidrs have no fixed shape and are kept verbatim.
type Developer struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Game          string          `json:"game"`
	Email         string          `json:"email"`
	Tier          string          `json:"tier"`
	AllowedScopes json.RawMessage `json:"allowedScopes,omitempty"`
	MaxCidrs      json.RawMessage `json:"maxCidrs,omitempty"`
	PrevLoginTS   *string         `json:"prevLoginTs,omitempty"`
	PrevLoginIP   *string         `json:"prevLoginIp,omitempty"`
	PrevLoginUA   *string         `json:"prevLoginUa,omitempty"`
}

// APIKey is a developer key. Key holds the bearer secret.
type APIKey struct {
	ID          string   `json:"id"`
	DeveloperID string   `json:"developerId"`
	Tier        string   `json:"tier"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Origins     *string  `json:"origins"`
	Scopes      []string `json:"scopes"`
	CidrRanges  []string `json:"cidrRanges"`
	ValidUntil  *string  `json:"validUntil"`
	Key         string   `json:"key"`
}

// AllowsIP reports whether one of the key's CIDR ranges contains ip. Bare
// addresses in the range list are treated as single host ranges.
func (k *APIKey) AllowsIP(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	for _, cidr := range k.CidrRanges {
		if strings.Contains(cidr, "/") {
			prefix, err := netip.ParsePrefix(cidr)
			if err == nil && prefix.Contains(addr) {
				return true
			}
			continue
		}
		if other, err := netip.ParseAddr(cidr); err == nil && other == addr {
			return true
		}
	}
	return false
}

// Redacted returns a copy of the key without the secret
func (k APIKey) Redacted() APIKey {
	k.Key = ""
	k.Scopes = append([]string(nil), k.Scopes...)
	k.CidrRanges = append([]string(nil), k.CidrRanges...)
	return k
}

// KeyListResponse is returned by the key list endpoint
type KeyListResponse struct {
	Status                  *Status  `json:"status,omitempty"`
	SessionExpiresInSeconds *uint32  `json:"sessionExpiresInSeconds,omitempty"`
	Keys                    []APIKey `json:"keys"`
}

// KeyCreateResponse is returned by the key create endpoint
type KeyCreateResponse struct {
	Status                  *Status `json:"status,omitempty"`
	SessionExpiresInSeconds *uint32 `json:"sessionExpiresInSeconds,omitempty"`
	Key                     *APIKey `json:"key,omitempty"`
}

// LogoutResponse is returned by the logout and key revoke endpoints
type LogoutResponse struct {
	Status                  Status `json:"status"`
	SessionExpiresInSeconds uint32 `json:"sessionExpiresInSeconds"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createKeyRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CidrRanges  []string `json:"cidrRanges"`
	Scopes      *string  `json:"scopes"`
}

type revokeKeyRequest struct {
	ID string `json:"id"`
}
