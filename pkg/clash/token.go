package clash

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenLimit is one usage limit embedded in a portal issued token
type TokenLimit struct {
	Tier    string   `json:"tier,omitempty"`
	Type    string   `json:"type"`
	Cidrs   []string `json:"cidrs,omitempty"`
	Origins []string `json:"origins,omitempty"`
}

// TokenClaims are the claims of a temporary API token or a key secret
type TokenClaims struct {
	jwt.RegisteredClaims
	Scopes []string     `json:"scopes,omitempty"`
	Limits []TokenLimit `json:"limits,omitempty"`
}

// Cidrs returns every CIDR range the token is limited to
func (c *TokenClaims) Cidrs() []string {
	var cidrs []string
	for _, l := range c.Limits {
		cidrs = append(cidrs, l.Cidrs...)
	}
	return cidrs
}

// Expiry returns the expiry time, or the zero time when none is set
func (c *TokenClaims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// ParseTokenClaims decodes the claims of a portal issued token. The signature
// is not verified; the claims are informational only.
func ParseTokenClaims(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, wrapError(KindSerializationFailed, err)
	}
	return claims, nil
}
