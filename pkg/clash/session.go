package clash

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// ScopeClash is the key scope of the main game API
const ScopeClash = "clash"

// SessionState is the login state of a SessionManager
type SessionState int

const (
	StateLoggedOut SessionState = iota
	StateLoggingIn
	StateLoggedIn
	StateLoggingOut
)

func (s SessionState) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateLoggingIn:
		return "logging_in"
	case StateLoggedIn:
		return "logged_in"
	case StateLoggingOut:
		return "logging_out"
	}
	return "unknown"
}

// PortalConfig holds the developer portal settings
type PortalConfig struct {
	BaseURL        string
	Timeout        time.Duration
	KeyDescription string
	// KeyScope is sent as the scopes of created keys. Empty sends null.
	KeyScope string
	// MaxKeys is the number of keys the portal allows per account
	MaxKeys int
	Logger  *zap.Logger
}

// DefaultPortalConfig returns the default portal configuration
func DefaultPortalConfig() *PortalConfig {
	return &PortalConfig{
		BaseURL:        DefaultPortalURL,
		Timeout:        30 * time.Second,
		KeyDescription: "Created by clashapi",
		KeyScope:       ScopeClash,
		MaxKeys:        10,
	}
}

// Session is an authenticated portal session. It exists only after a
// successful login and carries the cookie jar used for key management.
type Session struct {
	Token            string
	ExpiresInSeconds uint32
	IssuedAt         time.Time
	Status           Status
	Developer        Developer
	Auth             *Auth
	SwaggerURL       string

	baseURL    *url.URL
	httpClient *http.Client
}

// ExpiresAt is informational; the manager never refreshes or enforces it
func (s *Session) ExpiresAt() time.Time {
	return s.IssuedAt.Add(time.Duration(s.ExpiresInSeconds) * time.Second)
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}

// Cookies returns the cookies the portal set for this session
func (s *Session) Cookies() []*http.Cookie {
	if s.httpClient == nil || s.httpClient.Jar == nil {
		return nil
	}
	return s.httpClient.Jar.Cookies(s.baseURL)
}

// Claims decodes the temporary token
func (s *Session) Claims() (*TokenClaims, error) {
	return ParseTokenClaims(s.Token)
}

func (s *Session) endpoint(path string) string {
	return strings.TrimRight(s.baseURL.String(), "/") + path
}

// SessionManager drives the portal login state machine:
// LoggedOut -> LoggingIn -> LoggedIn -> LoggingOut -> LoggedOut.
// A failed login returns to LoggedOut.
type SessionManager struct {
	config     *PortalConfig
	logger     *zap.Logger
	httpClient *http.Client
	state      SessionState
	session    *Session
}

// NewSessionManager creates a manager for the given portal
func NewSessionManager(config *PortalConfig) *SessionManager {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return NewSessionManagerWithHTTPClient(config, &http.Client{
		Timeout: config.Timeout,
	})
}

// NewSessionManagerWithHTTPClient creates a manager with a custom HTTP client.
// The client is copied for every login so each session gets its own jar.
func NewSessionManagerWithHTTPClient(config *PortalConfig, httpClient *http.Client) *SessionManager {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxKeys == 0 {
		config.MaxKeys = 10
	}

	return &SessionManager{
		config:     config,
		logger:     logger.Named("portal"),
		httpClient: httpClient,
		state:      StateLoggedOut,
	}
}

func (m *SessionManager) Config() *PortalConfig {
	return m.config
}

func (m *SessionManager) State() SessionState {
	return m.state
}

// Session returns the active session, or nil when logged out
func (m *SessionManager) Session() *Session {
	return m.session
}

func (m *SessionManager) baseURL() (*url.URL, error) {
	u, err := url.Parse(m.config.BaseURL)
	if err != nil {
		return nil, wrapError(KindBadURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, newError(KindBadURL, "portal URL must be absolute: "+m.config.BaseURL)
	}
	return u, nil
}

// Login authenticates with the first credential of the store. Logging in
// while already logged in replaces the current session.
func (m *SessionManager) Login(ctx context.Context, creds *Credentials) (*Session, error) {
	cred, ok := creds.First()
	if !ok {
		return nil, newError(KindInvalidCredentials, "credential store is empty")
	}

	base, err := m.baseURL()
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, wrapError(KindRequestFailed, err)
	}
	httpClient := *m.httpClient
	httpClient.Jar = jar

	m.state = StateLoggingIn
	m.session = nil
	m.logger.Debug("logging in", zap.String("email", cred.Email()))

	session, err := m.login(ctx, &httpClient, base, cred)
	if err != nil {
		m.state = StateLoggedOut
		m.logger.Warn("login failed",
			zap.String("email", cred.Email()),
			zap.Stringer("kind", KindOf(err)))
		return nil, err
	}

	m.session = session
	m.state = StateLoggedIn
	m.logger.Info("logged in",
		zap.String("developer_id", session.Developer.ID),
		zap.Uint32("expires_in_seconds", session.ExpiresInSeconds))

	return session, nil
}

func (m *SessionManager) login(ctx context.Context, httpClient *http.Client, base *url.URL, cred Credential) (*Session, error) {
	session := &Session{
		baseURL:    base,
		httpClient: httpClient,
	}

	req := &loginRequest{
		Email:    cred.Email(),
		Password: cred.Password(),
	}

	resp, err := doRequest(ctx, httpClient, m.logger, http.MethodPost, session.endpoint(PathLogin), nil, req)
	if err != nil {
		return nil, err
	}

	var lr LoginResponse
	if err := decodeBody(resp.body, &lr); err != nil {
		return nil, err
	}

	if !lr.Status.OK() {
		return nil, &APIError{Kind: KindUnknown, Detail: lr.Status.Message, StatusCode: resp.status, Body: resp.body}
	}
	if lr.TemporaryAPIToken == "" {
		return nil, newError(KindSerializationFailed, "login response has no temporaryAPIToken")
	}

	session.Token = lr.TemporaryAPIToken
	session.ExpiresInSeconds = lr.SessionExpiresInSeconds
	session.IssuedAt = time.Now()
	session.Status = lr.Status
	session.Developer = lr.Developer
	session.Auth = lr.Auth
	session.SwaggerURL = lr.SwaggerURL

	return session, nil
}

// ready fails with NotReady unless s is the active session
func (m *SessionManager) ready(s *Session) error {
	if s == nil || m.state != StateLoggedIn || m.session != s {
		return newError(KindNotReady, "no active session, state is "+m.state.String())
	}
	return nil
}

// post sends a portal request with the session's cookie jar
func (m *SessionManager) post(ctx context.Context, s *Session, path string, reqBody, result interface{}) error {
	body, err := m.postRaw(ctx, s, path, reqBody)
	if err != nil {
		return err
	}
	return decodeBody(body, result)
}

func (m *SessionManager) postRaw(ctx context.Context, s *Session, path string, reqBody interface{}) ([]byte, error) {
	resp, err := doRequest(ctx, s.httpClient, m.logger, http.MethodPost, s.endpoint(path), nil, reqBody)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// ListKeys fetches the keys of the account
func (m *SessionManager) ListKeys(ctx context.Context, s *Session) (*KeySet, error) {
	if err := m.ready(s); err != nil {
		return nil, err
	}

	var resp KeyListResponse
	if err := m.post(ctx, s, PathKeyList, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != nil && !resp.Status.OK() {
		return nil, newError(KindUnknown, resp.Status.Message)
	}

	m.logger.Debug("listed keys", zap.Int("count", len(resp.Keys)))

	return NewKeySet(resp.Keys...), nil
}

// Logout ends the session. A transport or status failure keeps the session
// logged in; once the portal acknowledges, the manager is logged out even if
// the acknowledgement cannot be decoded.
func (m *SessionManager) Logout(ctx context.Context, s *Session) (*LogoutResponse, error) {
	if err := m.ready(s); err != nil {
		return nil, err
	}

	m.state = StateLoggingOut

	resp, err := doRequest(ctx, s.httpClient, m.logger, http.MethodPost, s.endpoint(PathLogout), nil, nil)
	if err != nil {
		m.state = StateLoggedIn
		return nil, err
	}

	m.state = StateLoggedOut
	m.session = nil
	m.logger.Info("logged out", zap.String("developer_id", s.Developer.ID))

	var lr LogoutResponse
	if err := decodeBody(resp.body, &lr); err != nil {
		return nil, err
	}

	return &lr, nil
}
