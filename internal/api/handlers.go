// Package api provides the HTTP management API for the key daemon
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/alexbotov/clashapi/internal/audit"
	"github.com/alexbotov/clashapi/internal/auth"
	"github.com/alexbotov/clashapi/internal/keyring"
	"github.com/alexbotov/clashapi/pkg/clash"
)

// Version is reported by the info endpoint
const Version = "1.0.0"

// Keyring is the key daemon the handlers drive
type Keyring interface {
	Session(ctx context.Context) (*keyring.SessionInfo, error)
	Keys(ctx context.Context) ([]clash.APIKey, error)
	Refresh(ctx context.Context) ([]clash.APIKey, error)
	Create(ctx context.Context, name string) (*clash.APIKey, error)
	Revoke(ctx context.Context, id string) error
	Ensure(ctx context.Context, name string) (*clash.APIKey, bool, error)
	Token(ctx context.Context, name string) (string, error)
	Reopen(ctx context.Context) error
}

// Handler contains all HTTP handlers
type Handler struct {
	keyring Keyring
	stats   *clash.Client
	auth    *auth.Service
	audit   *audit.Service
	logger  *zap.Logger
	keyName string
	started time.Time
	proxies []netip.Prefix

	tokenMu sync.Mutex
	token   string
}

// Option configures a Handler
type Option func(*Handler)

// WithTrustedProxies honors X-Forwarded-For and X-Real-IP from peers in
// proxies. Entries are addresses or CIDR prefixes; invalid ones are skipped.
func WithTrustedProxies(proxies []string) Option {
	return func(h *Handler) {
		for _, p := range proxies {
			prefix, err := parsePrefix(p)
			if err != nil {
				h.logger.Warn("ignoring trusted proxy", zap.String("proxy", p), zap.Error(err))
				continue
			}
			h.proxies = append(h.proxies, prefix)
		}
	}
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		return netip.ParsePrefix(s)
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// New creates a new API handler. stats is used with a key from the keyring
// named keyName.
func New(kr Keyring, stats *clash.Client, authSvc *auth.Service, auditSvc *audit.Service, keyName string, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		keyring: kr,
		stats:   stats,
		auth:    authSvc,
		audit:   auditSvc,
		logger:  logger.Named("api"),
		keyName: keyName,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Response helpers

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}

// statusForKind maps library error kinds to HTTP statuses
func statusForKind(kind clash.ErrorKind) int {
	switch kind {
	case clash.KindNotReady, clash.KindMaintenance:
		return http.StatusServiceUnavailable
	case clash.KindInvalidCredentials:
		return http.StatusUnauthorized
	case clash.KindBadParameters, clash.KindInvalidParameters, clash.KindInvalidTag:
		return http.StatusBadRequest
	case clash.KindAccessDenied:
		return http.StatusForbidden
	case clash.KindNotFound:
		return http.StatusNotFound
	case clash.KindThrottled:
		return http.StatusTooManyRequests
	case clash.KindFailedGetIP, clash.KindRequestFailed, clash.KindBadResponse:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondFailure writes err using the library error kind when there is one
func (h *Handler) respondFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, keyring.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, "KEYRING_CLOSED", "Key daemon is shutting down")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "TIMEOUT", "Request did not complete in time")
		return
	}

	var apiErr *clash.APIError
	if errors.As(err, &apiErr) {
		status := statusForKind(apiErr.Kind)
		if status >= http.StatusInternalServerError {
			h.logger.Warn("upstream failure", zap.String("kind", apiErr.Kind.String()), zap.Int("status", apiErr.StatusCode))
		}
		respondError(w, status, apiErr.Kind.String(), apiErr.Error())
		return
	}

	h.logger.Error("unexpected failure", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}

// clientIP returns the peer address, or the forwarded client address when
// the peer is a trusted proxy
func (h *Handler) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !h.trustedProxy(host) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
		return xrip
	}
	return host
}

func (h *Handler) trustedProxy(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range h.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

type keyRequest struct {
	Name string `json:"name"`
}

func decodeKeyRequest(r *http.Request) (string, bool) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	return name, name != ""
}

// === Health & Info ===

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	session, err := h.keyring.Session(ctx)
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "healthy",
		"session_state": session.State,
		"keys":          session.Keys,
		"uptime":        time.Since(h.started).Round(time.Second).String(),
	})
}

// ServerInfo handles GET /
func (h *Handler) ServerInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "clashapi",
		"version":     Version,
		"description": "Developer key daemon for the Clash of Clans API",
	})
}

// === Session ===

// GetSession handles GET /api/v1/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.keyring.Session(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// ReopenSession handles POST /api/v1/session/reopen
func (h *Handler) ReopenSession(w http.ResponseWriter, r *http.Request) {
	if err := h.keyring.Reopen(r.Context()); err != nil {
		h.respondFailure(w, err)
		return
	}
	h.GetSession(w, r)
}

// === Keys ===

// ListKeys handles GET /api/v1/keys
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keyring.Keys(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, keys)
}

// RefreshKeys handles POST /api/v1/keys/refresh
func (h *Handler) RefreshKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keyring.Refresh(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, keys)
}

// CreateKey handles POST /api/v1/keys
func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeKeyRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "A key name is required")
		return
	}

	key, err := h.keyring.Create(r.Context(), name)
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, key)
}

// EnsureKey handles POST /api/v1/keys/ensure
func (h *Handler) EnsureKey(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeKeyRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "A key name is required")
		return
	}

	key, created, err := h.keyring.Ensure(r.Context(), name)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, map[string]interface{}{
		"key":     key,
		"created": created,
	})
}

// RevokeKey handles DELETE /api/v1/keys/{id}
func (h *Handler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.keyring.Revoke(r.Context(), id); err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"revoked": id})
}

// === Audit ===

// GetAuditEvents handles GET /api/v1/audit
func (h *Handler) GetAuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &audit.EventFilter{
		Type:  q.Get("type"),
		KeyID: q.Get("key_id"),
		Limit: 50,
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "since must be an RFC 3339 time")
			return
		}
		filter.From = t
	}

	events, err := h.audit.Events(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to read audit events", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "AUDIT_ERROR", "Failed to read audit events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// === Statistics ===

// statsToken returns the cached key secret, asking the keyring for one on
// first use
func (h *Handler) statsToken(ctx context.Context) (string, error) {
	h.tokenMu.Lock()
	defer h.tokenMu.Unlock()
	if h.token != "" {
		return h.token, nil
	}
	token, err := h.keyring.Token(ctx, h.keyName)
	if err != nil {
		return "", err
	}
	h.token = token
	return token, nil
}

// dropStatsToken forgets token unless another request already replaced it
func (h *Handler) dropStatsToken(token string) {
	h.tokenMu.Lock()
	defer h.tokenMu.Unlock()
	if h.token == token {
		h.token = ""
	}
}

// withStats runs call with the daemon's key. A rejected key is dropped and
// the call retried once with a key from a reloaded list.
func (h *Handler) withStats(ctx context.Context, call func(*clash.Client) error) error {
	token, err := h.statsToken(ctx)
	if err != nil {
		return err
	}
	err = call(h.stats.WithToken(token))
	if clash.KindOf(err) != clash.KindAccessDenied {
		return err
	}

	h.logger.Info("statistics API rejected the key, ensuring a new one", zap.String("name", h.keyName))
	h.dropStatsToken(token)
	if _, rerr := h.keyring.Refresh(ctx); rerr != nil {
		h.logger.Warn("key reload failed", zap.Error(rerr))
		return err
	}
	token, rerr := h.statsToken(ctx)
	if rerr != nil {
		return rerr
	}
	return call(h.stats.WithToken(token))
}

// GetClan handles GET /api/v1/stats/clans/{tag}
func (h *Handler) GetClan(w http.ResponseWriter, r *http.Request) {
	var clan *clash.Clan
	err := h.withStats(r.Context(), func(c *clash.Client) error {
		var err error
		clan, err = c.Clan(r.Context(), mux.Vars(r)["tag"])
		return err
	})
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, clan)
}

// GetPlayer handles GET /api/v1/stats/players/{tag}
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	var player *clash.Player
	err := h.withStats(r.Context(), func(c *clash.Client) error {
		var err error
		player, err = c.Player(r.Context(), mux.Vars(r)["tag"])
		return err
	})
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, player)
}
