// Package portaltest runs an in-process developer portal and statistics API
// for tests. It speaks the wire format only and keeps its state in memory.
package portaltest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Path prefixes of the two hosts served by the fake
const (
	PortalPrefix = "/api"
	StatsPrefix  = "/v1"
)

const (
	sessionCookie  = "session"
	sessionSeconds = 3600
	signingSecret  = "portaltest-secret"
)

// Key is a developer key as stored by the fake portal
type Key struct {
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

type failure struct {
	status int
	body   string
}

type status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var statusOK = status{Code: 0, Message: "ok"}

// Server is a fake portal and statistics host
type Server struct {
	*httptest.Server

	Email       string
	Password    string
	DeveloperID string

	// CreateBareKey makes the create endpoint answer with the bare key object
	CreateBareKey bool
	// CacheControl is sent with every statistics response when set
	CacheControl string

	mu        sync.Mutex
	keys      []Key
	sessions  map[string]bool
	token     string
	calls     map[string]int
	failures  map[string]failure
	stalls    map[string]time.Duration
	documents map[string]json.RawMessage
	lastBody  map[string][]byte
}

// New starts a fake accepting the given login
func New(email, password string) *Server {
	s := &Server{
		Email:       email,
		Password:    password,
		DeveloperID: uuid.New().String(),
		sessions:    make(map[string]bool),
		calls:       make(map[string]int),
		failures:    make(map[string]failure),
		stalls:      make(map[string]time.Duration),
		documents:   make(map[string]json.RawMessage),
		lastBody:    make(map[string][]byte),
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()

	portal := r.PathPrefix(PortalPrefix).Subrouter()
	portal.Use(s.record(PortalPrefix))
	portal.HandleFunc("/login", s.login).Methods("POST")

	session := portal.PathPrefix("").Subrouter()
	session.Use(s.requireSession)
	session.HandleFunc("/logout", s.logout).Methods("POST")
	session.HandleFunc("/apikey/list", s.listKeys).Methods("POST")
	session.HandleFunc("/apikey/create", s.createKey).Methods("POST")
	session.HandleFunc("/apikey/revoke", s.revokeKey).Methods("POST")

	stats := r.PathPrefix(StatsPrefix).Subrouter()
	stats.Use(s.record(StatsPrefix))
	stats.Use(s.requireBearer)
	stats.PathPrefix("/").HandlerFunc(s.document).Methods("GET")

	return r
}

// PortalURL is the base URL of the fake portal
func (s *Server) PortalURL() string {
	return s.URL + PortalPrefix
}

// StatsURL is the base URL of the fake statistics API
func (s *Server) StatsURL() string {
	return s.URL + StatsPrefix
}

// Token returns the temporary token of the last login
func (s *Server) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// AddKey stores a key as if it had been created earlier
func (s *Server) AddKey(k Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k.DeveloperID == "" {
		k.DeveloperID = s.DeveloperID
	}
	s.keys = append(s.keys, k)
}

// Keys returns the keys currently stored
func (s *Server) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Key, len(s.keys))
	copy(out, s.keys)
	return out
}

// RemoveKey deletes a key as if it had been revoked elsewhere
func (s *Server) RemoveKey(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, k := range s.keys {
		if k.ID == id {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			return
		}
	}
}

// ExpireSessions forgets every portal session
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]bool)
}

// Calls counts requests to a path relative to its host prefix, e.g.
// "/apikey/create" or "/clans/#2PP"
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// LastBody returns the last request body sent to a relative path
func (s *Server) LastBody(path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBody[path]
}

// FailWith makes every request to the relative path answer with status and body
func (s *Server) FailWith(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = failure{status: status, body: body}
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
	s.stalls = make(map[string]time.Duration)
}

// Stall holds back the response for the relative path by d after the handler
// has run, so the request takes effect even when the client gives up
func (s *Server) Stall(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalls[path] = d
}

// SetDocument serves body for GET requests to the relative statistics path,
// with tags written as "#TAG"
func (s *Server) SetDocument(path string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[path] = json.RawMessage(body)
}

func (s *Server) record(prefix string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rel := strings.TrimPrefix(r.URL.Path, prefix)

			var body []byte
			if r.Body != nil {
				body, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			s.mu.Lock()
			s.calls[rel]++
			s.lastBody[rel] = body
			f, failing := s.failures[rel]
			stall := s.stalls[rel]
			s.mu.Unlock()

			if failing {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(f.status)
				w.Write([]byte(f.body))
				return
			}

			next.ServeHTTP(w, r)
			if stall > 0 {
				time.Sleep(stall)
			}
		})
	}
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		s.mu.Lock()
		ok := err == nil && s.sessions[c.Value]
		s.mu.Unlock()
		if !ok {
			respondJSON(w, http.StatusForbidden, map[string]string{
				"error":       "forbidden",
				"description": "no session",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !s.validToken(token) {
			respondJSON(w, http.StatusForbidden, map[string]string{
				"reason":  "accessDenied",
				"message": "Invalid authorization",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) validToken(token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == s.token {
		return true
	}
	for _, k := range s.keys {
		if k.Key == token {
			return true
		}
	}
	return false
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"status": status{Code: 400, Message: "badRequest"},
		})
		return
	}

	if req.Email != s.Email || req.Password != s.Password {
		respondJSON(w, http.StatusForbidden, map[string]interface{}{
			"status": status{Code: 403, Message: "invalidCredentials"},
		})
		return
	}

	sessionID := uuid.New().String()
	token := s.sign(nil)

	s.mu.Lock()
	s.sessions[sessionID] = true
	s.token = token
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sessionID, Path: "/", HttpOnly: true})
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":                  statusOK,
		"sessionExpiresInSeconds": sessionSeconds,
		"auth": map[string]interface{}{
			"uid":   s.DeveloperID,
			"token": sessionID,
			"ua":    nil,
			"ip":    nil,
		},
		"developer": map[string]interface{}{
			"id":            s.DeveloperID,
			"name":          "Test Developer",
			"game":          "clashofclans",
			"email":         s.Email,
			"tier":          "developer/bronze",
			"allowedScopes": nil,
			"maxCidrs":      nil,
			"prevLoginTs":   "2024-01-01T00:00:00.000Z",
			"prevLoginIp":   "127.0.0.1",
			"prevLoginUa":   "Go-http-client/1.1",
		},
		"temporaryAPIToken": token,
		"swaggerUrl":        "https://developer.clashofclans.com/api-docs/v1/swagger.json",
	})
}

// sign issues a token in the shape the portal uses
func (s *Server) sign(cidrs []string) string {
	now := time.Now()
	limits := []map[string]interface{}{
		{"tier": "developer/bronze", "type": "throttling"},
	}
	if len(cidrs) > 0 {
		limits = append(limits, map[string]interface{}{"cidrs": cidrs, "type": "client"})
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"iss":    "supercell",
		"aud":    "supercell:gameapi",
		"jti":    uuid.New().String(),
		"iat":    now.Unix(),
		"exp":    now.Add(sessionSeconds * time.Second).Unix(),
		"sub":    "developer/" + s.DeveloperID,
		"scopes": []string{"clash"},
		"limits": limits,
	})
	signed, err := token.SignedString([]byte(signingSecret))
	if err != nil {
		panic(err)
	}
	return signed
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":                  statusOK,
		"sessionExpiresInSeconds": 0,
	})
}

func (s *Server) listKeys(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":                  statusOK,
		"sessionExpiresInSeconds": sessionSeconds,
		"keys":                    s.Keys(),
	})
}

func (s *Server) createKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		CidrRanges  []string `json:"cidrRanges"`
		Scopes      *string  `json:"scopes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"status": status{Code: 400, Message: "badRequest"},
		})
		return
	}

	scopes := []string{"clash"}
	if req.Scopes != nil {
		scopes = []string{*req.Scopes}
	}
	key := Key{
		ID:          uuid.New().String(),
		DeveloperID: s.DeveloperID,
		Tier:        "developer/silver",
		Name:        req.Name,
		Description: req.Description,
		Scopes:      scopes,
		CidrRanges:  req.CidrRanges,
		Key:         s.sign(req.CidrRanges),
	}
	s.AddKey(key)

	if s.CreateBareKey {
		respondJSON(w, http.StatusOK, key)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":                  statusOK,
		"sessionExpiresInSeconds": sessionSeconds,
		"key":                     key,
	})
}

func (s *Server) revokeKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"status": status{Code: 400, Message: "badRequest"},
		})
		return
	}

	s.mu.Lock()
	kept := s.keys[:0]
	for _, k := range s.keys {
		if k.ID != req.ID {
			kept = append(kept, k)
		}
	}
	s.keys = kept
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":                  statusOK,
		"sessionExpiresInSeconds": sessionSeconds,
	})
}

func (s *Server) document(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, StatsPrefix)

	s.mu.Lock()
	doc, ok := s.documents[rel]
	s.mu.Unlock()

	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{
			"reason":  "notFound",
			"message": "Not found with tag " + rel,
		})
		return
	}

	if s.CacheControl != "" {
		w.Header().Set("Cache-Control", s.CacheControl)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
