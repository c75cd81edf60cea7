// Package auth checks the management API admin token
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alexbotov/clashapi/internal/audit"
)

var (
	ErrNotConfigured = errors.New("admin token not configured")
	ErrInvalidToken  = errors.New("invalid admin token")
	ErrLockedOut     = errors.New("too many failed attempts")
)

// Config holds admin authentication settings
type Config struct {
	// TokenHash is the bcrypt hash of the admin token
	TokenHash         string
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	// MaxTrackedAddresses bounds the failure table
	MaxTrackedAddresses int
}

// DefaultConfig returns the lockout defaults for a token hash
func DefaultConfig(tokenHash string) Config {
	return Config{
		TokenHash:           tokenHash,
		MaxFailedAttempts:   5,
		LockoutDuration:     15 * time.Minute,
		MaxTrackedAddresses: 10000,
	}
}

// Service validates admin tokens and locks out addresses after repeated
// failures
type Service struct {
	config Config
	audit  *audit.Service
	now    func() time.Time

	mu       sync.Mutex
	failures map[string][]time.Time
}

// New creates a new auth service. auditSvc may be nil.
func New(cfg Config, auditSvc *audit.Service) *Service {
	return &Service{
		config:   cfg,
		audit:    auditSvc,
		now:      time.Now,
		failures: make(map[string][]time.Time),
	}
}

// HashToken returns the bcrypt hash to configure for token
func HashToken(token string) (string, error) {
	if token == "" {
		return "", errors.New("token is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}

// Authenticate checks token on behalf of the client at ip
func (s *Service) Authenticate(ctx context.Context, token, ip string) error {
	if s.config.TokenHash == "" {
		return ErrNotConfigured
	}
	if s.lockedOut(ip) {
		return ErrLockedOut
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.config.TokenHash), []byte(token)); err != nil {
		s.recordFailure(ctx, ip)
		return ErrInvalidToken
	}

	s.mu.Lock()
	delete(s.failures, ip)
	s.mu.Unlock()
	return nil
}

func (s *Service) lockedOut(ip string) bool {
	if s.config.MaxFailedAttempts <= 0 {
		return false
	}
	cutoff := s.now().Add(-s.config.LockoutDuration)

	s.mu.Lock()
	defer s.mu.Unlock()
	recent := s.failures[ip][:0]
	for _, t := range s.failures[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		delete(s.failures, ip)
		return false
	}
	s.failures[ip] = recent
	return len(recent) >= s.config.MaxFailedAttempts
}

func (s *Service) recordFailure(ctx context.Context, ip string) {
	s.mu.Lock()
	if _, tracked := s.failures[ip]; !tracked {
		s.makeRoom()
	}
	s.failures[ip] = append(s.failures[ip], s.now())
	attempts := len(s.failures[ip])
	s.mu.Unlock()

	if s.audit != nil {
		s.audit.Log(ctx, audit.EventAdminAuthFailed, audit.SeverityWarning,
			"admin token rejected",
			map[string]int{"attempts": attempts},
			audit.WithIP(ip), audit.WithComponent("api"))
	}
}

// makeRoom drops expired entries once the table is full, then the address
// whose last failure is oldest. Called with s.mu held.
func (s *Service) makeRoom() {
	limit := s.config.MaxTrackedAddresses
	if limit <= 0 || len(s.failures) < limit {
		return
	}

	cutoff := s.now().Add(-s.config.LockoutDuration)
	for ip, times := range s.failures {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(s.failures, ip)
		}
	}

	for len(s.failures) >= limit {
		var (
			oldestIP string
			oldest   time.Time
		)
		for ip, times := range s.failures {
			last := times[len(times)-1]
			if oldestIP == "" || last.Before(oldest) {
				oldestIP, oldest = ip, last
			}
		}
		delete(s.failures, oldestIP)
	}
}

