// Package audit records key lifecycle and portal session events
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types
const (
	EventLogin           = "login"
	EventLoginFailed     = "login_failed"
	EventLogout          = "logout"
	EventKeysRefreshed   = "keys_refreshed"
	EventKeyCreated      = "key_created"
	EventKeyCreateFailed = "key_create_failed"
	EventKeyRevoked      = "key_revoked"
	EventKeyRevokeFailed = "key_revoke_failed"
	EventKeyReused       = "key_reused"
	EventAdminAuthFailed = "admin_auth_failed"
	EventSystemError     = "system_error"
)

// Severity represents audit event severity
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Event is one significant event. Key secrets and passwords never appear in
// Data.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Severity    Severity        `json:"severity"`
	Timestamp   time.Time       `json:"timestamp"`
	DeveloperID *string         `json:"developer_id,omitempty"`
	KeyID       *string         `json:"key_id,omitempty"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data,omitempty"`
	IPAddress   string          `json:"ip_address,omitempty"`
	Component   string          `json:"component"`
}

// EventFilter defines criteria for filtering audit events
type EventFilter struct {
	DeveloperID string
	KeyID       string
	Type        string
	From        time.Time
	To          time.Time
	Limit       int
}

const defaultLimit = 100

func (f *EventFilter) limit() int {
	if f == nil || f.Limit <= 0 {
		return defaultLimit
	}
	return f.Limit
}

// Store persists events. Events returns newest first.
type Store interface {
	Insert(ctx context.Context, event *Event) error
	Events(ctx context.Context, filter *EventFilter) ([]*Event, error)
}

// Service provides audit logging and a live event feed
type Service struct {
	store     Store
	logger    *zap.Logger
	component string

	mu   sync.Mutex
	subs map[chan *Event]struct{}
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger used for store failures
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithDefaultComponent sets the component stamped on events that have none
func WithDefaultComponent(component string) Option {
	return func(s *Service) {
		s.component = component
	}
}

// New creates a new audit service
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		logger:    zap.NewNop(),
		component: "clashapi",
		subs:      make(map[chan *Event]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogEvent records a significant event and publishes it to subscribers
func (s *Service) LogEvent(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Component == "" {
		event.Component = s.component
	}

	if err := s.store.Insert(ctx, event); err != nil {
		s.logger.Error("failed to store audit event",
			zap.String("type", event.Type), zap.String("id", event.ID), zap.Error(err))
		return err
	}

	s.broadcast(event)
	return nil
}

// Log is a convenience method for logging events
func (s *Service) Log(ctx context.Context, eventType string, severity Severity, description string, data interface{}, opts ...EventOption) error {
	event := &Event{
		Type:        eventType,
		Severity:    severity,
		Description: description,
	}

	if data != nil {
		jsonData, err := json.Marshal(data)
		if err == nil {
			event.Data = jsonData
		}
	}

	for _, opt := range opts {
		opt(event)
	}

	return s.LogEvent(ctx, event)
}

// Events retrieves audit events with optional filtering
func (s *Service) Events(ctx context.Context, filter *EventFilter) ([]*Event, error) {
	return s.store.Events(ctx, filter)
}

// Subscribe returns a feed of new events and a function that ends the
// subscription. Slow subscribers miss events rather than block logging.
func (s *Service) Subscribe(buffer int) (<-chan *Event, func()) {
	ch := make(chan *Event, buffer)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Service) broadcast(event *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- event:
		default:
			s.logger.Warn("dropping audit event for slow subscriber", zap.String("id", event.ID))
		}
	}
}

// EventOption is a functional option for configuring audit events
type EventOption func(*Event)

// WithDeveloper sets the developer ID for the event
func WithDeveloper(developerID string) EventOption {
	return func(e *Event) {
		e.DeveloperID = &developerID
	}
}

// WithKey sets the API key ID for the event
func WithKey(keyID string) EventOption {
	return func(e *Event) {
		e.KeyID = &keyID
	}
}

// WithIP sets the IP address for the event
func WithIP(ip string) EventOption {
	return func(e *Event) {
		e.IPAddress = ip
	}
}

// WithComponent sets the component for the event
func WithComponent(component string) EventOption {
	return func(e *Event) {
		e.Component = component
	}
}
