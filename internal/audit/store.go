package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
)

// SQLStore keeps events in the audit_events table
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store on a migrated database
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Insert(ctx context.Context, event *Event) error {
	var data interface{}
	if len(event.Data) > 0 {
		data = string(event.Data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, severity, timestamp, developer_id, key_id, description, data, ip_address, component)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, event.ID, event.Type, event.Severity, event.Timestamp, event.DeveloperID, event.KeyID,
		event.Description, data, event.IPAddress, event.Component)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (s *SQLStore) Events(ctx context.Context, filter *EventFilter) ([]*Event, error) {
	query := `SELECT id, type, severity, timestamp, developer_id, key_id, description, data, ip_address, component
			  FROM audit_events WHERE 1=1`
	args := []interface{}{}
	paramIdx := 1

	if filter != nil {
		if filter.DeveloperID != "" {
			query += fmt.Sprintf(" AND developer_id = $%d", paramIdx)
			args = append(args, filter.DeveloperID)
			paramIdx++
		}
		if filter.KeyID != "" {
			query += fmt.Sprintf(" AND key_id = $%d", paramIdx)
			args = append(args, filter.KeyID)
			paramIdx++
		}
		if filter.Type != "" {
			query += fmt.Sprintf(" AND type = $%d", paramIdx)
			args = append(args, filter.Type)
			paramIdx++
		}
		if !filter.From.IsZero() {
			query += fmt.Sprintf(" AND timestamp >= $%d", paramIdx)
			args = append(args, filter.From)
			paramIdx++
		}
		if !filter.To.IsZero() {
			query += fmt.Sprintf(" AND timestamp <= $%d", paramIdx)
			args = append(args, filter.To)
			paramIdx++
		}
	}

	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", paramIdx)
	args = append(args, filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var event Event
		var developerID, keyID, data, ip sql.NullString

		err := rows.Scan(&event.ID, &event.Type, &event.Severity, &event.Timestamp,
			&developerID, &keyID, &event.Description, &data, &ip, &event.Component)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		if developerID.Valid {
			event.DeveloperID = &developerID.String
		}
		if keyID.Valid {
			event.KeyID = &keyID.String
		}
		if data.Valid && data.String != "" {
			event.Data = json.RawMessage(data.String)
		}
		event.IPAddress = ip.String

		events = append(events, &event)
	}

	return events, rows.Err()
}

// MemoryStore keeps the most recent events in memory
type MemoryStore struct {
	mu       sync.RWMutex
	events   []*Event
	capacity int
}

// NewMemoryStore creates a store holding at most capacity events. A
// non-positive capacity means unbounded.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{capacity: capacity}
}

func (s *MemoryStore) Insert(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if s.capacity > 0 && len(s.events) > s.capacity {
		s.events = s.events[len(s.events)-s.capacity:]
	}
	return nil
}

func (s *MemoryStore) Events(ctx context.Context, filter *EventFilter) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.limit()
	var events []*Event
	for i := len(s.events) - 1; i >= 0 && len(events) < limit; i-- {
		if filter.matches(s.events[i]) {
			events = append(events, s.events[i])
		}
	}
	return events, nil
}

func (f *EventFilter) matches(e *Event) bool {
	if f == nil {
		return true
	}
	if f.DeveloperID != "" && (e.DeveloperID == nil || *e.DeveloperID != f.DeveloperID) {
		return false
	}
	if f.KeyID != "" && (e.KeyID == nil || *e.KeyID != f.KeyID) {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}
