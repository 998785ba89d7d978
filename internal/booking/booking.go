// Package booking is the calendar collaborator boundary. The service here
// is an in-memory stand-in; a real scheduler integration would replace it
// behind the same interface.
package booking

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Booking is a scheduled or tentatively held appointment for a lead.
type Booking struct {
	LeadID    string    `json:"lead_id"`
	Note      string    `json:"note,omitempty"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

// Service is what the context builder and reply rules consult.
type Service interface {
	// ActiveBooking returns the lead's current booking, or nil.
	ActiveBooking(ctx context.Context, leadID string) (*Booking, error)
	// Hold records a tentative booking for a lead.
	Hold(ctx context.Context, leadID, note string) (Booking, error)
}

// MemoryService keeps bookings in process memory.
type MemoryService struct {
	mu       sync.RWMutex
	bookings map[string]Booking
}

// NewMemoryService creates the in-memory booking service.
func NewMemoryService() *MemoryService {
	return &MemoryService{bookings: make(map[string]Booking)}
}

// ActiveBooking returns the booking held for a lead, or nil.
func (s *MemoryService) ActiveBooking(_ context.Context, leadID string) (*Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.bookings[leadID]; ok {
		return &b, nil
	}
	return nil, nil
}

// Hold records a tentative booking. A later hold replaces an earlier one.
func (s *MemoryService) Hold(_ context.Context, leadID, note string) (Booking, error) {
	b := Booking{
		LeadID:    leadID,
		Note:      strings.TrimSpace(note),
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.bookings[leadID] = b
	s.mu.Unlock()
	return b, nil
}
