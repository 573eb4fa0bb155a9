package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"github.com/telemedconnect/telemed-session-service/internal/repository"
)

// Compile-time checks that the mocks satisfy the repository contracts.
var _ repository.AppointmentRepository = (*MockAppointmentRepository)(nil)
var _ repository.ConsultationRepository = (*MockConsultationRepository)(nil)
var _ EventPublisher = (*MockEventPublisher)(nil)

// MockAppointmentRepository is a func-field mock over an in-memory map. Any
// func left nil falls back to the map-backed behavior.
type MockAppointmentRepository struct {
	mu           sync.Mutex
	appointments map[string]domain.Appointment

	GetByIDFunc func(ctx context.Context, id string) (domain.Appointment, error)
	UpdateFunc  func(ctx context.Context, id string, fields map[string]interface{}) error

	CreateCallCount int32
	UpdateCallCount int32
}

func newMockAppointmentRepository(seed ...domain.Appointment) *MockAppointmentRepository {
	m := &MockAppointmentRepository{appointments: make(map[string]domain.Appointment)}
	for _, a := range seed {
		m.appointments[a.ID] = a
	}
	return m
}

func (m *MockAppointmentRepository) Create(ctx context.Context, appointment *domain.Appointment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appointments[appointment.ID] = *appointment
	return nil
}

func (m *MockAppointmentRepository) GetByID(ctx context.Context, id string) (domain.Appointment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	appointment, ok := m.appointments[id]
	if !ok {
		return domain.Appointment{}, domain.ErrNotFound
	}
	return appointment, nil
}

func (m *MockAppointmentRepository) FetchByUser(ctx context.Context, userID string, role domain.Role) ([]domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Appointment
	for _, appointment := range m.appointments {
		if appointment.Involves(userID, role) {
			out = append(out, appointment)
		}
	}
	return out, nil
}

func (m *MockAppointmentRepository) FetchForDay(ctx context.Context, day time.Time) ([]domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Appointment
	for _, appointment := range m.appointments {
		sameDay := appointment.AppointmentDate.Year() == day.Year() &&
			appointment.AppointmentDate.YearDay() == day.YearDay()
		if sameDay && (appointment.Status == domain.StatusScheduled || appointment.Status == domain.StatusConfirmed) {
			out = append(out, appointment)
		}
	}
	return out, nil
}

func (m *MockAppointmentRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, fields)
	}
	return m.applyUpdate(id, fields)
}

// applyUpdate is the map-backed update, kept separate so UpdateFunc
// overrides can delegate to it once they are done injecting failures.
func (m *MockAppointmentRepository) applyUpdate(id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	appointment, ok := m.appointments[id]
	if !ok {
		return domain.ErrNotFound
	}
	if status, ok := fields["status"].(string); ok {
		appointment.Status = status
	}
	if start, ok := fields["call_start_time"].(time.Time); ok {
		appointment.CallStartTime = &start
	}
	if end, ok := fields["call_end_time"].(time.Time); ok {
		appointment.CallEndTime = &end
	}
	if duration, ok := fields["duration"].(int); ok {
		appointment.Duration = &duration
	}
	m.appointments[id] = appointment
	return nil
}

func (m *MockAppointmentRepository) get(id string) domain.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appointments[id]
}

// MockConsultationRepository mirrors the same pattern for consultation
// records.
type MockConsultationRepository struct {
	mu      sync.Mutex
	records map[string]domain.ConsultationRecord // keyed by appointment id

	CreateFunc      func(ctx context.Context, record *domain.ConsultationRecord) error
	CreateCallCount int32
}

func newMockConsultationRepository(seed ...domain.ConsultationRecord) *MockConsultationRepository {
	m := &MockConsultationRepository{records: make(map[string]domain.ConsultationRecord)}
	for _, r := range seed {
		m.records[r.AppointmentID] = r
	}
	return m
}

func (m *MockConsultationRepository) Create(ctx context.Context, record *domain.ConsultationRecord) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[record.AppointmentID]; exists {
		return errors.New("duplicate consultation record for appointment")
	}
	m.records[record.AppointmentID] = *record
	return nil
}

func (m *MockConsultationRepository) GetByAppointmentID(ctx context.Context, appointmentID string) (domain.ConsultationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[appointmentID]
	if !ok {
		return domain.ConsultationRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (m *MockConsultationRepository) FetchByUser(ctx context.Context, userID string, role domain.Role) ([]domain.ConsultationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ConsultationRecord
	for _, record := range m.records {
		switch role {
		case domain.RolePatient:
			if record.PatientID == userID {
				out = append(out, record)
			}
		case domain.RoleDoctor:
			if record.DoctorID == userID {
				out = append(out, record)
			}
		}
	}
	return out, nil
}

func (m *MockConsultationRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// MockEventPublisher records published events.
type MockEventPublisher struct {
	mu     sync.Mutex
	events []domain.AppointmentEvent

	PublishFunc func(ctx context.Context, event domain.AppointmentEvent) error
}

func (m *MockEventPublisher) PublishAppointmentEvent(ctx context.Context, event domain.AppointmentEvent) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockEventPublisher) published() []domain.AppointmentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AppointmentEvent, len(m.events))
	copy(out, m.events)
	return out
}

// fakeClock is a manually advanced clock for duration assertions.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
