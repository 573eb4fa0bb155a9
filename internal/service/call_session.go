package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"github.com/telemedconnect/telemed-session-service/internal/repository"
)

// Toggle names accepted by ToggleSetting. These are the wire names the
// dashboard uses.
const (
	SettingMuted         = "isMuted"
	SettingVideoOff      = "isVideoOff"
	SettingSpeakerOff    = "isSpeakerOff"
	SettingRecording     = "isRecording"
	SettingScreenSharing = "isScreenSharing"
)

// callSession is the transient state of one live call. It exists only in
// memory while the call is active: a process restart drops in-flight calls,
// which is an accepted limitation of the deployment.
type callSession struct {
	appointmentID string
	patientID     string
	doctorID      string
	startedAt     time.Time
	settings      domain.CallSettings
	notes         []string
	subscribers   map[chan domain.CallTick]struct{}
	stop          chan struct{}
}

func (s *callSession) involves(identity domain.Identity) bool {
	switch identity.Role {
	case domain.RolePatient:
		return s.patientID == identity.UserID
	case domain.RoleDoctor:
		return s.doctorID == identity.UserID
	}
	return false
}

// CallSessionManager drives active calls: one session per appointment,
// idle -> active -> ended. The confirmed-only precondition on StartCall plus
// the appointment's own status transition act as the mutual-exclusion
// mechanism across processes.
type CallSessionManager struct {
	appointmentRepo repository.AppointmentRepository
	appointments    AppointmentService
	recorder        ConsultationRecorder
	publisher       EventPublisher
	Logger          *logrus.Logger

	tickInterval time.Duration
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*callSession
}

func NewCallSessionManager(appointmentRepo repository.AppointmentRepository, appointments AppointmentService, recorder ConsultationRecorder, publisher EventPublisher, logger *logrus.Logger) *CallSessionManager {
	return &CallSessionManager{
		appointmentRepo: appointmentRepo,
		appointments:    appointments,
		recorder:        recorder,
		publisher:       publisher,
		Logger:          logger,
		tickInterval:    time.Second,
		now:             time.Now,
		sessions:        make(map[string]*callSession),
	}
}

// StartCall opens a live session for a confirmed video or chat appointment
// and moves the appointment to in-progress.
func (m *CallSessionManager) StartCall(ctx context.Context, identity domain.Identity, appointmentID string) error {
	m.Logger.WithFields(logrus.Fields{
		"Function":      "StartCall",
		"AppointmentId": appointmentID,
		"UserId":        identity.UserID,
	}).Info("Starting call session")

	appointment, err := m.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if !appointment.Involves(identity.UserID, identity.Role) {
		return domain.ErrUnauthorized
	}
	if appointment.Status != domain.StatusConfirmed {
		return fmt.Errorf("%w: appointment is %s, not confirmed", domain.ErrPrecondition, appointment.Status)
	}
	if appointment.Type != domain.TypeVideo && appointment.Type != domain.TypeChat {
		return fmt.Errorf("%w: %s appointments have no live session", domain.ErrPrecondition, appointment.Type)
	}

	m.mu.Lock()
	if _, active := m.sessions[appointmentID]; active {
		m.mu.Unlock()
		return fmt.Errorf("%w: call already active for this appointment", domain.ErrPrecondition)
	}
	startedAt := m.now()
	session := &callSession{
		appointmentID: appointmentID,
		patientID:     appointment.PatientID,
		doctorID:      appointment.DoctorID,
		startedAt:     startedAt,
		subscribers:   make(map[chan domain.CallTick]struct{}),
		stop:          make(chan struct{}),
	}
	m.sessions[appointmentID] = session
	m.mu.Unlock()

	status := domain.StatusInProgress
	_, err = m.appointments.UpdateAppointment(ctx, appointmentID, domain.AppointmentPatch{
		Status:        &status,
		CallStartTime: &startedAt,
	})
	if err != nil {
		m.discard(appointmentID)
		var transition *domain.InvalidTransitionError
		if errors.As(err, &transition) {
			// Lost the race against another caller.
			return fmt.Errorf("%w: %v", domain.ErrPrecondition, err)
		}
		return err
	}

	go m.tickLoop(session)

	if m.publisher != nil {
		if err := m.publisher.PublishAppointmentEvent(ctx, domain.AppointmentEvent{
			Event:           domain.EventCallStarted,
			AppointmentID:   appointment.ID,
			PatientID:       appointment.PatientID,
			DoctorID:        appointment.DoctorID,
			AppointmentDate: appointment.AppointmentDate.Format(time.RFC3339),
			Type:            appointment.Type,
		}); err != nil {
			m.Logger.WithError(err).Warn("Failed to publish call started event")
		}
	}

	m.Logger.WithFields(logrus.Fields{
		"Function":      "StartCall",
		"AppointmentId": appointmentID,
	}).Info("Call session started")

	return nil
}

// Elapsed returns the seconds since the call started. The computation only
// reads the wall clock and the immutable start timestamp, so it is
// idempotent and safe to repeat.
func (m *CallSessionManager) Elapsed(appointmentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[appointmentID]
	if !ok {
		return 0, fmt.Errorf("%w: no active call for this appointment", domain.ErrPrecondition)
	}
	return m.elapsedLocked(session), nil
}

func (m *CallSessionManager) elapsedLocked(session *callSession) int {
	return int(m.now().Sub(session.startedAt) / time.Second)
}

// ToggleSetting flips exactly one of the five control toggles and returns
// the new value. The toggles are independent: flipping one never touches
// another.
func (m *CallSessionManager) ToggleSetting(identity domain.Identity, appointmentID, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[appointmentID]
	if !ok {
		return false, fmt.Errorf("%w: no active call for this appointment", domain.ErrPrecondition)
	}
	if !session.involves(identity) {
		return false, domain.ErrUnauthorized
	}

	var value *bool
	switch name {
	case SettingMuted:
		value = &session.settings.IsMuted
	case SettingVideoOff:
		value = &session.settings.IsVideoOff
	case SettingSpeakerOff:
		value = &session.settings.IsSpeakerOff
	case SettingRecording:
		value = &session.settings.IsRecording
	case SettingScreenSharing:
		value = &session.settings.IsScreenSharing
	default:
		return false, fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidArgument, name)
	}
	*value = !*value
	return *value, nil
}

// AppendNotes accumulates free-text notes on the live session. They travel
// to the consultation record when the call ends.
func (m *CallSessionManager) AppendNotes(identity domain.Identity, appointmentID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[appointmentID]
	if !ok {
		return fmt.Errorf("%w: no active call for this appointment", domain.ErrPrecondition)
	}
	if !session.involves(identity) {
		return domain.ErrUnauthorized
	}
	if text == "" {
		return nil
	}
	session.notes = append(session.notes, text)
	return nil
}

// Subscribe registers a listener for the session's one-second supervision
// ticks. The returned cancel function must be called when done.
func (m *CallSessionManager) Subscribe(identity domain.Identity, appointmentID string) (<-chan domain.CallTick, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[appointmentID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: no active call for this appointment", domain.ErrPrecondition)
	}
	if !session.involves(identity) {
		return nil, nil, domain.ErrUnauthorized
	}
	ch := make(chan domain.CallTick, 4)
	session.subscribers[ch] = struct{}{}
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(session.subscribers, ch)
	}
	return ch, cancel, nil
}

// EndCall freezes the session, hands its terminal snapshot to the recorder,
// and discards it. The session is torn down before finalize runs, so the
// manager is never left active after an end attempt; a failed finalize is
// retried by ending via the recorder's idempotent replay.
func (m *CallSessionManager) EndCall(ctx context.Context, identity domain.Identity, appointmentID string) (domain.ConsultationRecord, error) {
	appointment, err := m.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return domain.ConsultationRecord{}, err
	}
	if !appointment.Involves(identity.UserID, identity.Role) {
		return domain.ConsultationRecord{}, domain.ErrUnauthorized
	}

	m.mu.Lock()
	session, ok := m.sessions[appointmentID]
	if !ok {
		m.mu.Unlock()
		if appointment.Status == domain.StatusInProgress {
			// A previous end attempt may have failed half-way. Replay
			// completes the missing appointment write without touching
			// the already-written consultation record.
			return m.recorder.Replay(ctx, appointmentID)
		}
		return domain.ConsultationRecord{}, fmt.Errorf("%w: no active call for this appointment", domain.ErrPrecondition)
	}
	if domain.TerminalStatus(appointment.Status) {
		// The appointment was cancelled while the call was live. The
		// session is dropped without a record; cancelled is terminal.
		close(session.stop)
		delete(m.sessions, appointmentID)
		m.mu.Unlock()
		return domain.ConsultationRecord{}, fmt.Errorf("%w: appointment is %s, call discarded", domain.ErrPrecondition, appointment.Status)
	}

	endedAt := m.now()
	snapshot := domain.CallSessionSnapshot{
		AppointmentID: appointmentID,
		Duration:      m.elapsedLocked(session),
		Notes:         strings.Join(session.notes, "\n"),
		Settings:      session.settings,
		EndedAt:       endedAt,
	}
	close(session.stop)
	delete(m.sessions, appointmentID)
	m.mu.Unlock()

	m.Logger.WithFields(logrus.Fields{
		"Function":      "EndCall",
		"AppointmentId": appointmentID,
		"Duration":      snapshot.Duration,
	}).Info("Call session ended, finalizing consultation")

	return m.recorder.Finalize(ctx, snapshot)
}

func (m *CallSessionManager) discard(appointmentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[appointmentID]; ok {
		close(session.stop)
		delete(m.sessions, appointmentID)
	}
}

// tickLoop broadcasts the derived elapsed duration to subscribers once per
// interval. It only reads session state and never blocks on a slow listener.
func (m *CallSessionManager) tickLoop(session *callSession) {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-session.stop:
			m.mu.Lock()
			for ch := range session.subscribers {
				close(ch)
				delete(session.subscribers, ch)
			}
			m.mu.Unlock()
			return
		case <-ticker.C:
			m.mu.Lock()
			tick := domain.CallTick{
				AppointmentID: session.appointmentID,
				Elapsed:       m.elapsedLocked(session),
				Settings:      session.settings,
			}
			for ch := range session.subscribers {
				select {
				case ch <- tick:
				default:
				}
			}
			m.mu.Unlock()
		}
	}
}
