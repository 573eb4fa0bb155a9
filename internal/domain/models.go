package domain

import (
	"time"
)

// Role determines query scoping and dashboard configuration, not schema.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

// Identity is the authenticated caller, populated by the auth middleware
// from the identity provider's token claims. Read-only to every component.
type Identity struct {
	UserID      string
	DisplayName string
	Role        Role
}

// Appointment status values are the wire contract: lower-kebab, case-sensitive.
const (
	StatusScheduled  = "scheduled"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Appointment type values.
const (
	TypeVideo = "video"
	TypeChat  = "chat"
	TypePhone = "phone"
)

// statusRank orders the forward path. Cancelled sits outside the path.
var statusRank = map[string]int{
	StatusScheduled:  0,
	StatusConfirmed:  1,
	StatusInProgress: 2,
	StatusCompleted:  3,
}

// TerminalStatus reports whether no further transition is allowed.
func TerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// CanTransition reports whether an appointment may move from one status to
// another: one step forward along scheduled → confirmed → in-progress →
// completed, or to cancelled from any non-terminal state.
func CanTransition(from, to string) bool {
	if TerminalStatus(from) {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

func ValidAppointmentType(t string) bool {
	return t == TypeVideo || t == TypeChat || t == TypePhone
}

type Appointment struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	PatientID       string     `gorm:"size:36;index" json:"patientId"`
	PatientName     string     `gorm:"size:120" json:"patientName"`
	DoctorID        string     `gorm:"size:36;index" json:"doctorId"`
	DoctorName      string     `gorm:"size:120" json:"doctorName"`
	AppointmentDate time.Time  `json:"appointmentDate"`
	Type            string     `gorm:"size:20" json:"type"`
	Reason          string     `gorm:"type:text" json:"reason"`
	Status          string     `gorm:"size:20;index" json:"status"`
	CallStartTime   *time.Time `json:"callStartTime,omitempty"`
	CallEndTime     *time.Time `json:"callEndTime,omitempty"`
	Duration        *int       `json:"duration,omitempty"` // seconds
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Involves reports whether the given user is a party to the appointment
// under the given role. This is the sole authorization boundary for reads.
func (a Appointment) Involves(userID string, role Role) bool {
	switch role {
	case RolePatient:
		return a.PatientID == userID
	case RoleDoctor:
		return a.DoctorID == userID
	}
	return false
}

// AppointmentPatch is the merge-patch accepted by the store: status plus
// timing fields only.
type AppointmentPatch struct {
	Status        *string    `json:"status,omitempty"`
	CallStartTime *time.Time `json:"callStartTime,omitempty"`
	CallEndTime   *time.Time `json:"callEndTime,omitempty"`
	Duration      *int       `json:"duration,omitempty"`
}

// ConsultationRecord is the immutable artifact produced when a call ends.
type ConsultationRecord struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	AppointmentID string    `gorm:"size:36;uniqueIndex" json:"appointmentId"`
	PatientID     string    `gorm:"size:36;index" json:"patientId"`
	PatientName   string    `gorm:"size:120" json:"patientName"`
	DoctorID      string    `gorm:"size:36;index" json:"doctorId"`
	DoctorName    string    `gorm:"size:120" json:"doctorName"`
	Type          string    `gorm:"size:20" json:"type"`
	Duration      int       `json:"duration"` // seconds
	Notes         string    `gorm:"type:text" json:"notes"`
	Status        string    `gorm:"size:20" json:"status"`
	CallEndTime   time.Time `json:"callEndTime"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ConsultationType maps an appointment type to the tag recorded on the
// consultation it produces.
func ConsultationType(appointmentType string) string {
	switch appointmentType {
	case TypeVideo:
		return "video_call"
	case TypePhone:
		return "phone_call"
	default:
		return appointmentType
	}
}

// CallSettings are the five independent control toggles of a live call.
type CallSettings struct {
	IsMuted         bool `json:"isMuted"`
	IsVideoOff      bool `json:"isVideoOff"`
	IsSpeakerOff    bool `json:"isSpeakerOff"`
	IsRecording     bool `json:"isRecording"`
	IsScreenSharing bool `json:"isScreenSharing"`
}

// CallSessionSnapshot is the terminal state of a live call, handed from the
// session manager to the consultation recorder when the call ends.
type CallSessionSnapshot struct {
	AppointmentID string       `json:"appointmentId"`
	Duration      int          `json:"duration"` // seconds
	Notes         string       `json:"notes"`
	Settings      CallSettings `json:"settings"`
	EndedAt       time.Time    `json:"endedAt"`
}

// CallTick is the periodic supervision frame streamed to subscribers while
// a call is active. It only carries derived state.
type CallTick struct {
	AppointmentID string       `json:"appointmentId"`
	Elapsed       int          `json:"elapsed"` // seconds
	Settings      CallSettings `json:"settings"`
}

// DashboardStats is derived and never persisted: recomputed from scratch on
// every request, scoped to one (userId, role).
type DashboardStats struct {
	TotalAppointments      int `json:"totalAppointments"`
	CompletedConsultations int `json:"completedConsultations"`
	UpcomingAppointments   int `json:"upcomingAppointments"`
	// ActivePatients is the distinct-counterpart count for doctors; zero
	// for patients.
	ActivePatients int `json:"activePatients,omitempty"`
	// Records is the consultation-record count for patients; zero for
	// doctors.
	Records int `json:"records,omitempty"`
}

// AppointmentEvent is the payload published to the lifecycle topic.
type AppointmentEvent struct {
	Event           string `json:"event"`
	AppointmentID   string `json:"appointmentId"`
	PatientID       string `json:"patientId"`
	DoctorID        string `json:"doctorId"`
	AppointmentDate string `json:"appointmentDate"`
	Type            string `json:"type"`
}

// Lifecycle event names.
const (
	EventBooked               = "appointment_booked"
	EventCancelled            = "appointment_cancelled"
	EventCallStarted          = "call_started"
	EventConsultationRecorded = "consultation_recorded"
	EventReminder             = "appointment_reminder"
)
