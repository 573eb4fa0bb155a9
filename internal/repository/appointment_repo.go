package repository

import (
	"context"
	"errors"
	"time"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"gorm.io/gorm"
)

// AppointmentRepository is the abstract collection boundary for appointment
// records. The core assumes read-after-write visibility from the backing
// store.
type AppointmentRepository interface {
	Create(ctx context.Context, appointment *domain.Appointment) error
	GetByID(ctx context.Context, id string) (domain.Appointment, error)
	FetchByUser(ctx context.Context, userID string, role domain.Role) ([]domain.Appointment, error)
	FetchForDay(ctx context.Context, day time.Time) ([]domain.Appointment, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
}

type appointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) AppointmentRepository {
	return &appointmentRepository{
		db: db,
	}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *domain.Appointment) error {
	return r.db.WithContext(ctx).Create(appointment).Error
}

func (r *appointmentRepository) GetByID(ctx context.Context, id string) (domain.Appointment, error) {
	var appointment domain.Appointment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Appointment{}, domain.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appointment, nil
}

// FetchByUser returns only appointments where the caller is a party under
// the given role, newest first.
func (r *appointmentRepository) FetchByUser(ctx context.Context, userID string, role domain.Role) ([]domain.Appointment, error) {
	column := "patient_id"
	if role == domain.RoleDoctor {
		column = "doctor_id"
	}
	var appointments []domain.Appointment
	err := r.db.WithContext(ctx).
		Where(column+" = ?", userID).
		Order("appointment_date DESC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// FetchForDay returns non-terminal appointments falling on the given day,
// used by the reminder job.
func (r *appointmentRepository) FetchForDay(ctx context.Context, day time.Time) ([]domain.Appointment, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var appointments []domain.Appointment
	err := r.db.WithContext(ctx).
		Where("appointment_date >= ? AND appointment_date < ?", start, end).
		Where("status IN ?", []string{domain.StatusScheduled, domain.StatusConfirmed}).
		Order("appointment_date ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *appointmentRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
