package repository

import (
	"context"
	"errors"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"gorm.io/gorm"
)

// ConsultationRepository owns the immutable consultation records. There is
// no update operation: a record is written once when a call ends.
type ConsultationRepository interface {
	Create(ctx context.Context, record *domain.ConsultationRecord) error
	GetByAppointmentID(ctx context.Context, appointmentID string) (domain.ConsultationRecord, error)
	FetchByUser(ctx context.Context, userID string, role domain.Role) ([]domain.ConsultationRecord, error)
}

type consultationRepository struct {
	db *gorm.DB
}

func NewConsultationRepository(db *gorm.DB) ConsultationRepository {
	return &consultationRepository{
		db: db,
	}
}

func (r *consultationRepository) Create(ctx context.Context, record *domain.ConsultationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *consultationRepository) GetByAppointmentID(ctx context.Context, appointmentID string) (domain.ConsultationRecord, error) {
	var record domain.ConsultationRecord
	err := r.db.WithContext(ctx).Where("appointment_id = ?", appointmentID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ConsultationRecord{}, domain.ErrNotFound
		}
		return domain.ConsultationRecord{}, err
	}
	return record, nil
}

func (r *consultationRepository) FetchByUser(ctx context.Context, userID string, role domain.Role) ([]domain.ConsultationRecord, error) {
	column := "patient_id"
	if role == domain.RoleDoctor {
		column = "doctor_id"
	}
	var records []domain.ConsultationRecord
	err := r.db.WithContext(ctx).
		Where(column+" = ?", userID).
		Order("call_end_time DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
