package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"github.com/telemedconnect/telemed-session-service/internal/repository"
)

// AnalyticsService derives the dashboard counters. Everything is recomputed
// from scratch on every call: volumes are small and correctness beats
// caching here.
type AnalyticsService interface {
	ComputeDashboardStats(ctx context.Context, userID string, role domain.Role) (domain.DashboardStats, error)
}

type analyticsService struct {
	appointmentRepo  repository.AppointmentRepository
	consultationRepo repository.ConsultationRepository
	Logger           *logrus.Logger
}

func NewAnalyticsService(appointmentRepo repository.AppointmentRepository, consultationRepo repository.ConsultationRepository, logger *logrus.Logger) AnalyticsService {
	return &analyticsService{
		appointmentRepo:  appointmentRepo,
		consultationRepo: consultationRepo,
		Logger:           logger,
	}
}

func (s *analyticsService) ComputeDashboardStats(ctx context.Context, userID string, role domain.Role) (domain.DashboardStats, error) {
	if userID == "" || !role.Valid() {
		return domain.DashboardStats{}, domain.ErrUnauthorized
	}

	appointments, err := s.appointmentRepo.FetchByUser(ctx, userID, role)
	if err != nil {
		s.Logger.WithFields(logrus.Fields{
			"Function": "ComputeDashboardStats",
			"UserId":   userID,
			"Error":    err,
		}).Error("Failed to fetch appointments for stats")
		return domain.DashboardStats{}, err
	}
	records, err := s.consultationRepo.FetchByUser(ctx, userID, role)
	if err != nil {
		s.Logger.WithFields(logrus.Fields{
			"Function": "ComputeDashboardStats",
			"UserId":   userID,
			"Error":    err,
		}).Error("Failed to fetch consultation records for stats")
		return domain.DashboardStats{}, err
	}

	stats := domain.DashboardStats{
		TotalAppointments: len(appointments),
	}
	counterparts := make(map[string]struct{})
	for _, appointment := range appointments {
		switch appointment.Status {
		case domain.StatusCompleted:
			stats.CompletedConsultations++
		case domain.StatusScheduled, domain.StatusConfirmed:
			stats.UpcomingAppointments++
		}
		if role == domain.RoleDoctor && appointment.PatientID != "" {
			counterparts[appointment.PatientID] = struct{}{}
		}
	}

	switch role {
	case domain.RoleDoctor:
		stats.ActivePatients = len(counterparts)
	case domain.RolePatient:
		stats.Records = len(records)
	}

	return stats, nil
}
