package di

import (
	"log"
	"net/http"

	"github.com/telemedconnect/telemed-session-service/internal/config"
	"github.com/telemedconnect/telemed-session-service/internal/handler"
	"github.com/telemedconnect/telemed-session-service/internal/logs"
	"github.com/telemedconnect/telemed-session-service/internal/middleware"
	"github.com/telemedconnect/telemed-session-service/internal/repository"
	"github.com/telemedconnect/telemed-session-service/internal/service"
	"github.com/telemedconnect/telemed-session-service/internal/utils"
)

// HTTPSetup initializes the database, services, and handlers, and returns
// the HTTP server ready to listen.
func HTTPSetup(cfg *config.Config) *http.Server {
	logger := logs.NewLogger()
	db := config.InitDatabase(cfg)

	appointmentRepo := repository.NewAppointmentRepository(db)
	consultationRepo := repository.NewConsultationRepository(db)

	producer := NewKafkaProducer(cfg.KafkaBroker, cfg.KafkaTopic)

	appointmentService := service.NewAppointmentService(appointmentRepo, producer, logger)
	recorder := service.NewConsultationRecorder(appointmentRepo, consultationRepo, producer, logger)
	sessionManager := service.NewCallSessionManager(appointmentRepo, appointmentService, recorder, producer, logger)
	analytics := service.NewAnalyticsService(appointmentRepo, consultationRepo, logger)

	authMW, err := middleware.NewAuthMiddleware(cfg.FirebaseCredentialsPath, logger)
	if err != nil {
		log.Fatalf("Failed to initialize auth middleware: %v", err)
	}

	appointmentHandler := handler.NewAppointmentHandler(appointmentService, logger)
	callHandler := handler.NewCallHandler(sessionManager, logger)
	dashboardHandler := handler.NewDashboardHandler(analytics, recorder, logger)

	go utils.StartCronScheduler(cfg.ReminderCronSpec, appointmentService)

	router := handler.NewRouter(authMW, appointmentHandler, callHandler, dashboardHandler)

	logger.Infof("HTTP server configured on port %s", cfg.ListenPort)
	return &http.Server{
		Addr:    ":" + cfg.ListenPort,
		Handler: router,
	}
}
