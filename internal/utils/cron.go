package utils

import (
	"log"

	"github.com/robfig/cron/v3"

	"github.com/telemedconnect/telemed-session-service/internal/service"
)

// StartCronScheduler runs the daily reminder job on the given cron spec.
func StartCronScheduler(spec string, appointments service.AppointmentService) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, appointments.SendDailyReminders)
	if err != nil {
		log.Fatalf("Failed to schedule reminder job: %v", err)
	}
	scheduler.Start()

	select {}
}
