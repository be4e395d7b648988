package main

import (
	"log"
	"time"

	"deadliner/internal/database"
	"deadliner/internal/jobs"
	"deadliner/internal/services"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// purgeGrace is how long after the deadline a leftover pending row may
// survive before the sweep removes it
const purgeGrace = 24 * time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	if err := database.InitDB(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	db := database.GetDB()

	runner, err := jobs.NewMachineryRunner()
	if err != nil {
		log.Fatal("Failed to initialize job runner:", err)
	}

	emailService := services.NewEmailService()
	reminderService := services.NewReminderService(db, runner)

	if err := runner.Server().RegisterTask(jobs.TaskSendReminder,
		jobs.SendReminderHandler(db, emailService)); err != nil {
		log.Fatal("Failed to register task:", err)
	}

	// Hourly sweep for rows whose job the broker lost
	c := cron.New()
	if _, err := c.AddFunc("@hourly", func() {
		purged, err := reminderService.PurgeExpired(purgeGrace)
		if err != nil {
			log.Printf("Warning: reminder purge failed: %v", err)
			return
		}
		if purged > 0 {
			log.Printf("Purged %d expired reminder row(s)", purged)
		}
	}); err != nil {
		log.Fatal("Failed to schedule purge job:", err)
	}
	c.Start()
	defer c.Stop()

	worker := runner.Server().NewWorker("reminder_worker_1", 10)
	log.Println("Reminder worker starting...")
	if err := worker.Launch(); err != nil {
		log.Fatal("Worker exited:", err)
	}
}
