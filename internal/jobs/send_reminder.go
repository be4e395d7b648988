package jobs

import (
	"log"

	"deadliner/internal/models"

	"gorm.io/gorm"
)

// ReminderSender delivers the reminder email to the recipient
type ReminderSender interface {
	SendDeadlineReminder(email string, payload Payload) error
}

// SendReminderHandler returns the task function the worker registers under
// TaskSendReminder. It deletes the bookkeeping rows for the assignment and
// then sends the email. The delete is best-effort: a failed cleanup is
// logged but never blocks delivery, and a retried job finds zero rows and
// no-ops on the delete.
func SendReminderHandler(db *gorm.DB, sender ReminderSender) func(string) error {
	return func(raw string) error {
		payload, err := ParsePayload(raw)
		if err != nil {
			// Malformed payloads are dropped; retrying cannot fix them
			log.Printf("Error: dropping malformed reminder payload: %v", err)
			return nil
		}

		result := db.Where("plannable_id = ?", payload.PlannableID).Delete(&models.Reminder{})
		if result.Error != nil {
			log.Printf("Warning: failed to clear reminder rows for plannable %d: %v",
				payload.PlannableID, result.Error)
		} else {
			log.Printf("Cleared %d reminder row(s) for plannable %d",
				result.RowsAffected, payload.PlannableID)
		}

		if err := sender.SendDeadlineReminder(payload.Email, payload); err != nil {
			return err
		}

		log.Printf("Sent deadline reminder for %q to %s", payload.AssignmentName, payload.Email)
		return nil
	}
}
