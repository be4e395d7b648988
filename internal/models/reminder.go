package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReminderStatus is the lifecycle state of a scheduled reminder
type ReminderStatus string

const (
	StatusPending ReminderStatus = "pending"
	// StatusFinished is declared for completeness; fired and cancelled
	// reminders are deleted rather than transitioned, so no row ever
	// carries this value.
	StatusFinished ReminderStatus = "finished"
)

// Reminder pairs a scheduled notification job with the assignment and user
// it concerns. JobID is the join key between the store and the job runner
// and the public handle a caller uses to cancel.
type Reminder struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	PlannableID    int64          `gorm:"not null;index" json:"plannable_id"`
	JobID          string         `gorm:"size:64;not null;uniqueIndex" json:"task_id"`
	Username       string         `gorm:"size:30;not null;index" json:"-"`
	CourseName     string         `gorm:"size:255;not null" json:"course_name"`
	AssignmentName string         `gorm:"size:255;not null" json:"assignment_name"`
	Deadline       time.Time      `gorm:"not null" json:"deadline"`
	Status         ReminderStatus `gorm:"size:10;not null;default:pending" json:"-"`
	Payload        datatypes.JSON `json:"-"` // snapshot of the payload handed to the job runner
	CreatedAt      time.Time      `gorm:"not null" json:"-"`
}

// BeforeCreate hook is called before creating a new reminder
func (r *Reminder) BeforeCreate(tx *gorm.DB) error {
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}

// TableName specifies the table name for the Reminder model
func (Reminder) TableName() string {
	return "reminder"
}
