package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"deadliner/internal/jobs"
	"deadliner/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LeadTime is how long before the deadline the reminder fires
const LeadTime = time.Hour

// ErrDuplicateReminder means the caller already has a pending reminder for
// the assignment; the old one has to fire or be cancelled first
var ErrDuplicateReminder = errors.New("a pending reminder already exists for this assignment")

// ErrReminderNotFound means no reminder row matches the caller and job id.
// It deliberately does not distinguish "someone else's job" from "no such
// job" so existence of other users' jobs is not leaked.
var ErrReminderNotFound = errors.New("reminder not found")

// NotCancelableError means the job already reached a terminal state
type NotCancelableError struct {
	State string
}

func (e *NotCancelableError) Error() string {
	return fmt.Sprintf("job already %s", strings.ToLower(e.State))
}

// ScheduleRequest carries the assignment metadata captured at schedule time
type ScheduleRequest struct {
	PlannableID    int64
	CourseName     string
	AssignmentName string
	Deadline       time.Time
	Grade          float64
}

// ReminderService owns the reminder store rows and the job runner calls
type ReminderService struct {
	db     *gorm.DB
	runner jobs.Runner
}

func NewReminderService(db *gorm.DB, runner jobs.Runner) *ReminderService {
	return &ReminderService{db: db, runner: runner}
}

// Schedule submits a notification job firing LeadTime before the deadline
// and inserts the reminder row linking the job to the caller. If the insert
// fails after the job was accepted, the fresh job is revoked best-effort so
// no orphaned job survives without a matching row.
func (s *ReminderService) Schedule(account models.Account, req ScheduleRequest) (string, error) {
	payload := jobs.Payload{
		Email:          account.Email,
		PlannableID:    req.PlannableID,
		CourseName:     req.CourseName,
		AssignmentName: req.AssignmentName,
		Deadline:       req.Deadline,
		Grade:          req.Grade,
	}
	if err := payload.Validate(); err != nil {
		return "", err
	}

	// At most one pending reminder per (user, assignment); checked before
	// the submit so a rejected request never creates a job
	var existing int64
	err := s.db.Model(&models.Reminder{}).
		Where("username = ? AND plannable_id = ? AND status = ?",
			account.Username, req.PlannableID, models.StatusPending).
		Count(&existing).Error
	if err != nil {
		return "", fmt.Errorf("failed to check existing reminders: %w", err)
	}
	if existing > 0 {
		return "", ErrDuplicateReminder
	}

	fireAt := req.Deadline.Add(-LeadTime)
	jobID, err := s.runner.Submit(payload, fireAt)
	if err != nil {
		return "", fmt.Errorf("failed to submit notification job: %w", err)
	}

	snapshot, _ := json.Marshal(payload)
	reminder := models.Reminder{
		PlannableID:    req.PlannableID,
		JobID:          jobID,
		Username:       account.Username,
		CourseName:     req.CourseName,
		AssignmentName: req.AssignmentName,
		Deadline:       req.Deadline,
		Status:         models.StatusPending,
		Payload:        datatypes.JSON(snapshot),
	}
	if err := s.db.Create(&reminder).Error; err != nil {
		if rerr := s.runner.Revoke(jobID); rerr != nil {
			log.Printf("Warning: failed to revoke job %s after insert failure: %v", jobID, rerr)
		}
		return "", fmt.Errorf("failed to store reminder: %w", err)
	}

	return jobID, nil
}

// Cancel revokes a pending job and deletes its reminder row. The state
// check happens before the revoke, the revoke before the delete; a job that
// fires between those steps is tolerated, its own cleanup finds no rows.
func (s *ReminderService) Cancel(username, jobID string) error {
	state, err := s.runner.State(jobID)
	if err != nil {
		// State lookup failing must not block cancellation; treat as pending
		log.Printf("Warning: state lookup for job %s failed: %v", jobID, err)
	} else if jobs.IsTerminal(state) {
		return &NotCancelableError{State: state}
	}

	if err := s.runner.Revoke(jobID); err != nil {
		log.Printf("Warning: failed to revoke job %s: %v", jobID, err)
	}

	result := s.db.Where("username = ? AND job_id = ?", username, jobID).
		Delete(&models.Reminder{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete reminder: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrReminderNotFound
	}
	return nil
}

// ListPending returns the caller's pending reminders ordered by deadline
func (s *ReminderService) ListPending(username string) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := s.db.Where("username = ? AND status = ?", username, models.StatusPending).
		Order("deadline asc").
		Find(&reminders).Error
	if err != nil {
		return nil, err
	}
	return reminders, nil
}

// PendingPlannableIDs returns the set of assignment ids the caller already
// has a pending reminder for, used to de-duplicate the upcoming feed
func (s *ReminderService) PendingPlannableIDs(username string) (map[int64]struct{}, error) {
	var ids []int64
	err := s.db.Model(&models.Reminder{}).
		Where("username = ? AND status = ?", username, models.StatusPending).
		Pluck("plannable_id", &ids).Error
	if err != nil {
		return nil, err
	}

	pending := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}
	return pending, nil
}

// PurgeExpired deletes leftover pending rows whose deadline passed more
// than grace ago. Normally the fired job cleans its own row; this sweep
// keeps the store honest when the broker loses a job.
func (s *ReminderService) PurgeExpired(grace time.Duration) (int64, error) {
	cutoff := time.Now().Add(-grace)
	result := s.db.Where("status = ? AND deadline < ?", models.StatusPending, cutoff).
		Delete(&models.Reminder{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
