package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"deadliner/internal/models"
	"deadliner/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ScheduleNotificationRequest is the body of POST /schedule/notification
type ScheduleNotificationRequest struct {
	PlannableID    int64     `json:"plannable_id" binding:"required"`
	CourseName     string    `json:"course_name" binding:"required"`
	AssignmentName string    `json:"assignment_name" binding:"required"`
	Deadline       time.Time `json:"deadline" binding:"required"`
	Grade          float64   `json:"grade"`
}

// ScheduleNotification schedules a reminder email firing one hour before
// the assignment deadline
func (h *Handler) ScheduleNotification(c *gin.Context) {
	var req ScheduleNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, http.StatusBadRequest, fmt.Sprintf("Invalid input: %s", err.Error()), err)
		return
	}

	username := c.GetString("username")

	var account models.Account
	if err := h.db.Where("username = ?", username).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			handleError(c, http.StatusNotFound, "Account not found", err)
			return
		}
		handleError(c, http.StatusBadRequest, "Failed to load account", err)
		return
	}

	jobID, err := h.reminders.Schedule(account, services.ScheduleRequest{
		PlannableID:    req.PlannableID,
		CourseName:     req.CourseName,
		AssignmentName: req.AssignmentName,
		Deadline:       req.Deadline,
		Grade:          req.Grade,
	})
	if err != nil {
		if errors.Is(err, services.ErrDuplicateReminder) {
			handleError(c, http.StatusBadRequest, "A reminder is already scheduled for this assignment", err)
			return
		}
		handleError(c, http.StatusBadRequest, "Unable to schedule reminder", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task_id": jobID})
}

// ActiveReminders lists the caller's pending reminders
func (h *Handler) ActiveReminders(c *gin.Context) {
	username := c.GetString("username")

	reminders, err := h.reminders.ListPending(username)
	if err != nil {
		handleError(c, http.StatusBadRequest, "Failed to load reminders", err)
		return
	}

	c.JSON(http.StatusOK, reminders)
}

// DeleteReminder cancels a scheduled reminder by its task id
func (h *Handler) DeleteReminder(c *gin.Context) {
	taskID := c.Query("task_id")
	if taskID == "" {
		handleError(c, http.StatusBadRequest, "task_id query parameter is required",
			errors.New("missing task_id"))
		return
	}

	username := c.GetString("username")

	if err := h.reminders.Cancel(username, taskID); err != nil {
		var notCancelable *services.NotCancelableError
		switch {
		case errors.Is(err, services.ErrReminderNotFound):
			handleError(c, http.StatusNotFound, "Reminder not found or not authorized", err)
		case errors.As(err, &notCancelable):
			handleError(c, http.StatusBadRequest,
				fmt.Sprintf("Job is no longer cancelable, state: %s", notCancelable.State), err)
		default:
			handleError(c, http.StatusBadRequest, "Failed to delete reminder", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}
