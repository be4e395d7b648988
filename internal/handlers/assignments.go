package handlers

import (
	"errors"
	"net/http"

	"deadliner/internal/canvas"
	"deadliner/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UpcomingAssignments fetches the caller's upcoming Canvas assignments and
// drops any that already have a pending reminder
func (h *Handler) UpcomingAssignments(c *gin.Context) {
	username := c.GetString("username")

	var token models.CanvasToken
	if err := h.db.Where("username = ?", username).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			handleError(c, http.StatusBadRequest, "No Canvas token saved", err)
			return
		}
		handleError(c, http.StatusBadRequest, "Failed to load Canvas token", err)
		return
	}

	assignments, err := h.canvas.UpcomingAssignments(c.Request.Context(), token.Token)
	if err != nil {
		var upstream *canvas.UpstreamError
		switch {
		case errors.Is(err, canvas.ErrInvalidToken):
			handleError(c, http.StatusUnauthorized, "Invalid token", err)
		case errors.As(err, &upstream):
			handleError(c, upstream.StatusCode, upstream.Message, err)
		default:
			handleError(c, http.StatusBadGateway, "Failed to fetch assignments", err)
		}
		return
	}

	pending, err := h.reminders.PendingPlannableIDs(username)
	if err != nil {
		handleError(c, http.StatusBadRequest, "Failed to load reminders", err)
		return
	}

	c.JSON(http.StatusOK, canvas.FilterPending(assignments, pending))
}
