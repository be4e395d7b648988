package handlers

import (
	"log"
	"net/http"

	"deadliner/internal/canvas"
	"deadliner/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler bundles the dependencies the endpoints need
type Handler struct {
	db        *gorm.DB
	reminders *services.ReminderService
	canvas    *canvas.Client
}

// New creates the handler set
func New(db *gorm.DB, reminders *services.ReminderService, canvasClient *canvas.Client) *Handler {
	return &Handler{
		db:        db,
		reminders: reminders,
		canvas:    canvasClient,
	}
}

// handleError provides a consistent way to handle and log errors
func handleError(c *gin.Context, status int, message string, err error) {
	log.Printf("Error: %v", err)
	c.JSON(status, gin.H{"error": message})
}

// HomeHandler handles requests to the root path "/"
func (h *Handler) HomeHandler(c *gin.Context) {
	c.String(http.StatusOK, "Deadline reminders for Canvas")
}

// HealthHandler is a simple health check endpoint
func (h *Handler) HealthHandler(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		c.String(http.StatusServiceUnavailable, "database unavailable")
		return
	}
	c.String(http.StatusOK, "OK")
}
