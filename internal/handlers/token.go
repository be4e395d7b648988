package handlers

import (
	"errors"
	"net/http"

	"deadliner/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SaveTokenRequest carries the Canvas API token to store for the caller
type SaveTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// SaveToken upserts the caller's Canvas credential
func (h *Handler) SaveToken(c *gin.Context) {
	var req SaveTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, http.StatusBadRequest, "Invalid input", err)
		return
	}

	username := c.GetString("username")

	var existing models.CanvasToken
	err := h.db.Where("username = ?", username).First(&existing).Error
	switch {
	case err == nil:
		if err := h.db.Model(&existing).Update("token", req.Token).Error; err != nil {
			handleError(c, http.StatusBadRequest, "Failed to save token", err)
			return
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		token := models.CanvasToken{Username: username, Token: req.Token}
		if err := h.db.Create(&token).Error; err != nil {
			handleError(c, http.StatusBadRequest, "Failed to save token", err)
			return
		}
	default:
		handleError(c, http.StatusBadRequest, "Failed to save token", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Token saved"})
}
