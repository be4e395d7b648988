package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"deadliner/internal/auth"
	"deadliner/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// validatePassword checks if password meets security requirements
func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	hasLetter := false
	hasNumber := false

	for _, char := range password {
		if unicode.IsLetter(char) {
			hasLetter = true
		} else if unicode.IsNumber(char) {
			hasNumber = true
		}

		if hasLetter && hasNumber {
			return nil
		}
	}

	return fmt.Errorf("password must contain at least one letter and one number")
}

// CreateAccount handles new user registration
func (h *Handler) CreateAccount(c *gin.Context) {
	var req models.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, http.StatusBadRequest, "Invalid input", err)
		return
	}

	if err := validatePassword(req.Password); err != nil {
		handleError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	account := models.Account{
		Username: req.Username,
		Email:    req.Email,
	}
	if err := account.SetPassword(req.Password); err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	if err := h.db.Create(&account).Error; err != nil {
		// Check for common database errors like duplicate usernames
		if strings.Contains(err.Error(), "duplicate key") {
			if strings.Contains(err.Error(), "username") {
				handleError(c, http.StatusConflict, "Username already exists", err)
			} else if strings.Contains(err.Error(), "email") {
				handleError(c, http.StatusConflict, "Email already in use", err)
			} else {
				handleError(c, http.StatusConflict, "Account creation failed: duplicate data", err)
			}
			return
		}

		handleError(c, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

// Login handles user authentication and JWT token generation
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, http.StatusBadRequest, "Invalid login request", err)
		return
	}

	var account models.Account
	if err := h.db.Where("username = ?", req.Username).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			handleError(c, http.StatusUnauthorized, "Invalid credentials", err)
			return
		}
		handleError(c, http.StatusInternalServerError, "Login attempt failed", err)
		return
	}

	if !account.VerifyPassword(req.Password) {
		handleError(c, http.StatusUnauthorized, "Invalid credentials",
			fmt.Errorf("password verification failed for user %s", req.Username))
		return
	}

	accessToken, accessExpiry, err := auth.GenerateToken(account.Username, auth.AccessToken)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to generate access token", err)
		return
	}

	refreshToken, refreshExpiry, err := auth.GenerateToken(account.Username, auth.RefreshToken)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to generate refresh token", err)
		return
	}

	// Set SameSite mode to Strict for all cookies
	c.SetSameSite(http.SameSiteStrictMode)

	c.SetCookie(
		auth.AccessTokenCookieName,
		accessToken,
		int(auth.AccessTokenExpiry.Seconds()),
		"/",
		"", // Domain - blank for current domain
		true,
		true, // HttpOnly - not accessible via JavaScript
	)

	c.SetCookie(
		auth.RefreshTokenCookieName,
		refreshToken,
		int(auth.RefreshTokenExpiry.Seconds()),
		"/auth/refresh", // Only sent to refresh endpoint
		"",
		true,
		true,
	)

	// Update last login time
	h.db.Model(&account).Update("last_login", time.Now())

	c.JSON(http.StatusOK, gin.H{
		"username":              account.Username,
		"access_token_expires":  accessExpiry,
		"refresh_token_expires": refreshExpiry,
	})
}

// RefreshToken handles token refresh requests
func (h *Handler) RefreshToken(c *gin.Context) {
	refreshToken, err := c.Cookie(auth.RefreshTokenCookieName)
	if err != nil {
		handleError(c, http.StatusUnauthorized, "Refresh token required", err)
		return
	}

	claims, err := auth.ValidateToken(refreshToken)
	if err != nil {
		handleError(c, http.StatusUnauthorized, "Invalid refresh token", err)
		return
	}

	if claims.TokenType != auth.RefreshToken {
		handleError(c, http.StatusUnauthorized, "Invalid token type",
			fmt.Errorf("token type mismatch: expected refresh, got %s", claims.TokenType))
		return
	}

	accessToken, accessExpiry, err := auth.GenerateToken(claims.Username, auth.AccessToken)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(
		auth.AccessTokenCookieName,
		accessToken,
		int(auth.AccessTokenExpiry.Seconds()),
		"/",
		"",
		true,
		true,
	)

	c.JSON(http.StatusOK, gin.H{
		"username":             claims.Username,
		"access_token_expires": accessExpiry,
	})
}

// Logout clears the auth cookies
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie(auth.AccessTokenCookieName, "", -1, "/", "", true, true)
	c.SetCookie(auth.RefreshTokenCookieName, "", -1, "/auth/refresh", "", true, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GetCurrentUser returns the authenticated user's account
func (h *Handler) GetCurrentUser(c *gin.Context) {
	username := c.GetString("username")

	var account models.Account
	if err := h.db.Where("username = ?", username).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			handleError(c, http.StatusNotFound, "Account not found", err)
			return
		}
		handleError(c, http.StatusInternalServerError, "Failed to retrieve account", err)
		return
	}

	c.JSON(http.StatusOK, account)
}
