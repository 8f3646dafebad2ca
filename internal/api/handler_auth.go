package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ev-booking-gateway/internal/model"
)

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	resp, err := h.backend.Login(c.Request.Context(), req)
	if err != nil {
		backendError(c, err, "Login failed.")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, email and password are required"})
		return
	}

	resp, err := h.backend.Register(c.Request.Context(), req)
	if err != nil {
		backendError(c, err, "Registration failed.")
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Profile handles GET /api/auth/profile.
func (h *Handler) Profile(c *gin.Context) {
	profile, err := h.backend.Profile(c.Request.Context(), session(c))
	if err != nil {
		backendError(c, err, "Failed to load profile.")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", profile)
}
