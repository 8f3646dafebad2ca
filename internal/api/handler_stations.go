package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ev-booking-gateway/internal/model"
)

// ListStations handles GET /api/stations.
func (h *Handler) ListStations(c *gin.Context) {
	stations, err := h.backend.ListStations(c.Request.Context(), session(c))
	if err != nil {
		backendError(c, err, "Failed to load stations.")
		return
	}
	if stations == nil {
		stations = []model.Station{}
	}
	c.JSON(http.StatusOK, stations)
}

// GetStation handles GET /api/stations/:id.
func (h *Handler) GetStation(c *gin.Context) {
	station, err := h.backend.GetStation(c.Request.Context(), session(c), c.Param("id"))
	if err != nil {
		backendError(c, err, "Failed to load station.")
		return
	}
	c.JSON(http.StatusOK, station)
}

// CreateStation handles POST /api/stations.
func (h *Handler) CreateStation(c *gin.Context) {
	var in model.StationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "station name is required"})
		return
	}

	station, err := h.backend.CreateStation(c.Request.Context(), session(c), in)
	if err != nil {
		backendError(c, err, "Failed to create station.")
		return
	}
	c.JSON(http.StatusCreated, station)
}

// UpdateStation handles PUT /api/stations/:id.
func (h *Handler) UpdateStation(c *gin.Context) {
	var in model.StationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "station name is required"})
		return
	}

	station, err := h.backend.UpdateStation(c.Request.Context(), session(c), c.Param("id"), in)
	if err != nil {
		backendError(c, err, "Failed to update station.")
		return
	}
	c.JSON(http.StatusOK, station)
}

// DeleteStation handles DELETE /api/stations/:id.
func (h *Handler) DeleteStation(c *gin.Context) {
	if err := h.backend.DeleteStation(c.Request.Context(), session(c), c.Param("id")); err != nil {
		backendError(c, err, "Failed to delete station.")
		return
	}
	c.Status(http.StatusNoContent)
}
