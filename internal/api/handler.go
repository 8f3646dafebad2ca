package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ev-booking-gateway/internal/bookingapi"
	"ev-booking-gateway/internal/flow"
	"ev-booking-gateway/internal/model"
	"ev-booking-gateway/internal/mw"
	"ev-booking-gateway/internal/store"
)

// Backend is everything the gateway forwards to the booking backend.
type Backend interface {
	flow.BookingAPI
	ListStations(ctx context.Context, sess bookingapi.Session) ([]model.Station, error)
	GetStation(ctx context.Context, sess bookingapi.Session, id string) (*model.Station, error)
	CreateStation(ctx context.Context, sess bookingapi.Session, in model.StationInput) (*model.Station, error)
	UpdateStation(ctx context.Context, sess bookingapi.Session, id string, in model.StationInput) (*model.Station, error)
	DeleteStation(ctx context.Context, sess bookingapi.Session, id string) error
	Login(ctx context.Context, in model.LoginRequest) (*model.AuthResponse, error)
	Register(ctx context.Context, in model.RegisterRequest) (*model.AuthResponse, error)
	Profile(ctx context.Context, sess bookingapi.Session) (json.RawMessage, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	backend Backend
	flows   *flow.Registry
	store   store.Store
	webpush *webpush.Options
	logger  *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(backend Backend, flows *flow.Registry, s store.Store, webpushOptions *webpush.Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		backend: backend,
		flows:   flows,
		store:   s,
		webpush: webpushOptions,
		logger:  logger,
	}
}

// session returns the caller's session; the Session middleware guarantees it on authed routes.
func session(c *gin.Context) bookingapi.Session {
	sess, _ := mw.SessionFrom(c)
	return sess
}

// backendError writes a failed backend call. Client errors pass through with the
// backend's message; everything else becomes 502.
func backendError(c *gin.Context, err error, fallback string) {
	status := bookingapi.StatusCode(err)
	if status < 400 || status >= 500 {
		status = http.StatusBadGateway
	}
	msg := bookingapi.ServerMessage(err)
	if msg == "" {
		msg = fallback
	}
	mw.LoggerFrom(c).Warn("booking backend call failed", zap.Int("status", status), zap.Error(err))
	c.JSON(status, gin.H{"error": msg})
}

// flowStatus maps flow errors to HTTP statuses.
func flowStatus(err error) int {
	var flowErr *flow.Error
	switch {
	case errors.As(err, &flowErr):
		if s := bookingapi.StatusCode(err); s >= 400 && s < 500 {
			return s
		}
		return http.StatusBadGateway
	case errors.Is(err, flow.ErrInvalidStation),
		errors.Is(err, flow.ErrInvalidDate),
		errors.Is(err, flow.ErrBatteryRequired),
		errors.Is(err, flow.ErrBatteryOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, flow.ErrSlotNotFound):
		return http.StatusNotFound
	default:
		return http.StatusConflict
	}
}

// flowError writes a flow failure together with the flow's current view.
func flowError(c *gin.Context, err error, view flow.View) {
	msg := err.Error()
	var flowErr *flow.Error
	if errors.As(err, &flowErr) {
		msg = flowErr.Message
	}
	c.JSON(flowStatus(err), gin.H{"error": msg, "view": view})
}
