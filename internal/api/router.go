package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ev-booking-gateway/config"
	"ev-booking-gateway/internal/bookingapi"
	"ev-booking-gateway/internal/mw"
)

// NewRouter creates and configures the gateway's Gin router.
// verifier may be nil, in which case sessions are keyed by their raw token.
func NewRouter(h *Handler, cfg config.ServerConfig, verifier *bookingapi.Verifier, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(mw.RequestLogger(logger), gin.Recovery())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheStore := cache.New(cfg.CacheTTL(), 2*cfg.CacheTTL())
	caching := mw.Cache(cacheStore, cfg.CacheTTL())
	invalidate := mw.Invalidate(cacheStore)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/auth/login", h.Login)
		api.POST("/auth/register", h.Register)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		authed := api.Group("")
		authed.Use(mw.Session(verifier, time.Now))

		authed.GET("/auth/profile", h.Profile)

		stations := authed.Group("/stations")
		stations.Use(invalidate)
		{
			stations.GET("", caching, h.ListStations)
			stations.POST("", h.CreateStation)
			stations.GET("/:id", h.GetStation)
			stations.PUT("/:id", h.UpdateStation)
			stations.DELETE("/:id", h.DeleteStation)

			stations.GET("/:id/time-slots", h.FetchSlots)
			stations.GET("/:id/time-slots/cached", h.CachedSlots)
		}

		authed.GET("/booking", h.GetBookingState)
		authed.POST("/booking/selection", h.SelectSlot)
		authed.DELETE("/booking/selection", h.CancelSelection)
		authed.POST("/booking/confirm", h.ConfirmBooking)
		authed.GET("/bookings", h.ListBookings)

		authed.GET("/subscriptions", h.GetSubscription)
		authed.PUT("/subscriptions", h.PutSubscription)
		authed.DELETE("/subscriptions", h.DeleteSubscription)
	}

	return r
}
