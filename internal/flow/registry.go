package flow

import (
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"ev-booking-gateway/internal/bookingapi"
)

// Registry keeps one flow per signed-in user. Flows untouched for the idle
// period are dropped.
type Registry struct {
	api     BookingAPI
	timeout time.Duration
	logger  *zap.Logger
	flows   *cache.Cache

	mu        sync.Mutex
	listeners []func(userKey string, b Booked)
}

// NewRegistry creates an empty registry.
func NewRegistry(api BookingAPI, timeout, idle time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		api:     api,
		timeout: timeout,
		logger:  logger,
		flows:   cache.New(idle, idle),
	}
}

// OnBooked registers fn for bookings made through any flow of this registry.
func (r *Registry) OnBooked(fn func(userKey string, b Booked)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Get returns the user's flow, creating it on first use, and refreshes its idle timer.
func (r *Registry) Get(sess bookingapi.Session) *Flow {
	key := sess.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.flows.Get(key); ok {
		f := v.(*Flow)
		f.SetSession(sess)
		r.flows.SetDefault(key, f)
		return f
	}

	f := New(r.api, sess, r.timeout, r.logger.With(zap.String("user", key)))
	f.OnBooked(func(b Booked) {
		r.mu.Lock()
		listeners := slices.Clone(r.listeners)
		r.mu.Unlock()
		for _, fn := range listeners {
			fn(key, b)
		}
	})
	r.flows.SetDefault(key, f)
	return f
}

// Len reports how many flows are live.
func (r *Registry) Len() int {
	return r.flows.ItemCount()
}
