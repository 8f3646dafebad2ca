package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ev-booking-gateway/config"
	"ev-booking-gateway/internal/model"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// Client talks to the booking backend over REST.
type Client struct {
	baseURL *url.URL
	headers map[string]string
	client  *http.Client
	logger  *zap.Logger
	newKey  func() string
}

// NewClient creates a client for the configured backend. An unparseable proxy
// is logged and ignored; an unparseable base URL is an error.
func NewClient(cfg config.BookingAPIConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid booking api base url %q", cfg.BaseURL)
	}

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			logger.Warn("invalid proxy url, not using a proxy", zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Client{
		baseURL: base,
		headers: cfg.Headers,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: logger,
		newKey: uuid.NewString,
	}, nil
}

// FetchSlots lists the time slots of a station for one date.
func (c *Client) FetchSlots(ctx context.Context, sess Session, stationID, date string) ([]model.TimeSlot, error) {
	var resp model.SlotsResponse
	q := url.Values{"date": {date}}
	if err := c.do(ctx, http.MethodGet, []string{"api", "stations", stationID, "time-slots"}, q, &sess, nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Slots == nil {
		resp.Slots = []model.TimeSlot{}
	}
	return resp.Slots, nil
}

// CreateBooking submits a booking. Every call carries a fresh Idempotency-Key;
// the client never retries on its own.
func (c *Client) CreateBooking(ctx context.Context, sess Session, req model.BookingRequest) (model.BookingResult, error) {
	var result model.BookingResult
	headers := map[string]string{"Idempotency-Key": c.newKey()}
	if err := c.do(ctx, http.MethodPost, []string{"api", "bookings"}, nil, &sess, req, headers, &result); err != nil {
		return model.BookingResult{}, err
	}
	if result.Empty() {
		return model.BookingResult{}, ErrEmptyResult
	}
	return result, nil
}

// do issues one request. sess nil means unauthenticated. out, when non-nil, receives the decoded body.
func (c *Client) do(ctx context.Context, method string, segments []string, query url.Values, sess *Session, body any, headers map[string]string, out any) error {
	if sess != nil && !sess.Valid() {
		return ErrNoSession
	}

	escaped := make([]string, len(segments))
	for i, seg := range segments {
		if seg == "" {
			return fmt.Errorf("empty path segment in %v", segments)
		}
		escaped[i] = url.PathEscape(seg)
	}
	u := c.baseURL.JoinPath(escaped...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess != nil {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, respBody)
		c.logger.Debug("booking api error",
			zap.String("method", method),
			zap.String("path", u.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message))
		return apiErr
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return ErrEmptyResult
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal api response: %w", err)
	}
	return nil
}
