package bookingapi

import (
	"context"
	"net/http"

	"ev-booking-gateway/internal/model"
)

// ListStations returns every station visible to the session.
func (c *Client) ListStations(ctx context.Context, sess Session) ([]model.Station, error) {
	var stations []model.Station
	if err := c.do(ctx, http.MethodGet, []string{"api", "stations"}, nil, &sess, nil, nil, &stations); err != nil {
		return nil, err
	}
	return stations, nil
}

// GetStation returns one station.
func (c *Client) GetStation(ctx context.Context, sess Session, id string) (*model.Station, error) {
	var station model.Station
	if err := c.do(ctx, http.MethodGet, []string{"api", "stations", id}, nil, &sess, nil, nil, &station); err != nil {
		return nil, err
	}
	return &station, nil
}

// CreateStation registers a new station (admin).
func (c *Client) CreateStation(ctx context.Context, sess Session, in model.StationInput) (*model.Station, error) {
	var station model.Station
	if err := c.do(ctx, http.MethodPost, []string{"api", "stations"}, nil, &sess, in, nil, &station); err != nil {
		return nil, err
	}
	return &station, nil
}

// UpdateStation replaces a station's editable fields (admin).
func (c *Client) UpdateStation(ctx context.Context, sess Session, id string, in model.StationInput) (*model.Station, error) {
	var station model.Station
	if err := c.do(ctx, http.MethodPut, []string{"api", "stations", id}, nil, &sess, in, nil, &station); err != nil {
		return nil, err
	}
	return &station, nil
}

// DeleteStation removes a station (admin).
func (c *Client) DeleteStation(ctx context.Context, sess Session, id string) error {
	return c.do(ctx, http.MethodDelete, []string{"api", "stations", id}, nil, &sess, nil, nil, nil)
}
