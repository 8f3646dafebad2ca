package model

// Station is a charging station as exposed by the backend.
type Station struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Address        string   `json:"address,omitempty"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	ConnectorTypes []string `json:"connectorTypes,omitempty"`
	PowerKW        float64  `json:"powerKw,omitempty"`
	PricePerKWh    float64  `json:"pricePerKwh,omitempty"`
	TotalSpots     int      `json:"totalSpots,omitempty"`
	Status         string   `json:"status,omitempty"`
}

// StationInput is the admin payload for creating or updating a station.
type StationInput struct {
	Name           string   `json:"name" binding:"required"`
	Address        string   `json:"address"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	ConnectorTypes []string `json:"connectorTypes"`
	PowerKW        float64  `json:"powerKw"`
	PricePerKWh    float64  `json:"pricePerKwh"`
	TotalSpots     int      `json:"totalSpots"`
	Status         string   `json:"status"`
}
