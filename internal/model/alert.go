package model

import (
	"encoding/base64"
	"time"
)

// EncodedImage is a compressed frame ready to be sent over the wire.
type EncodedImage struct {
	Data []byte
	// Format is the file extension of Data, e.g. "jpg".
	Format string
}

// Base64 returns the standard base64 encoding of the image bytes.
func (e EncodedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(e.Data)
}

// Location is a geographic coordinate pair in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AlertPayload is the finished record of one alert episode. It is built
// once, when the episode is flushed, and never mutated afterwards:
// WithLocation returns a copy.
type AlertPayload struct {
	EpisodeID   string
	Description string
	Latitude    *float64
	Longitude   *float64
	Images      []EncodedImage
	CategoryIDs []string
	Labels      []string
	Categories  map[string]string // label -> category id

	StartedAt     time.Time
	EndedAt       time.Time
	Frames        int // frames of the episode with at least one target
	DroppedImages int // frames whose image could not be buffered
}

// WithLocation returns a copy of the payload carrying the given coordinates.
// A nil location clears them.
func (p AlertPayload) WithLocation(loc *Location) *AlertPayload {
	if loc == nil {
		p.Latitude, p.Longitude = nil, nil
		return &p
	}
	lat, lon := loc.Latitude, loc.Longitude
	p.Latitude, p.Longitude = &lat, &lon
	return &p
}

// Delivery statuses recorded in the journal.
const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// Delivery describes what happened when an alert was submitted.
type Delivery struct {
	Status     string
	StatusCode int
	Error      string
	Latency    time.Duration
}
