package dto

import (
	"encoding/json"
	"time"
)

// EpisodeInfo is one row of the episode list.
type EpisodeInfo struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	TimeOfDay   time.Time `json:"timeOfDay"`
	Duration    float64   `json:"durationSeconds"`
	Labels      []string  `json:"labels"`
	CategoryIDs []string  `json:"categoryIds"`
	Images      []int64   `json:"images"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Geohash     string    `json:"geohash,omitempty"`
	Status      string    `json:"status"`
	StatusCode  int       `json:"statusCode"`
	Error       string    `json:"error,omitempty"`
}

// MarshalJSON customizes JSON output for EpisodeInfo to format date and time-of-day.
func (e EpisodeInfo) MarshalJSON() ([]byte, error) {
	type Alias EpisodeInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      e.Date.Format("02-01-2006"),
		TimeOfDay: e.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(e),
	})
}
