package model

import "time"

// Episode is the journal record of a flushed alert episode.
type Episode struct {
	ID            string    `db:"id" json:"id"`
	Description   string    `db:"description" json:"description"`
	Latitude      *float64  `db:"latitude" json:"latitude"`
	Longitude     *float64  `db:"longitude" json:"longitude"`
	Geohash       string    `db:"geohash" json:"geohash"`
	StartedAt     time.Time `db:"started_at" json:"started_at"`
	EndedAt       time.Time `db:"ended_at" json:"ended_at"`
	Frames        int       `db:"frames" json:"frames"`
	ImageCount    int       `db:"image_count" json:"image_count"`
	DroppedImages int       `db:"dropped_images" json:"dropped_images"`
	Status        string    `db:"status" json:"status"`
	StatusCode    int       `db:"status_code" json:"status_code"`
	Error         string    `db:"error" json:"error"`

	Categories []EpisodeCategory `db:"-" json:"categories"`
}

// EpisodeCategory links an episode to one of the target classes it saw.
type EpisodeCategory struct {
	EpisodeID  string `db:"episode_id" json:"-"`
	Label      string `db:"label" json:"label"`
	CategoryID string `db:"category_id" json:"category_id"`
}

// EpisodeImage is an image file written for an episode.
type EpisodeImage struct {
	ID        int64  `db:"id" json:"id"`
	EpisodeID string `db:"episode_id" json:"episode_id"`
	Position  int    `db:"position" json:"position"`
	Filename  string `db:"filename" json:"filename"`
	FilePath  string `db:"filepath" json:"-"`
	FileSize  int64  `db:"filesize" json:"filesize"`
}

// EpisodeStats contains statistics about journaled episodes.
type EpisodeStats struct {
	TotalEpisodes int            `json:"total_episodes"`
	Delivered     int            `json:"delivered"`
	Failed        int            `json:"failed"`
	TotalImages   int            `json:"total_images"`
	LabelCounts   map[string]int `json:"label_counts"`
}

// PipelineStatus is a point-in-time view of the detection loop.
type PipelineStatus struct {
	State          string    `json:"state"`
	ActiveLabels   []string  `json:"active_labels"`
	BufferedImages int       `json:"buffered_images"`
	FramesRead     uint64    `json:"frames_read"`
	Episodes       uint64    `json:"episodes"`
	LastEpisodeID  string    `json:"last_episode_id,omitempty"`
	LastDelivery   string    `json:"last_delivery,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}
