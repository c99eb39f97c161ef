package repository

import (
	"alertcam/internal/dto"
	"alertcam/internal/model"
)

// EpisodeRepository defines the interface for the episode journal.
type EpisodeRepository interface {
	// Create operations
	Insert(ep *model.Episode) error
	InsertImages(images []model.EpisodeImage) error

	// Read operations
	GetByID(id string) (*model.Episode, error)
	GetAll(filter *dto.EpisodeFilters) ([]model.Episode, error)
	GetTotalCount(filter *dto.EpisodeFilters) (int, error)
	GetImages(episodeID string) ([]model.EpisodeImage, error)
	GetImage(id int64) (*model.EpisodeImage, error)
	GetStats() (*model.EpisodeStats, error)

	// Delete operations
	DeleteAll() error
}
