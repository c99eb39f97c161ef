package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"alertcam/internal/logger"
	"alertcam/internal/model"
	"alertcam/internal/repository"

	"github.com/mmcloughlin/geohash"
)

const (
	// JournalQueueSize limits how many closed episodes wait to be written.
	JournalQueueSize = 16
	// GeohashPrecision is the number of characters stored per episode (~150m).
	GeohashPrecision = 7
)

type record struct {
	payload  *model.AlertPayload
	delivery model.Delivery
}

// JournalService writes closed episodes to disk and to the episode
// repository in the background.
type JournalService struct {
	imagesDir string
	repo      repository.EpisodeRepository
	logger    *logger.Logger

	queue chan record
	mu    sync.Mutex
}

// NewJournalService creates a JournalService storing images in imagesDir.
func NewJournalService(imagesDir string, repo repository.EpisodeRepository, logger *logger.Logger) *JournalService {
	return &JournalService{
		imagesDir: imagesDir,
		repo:      repo,
		logger:    logger,
		queue:     make(chan record, JournalQueueSize),
	}
}

// Record queues an episode for writing. When the queue is full the episode
// is dropped and an error returned.
func (s *JournalService) Record(payload *model.AlertPayload, delivery model.Delivery) error {
	select {
	case s.queue <- record{payload: payload, delivery: delivery}:
		return nil
	default:
		return fmt.Errorf("journal queue full, episode %s not recorded", payload.EpisodeID)
	}
}

// Run writes queued episodes until ctx is done, then drains the queue.
func (s *JournalService) Run(ctx context.Context) {
	for {
		select {
		case rec := <-s.queue:
			s.write(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-s.queue:
					s.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (s *JournalService) write(rec record) {
	if _, err := s.Write(rec.payload, rec.delivery); err != nil {
		s.logger.Error("Error journaling episode %s: %v", rec.payload.EpisodeID, err)
	}
}

// Write stores the episode immediately and returns the journal record.
func (s *JournalService) Write(payload *model.AlertPayload, delivery model.Delivery) (*model.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep := NewEpisode(payload, delivery)
	if err := s.repo.Insert(ep); err != nil {
		return nil, err
	}

	if len(payload.Images) == 0 {
		return ep, nil
	}
	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		return ep, fmt.Errorf("error creating directory: %w", err)
	}

	images := make([]model.EpisodeImage, 0, len(payload.Images))
	for i, img := range payload.Images {
		format := img.Format
		if format == "" {
			format = "jpg"
		}
		filename := fmt.Sprintf("%s_%03d.%s", payload.EpisodeID, i, format)
		fullpath := filepath.Join(s.imagesDir, filename)

		if err := os.WriteFile(fullpath, img.Data, 0644); err != nil {
			s.logger.Error("Error saving image %s: %v", filename, err)
			continue
		}
		images = append(images, model.EpisodeImage{
			EpisodeID: payload.EpisodeID,
			Position:  i,
			Filename:  filename,
			FilePath:  fullpath,
			FileSize:  int64(len(img.Data)),
		})
	}

	if err := s.repo.InsertImages(images); err != nil {
		return ep, err
	}
	s.logger.Debug("Journaled episode %s with %d images", payload.EpisodeID, len(images))
	return ep, nil
}

// Clear deletes every stored image file and the whole journal.
func (s *JournalService) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := os.ReadDir(s.imagesDir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unable to read images directory: %w", err)
	}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.imagesDir, file.Name())); err != nil {
			s.logger.Error("Error deleting file %s: %v", file.Name(), err)
		}
	}

	return s.repo.DeleteAll()
}

// NewEpisode converts a submitted payload into its journal record.
func NewEpisode(payload *model.AlertPayload, delivery model.Delivery) *model.Episode {
	ep := &model.Episode{
		ID:            payload.EpisodeID,
		Description:   payload.Description,
		Latitude:      payload.Latitude,
		Longitude:     payload.Longitude,
		StartedAt:     payload.StartedAt.UTC(),
		EndedAt:       payload.EndedAt.UTC(),
		Frames:        payload.Frames,
		ImageCount:    len(payload.Images),
		DroppedImages: payload.DroppedImages,
		Status:        delivery.Status,
		StatusCode:    delivery.StatusCode,
		Error:         delivery.Error,
	}
	if payload.Latitude != nil && payload.Longitude != nil {
		ep.Geohash = geohash.EncodeWithPrecision(*payload.Latitude, *payload.Longitude, GeohashPrecision)
	}

	for _, label := range payload.Labels {
		ep.Categories = append(ep.Categories, model.EpisodeCategory{
			EpisodeID:  payload.EpisodeID,
			Label:      label,
			CategoryID: payload.Categories[label],
		})
	}
	return ep
}
