package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"alertcam/internal/dto"
	"alertcam/internal/logger"
	"alertcam/internal/repository"
)

// Clearer removes every journaled episode and its images.
type Clearer interface {
	Clear() error
}

// GetEpisodesHandler returns a filtered, paginated list of journaled episodes.
func GetEpisodesHandler(repo repository.EpisodeRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.EpisodeFilters{
			Label:     q.Get("label"),
			Status:    q.Get("status"),
			DateAfter: parseDate(q.Get("dateAfter")),
			Limit:     limit,
			Offset:    (page - 1) * limit,
		}
		if before := parseDate(q.Get("dateBefore")); !before.IsZero() {
			// inclusive: the whole day
			filter.DateBefore = before.AddDate(0, 0, 1)
		}

		episodes, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying episodes from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting episodes: %v", err)
			totalCount = len(episodes)
		}

		infos := make([]dto.EpisodeInfo, 0, len(episodes))
		for _, ep := range episodes {
			images, err := repo.GetImages(ep.ID)
			if err != nil {
				logger.Error("Error getting images for episode %s: %v", ep.ID, err)
			}
			imageIDs := make([]int64, 0, len(images))
			for _, img := range images {
				imageIDs = append(imageIDs, img.ID)
			}

			labels := make([]string, 0, len(ep.Categories))
			ids := make([]string, 0, len(ep.Categories))
			for _, c := range ep.Categories {
				labels = append(labels, c.Label)
				ids = append(ids, c.CategoryID)
			}

			infos = append(infos, dto.EpisodeInfo{
				ID:          ep.ID,
				Description: ep.Description,
				Date:        ep.StartedAt,
				TimeOfDay:   ep.StartedAt,
				Duration:    ep.EndedAt.Sub(ep.StartedAt).Seconds(),
				Labels:      labels,
				CategoryIDs: ids,
				Images:      imageIDs,
				Latitude:    ep.Latitude,
				Longitude:   ep.Longitude,
				Geohash:     ep.Geohash,
				Status:      ep.Status,
				StatusCode:  ep.StatusCode,
				Error:       ep.Error,
			})
		}

		data := dto.EpisodesData{
			Episodes:    infos,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}

		writeJSON(w, logger, data)
	}
}

// ViewEpisodeImageHandler serves a stored episode image selected by its "id".
func ViewEpisodeImageHandler(repo repository.EpisodeRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil {
			http.Error(w, "Image id is required", http.StatusBadRequest)
			return
		}

		img, err := repo.GetImage(id)
		if err != nil {
			logger.Error("Error getting image %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if img == nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, img.FilePath)
	}
}

// GetStatsHandler returns journal statistics.
func GetStatsHandler(repo repository.EpisodeRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := repo.GetStats()
		if err != nil {
			logger.Error("Error computing stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, stats)
	}
}

// ClearEpisodesHandler deletes all image files and clears the journal.
func ClearEpisodesHandler(journal Clearer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := journal.Clear(); err != nil {
			logger.Error("Error clearing journal: %v", err)
			http.Error(w, "Unable to clear episodes", http.StatusInternalServerError)
			return
		}

		logger.Info("All episodes cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" from the request (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
