package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"alertcam/internal/dto"
	"alertcam/internal/model"

	"github.com/jmoiron/sqlx"
)

// EpisodeRepository implements repository.EpisodeRepository for SQLite.
type EpisodeRepository struct {
	db *DB
}

// NewEpisodeRepository creates a new SQLite episode repository.
func NewEpisodeRepository(db *DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

const episodeColumns = `id, description, latitude, longitude, geohash, started_at, ended_at,
	frames, image_count, dropped_images, status, status_code, error`

// Insert stores an episode together with its categories.
func (r *EpisodeRepository) Insert(ep *model.Episode) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExec(`
		INSERT INTO episodes (id, description, latitude, longitude, geohash, started_at, ended_at,
			frames, image_count, dropped_images, status, status_code, error)
		VALUES (:id, :description, :latitude, :longitude, :geohash, :started_at, :ended_at,
			:frames, :image_count, :dropped_images, :status, :status_code, :error)
	`, ep)
	if err != nil {
		return fmt.Errorf("failed to insert episode: %w", err)
	}

	for _, c := range ep.Categories {
		c.EpisodeID = ep.ID
		if _, err := tx.NamedExec(`
			INSERT INTO episode_categories (episode_id, label, category_id)
			VALUES (:episode_id, :label, :category_id)
		`, c); err != nil {
			return fmt.Errorf("failed to insert category %s: %w", c.Label, err)
		}
	}

	return tx.Commit()
}

// InsertImages stores image records; their IDs are filled in.
func (r *EpisodeRepository) InsertImages(images []model.EpisodeImage) error {
	if len(images) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range images {
		result, err := tx.NamedExec(`
			INSERT INTO episode_images (episode_id, position, filename, filepath, filesize)
			VALUES (:episode_id, :position, :filename, :filepath, :filesize)
		`, images[i])
		if err != nil {
			return fmt.Errorf("failed to insert image %s: %w", images[i].Filename, err)
		}
		if images[i].ID, err = result.LastInsertId(); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves an episode with its categories. A missing episode
// returns nil, nil.
func (r *EpisodeRepository) GetByID(id string) (*model.Episode, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var ep model.Episode
	err := r.db.Conn().Get(&ep, `SELECT `+episodeColumns+` FROM episodes e WHERE e.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}

	if err := r.loadCategories([]*model.Episode{&ep}); err != nil {
		return nil, err
	}
	return &ep, nil
}

func buildWhere(filter *dto.EpisodeFilters) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	if filter == nil {
		return "", nil
	}

	if filter.Label != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM episode_categories c WHERE c.episode_id = e.id AND c.label = ?)")
		args = append(args, filter.Label)
	}
	if filter.Status != "" {
		clauses = append(clauses, "e.status = ?")
		args = append(args, filter.Status)
	}
	if !filter.DateAfter.IsZero() {
		clauses = append(clauses, "e.started_at >= ?")
		args = append(args, filter.DateAfter.UTC())
	}
	if !filter.DateBefore.IsZero() {
		clauses = append(clauses, "e.started_at < ?")
		args = append(args, filter.DateBefore.UTC())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// GetAll retrieves episodes based on filter criteria, newest first.
func (r *EpisodeRepository) GetAll(filter *dto.EpisodeFilters) ([]model.Episode, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `SELECT ` + episodeColumns + ` FROM episodes e` + where + ` ORDER BY e.started_at DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	var episodes []model.Episode
	if err := r.db.Conn().Select(&episodes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}

	ptrs := make([]*model.Episode, len(episodes))
	for i := range episodes {
		ptrs[i] = &episodes[i]
	}
	if err := r.loadCategories(ptrs); err != nil {
		return nil, err
	}
	return episodes, nil
}

// GetTotalCount returns the total count of episodes matching the filter.
func (r *EpisodeRepository) GetTotalCount(filter *dto.EpisodeFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)

	var count int
	if err := r.db.Conn().Get(&count, `SELECT COUNT(*) FROM episodes e`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count episodes: %w", err)
	}
	return count, nil
}

// GetImages returns the images of an episode in capture order.
func (r *EpisodeRepository) GetImages(episodeID string) ([]model.EpisodeImage, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var images []model.EpisodeImage
	err := r.db.Conn().Select(&images, `
		SELECT id, episode_id, position, filename, filepath, filesize
		FROM episode_images WHERE episode_id = ? ORDER BY position
	`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	return images, nil
}

// GetImage retrieves one image record. A missing image returns nil, nil.
func (r *EpisodeRepository) GetImage(id int64) (*model.EpisodeImage, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var img model.EpisodeImage
	err := r.db.Conn().Get(&img, `
		SELECT id, episode_id, position, filename, filepath, filesize
		FROM episode_images WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &img, nil
}

// GetStats returns statistics about journaled episodes.
func (r *EpisodeRepository) GetStats() (*model.EpisodeStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.EpisodeStats{LabelCounts: make(map[string]int)}

	err := r.db.Conn().QueryRowx(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(image_count), 0)
		FROM episodes
	`, model.DeliveryDelivered, model.DeliveryFailed).Scan(&stats.TotalEpisodes, &stats.Delivered, &stats.Failed, &stats.TotalImages)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	rows, err := r.db.Conn().Queryx(`SELECT label, COUNT(*) FROM episode_categories GROUP BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to count labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, err
		}
		stats.LabelCounts[label] = count
	}
	return stats, rows.Err()
}

// DeleteAll removes all episodes, their categories and image records.
func (r *EpisodeRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	for _, table := range []string{"episode_images", "episode_categories", "episodes"} {
		if _, err := r.db.Conn().Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	return nil
}

// loadCategories must be called with the read lock held.
func (r *EpisodeRepository) loadCategories(episodes []*model.Episode) error {
	if len(episodes) == 0 {
		return nil
	}

	byID := make(map[string]*model.Episode, len(episodes))
	ids := make([]string, 0, len(episodes))
	for _, ep := range episodes {
		ep.Categories = []model.EpisodeCategory{}
		byID[ep.ID] = ep
		ids = append(ids, ep.ID)
	}

	query, args, err := sqlx.In(`SELECT episode_id, label, category_id FROM episode_categories
		WHERE episode_id IN (?) ORDER BY label`, ids)
	if err != nil {
		return err
	}

	var categories []model.EpisodeCategory
	if err := r.db.Conn().Select(&categories, query, args...); err != nil {
		return fmt.Errorf("failed to query categories: %w", err)
	}
	for _, c := range categories {
		if ep, ok := byID[c.EpisodeID]; ok {
			ep.Categories = append(ep.Categories, c)
		}
	}
	return nil
}
