package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"alertcam/internal/model"
)

// ReconcileResult counts what Reconcile found in the images directory.
type ReconcileResult struct {
	Scanned  int
	Restored int
	Orphans  int
	Deleted  int
	Skipped  int
}

// ParseImageFilename splits "<episode id>_<position>.<ext>".
func ParseImageFilename(filename string) (episodeID string, position int, err error) {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	idx := strings.LastIndex(name, "_")
	if idx <= 0 || idx == len(name)-1 {
		return "", 0, fmt.Errorf("invalid filename format: %s", filename)
	}

	position, err = strconv.Atoi(name[idx+1:])
	if err != nil || position < 0 {
		return "", 0, fmt.Errorf("invalid image position in %s", filename)
	}
	return name[:idx], position, nil
}

// Reconcile brings the images directory and the journal back in line after
// a crash between writing files and recording them. Files of a journaled
// episode without an image row are recorded again; files of an unknown
// episode are orphans and are removed when deleteOrphans is set.
func (s *JournalService) Reconcile(deleteOrphans bool) (ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result ReconcileResult

	files, err := os.ReadDir(s.imagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("unable to read images directory: %w", err)
	}

	known := make(map[string]map[string]bool)
	var missing []model.EpisodeImage

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		result.Scanned++

		episodeID, position, err := ParseImageFilename(file.Name())
		if err != nil {
			s.logger.Warning("⚠️  Skipping %s: %v", file.Name(), err)
			result.Skipped++
			continue
		}

		recorded, ok := known[episodeID]
		if !ok {
			ep, err := s.repo.GetByID(episodeID)
			if err != nil {
				return result, err
			}
			if ep != nil {
				recorded = make(map[string]bool)
				images, err := s.repo.GetImages(episodeID)
				if err != nil {
					return result, err
				}
				for _, img := range images {
					recorded[img.Filename] = true
				}
			}
			known[episodeID] = recorded
		}

		fullpath := filepath.Join(s.imagesDir, file.Name())
		if recorded == nil {
			result.Orphans++
			if deleteOrphans {
				if err := os.Remove(fullpath); err != nil {
					s.logger.Error("Error deleting file %s: %v", file.Name(), err)
					continue
				}
				result.Deleted++
			}
			continue
		}
		if recorded[file.Name()] {
			continue
		}

		info, err := file.Info()
		if err != nil {
			s.logger.Warning("⚠️  Failed to get info for %s: %v", file.Name(), err)
			result.Skipped++
			continue
		}
		missing = append(missing, model.EpisodeImage{
			EpisodeID: episodeID,
			Position:  position,
			Filename:  file.Name(),
			FilePath:  fullpath,
			FileSize:  info.Size(),
		})
	}

	if len(missing) > 0 {
		if err := s.repo.InsertImages(missing); err != nil {
			return result, err
		}
		result.Restored = len(missing)
	}
	return result, nil
}
