// EpisodeFilters describe user-provided filters to narrow the episode list.
package dto

import "time"

type EpisodeFilters struct {
	Label      string
	Status     string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}
