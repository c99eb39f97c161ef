// EpisodesData is a paginated response payload for the episode journal.
package dto

type EpisodesData struct {
	Episodes    []EpisodeInfo `json:"episodes"`
	Length      int           `json:"length"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Limit       int           `json:"pageSize"`
}
