package handler

import (
	"net/http"

	"alertcam/internal/logger"
	"alertcam/internal/model"
)

type StatusProvider interface {
	Status() model.PipelineStatus
}

type ViewerCounter interface {
	ClientCount() int
}

type statusResponse struct {
	Camera   string               `json:"camera"`
	Pipeline model.PipelineStatus `json:"pipeline"`
	Viewers  int                  `json:"viewers"`
	Classes  []string             `json:"classes"`
}

// StatusHandler reports the state of the detection loop.
func StatusHandler(camera string, classes []string, pipeline StatusProvider, viewers ViewerCounter, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Camera:   camera,
			Pipeline: pipeline.Status(),
			Classes:  classes,
		}
		if viewers != nil {
			resp.Viewers = viewers.ClientCount()
		}
		writeJSON(w, logger, resp)
	}
}
