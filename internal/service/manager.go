package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"alertcam/internal/logger"
	"alertcam/internal/metrics"
	"alertcam/internal/model"
	"alertcam/internal/service/episode"
	"alertcam/internal/service/geo"
)

const (
	// DefaultLocateTimeout bounds the location lookup of a closed episode.
	DefaultLocateTimeout = 5 * time.Second
	// DefaultSubmitTimeout bounds one alert submission.
	DefaultSubmitTimeout = 10 * time.Second
)

// FrameSource yields frames in arrival order. Frames returned without an
// error are handed back with Release once processed.
type FrameSource[F any] interface {
	NextFrame(ctx context.Context) (F, error)
	Release(frame F)
}

type Detector[F any] interface {
	Detect(frame F) ([]model.Detection, error)
}

// Annotator renders detections onto a frame for the live view.
type Annotator[F any] interface {
	Annotate(frame F, detections []model.Detection) ([]byte, error)
}

type Viewer interface {
	Broadcast(message []byte) bool
	ClientCount() int
}

type Submitter interface {
	Submit(ctx context.Context, payload *model.AlertPayload) (model.Delivery, error)
}

type Journal interface {
	Record(payload *model.AlertPayload, delivery model.Delivery) error
}

// ManagerOptions configures a Manager. Viewer, Annotator, Locator and
// Journal are optional.
type ManagerOptions[F any] struct {
	CameraName    string
	Interval      time.Duration
	LocateTimeout time.Duration
	SubmitTimeout time.Duration

	Annotator Annotator[F]
	Viewer    Viewer
	Locator   geo.Provider
	Journal   Journal
	Metrics   *metrics.Metrics
}

// Manager drives the detection loop: one frame at a time it detects,
// aggregates and, when an episode closes, locates and submits the alert.
type Manager[F any] struct {
	source     FrameSource[F]
	detector   Detector[F]
	aggregator *episode.Aggregator[F]
	submitter  Submitter
	opts       ManagerOptions[F]
	logger     *logger.Logger

	framesRead atomic.Uint64
	episodes   atomic.Uint64
	status     atomic.Pointer[model.PipelineStatus]
}

func NewManager[F any](source FrameSource[F], detector Detector[F], aggregator *episode.Aggregator[F],
	submitter Submitter, opts ManagerOptions[F], logger *logger.Logger) *Manager[F] {
	if opts.LocateTimeout <= 0 {
		opts.LocateTimeout = DefaultLocateTimeout
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = DefaultSubmitTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	m := &Manager[F]{
		source:     source,
		detector:   detector,
		aggregator: aggregator,
		submitter:  submitter,
		opts:       opts,
		logger:     logger,
	}
	m.publishStatus("", "")
	return m
}

// Run processes frames until ctx is cancelled (returns nil) or the frame
// source fails (returns the error). An alert being submitted when ctx is
// cancelled is allowed to finish.
func (m *Manager[F]) Run(ctx context.Context) error {
	m.logger.Info("🎬 Manager started for camera %s, interval %v", m.opts.CameraName, m.opts.Interval)

	for {
		if ctx.Err() != nil {
			m.stop()
			return nil
		}

		frame, err := m.source.NextFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				m.stop()
				return nil
			}
			m.logger.Error("Frame source failed: %v", err)
			return fmt.Errorf("frame source: %w", err)
		}
		m.framesRead.Add(1)
		m.opts.Metrics.FramesRead.Add(1)

		m.processFrame(ctx, frame)
		m.source.Release(frame)

		if !m.sleep(ctx) {
			m.stop()
			return nil
		}
	}
}

// Status returns the last published pipeline status. Safe for concurrent use.
func (m *Manager[F]) Status() model.PipelineStatus {
	return *m.status.Load()
}

func (m *Manager[F]) processFrame(ctx context.Context, frame F) {
	detections, err := m.detector.Detect(frame)
	if err != nil {
		m.opts.Metrics.DetectErrors.Add(1)
		m.logger.Error("Błąd detekcji obiektów: %v", err)
		return
	}
	m.opts.Metrics.Detections.Add(uint64(len(detections)))

	m.sendToViewers(frame, detections)

	payload, err := m.aggregator.ProcessFrame(detections, frame)
	if err != nil {
		if errors.Is(err, episode.ErrEncode) {
			m.opts.Metrics.EncodeErrors.Add(1)
		}
		m.logger.Warning("Frame skipped from episode: %v", err)
	}

	snap := m.aggregator.Snapshot()
	if snap.State == episode.StateOpen {
		m.opts.Metrics.FramesWithTargets.Add(1)
	}
	m.opts.Metrics.SetEpisode(snap.State == episode.StateOpen, snap.Images)

	if payload == nil {
		m.publishStatus("", "")
		return
	}
	m.dispatch(ctx, payload)
}

// dispatch locates, submits and journals a closed episode. The episode is
// already cleared; nothing here can reopen it.
func (m *Manager[F]) dispatch(ctx context.Context, payload *model.AlertPayload) {
	m.episodes.Add(1)
	m.opts.Metrics.Episodes.Add(1)

	detached := context.WithoutCancel(ctx)
	payload = payload.WithLocation(m.locate(detached))

	log := m.logger.With(map[string]interface{}{
		"episode": payload.EpisodeID,
		"images":  len(payload.Images),
	})

	submitCtx, cancel := context.WithTimeout(detached, m.opts.SubmitTimeout)
	delivery, err := m.submitter.Submit(submitCtx, payload)
	cancel()

	m.opts.Metrics.ObserveSubmit(delivery.Latency, err == nil, len(payload.Images))
	if err != nil {
		log.Error("Alert not delivered: %v", err)
	} else {
		log.Info("📤 Alert delivered: %s (categories %v)", payload.Description, payload.CategoryIDs)
	}

	if m.opts.Journal != nil {
		if err := m.opts.Journal.Record(payload, delivery); err != nil {
			m.opts.Metrics.JournalErrors.Add(1)
			log.Warning("Episode not journaled: %v", err)
		}
	}

	m.publishStatus(payload.EpisodeID, delivery.Status)
}

func (m *Manager[F]) locate(ctx context.Context) *model.Location {
	if m.opts.Locator == nil {
		return nil
	}

	locCtx, cancel := context.WithTimeout(ctx, m.opts.LocateTimeout)
	defer cancel()

	loc, err := m.opts.Locator.Locate(locCtx)
	if err != nil {
		m.logger.Warning("Location unavailable, sending alert without coordinates: %v", err)
		return nil
	}
	return loc
}

type viewerMessage struct {
	Camera     string            `json:"camera"`
	Image      string            `json:"image"`
	Detections []model.Detection `json:"detections"`
	State      episode.State     `json:"state"`
	Timestamp  time.Time         `json:"timestamp"`
}

func (m *Manager[F]) sendToViewers(frame F, detections []model.Detection) {
	if m.opts.Viewer == nil || m.opts.Annotator == nil {
		return
	}
	clients := m.opts.Viewer.ClientCount()
	m.opts.Metrics.ViewerClients.Store(int64(clients))
	if clients == 0 {
		return
	}

	image, err := m.opts.Annotator.Annotate(frame, detections)
	if err != nil {
		m.logger.Error("Failed to draw rectangles: %v", err)
		return
	}
	if detections == nil {
		detections = []model.Detection{}
	}

	msg, err := json.Marshal(viewerMessage{
		Camera:     m.opts.CameraName,
		Image:      base64.StdEncoding.EncodeToString(image),
		Detections: detections,
		State:      m.aggregator.State(),
		Timestamp:  time.Now(),
	})
	if err != nil {
		m.logger.Error("Failed to encode viewer message: %v", err)
		return
	}
	m.opts.Viewer.Broadcast(msg)
}

// sleep waits for the configured interval. It returns false when ctx is
// cancelled first.
func (m *Manager[F]) sleep(ctx context.Context) bool {
	if m.opts.Interval <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(m.opts.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (m *Manager[F]) stop() {
	if snap := m.aggregator.Snapshot(); snap.State == episode.StateOpen {
		m.logger.Warning("Stopping with an open episode (%v, %d images); it is discarded", snap.Labels, snap.Images)
	}
	m.logger.Info("🛑 Manager stopped after %d frames, %d episodes", m.framesRead.Load(), m.episodes.Load())
}

func (m *Manager[F]) publishStatus(lastEpisode, lastDelivery string) {
	prev := m.status.Load()
	if prev != nil && lastEpisode == "" {
		lastEpisode, lastDelivery = prev.LastEpisodeID, prev.LastDelivery
	}

	snap := m.aggregator.Snapshot()
	m.status.Store(&model.PipelineStatus{
		State:          string(snap.State),
		ActiveLabels:   snap.Labels,
		BufferedImages: snap.Images,
		FramesRead:     m.framesRead.Load(),
		Episodes:       m.episodes.Load(),
		LastEpisodeID:  lastEpisode,
		LastDelivery:   lastDelivery,
		UpdatedAt:      time.Now(),
	})
}
