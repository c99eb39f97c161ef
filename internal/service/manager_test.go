package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"alertcam/internal/logger"
	"alertcam/internal/metrics"
	"alertcam/internal/model"
	"alertcam/internal/service/alert"
	"alertcam/internal/service/episode"
)

var errExhausted = errors.New("exhausted")

// fakeSource yields frames 1..n and then fails. onFrame runs before a frame
// is returned.
type fakeSource struct {
	n        int
	next     int
	released []int
	onFrame  func(frame int)
}

func (s *fakeSource) NextFrame(ctx context.Context) (int, error) {
	if s.next >= s.n {
		return 0, errExhausted
	}
	s.next++
	if s.onFrame != nil {
		s.onFrame(s.next)
	}
	return s.next, nil
}

func (s *fakeSource) Release(frame int) {
	s.released = append(s.released, frame)
}

// fakeDetector returns the labels scripted for each frame.
type fakeDetector struct {
	labels map[int][]string
	fail   map[int]bool
}

func (d *fakeDetector) Detect(frame int) ([]model.Detection, error) {
	if d.fail[frame] {
		return nil, fmt.Errorf("inference failed on frame %d", frame)
	}
	var out []model.Detection
	for _, l := range d.labels[frame] {
		out = append(out, model.Detection{Label: l, Confidence: 0.9})
	}
	return out, nil
}

type intEncoder struct{}

func (intEncoder) Encode(frame int) (model.EncodedImage, error) {
	return model.EncodedImage{Data: []byte(fmt.Sprintf("frame-%d", frame)), Format: "jpg"}, nil
}

type recordingSubmitter struct {
	mu       sync.Mutex
	payloads []*model.AlertPayload
	ctxErrs  []error
	err      error
}

func (s *recordingSubmitter) Submit(ctx context.Context, p *model.AlertPayload) (model.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, p)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	if s.err != nil {
		return model.Delivery{Status: model.DeliveryFailed, Error: s.err.Error()}, s.err
	}
	return model.Delivery{Status: model.DeliveryDelivered, StatusCode: 200}, nil
}

type recordingJournal struct {
	deliveries []model.Delivery
	ids        []string
}

func (j *recordingJournal) Record(p *model.AlertPayload, d model.Delivery) error {
	j.ids = append(j.ids, p.EpisodeID)
	j.deliveries = append(j.deliveries, d)
	return nil
}

type fakeLocator struct {
	loc *model.Location
	err error
}

func (l fakeLocator) Locate(ctx context.Context) (*model.Location, error) {
	return l.loc, l.err
}

type fakeViewer struct {
	clients  int
	messages [][]byte
}

func (v *fakeViewer) Broadcast(msg []byte) bool {
	v.messages = append(v.messages, msg)
	return true
}

func (v *fakeViewer) ClientCount() int { return v.clients }

type fakeAnnotator struct{}

func (fakeAnnotator) Annotate(frame int, dets []model.Detection) ([]byte, error) {
	return []byte(fmt.Sprintf("annotated-%d", frame)), nil
}

func newTestManager(t *testing.T, source *fakeSource, detector *fakeDetector, sub Submitter, opts ManagerOptions[int]) *Manager[int] {
	t.Helper()

	registry, err := episode.NewRegistry(map[string]string{"cell phone": "1", "clock": "2"})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	agg := episode.NewAggregator[int](registry, intEncoder{}, episode.Options{})
	return NewManager[int](source, detector, agg, sub, opts, logger.NewConsole(io.Discard, "debug"))
}

func TestManager_SubmitsOneAlertPerEpisode(t *testing.T) {
	source := &fakeSource{n: 6}
	detector := &fakeDetector{labels: map[int][]string{
		1: {"cell phone"},
		2: {"clock", "person"},
		4: {"clock"},
	}}
	sub := &recordingSubmitter{}
	journal := &recordingJournal{}
	loc := &model.Location{Latitude: 1.5, Longitude: 2.5}

	m := newTestManager(t, source, detector, sub, ManagerOptions[int]{
		Locator: fakeLocator{loc: loc},
		Journal: journal,
	})

	err := m.Run(context.Background())
	if !errors.Is(err, errExhausted) {
		t.Fatalf("Expected frame source error, got %v", err)
	}

	if len(sub.payloads) != 2 {
		t.Fatalf("Expected 2 alerts, got %d", len(sub.payloads))
	}
	first := sub.payloads[0]
	if len(first.Images) != 2 || string(first.Images[1].Data) != "frame-2" {
		t.Errorf("Unexpected images in first alert: %d", len(first.Images))
	}
	if len(first.CategoryIDs) != 2 || first.CategoryIDs[0] != "1" || first.CategoryIDs[1] != "2" {
		t.Errorf("Unexpected category ids %v", first.CategoryIDs)
	}
	if first.Latitude == nil || *first.Latitude != 1.5 {
		t.Errorf("Expected latitude to be attached, got %v", first.Latitude)
	}
	if second := sub.payloads[1]; len(second.Images) != 1 || second.CategoryIDs[0] != "2" {
		t.Errorf("Unexpected second alert %+v", second)
	}

	if len(journal.ids) != 2 || journal.ids[0] != first.EpisodeID {
		t.Errorf("Expected both episodes journaled, got %v", journal.ids)
	}
	if len(source.released) != 6 {
		t.Errorf("Expected every frame released, got %v", source.released)
	}

	status := m.Status()
	if status.FramesRead != 6 || status.Episodes != 2 || status.State != string(episode.StateEmpty) {
		t.Errorf("Unexpected status %+v", status)
	}
	if status.LastEpisodeID != sub.payloads[1].EpisodeID || status.LastDelivery != model.DeliveryDelivered {
		t.Errorf("Unexpected last episode in status %+v", status)
	}
}

func TestManager_LocationFailureSendsNullCoordinates(t *testing.T) {
	source := &fakeSource{n: 2}
	detector := &fakeDetector{labels: map[int][]string{1: {"clock"}}}
	sub := &recordingSubmitter{}

	m := newTestManager(t, source, detector, sub, ManagerOptions[int]{
		Locator: fakeLocator{err: errors.New("no database")},
	})
	m.Run(context.Background())

	if len(sub.payloads) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(sub.payloads))
	}
	if sub.payloads[0].Latitude != nil || sub.payloads[0].Longitude != nil {
		t.Error("Expected absent coordinates when location lookup fails")
	}
}

func TestManager_DetectorErrorSkipsFrame(t *testing.T) {
	source := &fakeSource{n: 4}
	detector := &fakeDetector{
		labels: map[int][]string{1: {"clock"}, 3: {"clock"}},
		fail:   map[int]bool{2: true},
	}
	sub := &recordingSubmitter{}
	reg := metrics.New()

	m := newTestManager(t, source, detector, sub, ManagerOptions[int]{Metrics: reg})
	m.Run(context.Background())

	// Frame 2 failed: it must not close the episode opened by frame 1.
	if len(sub.payloads) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(sub.payloads))
	}
	if n := len(sub.payloads[0].Images); n != 2 {
		t.Errorf("Expected frames 1 and 3 in the episode, got %d images", n)
	}
	if reg.DetectErrors.Load() != 1 {
		t.Errorf("Expected 1 detect error, got %d", reg.DetectErrors.Load())
	}
}

// A 500 from the alert endpoint is logged, the episode stays cleared and the
// loop keeps going.
func TestManager_ServerErrorDoesNotStopLoop(t *testing.T) {
	var calls int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source := &fakeSource{n: 4}
	detector := &fakeDetector{labels: map[int][]string{1: {"cell phone"}, 3: {"clock"}}}
	journal := &recordingJournal{}
	reg := metrics.New()

	m := newTestManager(t, source, detector, alert.NewSubmitter(server.URL, time.Second), ManagerOptions[int]{
		Journal: journal,
		Metrics: reg,
	})

	err := m.Run(context.Background())
	if !errors.Is(err, errExhausted) {
		t.Fatalf("Expected the loop to run until the source ends, got %v", err)
	}

	mu.Lock()
	if calls != 2 {
		t.Errorf("Expected 2 submissions without retry, got %d", calls)
	}
	mu.Unlock()
	if len(journal.deliveries) != 2 || journal.deliveries[0].StatusCode != 500 || journal.deliveries[0].Status != model.DeliveryFailed {
		t.Errorf("Unexpected deliveries %+v", journal.deliveries)
	}
	if reg.SubmissionsFailed.Load() != 2 || reg.SubmissionsOK.Load() != 0 {
		t.Errorf("Unexpected submission counters ok=%d failed=%d", reg.SubmissionsOK.Load(), reg.SubmissionsFailed.Load())
	}
	if m.Status().State != string(episode.StateEmpty) {
		t.Errorf("Expected empty state after failed delivery, got %s", m.Status().State)
	}
}

func TestManager_StopDoesNotCancelInFlightSubmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &fakeSource{n: 10}
	source.onFrame = func(frame int) {
		if frame == 2 {
			cancel()
		}
	}
	detector := &fakeDetector{labels: map[int][]string{1: {"clock"}}}
	sub := &recordingSubmitter{}

	m := newTestManager(t, source, detector, sub, ManagerOptions[int]{})

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Expected nil on cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if len(sub.payloads) != 1 {
		t.Fatalf("Expected the episode closed by frame 2 to be submitted, got %d", len(sub.payloads))
	}
	if sub.ctxErrs[0] != nil {
		t.Errorf("Submission context was cancelled: %v", sub.ctxErrs[0])
	}
	if source.next != 2 {
		t.Errorf("Expected no frame read after stop, read %d", source.next)
	}
}

func TestManager_StopWhileSleeping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	source := &fakeSource{n: 100}
	m := newTestManager(t, source, &fakeDetector{}, &recordingSubmitter{}, ManagerOptions[int]{Interval: time.Hour})

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Sleep was not interrupted by cancel")
	}
}

func TestManager_LiveViewBroadcast(t *testing.T) {
	source := &fakeSource{n: 1}
	detector := &fakeDetector{labels: map[int][]string{1: {"clock"}}}
	viewer := &fakeViewer{clients: 1}

	m := newTestManager(t, source, detector, &recordingSubmitter{}, ManagerOptions[int]{
		CameraName: "cam0",
		Viewer:     viewer,
		Annotator:  fakeAnnotator{},
	})
	m.Run(context.Background())

	if len(viewer.messages) != 1 {
		t.Fatalf("Expected 1 viewer message, got %d", len(viewer.messages))
	}
	var msg struct {
		Camera     string            `json:"camera"`
		Image      string            `json:"image"`
		Detections []model.Detection `json:"detections"`
	}
	if err := json.NewDecoder(bytes.NewReader(viewer.messages[0])).Decode(&msg); err != nil {
		t.Fatalf("Failed to decode viewer message: %v", err)
	}
	if msg.Camera != "cam0" || msg.Image != "YW5ub3RhdGVkLTE=" || len(msg.Detections) != 1 {
		t.Errorf("Unexpected viewer message %+v", msg)
	}

	// Nobody watching: nothing is rendered.
	idle := &fakeViewer{}
	m = newTestManager(t, &fakeSource{n: 1}, detector, &recordingSubmitter{}, ManagerOptions[int]{
		Viewer:    idle,
		Annotator: fakeAnnotator{},
	})
	m.Run(context.Background())
	if len(idle.messages) != 0 {
		t.Errorf("Expected no broadcast without clients, got %d", len(idle.messages))
	}
}
