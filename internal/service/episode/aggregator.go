package episode

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"alertcam/internal/model"

	"github.com/google/uuid"
)

// ErrEncode is returned by ProcessFrame when the frame of a target
// detection could not be encoded. The episode is not affected beyond the
// missing image.
var ErrEncode = errors.New("encode frame")

// State is the aggregator state.
type State string

const (
	StateEmpty State = "EMPTY"
	StateOpen  State = "OPEN"
)

// Encoder serializes a raw frame into a compressed image.
type Encoder[F any] interface {
	Encode(frame F) (model.EncodedImage, error)
}

// Options tune an Aggregator.
type Options struct {
	// Description is sent with every alert. When empty it is derived from
	// the labels seen during the episode.
	Description string
	// MaxImages caps the images buffered per episode. 0 means no cap.
	MaxImages int
	// MinConfidence drops detections below this score.
	MinConfidence float64
	// Now is the clock used for episode timestamps.
	Now func() time.Time
}

// Snapshot is a copy of the aggregator state.
type Snapshot struct {
	State  State
	Labels []string
	Images int
}

// Aggregator groups consecutive frames containing target classes into a
// single episode and emits one AlertPayload when a frame without targets
// arrives.
//
// An Aggregator is not safe for concurrent use; frames must be processed in
// arrival order by a single goroutine.
type Aggregator[F any] struct {
	registry *Registry
	encoder  Encoder[F]
	opts     Options

	active    map[string]struct{}
	images    []model.EncodedImage
	frames    int
	dropped   int
	startedAt time.Time
}

// NewAggregator returns an empty aggregator.
func NewAggregator[F any](registry *Registry, encoder Encoder[F], opts Options) *Aggregator[F] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator[F]{
		registry: registry,
		encoder:  encoder,
		opts:     opts,
		active:   make(map[string]struct{}),
	}
}

// ProcessFrame feeds the detections of one frame into the episode.
//
// It returns a payload only when this frame has no target detection and an
// episode is open; the episode is cleared in the same call. A non-nil error
// wraps ErrEncode and never comes with a payload.
func (a *Aggregator[F]) ProcessFrame(detections []model.Detection, frame F) (*model.AlertPayload, error) {
	seen := a.targets(detections)

	if len(seen) == 0 {
		if len(a.active) == 0 {
			return nil, nil
		}
		return a.flush(), nil
	}

	if len(a.active) == 0 {
		a.startedAt = a.opts.Now()
	}
	for _, label := range seen {
		a.active[label] = struct{}{}
	}
	a.frames++

	if a.opts.MaxImages > 0 && len(a.images) >= a.opts.MaxImages {
		a.dropped++
		return nil, nil
	}

	img, err := a.encoder.Encode(frame)
	if err != nil {
		a.dropped++
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	a.images = append(a.images, img)
	return nil, nil
}

// State reports whether an episode is open.
func (a *Aggregator[F]) State() State {
	if len(a.active) == 0 {
		return StateEmpty
	}
	return StateOpen
}

// Snapshot returns a copy of the current episode state.
func (a *Aggregator[F]) Snapshot() Snapshot {
	return Snapshot{
		State:  a.State(),
		Labels: a.activeLabels(),
		Images: len(a.images),
	}
}

// targets returns the distinct registered labels among the detections, in
// detection order.
func (a *Aggregator[F]) targets(detections []model.Detection) []string {
	var seen []string
	for _, det := range detections {
		if det.Confidence < a.opts.MinConfidence {
			continue
		}
		if _, ok := a.registry.Lookup(det.Label); !ok {
			continue
		}
		duplicate := false
		for _, label := range seen {
			if label == det.Label {
				duplicate = true
				break
			}
		}
		if !duplicate {
			seen = append(seen, det.Label)
		}
	}
	return seen
}

func (a *Aggregator[F]) flush() *model.AlertPayload {
	labels := a.activeLabels()

	ids := make([]string, 0, len(labels))
	categories := make(map[string]string, len(labels))
	known := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		id, _ := a.registry.Lookup(label)
		categories[label] = id
		if _, dup := known[id]; dup {
			continue
		}
		known[id] = struct{}{}
		ids = append(ids, id)
	}

	description := a.opts.Description
	if description == "" {
		description = describe(labels)
	}

	payload := &model.AlertPayload{
		EpisodeID:     uuid.NewString(),
		Description:   description,
		Images:        a.images,
		CategoryIDs:   ids,
		Labels:        labels,
		Categories:    categories,
		StartedAt:     a.startedAt,
		EndedAt:       a.opts.Now(),
		Frames:        a.frames,
		DroppedImages: a.dropped,
	}
	if payload.Images == nil {
		payload.Images = []model.EncodedImage{}
	}

	a.active = make(map[string]struct{})
	a.images = nil
	a.frames = 0
	a.dropped = 0
	a.startedAt = time.Time{}

	return payload
}

func (a *Aggregator[F]) activeLabels() []string {
	labels := make([]string, 0, len(a.active))
	for label := range a.active {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// describe builds "Cell phone, clock detectado" from the episode labels.
func describe(labels []string) string {
	text := strings.Join(labels, ", ")
	r, size := utf8.DecodeRuneInString(text)
	if r == utf8.RuneError {
		return "Objeto detectado"
	}
	return string(unicode.ToUpper(r)) + text[size:] + " detectado"
}
