package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"alertcam/internal/model"

	"github.com/hashicorp/go-retryablehttp"
)

// StatusError is returned when the alert endpoint answers with anything
// other than 200.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("alert endpoint returned status %d", e.Code)
	}
	return fmt.Sprintf("alert endpoint returned status %d: %s", e.Code, e.Body)
}

// requestBody is the JSON document accepted by the alert endpoint.
type requestBody struct {
	Description string   `json:"descripcion"`
	Latitude    *float64 `json:"latitud"`
	Longitude   *float64 `json:"longitud"`
	Images      []string `json:"image_data"`
	CategoryIDs []string `json:"id_categoria"`
}

// Submitter posts closed episodes to the alerting API. Every payload is sent
// exactly once; failed deliveries are reported, never retried.
type Submitter struct {
	url    string
	client *http.Client
}

// NewSubmitter returns a Submitter whose requests are bounded by timeout.
func NewSubmitter(url string, timeout time.Duration) *Submitter {
	rC := retryablehttp.NewClient()
	rC.Logger = nil
	rC.RetryMax = 0
	rC.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, err
	}
	rC.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := rC.StandardClient()
	client.Timeout = timeout

	return &Submitter{url: url, client: client}
}

// Submit sends one alert and reports how it went. The returned Delivery is
// always filled in, also when err is non-nil.
func (s *Submitter) Submit(ctx context.Context, payload *model.AlertPayload) (model.Delivery, error) {
	start := time.Now()
	delivery := model.Delivery{Status: model.DeliveryFailed}

	body, err := json.Marshal(newRequestBody(payload))
	if err != nil {
		delivery.Error = err.Error()
		return delivery, fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		delivery.Error = err.Error()
		return delivery, fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	delivery.Latency = time.Since(start)
	if err != nil {
		delivery.Error = err.Error()
		return delivery, fmt.Errorf("failed to post alert: %w", err)
	}
	defer resp.Body.Close()

	delivery.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
		delivery.Error = statusErr.Error()
		return delivery, statusErr
	}
	io.Copy(io.Discard, resp.Body)

	delivery.Status = model.DeliveryDelivered
	return delivery, nil
}

func newRequestBody(p *model.AlertPayload) requestBody {
	images := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, img.Base64())
	}
	ids := p.CategoryIDs
	if ids == nil {
		ids = []string{}
	}
	return requestBody{
		Description: p.Description,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Images:      images,
		CategoryIDs: ids,
	}
}
