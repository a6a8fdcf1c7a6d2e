package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"yard-anpr-service/internal/domain/anpr"
)

var (
	ErrBadStatus        = errors.New("detection feed returned non-2xx status")
	ErrMalformedPayload = errors.New("detection feed returned malformed payload")
)

// Source returns the most recent detections. limit asks for a window size; a feed may
// return more.
type Source interface {
	Latest(ctx context.Context, limit int) ([]anpr.Detection, error)
}

// HTTPSource reads the camera feed over HTTP.
type HTTPSource struct {
	url     string
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

func NewHTTPSource(feedURL string, timeout time.Duration, log zerolog.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		url:     feedURL,
		client:  &http.Client{},
		timeout: timeout,
		log:     log.With().Str("component", "feed").Logger(),
	}
}

// Latest fetches one batch. Rows that fail validation are dropped with a warning; a
// payload that does not decode or reports success=false is ErrMalformedPayload.
func (s *HTTPSource) Latest(ctx context.Context, limit int) ([]anpr.Detection, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.requestURL(limit), nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch detections: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var payload anpr.FeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if !payload.Success {
		return nil, fmt.Errorf("%w: success=false", ErrMalformedPayload)
	}

	detections := make([]anpr.Detection, 0, len(payload.Data))
	for _, row := range payload.Data {
		d, err := row.ToDetection()
		if err != nil {
			s.log.Warn().Err(err).Msg("dropping invalid detection")
			continue
		}
		detections = append(detections, d)
	}
	// Rows are returned as served, whatever their order or count; the poller
	// filters and sorts them.
	return detections, nil
}

func (s *HTTPSource) requestURL(limit int) string {
	if limit <= 0 {
		return s.url
	}
	u, err := url.Parse(s.url)
	if err != nil {
		return s.url
	}
	q := u.Query()
	if q.Get("limit") == "" {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
