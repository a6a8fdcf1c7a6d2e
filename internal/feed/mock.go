package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"yard-anpr-service/internal/domain/anpr"
)

// MockSource is an in-memory feed with the same retention semantics as the cameras:
// it only remembers the most recent detections.
type MockSource struct {
	mu        sync.Mutex
	nextID    int64
	retention int
	items     []anpr.Detection
	now       func() time.Time
}

func NewMockSource(retention int) *MockSource {
	if retention <= 0 {
		retention = 50
	}
	return &MockSource{
		nextID:    1,
		retention: retention,
		now:       time.Now,
	}
}

// Push records a detection and returns it with its assigned id.
func (m *MockSource) Push(plate string, direction anpr.Direction, siteID *int) anpr.Detection {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := anpr.Detection{
		ID:         m.nextID,
		Plate:      strings.TrimSpace(plate),
		DetectedAt: m.now(),
		Direction:  direction,
		SiteID:     siteID,
		CameraType: "mock",
		Method:     anpr.MethodANPRAuto,
	}
	m.nextID++
	m.items = append(m.items, d)
	if len(m.items) > m.retention {
		m.items = m.items[len(m.items)-m.retention:]
	}
	return d
}

// Latest returns newest-first, like the camera feed.
func (m *MockSource) Latest(_ context.Context, limit int) ([]anpr.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]anpr.Detection, 0, n)
	for i := len(m.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.items[i])
	}
	return out, nil
}
