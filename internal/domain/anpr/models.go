package anpr

import (
	"fmt"
	"strings"
	"time"
)

type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
)

// ParseDirection accepts the feed's spelling in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionEntry:
		return DirectionEntry, nil
	case DirectionExit:
		return DirectionExit, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

type DetectionMethod string

const (
	MethodANPRAuto     DetectionMethod = "anpr_auto"
	MethodManualUpload DetectionMethod = "manual_upload"
	MethodManualEntry  DetectionMethod = "manual_entry"
	MethodSystem       DetectionMethod = "system"
)

// Detection is one plate read. It is never persisted as such.
type Detection struct {
	ID         int64
	Plate      string
	DetectedAt time.Time
	Direction  Direction
	// SiteID is nil when the camera did not report one; the home site applies.
	SiteID     *int
	CameraType string
	Method     DetectionMethod
}

// Site resolves the detection's site against the configured home site.
func (d Detection) Site(home int) int {
	if d.SiteID != nil {
		return *d.SiteID
	}
	return home
}

// FeedResponse is the Detection Source wire payload.
type FeedResponse struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Data    []FeedDetection `json:"data"`
}

type FeedDetection struct {
	ID          int64     `json:"id"`
	PlateNumber string    `json:"plateNumber"`
	DetectedAt  time.Time `json:"detectedAt"`
	CameraType  string    `json:"cameraType"`
	Direction   string    `json:"direction"`
	SiteID      *int      `json:"siteId,omitempty"`
}

// ToDetection validates a feed row.
func (f FeedDetection) ToDetection() (Detection, error) {
	if f.ID <= 0 {
		return Detection{}, fmt.Errorf("detection id must be positive, got %d", f.ID)
	}
	if strings.TrimSpace(f.PlateNumber) == "" {
		return Detection{}, fmt.Errorf("detection %d has no plate", f.ID)
	}
	if f.DetectedAt.IsZero() {
		return Detection{}, fmt.Errorf("detection %d has no timestamp", f.ID)
	}
	dir, err := ParseDirection(f.Direction)
	if err != nil {
		return Detection{}, fmt.Errorf("detection %d: %w", f.ID, err)
	}
	return Detection{
		ID:         f.ID,
		Plate:      strings.TrimSpace(f.PlateNumber),
		DetectedAt: f.DetectedAt,
		Direction:  dir,
		SiteID:     f.SiteID,
		CameraType: f.CameraType,
		Method:     MethodANPRAuto,
	}, nil
}
