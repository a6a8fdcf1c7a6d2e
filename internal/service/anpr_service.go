package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yard-anpr-service/internal/cache"
	"yard-anpr-service/internal/domain/anpr"
	"yard-anpr-service/internal/domain/yard"
	"yard-anpr-service/internal/events"
	"yard-anpr-service/internal/repository"
	"yard-anpr-service/internal/utils"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	// ErrNotEligible means the allocation no longer qualifies once re-read under lock.
	ErrNotEligible = errors.New("allocation no longer eligible")
)

type AllocationStore interface {
	ListAllocationCandidates(ctx context.Context, tenantID uuid.UUID, direction anpr.Direction) ([]yard.TruckAllocation, error)
	ApplyAllocationTransition(ctx context.Context, allocationID uuid.UUID, decide func(current yard.TruckAllocation) (yard.Transition, error)) (yard.TruckAllocation, yard.Transition, error)
}

type VisitStore interface {
	OpenVisit(ctx context.Context, visit *yard.Visit, entry *yard.SiteJourneyEntry) error
	ListOpenVisits(ctx context.Context, tenantID uuid.UUID) ([]yard.Visit, error)
	CloseVisit(ctx context.Context, visitID uuid.UUID, departedAt time.Time, entry *yard.SiteJourneyEntry) (bool, error)
}

type TicketStore interface {
	TicketExists(ctx context.Context, owner yard.TicketOwner) (bool, error)
	LatestTicketNumber(ctx context.Context, tenantID uuid.UUID, prefix string) (string, error)
	CreateTicket(ctx context.Context, t *yard.ParkingTicket) error
	LoadTicketContext(ctx context.Context, allocationID uuid.UUID) (*yard.TicketContext, error)
	FindTicketByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*yard.ParkingTicket, error)
}

type Store interface {
	AllocationStore
	VisitStore
	TicketStore
}

// Sites is the two-site topology the journey rules are written for.
type Sites struct {
	Home        int
	Destination int
}

type OutcomeKind string

const (
	OutcomeAllocationArrival   OutcomeKind = "allocation_arrival"
	OutcomeAllocationDeparture OutcomeKind = "allocation_departure"
	OutcomeVisitOpened         OutcomeKind = "visit_opened"
	OutcomeVisitClosed         OutcomeKind = "visit_closed"
	OutcomeNoMatch             OutcomeKind = "no_match"
	OutcomeStale               OutcomeKind = "stale_match"
	// OutcomeAlreadyRecorded is a replayed feed detection that already has a journey entry.
	OutcomeAlreadyRecorded     OutcomeKind = "already_recorded"
)

// Outcome reports what a detection did. Processed is false for the expected
// no-match steady state.
type Outcome struct {
	Processed  bool                   `json:"processed"`
	Kind       OutcomeKind            `json:"kind"`
	SiteID     int                    `json:"site_id"`
	Allocation *yard.TruckAllocation  `json:"allocation,omitempty"`
	Visit      *yard.Visit            `json:"visit,omitempty"`
	Entry      *yard.SiteJourneyEntry `json:"journey_entry,omitempty"`
	Ticket     *yard.ParkingTicket    `json:"parking_ticket,omitempty"`
}

// JourneyService runs one detection through matching, the journey state machine and
// the unmatched-visit fallback. Callers serialise invocations.
type JourneyService struct {
	store    Store
	cache    cache.Invalidator
	events   events.Publisher
	tenantID uuid.UUID
	sites    Sites
	log      zerolog.Logger
	now      func() time.Time
}

func NewJourneyService(
	store Store,
	invalidator cache.Invalidator,
	publisher events.Publisher,
	tenantID uuid.UUID,
	sites Sites,
	log zerolog.Logger,
) *JourneyService {
	if invalidator == nil {
		invalidator = cache.Noop{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &JourneyService{
		store:    store,
		cache:    invalidator,
		events:   publisher,
		tenantID: tenantID,
		sites:    sites,
		log:      log.With().Str("component", "journey").Logger(),
		now:      time.Now,
	}
}

func (s *JourneyService) TenantID() uuid.UUID { return s.tenantID }

func (s *JourneyService) HomeSite() int { return s.sites.Home }

// ProcessDetection is the single code path for every state transition. A returned
// error means nothing was committed and the detection may be retried.
func (s *JourneyService) ProcessDetection(ctx context.Context, d anpr.Detection) (Outcome, error) {
	normalized := utils.NormalizePlate(d.Plate)
	if normalized == "" {
		return Outcome{}, fmt.Errorf("%w: plate cannot be empty after normalization", ErrInvalidInput)
	}
	if _, err := anpr.ParseDirection(string(d.Direction)); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if d.DetectedAt.IsZero() {
		d.DetectedAt = s.now()
	}
	if d.Method == "" {
		d.Method = anpr.MethodANPRAuto
	}
	site := d.Site(s.sites.Home)

	log := s.log.With().
		Int64("detection_id", d.ID).
		Str("plate", normalized).
		Str("direction", string(d.Direction)).
		Int("site_id", site).
		Logger()

	candidates, err := s.store.ListAllocationCandidates(ctx, s.tenantID, d.Direction)
	if err != nil {
		log.Error().Err(err).Msg("failed to load allocation candidates")
		return Outcome{}, fmt.Errorf("failed to load allocation candidates: %w", err)
	}

	if alloc, ok := MatchAllocation(normalized, d.Direction, candidates); ok {
		return s.processMatched(ctx, log, d, site, alloc)
	}

	log.Debug().Int("candidates", len(candidates)).Msg("no allocation matched, using visit tracker")
	switch d.Direction {
	case anpr.DirectionEntry:
		return s.openVisit(ctx, log, d, site)
	case anpr.DirectionExit:
		return s.closeVisit(ctx, log, d, normalized, site)
	default:
		return Outcome{}, fmt.Errorf("%w: unknown direction %q", ErrInvalidInput, d.Direction)
	}
}

func (s *JourneyService) processMatched(ctx context.Context, log zerolog.Logger, d anpr.Detection, site int, matched yard.TruckAllocation) (Outcome, error) {
	log = log.With().Str("allocation_id", matched.ID.String()).Logger()

	var decide func(yard.TruckAllocation) (yard.Transition, error)
	kind := OutcomeAllocationArrival
	switch d.Direction {
	case anpr.DirectionEntry:
		decide = func(current yard.TruckAllocation) (yard.Transition, error) {
			return decideArrival(d, site, current)
		}
	case anpr.DirectionExit:
		kind = OutcomeAllocationDeparture
		decide = func(current yard.TruckAllocation) (yard.Transition, error) {
			return decideDeparture(d, site, current, s.sites)
		}
	default:
		return Outcome{}, fmt.Errorf("%w: unknown direction %q", ErrInvalidInput, d.Direction)
	}

	alloc, transition, err := s.store.ApplyAllocationTransition(ctx, matched.ID, decide)
	if errors.Is(err, repository.ErrDuplicate) {
		return s.alreadyRecorded(log, site), nil
	}
	if errors.Is(err, ErrNotEligible) || errors.Is(err, repository.ErrNotFound) {
		// Another writer moved the allocation between the match and the lock.
		log.Info().Err(err).Msg("matched allocation changed before commit, detection ignored")
		return Outcome{Kind: OutcomeStale, SiteID: site}, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to record allocation journey")
		return Outcome{}, fmt.Errorf("failed to record allocation journey: %w", err)
	}

	out := Outcome{
		Processed:  true,
		Kind:       kind,
		SiteID:     site,
		Allocation: &alloc,
		Entry:      &transition.Entry,
	}

	ev := log.Info().
		Str("event_type", string(transition.Entry.EventType)).
		Str("status", string(alloc.Status))
	if transition.Status != nil {
		ev = ev.Str("new_status", string(*transition.Status))
	}
	ev.Msg("recorded allocation journey event")
	if d.Direction == anpr.DirectionExit && transition.Status == nil {
		log.Warn().Int("site_id", site).Msg("no exit status mapping for site, allocation left unchanged")
	}

	if d.Direction == anpr.DirectionEntry && site == s.sites.Home {
		out.Ticket = s.issueAllocationTicket(ctx, log, d, site, alloc)
	}

	s.invalidate(ctx, log, cache.AllocationsPattern(s.tenantID), cache.JourneysPattern(s.tenantID))
	s.publish(out, d)
	return out, nil
}

func (s *JourneyService) alreadyRecorded(log zerolog.Logger, site int) Outcome {
	log.Info().Msg("detection already has a journey entry, skipping replay")
	return Outcome{Kind: OutcomeAlreadyRecorded, SiteID: site}
}

func (s *JourneyService) invalidate(ctx context.Context, log zerolog.Logger, patterns ...string) {
	if err := s.cache.Invalidate(ctx, patterns...); err != nil {
		log.Warn().Err(err).Strs("patterns", patterns).Msg("cache invalidation failed")
	}
}

func (s *JourneyService) publish(out Outcome, d anpr.Detection) {
	ev := events.JourneyEvent{
		Kind:       events.Kind(out.Kind),
		Plate:      d.Plate,
		Direction:  string(d.Direction),
		SiteID:     out.SiteID,
		DetectedAt: d.DetectedAt,
	}
	if out.Allocation != nil {
		ev.AllocationID = &out.Allocation.ID
		ev.Status = string(out.Allocation.Status)
	}
	if out.Visit != nil {
		ev.VisitID = &out.Visit.ID
		ev.Status = string(out.Visit.Status)
	}
	if out.Ticket != nil {
		ev.TicketNumber = out.Ticket.TicketNumber
	}
	s.events.Publish(ev)
}

// FindTicket looks up a parking ticket by its number.
func (s *JourneyService) FindTicket(ctx context.Context, number string) (*yard.ParkingTicket, error) {
	if number == "" {
		return nil, fmt.Errorf("%w: ticket number is required", ErrInvalidInput)
	}
	t, err := s.store.FindTicketByNumber(ctx, s.tenantID, number)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: parking ticket %s", ErrNotFound, number)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find parking ticket: %w", err)
	}
	return t, nil
}
