package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"yard-anpr-service/internal/cache"
	"yard-anpr-service/internal/domain/anpr"
	"yard-anpr-service/internal/domain/yard"
	"yard-anpr-service/internal/repository"
	"yard-anpr-service/internal/utils"
)

const unknownDriver = "Unknown"

func (s *JourneyService) openVisit(ctx context.Context, log zerolog.Logger, d anpr.Detection, site int) (Outcome, error) {
	visit := yard.Visit{
		TenantID:         s.tenantID,
		PlateNumber:      d.Plate,
		DriverName:       unknownDriver,
		SiteID:           site,
		Status:           yard.VisitArrived,
		ScheduledArrival: d.DetectedAt,
		ActualArrival:    d.DetectedAt,
	}
	entry := journeyEntry(d, site, yard.EventArrival, yard.JourneyArrived)
	entry.TenantID = s.tenantID

	err := s.store.OpenVisit(ctx, &visit, &entry)
	if errors.Is(err, repository.ErrDuplicate) {
		return s.alreadyRecorded(log, site), nil
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to open visit")
		return Outcome{}, fmt.Errorf("failed to open visit: %w", err)
	}
	log = log.With().Str("visit_id", visit.ID.String()).Logger()
	log.Info().Msg("opened visit for unmatched plate")

	out := Outcome{
		Processed: true,
		Kind:      OutcomeVisitOpened,
		SiteID:    site,
		Visit:     &visit,
		Entry:     &entry,
	}
	if site == s.sites.Home {
		out.Ticket = s.issueVisitTicket(ctx, log, d, site, visit)
	}

	s.invalidate(ctx, log, cache.VisitsPattern(s.tenantID), cache.JourneysPattern(s.tenantID))
	s.publish(out, d)
	return out, nil
}

func (s *JourneyService) closeVisit(ctx context.Context, log zerolog.Logger, d anpr.Detection, plate string, site int) (Outcome, error) {
	open, err := s.store.ListOpenVisits(ctx, s.tenantID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load open visits")
		return Outcome{}, fmt.Errorf("failed to load open visits: %w", err)
	}

	visit, ok := LatestOpenVisit(plate, open)
	if !ok {
		log.Debug().Msg("exit without allocation or open visit, nothing to record")
		return Outcome{Kind: OutcomeNoMatch, SiteID: site}, nil
	}
	log = log.With().Str("visit_id", visit.ID.String()).Logger()

	entry := journeyEntry(d, site, yard.EventDeparture, yard.JourneyDeparted)
	entry.TenantID = s.tenantID

	closed, err := s.store.CloseVisit(ctx, visit.ID, d.DetectedAt, &entry)
	if errors.Is(err, repository.ErrDuplicate) {
		return s.alreadyRecorded(log, site), nil
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to close visit")
		return Outcome{}, fmt.Errorf("failed to close visit: %w", err)
	}
	if !closed {
		log.Info().Msg("visit already closed, detection ignored")
		return Outcome{Kind: OutcomeStale, SiteID: site}, nil
	}

	departed := d.DetectedAt
	visit.Status = yard.VisitCompleted
	visit.DepartureTime = &departed
	log.Info().Msg("closed visit")

	out := Outcome{
		Processed: true,
		Kind:      OutcomeVisitClosed,
		SiteID:    site,
		Visit:     &visit,
		Entry:     &entry,
	}
	s.invalidate(ctx, log, cache.VisitsPattern(s.tenantID), cache.JourneysPattern(s.tenantID))
	s.publish(out, d)
	return out, nil
}

// LatestOpenVisit returns the most recently arrived open visit for the plate.
func LatestOpenVisit(plate string, visits []yard.Visit) (yard.Visit, bool) {
	var (
		best  yard.Visit
		found bool
	)
	for _, v := range visits {
		if v.Status != yard.VisitArrived || utils.NormalizePlate(v.PlateNumber) != plate {
			continue
		}
		if !found || v.ActualArrival.After(best.ActualArrival) {
			best = v
			found = true
		}
	}
	return best, found
}
