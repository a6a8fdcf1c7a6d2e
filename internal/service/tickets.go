package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"yard-anpr-service/internal/cache"
	"yard-anpr-service/internal/domain/anpr"
	"yard-anpr-service/internal/domain/yard"
	"yard-anpr-service/internal/repository"
)

const (
	ticketPersonOnDuty   = "ANPR System"
	unmatchedRemarks     = "Non-Matched Plate - No Scheduled Allocation"
	ticketSequenceDigits = 6
	ticketCreateAttempts = 3
)

// TicketPrefix is the per-year prefix of parking ticket numbers, e.g. "PT-2026-".
func TicketPrefix(year int) string {
	return fmt.Sprintf("PT-%d-", year)
}

// NextTicketNumber derives the number following latest within year. An empty or
// unparsable latest starts the sequence at 1.
func NextTicketNumber(latest string, year int) string {
	prefix := TicketPrefix(year)
	next := 1
	if strings.HasPrefix(latest, prefix) {
		if n, err := strconv.Atoi(strings.TrimPrefix(latest, prefix)); err == nil && n > 0 {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, ticketSequenceDigits, next)
}

func (s *JourneyService) issueAllocationTicket(ctx context.Context, log zerolog.Logger, d anpr.Detection, site int, alloc yard.TruckAllocation) *yard.ParkingTicket {
	t := yard.ParkingTicket{
		TenantID:     s.tenantID,
		AllocationID: &alloc.ID,
		VehicleReg:   alloc.VehicleReg,
		DriverName:   alloc.DriverName,
		SiteID:       site,
		Status:       yard.TicketPending,
		PersonOnDuty: ticketPersonOnDuty,
		ArrivalTime:  d.DetectedAt,
	}

	tc, err := s.store.LoadTicketContext(ctx, alloc.ID)
	if err != nil {
		log.Warn().Err(err).Msg("ticket context unavailable, issuing ticket from allocation only")
	} else if tc.Order != nil {
		t.OrderNumber = tc.Order.OrderNumber
		t.ClientName = tc.Order.ClientName
		t.TransporterName = tc.Order.TransporterName
		t.Product = tc.Order.Product
	}

	return s.issueTicket(ctx, log, yard.AllocationOwner(alloc.ID), t)
}

func (s *JourneyService) issueVisitTicket(ctx context.Context, log zerolog.Logger, d anpr.Detection, site int, visit yard.Visit) *yard.ParkingTicket {
	t := yard.ParkingTicket{
		TenantID:     s.tenantID,
		VisitID:      &visit.ID,
		VehicleReg:   d.Plate,
		DriverName:   unknownDriver,
		SiteID:       site,
		Status:       yard.TicketPending,
		PersonOnDuty: ticketPersonOnDuty,
		ArrivalTime:  d.DetectedAt,
		Remarks:      unmatchedRemarks,
	}
	return s.issueTicket(ctx, log, yard.VisitOwner(visit.ID), t)
}

// issueTicket runs after the journey entry is committed, so failures are logged and
// swallowed. It returns nil when no new ticket was created.
func (s *JourneyService) issueTicket(ctx context.Context, log zerolog.Logger, owner yard.TicketOwner, t yard.ParkingTicket) *yard.ParkingTicket {
	exists, err := s.store.TicketExists(ctx, owner)
	if err != nil {
		log.Error().Err(err).Msg("failed to check existing parking ticket")
		return nil
	}
	if exists {
		log.Debug().Msg("parking ticket already issued")
		return nil
	}

	year := t.ArrivalTime.Year()
	prefix := TicketPrefix(year)
	for attempt := 1; attempt <= ticketCreateAttempts; attempt++ {
		latest, err := s.store.LatestTicketNumber(ctx, s.tenantID, prefix)
		if err != nil {
			log.Error().Err(err).Msg("failed to read latest ticket number")
			return nil
		}
		t.TicketNumber = NextTicketNumber(latest, year)

		err = s.store.CreateTicket(ctx, &t)
		if err == nil {
			log.Info().Str("ticket_number", t.TicketNumber).Msg("issued parking ticket")
			s.invalidate(ctx, log, cache.TicketsPattern(s.tenantID))
			return &t
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			log.Error().Err(err).Str("ticket_number", t.TicketNumber).Msg("failed to create parking ticket")
			return nil
		}

		// Either the number was taken or the owner got a ticket concurrently.
		exists, err := s.store.TicketExists(ctx, owner)
		if err != nil {
			log.Error().Err(err).Msg("failed to check existing parking ticket")
			return nil
		}
		if exists {
			return nil
		}
		log.Debug().Str("ticket_number", t.TicketNumber).Int("attempt", attempt).Msg("ticket number taken, retrying")
	}

	log.Error().Str("prefix", prefix).Msg("gave up allocating a parking ticket number")
	return nil
}
