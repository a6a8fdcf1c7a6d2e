package service

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"yard-anpr-service/internal/domain/anpr"
	"yard-anpr-service/internal/domain/yard"
)

func TestMatchAllocationEligibility(t *testing.T) {
	tests := []struct {
		name      string
		direction anpr.Direction
		status    yard.AllocationStatus
		driver    yard.DriverValidationStatus
		want      bool
	}{
		{"entry scheduled", anpr.DirectionEntry, yard.AllocationScheduled, yard.DriverPendingVerification, true},
		{"entry in transit", anpr.DirectionEntry, yard.AllocationInTransit, yard.DriverReadyForDispatch, true},
		{"entry arrived", anpr.DirectionEntry, yard.AllocationArrived, yard.DriverReadyForDispatch, false},
		{"entry completed", anpr.DirectionEntry, yard.AllocationCompleted, yard.DriverReadyForDispatch, false},
		{"entry cancelled", anpr.DirectionEntry, yard.AllocationCancelled, yard.DriverVerified, false},
		{"exit ready scheduled", anpr.DirectionExit, yard.AllocationScheduled, yard.DriverReadyForDispatch, true},
		{"exit ready in transit", anpr.DirectionExit, yard.AllocationInTransit, yard.DriverReadyForDispatch, true},
		{"exit verified only", anpr.DirectionExit, yard.AllocationScheduled, yard.DriverVerified, false},
		{"exit rejected", anpr.DirectionExit, yard.AllocationInTransit, yard.DriverRejected, false},
		{"exit ready completed", anpr.DirectionExit, yard.AllocationCompleted, yard.DriverReadyForDispatch, false},
		{"exit ready cancelled", anpr.DirectionExit, yard.AllocationCancelled, yard.DriverReadyForDispatch, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := allocation("ABC123GP", tt.status, tt.driver)
			_, ok := MatchAllocation("ABC123GP", tt.direction, []yard.TruckAllocation{a})
			if ok != tt.want {
				t.Errorf("match = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestMatchAllocationNormalizesRegistration(t *testing.T) {
	a := allocation("abc-123 gp", yard.AllocationScheduled, yard.DriverVerified)
	got, ok := MatchAllocation("ABC123GP", anpr.DirectionEntry, []yard.TruckAllocation{a})
	if !ok || got.ID != a.ID {
		t.Fatalf("expected normalized registration to match")
	}
	if _, ok := MatchAllocation("ABC123G", anpr.DirectionEntry, []yard.TruckAllocation{a}); ok {
		t.Errorf("partial plate must not match")
	}
}

func TestMatchAllocationTieBreak(t *testing.T) {
	base := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	later := allocation("ABC123GP", yard.AllocationScheduled, yard.DriverVerified)
	later.ScheduledDate = base.Add(24 * time.Hour)

	earlier := allocation("ABC123GP", yard.AllocationScheduled, yard.DriverVerified)
	earlier.ScheduledDate = base

	undated := allocation("ABC123GP", yard.AllocationScheduled, yard.DriverVerified)
	undated.ScheduledDate = time.Time{}

	got, ok := MatchAllocation("ABC123GP", anpr.DirectionEntry, []yard.TruckAllocation{undated, later, earlier})
	if !ok || got.ID != earlier.ID {
		t.Errorf("expected earliest scheduled allocation")
	}

	sameDayOld := allocation("ABC123GP", yard.AllocationScheduled, yard.DriverVerified)
	sameDayOld.ScheduledDate = base
	sameDayOld.CreatedAt = base.Add(-72 * time.Hour)
	got, _ = MatchAllocation("ABC123GP", anpr.DirectionEntry, []yard.TruckAllocation{earlier, sameDayOld})
	if got.ID != sameDayOld.ID {
		t.Errorf("expected older allocation to win a scheduled-date tie")
	}

	a := allocation("ABC123GP", yard.AllocationScheduled, yard.DriverVerified)
	b := a
	a.ID = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b.ID = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	got, _ = MatchAllocation("ABC123GP", anpr.DirectionEntry, []yard.TruckAllocation{b, a})
	if got.ID != a.ID {
		t.Errorf("expected id ordering as the last tie-break")
	}
}

func TestLatestOpenVisit(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	closed := yard.Visit{ID: uuid.New(), PlateNumber: "XYZ1", Status: yard.VisitCompleted, ActualArrival: now}
	open := yard.Visit{ID: uuid.New(), PlateNumber: "xyz 1", Status: yard.VisitArrived, ActualArrival: now.Add(-time.Hour)}

	got, ok := LatestOpenVisit("XYZ1", []yard.Visit{closed, open})
	if !ok || got.ID != open.ID {
		t.Errorf("expected the open visit, got %+v", got)
	}
	if _, ok := LatestOpenVisit("NOPE", []yard.Visit{closed, open}); ok {
		t.Errorf("unexpected match")
	}
}

func TestNextTicketNumber(t *testing.T) {
	tests := []struct {
		latest string
		year   int
		want   string
	}{
		{"", 2026, "PT-2026-000001"},
		{"PT-2026-000041", 2026, "PT-2026-000042"},
		{"PT-2025-000999", 2026, "PT-2026-000001"},
		{"PT-2026-garbage", 2026, "PT-2026-000001"},
		{"PT-2026-999999", 2026, "PT-2026-1000000"},
	}
	for _, tt := range tests {
		if got := NextTicketNumber(tt.latest, tt.year); got != tt.want {
			t.Errorf("NextTicketNumber(%q, %d) = %s, want %s", tt.latest, tt.year, got, tt.want)
		}
	}
}
