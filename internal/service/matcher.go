package service

import (
	"sort"

	"yard-anpr-service/internal/domain/anpr"
	"yard-anpr-service/internal/domain/yard"
	"yard-anpr-service/internal/utils"
)

// MatchAllocation picks at most one allocation for a normalised plate.
//
// Entry: registration matches and status is scheduled or in_transit.
// Exit: registration matches, the driver is ready_for_dispatch and the allocation is not
// already completed or cancelled.
//
// Several eligible allocations for the same plate are resolved by earliest scheduled
// date, then creation time, then id.
func MatchAllocation(plate string, direction anpr.Direction, allocations []yard.TruckAllocation) (yard.TruckAllocation, bool) {
	var eligible []yard.TruckAllocation
	for _, a := range allocations {
		if utils.NormalizePlate(a.VehicleReg) != plate {
			continue
		}
		if eligibleFor(direction, a) {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		return yard.TruckAllocation{}, false
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if !a.ScheduledDate.Equal(b.ScheduledDate) {
			// Zero dates sort last.
			if a.ScheduledDate.IsZero() {
				return false
			}
			if b.ScheduledDate.IsZero() {
				return true
			}
			return a.ScheduledDate.Before(b.ScheduledDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return eligible[0], true
}

func eligibleFor(direction anpr.Direction, a yard.TruckAllocation) bool {
	switch direction {
	case anpr.DirectionEntry:
		return a.Status.EntryEligible()
	case anpr.DirectionExit:
		return a.DriverValidationStatus == yard.DriverReadyForDispatch && !a.Status.Terminal()
	default:
		return false
	}
}
