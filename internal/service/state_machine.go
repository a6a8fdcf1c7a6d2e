package service

import (
	"fmt"

	"github.com/google/uuid"

	"yard-anpr-service/internal/domain/anpr"
	"yard-anpr-service/internal/domain/yard"
)

func journeyEntry(d anpr.Detection, site int, eventType yard.JourneyEventType, status yard.JourneyStatus) yard.SiteJourneyEntry {
	e := yard.SiteJourneyEntry{
		SiteID:          site,
		VehicleReg:      d.Plate,
		EventType:       eventType,
		Status:          status,
		DetectionMethod: d.Method,
		CameraType:      d.CameraType,
		Timestamp:       d.DetectedAt,
	}
	if d.ID > 0 {
		id := d.ID
		e.DetectionID = &id
	}
	return e
}

func allocationEntry(d anpr.Detection, site int, a yard.TruckAllocation, eventType yard.JourneyEventType, status yard.JourneyStatus) yard.SiteJourneyEntry {
	e := journeyEntry(d, site, eventType, status)
	e.TenantID = a.TenantID
	id := a.ID
	e.AllocationID = &id
	e.VehicleReg = a.VehicleReg
	if a.OrderID != uuid.Nil {
		orderID := a.OrderID
		e.OrderID = &orderID
	}
	return e
}

// decideArrival never touches the allocation row: an entry read only adds a journey entry.
func decideArrival(d anpr.Detection, site int, current yard.TruckAllocation) (yard.Transition, error) {
	if !current.Status.EntryEligible() {
		return yard.Transition{}, fmt.Errorf("%w: status is %s", ErrNotEligible, current.Status)
	}
	return yard.Transition{
		Entry: allocationEntry(d, site, current, yard.EventArrival, yard.JourneyArrived),
	}, nil
}

// decideDeparture maps the exit site onto the allocation status. Leaving the home site
// puts the truck in transit; leaving the destination completes the journey. Any other
// site has no agreed mapping yet and only gets the journey entry.
func decideDeparture(d anpr.Detection, site int, current yard.TruckAllocation, sites Sites) (yard.Transition, error) {
	if current.DriverValidationStatus != yard.DriverReadyForDispatch {
		return yard.Transition{}, fmt.Errorf("%w: driver validation is %s", ErrNotEligible, current.DriverValidationStatus)
	}
	if current.Status.Terminal() {
		return yard.Transition{}, fmt.Errorf("%w: status is %s", ErrNotEligible, current.Status)
	}

	t := yard.Transition{
		Entry: allocationEntry(d, site, current, yard.EventDeparture, yard.JourneyDeparted),
	}
	departed := d.DetectedAt

	switch site {
	case sites.Home:
		next := yard.AllocationInTransit
		t.Status = &next
		t.DepartureTime = &departed
	case sites.Destination:
		next := yard.AllocationCompleted
		t.Status = &next
		t.DepartureTime = &departed
	default:
		// Unsupported site: journey entry only.
	}
	return t, nil
}
