package yard

import "fmt"

type AllocationStatus string

const (
	AllocationScheduled AllocationStatus = "scheduled"
	AllocationInTransit AllocationStatus = "in_transit"
	AllocationArrived   AllocationStatus = "arrived"
	AllocationCompleted AllocationStatus = "completed"
	AllocationCancelled AllocationStatus = "cancelled"
)

func ParseAllocationStatus(s string) (AllocationStatus, error) {
	switch st := AllocationStatus(s); st {
	case AllocationScheduled, AllocationInTransit, AllocationArrived, AllocationCompleted, AllocationCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown allocation status %q", s)
	}
}

// Terminal statuses are never left again by ANPR traffic.
func (s AllocationStatus) Terminal() bool {
	return s == AllocationCompleted || s == AllocationCancelled
}

// EntryEligible reports whether an entry read may match an allocation in this status.
func (s AllocationStatus) EntryEligible() bool {
	switch s {
	case AllocationScheduled, AllocationInTransit:
		return true
	case AllocationArrived, AllocationCompleted, AllocationCancelled:
		return false
	default:
		return false
	}
}

type DriverValidationStatus string

const (
	DriverPendingVerification DriverValidationStatus = "pending_verification"
	DriverVerified            DriverValidationStatus = "verified"
	DriverRejected            DriverValidationStatus = "rejected"
	DriverReadyForDispatch    DriverValidationStatus = "ready_for_dispatch"
)

func ParseDriverValidationStatus(s string) (DriverValidationStatus, error) {
	switch st := DriverValidationStatus(s); st {
	case DriverPendingVerification, DriverVerified, DriverRejected, DriverReadyForDispatch:
		return st, nil
	default:
		return "", fmt.Errorf("unknown driver validation status %q", s)
	}
}

type JourneyEventType string

const (
	EventArrival   JourneyEventType = "arrival"
	EventDeparture JourneyEventType = "departure"
	EventCheckIn   JourneyEventType = "check_in"
	EventCheckOut  JourneyEventType = "check_out"
)

type JourneyStatus string

const (
	JourneyScheduled JourneyStatus = "scheduled"
	JourneyArrived   JourneyStatus = "arrived"
	JourneyDeparted  JourneyStatus = "departed"
	JourneyCompleted JourneyStatus = "completed"
)

type VisitStatus string

const (
	VisitArrived            VisitStatus = "arrived"
	VisitCompleted          VisitStatus = "completed"
	VisitNonMatchedVerified VisitStatus = "non_matched_verified"
	VisitNonMatchedPartial  VisitStatus = "non_matched_partial"
)

func ParseVisitStatus(s string) (VisitStatus, error) {
	switch st := VisitStatus(s); st {
	case VisitArrived, VisitCompleted, VisitNonMatchedVerified, VisitNonMatchedPartial:
		return st, nil
	default:
		return "", fmt.Errorf("unknown visit status %q", s)
	}
}

type TicketStatus string

const (
	TicketPending TicketStatus = "pending"
	TicketIssued  TicketStatus = "issued"
	TicketClosed  TicketStatus = "closed"
)
