package yard

import (
	"time"

	"github.com/google/uuid"

	"yard-anpr-service/internal/domain/anpr"
)

// Order is owned by order intake; the core only reads it for ticket details.
type Order struct {
	ID              uuid.UUID `json:"id"`
	TenantID        uuid.UUID `json:"tenant_id"`
	OrderNumber     string    `json:"order_number"`
	ClientName      string    `json:"client_name"`
	TransporterName string    `json:"transporter_name"`
	Product         string    `json:"product"`
}

type TruckAllocation struct {
	ID                     uuid.UUID              `json:"id"`
	TenantID               uuid.UUID              `json:"tenant_id"`
	OrderID                uuid.UUID              `json:"order_id"`
	VehicleReg             string                 `json:"vehicle_reg"`
	DriverName             string                 `json:"driver_name"`
	Status                 AllocationStatus       `json:"status"`
	DriverValidationStatus DriverValidationStatus `json:"driver_validation_status"`
	SiteID                 int                    `json:"site_id"`
	ScheduledDate          time.Time              `json:"scheduled_date"`
	ActualArrival          *time.Time             `json:"actual_arrival,omitempty"`
	DepartureTime          *time.Time             `json:"departure_time,omitempty"`
	CreatedAt              time.Time              `json:"created_at"`
}

// SiteJourneyEntry is an append-only journey log row.
// Exactly one of AllocationID and VisitID is set.
type SiteJourneyEntry struct {
	ID              int64                `json:"id"`
	TenantID        uuid.UUID            `json:"tenant_id"`
	AllocationID    *uuid.UUID           `json:"allocation_id,omitempty"`
	VisitID         *uuid.UUID           `json:"visit_id,omitempty"`
	OrderID         *uuid.UUID           `json:"order_id,omitempty"`
	SiteID          int                  `json:"site_id"`
	VehicleReg      string               `json:"vehicle_reg"`
	EventType       JourneyEventType     `json:"event_type"`
	Status          JourneyStatus        `json:"status"`
	DetectionMethod anpr.DetectionMethod `json:"detection_method"`
	DetectionID     *int64               `json:"detection_id,omitempty"`
	CameraType      string               `json:"camera_type,omitempty"`
	Timestamp       time.Time            `json:"timestamp"`
}

type Visit struct {
	ID               uuid.UUID   `json:"id"`
	TenantID         uuid.UUID   `json:"tenant_id"`
	PlateNumber      string      `json:"plate_number"`
	DriverName       string      `json:"driver_name"`
	SiteID           int         `json:"site_id"`
	Status           VisitStatus `json:"status"`
	ScheduledArrival time.Time   `json:"scheduled_arrival"`
	ActualArrival    time.Time   `json:"actual_arrival"`
	DepartureTime    *time.Time  `json:"departure_time,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

type ParkingTicket struct {
	ID              uuid.UUID    `json:"id"`
	TenantID        uuid.UUID    `json:"tenant_id"`
	TicketNumber    string       `json:"ticket_number"`
	AllocationID    *uuid.UUID   `json:"allocation_id,omitempty"`
	VisitID         *uuid.UUID   `json:"visit_id,omitempty"`
	VehicleReg      string       `json:"vehicle_reg"`
	DriverName      string       `json:"driver_name"`
	OrderNumber     string       `json:"order_number,omitempty"`
	ClientName      string       `json:"client_name,omitempty"`
	TransporterName string       `json:"transporter_name,omitempty"`
	Product         string       `json:"product,omitempty"`
	SiteID          int          `json:"site_id"`
	Status          TicketStatus `json:"status"`
	PersonOnDuty    string       `json:"person_on_duty"`
	ArrivalTime     time.Time    `json:"arrival_time"`
	Remarks         string       `json:"remarks,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// TicketOwner identifies what a parking ticket belongs to.
type TicketOwner struct {
	AllocationID *uuid.UUID
	VisitID      *uuid.UUID
}

func AllocationOwner(id uuid.UUID) TicketOwner { return TicketOwner{AllocationID: &id} }

func VisitOwner(id uuid.UUID) TicketOwner { return TicketOwner{VisitID: &id} }

// TicketContext carries the records a ticket is populated from.
type TicketContext struct {
	Allocation TruckAllocation
	Order      *Order
}

// Transition is what the state machine decided for a matched allocation.
type Transition struct {
	Entry         SiteJourneyEntry
	Status        *AllocationStatus
	DepartureTime *time.Time
}

// Mutates reports whether the allocation row itself changes.
func (t Transition) Mutates() bool {
	return t.Status != nil || t.DepartureTime != nil
}
