package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yard-anpr-service/internal/domain/anpr"
	"yard-anpr-service/internal/domain/yard"
)

type orderRow struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID `gorm:"type:uuid;not null"`
	OrderNumber     string    `gorm:"not null"`
	ClientName      *string
	TransporterName *string
	Product         *string
	CreatedAt       time.Time
}

func (orderRow) TableName() string { return "orders" }

type allocationRow struct {
	ID                     uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID               uuid.UUID  `gorm:"type:uuid;not null"`
	OrderID                *uuid.UUID `gorm:"type:uuid"`
	VehicleReg             string     `gorm:"not null"`
	DriverName             *string
	Status                 string `gorm:"not null"`
	DriverValidationStatus string `gorm:"not null"`
	SiteID                 int
	ScheduledDate          *time.Time
	ActualArrival          *time.Time
	DepartureTime          *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (allocationRow) TableName() string { return "truck_allocations" }

type journeyEntryRow struct {
	ID              int64             `gorm:"primaryKey"`
	TenantID        uuid.UUID         `gorm:"type:uuid;not null"`
	AllocationID    *uuid.UUID        `gorm:"type:uuid"`
	VisitID         *uuid.UUID        `gorm:"type:uuid"`
	OrderID         *uuid.UUID        `gorm:"type:uuid"`
	DetectionID     *int64
	SiteID          int               `gorm:"not null"`
	VehicleReg      string            `gorm:"not null"`
	EventType       string            `gorm:"not null"`
	Status          string            `gorm:"not null"`
	DetectionMethod string            `gorm:"not null"`
	Timestamp       time.Time         `gorm:"not null"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt       time.Time
}

func (journeyEntryRow) TableName() string { return "site_journey_entries" }

func (r allocationRow) toDomain() (yard.TruckAllocation, error) {
	status, err := yard.ParseAllocationStatus(r.Status)
	if err != nil {
		return yard.TruckAllocation{}, fmt.Errorf("allocation %s: %w", r.ID, err)
	}
	validation, err := yard.ParseDriverValidationStatus(r.DriverValidationStatus)
	if err != nil {
		return yard.TruckAllocation{}, fmt.Errorf("allocation %s: %w", r.ID, err)
	}
	a := yard.TruckAllocation{
		ID:                     r.ID,
		TenantID:               r.TenantID,
		VehicleReg:             r.VehicleReg,
		Status:                 status,
		DriverValidationStatus: validation,
		SiteID:                 r.SiteID,
		ActualArrival:          r.ActualArrival,
		DepartureTime:          r.DepartureTime,
		CreatedAt:              r.CreatedAt,
	}
	if r.OrderID != nil {
		a.OrderID = *r.OrderID
	}
	if r.DriverName != nil {
		a.DriverName = *r.DriverName
	}
	if r.ScheduledDate != nil {
		a.ScheduledDate = *r.ScheduledDate
	}
	return a, nil
}

func newJourneyEntryRow(e yard.SiteJourneyEntry) journeyEntryRow {
	meta := datatypes.JSONMap{}
	if e.CameraType != "" {
		meta["camera_type"] = e.CameraType
	}
	return journeyEntryRow{
		TenantID:        e.TenantID,
		AllocationID:    e.AllocationID,
		VisitID:         e.VisitID,
		OrderID:         e.OrderID,
		DetectionID:     e.DetectionID,
		SiteID:          e.SiteID,
		VehicleReg:      e.VehicleReg,
		EventType:       string(e.EventType),
		Status:          string(e.Status),
		DetectionMethod: string(e.DetectionMethod),
		Timestamp:       e.Timestamp,
		Metadata:        meta,
		CreatedAt:       time.Now(),
	}
}

// ListAllocationCandidates narrows the tenant's allocations to those the direction could
// match, ordered by scheduled date so the first plate match is deterministic.
func (r *YardRepository) ListAllocationCandidates(ctx context.Context, tenantID uuid.UUID, direction anpr.Direction) ([]yard.TruckAllocation, error) {
	query := r.db.WithContext(ctx).Model(&allocationRow{}).Where("tenant_id = ?", tenantID)

	switch direction {
	case anpr.DirectionEntry:
		query = query.Where("status IN ?", []string{
			string(yard.AllocationScheduled),
			string(yard.AllocationInTransit),
		})
	case anpr.DirectionExit:
		query = query.
			Where("driver_validation_status = ?", string(yard.DriverReadyForDispatch)).
			Where("status NOT IN ?", []string{
				string(yard.AllocationCompleted),
				string(yard.AllocationCancelled),
			})
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}

	var rows []allocationRow
	err := query.
		Order("scheduled_date ASC NULLS LAST").
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]yard.TruckAllocation, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			// Written by another subsystem with a status outside the known set.
			r.log.Warn().
				Err(err).
				Str("allocation_id", row.ID.String()).
				Str("status", row.Status).
				Str("driver_validation_status", row.DriverValidationStatus).
				Msg("skipping allocation with unknown status")
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// ApplyAllocationTransition re-reads the allocation under a row lock, lets decide compute
// the transition from that fresh state, then appends the journey entry and applies any
// status change in the same transaction. A detection that already has a journey entry
// fails with ErrDuplicate and changes nothing.
func (r *YardRepository) ApplyAllocationTransition(
	ctx context.Context,
	allocationID uuid.UUID,
	decide func(current yard.TruckAllocation) (yard.Transition, error),
) (yard.TruckAllocation, yard.Transition, error) {
	var (
		result     yard.TruckAllocation
		transition yard.Transition
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row allocationRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", allocationID).
			First(&row).Error; err != nil {
			return translate(err)
		}

		current, err := row.toDomain()
		if err != nil {
			return err
		}

		transition, err = decide(current)
		if err != nil {
			return err
		}

		entry := newJourneyEntryRow(transition.Entry)
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append journey entry: %w", translate(err))
		}
		transition.Entry.ID = entry.ID

		result = current
		if !transition.Mutates() {
			return nil
		}

		updates := map[string]interface{}{"updated_at": time.Now()}
		if transition.Status != nil {
			updates["status"] = string(*transition.Status)
			result.Status = *transition.Status
		}
		if transition.DepartureTime != nil {
			updates["departure_time"] = *transition.DepartureTime
			result.DepartureTime = transition.DepartureTime
		}
		if err := tx.Model(&allocationRow{}).Where("id = ?", allocationID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update allocation: %w", err)
		}
		return nil
	})
	if err != nil {
		return yard.TruckAllocation{}, yard.Transition{}, err
	}
	return result, transition, nil
}
