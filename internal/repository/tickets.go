package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"yard-anpr-service/internal/domain/yard"
)

type ticketRow struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID  `gorm:"type:uuid;not null"`
	TicketNumber    string     `gorm:"not null"`
	AllocationID    *uuid.UUID `gorm:"type:uuid"`
	VisitID         *uuid.UUID `gorm:"type:uuid"`
	VehicleReg      string     `gorm:"not null"`
	DriverName      string
	OrderNumber     string
	ClientName      string
	TransporterName string
	Product         string
	SiteID          int    `gorm:"not null"`
	Status          string `gorm:"not null"`
	PersonOnDuty    string
	ArrivalTime     time.Time `gorm:"not null"`
	Remarks         string
	CreatedAt       time.Time
}

func (ticketRow) TableName() string { return "parking_tickets" }

func (r ticketRow) toDomain() yard.ParkingTicket {
	return yard.ParkingTicket{
		ID:              r.ID,
		TenantID:        r.TenantID,
		TicketNumber:    r.TicketNumber,
		AllocationID:    r.AllocationID,
		VisitID:         r.VisitID,
		VehicleReg:      r.VehicleReg,
		DriverName:      r.DriverName,
		OrderNumber:     r.OrderNumber,
		ClientName:      r.ClientName,
		TransporterName: r.TransporterName,
		Product:         r.Product,
		SiteID:          r.SiteID,
		Status:          yard.TicketStatus(r.Status),
		PersonOnDuty:    r.PersonOnDuty,
		ArrivalTime:     r.ArrivalTime,
		Remarks:         r.Remarks,
		CreatedAt:       r.CreatedAt,
	}
}

func (r *YardRepository) TicketExists(ctx context.Context, owner yard.TicketOwner) (bool, error) {
	query := r.db.WithContext(ctx).Model(&ticketRow{})
	switch {
	case owner.AllocationID != nil:
		query = query.Where("allocation_id = ?", *owner.AllocationID)
	case owner.VisitID != nil:
		query = query.Where("visit_id = ?", *owner.VisitID)
	default:
		return false, errors.New("ticket owner is empty")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// LatestTicketNumber returns the highest ticket number with the given prefix, or "".
func (r *YardRepository) LatestTicketNumber(ctx context.Context, tenantID uuid.UUID, prefix string) (string, error) {
	var row ticketRow
	err := r.db.WithContext(ctx).
		Select("ticket_number").
		Where("tenant_id = ? AND ticket_number LIKE ?", tenantID, prefix+"%").
		Order("LENGTH(ticket_number) DESC").
		Order("ticket_number DESC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return "", err
	}
	return row.TicketNumber, nil
}

// CreateTicket returns ErrDuplicate when the number or the owner already has a ticket.
func (r *YardRepository) CreateTicket(ctx context.Context, t *yard.ParkingTicket) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	row := ticketRow{
		ID:              t.ID,
		TenantID:        t.TenantID,
		TicketNumber:    t.TicketNumber,
		AllocationID:    t.AllocationID,
		VisitID:         t.VisitID,
		VehicleReg:      t.VehicleReg,
		DriverName:      t.DriverName,
		OrderNumber:     t.OrderNumber,
		ClientName:      t.ClientName,
		TransporterName: t.TransporterName,
		Product:         t.Product,
		SiteID:          t.SiteID,
		Status:          string(t.Status),
		PersonOnDuty:    t.PersonOnDuty,
		ArrivalTime:     t.ArrivalTime,
		Remarks:         t.Remarks,
		CreatedAt:       t.CreatedAt,
	}
	return translate(r.db.WithContext(ctx).Create(&row).Error)
}

func (r *YardRepository) FindTicketByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*yard.ParkingTicket, error) {
	var row ticketRow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND ticket_number = ?", tenantID, number).
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	t := row.toDomain()
	return &t, nil
}

// LoadTicketContext reads the allocation and, when linked, its order.
func (r *YardRepository) LoadTicketContext(ctx context.Context, allocationID uuid.UUID) (*yard.TicketContext, error) {
	var alloc allocationRow
	if err := r.db.WithContext(ctx).Where("id = ?", allocationID).First(&alloc).Error; err != nil {
		return nil, translate(err)
	}
	a, err := alloc.toDomain()
	if err != nil {
		return nil, err
	}

	out := &yard.TicketContext{Allocation: a}
	if alloc.OrderID == nil {
		return out, nil
	}

	var order orderRow
	err = r.db.WithContext(ctx).Where("id = ?", *alloc.OrderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.Order = &yard.Order{
		ID:              order.ID,
		TenantID:        order.TenantID,
		OrderNumber:     order.OrderNumber,
		ClientName:      deref(order.ClientName),
		TransporterName: deref(order.TransporterName),
		Product:         deref(order.Product),
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
