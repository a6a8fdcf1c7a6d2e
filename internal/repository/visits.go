package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"yard-anpr-service/internal/domain/yard"
)

type visitRow struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID         uuid.UUID `gorm:"type:uuid;not null"`
	PlateNumber      string    `gorm:"not null"`
	DriverName       string
	SiteID           int       `gorm:"not null"`
	Status           string    `gorm:"not null"`
	ScheduledArrival time.Time `gorm:"not null"`
	ActualArrival    time.Time `gorm:"not null"`
	DepartureTime    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (visitRow) TableName() string { return "visits" }

func (r visitRow) toDomain() (yard.Visit, error) {
	status, err := yard.ParseVisitStatus(r.Status)
	if err != nil {
		return yard.Visit{}, fmt.Errorf("visit %s: %w", r.ID, err)
	}
	return yard.Visit{
		ID:               r.ID,
		TenantID:         r.TenantID,
		PlateNumber:      r.PlateNumber,
		DriverName:       r.DriverName,
		SiteID:           r.SiteID,
		Status:           status,
		ScheduledArrival: r.ScheduledArrival,
		ActualArrival:    r.ActualArrival,
		DepartureTime:    r.DepartureTime,
		CreatedAt:        r.CreatedAt,
	}, nil
}

// OpenVisit inserts the visit and its arrival journey entry atomically. ErrDuplicate
// means the detection was already recorded and no visit was created.
func (r *YardRepository) OpenVisit(ctx context.Context, visit *yard.Visit, entry *yard.SiteJourneyEntry) error {
	if visit.ID == uuid.Nil {
		visit.ID = uuid.New()
	}
	now := time.Now()
	row := visitRow{
		ID:               visit.ID,
		TenantID:         visit.TenantID,
		PlateNumber:      visit.PlateNumber,
		DriverName:       visit.DriverName,
		SiteID:           visit.SiteID,
		Status:           string(visit.Status),
		ScheduledArrival: visit.ScheduledArrival,
		ActualArrival:    visit.ActualArrival,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create visit: %w", err)
		}
		entry.VisitID = &row.ID
		entryRow := newJourneyEntryRow(*entry)
		if err := tx.Create(&entryRow).Error; err != nil {
			return fmt.Errorf("append journey entry: %w", translate(err))
		}
		entry.ID = entryRow.ID
		visit.CreatedAt = now
		return nil
	})
}

func (r *YardRepository) ListOpenVisits(ctx context.Context, tenantID uuid.UUID) ([]yard.Visit, error) {
	var rows []visitRow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, string(yard.VisitArrived)).
		Order("actual_arrival DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]yard.Visit, 0, len(rows))
	for _, row := range rows {
		v, err := row.toDomain()
		if err != nil {
			r.log.Warn().
				Err(err).
				Str("visit_id", row.ID.String()).
				Str("status", row.Status).
				Msg("skipping visit with unknown status")
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// CloseVisit completes a visit that is still open. It returns false when the visit was
// already closed by someone else, in which case no journey entry is written.
func (r *YardRepository) CloseVisit(ctx context.Context, visitID uuid.UUID, departedAt time.Time, entry *yard.SiteJourneyEntry) (bool, error) {
	closed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&visitRow{}).
			Where("id = ? AND status = ?", visitID, string(yard.VisitArrived)).
			Updates(map[string]interface{}{
				"status":         string(yard.VisitCompleted),
				"departure_time": departedAt,
				"updated_at":     time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("close visit: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		entry.VisitID = &visitID
		entryRow := newJourneyEntryRow(*entry)
		if err := tx.Create(&entryRow).Error; err != nil {
			return fmt.Errorf("append journey entry: %w", translate(err))
		}
		entry.ID = entryRow.ID
		closed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return closed, nil
}
