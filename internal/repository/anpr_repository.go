package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// YardRepository is the gorm-backed store for allocations, journeys, visits,
// parking tickets and the detection cursor.
type YardRepository struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewYardRepository(db *gorm.DB, log zerolog.Logger) *YardRepository {
	return &YardRepository{
		db:  db,
		log: log.With().Str("component", "repository").Logger(),
	}
}

type cursorRow struct {
	TenantID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastCheckedID int64     `gorm:"not null"`
	UpdatedAt     time.Time
}

func (cursorRow) TableName() string { return "anpr_cursors" }

// LoadCursor returns the persisted watermark, or 0 when none was stored yet.
func (r *YardRepository) LoadCursor(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var row cursorRow
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.LastCheckedID, nil
}

// SaveCursor stores the watermark. It never moves an existing cursor backwards.
func (r *YardRepository) SaveCursor(ctx context.Context, tenantID uuid.UUID, lastID int64) error {
	row := cursorRow{
		TenantID:      tenantID,
		LastCheckedID: lastID,
		UpdatedAt:     time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_checked_id": gorm.Expr("GREATEST(anpr_cursors.last_checked_id, EXCLUDED.last_checked_id)"),
			"updated_at":      gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).Create(&row).Error
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
