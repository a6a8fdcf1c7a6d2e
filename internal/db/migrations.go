package db

import (
	"fmt"

	"gorm.io/gorm"
)

// orders and truck_allocations belong to order intake; they are created here only
// when missing so a standalone deployment has something to match against.
var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS orders (
		id               UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		tenant_id        UUID NOT NULL,
		order_number     TEXT NOT NULL,
		client_name      TEXT,
		transporter_name TEXT,
		product          TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS truck_allocations (
		id                       UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		tenant_id                UUID NOT NULL,
		order_id                 UUID REFERENCES orders(id),
		vehicle_reg              TEXT NOT NULL,
		driver_name              TEXT,
		status                   TEXT NOT NULL DEFAULT 'scheduled',
		driver_validation_status TEXT NOT NULL DEFAULT 'pending_verification',
		site_id                  INT NOT NULL DEFAULT 1,
		scheduled_date           TIMESTAMPTZ,
		actual_arrival           TIMESTAMPTZ,
		departure_time           TIMESTAMPTZ,
		created_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_truck_allocations_tenant_status ON truck_allocations(tenant_id, status);`,
	`CREATE INDEX IF NOT EXISTS idx_truck_allocations_tenant_validation ON truck_allocations(tenant_id, driver_validation_status);`,
	`CREATE TABLE IF NOT EXISTS visits (
		id                UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		tenant_id         UUID NOT NULL,
		plate_number      TEXT NOT NULL,
		driver_name       TEXT NOT NULL DEFAULT '',
		site_id           INT NOT NULL,
		status            TEXT NOT NULL,
		scheduled_arrival TIMESTAMPTZ NOT NULL,
		actual_arrival    TIMESTAMPTZ NOT NULL,
		departure_time    TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_visits_tenant_status ON visits(tenant_id, status);`,
	`CREATE TABLE IF NOT EXISTS site_journey_entries (
		id               BIGSERIAL PRIMARY KEY,
		tenant_id        UUID NOT NULL,
		allocation_id    UUID REFERENCES truck_allocations(id),
		visit_id         UUID REFERENCES visits(id),
		order_id         UUID,
		detection_id     BIGINT,
		site_id          INT NOT NULL,
		vehicle_reg      TEXT NOT NULL,
		event_type       TEXT NOT NULL,
		status           TEXT NOT NULL,
		detection_method TEXT NOT NULL,
		timestamp        TIMESTAMPTZ NOT NULL,
		metadata         JSONB,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK ((allocation_id IS NULL) <> (visit_id IS NULL))
	);`,
	`CREATE INDEX IF NOT EXISTS idx_site_journey_entries_allocation ON site_journey_entries(allocation_id);`,
	`CREATE INDEX IF NOT EXISTS idx_site_journey_entries_visit ON site_journey_entries(visit_id);`,
	`ALTER TABLE site_journey_entries ADD COLUMN IF NOT EXISTS detection_id BIGINT;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_site_journey_entries_detection ON site_journey_entries(tenant_id, detection_id) WHERE detection_id IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS parking_tickets (
		id               UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		tenant_id        UUID NOT NULL,
		ticket_number    TEXT NOT NULL,
		allocation_id    UUID REFERENCES truck_allocations(id),
		visit_id         UUID REFERENCES visits(id),
		vehicle_reg      TEXT NOT NULL,
		driver_name      TEXT NOT NULL DEFAULT '',
		order_number     TEXT NOT NULL DEFAULT '',
		client_name      TEXT NOT NULL DEFAULT '',
		transporter_name TEXT NOT NULL DEFAULT '',
		product          TEXT NOT NULL DEFAULT '',
		site_id          INT NOT NULL,
		status           TEXT NOT NULL,
		person_on_duty   TEXT NOT NULL DEFAULT '',
		arrival_time     TIMESTAMPTZ NOT NULL,
		remarks          TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_parking_tickets_number ON parking_tickets(tenant_id, ticket_number);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_parking_tickets_allocation ON parking_tickets(allocation_id) WHERE allocation_id IS NOT NULL;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_parking_tickets_visit ON parking_tickets(visit_id) WHERE visit_id IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS anpr_cursors (
		tenant_id       UUID PRIMARY KEY,
		last_checked_id BIGINT NOT NULL DEFAULT 0,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
