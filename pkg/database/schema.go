package database

import (
	"context"
	"fmt"
)

// Schema creates the dispensary tables. Reference tables (health posts,
// medications, patients, visits, staff) hold only what foreign keys and
// display joins need; their owning services stay authoritative.
const Schema = `
CREATE TABLE IF NOT EXISTS health_posts (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS medications (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS patients (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS visits (
    id             BIGSERIAL PRIMARY KEY,
    patient_id     BIGINT NOT NULL REFERENCES patients(id),
    health_post_id BIGINT NOT NULL REFERENCES health_posts(id),
    started_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS staff (
    id         BIGINT PRIMARY KEY,
    name       TEXT NOT NULL,
    role       TEXT NOT NULL DEFAULT '',
    active     BOOLEAN NOT NULL DEFAULT TRUE,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS stock_entries (
    id                 BIGSERIAL PRIMARY KEY,
    medication_id      BIGINT NOT NULL REFERENCES medications(id),
    health_post_id     BIGINT NOT NULL REFERENCES health_posts(id),
    lot                TEXT NOT NULL,
    expiry_date        DATE,
    current_quantity   INTEGER NOT NULL DEFAULT 0,
    min_alert_quantity INTEGER NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT stock_entries_lot_unique UNIQUE (medication_id, health_post_id, lot),
    CONSTRAINT stock_entries_current_quantity_check CHECK (current_quantity >= 0),
    CONSTRAINT stock_entries_min_alert_quantity_check CHECK (min_alert_quantity >= 0)
);

CREATE TABLE IF NOT EXISTS prescriptions (
    id                  BIGSERIAL PRIMARY KEY,
    visit_id            BIGINT NOT NULL REFERENCES visits(id),
    stock_entry_id      BIGINT NOT NULL,
    dosage_instructions TEXT NOT NULL DEFAULT '',
    prescribed_quantity INTEGER NOT NULL,
    status              TEXT NOT NULL DEFAULT 'pending',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT prescriptions_stock_entry_id_fkey FOREIGN KEY (stock_entry_id)
        REFERENCES stock_entries(id) ON DELETE RESTRICT,
    CONSTRAINT prescriptions_prescribed_quantity_check CHECK (prescribed_quantity > 0),
    CONSTRAINT prescriptions_status_valid
        CHECK (status IN ('pending', 'partially_dispensed', 'fully_dispensed', 'cancelled'))
);

CREATE INDEX IF NOT EXISTS idx_prescriptions_stock_entry ON prescriptions(stock_entry_id);
CREATE INDEX IF NOT EXISTS idx_prescriptions_visit ON prescriptions(visit_id);

CREATE TABLE IF NOT EXISTS dispensations (
    id              BIGSERIAL PRIMARY KEY,
    prescription_id BIGINT NOT NULL,
    staff_id        BIGINT NOT NULL REFERENCES staff(id),
    quantity        INTEGER NOT NULL,
    dispensed_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    note            TEXT,
    CONSTRAINT dispensations_prescription_id_fkey FOREIGN KEY (prescription_id)
        REFERENCES prescriptions(id) ON DELETE RESTRICT,
    CONSTRAINT dispensations_quantity_check CHECK (quantity > 0)
);

CREATE INDEX IF NOT EXISTS idx_dispensations_prescription ON dispensations(prescription_id);
CREATE INDEX IF NOT EXISTS idx_dispensations_dispensed_at ON dispensations(dispensed_at);
`

// ApplySchema creates missing tables and indexes. Safe to run on every start.
func (db *DB) ApplySchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	db.logger.Info().Msg("database schema applied")
	return nil
}
