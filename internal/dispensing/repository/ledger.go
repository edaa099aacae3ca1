package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/pkg/database"
)

const (
	stockColumns = `id, medication_id, health_post_id, lot, expiry_date, current_quantity,
		min_alert_quantity, created_at, updated_at`
	prescriptionColumns = `id, visit_id, stock_entry_id, dosage_instructions, prescribed_quantity,
		status, created_at, updated_at`
)

// Ledger runs dispensing statements in a single transaction
type Ledger struct {
	db *database.DB
}

// NewLedger creates a new ledger
func NewLedger(db *database.DB) *Ledger {
	return &Ledger{db: db}
}

// WithinTx runs fn in a transaction started with opts. fn's error rolls the
// transaction back and is returned unchanged.
func (l *Ledger) WithinTx(ctx context.Context, opts *sql.TxOptions, fn func(domain.LedgerTx) error) error {
	return l.db.TransactionWithOptions(ctx, opts, func(tx *sqlx.Tx) error {
		return fn(&ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx *sqlx.Tx
}

func (t *ledgerTx) LockPrescription(ctx context.Context, id int64) (*domain.Prescription, error) {
	var p domain.Prescription
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE id = $1 FOR UPDATE`
	if err := t.tx.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.EntityPrescription)
		}
		return nil, err
	}
	return &p, nil
}

func (t *ledgerTx) LockStockEntry(ctx context.Context, id int64) (*domain.StockEntry, error) {
	var s domain.StockEntry
	query := `SELECT ` + stockColumns + ` FROM stock_entries WHERE id = $1 FOR UPDATE`
	if err := t.tx.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.EntityStockEntry)
		}
		return nil, err
	}
	return &s, nil
}

func (t *ledgerTx) SumDispensed(ctx context.Context, prescriptionID int64) (int, error) {
	return sumDispensed(ctx, t.tx, prescriptionID)
}

func (t *ledgerTx) StaffActive(ctx context.Context, staffID int64) (bool, error) {
	var active bool
	query := `SELECT EXISTS(SELECT 1 FROM staff WHERE id = $1 AND active)`
	if err := t.tx.GetContext(ctx, &active, query, staffID); err != nil {
		return false, err
	}
	return active, nil
}

func (t *ledgerTx) InsertDispensation(ctx context.Context, d *domain.Dispensation) error {
	query := `
		INSERT INTO dispensations (prescription_id, staff_id, quantity, dispensed_at, note)
		VALUES ($1, $2, $3, COALESCE($4, NOW()), $5)
		RETURNING id, dispensed_at
	`
	return t.tx.QueryRowxContext(ctx, query,
		d.PrescriptionID, d.StaffID, d.Quantity, nullableTime(d.DispensedAt), d.Note,
	).Scan(&d.ID, &d.DispensedAt)
}

func (t *ledgerTx) DecrementStock(ctx context.Context, stockEntryID int64, quantity int) (int, error) {
	var current int
	query := `
		UPDATE stock_entries SET current_quantity = current_quantity - $2, updated_at = NOW()
		WHERE id = $1
		RETURNING current_quantity
	`
	if err := t.tx.GetContext(ctx, &current, query, stockEntryID, quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.NotFound(domain.EntityStockEntry)
		}
		return 0, err
	}
	return current, nil
}

func (t *ledgerTx) UpdatePrescriptionStatus(ctx context.Context, id int64, status domain.Status) error {
	query := `UPDATE prescriptions SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := t.tx.ExecContext(ctx, query, id, status)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.NotFound(domain.EntityPrescription)
	}
	return nil
}

// sumDispensed works on both the pool and a transaction
func sumDispensed(ctx context.Context, q sqlx.QueryerContext, prescriptionID int64) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(quantity), 0) FROM dispensations WHERE prescription_id = $1`
	if err := sqlx.GetContext(ctx, q, &total, query, prescriptionID); err != nil {
		return 0, err
	}
	return total, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
