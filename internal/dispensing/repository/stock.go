package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/pkg/database"
	apperrors "github.com/medflow/dispensary-backend/pkg/errors"
)

const stockViewSelect = `
	SELECT s.id, s.medication_id, s.health_post_id, s.lot, s.expiry_date, s.current_quantity,
	       s.min_alert_quantity, s.created_at, s.updated_at,
	       m.name AS medication_name, hp.name AS health_post_name
	FROM stock_entries s
	JOIN medications m ON m.id = s.medication_id
	JOIN health_posts hp ON hp.id = s.health_post_id
`

// StockRepository handles stock ledger persistence
type StockRepository struct {
	db *database.DB
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *database.DB) *StockRepository {
	return &StockRepository{db: db}
}

// GetByID gets a stock entry with medication and health post names
func (r *StockRepository) GetByID(ctx context.Context, id int64) (*domain.StockEntryView, error) {
	var entry domain.StockEntryView
	if err := r.db.GetContext(ctx, &entry, stockViewSelect+` WHERE s.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.EntityStockEntry)
		}
		return nil, err
	}
	return &entry, nil
}

// List lists stock entries matching filter, ordered by medication then expiry
func (r *StockRepository) List(ctx context.Context, filter domain.StockFilter) ([]*domain.StockEntryView, int64, error) {
	var w where
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(m.name ILIKE ? OR s.lot ILIKE ?)", pattern, pattern)
	}
	if filter.MedicationID != nil {
		w.add("s.medication_id = ?", *filter.MedicationID)
	}
	if filter.HealthPostID != nil {
		w.add("s.health_post_id = ?", *filter.HealthPostID)
	}
	if filter.ExpiringWithinDays != nil {
		w.add("s.expiry_date IS NOT NULL AND s.expiry_date <= CURRENT_DATE + ?::int", *filter.ExpiringWithinDays)
	}
	if filter.LowStock {
		w.add("s.current_quantity <= s.min_alert_quantity")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM stock_entries s JOIN medications m ON m.id = s.medication_id` + w.sql()
	if err := r.db.GetContext(ctx, &total, countQuery, w.args...); err != nil {
		return nil, 0, err
	}

	limit, args := w.page(filter.Limit, filter.Offset)
	query := stockViewSelect + w.sql() + ` ORDER BY m.name, s.expiry_date NULLS LAST, s.id` + limit

	entries := []*domain.StockEntryView{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Upsert records stock intake. A new (medication, health post, lot) triple
// creates an entry; an existing one has its quantity increased by the intake
// and its expiry and alert threshold replaced.
func (r *StockRepository) Upsert(ctx context.Context, entry *domain.StockEntry) error {
	query := `
		INSERT INTO stock_entries (medication_id, health_post_id, lot, expiry_date, current_quantity, min_alert_quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (medication_id, health_post_id, lot) DO UPDATE SET
			current_quantity   = stock_entries.current_quantity + EXCLUDED.current_quantity,
			expiry_date        = COALESCE(EXCLUDED.expiry_date, stock_entries.expiry_date),
			min_alert_quantity = EXCLUDED.min_alert_quantity,
			updated_at         = NOW()
		RETURNING ` + stockColumns

	if err := r.db.QueryRowxContext(ctx, query,
		entry.MedicationID, entry.HealthPostID, entry.Lot, entry.ExpiryDate,
		entry.CurrentQuantity, entry.MinAlertQuantity,
	).StructScan(entry); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// Delete deletes a stock entry that no prescription references
func (r *StockRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM stock_entries WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.Conflict("stock entry is referenced by prescriptions")
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.NotFound(domain.EntityStockEntry)
	}
	return nil
}
