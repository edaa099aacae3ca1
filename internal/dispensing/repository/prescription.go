package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/pkg/database"
	apperrors "github.com/medflow/dispensary-backend/pkg/errors"
)

const prescriptionViewSelect = `
	SELECT p.id, p.visit_id, p.stock_entry_id, p.dosage_instructions, p.prescribed_quantity,
	       p.status, p.created_at, p.updated_at,
	       pt.name AS patient_name, m.name AS medication_name, hp.name AS health_post_name,
	       s.lot, s.current_quantity AS current_stock, v.started_at AS visit_started_at,
	       COALESCE(d.dispensed, 0) AS dispensed,
	       GREATEST(p.prescribed_quantity - COALESCE(d.dispensed, 0), 0) AS remaining
	FROM prescriptions p
	JOIN visits v ON v.id = p.visit_id
	JOIN patients pt ON pt.id = v.patient_id
	JOIN stock_entries s ON s.id = p.stock_entry_id
	JOIN medications m ON m.id = s.medication_id
	JOIN health_posts hp ON hp.id = s.health_post_id
	LEFT JOIN (
		SELECT prescription_id, SUM(quantity) AS dispensed
		FROM dispensations GROUP BY prescription_id
	) d ON d.prescription_id = p.id
`

// PrescriptionRepository handles prescription persistence
type PrescriptionRepository struct {
	db *database.DB
}

// NewPrescriptionRepository creates a new prescription repository
func NewPrescriptionRepository(db *database.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

// Create inserts a pending prescription
func (r *PrescriptionRepository) Create(ctx context.Context, p *domain.Prescription) error {
	p.Status = domain.StatusPending

	query := `
		INSERT INTO prescriptions (visit_id, stock_entry_id, dosage_instructions, prescribed_quantity, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		p.VisitID, p.StockEntryID, p.DosageInstructions, p.PrescribedQuantity, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a prescription with display fields and fulfillment totals
func (r *PrescriptionRepository) GetByID(ctx context.Context, id int64) (*domain.PrescriptionView, error) {
	var p domain.PrescriptionView
	if err := r.db.GetContext(ctx, &p, prescriptionViewSelect+` WHERE p.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.EntityPrescription)
		}
		return nil, err
	}
	return &p, nil
}

// List lists prescriptions matching filter, newest first
func (r *PrescriptionRepository) List(ctx context.Context, filter domain.PrescriptionFilter) ([]*domain.PrescriptionView, int64, error) {
	var w where
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(pt.name ILIKE ? OR m.name ILIKE ? OR p.dosage_instructions ILIKE ?)", pattern, pattern, pattern)
	}
	if filter.VisitID != nil {
		w.add("p.visit_id = ?", *filter.VisitID)
	}
	if filter.MedicationID != nil {
		w.add("s.medication_id = ?", *filter.MedicationID)
	}
	if filter.Status != nil {
		w.add("p.status = ?", *filter.Status)
	}

	var total int64
	countQuery := `
		SELECT COUNT(*) FROM prescriptions p
		JOIN visits v ON v.id = p.visit_id
		JOIN patients pt ON pt.id = v.patient_id
		JOIN stock_entries s ON s.id = p.stock_entry_id
		JOIN medications m ON m.id = s.medication_id` + w.sql()
	if err := r.db.GetContext(ctx, &total, countQuery, w.args...); err != nil {
		return nil, 0, err
	}

	limit, args := w.page(filter.Limit, filter.Offset)
	query := prescriptionViewSelect + w.sql() + ` ORDER BY p.created_at DESC, p.id DESC` + limit

	prescriptions := []*domain.PrescriptionView{}
	if err := r.db.SelectContext(ctx, &prescriptions, query, args...); err != nil {
		return nil, 0, err
	}
	return prescriptions, total, nil
}

// StockEntryID returns the stock entry a prescription draws from
func (r *PrescriptionRepository) StockEntryID(ctx context.Context, id int64) (int64, error) {
	var stockEntryID int64
	if err := r.db.GetContext(ctx, &stockEntryID, `SELECT stock_entry_id FROM prescriptions WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.NotFound(domain.EntityPrescription)
		}
		return 0, err
	}
	return stockEntryID, nil
}

// SumDispensed returns the total quantity dispensed for a prescription
func (r *PrescriptionRepository) SumDispensed(ctx context.Context, prescriptionID int64) (int, error) {
	return sumDispensed(ctx, r.db, prescriptionID)
}

// Delete deletes a prescription that has no dispensations
func (r *PrescriptionRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.Conflict("prescription has dispensations")
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.NotFound(domain.EntityPrescription)
	}
	return nil
}
