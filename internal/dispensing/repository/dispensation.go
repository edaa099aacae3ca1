package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/pkg/database"
)

const dispensationFrom = `
	FROM dispensations d
	JOIN prescriptions p ON p.id = d.prescription_id
	JOIN visits v ON v.id = p.visit_id
	JOIN patients pt ON pt.id = v.patient_id
	JOIN staff st ON st.id = d.staff_id
	JOIN stock_entries s ON s.id = p.stock_entry_id
	JOIN medications m ON m.id = s.medication_id
	JOIN health_posts hp ON hp.id = s.health_post_id
`

const dispensationViewSelect = `
	SELECT d.id, d.prescription_id, d.staff_id, d.quantity, d.dispensed_at, d.note,
	       pt.name AS patient_name, st.name AS staff_name, m.name AS medication_name,
	       s.lot, hp.name AS health_post_name
` + dispensationFrom

// DispensationRepository reads the dispensation log. Rows are written only
// by the ledger and are never updated or deleted.
type DispensationRepository struct {
	db *database.DB
}

// NewDispensationRepository creates a new dispensation repository
func NewDispensationRepository(db *database.DB) *DispensationRepository {
	return &DispensationRepository{db: db}
}

// GetByID gets a dispensation with display fields
func (r *DispensationRepository) GetByID(ctx context.Context, id int64) (*domain.DispensationView, error) {
	var d domain.DispensationView
	if err := r.db.GetContext(ctx, &d, dispensationViewSelect+` WHERE d.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.EntityDispensation)
		}
		return nil, err
	}
	return &d, nil
}

// List lists dispensations matching filter, newest first
func (r *DispensationRepository) List(ctx context.Context, filter domain.DispensationFilter) ([]*domain.DispensationView, int64, error) {
	var w where
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(pt.name ILIKE ? OR st.name ILIKE ? OR m.name ILIKE ? OR s.lot ILIKE ?)", pattern, pattern, pattern, pattern)
	}
	if filter.PrescriptionID != nil {
		w.add("d.prescription_id = ?", *filter.PrescriptionID)
	}
	if filter.StaffID != nil {
		w.add("d.staff_id = ?", *filter.StaffID)
	}
	if filter.From != nil {
		w.add("d.dispensed_at >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("d.dispensed_at < ?", *filter.To)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+dispensationFrom+w.sql(), w.args...); err != nil {
		return nil, 0, err
	}

	limit, args := w.page(filter.Limit, filter.Offset)
	query := dispensationViewSelect + w.sql() + ` ORDER BY d.dispensed_at DESC, d.id DESC` + limit

	dispensations := []*domain.DispensationView{}
	if err := r.db.SelectContext(ctx, &dispensations, query, args...); err != nil {
		return nil, 0, err
	}
	return dispensations, total, nil
}
