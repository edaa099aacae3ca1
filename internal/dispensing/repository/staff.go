package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/pkg/actor"
	"github.com/medflow/dispensary-backend/pkg/database"
)

// StaffRepository maintains the local staff reference table. The staff
// service owns the data; rows arrive through staff.employee.* events.
type StaffRepository struct {
	db *database.DB
}

// NewStaffRepository creates a new staff repository
func NewStaffRepository(db *database.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// Upsert creates or replaces a staff member and marks them active
func (r *StaffRepository) Upsert(ctx context.Context, s *actor.StaffRecord) error {
	query := `
		INSERT INTO staff (id, name, role, active, updated_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role, active = TRUE, updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.Name, s.Role)
	return err
}

// Get gets a staff member by ID
func (r *StaffRepository) Get(ctx context.Context, id int64) (*actor.StaffRecord, error) {
	var s actor.StaffRecord
	query := `SELECT id, name, role, active FROM staff WHERE id = $1`
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(domain.EntityStaff)
		}
		return nil, err
	}
	return &s, nil
}

// Deactivate marks a staff member inactive. The row stays because past
// dispensations reference it.
func (r *StaffRepository) Deactivate(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE staff SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}
