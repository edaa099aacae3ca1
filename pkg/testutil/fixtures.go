package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/medflow/dispensary-backend/pkg/database"
)

// StockEntryFixture represents test stock ledger data
type StockEntryFixture struct {
	MedicationID     int64
	HealthPostID     int64
	Lot              string
	ExpiryDate       *time.Time
	CurrentQuantity  int
	MinAlertQuantity int
}

// PrescriptionFixture represents test prescription data
type PrescriptionFixture struct {
	VisitID            int64
	StockEntryID       int64
	DosageInstructions string
	PrescribedQuantity int
	Status             string
}

// Scenario is a fully linked set of rows: a stock entry at a health post and
// a prescription against it for a patient's visit, plus one staff member.
type Scenario struct {
	HealthPostID   int64
	MedicationID   int64
	PatientID      int64
	VisitID        int64
	StaffID        int64
	StockEntryID   int64
	PrescriptionID int64
}

// FixtureFactory inserts test rows with sensible defaults
type FixtureFactory struct {
	db       *database.DB
	sequence int
}

// NewFixtureFactory creates a fixture factory writing to db
func NewFixtureFactory(db *database.DB) *FixtureFactory {
	return &FixtureFactory{db: db}
}

func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

func (f *FixtureFactory) insert(t *testing.T, query string, args ...interface{}) int64 {
	t.Helper()
	var id int64
	if err := f.db.GetContext(context.Background(), &id, query, args...); err != nil {
		t.Fatalf("fixture insert failed: %v\n%s", err, query)
	}
	return id
}

// HealthPost inserts a health post
func (f *FixtureFactory) HealthPost(t *testing.T) int64 {
	t.Helper()
	return f.insert(t, `INSERT INTO health_posts (name) VALUES ($1) RETURNING id`,
		fmt.Sprintf("Posto de Saúde %d", f.nextSeq()))
}

// Medication inserts a medication
func (f *FixtureFactory) Medication(t *testing.T, name string) int64 {
	t.Helper()
	if name == "" {
		name = fmt.Sprintf("Medication %d", f.nextSeq())
	}
	return f.insert(t, `INSERT INTO medications (name) VALUES ($1) RETURNING id`, name)
}

// Patient inserts a patient
func (f *FixtureFactory) Patient(t *testing.T) int64 {
	t.Helper()
	return f.insert(t, `INSERT INTO patients (name) VALUES ($1) RETURNING id`,
		fmt.Sprintf("Patient %d", f.nextSeq()))
}

// Visit inserts a visit for patientID at healthPostID
func (f *FixtureFactory) Visit(t *testing.T, patientID, healthPostID int64) int64 {
	t.Helper()
	return f.insert(t, `INSERT INTO visits (patient_id, health_post_id) VALUES ($1, $2) RETURNING id`,
		patientID, healthPostID)
}

// Staff inserts an active staff member with an explicit id
func (f *FixtureFactory) Staff(t *testing.T, id int64) int64 {
	t.Helper()
	return f.insert(t, `INSERT INTO staff (id, name, role) VALUES ($1, $2, 'pharmacist') RETURNING id`,
		id, fmt.Sprintf("Staff %d", id))
}

// StockEntry inserts a stock ledger entry
func (f *FixtureFactory) StockEntry(t *testing.T, fx StockEntryFixture) int64 {
	t.Helper()
	if fx.Lot == "" {
		fx.Lot = fmt.Sprintf("LOT-%04d", f.nextSeq())
	}
	return f.insert(t, `
		INSERT INTO stock_entries (medication_id, health_post_id, lot, expiry_date, current_quantity, min_alert_quantity)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		fx.MedicationID, fx.HealthPostID, fx.Lot, fx.ExpiryDate, fx.CurrentQuantity, fx.MinAlertQuantity)
}

// Prescription inserts a prescription, pending unless a status is given
func (f *FixtureFactory) Prescription(t *testing.T, fx PrescriptionFixture) int64 {
	t.Helper()
	if fx.Status == "" {
		fx.Status = "pending"
	}
	if fx.DosageInstructions == "" {
		fx.DosageInstructions = "1 tablet every 8 hours"
	}
	return f.insert(t, `
		INSERT INTO prescriptions (visit_id, stock_entry_id, dosage_instructions, prescribed_quantity, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		fx.VisitID, fx.StockEntryID, fx.DosageInstructions, fx.PrescribedQuantity, fx.Status)
}

// Dispensation inserts a historical dispensation without touching stock or status
func (f *FixtureFactory) Dispensation(t *testing.T, prescriptionID, staffID int64, quantity int) int64 {
	t.Helper()
	return f.insert(t, `
		INSERT INTO dispensations (prescription_id, staff_id, quantity) VALUES ($1, $2, $3) RETURNING id`,
		prescriptionID, staffID, quantity)
}

// Scenario builds a linked stock entry and prescription
func (f *FixtureFactory) Scenario(t *testing.T, stock, prescribed int) Scenario {
	t.Helper()

	s := Scenario{
		HealthPostID: f.HealthPost(t),
		MedicationID: f.Medication(t, "Amoxicilina 500mg"),
		PatientID:    f.Patient(t),
	}
	s.VisitID = f.Visit(t, s.PatientID, s.HealthPostID)
	s.StaffID = f.Staff(t, int64(1000+f.nextSeq()))
	s.StockEntryID = f.StockEntry(t, StockEntryFixture{
		MedicationID:     s.MedicationID,
		HealthPostID:     s.HealthPostID,
		CurrentQuantity:  stock,
		MinAlertQuantity: 10,
	})
	s.PrescriptionID = f.Prescription(t, PrescriptionFixture{
		VisitID:            s.VisitID,
		StockEntryID:       s.StockEntryID,
		PrescribedQuantity: prescribed,
	})

	return s
}
