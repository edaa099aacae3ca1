// Package domain holds the dispensary records and the fulfillment error taxonomy.
package domain

import "time"

// Status is the fulfillment state of a prescription
type Status string

const (
	StatusPending            Status = "pending"
	StatusPartiallyDispensed Status = "partially_dispensed"
	StatusFullyDispensed     Status = "fully_dispensed"
	StatusCancelled          Status = "cancelled"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPartiallyDispensed, StatusFullyDispensed, StatusCancelled:
		return true
	}
	return false
}

// Cancellable reports whether a prescription in status s may be cancelled
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusPartiallyDispensed
}

// DeriveStatus computes the status of a non-cancelled prescription from the
// total dispensed so far.
func DeriveStatus(dispensed, prescribed int) Status {
	switch {
	case dispensed <= 0:
		return StatusPending
	case dispensed >= prescribed:
		return StatusFullyDispensed
	default:
		return StatusPartiallyDispensed
	}
}

// StockEntry is one stock ledger row: a lot of a medication held at a health post
type StockEntry struct {
	ID               int64      `db:"id" json:"id"`
	MedicationID     int64      `db:"medication_id" json:"medication_id"`
	HealthPostID     int64      `db:"health_post_id" json:"health_post_id"`
	Lot              string     `db:"lot" json:"lot"`
	ExpiryDate       *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	CurrentQuantity  int        `db:"current_quantity" json:"current_quantity"`
	MinAlertQuantity int        `db:"min_alert_quantity" json:"min_alert_quantity"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// IsLow reports whether the entry is at or below its alert quantity
func (s *StockEntry) IsLow() bool {
	return s.CurrentQuantity <= s.MinAlertQuantity
}

// StockEntryView is a stock entry with display names
type StockEntryView struct {
	StockEntry
	MedicationName string `db:"medication_name" json:"medication_name"`
	HealthPostName string `db:"health_post_name" json:"health_post_name"`
}

// Prescription orders a quantity of one stock entry for a visit
type Prescription struct {
	ID                 int64     `db:"id" json:"id"`
	VisitID            int64     `db:"visit_id" json:"visit_id"`
	StockEntryID       int64     `db:"stock_entry_id" json:"stock_entry_id"`
	DosageInstructions string    `db:"dosage_instructions" json:"dosage_instructions"`
	PrescribedQuantity int       `db:"prescribed_quantity" json:"prescribed_quantity"`
	Status             Status    `db:"status" json:"status"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// PrescriptionView is a prescription with display fields and fulfillment totals
type PrescriptionView struct {
	Prescription
	PatientName    string    `db:"patient_name" json:"patient_name"`
	MedicationName string    `db:"medication_name" json:"medication_name"`
	HealthPostName string    `db:"health_post_name" json:"health_post_name"`
	Lot            string    `db:"lot" json:"lot"`
	CurrentStock   int       `db:"current_stock" json:"current_stock"`
	VisitStartedAt time.Time `db:"visit_started_at" json:"visit_started_at"`
	Dispensed      int       `db:"dispensed" json:"dispensed"`
	Remaining      int       `db:"remaining" json:"remaining"`
}

// Dispensation is one immutable fulfillment event
type Dispensation struct {
	ID             int64     `db:"id" json:"id"`
	PrescriptionID int64     `db:"prescription_id" json:"prescription_id"`
	StaffID        int64     `db:"staff_id" json:"staff_id"`
	Quantity       int       `db:"quantity" json:"quantity"`
	DispensedAt    time.Time `db:"dispensed_at" json:"dispensed_at"`
	Note           *string   `db:"note" json:"note,omitempty"`
}

// DispensationView is a dispensation with display fields for listings and export
type DispensationView struct {
	Dispensation
	PatientName    string `db:"patient_name" json:"patient_name"`
	StaffName      string `db:"staff_name" json:"staff_name"`
	MedicationName string `db:"medication_name" json:"medication_name"`
	Lot            string `db:"lot" json:"lot"`
	HealthPostName string `db:"health_post_name" json:"health_post_name"`
}

// DispenseRequest asks to hand out quantity units of a prescription
type DispenseRequest struct {
	PrescriptionID int64
	StaffID        int64
	Quantity       int
	Note           *string
	// DispensedAt defaults to the server time when nil
	DispensedAt *time.Time
}

// DispenseResult reports the state after a successful dispense
type DispenseResult struct {
	DispensationID int64     `json:"dispensation_id"`
	PrescriptionID int64     `json:"prescription_id"`
	Status         Status    `json:"status"`
	Dispensed      int       `json:"dispensed"`
	Remaining      int       `json:"remaining"`
	StockRemaining int       `json:"stock_remaining"`
	DispensedAt    time.Time `json:"dispensed_at"`
}

// StockFilter narrows stock listings
type StockFilter struct {
	Search             string
	MedicationID       *int64
	HealthPostID       *int64
	ExpiringWithinDays *int
	LowStock           bool
	Limit              int
	Offset             int
}

// PrescriptionFilter narrows prescription listings
type PrescriptionFilter struct {
	Search       string
	VisitID      *int64
	MedicationID *int64
	Status       *Status
	Limit        int
	Offset       int
}

// DispensationFilter narrows dispensation listings
type DispensationFilter struct {
	Search         string
	PrescriptionID *int64
	StaffID        *int64
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}
