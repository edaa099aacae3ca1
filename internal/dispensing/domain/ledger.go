package domain

import "context"

// LedgerTx is the set of statements a dispense runs inside one transaction.
// Lock* methods take row locks held until the transaction ends and return a
// NotFound FulfillmentError when the row does not exist.
type LedgerTx interface {
	LockPrescription(ctx context.Context, id int64) (*Prescription, error)
	LockStockEntry(ctx context.Context, id int64) (*StockEntry, error)
	SumDispensed(ctx context.Context, prescriptionID int64) (int, error)
	StaffActive(ctx context.Context, staffID int64) (bool, error)
	InsertDispensation(ctx context.Context, d *Dispensation) error
	// DecrementStock subtracts quantity and returns the new current quantity
	DecrementStock(ctx context.Context, stockEntryID int64, quantity int) (int, error)
	UpdatePrescriptionStatus(ctx context.Context, id int64, status Status) error
}
