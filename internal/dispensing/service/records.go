package service

import (
	"context"
	"fmt"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	apperrors "github.com/medflow/dispensary-backend/pkg/errors"
)

// Stock operations

// GetStockEntry gets a stock entry with medication and health post names
func (s *FulfillmentService) GetStockEntry(ctx context.Context, id int64) (*domain.StockEntryView, error) {
	entry, err := s.stock.GetByID(ctx, id)
	if err != nil {
		return nil, s.classify(err)
	}
	return entry, nil
}

// ListStock lists stock entries
func (s *FulfillmentService) ListStock(ctx context.Context, filter domain.StockFilter) ([]*domain.StockEntryView, int64, error) {
	entries, total, err := s.stock.List(ctx, filter)
	if err != nil {
		return nil, 0, s.classify(err)
	}
	return entries, total, nil
}

// RecordStockIntake adds an intake to the (medication, health post, lot) entry,
// creating it when it does not exist yet
func (s *FulfillmentService) RecordStockIntake(ctx context.Context, entry *domain.StockEntry) (*domain.StockEntryView, error) {
	if entry.CurrentQuantity < 0 {
		return nil, apperrors.Validation(map[string]string{"quantity": "must not be negative"})
	}

	if err := s.stock.Upsert(ctx, entry); err != nil {
		return nil, s.classify(err)
	}

	s.logger.Info().
		Int64("stock_entry_id", entry.ID).
		Str("lot", entry.Lot).
		Int("current_quantity", entry.CurrentQuantity).
		Msg("stock intake recorded")

	return s.GetStockEntry(ctx, entry.ID)
}

// DeleteStockEntry deletes a stock entry no prescription references
func (s *FulfillmentService) DeleteStockEntry(ctx context.Context, id int64) error {
	if err := s.stock.Delete(ctx, id); err != nil {
		return s.classify(err)
	}
	return nil
}

// Prescription operations

// GetPrescription gets a prescription with display fields and fulfillment totals
func (s *FulfillmentService) GetPrescription(ctx context.Context, id int64) (*domain.PrescriptionView, error) {
	rx, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, s.classify(err)
	}
	return rx, nil
}

// SumDispensed returns the quantity dispensed so far for a prescription.
// An unknown prescription has dispensed nothing.
func (s *FulfillmentService) SumDispensed(ctx context.Context, prescriptionID int64) (int, error) {
	total, err := s.prescriptions.SumDispensed(ctx, prescriptionID)
	if err != nil {
		return 0, s.classify(err)
	}
	return total, nil
}

// ListPrescriptions lists prescriptions, newest first
func (s *FulfillmentService) ListPrescriptions(ctx context.Context, filter domain.PrescriptionFilter) ([]*domain.PrescriptionView, int64, error) {
	prescriptions, total, err := s.prescriptions.List(ctx, filter)
	if err != nil {
		return nil, 0, s.classify(err)
	}
	return prescriptions, total, nil
}

// CreatePrescription creates a pending prescription against an existing stock entry
func (s *FulfillmentService) CreatePrescription(ctx context.Context, p *domain.Prescription) (*domain.PrescriptionView, error) {
	if p.PrescribedQuantity <= 0 {
		return nil, apperrors.Validation(map[string]string{"prescribed_quantity": "must be greater than 0"})
	}

	if _, err := s.stock.GetByID(ctx, p.StockEntryID); err != nil {
		return nil, s.classify(err)
	}

	if err := s.prescriptions.Create(ctx, p); err != nil {
		return nil, s.classify(err)
	}

	s.logger.Info().
		Int64("prescription_id", p.ID).
		Int64("visit_id", p.VisitID).
		Int("prescribed_quantity", p.PrescribedQuantity).
		Msg("prescription created")

	return s.GetPrescription(ctx, p.ID)
}

// CancelPrescription cancels a pending or partially dispensed prescription.
// Units already dispensed stay dispensed.
func (s *FulfillmentService) CancelPrescription(ctx context.Context, id int64) (*domain.PrescriptionView, error) {
	var (
		cancelled *domain.Prescription
		dispensed int
	)

	err := s.ledger.WithinTx(ctx, s.txOptions(), func(tx domain.LedgerTx) error {
		rx, err := tx.LockPrescription(ctx, id)
		if err != nil {
			return err
		}
		if !rx.Status.Cancellable() {
			return apperrors.Conflict(fmt.Sprintf("prescription is %s and cannot be cancelled", rx.Status))
		}

		dispensed, err = tx.SumDispensed(ctx, rx.ID)
		if err != nil {
			return err
		}

		if err := tx.UpdatePrescriptionStatus(ctx, rx.ID, domain.StatusCancelled); err != nil {
			return err
		}
		rx.Status = domain.StatusCancelled
		cancelled = rx
		return nil
	})
	if err != nil {
		return nil, s.classify(err)
	}

	s.logger.Info().Int64("prescription_id", id).Int("dispensed", dispensed).Msg("prescription cancelled")
	s.publisher.PublishPrescriptionCancelled(ctx, cancelled, dispensed)

	return s.GetPrescription(ctx, id)
}

// DeletePrescription deletes a prescription that has no dispensations
func (s *FulfillmentService) DeletePrescription(ctx context.Context, id int64) error {
	if err := s.prescriptions.Delete(ctx, id); err != nil {
		return s.classify(err)
	}
	return nil
}

// Dispensation operations

// GetDispensation gets one dispensation with display fields
func (s *FulfillmentService) GetDispensation(ctx context.Context, id int64) (*domain.DispensationView, error) {
	d, err := s.dispensations.GetByID(ctx, id)
	if err != nil {
		return nil, s.classify(err)
	}
	return d, nil
}

// ListDispensations lists the dispensation log
func (s *FulfillmentService) ListDispensations(ctx context.Context, filter domain.DispensationFilter) ([]*domain.DispensationView, int64, error) {
	list, total, err := s.dispensations.List(ctx, filter)
	if err != nil {
		return nil, 0, s.classify(err)
	}
	return list, total, nil
}

// ListPrescriptionDispensations lists the dispensations of one prescription
func (s *FulfillmentService) ListPrescriptionDispensations(ctx context.Context, prescriptionID int64, filter domain.DispensationFilter) ([]*domain.DispensationView, int64, error) {
	if _, err := s.prescriptions.StockEntryID(ctx, prescriptionID); err != nil {
		return nil, 0, s.classify(err)
	}

	filter.PrescriptionID = &prescriptionID
	return s.ListDispensations(ctx, filter)
}
