package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/internal/dispensing/lock"
	"github.com/medflow/dispensary-backend/pkg/database"
	apperrors "github.com/medflow/dispensary-backend/pkg/errors"
)

// dispenseOutcome is what a committed dispense leaves behind for event publishing
type dispenseOutcome struct {
	result       *domain.DispenseResult
	dispensation *domain.Dispensation
	prescription *domain.Prescription
	stock        *domain.StockEntry
}

// Dispense hands out req.Quantity units of a prescription from its stock entry.
//
// The checks run in a fixed order and the first failing one is returned:
// prescription exists, stock entry exists, quantity is positive, stock covers
// the quantity, the remaining prescribed quantity covers it, the prescription
// is not cancelled, the staff member is active. On success the dispensation
// is appended, stock is decremented and the prescription status recomputed in
// one transaction. Serialization failures and deadlocks are retried.
func (s *FulfillmentService) Dispense(ctx context.Context, req domain.DispenseRequest) (*domain.DispenseResult, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	log := s.logger.With().
		Int64("prescription_id", req.PrescriptionID).
		Int64("staff_id", req.StaffID).
		Int("quantity", req.Quantity).
		Logger()

	release, err := s.acquire(ctx, req.PrescriptionID)
	if err != nil {
		return nil, s.classify(err)
	}
	defer release(context.WithoutCancel(ctx))

	var outcome *dispenseOutcome
	attempt := 0
	operation := func() error {
		attempt++
		o, err := s.dispenseOnce(ctx, req)
		if err == nil {
			outcome = o
			return nil
		}
		if database.IsRetryable(err) {
			log.Warn().Err(err).Int("attempt", attempt).Msg("dispense transaction conflict, retrying")
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, s.retryPolicy(ctx)); err != nil {
		err = s.classify(err)
		if kind, _ := domain.KindOf(err); kind == domain.KindStorage {
			log.Error().Err(err).Int("attempts", attempt).Msg("dispense failed")
		} else {
			log.Debug().Err(err).Msg("dispense rejected")
		}
		return nil, err
	}

	log.Info().
		Int64("dispensation_id", outcome.result.DispensationID).
		Str("status", string(outcome.result.Status)).
		Int("remaining", outcome.result.Remaining).
		Int("stock_remaining", outcome.result.StockRemaining).
		Msg("dispensation recorded")

	s.publishDispensed(ctx, outcome)

	return outcome.result, nil
}

// dispenseOnce runs a single transaction attempt
func (s *FulfillmentService) dispenseOnce(ctx context.Context, req domain.DispenseRequest) (*dispenseOutcome, error) {
	var outcome *dispenseOutcome

	err := s.ledger.WithinTx(ctx, s.txOptions(), func(tx domain.LedgerTx) error {
		rx, err := tx.LockPrescription(ctx, req.PrescriptionID)
		if err != nil {
			return err
		}

		stock, err := tx.LockStockEntry(ctx, rx.StockEntryID)
		if err != nil {
			return err
		}

		if req.Quantity <= 0 {
			return domain.InvalidQuantity(req.Quantity)
		}

		if req.Quantity > stock.CurrentQuantity {
			return domain.InsufficientStock(req.Quantity, stock.CurrentQuantity)
		}

		dispensed, err := tx.SumDispensed(ctx, rx.ID)
		if err != nil {
			return err
		}
		remaining := rx.PrescribedQuantity - dispensed
		if remaining < 0 {
			remaining = 0
		}
		if req.Quantity > remaining {
			return domain.ExceedsPrescribedQuantity(req.Quantity, remaining)
		}

		if rx.Status == domain.StatusCancelled {
			return domain.PrescriptionCancelled()
		}

		active, err := tx.StaffActive(ctx, req.StaffID)
		if err != nil {
			return err
		}
		if !active {
			return domain.NotFound(domain.EntityStaff)
		}

		d := &domain.Dispensation{
			PrescriptionID: rx.ID,
			StaffID:        req.StaffID,
			Quantity:       req.Quantity,
			Note:           req.Note,
		}
		if req.DispensedAt != nil {
			d.DispensedAt = *req.DispensedAt
		}
		if err := tx.InsertDispensation(ctx, d); err != nil {
			return err
		}

		stockRemaining, err := tx.DecrementStock(ctx, stock.ID, req.Quantity)
		if err != nil {
			return err
		}

		total := dispensed + req.Quantity
		status := domain.DeriveStatus(total, rx.PrescribedQuantity)
		if err := tx.UpdatePrescriptionStatus(ctx, rx.ID, status); err != nil {
			return err
		}

		rx.Status = status
		stock.CurrentQuantity = stockRemaining

		outcome = &dispenseOutcome{
			result: &domain.DispenseResult{
				DispensationID: d.ID,
				PrescriptionID: rx.ID,
				Status:         status,
				Dispensed:      total,
				Remaining:      rx.PrescribedQuantity - total,
				StockRemaining: stockRemaining,
				DispensedAt:    d.DispensedAt,
			},
			dispensation: d,
			prescription: rx,
			stock:        stock,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// acquire takes the distributed lock of the prescription's stock entry.
// Without a configured locker no lookup is made.
func (s *FulfillmentService) acquire(ctx context.Context, prescriptionID int64) (lock.Release, error) {
	if _, ok := s.locker.(lock.Noop); ok {
		return func(context.Context) {}, nil
	}

	stockEntryID, err := s.prescriptions.StockEntryID(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	return s.locker.Acquire(ctx, lock.StockEntryKey(stockEntryID))
}

func (s *FulfillmentService) retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	if s.opts.RetryInitialInterval > 0 {
		b.InitialInterval = s.opts.RetryInitialInterval
	}
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0

	retries := s.opts.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// classify maps an error to the fulfillment taxonomy. Domain and API errors
// pass through, a busy lock becomes a 503 and anything else is a storage error.
func (s *FulfillmentService) classify(err error) error {
	if err == nil {
		return nil
	}

	var fe *domain.FulfillmentError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, lock.ErrBusy) {
		return apperrors.Busy("stock entry")
	}
	if apperrors.AsAppError(err) != nil {
		return err
	}
	return domain.StorageError(err)
}

func (s *FulfillmentService) publishDispensed(ctx context.Context, o *dispenseOutcome) {
	s.publisher.PublishDispensationRecorded(ctx, o.dispensation, o.stock.ID, o.result)

	if o.result.Status == domain.StatusFullyDispensed {
		s.publisher.PublishPrescriptionFullyDispensed(ctx, o.prescription)
	}

	if s.opts.LowStockEvents && o.stock.IsLow() {
		s.publisher.PublishStockLow(ctx, o.stock)
	}
}
