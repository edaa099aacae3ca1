package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/internal/dispensing/events"
	"github.com/medflow/dispensary-backend/internal/dispensing/lock"
	"github.com/medflow/dispensary-backend/pkg/config"
	"github.com/medflow/dispensary-backend/pkg/database"
	"github.com/medflow/dispensary-backend/pkg/logger"
)

// Ledger runs a function inside one database transaction
type Ledger interface {
	WithinTx(ctx context.Context, opts *sql.TxOptions, fn func(domain.LedgerTx) error) error
}

// StockStore reads and writes stock ledger entries
type StockStore interface {
	GetByID(ctx context.Context, id int64) (*domain.StockEntryView, error)
	List(ctx context.Context, filter domain.StockFilter) ([]*domain.StockEntryView, int64, error)
	Upsert(ctx context.Context, entry *domain.StockEntry) error
	Delete(ctx context.Context, id int64) error
}

// PrescriptionStore reads and writes prescriptions
type PrescriptionStore interface {
	Create(ctx context.Context, p *domain.Prescription) error
	GetByID(ctx context.Context, id int64) (*domain.PrescriptionView, error)
	List(ctx context.Context, filter domain.PrescriptionFilter) ([]*domain.PrescriptionView, int64, error)
	StockEntryID(ctx context.Context, id int64) (int64, error)
	SumDispensed(ctx context.Context, prescriptionID int64) (int, error)
	Delete(ctx context.Context, id int64) error
}

// DispensationStore reads the dispensation log
type DispensationStore interface {
	GetByID(ctx context.Context, id int64) (*domain.DispensationView, error)
	List(ctx context.Context, filter domain.DispensationFilter) ([]*domain.DispensationView, int64, error)
}

// Options tunes the dispense transaction
type Options struct {
	Isolation            sql.IsolationLevel
	MaxRetries           int
	RetryInitialInterval time.Duration
	// Timeout caps a whole Dispense call, retries included. Zero disables it.
	Timeout        time.Duration
	LowStockEvents bool
}

// OptionsFromConfig builds Options from the dispensing config section
func OptionsFromConfig(cfg config.DispensingConfig) Options {
	return Options{
		Isolation:            database.IsolationLevel(cfg.Isolation),
		MaxRetries:           cfg.MaxTxRetries,
		RetryInitialInterval: cfg.RetryInitialInterval,
		Timeout:              cfg.Timeout,
		LowStockEvents:       cfg.LowStockEvents,
	}
}

// FulfillmentService coordinates dispensing against the stock ledger and
// serves the dispensary read models
type FulfillmentService struct {
	ledger        Ledger
	stock         StockStore
	prescriptions PrescriptionStore
	dispensations DispensationStore
	locker        lock.Locker
	publisher     *events.DispensaryEventPublisher
	opts          Options
	logger        *logger.Logger
}

// NewFulfillmentService creates a new fulfillment service. A nil locker
// falls back to row locks only; a nil publisher disables events.
func NewFulfillmentService(
	ledger Ledger,
	stock StockStore,
	prescriptions PrescriptionStore,
	dispensations DispensationStore,
	locker lock.Locker,
	publisher *events.DispensaryEventPublisher,
	opts Options,
	log *logger.Logger,
) *FulfillmentService {
	if locker == nil {
		locker = lock.Noop{}
	}
	return &FulfillmentService{
		ledger:        ledger,
		stock:         stock,
		prescriptions: prescriptions,
		dispensations: dispensations,
		locker:        locker,
		publisher:     publisher,
		opts:          opts,
		logger:        log.WithComponent("fulfillment"),
	}
}

func (s *FulfillmentService) txOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: s.opts.Isolation}
}
