// Package events publishes dispensary events after the owning transaction commits.
package events

import (
	"context"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/pkg/logger"
	"github.com/medflow/dispensary-backend/pkg/messaging"
)

// DispensaryEventPublisher publishes dispensary events. A nil publisher is a
// no-op so the service runs without RabbitMQ.
type DispensaryEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewDispensaryEventPublisher creates a publisher on the dispensary.events exchange
func NewDispensaryEventPublisher(rmq *messaging.RabbitMQ, source string, log *logger.Logger) (*DispensaryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeDispensaryEvents, source, log)
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(publisher, log), nil
}

// NewWithPublisher wraps any EventPublisher
func NewWithPublisher(publisher messaging.EventPublisher, log *logger.Logger) *DispensaryEventPublisher {
	return &DispensaryEventPublisher{publisher: publisher, logger: log.WithComponent("events")}
}

// PublishDispensationRecorded publishes a dispensation recorded event
func (p *DispensaryEventPublisher) PublishDispensationRecorded(ctx context.Context, d *domain.Dispensation, stockEntryID int64, result *domain.DispenseResult) {
	if p == nil {
		return
	}

	data := messaging.DispensationRecordedEvent{
		DispensationID: d.ID,
		PrescriptionID: d.PrescriptionID,
		StockEntryID:   stockEntryID,
		StaffID:        d.StaffID,
		Quantity:       d.Quantity,
		Status:         string(result.Status),
		Remaining:      result.Remaining,
		StockRemaining: result.StockRemaining,
		DispensedAt:    d.DispensedAt,
	}

	if err := p.publisher.Publish(ctx, messaging.EventDispensationRecorded, data); err != nil {
		p.logger.Error().Err(err).Int64("dispensation_id", d.ID).Msg("failed to publish dispensation recorded event")
	}
}

// PublishPrescriptionFullyDispensed publishes a prescription fully dispensed event
func (p *DispensaryEventPublisher) PublishPrescriptionFullyDispensed(ctx context.Context, rx *domain.Prescription) {
	if p == nil {
		return
	}

	data := messaging.PrescriptionFullyDispensedEvent{
		PrescriptionID:     rx.ID,
		VisitID:            rx.VisitID,
		PrescribedQuantity: rx.PrescribedQuantity,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPrescriptionFullyDispensed, data); err != nil {
		p.logger.Error().Err(err).Int64("prescription_id", rx.ID).Msg("failed to publish prescription fully dispensed event")
	}
}

// PublishPrescriptionCancelled publishes a prescription cancelled event
func (p *DispensaryEventPublisher) PublishPrescriptionCancelled(ctx context.Context, rx *domain.Prescription, dispensed int) {
	if p == nil {
		return
	}

	data := messaging.PrescriptionCancelledEvent{
		PrescriptionID: rx.ID,
		VisitID:        rx.VisitID,
		Dispensed:      dispensed,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPrescriptionCancelled, data); err != nil {
		p.logger.Error().Err(err).Int64("prescription_id", rx.ID).Msg("failed to publish prescription cancelled event")
	}
}

// PublishStockLow publishes a low stock event
func (p *DispensaryEventPublisher) PublishStockLow(ctx context.Context, s *domain.StockEntry) {
	if p == nil {
		return
	}

	data := messaging.StockLowEvent{
		StockEntryID:     s.ID,
		MedicationID:     s.MedicationID,
		HealthPostID:     s.HealthPostID,
		Lot:              s.Lot,
		CurrentQuantity:  s.CurrentQuantity,
		MinAlertQuantity: s.MinAlertQuantity,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockLow, data); err != nil {
		p.logger.Error().Err(err).Int64("stock_entry_id", s.ID).Msg("failed to publish stock low event")
	}
}
