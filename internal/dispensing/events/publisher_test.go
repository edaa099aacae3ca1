package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/pkg/logger"
	"github.com/medflow/dispensary-backend/pkg/messaging"
	"github.com/medflow/dispensary-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDispensationRecorded(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := NewWithPublisher(mock, logger.Nop())

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p.PublishDispensationRecorded(context.Background(),
		&domain.Dispensation{ID: 9, PrescriptionID: 4, StaffID: 2, Quantity: 20, DispensedAt: at},
		7,
		&domain.DispenseResult{Status: domain.StatusPartiallyDispensed, Remaining: 30, StockRemaining: 480},
	)

	payloads := mock.EventsOfType(messaging.EventDispensationRecorded)
	require.Len(t, payloads, 1)
	data := payloads[0].(messaging.DispensationRecordedEvent)
	assert.Equal(t, int64(9), data.DispensationID)
	assert.Equal(t, int64(7), data.StockEntryID)
	assert.Equal(t, "partially_dispensed", data.Status)
	assert.Equal(t, 30, data.Remaining)
	assert.Equal(t, at, data.DispensedAt)
}

func TestPublishStockLow(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := NewWithPublisher(mock, logger.Nop())

	p.PublishStockLow(context.Background(), &domain.StockEntry{ID: 3, Lot: "A1", CurrentQuantity: 4, MinAlertQuantity: 10})

	payloads := mock.EventsOfType(messaging.EventStockLow)
	require.Len(t, payloads, 1)
	assert.Equal(t, "A1", payloads[0].(messaging.StockLowEvent).Lot)
}

func TestPublisher_ErrorsAreSwallowed(t *testing.T) {
	mock := testutil.NewMockPublisher()
	mock.Err = errors.New("channel closed")
	p := NewWithPublisher(mock, logger.Nop())

	assert.NotPanics(t, func() {
		p.PublishPrescriptionFullyDispensed(context.Background(), &domain.Prescription{ID: 1})
	})
	mock.AssertNoEventsPublished(t)
}

func TestNilPublisher_IsNoop(t *testing.T) {
	var p *DispensaryEventPublisher
	assert.NotPanics(t, func() {
		p.PublishStockLow(context.Background(), &domain.StockEntry{})
		p.PublishPrescriptionCancelled(context.Background(), &domain.Prescription{}, 0)
	})
}
