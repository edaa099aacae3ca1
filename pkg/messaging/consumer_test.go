package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/medflow/dispensary-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAck struct {
	acked    int
	nacked   int
	requeued bool
	rejected int
}

func (a *recordingAck) Ack(uint64, bool) error { a.acked++; return nil }

func (a *recordingAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeued = requeue
	return nil
}

func (a *recordingAck) Reject(uint64, bool) error { a.rejected++; return nil }

func delivery(t *testing.T, ack amqp.Acknowledger, eventType string, data any, headers amqp.Table) amqp.Delivery {
	t.Helper()
	event, err := NewEvent(eventType, "staff-service", "corr-1", data)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, Headers: headers}
}

func TestConsumer_HandleMessage_AcksOnSuccess(t *testing.T) {
	c := newConsumer(nil, "dispensary.staff", logger.Nop())

	var got EmployeeCreatedEvent
	var correlationID string
	c.RegisterHandler(EventEmployeeCreated, func(ctx context.Context, e *Event) error {
		correlationID = CorrelationID(ctx)
		return e.UnmarshalData(&got)
	})

	ack := &recordingAck{}
	c.handleMessage(context.Background(), delivery(t, ack, EventEmployeeCreated, EmployeeCreatedEvent{EmployeeID: 7, Name: "Ana Souza"}, nil))

	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, int64(7), got.EmployeeID)
	assert.Equal(t, "Ana Souza", got.Name)
	assert.Equal(t, "corr-1", correlationID)
}

func TestConsumer_HandleMessage_UnknownTypeIsAcked(t *testing.T) {
	c := newConsumer(nil, "dispensary.staff", logger.Nop())

	ack := &recordingAck{}
	c.handleMessage(context.Background(), delivery(t, ack, "staff.shift.created", map[string]string{}, nil))

	assert.Equal(t, 1, ack.acked)
}

func TestConsumer_HandleMessage_MalformedIsRejected(t *testing.T) {
	c := newConsumer(nil, "dispensary.staff", logger.Nop())

	ack := &recordingAck{}
	c.handleMessage(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})

	assert.Equal(t, 1, ack.rejected)
	assert.Zero(t, ack.acked)
}

func TestConsumer_HandleMessage_RequeuesThenDeadLetters(t *testing.T) {
	c := newConsumer(nil, "dispensary.staff", logger.Nop())
	c.RegisterHandler(EventEmployeeDeleted, func(context.Context, *Event) error {
		return errors.New("db unavailable")
	})

	ack := &recordingAck{}
	c.handleMessage(context.Background(), delivery(t, ack, EventEmployeeDeleted, EmployeeDeletedEvent{EmployeeID: 1}, nil))
	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeued)

	exhausted := amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(defaultMaxDeliveries)}}}
	ack = &recordingAck{}
	c.handleMessage(context.Background(), delivery(t, ack, EventEmployeeDeleted, EmployeeDeletedEvent{EmployeeID: 1}, exhausted))
	assert.Equal(t, 1, ack.rejected)
	assert.Zero(t, ack.nacked)
}

func TestNewEvent_CarriesPayload(t *testing.T) {
	event, err := NewEvent(EventStockLow, "dispensary-service", "", StockLowEvent{StockEntryID: 3, CurrentQuantity: 2, MinAlertQuantity: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventStockLow, event.Type)

	var data StockLowEvent
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, int64(3), data.StockEntryID)
	assert.Equal(t, 2, data.CurrentQuantity)
}
