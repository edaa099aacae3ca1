// Package consumers keeps local reference data in sync with other services.
package consumers

import (
	"context"
	"fmt"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/pkg/actor"
	"github.com/medflow/dispensary-backend/pkg/errors"
	"github.com/medflow/dispensary-backend/pkg/logger"
	"github.com/medflow/dispensary-backend/pkg/messaging"
)

// StaffQueue is the durable queue bound to staff.events
const StaffQueue = "dispensary-service.staff-events"

// StaffStore is the subset of the staff repository the consumer writes to
type StaffStore interface {
	Upsert(ctx context.Context, s *actor.StaffRecord) error
	Get(ctx context.Context, id int64) (*actor.StaffRecord, error)
	Deactivate(ctx context.Context, id int64) error
}

// StaffEventConsumer consumes staff.employee.* events
type StaffEventConsumer struct {
	consumer *messaging.Consumer
	staff    StaffStore
	logger   *logger.Logger
}

// NewStaffEventConsumer declares the queue, binds it and registers handlers
func NewStaffEventConsumer(rmq *messaging.RabbitMQ, staff StaffStore, log *logger.Logger) (*StaffEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, StaffQueue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeStaffEvents, "staff.employee.*"); err != nil {
		return nil, err
	}

	c := newStaffEventConsumer(staff, log)
	c.consumer = consumer

	consumer.RegisterHandler(messaging.EventEmployeeCreated, c.handleEmployeeCreated)
	consumer.RegisterHandler(messaging.EventEmployeeUpdated, c.handleEmployeeUpdated)
	consumer.RegisterHandler(messaging.EventEmployeeDeleted, c.handleEmployeeDeleted)

	return c, nil
}

func newStaffEventConsumer(staff StaffStore, log *logger.Logger) *StaffEventConsumer {
	return &StaffEventConsumer{staff: staff, logger: log.WithComponent("staff-consumer")}
}

// Start starts consuming messages
func (c *StaffEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *StaffEventConsumer) handleEmployeeCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.EmployeeCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if data.EmployeeID <= 0 {
		return fmt.Errorf("employee created event %s without employee_id", event.ID)
	}

	c.logger.Info().
		Int64("staff_id", data.EmployeeID).
		Str("name", data.Name).
		Msg("received employee created event")

	return c.staff.Upsert(ctx, &actor.StaffRecord{
		ID:   data.EmployeeID,
		Name: data.Name,
		Role: data.Role,
	})
}

func (c *StaffEventConsumer) handleEmployeeUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.EmployeeUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Int64("staff_id", data.EmployeeID).
		Msg("received employee updated event")

	existing, err := c.staff.Get(ctx, data.EmployeeID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		// Unknown employee: only a named update can create the row.
		if data.Name == nil {
			return nil
		}
		existing = &actor.StaffRecord{ID: data.EmployeeID, Active: true}
	}

	if data.Name != nil {
		existing.Name = *data.Name
	}
	if data.Role != nil {
		existing.Role = *data.Role
	}

	if data.Active != nil && !*data.Active {
		if err := c.staff.Upsert(ctx, existing); err != nil {
			return err
		}
		return c.staff.Deactivate(ctx, existing.ID)
	}

	return c.staff.Upsert(ctx, existing)
}

func (c *StaffEventConsumer) handleEmployeeDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.EmployeeDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Int64("staff_id", data.EmployeeID).
		Msg("received employee deleted event")

	return c.staff.Deactivate(ctx, data.EmployeeID)
}
