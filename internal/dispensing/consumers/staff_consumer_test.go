package consumers

import (
	"context"
	"testing"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/pkg/actor"
	"github.com/medflow/dispensary-backend/pkg/logger"
	"github.com/medflow/dispensary-backend/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStaff struct {
	rows map[int64]*actor.StaffRecord
}

func newMemoryStaff() *memoryStaff {
	return &memoryStaff{rows: map[int64]*actor.StaffRecord{}}
}

func (m *memoryStaff) Upsert(_ context.Context, s *actor.StaffRecord) error {
	cp := *s
	cp.Active = true
	m.rows[s.ID] = &cp
	return nil
}

func (m *memoryStaff) Get(_ context.Context, id int64) (*actor.StaffRecord, error) {
	s, ok := m.rows[id]
	if !ok {
		return nil, domain.NotFound(domain.EntityStaff)
	}
	cp := *s
	return &cp, nil
}

func (m *memoryStaff) Deactivate(_ context.Context, id int64) error {
	if s, ok := m.rows[id]; ok {
		s.Active = false
	}
	return nil
}

func event(t *testing.T, eventType string, data any) *messaging.Event {
	t.Helper()
	e, err := messaging.NewEvent(eventType, "staff-service", "", data)
	require.NoError(t, err)
	return e
}

func TestStaffConsumer_Created(t *testing.T) {
	store := newMemoryStaff()
	c := newStaffEventConsumer(store, logger.Nop())

	err := c.handleEmployeeCreated(context.Background(), event(t, messaging.EventEmployeeCreated,
		messaging.EmployeeCreatedEvent{EmployeeID: 11, Name: "Rita Alves", Role: "nurse"}))
	require.NoError(t, err)

	require.Contains(t, store.rows, int64(11))
	assert.Equal(t, "Rita Alves", store.rows[11].Name)
	assert.True(t, store.rows[11].Active)
}

func TestStaffConsumer_CreatedWithoutID(t *testing.T) {
	c := newStaffEventConsumer(newMemoryStaff(), logger.Nop())

	err := c.handleEmployeeCreated(context.Background(), event(t, messaging.EventEmployeeCreated,
		messaging.EmployeeCreatedEvent{Name: "nobody"}))
	assert.Error(t, err)
}

func TestStaffConsumer_UpdatedMergesFields(t *testing.T) {
	store := newMemoryStaff()
	store.rows[3] = &actor.StaffRecord{ID: 3, Name: "Old Name", Role: "nurse", Active: true}
	c := newStaffEventConsumer(store, logger.Nop())

	role := "pharmacist"
	err := c.handleEmployeeUpdated(context.Background(), event(t, messaging.EventEmployeeUpdated,
		messaging.EmployeeUpdatedEvent{EmployeeID: 3, Role: &role}))
	require.NoError(t, err)

	assert.Equal(t, "Old Name", store.rows[3].Name)
	assert.Equal(t, "pharmacist", store.rows[3].Role)
}

func TestStaffConsumer_UpdatedDeactivates(t *testing.T) {
	store := newMemoryStaff()
	store.rows[3] = &actor.StaffRecord{ID: 3, Name: "Ana", Active: true}
	c := newStaffEventConsumer(store, logger.Nop())

	inactive := false
	err := c.handleEmployeeUpdated(context.Background(), event(t, messaging.EventEmployeeUpdated,
		messaging.EmployeeUpdatedEvent{EmployeeID: 3, Active: &inactive}))
	require.NoError(t, err)

	assert.False(t, store.rows[3].Active)
}

func TestStaffConsumer_UpdatedUnknownWithoutName(t *testing.T) {
	store := newMemoryStaff()
	c := newStaffEventConsumer(store, logger.Nop())

	err := c.handleEmployeeUpdated(context.Background(), event(t, messaging.EventEmployeeUpdated,
		messaging.EmployeeUpdatedEvent{EmployeeID: 99}))
	require.NoError(t, err)
	assert.Empty(t, store.rows)
}

func TestStaffConsumer_Deleted(t *testing.T) {
	store := newMemoryStaff()
	store.rows[5] = &actor.StaffRecord{ID: 5, Name: "Leo", Active: true}
	c := newStaffEventConsumer(store, logger.Nop())

	err := c.handleEmployeeDeleted(context.Background(), event(t, messaging.EventEmployeeDeleted,
		messaging.EmployeeDeletedEvent{EmployeeID: 5}))
	require.NoError(t, err)

	require.Contains(t, store.rows, int64(5))
	assert.False(t, store.rows[5].Active)
}
