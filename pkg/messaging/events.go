package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Staff events consumed to keep the local staff reference table current
	EventEmployeeCreated = "staff.employee.created"
	EventEmployeeUpdated = "staff.employee.updated"
	EventEmployeeDeleted = "staff.employee.deleted"

	// Dispensary events
	EventDispensationRecorded       = "dispensary.dispensation.recorded"
	EventPrescriptionFullyDispensed = "dispensary.prescription.fully_dispensed"
	EventPrescriptionCancelled      = "dispensary.prescription.cancelled"
	EventStockLow                   = "dispensary.stock.low"
)

// Exchange names
const (
	ExchangeStaffEvents      = "staff.events"
	ExchangeDispensaryEvents = "dispensary.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Staff Events

// EmployeeCreatedEvent is published by the staff service when an employee is created
type EmployeeCreatedEvent struct {
	EmployeeID int64  `json:"employee_id"`
	Name       string `json:"name"`
	Role       string `json:"role,omitempty"`
}

// EmployeeUpdatedEvent carries only the fields that changed
type EmployeeUpdatedEvent struct {
	EmployeeID int64   `json:"employee_id"`
	Name       *string `json:"name,omitempty"`
	Role       *string `json:"role,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

// EmployeeDeletedEvent is published when an employee is deleted
type EmployeeDeletedEvent struct {
	EmployeeID int64 `json:"employee_id"`
}

// Dispensary Events

// DispensationRecordedEvent is published after a dispense commits
type DispensationRecordedEvent struct {
	DispensationID int64     `json:"dispensation_id"`
	PrescriptionID int64     `json:"prescription_id"`
	StockEntryID   int64     `json:"stock_entry_id"`
	StaffID        int64     `json:"staff_id"`
	Quantity       int       `json:"quantity"`
	Status         string    `json:"status"`
	Remaining      int       `json:"remaining"`
	StockRemaining int       `json:"stock_remaining"`
	DispensedAt    time.Time `json:"dispensed_at"`
}

// PrescriptionFullyDispensedEvent is published when the last unit of a prescription is handed out
type PrescriptionFullyDispensedEvent struct {
	PrescriptionID     int64 `json:"prescription_id"`
	VisitID            int64 `json:"visit_id"`
	PrescribedQuantity int   `json:"prescribed_quantity"`
}

// PrescriptionCancelledEvent is published when a prescription is cancelled
type PrescriptionCancelledEvent struct {
	PrescriptionID int64 `json:"prescription_id"`
	VisitID        int64 `json:"visit_id"`
	Dispensed      int   `json:"dispensed"`
}

// StockLowEvent is published when a stock entry drops to or below its alert quantity
type StockLowEvent struct {
	StockEntryID     int64  `json:"stock_entry_id"`
	MedicationID     int64  `json:"medication_id"`
	HealthPostID     int64  `json:"health_post_id"`
	Lot              string `json:"lot"`
	CurrentQuantity  int    `json:"current_quantity"`
	MinAlertQuantity int    `json:"min_alert_quantity"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
