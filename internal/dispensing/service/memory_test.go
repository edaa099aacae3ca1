package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	apperrors "github.com/medflow/dispensary-backend/pkg/errors"
)

// memoryState is the committed content of the in-memory ledger
type memoryState struct {
	stock         map[int64]domain.StockEntry
	prescriptions map[int64]domain.Prescription
	dispensations []domain.Dispensation
	staff         map[int64]bool
	nextID        int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		stock:         make(map[int64]domain.StockEntry, len(s.stock)),
		prescriptions: make(map[int64]domain.Prescription, len(s.prescriptions)),
		dispensations: append([]domain.Dispensation(nil), s.dispensations...),
		staff:         make(map[int64]bool, len(s.staff)),
		nextID:        s.nextID,
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	for k, v := range s.prescriptions {
		c.prescriptions[k] = v
	}
	for k, v := range s.staff {
		c.staff[k] = v
	}
	return c
}

func (s *memoryState) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memoryState) sumDispensed(prescriptionID int64) int {
	total := 0
	for _, d := range s.dispensations {
		if d.PrescriptionID == prescriptionID {
			total += d.Quantity
		}
	}
	return total
}

// memoryLedger serializes transactions with one mutex, which gives the same
// guarantees as the row locks a dispense takes in PostgreSQL
type memoryLedger struct {
	mu    sync.Mutex
	state *memoryState

	// conflicts makes the next n transactions fail with a serialization error
	conflicts int
	// failAfterInsert is returned right after a dispensation is inserted
	failAfterInsert error
	attempts        int
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{state: &memoryState{
		stock:         map[int64]domain.StockEntry{},
		prescriptions: map[int64]domain.Prescription{},
		staff:         map[int64]bool{},
	}}
}

func (l *memoryLedger) WithinTx(ctx context.Context, _ *sql.TxOptions, fn func(domain.LedgerTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts++
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.conflicts > 0 {
		l.conflicts--
		return &pq.Error{Code: "40001", Message: "could not serialize access due to concurrent update"}
	}

	work := l.state.clone()
	if err := fn(&memoryTx{ledger: l, state: work}); err != nil {
		return err
	}
	l.state = work
	return nil
}

func (l *memoryLedger) snapshot() *memoryState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.clone()
}

func (l *memoryLedger) addStock(quantity, minAlert int) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.state.id()
	l.state.stock[id] = domain.StockEntry{
		ID:               id,
		MedicationID:     1,
		HealthPostID:     1,
		Lot:              fmt.Sprintf("LOT-%d", id),
		CurrentQuantity:  quantity,
		MinAlertQuantity: minAlert,
	}
	return id
}

func (l *memoryLedger) addPrescription(stockEntryID int64, prescribed int, status domain.Status) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.state.id()
	l.state.prescriptions[id] = domain.Prescription{
		ID:                 id,
		VisitID:            1,
		StockEntryID:       stockEntryID,
		DosageInstructions: "1 tablet every 8 hours",
		PrescribedQuantity: prescribed,
		Status:             status,
		CreatedAt:          time.Now(),
	}
	return id
}

func (l *memoryLedger) addStaff(id int64, active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.staff[id] = active
}

type memoryTx struct {
	ledger *memoryLedger
	state  *memoryState
}

func (t *memoryTx) LockPrescription(_ context.Context, id int64) (*domain.Prescription, error) {
	p, ok := t.state.prescriptions[id]
	if !ok {
		return nil, domain.NotFound(domain.EntityPrescription)
	}
	return &p, nil
}

func (t *memoryTx) LockStockEntry(_ context.Context, id int64) (*domain.StockEntry, error) {
	s, ok := t.state.stock[id]
	if !ok {
		return nil, domain.NotFound(domain.EntityStockEntry)
	}
	return &s, nil
}

func (t *memoryTx) SumDispensed(_ context.Context, prescriptionID int64) (int, error) {
	return t.state.sumDispensed(prescriptionID), nil
}

func (t *memoryTx) StaffActive(_ context.Context, staffID int64) (bool, error) {
	return t.state.staff[staffID], nil
}

func (t *memoryTx) InsertDispensation(_ context.Context, d *domain.Dispensation) error {
	d.ID = t.state.id()
	if d.DispensedAt.IsZero() {
		d.DispensedAt = time.Now()
	}
	t.state.dispensations = append(t.state.dispensations, *d)

	return t.ledger.failAfterInsert
}

func (t *memoryTx) DecrementStock(_ context.Context, stockEntryID int64, quantity int) (int, error) {
	s, ok := t.state.stock[stockEntryID]
	if !ok {
		return 0, domain.NotFound(domain.EntityStockEntry)
	}
	if s.CurrentQuantity-quantity < 0 {
		return 0, &pq.Error{Code: "23514", Constraint: "stock_entries_current_quantity_check"}
	}
	s.CurrentQuantity -= quantity
	t.state.stock[stockEntryID] = s
	return s.CurrentQuantity, nil
}

func (t *memoryTx) UpdatePrescriptionStatus(_ context.Context, id int64, status domain.Status) error {
	p, ok := t.state.prescriptions[id]
	if !ok {
		return domain.NotFound(domain.EntityPrescription)
	}
	p.Status = status
	t.state.prescriptions[id] = p
	return nil
}

// Read-side stores over the committed state

type memoryStock struct{ ledger *memoryLedger }

func (m memoryStock) GetByID(_ context.Context, id int64) (*domain.StockEntryView, error) {
	state := m.ledger.snapshot()
	s, ok := state.stock[id]
	if !ok {
		return nil, domain.NotFound(domain.EntityStockEntry)
	}
	return &domain.StockEntryView{StockEntry: s, MedicationName: "Amoxicillin 500mg", HealthPostName: "Central Post"}, nil
}

func (m memoryStock) List(ctx context.Context, _ domain.StockFilter) ([]*domain.StockEntryView, int64, error) {
	state := m.ledger.snapshot()
	ids := make([]int64, 0, len(state.stock))
	for id := range state.stock {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*domain.StockEntryView, 0, len(ids))
	for _, id := range ids {
		v, _ := m.GetByID(ctx, id)
		out = append(out, v)
	}
	return out, int64(len(out)), nil
}

func (m memoryStock) Upsert(_ context.Context, entry *domain.StockEntry) error {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	for id, s := range m.ledger.state.stock {
		if s.MedicationID == entry.MedicationID && s.HealthPostID == entry.HealthPostID && s.Lot == entry.Lot {
			s.CurrentQuantity += entry.CurrentQuantity
			s.MinAlertQuantity = entry.MinAlertQuantity
			m.ledger.state.stock[id] = s
			*entry = s
			return nil
		}
	}
	entry.ID = m.ledger.state.id()
	m.ledger.state.stock[entry.ID] = *entry
	return nil
}

func (m memoryStock) Delete(_ context.Context, id int64) error {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	if _, ok := m.ledger.state.stock[id]; !ok {
		return domain.NotFound(domain.EntityStockEntry)
	}
	for _, p := range m.ledger.state.prescriptions {
		if p.StockEntryID == id {
			return apperrors.Conflict("stock entry is still referenced")
		}
	}
	delete(m.ledger.state.stock, id)
	return nil
}

type memoryPrescriptions struct{ ledger *memoryLedger }

func (m memoryPrescriptions) Create(_ context.Context, p *domain.Prescription) error {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	p.ID = m.ledger.state.id()
	p.Status = domain.StatusPending
	p.CreatedAt = time.Now()
	m.ledger.state.prescriptions[p.ID] = *p
	return nil
}

func (m memoryPrescriptions) GetByID(_ context.Context, id int64) (*domain.PrescriptionView, error) {
	state := m.ledger.snapshot()
	p, ok := state.prescriptions[id]
	if !ok {
		return nil, domain.NotFound(domain.EntityPrescription)
	}
	dispensed := state.sumDispensed(id)
	return &domain.PrescriptionView{
		Prescription: p,
		PatientName:  "Maria Silva",
		CurrentStock: state.stock[p.StockEntryID].CurrentQuantity,
		Lot:          state.stock[p.StockEntryID].Lot,
		Dispensed:    dispensed,
		Remaining:    p.PrescribedQuantity - dispensed,
	}, nil
}

func (m memoryPrescriptions) List(ctx context.Context, filter domain.PrescriptionFilter) ([]*domain.PrescriptionView, int64, error) {
	state := m.ledger.snapshot()
	var out []*domain.PrescriptionView
	for id, p := range state.prescriptions {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		v, _ := m.GetByID(ctx, id)
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (m memoryPrescriptions) StockEntryID(_ context.Context, id int64) (int64, error) {
	state := m.ledger.snapshot()
	p, ok := state.prescriptions[id]
	if !ok {
		return 0, domain.NotFound(domain.EntityPrescription)
	}
	return p.StockEntryID, nil
}

func (m memoryPrescriptions) SumDispensed(_ context.Context, prescriptionID int64) (int, error) {
	return m.ledger.snapshot().sumDispensed(prescriptionID), nil
}

func (m memoryPrescriptions) Delete(_ context.Context, id int64) error {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	if _, ok := m.ledger.state.prescriptions[id]; !ok {
		return domain.NotFound(domain.EntityPrescription)
	}
	if m.ledger.state.sumDispensed(id) > 0 {
		return apperrors.Conflict("prescription has dispensations")
	}
	delete(m.ledger.state.prescriptions, id)
	return nil
}

type memoryDispensations struct{ ledger *memoryLedger }

func (m memoryDispensations) GetByID(_ context.Context, id int64) (*domain.DispensationView, error) {
	for _, d := range m.ledger.snapshot().dispensations {
		if d.ID == id {
			return m.view(d), nil
		}
	}
	return nil, domain.NotFound(domain.EntityDispensation)
}

func (m memoryDispensations) List(_ context.Context, filter domain.DispensationFilter) ([]*domain.DispensationView, int64, error) {
	var out []*domain.DispensationView
	for _, d := range m.ledger.snapshot().dispensations {
		if filter.PrescriptionID != nil && d.PrescriptionID != *filter.PrescriptionID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(m.view(d).PatientName), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, m.view(d))
	}
	total := int64(len(out))
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (m memoryDispensations) view(d domain.Dispensation) *domain.DispensationView {
	return &domain.DispensationView{
		Dispensation:   d,
		PatientName:    "Maria Silva",
		StaffName:      "Nurse Joy",
		MedicationName: "Amoxicillin 500mg",
		Lot:            "A-1",
		HealthPostName: "Central Post",
	}
}
