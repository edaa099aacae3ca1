package handler

import (
	"net/http"
	"time"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/internal/dispensing/service"
	"github.com/medflow/dispensary-backend/pkg/actor"
	"github.com/medflow/dispensary-backend/pkg/errors"
	"github.com/medflow/dispensary-backend/pkg/httputil"
	"github.com/medflow/dispensary-backend/pkg/logger"
)

// PrescriptionHandler handles prescription and dispense endpoints
type PrescriptionHandler struct {
	service *service.FulfillmentService
	logger  *logger.Logger
}

// NewPrescriptionHandler creates a new prescription handler
func NewPrescriptionHandler(svc *service.FulfillmentService, log *logger.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{
		service: svc,
		logger:  log,
	}
}

// CreatePrescriptionRequest is the body of POST /prescriptions
type CreatePrescriptionRequest struct {
	VisitID            int64  `json:"visit_id" validate:"required,gt=0"`
	StockEntryID       int64  `json:"stock_entry_id" validate:"required,gt=0"`
	DosageInstructions string `json:"dosage_instructions" validate:"required,max=500"`
	PrescribedQuantity int    `json:"prescribed_quantity" validate:"required,gt=0"`
}

// DispenseRequest is the body of POST /prescriptions/{id}/dispensations.
// Quantity is checked by the fulfillment service so its error keeps its
// place in the rejection order.
type DispenseRequest struct {
	StaffID     *int64     `json:"staff_id,omitempty" validate:"omitempty,gt=0"`
	Quantity    int        `json:"quantity"`
	Note        *string    `json:"note,omitempty" validate:"omitempty,max=500"`
	DispensedAt *time.Time `json:"dispensed_at,omitempty"`
}

// List lists prescriptions
// GET /prescriptions
func (h *PrescriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	pageNum, perPage, limit, offset := page(r)

	filter := domain.PrescriptionFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	}

	var err error
	if filter.VisitID, err = queryID(r, "visit_id"); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if filter.MedicationID, err = queryID(r, "medication_id"); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.Status(raw)
		if !status.Valid() {
			httputil.Error(w, r, errors.Validation(map[string]string{"status": "must be one of pending, partially_dispensed, fully_dispensed, cancelled"}))
			return
		}
		filter.Status = &status
	}

	prescriptions, total, err := h.service.ListPrescriptions(r.Context(), filter)
	if err != nil {
		respondError(w, r, h.logger, err, "failed to list prescriptions")
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, prescriptions, httputil.NewMeta(pageNum, perPage, total))
}

// Get gets a prescription with its fulfillment totals
// GET /prescriptions/{id}
func (h *PrescriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	rx, err := h.service.GetPrescription(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "failed to get prescription")
		return
	}

	httputil.JSON(w, http.StatusOK, rx)
}

// Create creates a pending prescription
// POST /prescriptions
func (h *PrescriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePrescriptionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	rx, err := h.service.CreatePrescription(r.Context(), &domain.Prescription{
		VisitID:            req.VisitID,
		StockEntryID:       req.StockEntryID,
		DosageInstructions: req.DosageInstructions,
		PrescribedQuantity: req.PrescribedQuantity,
	})
	if err != nil {
		respondError(w, r, h.logger, err, "failed to create prescription")
		return
	}

	httputil.Created(w, rx)
}

// Cancel cancels a prescription that is not fully dispensed
// POST /prescriptions/{id}/cancel
func (h *PrescriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	rx, err := h.service.CancelPrescription(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "failed to cancel prescription")
		return
	}

	httputil.JSON(w, http.StatusOK, rx)
}

// Delete deletes a prescription without dispensations
// DELETE /prescriptions/{id}
func (h *PrescriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := h.service.DeletePrescription(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "failed to delete prescription")
		return
	}

	httputil.NoContent(w)
}

// Dispense dispenses part or all of a prescription
// POST /prescriptions/{id}/dispensations
func (h *PrescriptionHandler) Dispense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	var req DispenseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	staffID := actor.StaffID(r.Context())
	if req.StaffID != nil {
		staffID = *req.StaffID
	}
	if staffID <= 0 {
		httputil.Error(w, r, errors.Validation(map[string]string{"staff_id": "is required"}))
		return
	}

	result, err := h.service.Dispense(r.Context(), domain.DispenseRequest{
		PrescriptionID: id,
		StaffID:        staffID,
		Quantity:       req.Quantity,
		Note:           req.Note,
		DispensedAt:    req.DispensedAt,
	})
	if err != nil {
		respondError(w, r, h.logger, err, "failed to dispense prescription")
		return
	}

	httputil.Created(w, result)
}

// ListDispensations lists the dispensations of one prescription
// GET /prescriptions/{id}/dispensations
func (h *PrescriptionHandler) ListDispensations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	pageNum, perPage, limit, offset := page(r)
	list, total, err := h.service.ListPrescriptionDispensations(r.Context(), id, domain.DispensationFilter{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(w, r, h.logger, err, "failed to list prescription dispensations")
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, httputil.NewMeta(pageNum, perPage, total))
}
