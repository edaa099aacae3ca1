package handler

import (
	"net/http"
	"time"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/internal/dispensing/service"
	"github.com/medflow/dispensary-backend/pkg/httputil"
	"github.com/medflow/dispensary-backend/pkg/logger"
)

// StockHandler handles stock ledger endpoints
type StockHandler struct {
	service *service.FulfillmentService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.FulfillmentService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// StockIntakeRequest is the body of PUT /stock
type StockIntakeRequest struct {
	MedicationID     int64   `json:"medication_id" validate:"required,gt=0"`
	HealthPostID     int64   `json:"health_post_id" validate:"required,gt=0"`
	Lot              string  `json:"lot" validate:"required,max=100"`
	ExpiryDate       *string `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Quantity         int     `json:"quantity" validate:"gte=0"`
	MinAlertQuantity int     `json:"min_alert_quantity" validate:"gte=0"`
}

// List lists stock entries
// GET /stock
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	pageNum, perPage, limit, offset := page(r)

	filter := domain.StockFilter{
		Search:   r.URL.Query().Get("search"),
		LowStock: queryBool(r, "low_stock"),
		Limit:    limit,
		Offset:   offset,
	}

	var err error
	if filter.MedicationID, err = queryID(r, "medication_id"); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if filter.HealthPostID, err = queryID(r, "health_post_id"); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if filter.ExpiringWithinDays, err = queryInt(r, "expiring_within_days"); err != nil {
		httputil.Error(w, r, err)
		return
	}

	entries, total, err := h.service.ListStock(r.Context(), filter)
	if err != nil {
		respondError(w, r, h.logger, err, "failed to list stock")
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, entries, httputil.NewMeta(pageNum, perPage, total))
}

// Get gets a stock entry
// GET /stock/{id}
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	entry, err := h.service.GetStockEntry(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "failed to get stock entry")
		return
	}

	httputil.JSON(w, http.StatusOK, entry)
}

// Intake records received stock for a (medication, health post, lot)
// PUT /stock
func (h *StockHandler) Intake(w http.ResponseWriter, r *http.Request) {
	var req StockIntakeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	entry := &domain.StockEntry{
		MedicationID:     req.MedicationID,
		HealthPostID:     req.HealthPostID,
		Lot:              req.Lot,
		CurrentQuantity:  req.Quantity,
		MinAlertQuantity: req.MinAlertQuantity,
	}
	if req.ExpiryDate != nil {
		expiry, _ := time.Parse(dateLayout, *req.ExpiryDate)
		entry.ExpiryDate = &expiry
	}

	view, err := h.service.RecordStockIntake(r.Context(), entry)
	if err != nil {
		respondError(w, r, h.logger, err, "failed to record stock intake")
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// Delete deletes a stock entry no prescription references
// DELETE /stock/{id}
func (h *StockHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := h.service.DeleteStockEntry(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err, "failed to delete stock entry")
		return
	}

	httputil.NoContent(w)
}
