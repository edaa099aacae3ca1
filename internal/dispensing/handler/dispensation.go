package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/medflow/dispensary-backend/internal/dispensing/domain"
	"github.com/medflow/dispensary-backend/internal/dispensing/service"
	"github.com/medflow/dispensary-backend/pkg/httputil"
	"github.com/medflow/dispensary-backend/pkg/logger"
)

// DispensationHandler handles dispensation log endpoints
type DispensationHandler struct {
	service *service.FulfillmentService
	logger  *logger.Logger
}

// NewDispensationHandler creates a new dispensation handler
func NewDispensationHandler(svc *service.FulfillmentService, log *logger.Logger) *DispensationHandler {
	return &DispensationHandler{
		service: svc,
		logger:  log,
	}
}

func dispensationFilter(r *http.Request) (domain.DispensationFilter, error) {
	filter := domain.DispensationFilter{Search: r.URL.Query().Get("search")}

	var err error
	if filter.PrescriptionID, err = queryID(r, "prescription_id"); err != nil {
		return filter, err
	}
	if filter.StaffID, err = queryID(r, "staff_id"); err != nil {
		return filter, err
	}
	if filter.From, err = queryTime(r, "from", false); err != nil {
		return filter, err
	}
	if filter.To, err = queryTime(r, "to", true); err != nil {
		return filter, err
	}
	return filter, nil
}

// List lists the dispensation log
// GET /dispensations
func (h *DispensationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := dispensationFilter(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	pageNum, perPage, limit, offset := page(r)
	filter.Limit, filter.Offset = limit, offset

	list, total, err := h.service.ListDispensations(r.Context(), filter)
	if err != nil {
		respondError(w, r, h.logger, err, "failed to list dispensations")
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, list, httputil.NewMeta(pageNum, perPage, total))
}

// Get gets one dispensation
// GET /dispensations/{id}
func (h *DispensationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	d, err := h.service.GetDispensation(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err, "failed to get dispensation")
		return
	}

	httputil.JSON(w, http.StatusOK, d)
}

// Export serves the dispensation log as an xlsx workbook
// GET /dispensations/export
func (h *DispensationHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, err := dispensationFilter(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.ExportDispensations(r.Context(), filter, &buf); err != nil {
		respondError(w, r, h.logger, err, "failed to export dispensations")
		return
	}

	filename := fmt.Sprintf("dispensations-%s.xlsx", time.Now().Format(dateLayout))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}
