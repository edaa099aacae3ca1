package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/medflow/dispensary-backend/internal/dispensing/service"
	"github.com/medflow/dispensary-backend/pkg/logger"
)

// Routes mounts the dispensary API. Use with r.Route("/api/v1/dispensary", ...).
func Routes(svc *service.FulfillmentService, log *logger.Logger) func(chi.Router) {
	prescriptionHandler := NewPrescriptionHandler(svc, log)
	stockHandler := NewStockHandler(svc, log)
	dispensationHandler := NewDispensationHandler(svc, log)

	return func(r chi.Router) {
		r.Route("/prescriptions", func(r chi.Router) {
			r.Get("/", prescriptionHandler.List)
			r.Post("/", prescriptionHandler.Create)
			r.Get("/{id}", prescriptionHandler.Get)
			r.Delete("/{id}", prescriptionHandler.Delete)
			r.Post("/{id}/cancel", prescriptionHandler.Cancel)
			r.Get("/{id}/dispensations", prescriptionHandler.ListDispensations)
			r.Post("/{id}/dispensations", prescriptionHandler.Dispense)
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/", stockHandler.List)
			r.Put("/", stockHandler.Intake)
			r.Get("/{id}", stockHandler.Get)
			r.Delete("/{id}", stockHandler.Delete)
		})

		r.Route("/dispensations", func(r chi.Router) {
			r.Get("/", dispensationHandler.List)
			r.Get("/export", dispensationHandler.Export)
			r.Get("/{id}", dispensationHandler.Get)
		})
	}
}
