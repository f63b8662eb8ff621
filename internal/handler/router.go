package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/aquabill/internal/middleware"
	"github.com/mmeshcher/aquabill/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса aquabill.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)

	r.Get("/healthz", h.Healthz)

	r.Route("/api/water", func(r chi.Router) {
		r.Get("/periods", h.BillingPeriods)
		r.Post("/quote", h.QuoteWaterBill)
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/logout", h.Logout)
			r.Get("/profile", h.Profile)

			r.Post("/invoices", h.CreateInvoice)
			r.Get("/invoices", h.ListInvoices)
			r.Get("/invoices/{id}", h.GetInvoice)
			r.Patch("/invoices/{id}/status", h.UpdateInvoiceStatus)
			r.Delete("/invoices/{id}", h.DeleteInvoice)
			r.Get("/invoices/{id}/pdf", h.InvoicePDF)
			r.Post("/invoices/{id}/compliant", h.ComposeCompliantInvoice)

			r.Post("/water/payments", h.PayWaterBill)
			r.Get("/water/payments", h.ListPayments)
			r.Get("/water/payments/{id}/receipt", h.PaymentReceipt)
		})
	})

	r.Route("/api/accountant", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Use(h.authMiddleware.RequireRole(model.RoleAccountant))

		r.Get("/users", h.ListUsers)
		r.Get("/users/{userID}/invoices", h.ListCustomerInvoices)
		r.Post("/users/{userID}/invoices", h.GenerateInvoice)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
