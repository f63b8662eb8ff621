package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/aquabill/internal/model"
)

func customerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return 0, false
	}
	return id, true
}

// ListUsers возвращает список пользователей для бухгалтера.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, err, "list users error")
		return
	}
	if users == nil {
		users = []model.Profile{}
	}
	writeJSON(w, http.StatusOK, users)
}

// ListCustomerInvoices возвращает счета выбранного покупателя.
func (h *Handler) ListCustomerInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}

	invoices, err := h.service.ListCustomerInvoices(r.Context(), id)
	if err != nil {
		h.fail(w, err, "list customer invoices error", zap.Int64("customerID", id))
		return
	}

	writeJSON(w, http.StatusOK, newInvoiceList(invoices))
}

// GenerateInvoice выставляет покупателю счёт с юридическим текстом.
func (h *Handler) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}

	var req model.GenerateInvoiceInput
	if !h.decode(w, r, &req) {
		return
	}

	inv, err := h.service.GenerateInvoice(r.Context(), id, req)
	if err != nil {
		h.fail(w, err, "generate invoice error", zap.Int64("customerID", id))
		return
	}

	writeJSON(w, http.StatusCreated, newInvoiceResponse(*inv))
}
