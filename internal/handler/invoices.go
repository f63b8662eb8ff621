package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/aquabill/internal/billing"
	"github.com/mmeshcher/aquabill/internal/model"
	"github.com/mmeshcher/aquabill/internal/repository"
	"github.com/mmeshcher/aquabill/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

type itemResponse struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	Price       float64 `json:"price"`
	Total       float64 `json:"total"`
}

type invoiceResponse struct {
	ID               string         `json:"id"`
	Number           string         `json:"invoiceNumber"`
	CustomerName     string         `json:"customerName"`
	CustomerEmail    string         `json:"customerEmail"`
	InvoiceDate      string         `json:"invoiceDate"`
	DueDate          string         `json:"dueDate"`
	Items            []itemResponse `json:"items"`
	Total            float64        `json:"total"`
	Status           string         `json:"status"`
	StatusLabel      string         `json:"statusLabel"`
	Notes            string         `json:"notes,omitempty"`
	CompliantInvoice string         `json:"compliantInvoice,omitempty"`
	CreatedAt        string         `json:"createdAt"`
}

func newInvoiceResponse(inv model.Invoice) invoiceResponse {
	items := make([]itemResponse, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, itemResponse{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			Price:       billing.FromCents(it.PriceCents),
			Total:       billing.FromCents(billing.LineTotal(it)),
		})
	}

	return invoiceResponse{
		ID:               inv.ID,
		Number:           inv.Number,
		CustomerName:     inv.CustomerName,
		CustomerEmail:    inv.CustomerEmail,
		InvoiceDate:      inv.InvoiceDate.Format(time.RFC3339),
		DueDate:          inv.DueDate.Format(time.RFC3339),
		Items:            items,
		Total:            billing.FromCents(inv.TotalCents),
		Status:           string(inv.Status),
		StatusLabel:      billing.StatusLabel(inv.Status),
		Notes:            inv.Notes,
		CompliantInvoice: inv.CompliantText,
		CreatedAt:        inv.CreatedAt.Format(time.RFC3339),
	}
}

func newInvoiceList(invoices []model.Invoice) []invoiceResponse {
	resp := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		resp = append(resp, newInvoiceResponse(inv))
	}
	return resp
}

// CreateInvoice создаёт счёт текущего пользователя.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req model.InvoiceInput
	if !h.decode(w, r, &req) {
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	inv, created, err := h.service.CreateInvoice(r.Context(), userID, req, key)
	if err != nil {
		h.fail(w, err, "create invoice error", zap.Int64("userID", userID))
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, newInvoiceResponse(*inv))
}

// ListInvoices возвращает счета текущего пользователя.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	invoices, err := h.service.ListInvoices(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "list invoices error", zap.Int64("userID", userID))
		return
	}

	if len(invoices) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, newInvoiceList(invoices))
}

// GetInvoice возвращает счёт текущего пользователя.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	inv, err := h.service.GetInvoice(r.Context(), userID, id)
	if err != nil {
		h.fail(w, err, "get invoice error", zap.Int64("userID", userID), zap.String("invoiceID", id))
		return
	}

	writeJSON(w, http.StatusOK, newInvoiceResponse(*inv))
}

type statusRequest struct {
	Status model.InvoiceStatus `json:"status"`
}

// UpdateInvoiceStatus меняет статус счёта текущего пользователя.
func (h *Handler) UpdateInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	inv, err := h.service.UpdateInvoiceStatus(r.Context(), userID, id, req.Status)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTransition) || errors.Is(err, repository.ErrStatusConflict) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.fail(w, err, "update invoice status error", zap.Int64("userID", userID), zap.String("invoiceID", id))
		return
	}

	writeJSON(w, http.StatusOK, newInvoiceResponse(*inv))
}

// DeleteInvoice удаляет счёт текущего пользователя.
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.DeleteInvoice(r.Context(), userID, id); err != nil {
		h.fail(w, err, "delete invoice error", zap.Int64("userID", userID), zap.String("invoiceID", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ComposeCompliantInvoice генерирует юридический текст счёта текущего пользователя.
func (h *Handler) ComposeCompliantInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	inv, err := h.service.ComposeCompliantInvoice(r.Context(), userID, id)
	if err != nil {
		h.fail(w, err, "compose compliant invoice error", zap.Int64("userID", userID), zap.String("invoiceID", id))
		return
	}

	writeJSON(w, http.StatusOK, newInvoiceResponse(*inv))
}

// InvoicePDF отдаёт счёт в формате PDF.
func (h *Handler) InvoicePDF(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	pdf, name, err := h.service.RenderInvoicePDF(r.Context(), userID, id)
	if err != nil {
		h.fail(w, err, "render invoice pdf error", zap.Int64("userID", userID), zap.String("invoiceID", id))
		return
	}

	writePDF(w, name, pdf)
}
