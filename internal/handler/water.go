package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/aquabill/internal/billing"
	"github.com/mmeshcher/aquabill/internal/model"
	"github.com/mmeshcher/aquabill/internal/service"
)

type quoteResponse struct {
	AccountNumber string  `json:"accountNumber"`
	BillingPeriod string  `json:"billingPeriod"`
	Period        string  `json:"period"`
	Amount        float64 `json:"amount"`
	DueDate       string  `json:"dueDate"`
}

type paymentResponse struct {
	ID                string  `json:"id"`
	AccountNumber     string  `json:"accountNumber"`
	BillingPeriod     string  `json:"billingPeriod"`
	Period            string  `json:"period"`
	Amount            float64 `json:"amount"`
	CardHolder        string  `json:"cardHolder"`
	CardNumber        string  `json:"cardNumber"`
	TransactionID     string  `json:"transactionId"`
	AuthorizationCode string  `json:"authorizationCode"`
	CutoffDate        string  `json:"cutoffDate"`
	PaidAt            string  `json:"paidAt"`
}

func periodLabel(period string) string {
	if t, err := billing.ParsePeriod(period); err == nil {
		return billing.MonthLabel(t)
	}
	return period
}

func newPaymentResponse(p model.Payment) paymentResponse {
	return paymentResponse{
		ID:                p.ID,
		AccountNumber:     p.AccountNumber,
		BillingPeriod:     p.Period,
		Period:            periodLabel(p.Period),
		Amount:            billing.FromCents(p.AmountCents),
		CardHolder:        p.CardHolder,
		CardNumber:        "############" + p.CardLast4,
		TransactionID:     p.TransactionID,
		AuthorizationCode: p.AuthorizationCode,
		CutoffDate:        billing.CutoffDate(p.PaidAt),
		PaidAt:            p.PaidAt.Format(time.RFC3339),
	}
}

// BillingPeriods возвращает расчётные периоды для формы поиска квитанции.
func (h *Handler) BillingPeriods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.BillingPeriods())
}

// QuoteWaterBill рассчитывает квитанцию за воду по лицевому счёту и периоду.
func (h *Handler) QuoteWaterBill(w http.ResponseWriter, r *http.Request) {
	var req model.WaterBillInput
	if !h.decode(w, r, &req) {
		return
	}

	quote, err := h.service.QuoteWaterBill(r.Context(), req)
	if err != nil {
		h.fail(w, err, "quote water bill error")
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		AccountNumber: quote.AccountNumber,
		BillingPeriod: quote.Period,
		Period:        quote.PeriodLabel,
		Amount:        billing.FromCents(quote.AmountCents),
		DueDate:       quote.DueDate.Format("2006-01-02"),
	})
}

// PayWaterBill оплачивает квитанцию за воду картой.
func (h *Handler) PayWaterBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req model.PaymentInput
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.PayWaterBill(r.Context(), userID, req)
	if err != nil {
		var busy *service.BusyError
		switch {
		case errors.Is(err, service.ErrPaymentDeclined):
			http.Error(w, "Pago rechazado", http.StatusPaymentRequired)
		case errors.As(err, &busy):
			if busy.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(busy.RetryAfter.Seconds()))))
			}
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.fail(w, err, "pay water bill error", zap.Int64("userID", userID))
		}
		return
	}

	writeJSON(w, http.StatusCreated, newPaymentResponse(*p))
}

// ListPayments возвращает историю оплат текущего пользователя.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListPayments(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "list payments error", zap.Int64("userID", userID))
		return
	}

	if len(payments) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, newPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// PaymentReceipt отдаёт подтверждение оплаты в формате PDF.
func (h *Handler) PaymentReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	pdf, name, err := h.service.RenderPaymentReceipt(r.Context(), userID, id)
	if err != nil {
		h.fail(w, err, "render payment receipt error", zap.Int64("userID", userID), zap.String("paymentID", id))
		return
	}

	writePDF(w, name, pdf)
}
