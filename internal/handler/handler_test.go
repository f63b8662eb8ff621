package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/aquabill/internal/middleware"
	"github.com/mmeshcher/aquabill/internal/model"
	"github.com/mmeshcher/aquabill/internal/repository"
	"github.com/mmeshcher/aquabill/internal/service"
	"github.com/mmeshcher/aquabill/internal/validation"
)

type stubService struct {
	profile     model.Profile
	registerErr error
	authErr     error

	users []model.Profile

	invoice        *model.Invoice
	invoiceCreated bool
	invoiceErr     error
	invoices       []model.Invoice
	gotIdemKey     string
	gotCustomerID  int64

	payment    *model.Payment
	paymentErr error
	payments   []model.Payment

	quote    model.WaterBillQuote
	quoteErr error
}

func (s *stubService) RegisterUser(ctx context.Context, in model.SignupInput) (model.Profile, error) {
	return s.profile, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, in model.LoginInput) (model.Profile, error) {
	return s.profile, s.authErr
}

func (s *stubService) GetProfile(ctx context.Context, userID int64) (model.Profile, error) {
	return s.profile, nil
}

func (s *stubService) ListUsers(ctx context.Context) ([]model.Profile, error) {
	return s.users, nil
}

func (s *stubService) CreateInvoice(ctx context.Context, userID int64, in model.InvoiceInput, key string) (*model.Invoice, bool, error) {
	s.gotIdemKey = key
	return s.invoice, s.invoiceCreated, s.invoiceErr
}

func (s *stubService) ListInvoices(ctx context.Context, userID int64) ([]model.Invoice, error) {
	return s.invoices, nil
}

func (s *stubService) GetInvoice(ctx context.Context, userID int64, id string) (*model.Invoice, error) {
	return s.invoice, s.invoiceErr
}

func (s *stubService) UpdateInvoiceStatus(ctx context.Context, userID int64, id string, to model.InvoiceStatus) (*model.Invoice, error) {
	return s.invoice, s.invoiceErr
}

func (s *stubService) DeleteInvoice(ctx context.Context, userID int64, id string) error {
	return s.invoiceErr
}

func (s *stubService) RenderInvoicePDF(ctx context.Context, userID int64, id string) ([]byte, string, error) {
	return []byte("%PDF-1.3"), "Factura_INV-1.pdf", s.invoiceErr
}

func (s *stubService) ComposeCompliantInvoice(ctx context.Context, userID int64, id string) (*model.Invoice, error) {
	if s.invoiceErr != nil {
		return nil, s.invoiceErr
	}
	inv := *s.invoice
	inv.CompliantText = "FACTURA LEGAL"
	return &inv, nil
}

func (s *stubService) GenerateInvoice(ctx context.Context, customerID int64, in model.GenerateInvoiceInput) (*model.Invoice, error) {
	s.gotCustomerID = customerID
	return s.invoice, s.invoiceErr
}

func (s *stubService) ListCustomerInvoices(ctx context.Context, customerID int64) ([]model.Invoice, error) {
	s.gotCustomerID = customerID
	return s.invoices, s.invoiceErr
}

func (s *stubService) BillingPeriods() []model.BillingPeriod {
	return []model.BillingPeriod{{Value: "2026-10", Label: "octubre 2026"}}
}

func (s *stubService) QuoteWaterBill(ctx context.Context, in model.WaterBillInput) (model.WaterBillQuote, error) {
	return s.quote, s.quoteErr
}

func (s *stubService) PayWaterBill(ctx context.Context, userID int64, in model.PaymentInput) (*model.Payment, error) {
	return s.payment, s.paymentErr
}

func (s *stubService) ListPayments(ctx context.Context, userID int64) ([]model.Payment, error) {
	return s.payments, nil
}

func (s *stubService) RenderPaymentReceipt(ctx context.Context, userID int64, id string) ([]byte, string, error) {
	return []byte("%PDF-1.3"), "Recibo_octubre_2026.pdf", s.paymentErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret", time.Hour, nil, nil, logger)

	return NewHandler(svc, logger, auth)
}

func sessionCookie(t *testing.T, h *Handler, role model.Role) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	_, err := h.authMiddleware.SetAuthCookie(rec, model.Profile{ID: 1, Role: role})
	require.NoError(t, err)
	return rec.Result().Cookies()[0]
}

func do(t *testing.T, h *Handler, method, path, body string, cookie *http.Cookie, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec
}

func sampleInvoice() *model.Invoice {
	date := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	return &model.Invoice{
		ID:            "inv-1",
		Number:        "INV-20261018-0001",
		CustomerName:  "Ana López",
		CustomerEmail: "ana@example.com",
		InvoiceDate:   date,
		DueDate:       date.AddDate(0, 0, 30),
		Items:         []model.LineItem{{ID: "it-1", Description: "Consumo", Quantity: 3, PriceCents: 1550}},
		TotalCents:    4650,
		Status:        model.InvoiceStatusPending,
	}
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		profile: model.Profile{ID: 42, Name: "ana", Email: "ana@example.com", Role: model.RoleCustomer},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(model.SignupInput{
		Email:           "ana@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	require.Len(t, res.Cookies(), 1)

	var profile model.Profile
	require.NoError(t, json.NewDecoder(res.Body).Decode(&profile))
	assert.Equal(t, svc.profile, profile)
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: validation.Errors{"confirmPassword": "Passwords don't match"}, want: http.StatusUnprocessableEntity},
		{name: "duplicate", err: fmt.Errorf("%w: ana@example.com", repository.ErrUserExists), want: http.StatusConflict},
		{name: "unexpected", err: context.DeadlineExceeded, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{registerErr: tt.err})
			rec := do(t, h, http.MethodPost, "/api/user/register", `{"email":"ana@example.com"}`, nil)
			assert.Equal(t, tt.want, rec.Code)
			assert.Empty(t, rec.Result().Cookies())
		})
	}

	h := newTestHandler(t, &stubService{registerErr: validation.Errors{"email": "Invalid email address"}})
	rec := do(t, h, http.MethodPost, "/api/user/register", `{}`, nil)
	assert.JSONEq(t, `{"errors":{"email":"Invalid email address"}}`, rec.Body.String())
}

func TestLogin_UnauthorizedOnInvalidCredentials(t *testing.T) {
	h := newTestHandler(t, &stubService{authErr: service.ErrInvalidCredentials})

	rec := do(t, h, http.MethodPost, "/api/user/login", `{"email":"ana@example.com","password":"wrong-one"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = do(t, h, http.MethodPost, "/api/user/login", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/user/invoices", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/accountant/users", "", nil).Code)
}

func TestCreateInvoice_IdempotentReplay(t *testing.T) {
	svc := &stubService{invoice: sampleInvoice(), invoiceCreated: true}
	h := newTestHandler(t, svc)
	cookie := sessionCookie(t, h, model.RoleCustomer)

	rec := do(t, h, http.MethodPost, "/api/user/invoices", `{"customerName":"Ana López"}`, cookie, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "key-1", svc.gotIdemKey)

	var resp invoiceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 46.5, resp.Total)
	assert.Equal(t, 15.5, resp.Items[0].Price)
	assert.Equal(t, "Pendiente", resp.StatusLabel)

	svc.invoiceCreated = false
	rec = do(t, h, http.MethodPost, "/api/user/invoices", `{"customerName":"Ana López"}`, cookie, "Idempotency-Key", "key-1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListInvoices_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{invoices: []model.Invoice{}})
	rec := do(t, h, http.MethodGet, "/api/user/invoices", "", sessionCookie(t, h, model.RoleCustomer))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestInvoiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		err    error
		want   int
	}{
		{name: "get missing", method: http.MethodGet, path: "/api/user/invoices/nope", err: repository.ErrInvoiceNotFound, want: http.StatusNotFound},
		{name: "delete missing", method: http.MethodDelete, path: "/api/user/invoices/nope", err: repository.ErrInvoiceNotFound, want: http.StatusNotFound},
		{name: "invalid transition", method: http.MethodPatch, path: "/api/user/invoices/inv-1/status", body: `{"status":"Pending"}`, err: service.ErrInvalidTransition, want: http.StatusConflict},
		{name: "concurrent change", method: http.MethodPatch, path: "/api/user/invoices/inv-1/status", body: `{"status":"Paid"}`, err: repository.ErrStatusConflict, want: http.StatusConflict},
		{name: "unknown status", method: http.MethodPatch, path: "/api/user/invoices/inv-1/status", body: `{"status":"Lost"}`, err: validation.Errors{"status": "Invalid status."}, want: http.StatusUnprocessableEntity},
		{name: "delete ok", method: http.MethodDelete, path: "/api/user/invoices/inv-1", want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{invoice: sampleInvoice(), invoiceErr: tt.err})
			rec := do(t, h, tt.method, tt.path, tt.body, sessionCookie(t, h, model.RoleCustomer))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestComposeCompliantInvoice(t *testing.T) {
	h := newTestHandler(t, &stubService{invoice: sampleInvoice()})
	rec := do(t, h, http.MethodPost, "/api/user/invoices/inv-1/compliant", "", sessionCookie(t, h, model.RoleCustomer))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"compliantInvoice":"FACTURA LEGAL"`)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not configured", err: service.ErrComposerUnavailable, want: http.StatusServiceUnavailable},
		{name: "model failure", err: fmt.Errorf("%w: %w", service.ErrComposeFailed, errors.New("timeout")), want: http.StatusBadGateway},
		{name: "missing invoice", err: repository.ErrInvoiceNotFound, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{invoice: sampleInvoice(), invoiceErr: tt.err})
			rec := do(t, h, http.MethodPost, "/api/user/invoices/inv-1/compliant", "", sessionCookie(t, h, model.RoleCustomer))
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/user/invoices/inv-1/compliant", "", nil).Code)
}

func TestInvoicePDF(t *testing.T) {
	h := newTestHandler(t, &stubService{invoice: sampleInvoice()})
	rec := do(t, h, http.MethodGet, "/api/user/invoices/inv-1/pdf", "", sessionCookie(t, h, model.RoleCustomer), "Accept-Encoding", "gzip")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Factura_INV-1.pdf")
	assert.Equal(t, "%PDF-1.3", rec.Body.String())
}

func TestQuoteWaterBill(t *testing.T) {
	svc := &stubService{quote: model.WaterBillQuote{
		AccountNumber: "1234",
		Period:        "2026-10",
		PeriodLabel:   "octubre 2026",
		AmountCents:   4560,
		DueDate:       time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC),
	}}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/api/water/quote", `{"accountNumber":"1234","billingPeriod":"2026-10"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"accountNumber":"1234","billingPeriod":"2026-10","period":"octubre 2026","amount":45.6,"dueDate":"2026-11-05"}`, rec.Body.String())

	svc.quoteErr = validation.Errors{"accountNumber": "Debe ser un número de 4 dígitos."}
	rec = do(t, h, http.MethodPost, "/api/water/quote", `{"accountNumber":"12"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPayWaterBill(t *testing.T) {
	paidAt := time.Date(2025, 10, 24, 10, 0, 0, 0, time.UTC)
	svc := &stubService{payment: &model.Payment{
		ID:            "pay-1",
		AccountNumber: "1234",
		Period:        "2025-10",
		AmountCents:   4560,
		CardHolder:    "Fabricio Castro",
		CardLast4:     "1111",
		TransactionID: "918347",
		PaidAt:        paidAt,
	}}
	h := newTestHandler(t, svc)
	cookie := sessionCookie(t, h, model.RoleCustomer)

	rec := do(t, h, http.MethodPost, "/api/user/water/payments", `{}`, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp paymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "############1111", resp.CardNumber)
	assert.Equal(t, "octubre 2025", resp.Period)
	assert.Equal(t, "oct 24 2025", resp.CutoffDate)
	assert.Equal(t, 45.6, resp.Amount)

	svc.paymentErr = service.ErrPaymentDeclined
	rec = do(t, h, http.MethodPost, "/api/user/water/payments", `{}`, cookie)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	svc.paymentErr = fmt.Errorf("authorize: %w", &service.BusyError{RetryAfter: 30 * time.Second})
	rec = do(t, h, http.MethodPost, "/api/user/water/payments", `{}`, cookie)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestListPayments_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	rec := do(t, h, http.MethodGet, "/api/user/water/payments", "", sessionCookie(t, h, model.RoleCustomer))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAccountantRoutes(t *testing.T) {
	svc := &stubService{
		users:    []model.Profile{{ID: 7, Name: "ana", Email: "ana@example.com", Role: model.RoleCustomer}},
		invoice:  sampleInvoice(),
		invoices: []model.Invoice{*sampleInvoice()},
	}
	h := newTestHandler(t, svc)

	customer := sessionCookie(t, h, model.RoleCustomer)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/api/accountant/users", "", customer).Code)

	accountant := sessionCookie(t, h, model.RoleAccountant)

	rec := do(t, h, http.MethodGet, "/api/accountant/users", "", accountant)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":7,"name":"ana","email":"ana@example.com","role":"customer"}]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/accountant/users/7/invoices", "", accountant)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), svc.gotCustomerID)

	rec = do(t, h, http.MethodPost, "/api/accountant/users/7/invoices", `{"items":[{"description":"Consumo","amount":45.6}]}`, accountant)
	assert.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/accountant/users/abc/invoices", "", accountant).Code)

	svc.invoiceErr = fmt.Errorf("%w: %w", service.ErrComposeFailed, errors.New("quota exceeded"))
	rec = do(t, h, http.MethodPost, "/api/accountant/users/7/invoices", `{"items":[{"description":"Consumo","amount":45.6}]}`, accountant)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRouterFallbacks(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/nope", "", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/user/login", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", nil).Code)
}
