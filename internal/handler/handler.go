// Package handler содержит HTTP-обработчики API сервиса aquabill.
package handler

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/aquabill/internal/middleware"
	"github.com/mmeshcher/aquabill/internal/model"
	"github.com/mmeshcher/aquabill/internal/repository"
	"github.com/mmeshcher/aquabill/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, in model.SignupInput) (model.Profile, error)
	AuthenticateUser(ctx context.Context, in model.LoginInput) (model.Profile, error)
	GetProfile(ctx context.Context, userID int64) (model.Profile, error)
	ListUsers(ctx context.Context) ([]model.Profile, error)

	CreateInvoice(ctx context.Context, userID int64, in model.InvoiceInput, idempotencyKey string) (*model.Invoice, bool, error)
	ListInvoices(ctx context.Context, userID int64) ([]model.Invoice, error)
	GetInvoice(ctx context.Context, userID int64, id string) (*model.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, userID int64, id string, to model.InvoiceStatus) (*model.Invoice, error)
	DeleteInvoice(ctx context.Context, userID int64, id string) error
	RenderInvoicePDF(ctx context.Context, userID int64, id string) ([]byte, string, error)
	ComposeCompliantInvoice(ctx context.Context, userID int64, id string) (*model.Invoice, error)

	GenerateInvoice(ctx context.Context, customerID int64, in model.GenerateInvoiceInput) (*model.Invoice, error)
	ListCustomerInvoices(ctx context.Context, customerID int64) ([]model.Invoice, error)

	BillingPeriods() []model.BillingPeriod
	QuoteWaterBill(ctx context.Context, in model.WaterBillInput) (model.WaterBillQuote, error)
	PayWaterBill(ctx context.Context, userID int64, in model.PaymentInput) (*model.Payment, error)
	ListPayments(ctx context.Context, userID int64) ([]model.Payment, error)
	RenderPaymentReceipt(ctx context.Context, userID int64, id string) ([]byte, string, error)
}

// Handler реализует HTTP-обработчики API сервиса aquabill.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// Healthz отвечает 200, пока процесс обслуживает запросы.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.SignupInput
	if !h.decode(w, r, &req) {
		return
	}

	profile, err := h.service.RegisterUser(r.Context(), req)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.fail(w, err, "register user error")
		return
	}

	h.startSession(w, profile)
}

// Login выполняет аутентификацию пользователя и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginInput
	if !h.decode(w, r, &req) {
		return
	}

	profile, err := h.service.AuthenticateUser(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.logger.Warn("login failed", zap.String("email", req.Email))
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.fail(w, err, "login user error")
		return
	}

	h.startSession(w, profile)
}

func (h *Handler) startSession(w http.ResponseWriter, profile model.Profile) {
	if _, err := h.authMiddleware.SetAuthCookie(w, profile); err != nil {
		h.fail(w, err, "issue session error", zap.Int64("userID", profile.ID))
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Logout отзывает текущую сессию и удаляет cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authMiddleware.Revoke(r.Context()); err != nil {
		h.logger.Error("revoke session error", zap.Error(err))
	}
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// Profile возвращает профиль текущего пользователя.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "get profile error", zap.Int64("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
