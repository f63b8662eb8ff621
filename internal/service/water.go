package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/aquabill/internal/billing"
	"github.com/mmeshcher/aquabill/internal/events"
	"github.com/mmeshcher/aquabill/internal/gateway"
	"github.com/mmeshcher/aquabill/internal/model"
	"github.com/mmeshcher/aquabill/internal/validation"
)

const billingPeriodsShown = 12

// QuoteWaterBill рассчитывает сумму и срок оплаты квитанции за воду.
func (s *Service) QuoteWaterBill(ctx context.Context, in model.WaterBillInput) (model.WaterBillQuote, error) {
	if err := validation.WaterBill(in); err != nil {
		return model.WaterBillQuote{}, err
	}
	return billing.QuoteWaterBill(in.AccountNumber, in.BillingPeriod)
}

// BillingPeriods возвращает последние расчётные периоды, начиная с текущего.
func (s *Service) BillingPeriods() []model.BillingPeriod {
	return billing.BillingPeriods(s.now(), billingPeriodsShown)
}

// PayWaterBill оплачивает квитанцию картой. Сохраняются только последние четыре цифры карты.
func (s *Service) PayWaterBill(ctx context.Context, userID int64, in model.PaymentInput) (*model.Payment, error) {
	if err := validation.Payment(in); err != nil {
		return nil, err
	}

	quote, err := billing.QuoteWaterBill(in.AccountNumber, in.BillingPeriod)
	if err != nil {
		return nil, err
	}

	p := &model.Payment{
		ID:            uuid.NewString(),
		UserID:        userID,
		AccountNumber: quote.AccountNumber,
		Period:        quote.Period,
		AmountCents:   quote.AmountCents,
		CardHolder:    strings.TrimSpace(in.CardHolder),
		CardLast4:     billing.CardLast4(in.CardNumber),
	}

	auth, err := s.authorize(ctx, p, in)
	if err != nil {
		return nil, err
	}
	p.TransactionID = auth.TransactionID
	p.AuthorizationCode = auth.AuthorizationCode

	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("water bill paid",
		zap.String("paymentID", p.ID),
		zap.Int64("userID", userID),
		zap.String("card", billing.MaskCardNumber(in.CardNumber)),
	)

	s.publish(events.EventWaterBillPaid, p.ID, events.WaterBillPaidPayload{
		PaymentID:     p.ID,
		UserID:        userID,
		AccountNumber: p.AccountNumber,
		Period:        p.Period,
		AmountCents:   p.AmountCents,
	})
	return p, nil
}

func (s *Service) authorize(ctx context.Context, p *model.Payment, in model.PaymentInput) (*gateway.Authorization, error) {
	if s.gateway == nil {
		return &gateway.Authorization{
			Status:            gateway.StatusApproved,
			TransactionID:     simulatedCode(),
			AuthorizationCode: simulatedCode(),
		}, nil
	}

	auth, status, retryAfter, err := s.gateway.Authorize(ctx, gateway.AuthorizationRequest{
		Reference:   p.ID,
		AmountCents: p.AmountCents,
		CardNumber:  strings.ReplaceAll(in.CardNumber, " ", ""),
		ExpiryDate:  in.ExpiryDate,
		CVC:         in.CVC,
		CardHolder:  p.CardHolder,
	})
	if err != nil {
		return nil, fmt.Errorf("authorize payment: %w", err)
	}
	if status == http.StatusTooManyRequests {
		return nil, &BusyError{RetryAfter: retryAfter}
	}
	if auth == nil {
		return nil, fmt.Errorf("authorize payment: empty response")
	}

	switch auth.Status {
	case gateway.StatusApproved:
		return auth, nil
	case gateway.StatusDeclined:
		return nil, ErrPaymentDeclined
	default:
		return nil, fmt.Errorf("authorize payment: unknown status %q", auth.Status)
	}
}

// simulatedCode возвращает шестизначный код для оплаты без платёжной системы.
func simulatedCode() string {
	return fmt.Sprintf("%06d", uuid.New().ID()%1000000)
}

// ListPayments возвращает историю оплат пользователя.
func (s *Service) ListPayments(ctx context.Context, userID int64) ([]model.Payment, error) {
	return s.repo.GetPaymentsByUser(ctx, userID)
}

// GetPayment возвращает оплату пользователя.
func (s *Service) GetPayment(ctx context.Context, userID int64, id string) (*model.Payment, error) {
	return s.repo.GetPayment(ctx, userID, id)
}
