package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/aquabill/internal/billing"
	"github.com/mmeshcher/aquabill/internal/compliance"
	"github.com/mmeshcher/aquabill/internal/events"
	"github.com/mmeshcher/aquabill/internal/model"
	"github.com/mmeshcher/aquabill/internal/receipt"
	"github.com/mmeshcher/aquabill/internal/repository"
	"github.com/mmeshcher/aquabill/internal/validation"
)

// CreateInvoice создаёт счёт пользователя. При повторе с тем же ключом идемпотентности
// возвращает ранее созданный счёт и created=false.
func (s *Service) CreateInvoice(ctx context.Context, userID int64, in model.InvoiceInput, idempotencyKey string) (*model.Invoice, bool, error) {
	if in.Status == "" {
		in.Status = model.InvoiceStatusPending
	}
	in.CustomerEmail = normalizeEmail(in.CustomerEmail)
	if err := validation.Invoice(in); err != nil {
		return nil, false, err
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" && s.idem != nil {
		if inv, ok := s.replayInvoice(ctx, userID, idempotencyKey); ok {
			return inv, false, nil
		}
	}

	items := make([]model.LineItem, 0, len(in.Items))
	for i, it := range in.Items {
		price, err := billing.ToCents(it.Price)
		if err != nil {
			return nil, false, validation.Errors{fmt.Sprintf("items.%d.price", i): "Price is out of range."}
		}
		items = append(items, model.LineItem{
			ID:          uuid.NewString(),
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			PriceCents:  price,
		})
	}

	total, err := billing.Total(items)
	if err != nil {
		return nil, false, validation.Errors{"items": "Invoice total is too large."}
	}

	inv := &model.Invoice{
		ID:            uuid.NewString(),
		Number:        billing.NewInvoiceNumber(s.now()),
		UserID:        userID,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: in.CustomerEmail,
		InvoiceDate:   in.InvoiceDate,
		DueDate:       in.DueDate,
		Items:         items,
		TotalCents:    total,
		Status:        in.Status,
		Notes:         in.Notes,
	}

	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return nil, false, err
	}

	if idempotencyKey != "" && s.idem != nil {
		if err := s.idem.RememberInvoice(ctx, userID, idempotencyKey, inv.ID); err != nil {
			s.logger.Warn("remember idempotency key error", zap.Error(err), zap.Int64("userID", userID))
		}
	}

	s.publishCreated(inv)
	return inv, true, nil
}

func (s *Service) replayInvoice(ctx context.Context, userID int64, key string) (*model.Invoice, bool) {
	id, ok, err := s.idem.LookupInvoice(ctx, userID, key)
	if err != nil {
		s.logger.Warn("lookup idempotency key error", zap.Error(err), zap.Int64("userID", userID))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	inv, err := s.repo.GetInvoice(ctx, userID, id)
	if err != nil {
		if !errors.Is(err, repository.ErrInvoiceNotFound) {
			s.logger.Warn("load replayed invoice error", zap.Error(err), zap.String("invoiceID", id))
		}
		return nil, false
	}
	return inv, true
}

func (s *Service) publishCreated(inv *model.Invoice) {
	s.publish(events.EventInvoiceCreated, inv.ID, events.InvoiceCreatedPayload{
		InvoiceID:  inv.ID,
		UserID:     inv.UserID,
		Number:     inv.Number,
		TotalCents: inv.TotalCents,
		Status:     string(inv.Status),
	})
}

// ListInvoices возвращает счета пользователя.
func (s *Service) ListInvoices(ctx context.Context, userID int64) ([]model.Invoice, error) {
	return s.repo.GetInvoicesByUser(ctx, userID)
}

// GetInvoice возвращает счёт пользователя.
func (s *Service) GetInvoice(ctx context.Context, userID int64, id string) (*model.Invoice, error) {
	return s.repo.GetInvoice(ctx, userID, id)
}

// UpdateInvoiceStatus переводит счёт в новый статус согласно таблице переходов.
func (s *Service) UpdateInvoiceStatus(ctx context.Context, userID int64, id string, to model.InvoiceStatus) (*model.Invoice, error) {
	if !to.Valid() {
		return nil, validation.Errors{"status": "Invalid status."}
	}

	inv, err := s.repo.GetInvoice(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	from := inv.Status
	if from == to {
		return inv, nil
	}
	if !model.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	if err := s.repo.UpdateInvoiceStatus(ctx, userID, id, from, to); err != nil {
		return nil, err
	}
	inv.Status = to

	s.publish(events.EventInvoiceStatusChanged, inv.ID, events.InvoiceStatusChangedPayload{
		InvoiceID: inv.ID,
		UserID:    userID,
		From:      string(from),
		To:        string(to),
	})
	return inv, nil
}

// DeleteInvoice удаляет счёт пользователя.
func (s *Service) DeleteInvoice(ctx context.Context, userID int64, id string) error {
	if err := s.repo.DeleteInvoice(ctx, userID, id); err != nil {
		return err
	}

	s.publish(events.EventInvoiceDeleted, id, events.InvoiceDeletedPayload{InvoiceID: id, UserID: userID})
	return nil
}

// GenerateInvoice формирует черновик счёта для покупателя от имени бухгалтера.
func (s *Service) GenerateInvoice(ctx context.Context, customerID int64, in model.GenerateInvoiceInput) (*model.Invoice, error) {
	if err := validation.GeneratedInvoice(in); err != nil {
		return nil, err
	}

	customer, err := s.repo.GetUserByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]model.LineItem, 0, len(in.Items))
	for i, it := range in.Items {
		amount, err := billing.ToCents(it.Amount)
		if err != nil {
			return nil, validation.Errors{fmt.Sprintf("items.%d.amount", i): "El monto está fuera de rango."}
		}
		items = append(items, model.LineItem{
			ID:          uuid.NewString(),
			Description: strings.TrimSpace(it.Description),
			Quantity:    1,
			PriceCents:  amount,
		})
	}

	total, err := billing.Total(items)
	if err != nil {
		return nil, validation.Errors{"items": "El total de la factura es demasiado grande."}
	}

	inv := &model.Invoice{
		ID:            uuid.NewString(),
		Number:        billing.GeneratedInvoiceNumber(now),
		UserID:        customer.ID,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		InvoiceDate:   now,
		DueDate:       billing.DefaultDueDate(now),
		Items:         items,
		TotalCents:    total,
		Status:        model.InvoiceStatusDraft,
	}

	if s.composer != nil {
		text, err := s.composer.Compose(ctx, complianceRequest(inv, s.company, s.legal))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrComposeFailed, err)
		}
		inv.CompliantText = text
	}

	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	s.publishCreated(inv)
	return inv, nil
}

// ComposeCompliantInvoice генерирует юридический текст для существующего счёта пользователя
// и сохраняет его в счёте.
func (s *Service) ComposeCompliantInvoice(ctx context.Context, userID int64, id string) (*model.Invoice, error) {
	if s.composer == nil {
		return nil, ErrComposerUnavailable
	}

	inv, err := s.repo.GetInvoice(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	text, err := s.composer.Compose(ctx, complianceRequest(inv, s.issuer, s.issuerLegal))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrComposeFailed, err)
	}

	if err := s.repo.SetCompliantText(ctx, userID, id, text); err != nil {
		return nil, err
	}
	inv.CompliantText = text

	s.logger.Info("compliant invoice composed", zap.Int64("userID", userID), zap.String("invoiceID", id))
	return inv, nil
}

func complianceRequest(inv *model.Invoice, company receipt.Company, legal string) compliance.Request {
	items := make([]compliance.Item, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, compliance.Item{
			Description: it.Description,
			Amount:      billing.FromCents(billing.LineTotal(it)),
		})
	}

	return compliance.Request{
		CustomerName:      inv.CustomerName,
		InvoiceNumber:     inv.Number,
		Items:             items,
		TotalAmount:       billing.FromCents(inv.TotalCents),
		Date:              inv.InvoiceDate.Format("2006-01-02"),
		CompanyName:       company.Name,
		CompanyAddress:    company.Address,
		CompanyContact:    company.Contact,
		LegalRequirements: legal,
	}
}

// ListCustomerInvoices возвращает счета покупателя для бухгалтера.
func (s *Service) ListCustomerInvoices(ctx context.Context, customerID int64) ([]model.Invoice, error) {
	if _, err := s.repo.GetUserByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.GetInvoicesByUser(ctx, customerID)
}
