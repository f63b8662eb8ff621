package service

import (
	"bytes"
	"context"
	"strings"

	"github.com/mmeshcher/aquabill/internal/billing"
	"github.com/mmeshcher/aquabill/internal/receipt"
)

// RenderInvoicePDF возвращает PDF счёта и имя файла для скачивания.
func (s *Service) RenderInvoicePDF(ctx context.Context, userID int64, id string) ([]byte, string, error) {
	inv, err := s.repo.GetInvoice(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	if err := receipt.RenderInvoice(&buf, *inv, s.company, s.now()); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "Factura_" + inv.Number + ".pdf", nil
}

// RenderPaymentReceipt возвращает PDF подтверждения оплаты и имя файла.
func (s *Service) RenderPaymentReceipt(ctx context.Context, userID int64, id string) ([]byte, string, error) {
	p, err := s.repo.GetPayment(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	if err := receipt.RenderPayment(&buf, *p, s.company, s.now()); err != nil {
		return nil, "", err
	}

	label := p.Period
	if t, err := billing.ParsePeriod(p.Period); err == nil {
		label = billing.MonthLabel(t)
	}
	return buf.Bytes(), "Recibo_" + strings.ReplaceAll(label, " ", "_") + ".pdf", nil
}
