package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/aquabill/internal/events"
	"github.com/mmeshcher/aquabill/internal/model"
)

const overdueBatchSize = 100

// StartOverdueUpdates запускает фоновый перевод просроченных счетов в статус Overdue.
// Возвращённый канал закрывается после остановки по отмене ctx.
func (s *Service) StartOverdueUpdates(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if s.overdueInterval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.overdueInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processOverdueBatch(ctx)
			}
		}
	}()

	return done
}

func (s *Service) processOverdueBatch(ctx context.Context) {
	changed, err := s.repo.MarkOverdueInvoices(ctx, s.now(), overdueBatchSize)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("mark overdue invoices error", zap.Error(err))
		}
		return
	}

	for _, inv := range changed {
		s.publish(events.EventInvoiceStatusChanged, inv.ID, events.InvoiceStatusChangedPayload{
			InvoiceID: inv.ID,
			UserID:    inv.UserID,
			To:        string(model.InvoiceStatusOverdue),
		})
	}

	if len(changed) > 0 {
		s.logger.Info("invoices marked overdue", zap.Int("count", len(changed)))
	}
}
