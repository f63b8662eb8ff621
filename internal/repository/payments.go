package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/aquabill/internal/model"
)

// CreatePayment сохраняет оплату квитанции за воду.
func (r *PostgresRepository) CreatePayment(ctx context.Context, p *model.Payment) error {
	return r.withRetry(ctx, func() error {
		err := r.pool.QueryRow(ctx,
			`INSERT INTO water_payments (id, user_id, account_number, period, amount_cents, card_holder,
			                             card_last4, transaction_id, authorization_code)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING paid_at`,
			p.ID, p.UserID, p.AccountNumber, p.Period, p.AmountCents, p.CardHolder,
			p.CardLast4, p.TransactionID, p.AuthorizationCode,
		).Scan(&p.PaidAt)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return nil
	})
}

const paymentColumns = `id, user_id, account_number, period, amount_cents, card_holder, card_last4,
	transaction_id, authorization_code, paid_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.UserID, &p.AccountNumber, &p.Period, &p.AmountCents, &p.CardHolder,
		&p.CardLast4, &p.TransactionID, &p.AuthorizationCode, &p.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &p, nil
}

// GetPaymentsByUser возвращает историю оплат пользователя, новые первыми.
func (r *PostgresRepository) GetPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+`
		 FROM water_payments
		 WHERE user_id = $1
		 ORDER BY paid_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetPayment возвращает оплату пользователя по идентификатору.
func (r *PostgresRepository) GetPayment(ctx context.Context, userID int64, id string) (*model.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM water_payments WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
}
