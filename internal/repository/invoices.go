package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/aquabill/internal/model"
)

// CreateInvoice сохраняет счёт вместе с позициями в одной транзакции.
func (r *PostgresRepository) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO invoices (id, number, user_id, customer_name, customer_email, invoice_date,
			                       due_date, total_cents, status, notes, compliant_text)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING created_at`,
			inv.ID, inv.Number, inv.UserID, inv.CustomerName, inv.CustomerEmail, inv.InvoiceDate,
			inv.DueDate, inv.TotalCents, string(inv.Status), inv.Notes, inv.CompliantText,
		).Scan(&inv.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}

		batch := &pgx.Batch{}
		for i, it := range inv.Items {
			batch.Queue(
				`INSERT INTO invoice_items (id, invoice_id, position, description, quantity, price_cents)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				it.ID, inv.ID, i, it.Description, it.Quantity, it.PriceCents,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert invoice items: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

const invoiceColumns = `id, number, user_id, customer_name, customer_email, invoice_date, due_date,
	total_cents, status, notes, compliant_text, created_at`

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	var (
		inv    model.Invoice
		status string
	)
	err := row.Scan(&inv.ID, &inv.Number, &inv.UserID, &inv.CustomerName, &inv.CustomerEmail,
		&inv.InvoiceDate, &inv.DueDate, &inv.TotalCents, &status, &inv.Notes, &inv.CompliantText,
		&inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	inv.Status = model.InvoiceStatus(status)
	return &inv, nil
}

// GetInvoicesByUser возвращает счета пользователя, новые по дате счёта первыми.
func (r *PostgresRepository) GetInvoicesByUser(ctx context.Context, userID int64) ([]model.Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+`
		 FROM invoices
		 WHERE user_id = $1
		 ORDER BY invoice_date DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(invoices) == 0 {
		return invoices, nil
	}

	if err := r.attachItems(ctx, invoices); err != nil {
		return nil, err
	}

	return invoices, nil
}

// GetInvoice возвращает счёт пользователя с позициями.
func (r *PostgresRepository) GetInvoice(ctx context.Context, userID int64, id string) (*model.Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err != nil {
		return nil, err
	}

	invoices := []model.Invoice{*inv}
	if err := r.attachItems(ctx, invoices); err != nil {
		return nil, err
	}

	return &invoices[0], nil
}

func (r *PostgresRepository) attachItems(ctx context.Context, invoices []model.Invoice) error {
	ids := make([]string, 0, len(invoices))
	byID := make(map[string]int, len(invoices))
	for i, inv := range invoices {
		ids = append(ids, inv.ID)
		byID[inv.ID] = i
	}

	rows, err := r.pool.Query(ctx,
		`SELECT invoice_id, id, description, quantity, price_cents
		 FROM invoice_items
		 WHERE invoice_id = ANY($1)
		 ORDER BY invoice_id, position`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("select invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			invoiceID string
			it        model.LineItem
		)
		if err := rows.Scan(&invoiceID, &it.ID, &it.Description, &it.Quantity, &it.PriceCents); err != nil {
			return fmt.Errorf("scan invoice item: %w", err)
		}
		idx := byID[invoiceID]
		invoices[idx].Items = append(invoices[idx].Items, it)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

// UpdateInvoiceStatus меняет статус счёта, если текущий статус равен from.
func (r *PostgresRepository) UpdateInvoiceStatus(ctx context.Context, userID int64, id string, from, to model.InvoiceStatus) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE invoices SET status = $4 WHERE id = $1 AND user_id = $2 AND status = $3`,
			id, userID, string(from), string(to),
		)
		if err != nil {
			return fmt.Errorf("update invoice status: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		var exists bool
		err = r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1 AND user_id = $2)`,
			id, userID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check invoice: %w", err)
		}
		if !exists {
			return ErrInvoiceNotFound
		}
		return ErrStatusConflict
	})
}

// SetCompliantText сохраняет юридический текст счёта пользователя.
func (r *PostgresRepository) SetCompliantText(ctx context.Context, userID int64, id, text string) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE invoices SET compliant_text = $3 WHERE id = $1 AND user_id = $2`,
			id, userID, text,
		)
		if err != nil {
			return fmt.Errorf("update compliant text: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrInvoiceNotFound
		}
		return nil
	})
}

// DeleteInvoice удаляет счёт пользователя вместе с позициями.
func (r *PostgresRepository) DeleteInvoice(ctx context.Context, userID int64, id string) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return fmt.Errorf("delete invoice: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrInvoiceNotFound
		}
		return nil
	})
}

// OverdueInvoice описывает счёт, переведённый в статус Overdue.
type OverdueInvoice struct {
	ID     string
	Number string
	UserID int64
}

// MarkOverdueInvoices переводит просроченные счета в статусах Pending и Sent в Overdue.
func (r *PostgresRepository) MarkOverdueInvoices(ctx context.Context, now time.Time, limit int) ([]OverdueInvoice, error) {
	var res []OverdueInvoice

	err := r.withRetry(ctx, func() error {
		res = res[:0]

		rows, err := r.pool.Query(ctx,
			`UPDATE invoices SET status = $1
			 WHERE id IN (
			     SELECT id FROM invoices
			     WHERE status IN ($2, $3) AND due_date < $4
			     ORDER BY due_date
			     LIMIT $5
			     FOR UPDATE SKIP LOCKED
			 )
			 RETURNING id, number, user_id`,
			string(model.InvoiceStatusOverdue),
			string(model.InvoiceStatusPending),
			string(model.InvoiceStatusSent),
			now,
			limit,
		)
		if err != nil {
			return fmt.Errorf("mark overdue invoices: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var o OverdueInvoice
			if err := rows.Scan(&o.ID, &o.Number, &o.UserID); err != nil {
				return fmt.Errorf("scan overdue invoice: %w", err)
			}
			res = append(res, o)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}
