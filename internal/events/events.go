// Package events публикует доменные события сервиса в Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TopicBilling задаёт топик, в который публикуются все события счетов и оплат.
const TopicBilling = "aquabill.billing"

// Типы событий, передаваемые в заголовке x-event-type и в поле event_type конверта.
const (
	// EventInvoiceCreated публикуется после создания счёта.
	EventInvoiceCreated = "InvoiceCreated"
	// EventInvoiceStatusChanged публикуется при смене статуса счёта, в том числе фоновой.
	EventInvoiceStatusChanged = "InvoiceStatusChanged"
	// EventInvoiceDeleted публикуется после удаления счёта.
	EventInvoiceDeleted = "InvoiceDeleted"
	// EventWaterBillPaid публикуется после успешной оплаты квитанции за воду.
	EventWaterBillPaid = "WaterBillPaid"
)

// Envelope описывает общую обёртку события.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// InvoiceCreatedPayload описывает событие EventInvoiceCreated.
type InvoiceCreatedPayload struct {
	InvoiceID  string `json:"invoice_id"`
	UserID     int64  `json:"user_id"`
	Number     string `json:"number"`
	TotalCents int64  `json:"total_cents"`
	Status     string `json:"status"`
}

// InvoiceStatusChangedPayload описывает событие EventInvoiceStatusChanged.
// From пуст, если предыдущий статус неизвестен.
type InvoiceStatusChangedPayload struct {
	InvoiceID string `json:"invoice_id"`
	UserID    int64  `json:"user_id"`
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
}

// InvoiceDeletedPayload описывает событие EventInvoiceDeleted.
type InvoiceDeletedPayload struct {
	InvoiceID string `json:"invoice_id"`
	UserID    int64  `json:"user_id"`
}

// WaterBillPaidPayload описывает событие EventWaterBillPaid.
type WaterBillPaidPayload struct {
	PaymentID     string `json:"payment_id"`
	UserID        int64  `json:"user_id"`
	AccountNumber string `json:"account_number"`
	Period        string `json:"period"`
	AmountCents   int64  `json:"amount_cents"`
}

// NewEnvelope упаковывает payload в конверт версии 1.
func NewEnvelope(producer, eventType, correlationID string, payload any, now time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode payload: %w", err)
	}

	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}
