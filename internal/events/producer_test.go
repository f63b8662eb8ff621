package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestProducer_PublishFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "aquabill", 16, zap.NewNop())

	p.Publish(EventInvoiceCreated, "inv-1", InvoiceCreatedPayload{
		InvoiceID:  "inv-1",
		UserID:     7,
		Number:     "INV-20261018-0001",
		TotalCents: 4560,
		Status:     "Pending",
	})
	p.Publish(EventInvoiceDeleted, "inv-1", InvoiceDeletedPayload{InvoiceID: "inv-1", UserID: 7})

	require.NoError(t, p.Close())

	w.mu.Lock()
	defer w.mu.Unlock()

	require.Len(t, w.msgs, 2)
	assert.True(t, w.closed)
	assert.Equal(t, "inv-1", string(w.msgs[0].Key))

	var env Envelope
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &env))
	assert.Equal(t, EventInvoiceCreated, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "aquabill", env.Producer)
	assert.Equal(t, "inv-1", env.CorrelationID)
	assert.NotEmpty(t, env.EventID)

	var payload InvoiceCreatedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, int64(4560), payload.TotalCents)
	assert.Equal(t, int64(7), payload.UserID)
}

func TestProducer_PublishAfterCloseIsDropped(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "aquabill", 1, zap.NewNop())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	p.Publish(EventInvoiceDeleted, "inv-2", InvoiceDeletedPayload{InvoiceID: "inv-2"})

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Empty(t, w.msgs)
}
