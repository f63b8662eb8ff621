package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer асинхронно публикует события через внутреннюю очередь.
type Producer struct {
	w       messageWriter
	service string
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	inbox  chan kafka.Message
	done   chan struct{}
}

// NewProducer создаёт продюсер для топика TopicBilling с очередью размера buf.
func NewProducer(brokers []string, service string, buf int, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        TopicBilling,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newProducer(w, service, buf, logger)
}

func newProducer(w messageWriter, service string, buf int, logger *zap.Logger) *Producer {
	p := &Producer{
		w:       w,
		service: service,
		logger:  logger,
		inbox:   make(chan kafka.Message, buf),
		done:    make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Producer) loop() {
	defer close(p.done)

	for m := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := p.w.WriteMessages(ctx, m); err != nil {
			p.logger.Error("publish event error", zap.Error(err), zap.ByteString("key", m.Key))
		}
		cancel()
	}

	if err := p.w.Close(); err != nil {
		p.logger.Error("close kafka writer error", zap.Error(err))
	}
}

// Publish ставит событие в очередь. Если очередь заполнена или продюсер закрыт, событие отбрасывается.
func (p *Producer) Publish(eventType, key string, payload any) {
	env, err := NewEnvelope(p.service, eventType, key, payload, time.Now())
	if err != nil {
		p.logger.Error("build event error", zap.Error(err), zap.String("event", eventType))
		return
	}

	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("encode event error", zap.Error(err), zap.String("event", eventType))
		return
	}

	m := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	select {
	case p.inbox <- m:
	default:
		p.logger.Warn("event queue is full, dropping event", zap.String("event", eventType), zap.String("key", key))
	}
}

// Close дожидается отправки накопленных событий и закрывает writer.
func (p *Producer) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()

	<-p.done
	return nil
}
