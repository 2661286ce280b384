package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"medword/internal/model"
)

// JournalPublisher sends chat journal events to the journal queue.
type JournalPublisher struct {
	conn      *amqp.Connection
	queueName string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewJournalPublisher(conn *amqp.Connection, queueName string) *JournalPublisher {
	return &JournalPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *JournalPublisher) Publish(ctx context.Context, ev model.JournalEvent) error {
	payload, err := EncodeEvent(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         ev.Type,
			MessageId:    uuid.NewString(),
			Timestamp:    ev.At,
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		// drop the channel so the next publish reopens it
		_ = ch.Close()
		p.ch = nil
		return fmt.Errorf("publish journal event failed: %w", err)
	}
	return nil
}

func (p *JournalPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}

func (p *JournalPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	p.ch = ch
	return ch, nil
}

func EncodeEvent(ev model.JournalEvent) ([]byte, error) {
	if ev.Type == "" || ev.SessionID == "" {
		return nil, fmt.Errorf("journal event needs a type and a session id")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal journal event failed: %w", err)
	}
	return payload, nil
}

func DecodeEvent(body []byte) (model.JournalEvent, error) {
	var ev model.JournalEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return model.JournalEvent{}, fmt.Errorf("unmarshal journal event failed: %w", err)
	}
	switch ev.Type {
	case model.JournalSessionCreated, model.JournalTurnAppended, model.JournalSessionDeleted:
	default:
		return model.JournalEvent{}, fmt.Errorf("unknown journal event type %q", ev.Type)
	}
	if ev.SessionID == "" {
		return model.JournalEvent{}, fmt.Errorf("journal event without session id")
	}
	return ev, nil
}
