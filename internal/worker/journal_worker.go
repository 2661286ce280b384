package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"medword/internal/model"
	"medword/internal/platform/rabbitmq"
)

const applyTimeout = 5 * time.Second

type SessionWriter interface {
	Create(ctx context.Context, sessionID string, createdAt time.Time) error
	Delete(ctx context.Context, sessionID string) error
	Deleted(ctx context.Context, sessionID string) (bool, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error
}

type MessageWriter interface {
	AppendTurn(ctx context.Context, sessionID string, offset int, messages []model.ChatMessage, at time.Time) error
}

// JournalWorker consumes chat journal events and writes them to the database.
type JournalWorker struct {
	conn      *amqp.Connection
	sessions  SessionWriter
	messages  MessageWriter
	queueName string
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewJournalWorker(conn *amqp.Connection, sessions SessionWriter, messages MessageWriter, queueName string, logger *zap.Logger) *JournalWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalWorker{
		conn:      conn,
		sessions:  sessions,
		messages:  messages,
		queueName: queueName,
		logger:    logger.Named("journal_worker"),
	}
}

func (w *JournalWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	// events of one session must be applied in order
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.logger.Warn("journal deliveries closed")
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	w.logger.Info("journal worker started", zap.String("queue", w.queueName))
	return nil
}

func (w *JournalWorker) handle(ctx context.Context, d amqp.Delivery) {
	ev, err := rabbitmq.DecodeEvent(d.Body)
	if err != nil {
		w.logger.Error("decode journal event failed", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	applyCtx, cancel := context.WithTimeout(ctx, applyTimeout)
	defer cancel()
	if err := w.Apply(applyCtx, ev); err != nil {
		// a failed first delivery is retried once
		requeue := !d.Redelivered
		w.logger.Error("persist journal event failed",
			zap.String("type", ev.Type),
			zap.String("session_id", ev.SessionID),
			zap.Bool("requeue", requeue),
			zap.Error(err),
		)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

// Apply writes one journal event. Every event kind is safe to apply twice.
func (w *JournalWorker) Apply(ctx context.Context, ev model.JournalEvent) error {
	switch ev.Type {
	case model.JournalSessionCreated:
		return w.sessions.Create(ctx, ev.SessionID, ev.At)
	case model.JournalTurnAppended:
		deleted, err := w.sessions.Deleted(ctx, ev.SessionID)
		if err != nil {
			return err
		}
		if deleted {
			w.logger.Info("dropping turn of deleted session", zap.String("session_id", ev.SessionID), zap.Int("offset", ev.Offset))
			return nil
		}
		// a turn may arrive for a session whose create event was lost
		if err := w.sessions.Create(ctx, ev.SessionID, ev.At); err != nil {
			return err
		}
		if err := w.messages.AppendTurn(ctx, ev.SessionID, ev.Offset, ev.Messages, ev.At); err != nil {
			return err
		}
		return w.sessions.Touch(ctx, ev.SessionID, ev.At)
	case model.JournalSessionDeleted:
		return w.sessions.Delete(ctx, ev.SessionID)
	default:
		return fmt.Errorf("unknown journal event type %q", ev.Type)
	}
}

func (w *JournalWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
