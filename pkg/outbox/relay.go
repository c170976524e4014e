package outbox

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/eventbus"
	"github.com/agencydesk/mdconsole/pkg/model"
)

const defaultMaxAttempts = 5

type Repository interface {
	ListPending(ctx context.Context, limit int) ([]model.CascadeEvent, error)
	MarkPublished(ctx context.Context, eventID uuid.UUID, publishedAt time.Time) error
	RecordAttempt(ctx context.Context, eventID uuid.UUID, reason string) error
	MarkFailed(ctx context.Context, eventID uuid.UUID, reason string) error
}

// Publisher is satisfied by eventbus.KafkaProducer.
type Publisher interface {
	PublishEvent(ctx context.Context, key, value []byte, headers ...kafka.Header) error
	PublishDLQ(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

type Relay struct {
	repo         Repository
	publisher    Publisher
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
}

type Message struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	CompID    int64       `json:"comp_id"`
	Payload   model.JSONB `json:"payload"`
	CreatedAt time.Time   `json:"created_at"`
}

type DLQMessage struct {
	Event    Message   `json:"event"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

func NewRelay(repo Repository, publisher Publisher, logger *zap.Logger, pollInterval time.Duration, batchSize, maxAttempts int) *Relay {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Relay{
		repo:         repo,
		publisher:    publisher,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxAttempts:  maxAttempts,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay starting",
		zap.Duration("poll_interval", r.pollInterval),
		zap.Int("batch_size", r.batchSize),
		zap.Int("max_attempts", r.maxAttempts),
	)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.ProcessPending(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.ProcessPending(ctx)
		}
	}
}

// ProcessPending publishes one batch and returns how many events left the pending state.
// Once an event of a company stays pending, that company's later events wait for the
// next poll so that consumers see each company's changes in order.
func (r *Relay) ProcessPending(ctx context.Context) int {
	events, err := r.repo.ListPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Warn("failed to list pending outbox events", zap.Error(err))
		return 0
	}

	blocked := make(map[int64]bool)
	handled := 0
	for _, event := range events {
		compID := companyOf(event)
		if blocked[compID] {
			continue
		}
		settled, err := r.publishEvent(ctx, event)
		if err != nil {
			r.logger.Warn("failed to publish outbox event",
				zap.Error(err),
				zap.String("event_id", event.EventID.String()),
				zap.Int64("comp_id", compID),
			)
		}
		if !settled {
			blocked[compID] = true
			continue
		}
		handled++
	}
	return handled
}

// publishEvent reports whether the event left the pending state.
func (r *Relay) publishEvent(ctx context.Context, event model.CascadeEvent) (bool, error) {
	message := Message{
		EventID:   event.EventID.String(),
		EventType: event.EventType,
		CompID:    companyOf(event),
		Payload:   event.Payload,
		CreatedAt: event.CreatedAt,
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return false, err
	}

	key := []byte(strconv.FormatInt(message.CompID, 10))
	headers := []kafka.Header{
		{Key: eventbus.HeaderEventID, Value: []byte(message.EventID)},
		{Key: eventbus.HeaderEventType, Value: []byte(message.EventType)},
	}

	if publishErr := r.publisher.PublishEvent(ctx, key, payload, headers...); publishErr != nil {
		attempts := event.Attempts + 1
		if attempts < r.maxAttempts {
			if err := r.repo.RecordAttempt(ctx, event.EventID, publishErr.Error()); err != nil {
				return false, err
			}
			return false, publishErr
		}
		r.logger.Warn("giving up on outbox event, sending to DLQ",
			zap.Error(publishErr),
			zap.String("event_id", message.EventID),
			zap.Int("attempts", attempts),
		)
		return r.publishDLQ(ctx, key, event.EventID, message, publishErr, attempts)
	}

	if err := r.repo.MarkPublished(ctx, event.EventID, time.Now()); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Relay) publishDLQ(ctx context.Context, key []byte, eventID uuid.UUID, message Message, publishErr error, attempts int) (bool, error) {
	dlq := DLQMessage{
		Event:    message,
		Error:    publishErr.Error(),
		Attempts: attempts,
		FailedAt: time.Now(),
	}

	payload, err := json.Marshal(dlq)
	if err != nil {
		return false, err
	}

	if err := r.publisher.PublishDLQ(ctx, key, payload, kafka.Header{Key: eventbus.HeaderDLQError, Value: []byte(publishErr.Error())}); err != nil {
		return false, err
	}

	if err := r.repo.MarkFailed(ctx, eventID, publishErr.Error()); err != nil {
		return false, err
	}
	return true, nil
}

// companyOf prefers the column and falls back to the payload of rows written before
// the column existed.
func companyOf(event model.CascadeEvent) int64 {
	if event.CompID != 0 {
		return event.CompID
	}
	switch v := event.Payload["comp_id"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
