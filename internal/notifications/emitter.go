package notifications

import (
	"context"
	"time"

	"deskly/pkg/kafka"
	"deskly/pkg/logger"
	"deskly/pkg/model"
)

// Event names a booking lifecycle transition.
type Event string

const (
	EventBookingCreated   Event = "booking.created"
	EventBookingCancelled Event = "booking.cancelled"
)

const schemaVersion = "1"

// Emitter is a fire-and-forget hook. Implementations log delivery failures
// instead of returning them; a lost notification never rolls back a booking.
// Retry and backoff belong to the downstream delivery service.
type Emitter interface {
	Emit(ctx context.Context, event Event, booking *model.Booking)
}

type payload struct {
	Event     Event          `json:"event"`
	Booking   *model.Booking `json:"booking"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// KafkaEmitter publishes lifecycle events keyed by resource id, so events for
// one resource arrive in order.
type KafkaEmitter struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

func NewKafkaEmitter(producer *kafka.Producer, source string, log *logger.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		producer: producer,
		source:   source,
		log:      log,
	}
}

func (e *KafkaEmitter) Emit(ctx context.Context, event Event, booking *model.Booking) {
	msg := kafka.NewMessage().
		WithKey(booking.ResourceID).
		WithValue(payload{
			Event:     event,
			Booking:   booking,
			EmittedAt: time.Now().UTC(),
		}).
		WithEventType(string(event)).
		WithSchemaVersion(schemaVersion).
		WithSource(e.source).
		Build()

	if err := e.producer.Publish(ctx, msg); err != nil {
		e.log.Error("Failed to emit booking notification",
			"event", event,
			"booking_id", booking.ID,
			"resource_id", booking.ResourceID,
			"error", err,
		)
	}
}

// LogEmitter stands in when no broker is configured.
type LogEmitter struct {
	log *logger.Logger
}

func NewLogEmitter(log *logger.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (e *LogEmitter) Emit(_ context.Context, event Event, booking *model.Booking) {
	e.log.Info("Booking notification",
		"event", event,
		"booking_id", booking.ID,
		"resource_id", booking.ResourceID,
		"owner", booking.Owner,
	)
}
