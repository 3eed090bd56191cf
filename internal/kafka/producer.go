package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ms-checkin/internal/events"
	"ms-checkin/internal/logger"
)

// Producer mirrors event batches to a topic. Writes are asynchronous; delivery
// errors are only logged.
type Producer struct {
	Writer *kafka.Writer
	log    *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	p := &Producer{log: log}
	p.Writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				p.log.Error("KAFKA", fmt.Sprintf("Failed to deliver %d messages to %s: %v", len(messages), topic, err))
			}
		},
	}
	return p
}

// Messages encodes evs as one message each, keyed by event id so a
// partition sees an event's batches in order.
func Messages(eventID int64, evs []events.Event) ([]kafka.Message, error) {
	key := []byte(strconv.FormatInt(eventID, 10))
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		value, err := json.Marshal(events.Encode(ev))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Key:   key,
			Value: value,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(ev.Kind())},
			},
		})
	}
	return msgs, nil
}

func (p *Producer) Publish(ctx context.Context, eventID int64, evs []events.Event) error {
	msgs, err := Messages(eventID, evs)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	p.log.LogKafka("PUBLISH", p.Writer.Topic, fmt.Sprintf("event %d, %d messages", eventID, len(msgs)))
	return p.Writer.WriteMessages(ctx, msgs...)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
