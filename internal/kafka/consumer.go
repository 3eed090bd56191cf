package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ms-checkin/internal/events"
	"ms-checkin/internal/logger"
)

// Consumer tails the mirror topic. The monitor uses it to follow an event
// without a live session.
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB

		// A new group only sees events published after it joined.
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{reader: reader, log: log}
}

// Decode parses one mirrored message. ok is false for messages of other
// events when eventID is non-zero.
func Decode(msg kafka.Message, eventID int64) (events.Message, bool, error) {
	if eventID != 0 {
		id, err := strconv.ParseInt(string(msg.Key), 10, 64)
		if err != nil || id != eventID {
			return events.Message{}, false, nil
		}
	}
	var m events.Message
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		return events.Message{}, false, fmt.Errorf("decode offset %d: %w", msg.Offset, err)
	}
	return m, true, nil
}

// Start reads until ctx is cancelled, handing every message of eventID (or
// all events when zero) to handler.
func (c *Consumer) Start(ctx context.Context, eventID int64, handler func(events.Message)) error {
	c.log.Info("KAFKA", fmt.Sprintf("Consumer started on %s", c.reader.Config().Topic))
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}
		m, ok, err := Decode(msg, eventID)
		if err != nil {
			c.log.Warn("KAFKA", err.Error())
			continue
		}
		if ok {
			handler(m)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
