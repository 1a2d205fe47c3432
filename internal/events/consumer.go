package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler receives one event's key and payload. Returning an error only
// logs; the consumer never replays.
type Handler func(ctx context.Context, key string, value []byte) error

type Consumer struct {
	reader *kafka.Reader
	log    *zap.SugaredLogger
}

func NewConsumer(brokers []string, topic, groupID string, log *zap.SugaredLogger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &Consumer{reader: r, log: log}
}

// Run consumes until ctx is cancelled. Read errors back off briefly
// instead of spinning.
func (c *Consumer) Run(ctx context.Context, h Handler) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Errorw("kafka read", "topic", c.reader.Config().Topic, "err", err)
			time.Sleep(time.Second)
			continue
		}
		if err := h(ctx, string(m.Key), m.Value); err != nil {
			c.log.Errorw("event handler", "topic", c.reader.Config().Topic, "err", err)
		}
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }
