// Package events is the bus boundary: message.sent fan-out and the
// image-resize trigger both ride Kafka topics.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/joeldelcastillo/verndale-chat-app/internal/config"
	"github.com/joeldelcastillo/verndale-chat-app/internal/models"
)

// ImageResized is published when the thumbnail pipeline finishes. Name is
// the object path in the bucket; the file's base name encodes the owning
// user id.
type ImageResized struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
}

type Producer struct {
	messages *kafka.Writer
	images   *kafka.Writer
}

func NewProducer(cfg *config.Config) *Producer {
	return &Producer{
		messages: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Kafka.Brokers...),
			Topic:    cfg.Kafka.TopicMessageSent,
			Balancer: &kafka.LeastBytes{},
		},
		images: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Kafka.Brokers...),
			Topic:    cfg.Kafka.TopicImageResized,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *Producer) PublishMessageSent(ctx context.Context, m *models.Message) error {
	value, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return p.messages.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.ConversationID),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Producer) PublishImageResized(ctx context.Context, ev ImageResized) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.images.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Name),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	err := p.messages.Close()
	if cerr := p.images.Close(); err == nil {
		err = cerr
	}
	return err
}
