// Package kafka publishes outbox events to Kafka topics.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/kitstock-backend/pkg/config"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Writer struct {
	w       messageWriter
	brokers []string
}

// NewWriter builds a kafka-go writer that routes by message topic and
// partitions by message key.
func NewWriter(cfg config.KafkaConfig) (*Writer, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: false,
		Transport:              &kafkago.Transport{ClientID: cfg.ClientID},
	}
	return &Writer{w: w, brokers: brokers}, nil
}

// Publish writes msg to topic. Attributes become headers alongside the
// trace context of ctx.
func (k *Writer) Publish(ctx context.Context, topic string, msg outbox.Message) error {
	if k == nil || k.w == nil {
		return errors.New("kafka writer not initialized")
	}
	if strings.TrimSpace(topic) == "" {
		return errors.New("kafka topic is required")
	}

	if err := k.w.WriteMessages(ctx, buildMessage(ctx, topic, msg)); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func buildMessage(ctx context.Context, topic string, msg outbox.Message) kafkago.Message {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]kafkago.Header, 0, len(msg.Attributes)+len(carrier))
	for k, v := range msg.Attributes {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	for k, v := range carrier {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
	}

	out := kafkago.Message{
		Topic:   topic,
		Value:   msg.Data,
		Headers: headers,
	}
	if msg.Key != "" {
		out.Key = []byte(msg.Key)
	}
	return out
}

// IsPermanent reports broker errors that retrying cannot fix.
func (k *Writer) IsPermanent(err error) bool {
	var kerr kafkago.Error
	if errors.As(err, &kerr) {
		return !kerr.Temporary()
	}
	return false
}

// Ping dials the first reachable broker.
func (k *Writer) Ping(ctx context.Context) error {
	if k == nil || len(k.brokers) == 0 {
		return errors.New("kafka writer not initialized")
	}
	var lastErr error
	for _, broker := range k.brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("dial kafka: %w", lastErr)
}

func (k *Writer) Close() error {
	if k == nil || k.w == nil {
		return nil
	}
	return k.w.Close()
}
