package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"vaultdao/internal/domain"
)

// KafkaPublisher mirrors the activity feed onto a Kafka topic so downstream
// consumers (alerting, analytics) see lifecycle events without polling the
// API. Records are keyed by event id, so replays of the same ledger event
// land on the same partition and consumers can dedupe cheaply.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50*time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, 3, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, resp.Err)
	}

	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

type activityEnvelope struct {
	EventID   string              `json:"event_id"`
	Type      domain.ActivityType `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Ledger    uint64              `json:"ledger"`
	Actor     domain.Address      `json:"actor"`
	TxHash    string              `json:"tx_hash,omitempty"`
	Details   json.RawMessage     `json:"details"`
}

// Publish produces one record synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, a domain.VaultActivity) error {
	details, err := domain.MarshalDetails(a.Details)
	if err != nil {
		return fmt.Errorf("marshal activity details: %w", err)
	}
	value, err := json.Marshal(activityEnvelope{
		EventID:   a.EventID,
		Type:      a.Type,
		Timestamp: a.Timestamp,
		Ledger:    a.Ledger,
		Actor:     a.Actor,
		TxHash:    a.TxHash,
		Details:   details,
	})
	if err != nil {
		return fmt.Errorf("marshal activity record: %w", err)
	}

	record := &kgo.Record{Topic: p.topic, Key: []byte(a.EventID), Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce activity record: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the connection.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
