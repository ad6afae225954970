// Package kafka streams audit events to a Kafka topic for downstream
// analytics. Delivery is best-effort like the rest of the audit pipeline;
// the Postgres store remains the queryable copy.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "rollcall/pkg/platform/audit"
)

// DefaultTopic is the audit event stream.
const DefaultTopic = "rollcall.audit"

// Publisher implements audit.Store by producing JSON events to Kafka.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and ensures the audit topic exists.
func New(brokers []string, topic string) (*Publisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
		// Already-exists is the common case after first boot.
		if !errors.Is(err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("ensure audit topic: %w", err)
		}
	}

	return &Publisher{client: client, topic: topic}, nil
}

type wireEvent struct {
	Action          string    `json:"action"`
	StaffID         string    `json:"staff_id"`
	RequestID       string    `json:"request_id,omitempty"`
	ClientIP        string    `json:"client_ip,omitempty"`
	UserAgent       string    `json:"user_agent,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	TotalRecords    int       `json:"total_records,omitempty"`
	MinConfidence   string    `json:"min_confidence,omitempty"`
	RecentDays      int       `json:"recent_days,omitempty"`
	IncludeMetadata bool      `json:"include_metadata,omitempty"`
	SurvivorID      string    `json:"survivor_id,omitempty"`
	MergedCount     int       `json:"merged_count,omitempty"`
}

// Append produces one event, keyed by actor so per-operator ordering holds.
func (p *Publisher) Append(ctx context.Context, event audit.Event) error {
	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	payload, err := json.Marshal(wireEvent{
		Action:          string(event.Action),
		StaffID:         event.StaffID.String(),
		RequestID:       event.RequestID,
		ClientIP:        event.ClientIP,
		UserAgent:       event.UserAgent,
		Timestamp:       timestamp,
		TotalRecords:    event.TotalRecords,
		MinConfidence:   event.MinConfidence,
		RecentDays:      event.RecentDays,
		IncludeMetadata: event.IncludeMetadata,
		SurvivorID:      event.SurvivorID,
		MergedCount:     event.MergedCount,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.StaffID.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes and releases the Kafka client.
func (p *Publisher) Close() {
	p.client.Close()
}
