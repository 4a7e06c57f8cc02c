// Package kafka streams audit events to a Kafka topic.
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

	audit "shebacred/pkg/platform/audit"
)

// Message is the JSON payload written per event. The record key is the
// principal so a principal's trail stays ordered within one partition.
type Message struct {
	Category    string    `json:"category"`
	Timestamp   time.Time `json:"timestamp"`
	PrincipalID string    `json:"principal_id,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Action      string    `json:"action"`
	Decision    string    `json:"decision,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	ActorID     string    `json:"actor_id,omitempty"`
}

// Store produces audit events synchronously to topic.
type Store struct {
	client *kgo.Client
	topic  string
}

// New connects a producer to brokers.
func New(brokers []string, topic string, opts ...kgo.Opt) (*Store, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka audit store requires at least one broker")
	}
	if topic == "" {
		return nil, errors.New("kafka audit store requires a topic")
	}
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}, opts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Store{client: client, topic: topic}, nil
}

// EnsureTopic creates the audit topic if it does not already exist.
func (s *Store) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	admin := kadm.NewClient(s.client)
	resp, err := admin.CreateTopics(ctx, partitions, replicationFactor, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	msg := Message{
		Category:  string(event.Category),
		Timestamp: event.Timestamp,
		Subject:   event.Subject,
		Action:    event.Action,
		Decision:  event.Decision,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		ActorID:   event.ActorID,
	}
	if msg.Category == "" {
		msg.Category = string(audit.AuditEvent(event.Action).Category())
	}
	if !event.PrincipalID.IsNil() {
		msg.PrincipalID = event.PrincipalID.String()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(msg.PrincipalID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Health pings the brokers.
func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *Store) Close() {
	s.client.Close()
}
