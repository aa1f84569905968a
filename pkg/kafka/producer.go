// Package kafka publishes collected entities and relationships as events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jmountifield/graph-cisco-meraki/pkg/metrics"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
	"github.com/jmountifield/graph-cisco-meraki/pkg/tracing"
)

// Event types
const (
	EventEntityCollected       = "entity.collected"
	EventRelationshipCollected = "relationship.collected"
)

const schemaVersion = "1.0"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles Kafka event emission
type Producer struct {
	writer    messageWriter
	logger    ectologger.Logger
	topic     string
	batchSize int
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return newProducer(writer, cfg.Topic, cfg.BatchSize, logger)
}

func newProducer(writer messageWriter, topic string, batchSize int, logger ectologger.Logger) *Producer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Producer{
		writer:    writer,
		logger:    logger,
		topic:     topic,
		batchSize: batchSize,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// EntityEvent represents a collected entity
type EntityEvent struct {
	EventType  string          `json:"event_type"`
	RunID      string          `json:"run_id"`
	EntityKey  string          `json:"entity_key"`
	EntityType string          `json:"entity_type"`
	Class      []string        `json:"class"`
	Data       json.RawMessage `json:"data,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// RelationshipEvent represents a collected relationship. Mapped relationships carry the target
// descriptor instead of a target key.
type RelationshipEvent struct {
	EventType        string               `json:"event_type"`
	RunID            string               `json:"run_id"`
	RelationshipKey  string               `json:"relationship_key"`
	RelationshipType string               `json:"relationship_type"`
	Class            string               `json:"class"`
	FromEntityKey    string               `json:"from_entity_key"`
	ToEntityKey      string               `json:"to_entity_key,omitempty"`
	Direction        string               `json:"direction,omitempty"`
	TargetEntity     *models.TargetEntity `json:"target_entity,omitempty"`
	Timestamp        time.Time            `json:"timestamp"`
}

// NewEntityEvent builds the event for one registered entity.
func NewEntityEvent(runID string, entity *models.Entity, at time.Time) (*EntityEvent, error) {
	data, err := json.Marshal(entity.Properties)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties of '%s': %w", entity.Key, err)
	}
	return &EntityEvent{
		EventType:  EventEntityCollected,
		RunID:      runID,
		EntityKey:  entity.Key,
		EntityType: entity.Type,
		Class:      entity.Class,
		Data:       data,
		Tags:       entity.Tags,
		Timestamp:  at,
	}, nil
}

// NewRelationshipEvent builds the event for one registered relationship.
func NewRelationshipEvent(runID string, rel *models.Relationship, at time.Time) *RelationshipEvent {
	event := &RelationshipEvent{
		EventType:        EventRelationshipCollected,
		RunID:            runID,
		RelationshipKey:  rel.Key,
		RelationshipType: rel.Type,
		Class:            rel.Class,
		FromEntityKey:    rel.SourceKey(),
		ToEntityKey:      rel.ToKey,
		Timestamp:        at,
	}
	if rel.IsMapped() {
		target := rel.Mapping.TargetEntity
		event.TargetEntity = &target
		event.Direction = string(rel.Mapping.Direction)
	}
	return event
}

// PublishRun publishes one event per entity, then one per relationship, keyed by entity or
// relationship key so updates to the same item stay on one partition.
func (p *Producer) PublishRun(ctx context.Context, runID string, entities []*models.Entity, relationships []*models.Relationship) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishRun",
		attribute.String("run_id", runID),
		attribute.String("topic", p.topic),
	)

	err := p.publishRun(ctx, runID, entities, relationships)
	tracing.EndSpan(span, err)
	return err
}

func (p *Producer) publishRun(ctx context.Context, runID string, entities []*models.Entity, relationships []*models.Relationship) error {
	now := time.Now().UTC()
	messages := make([]kafka.Message, 0, len(entities)+len(relationships))

	for _, entity := range entities {
		event, err := NewEntityEvent(runID, entity, now)
		if err != nil {
			return err
		}
		msg, err := p.message(event.EntityKey, event, []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "entity_type", Value: []byte(event.EntityType)},
			{Key: "schema_version", Value: []byte(schemaVersion)},
		})
		if err != nil {
			return err
		}
		messages = append(messages, msg)
	}

	for _, rel := range relationships {
		event := NewRelationshipEvent(runID, rel, now)
		msg, err := p.message(event.RelationshipKey, event, []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "relationship_type", Value: []byte(event.RelationshipType)},
			{Key: "schema_version", Value: []byte(schemaVersion)},
		})
		if err != nil {
			return err
		}
		messages = append(messages, msg)
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id": runID,
		"topic":  p.topic,
	})

	for start := 0; start < len(messages); start += p.batchSize {
		end := min(start+p.batchSize, len(messages))

		begin := time.Now()
		if err := p.writer.WriteMessages(ctx, messages[start:end]...); err != nil {
			metrics.RecordKafkaPublish(p.topic, "error", time.Since(begin).Seconds())
			log.WithError(err).WithField("batch_size", end-start).Error("Failed to publish events batch")
			return fmt.Errorf("failed to publish events: %w", err)
		}
		metrics.RecordKafkaPublish(p.topic, "success", time.Since(begin).Seconds())
	}

	log.WithField("messages", len(messages)).Info("Published run events")
	return nil
}

func (p *Producer) message(key string, event any, headers []kafka.Header) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event '%s': %w", key, err)
	}
	return kafka.Message{
		Topic:   p.topic,
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
	}, nil
}
