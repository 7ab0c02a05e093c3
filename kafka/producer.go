package kafka

import (
	"encoding/json"
	"fmt"

	"campaignbot/types"

	"github.com/IBM/sarama"
)

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers []string
	Topic   string
}

// Producer publishes one outcome event per generation unit so
// downstream services (analytics, approval dashboards) can follow the
// run without polling the checkpoint file.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer creates a new Kafka producer
func NewProducer(config ProducerConfig) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true

	client, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	return &Producer{
		producer: client,
		topic:    config.Topic,
	}, nil
}

// PublishOutcome sends one unit outcome event, keyed by campaign id so
// a campaign's events stay ordered within a partition.
func (p *Producer) PublishOutcome(outcome types.UnitOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome event: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(outcome.Unit.Campaign.ID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("publish outcome event: %w", err)
	}
	return nil
}

// Close shuts down the underlying producer
func (p *Producer) Close() error {
	return p.producer.Close()
}
