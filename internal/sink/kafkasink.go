package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog"

	"github.com/decoyhq/agenttrap/internal/analyzer"
)

// KafkaConfig holds configuration for the Kafka producer.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	Acks        string
	Compression string

	// SASL config
	SASLMechanism string
	SASLUser      string
	SASLPassword  string

	// TLS config
	TLSCAPath     string
	TLSSkipVerify bool
}

// KafkaSink fans detection records out to Kafka, keyed by session id so a
// session's records land on one partition in order.
type KafkaSink struct {
	config   KafkaConfig
	producer *kafka.Producer
	log      zerolog.Logger
}

// NewKafkaSinkFromEnv creates a KafkaSink from environment variables.
func NewKafkaSinkFromEnv(log zerolog.Logger) *KafkaSink {
	brokersStr := os.Getenv("KAFKA_BROKERS")
	if brokersStr == "" {
		brokersStr = "localhost:9092"
	}
	brokers := strings.Split(brokersStr, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	config := KafkaConfig{
		Brokers:       brokers,
		Topic:         getEnvOr("KAFKA_TOPIC", "agenttrap.detections"),
		Acks:          getEnvOr("KAFKA_ACKS", "all"),
		Compression:   getEnvOr("KAFKA_COMPRESSION", ""),
		SASLMechanism: os.Getenv("KAFKA_SASL_MECHANISM"),
		SASLUser:      os.Getenv("KAFKA_SASL_USER"),
		SASLPassword:  os.Getenv("KAFKA_SASL_PASSWORD"),
		TLSCAPath:     os.Getenv("KAFKA_TLS_CA"),
		TLSSkipVerify: getBoolEnv("KAFKA_TLS_SKIP_VERIFY", false),
	}

	return &KafkaSink{config: config, log: log.With().Str("sink", "kafka").Logger()}
}

// NewKafkaSink creates a KafkaSink with explicit configuration.
func NewKafkaSink(brokers []string, topic string, log zerolog.Logger) *KafkaSink {
	return &KafkaSink{
		config: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
			Acks:    "all",
		},
		log: log.With().Str("sink", "kafka").Logger(),
	}
}

func (s *KafkaSink) Start(ctx context.Context) error {
	configMap := kafka.ConfigMap{
		"bootstrap.servers": strings.Join(s.config.Brokers, ","),
		"acks":              s.config.Acks,
		"retries":           10,
		"retry.backoff.ms":  100,
		"batch.size":        16384,
		"linger.ms":         10,
	}

	if s.config.Compression != "" {
		configMap["compression.type"] = s.config.Compression
	}

	if s.config.SASLMechanism != "" {
		configMap["security.protocol"] = "SASL_SSL"
		configMap["sasl.mechanism"] = s.config.SASLMechanism
		if s.config.SASLUser != "" {
			configMap["sasl.username"] = s.config.SASLUser
		}
		if s.config.SASLPassword != "" {
			configMap["sasl.password"] = s.config.SASLPassword
		}
	}

	if s.config.TLSCAPath != "" {
		if s.config.SASLMechanism == "" {
			configMap["security.protocol"] = "SSL"
		}
		configMap["ssl.ca.location"] = s.config.TLSCAPath
	}
	if s.config.TLSSkipVerify {
		configMap["ssl.endpoint.identification.algorithm"] = "none"
	}

	producer, err := kafka.NewProducer(&configMap)
	if err != nil {
		return fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	s.producer = producer

	// Drain delivery reports so the internal queue never fills up.
	go func() {
		for e := range producer.Events() {
			if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
				s.log.Error().Err(m.TopicPartition.Error).Msg("delivery failed")
			}
		}
	}()

	return nil
}

func (s *KafkaSink) Enqueue(rec analyzer.RequestRecord) error {
	if s.producer == nil {
		return fmt.Errorf("kafka sink not started")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return s.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.config.Topic, Partition: kafka.PartitionAny},
		Key:            []byte(rec.SessionID),
		Value:          payload,
	}, nil)
}

func (s *KafkaSink) Close() error {
	if s.producer == nil {
		return nil
	}
	s.producer.Flush(5000)
	s.producer.Close()
	return nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func getEnvOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return def
}
