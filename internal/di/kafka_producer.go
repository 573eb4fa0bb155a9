package di

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
)

type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaProducer(broker, topic string) *KafkaProducer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      []string{broker},
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: int(kafka.RequireOne),
	})

	return &KafkaProducer{writer: writer, topic: topic}
}

// PublishAppointmentEvent writes one lifecycle event, keyed by appointment
// id so events for the same appointment stay ordered within a partition.
func (kp *KafkaProducer) PublishAppointmentEvent(ctx context.Context, event domain.AppointmentEvent) error {
	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AppointmentID),
		Value: message,
	}

	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	log.Printf("Message delivered to topic %s\n", kp.topic)
	return nil
}

func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}

// EnsureTopicExists creates the lifecycle topic if the broker does not have
// it yet. Startup fails loudly on an unreachable broker.
func EnsureTopicExists(broker, topic string) {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		log.Fatalf("Failed to connect to Kafka broker: %v", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		log.Fatalf("Failed to get Kafka controller: %v", err)
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		log.Fatalf("Failed to connect to Kafka controller: %v", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		log.Fatalf("Failed to create topic %s: %v", topic, err)
	}
}
