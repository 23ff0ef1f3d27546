package events

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewBus creates the in-process pub/sub that session contexts listen on.
func NewBus(logger *slog.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NewSlogLogger(logger))
}

// NewKafkaPublisher creates the audit stream publisher.
func NewKafkaPublisher(brokers []string, logger *slog.Logger) (message.Publisher, error) {
	return kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, watermill.NewSlogLogger(logger))
}

// NewPublisher builds the service publisher: the local bus, plus a redacted
// Kafka audit stream when brokers are configured.
func NewPublisher(bus message.Publisher, kafkaBrokers []string, kafkaTopic string, logger *slog.Logger) (EventPublisher, error) {
	local := NewWatermillPublisher(bus, logger)
	if len(kafkaBrokers) == 0 {
		return local, nil
	}

	kafkaPublisher, err := NewKafkaPublisher(kafkaBrokers, logger)
	if err != nil {
		return nil, err
	}
	audit := NewAuditPublisher(NewWatermillPublisher(kafkaPublisher, logger), kafkaTopic)
	return NewMultiPublisher(local, audit), nil
}
