package queue

import (
	"github.com/OFFIS-RIT/kgalign/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// DefaultMaxRetries is how often a failing message is sent through the retry
// queue before it is parked in the dead-letter queue.
const DefaultMaxRetries = 10

const retriesHeader = "x-retries"

// Retries reads the retry counter of a delivery. Integer widths differ
// depending on who wrote the header, so all of them are accepted.
func Retries(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

// HandleProcessingError republishes a failed delivery to the retry queue of
// queueName, or to its dead-letter queue once maxRetries is reached, and acks
// the original. If republishing fails the delivery is requeued instead.
func HandleProcessingError(ch Channel, msg amqp091.Delivery, queueName string, maxRetries int) {
	retries := Retries(msg.Headers)

	target := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if retries >= maxRetries {
		target = queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", target, "retries", retries)
	} else {
		headers[retriesHeader] = int32(retries + 1)
	}

	pubErr := ch.Publish(
		"",
		target,
		false,
		false,
		amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to republish message", "queue", target, "err", pubErr)
		if err := msg.Nack(false, true); err != nil {
			logger.Error("Failed to nack message", "err", err)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("Failed to ack message", "err", err)
	}
}
