package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/egfanboy/badge-builder/internal/app"
	"github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the topic exchange shared with the CMS.
const ExchangeName = "cms-exch"

type connectionEnv struct {
	Connection *amqp091.Connection
	Channel    *amqp091.Channel
}

const (
	connectionString = "amqp://%s:%s@%s:%d/"
)

var (
	env = connectionEnv{}

	errNotConnected = errors.New("rabbitmq channel was never initialized")
)

func Setup(ctx context.Context, cfg app.RabbitConfig, instanceName string) error {
	var err error
	env.Connection, err = amqp091.Dial(fmt.Sprintf(connectionString, cfg.Username, cfg.Password, cfg.Address, cfg.Port))
	if err != nil {
		return err
	}

	env.Channel, err = env.Connection.Channel()
	if err != nil {
		return err
	}

	err = env.Channel.ExchangeDeclare(
		ExchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)

	if err != nil {
		return err
	}

	return initializeConsumers(ctx, env.Channel, instanceName)
}

func PublishMessage(ctx context.Context, routingKey string, messageBody interface{}) error {
	if env.Channel == nil {
		return errNotConnected
	}

	body, err := json.Marshal(messageBody)
	if err != nil {
		return err
	}

	return env.Channel.PublishWithContext(ctx, ExchangeName, routingKey, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Publisher exposes PublishMessage to services that take a publisher dependency.
type Publisher struct{}

func (Publisher) PublishMessage(ctx context.Context, routingKey string, messageBody interface{}) error {
	return PublishMessage(ctx, routingKey, messageBody)
}

func Cleanup() {
	if env.Channel != nil {
		env.Channel.Close()
	}

	if env.Connection != nil {
		env.Connection.Close()
	}
}
