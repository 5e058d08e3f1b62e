package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/rabbitmq/amqp091-go"
)

type ConsumerHandler func(ctx context.Context, msg amqp091.Delivery)

type consumerMapping struct {
	Mu   sync.Mutex
	Data map[string]ConsumerHandler
}

var cm = &consumerMapping{Mu: sync.Mutex{}, Data: map[string]ConsumerHandler{}}

func RegisterConsumer(h ConsumerHandler, routingKey string) {
	cm.Mu.Lock()
	defer cm.Mu.Unlock()
	cm.Data[routingKey] = h
}

func handlerFor(routingKey string) (ConsumerHandler, bool) {
	cm.Mu.Lock()
	defer cm.Mu.Unlock()

	h, ok := cm.Data[routingKey]

	return h, ok
}

func initializeConsumers(ctx context.Context, channel *amqp091.Channel, instanceName string) error {
	cm.Mu.Lock()
	routingKeys := make([]string, 0, len(cm.Data))
	for routingKey := range cm.Data {
		routingKeys = append(routingKeys, routingKey)
	}
	cm.Mu.Unlock()

	if len(routingKeys) == 0 {
		return nil
	}

	q, err := channel.QueueDeclare(
		fmt.Sprintf("badge-builder-%s", instanceName), // name
		true,  // durable
		false, // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	for _, routingKey := range routingKeys {
		log.Debug().Msgf("Setting up consumer for routing key %s", routingKey)

		err = channel.QueueBind(
			q.Name,       // queue name
			routingKey,   // routing key
			ExchangeName, // exchange
			false,
			nil)
		if err != nil {
			return err
		}
	}

	msgs, err := channel.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto ack
		false,  // exclusive
		false,  // no local
		false,  // no wait
		nil,    // args
	)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			msg.Ack(false)

			log.Debug().Msgf("Handling message for routing key %s", msg.RoutingKey)

			if handler, ok := handlerFor(msg.RoutingKey); !ok {
				log.Debug().Msgf("No handler registered for routing key %s. Message acknowledge but no action taken", msg.RoutingKey)
			} else {
				go handler(ctx, msg)
			}
		}
	}()

	return nil
}
