package badge

import (
	"context"
	"encoding/json"

	"github.com/egfanboy/badge-builder/internal/rabbitmq"
	"github.com/egfanboy/badge-builder/pkg/types"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

func handleAttachmentDeletedMessage(service BadgeApi) rabbitmq.ConsumerHandler {
	return func(ctx context.Context, msg amqp091.Delivery) {
		var deletedMsg types.AttachmentDeletedMessage

		err := json.Unmarshal(msg.Body, &deletedMsg)
		if err != nil {
			log.Err(err).Msgf("Invalid %s message", types.TopicAttachmentDeleted)
			return
		}

		log.Info().Msgf("Attachment %d was deleted", deletedMsg.AttachmentId)

		err = service.HandleAttachmentDeleted(ctx, deletedMsg.AttachmentId)
		if err != nil {
			log.Err(err).Msgf("Could not clean up after attachment %d", deletedMsg.AttachmentId)
		}
	}
}

// RegisterConsumers must run before rabbitmq.Setup binds the queue.
func RegisterConsumers(service BadgeApi) {
	rabbitmq.RegisterConsumer(handleAttachmentDeletedMessage(service), types.TopicAttachmentDeleted)
}
