package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-publisher/internal/models"
)

const catalogueQueue = "q.publisher.catalogued"

// CatalogStore is the part of the dataset store the consumer writes to
type CatalogStore interface {
	GetByUUID(ctx context.Context, uuid string) (*models.Dataset, error)
	Save(ctx context.Context, ds *models.Dataset) error
}

type deliveryAction int

const (
	ack deliveryAction = iota
	drop
	requeue
)

// RabbitMQConsumer records catalog ids acknowledged by the downstream catalog
type RabbitMQConsumer struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	store        CatalogStore
	exchangeName string
}

func NewRabbitMQConsumer(url, exchangeName string, store CatalogStore) (*RabbitMQConsumer, error) {
	conn, channel, err := dialExchange(url, exchangeName)
	if err != nil {
		return nil, err
	}

	return &RabbitMQConsumer{
		conn:         conn,
		channel:      channel,
		store:        store,
		exchangeName: exchangeName,
	}, nil
}

func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	q, err := c.channel.QueueDeclare(
		catalogueQueue, // name
		true,           // durable
		false,          // delete when unused
		false,          // exclusive
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		q.Name,
		RoutingKeyDatasetCatalogued,
		c.exchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue to %s: %w", RoutingKeyDatasetCatalogued, err)
	}

	msgs, err := c.channel.Consume(
		q.Name, // queue
		"",     // consumer tag
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go c.consumeLoop(ctx, msgs)

	log.Info().Str("queue", q.Name).Msg("Catalogue acknowledgement consumer started")
	return nil
}

func (c *RabbitMQConsumer) consumeLoop(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Catalogue acknowledgement consumer stopping")
			return
		case d, ok := <-msgs:
			if !ok {
				log.Warn().Msg("Catalogue acknowledgement delivery channel closed")
				return
			}
			settle(d, c.handle(ctx, d.Body))
		}
	}
}

// settle acks, drops or requeues a delivery
func settle(d amqp.Delivery, action deliveryAction) {
	var err error
	switch action {
	case ack:
		err = d.Ack(false)
	case drop:
		err = d.Nack(false, false)
	case requeue:
		err = d.Nack(false, true)
	}
	if err != nil {
		log.Error().Err(err).Uint64("delivery_tag", d.DeliveryTag).Msg("Failed to settle message")
	}
}

// handle applies one dataset.catalogued message. Redelivered messages are
// harmless: a catalog id that is already recorded is not written again.
func (c *RabbitMQConsumer) handle(ctx context.Context, body []byte) deliveryAction {
	var event models.DatasetCataloguedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal catalogued message")
		return drop
	}

	if event.DatasetUUID == "" || event.CatalogID == "" {
		log.Warn().Msg("Catalogued message missing dataset_uuid or catalog_id")
		return ack
	}

	ds, err := c.store.GetByUUID(ctx, event.DatasetUUID)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn().Str("uuid", event.DatasetUUID).Msg("Dataset not found for catalogue update")
		return ack
	}
	if err != nil {
		log.Error().Err(err).Str("uuid", event.DatasetUUID).Msg("Failed to load dataset")
		return requeue
	}

	if ds.CatalogID == event.CatalogID {
		return ack
	}

	ds.CatalogID = event.CatalogID
	if err := c.store.Save(ctx, ds); err != nil {
		log.Error().Err(err).Str("uuid", event.DatasetUUID).Msg("Failed to record catalog id")
		return requeue
	}

	log.Info().
		Str("uuid", event.DatasetUUID).
		Str("catalog_id", event.CatalogID).
		Msg("Recorded catalog id")

	return ack
}

func (c *RabbitMQConsumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
