package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-publisher/internal/models"
	"github.com/hacknation/dataset-publisher/internal/outcome"
)

const (
	publishedQueue = "q.catalog.published"

	// RoutingKeyDatasetUncatalogued carries published events the catalog
	// never confirmed, dead-lettered from the published queue
	RoutingKeyDatasetUncatalogued = "dataset.uncatalogued"

	defaultRetryDelay = 30 * time.Second
)

// PackageLookup finds the catalog record of a dataset
type PackageLookup interface {
	Show(ctx context.Context, datasetUUID string) outcome.Result[models.SyncReceipt]
}

// CatalogWorker confirms that published datasets reached the catalog and
// announces them as catalogued
type CatalogWorker struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	lookup       PackageLookup
	announce     func(ctx context.Context, event *models.DatasetCataloguedEvent) error
	retryDelay   time.Duration
}

// NewCatalogWorker connects to RabbitMQ and declares the published queue
func NewCatalogWorker(url, exchangeName string, lookup PackageLookup) (*CatalogWorker, error) {
	conn, channel, err := dialExchange(url, exchangeName)
	if err != nil {
		return nil, err
	}

	// one message at a time
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deadLetter := amqp.Table{
		"x-dead-letter-exchange":    exchangeName,
		"x-dead-letter-routing-key": RoutingKeyDatasetUncatalogued,
	}
	if _, err := channel.QueueDeclare(publishedQueue, true, false, false, false, deadLetter); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := channel.QueueBind(publishedQueue, RoutingKeyDatasetPublished, exchangeName, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue to %s: %w", RoutingKeyDatasetPublished, err)
	}

	log.Info().
		Str("exchange", exchangeName).
		Str("queue", publishedQueue).
		Msg("Catalog worker initialized")

	w := &CatalogWorker{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		lookup:       lookup,
		retryDelay:   defaultRetryDelay,
	}
	w.announce = w.publishCatalogued
	return w, nil
}

// Run consumes published events until ctx is cancelled
func (w *CatalogWorker) Run(ctx context.Context) error {
	msgs, err := w.channel.Consume(
		publishedQueue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Catalog worker stopping")
			return ctx.Err()

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			settle(msg, w.handleDelivery(ctx, msg))
		}
	}
}

// handleDelivery decides the fate of one published event. A dataset the
// catalog does not confirm gets one delayed retry, then it is dead-lettered.
func (w *CatalogWorker) handleDelivery(ctx context.Context, msg amqp.Delivery) deliveryAction {
	event, err := w.process(ctx, msg.Body)
	if err != nil {
		if msg.Redelivered {
			log.Error().Err(err).Str("message_id", msg.MessageId).Msg("Catalog never confirmed dataset, dead-lettering")
			return drop
		}
		log.Warn().Err(err).Str("message_id", msg.MessageId).Dur("retry_in", w.retryDelay).Msg("Catalog record not available yet")
		w.wait(ctx)
		return requeue
	}
	if event == nil {
		return ack
	}

	if err := w.announce(ctx, event); err != nil {
		log.Error().Err(err).Str("uuid", event.DatasetUUID).Msg("Failed to publish catalogued event")
		return requeue
	}
	return ack
}

func (w *CatalogWorker) wait(ctx context.Context) {
	t := time.NewTimer(w.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// process checks the catalog for the dataset in a published event. A nil
// acknowledgement with a nil error means the message is dropped.
func (w *CatalogWorker) process(ctx context.Context, body []byte) (*models.DatasetCataloguedEvent, error) {
	var event models.DatasetPublishedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal published event")
		return nil, nil
	}
	if event.DatasetUUID == "" {
		log.Warn().Msg("Published event missing dataset_uuid")
		return nil, nil
	}

	res := w.lookup.Show(ctx, event.DatasetUUID)
	receipt, ok := res.Get()
	if !ok {
		return nil, fmt.Errorf("catalog record for %s unavailable: %s", event.DatasetUUID, res.Reason())
	}

	return &models.DatasetCataloguedEvent{
		DatasetUUID: event.DatasetUUID,
		CatalogID:   receipt.CatalogID,
		Timestamp:   time.Now(),
	}, nil
}

func (w *CatalogWorker) publishCatalogued(ctx context.Context, event *models.DatasetCataloguedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = w.channel.PublishWithContext(
		ctx,
		w.exchangeName,
		RoutingKeyDatasetCatalogued,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    event.DatasetUUID,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Info().
		Str("uuid", event.DatasetUUID).
		Str("catalog_id", event.CatalogID).
		Msg("Published dataset.catalogued event")
	return nil
}

// Close closes the worker connection
func (w *CatalogWorker) Close() error {
	if w.channel != nil {
		if err := w.channel.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close channel")
		}
	}
	if w.conn != nil {
		if err := w.conn.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close connection")
			return err
		}
	}
	log.Info().Msg("Catalog worker closed")
	return nil
}
