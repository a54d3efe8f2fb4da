package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-publisher/internal/models"
)

const (
	RoutingKeyDatasetPublished  = "dataset.published"
	RoutingKeyDatasetCatalogued = "dataset.catalogued"
)

// RecordFormatter renders the catalog record carried in published events
type RecordFormatter interface {
	FormatToDCAT(ds *models.Dataset) *models.DCATDataset
}

// RabbitMQPublisher handles publishing dataset events to RabbitMQ
type RabbitMQPublisher struct {
	mu           sync.RWMutex
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	url          string
	formatter    RecordFormatter
	done         chan struct{}
	closeOnce    sync.Once
}

const reconnectDelay = 5 * time.Second

// NewRabbitMQPublisher creates a new RabbitMQ publisher
func NewRabbitMQPublisher(url, exchangeName string, formatter RecordFormatter) (*RabbitMQPublisher, error) {
	conn, channel, err := dialExchange(url, exchangeName)
	if err != nil {
		return nil, err
	}

	publisher := &RabbitMQPublisher{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		url:          url,
		formatter:    formatter,
		done:         make(chan struct{}),
	}

	go publisher.handleReconnect(conn.NotifyClose(make(chan *amqp.Error, 1)))

	log.Info().
		Str("exchange", exchangeName).
		Msg("RabbitMQ publisher initialized")

	return publisher, nil
}

// dialExchange opens a connection and channel and declares the topic exchange
func dialExchange(url, exchangeName string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return conn, channel, nil
}

// PublishedEvent builds the event announcing a published dataset
func PublishedEvent(ds *models.Dataset, formatter RecordFormatter) models.DatasetPublishedEvent {
	event := models.DatasetPublishedEvent{
		DatasetID:      ds.ID,
		DatasetUUID:    ds.UUID,
		OrganisationID: ds.OrganisationID,
		Record:         formatter.FormatToDCAT(ds),
	}
	if ds.PublishedAt != nil {
		event.PublishedAt = *ds.PublishedAt
	}
	return event
}

// NotifyPublished publishes a dataset.published event
func (p *RabbitMQPublisher) NotifyPublished(ctx context.Context, ds *models.Dataset) error {
	return p.publish(ctx, RoutingKeyDatasetPublished, PublishedEvent(ds, p.formatter))
}

// publish publishes a message to the exchange with the given routing key
func (p *RabbitMQPublisher) publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.RLock()
	channel := p.channel
	p.mu.RUnlock()

	err = channel.PublishWithContext(
		ctx,
		p.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			MessageId:    fmt.Sprintf("%d", time.Now().UnixNano()),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	log.Info().
		Str("routing_key", routingKey).
		Str("exchange", p.exchangeName).
		Int("body_size", len(body)).
		Msg("Message published to RabbitMQ")

	return nil
}

// handleReconnect keeps the publisher connected across broker outages
func (p *RabbitMQPublisher) handleReconnect(closeChan <-chan *amqp.Error) {
	r := reconnector{
		dial:  p.redial,
		delay: reconnectDelay,
		done:  p.done,
	}
	r.run(closeChan)
}

// redial replaces the connection and channel and watches the new connection
func (p *RabbitMQPublisher) redial() (<-chan *amqp.Error, error) {
	conn, channel, err := dialExchange(p.url, p.exchangeName)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = channel
	p.mu.Unlock()

	log.Info().Msg("Successfully reconnected to RabbitMQ")
	return conn.NotifyClose(make(chan *amqp.Error, 1)), nil
}

// reconnector waits on the close notifications of the current connection
// and dials again after every loss. It returns when a connection closes
// without an error or done is closed.
type reconnector struct {
	dial  func() (<-chan *amqp.Error, error)
	delay time.Duration
	done  <-chan struct{}
}

func (r reconnector) run(closeChan <-chan *amqp.Error) {
	for {
		var (
			closeErr *amqp.Error
			ok       bool
		)
		select {
		case <-r.done:
			return
		case closeErr, ok = <-closeChan:
		}
		if !ok {
			return
		}
		if closeErr == nil {
			continue
		}
		log.Error().
			Err(closeErr).
			Msg("RabbitMQ connection closed, attempting to reconnect...")

		closeChan, ok = r.redial()
		if !ok {
			return
		}
	}
}

// redial retries until a dial succeeds or done is closed
func (r reconnector) redial() (<-chan *amqp.Error, bool) {
	for {
		select {
		case <-r.done:
			return nil, false
		case <-time.After(r.delay):
		}

		closeChan, err := r.dial()
		if err != nil {
			log.Error().Err(err).Msg("Failed to reconnect to RabbitMQ")
			continue
		}
		return closeChan, true
	}
}

// Close closes the RabbitMQ connection
func (p *RabbitMQPublisher) Close() error {
	p.closeOnce.Do(func() { close(p.done) })

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close RabbitMQ channel")
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close RabbitMQ connection")
			return err
		}
	}
	log.Info().Msg("RabbitMQ publisher closed")
	return nil
}

// HealthCheck verifies the RabbitMQ connection
func (p *RabbitMQPublisher) HealthCheck() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("RabbitMQ connection is closed")
	}
	if p.channel == nil {
		return fmt.Errorf("RabbitMQ channel is nil")
	}
	return nil
}
