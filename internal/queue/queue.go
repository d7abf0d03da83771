// Package queue sends stock and order changes to RabbitMQ and reads new stock
// entries sent by suppliers.
package queue

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/bunnyq"
	"github.com/sksmith/go-spares/internal/core/order"
	"github.com/sksmith/go-spares/internal/core/stock"
	"github.com/streadway/amqp"
)

type publishFunc func(ctx context.Context, exchange string, body []byte) error

func bunnyPublisher(bq *bunnyq.BunnyQ) publishFunc {
	return func(ctx context.Context, exchange string, body []byte) error {
		return bq.Publish(ctx, exchange, body)
	}
}

type sparesQueue struct {
	publish       publishFunc
	stockExchange string
	orderExchange string
}

// Publisher implements both stock.Queue and order.Queue.
type Publisher interface {
	stock.Queue
	order.Queue
}

func New(bq *bunnyq.BunnyQ, stockExchange, orderExchange string) Publisher {
	return &sparesQueue{publish: bunnyPublisher(bq), stockExchange: stockExchange, orderExchange: orderExchange}
}

func (q *sparesQueue) PublishStock(ctx context.Context, record stock.Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return errors.WithMessage(err, "failed to serialize message for queue")
	}
	if err = q.publish(ctx, q.stockExchange, body); err != nil {
		return errors.WithMessage(err, "failed to send stock update to queue")
	}
	return nil
}

func (q *sparesQueue) PublishOrder(ctx context.Context, o order.Order) error {
	body, err := json.Marshal(o)
	if err != nil {
		return errors.WithMessage(err, "error marshalling order to send to queue")
	}
	if err = q.publish(ctx, q.orderExchange, body); err != nil {
		return errors.WithMessage(err, "error publishing order")
	}
	return nil
}

type IntakeHandler interface {
	AddStock(ctx context.Context, record stock.Record) (stock.Record, error)
}

// IntakeQueue consumes stock entries from suppliers. Entries that cannot be
// read or saved are forwarded to the dead letter exchange untouched.
type IntakeQueue struct {
	stream      func(ctx context.Context, queue string, handle func(amqp.Delivery))
	publish     publishFunc
	queue       string
	dltExchange string
}

func NewIntakeQueue(bq *bunnyq.BunnyQ, intakeQueue, dltExchange string) *IntakeQueue {
	return &IntakeQueue{
		stream: func(ctx context.Context, queue string, handle func(amqp.Delivery)) {
			bq.Stream(ctx, queue, handle, bunnyq.StreamOpAutoAck)
		},
		publish:     bunnyPublisher(bq),
		queue:       intakeQueue,
		dltExchange: dltExchange,
	}
}

func (q *IntakeQueue) ConsumeStock(ctx context.Context, handler IntakeHandler) {
	q.stream(ctx, q.queue, func(delivery amqp.Delivery) {
		q.handle(ctx, handler, delivery.Body)
	})
}

func (q *IntakeQueue) handle(ctx context.Context, handler IntakeHandler, body []byte) {
	record := stock.Record{}
	if err := json.Unmarshal(body, &record); err != nil {
		log.Error().Err(err).Msg("error unmarshalling stock entry, writing to dlt")
		q.sendToDlt(ctx, body)
		return
	}

	if _, err := handler.AddStock(ctx, record); err != nil {
		log.Error().Err(err).Int64("id", record.ID).Msg("error handling stock entry, writing to dlt")
		q.sendToDlt(ctx, body)
	}
}

func (q *IntakeQueue) sendToDlt(ctx context.Context, data []byte) {
	if err := q.publish(ctx, q.dltExchange, data); err != nil {
		log.Error().Err(err).Msg("error writing to dlt")
	}
}

type discardQueue struct{}

// NewDiscardQueue returns a Publisher that only logs, for running without a
// broker.
func NewDiscardQueue() Publisher {
	return discardQueue{}
}

func (discardQueue) PublishStock(_ context.Context, record stock.Record) error {
	log.Debug().Int64("id", record.ID).Int64("spares", record.Spares).Msg("discarding stock update")
	return nil
}

func (discardQueue) PublishOrder(_ context.Context, o order.Order) error {
	log.Debug().Int64("id", o.ID).Str("status", string(o.Status)).Msg("discarding order update")
	return nil
}
