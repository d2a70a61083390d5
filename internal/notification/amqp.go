package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultQueue = "booking.events"

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpDialer func(url string) (amqpChannel, func() error, error)

func dialAMQP(url string) (amqpChannel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

// AMQPPublisher forwards booking events to a durable RabbitMQ queue.
// Publish only enqueues; Run delivers and reconnects after broker failures.
// Events that do not fit in the buffer are dropped and logged.
type AMQPPublisher struct {
	url   string
	queue string
	dial  amqpDialer
	buf   chan BookingEvent

	mu        sync.Mutex
	ch        amqpChannel
	closeConn func() error
}

func NewAMQPPublisher(url, queue string, buffer int) *AMQPPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &AMQPPublisher{
		url:   url,
		queue: queue,
		dial:  dialAMQP,
		buf:   make(chan BookingEvent, buffer),
	}
}

func (p *AMQPPublisher) Publish(_ context.Context, ev BookingEvent) {
	select {
	case p.buf <- ev:
	default:
		log.Printf("level=warn msg=amqp_buffer_full queue=%s booking_id=%s event=%s", p.queue, ev.BookingID, ev.Type)
	}
}

// Run delivers queued events until ctx is done.
func (p *AMQPPublisher) Run(ctx context.Context) {
	defer p.close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.buf:
			if err := p.deliver(ctx, ev); err != nil {
				log.Printf("level=error msg=amqp_publish_failed queue=%s booking_id=%s event=%s err=%v", p.queue, ev.BookingID, ev.Type, err)
			}
		}
	}
}

func (p *AMQPPublisher) deliver(ctx context.Context, ev BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		MessageId:    fmt.Sprintf("%s:%d", ev.BookingID, ev.Version),
		Body:         body,
	}

	// one reconnect attempt per event
	for attempt := 0; attempt < 2; attempt++ {
		ch, err := p.channel()
		if err != nil {
			return err
		}
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = ch.PublishWithContext(pctx, "", p.queue, false, false, msg)
		cancel()
		if err == nil {
			return nil
		}
		p.close()
		if attempt == 1 {
			return err
		}
	}
	return nil
}

func (p *AMQPPublisher) channel() (amqpChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		return p.ch, nil
	}
	ch, closeConn, err := p.dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		if closeConn != nil {
			_ = closeConn()
		}
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.ch = ch
	p.closeConn = closeConn
	return ch, nil
}

func (p *AMQPPublisher) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closeConn != nil {
		_ = p.closeConn()
	}
	p.ch = nil
	p.closeConn = nil
}
