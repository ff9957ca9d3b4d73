package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/streadway/amqp"

	"github.com/Dosada05/tournament-live/models"
)

const defaultFeedBuffer = 1024

// AppliedEventMessage - тело сообщения для каждого применённого события.
type AppliedEventMessage struct {
	Event models.MatchEvent     `json:"event"`
	State models.MatchStateView `json:"state"`
}

type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher отправляет применённые события в topic exchange. PublishApplied
// не блокирует воркер матча: при полном буфере событие отбрасывается.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	queue    chan AppliedEventMessage
	logger   *slog.Logger
	done     chan struct{}
}

func NewAMQPPublisher(url, exchange string, buffer int, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 30 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	p := newAMQPPublisher(ch, exchange, buffer, logger)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch amqpChannel, exchange string, buffer int, logger *slog.Logger) *AMQPPublisher {
	if buffer <= 0 {
		buffer = defaultFeedBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{
		channel:  ch,
		exchange: exchange,
		queue:    make(chan AppliedEventMessage, buffer),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// RoutingKey имеет вид match.<id>.<type>, например match.12.goal.
func RoutingKey(ev models.MatchEvent) string {
	return fmt.Sprintf("match.%d.%s", ev.MatchID, strings.ToLower(string(ev.Type)))
}

func (p *AMQPPublisher) PublishApplied(ev models.MatchEvent, view models.MatchStateView) {
	select {
	case p.queue <- AppliedEventMessage{Event: ev, State: view}:
	default:
		p.logger.Warn("AMQP feed buffer full, applied event dropped",
			slog.Int("match_id", ev.MatchID), slog.String("event_id", ev.ID), slog.String("type", string(ev.Type)))
	}
}

// Run публикует события из очереди до отмены ctx. Оставшиеся в очереди
// события публикуются до выхода из Run.
func (p *AMQPPublisher) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case msg := <-p.queue:
			p.publish(msg)
		case <-ctx.Done():
			for {
				select {
				case msg := <-p.queue:
					p.publish(msg)
				default:
					return
				}
			}
		}
	}
}

func (p *AMQPPublisher) publish(msg AppliedEventMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("Failed to encode applied event", slog.String("event_id", msg.Event.ID), slog.Any("error", err))
		return
	}
	err = p.channel.Publish(p.exchange, RoutingKey(msg.Event), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.Event.ID,
		Timestamp:    msg.Event.AcceptedAt,
		Body:         body,
	})
	if err != nil {
		p.logger.Error("Failed to publish applied event", slog.Int("match_id", msg.Event.MatchID), slog.String("event_id", msg.Event.ID), slog.Any("error", err))
	}
}

// Close дожидается опустошения очереди и закрывает канал и соединение.
func (p *AMQPPublisher) Close(ctx context.Context) error {
	select {
	case <-p.done:
	case <-ctx.Done():
	}
	if err := p.channel.Close(); err != nil {
		return fmt.Errorf("failed to close AMQP channel: %w", err)
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
