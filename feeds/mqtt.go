package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/Dosada05/tournament-live/models"
)

const (
	qosAtLeastOnce = 1
	reportTimeout  = 5 * time.Second
)

var ErrTopicMismatch = errors.New("topic does not match subscription")

// TrackingReporter принимает замеры владения и передач для матча.
type TrackingReporter interface {
	ReportTracking(ctx context.Context, matchID int, sample models.TrackingSample) (models.TeamStatSnapshot, error)
}

type MQTTConfig struct {
	Broker   string
	Username string
	Password string
	// Topic содержит id матча на месте wildcard '+', например live/matches/+/tracking.
	Topic string
}

// MQTTTrackingSubscriber передаёт внешние замеры трекинга в живые матчи.
type MQTTTrackingSubscriber struct {
	cfg      MQTTConfig
	client   mqtt.Client
	reporter TrackingReporter
	logger   *slog.Logger
}

func NewMQTTTrackingSubscriber(cfg MQTTConfig, reporter TrackingReporter, logger *slog.Logger) (*MQTTTrackingSubscriber, error) {
	if !strings.Contains(cfg.Topic, "+") {
		return nil, fmt.Errorf("mqtt topic %q must contain a + wildcard for the match id", cfg.Topic)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTTrackingSubscriber{cfg: cfg, reporter: reporter, logger: logger}, nil
}

func (s *MQTTTrackingSubscriber) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetUsername(s.cfg.Username)
	opts.SetPassword(s.cfg.Password)
	opts.SetClientID("tournament-live-" + uuid.NewString())

	// подписка восстанавливается при каждом переподключении
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("MQTT connection lost", slog.Any("error", err))
	})

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

func (s *MQTTTrackingSubscriber) onConnect(client mqtt.Client) {
	token := client.Subscribe(s.cfg.Topic, qosAtLeastOnce, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.handle(msg.Topic(), msg.Payload()); err != nil {
			s.logger.Warn("Tracking sample rejected", slog.String("topic", msg.Topic()), slog.Any("error", err))
		}
	})
	if token.Wait() && token.Error() != nil {
		s.logger.Error("Failed to subscribe to tracking topic", slog.String("topic", s.cfg.Topic), slog.Any("error", token.Error()))
		return
	}
	s.logger.Info("Subscribed to tracking topic", slog.String("topic", s.cfg.Topic))
}

func (s *MQTTTrackingSubscriber) handle(topic string, payload []byte) error {
	matchID, err := MatchIDFromTopic(s.cfg.Topic, topic)
	if err != nil {
		return err
	}
	var sample models.TrackingSample
	if err := json.Unmarshal(payload, &sample); err != nil {
		return fmt.Errorf("invalid tracking payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	_, err = s.reporter.ReportTracking(ctx, matchID, sample)
	return err
}

func (s *MQTTTrackingSubscriber) Disconnect() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

// MatchIDFromTopic извлекает id матча из сегмента, совпавшего с первым
// '+' в шаблоне.
func MatchIDFromTopic(pattern, topic string) (int, error) {
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")
	matchID := 0
	found := false
	for i, seg := range pp {
		if seg == "#" {
			break
		}
		if i >= len(tp) {
			return 0, fmt.Errorf("%w: %s", ErrTopicMismatch, topic)
		}
		switch seg {
		case "+":
			if found {
				continue
			}
			id, err := strconv.Atoi(tp[i])
			if err != nil || id <= 0 {
				return 0, fmt.Errorf("%w: %q is not a match id", ErrTopicMismatch, tp[i])
			}
			matchID, found = id, true
		default:
			if seg != tp[i] {
				return 0, fmt.Errorf("%w: %s", ErrTopicMismatch, topic)
			}
		}
	}
	if pp[len(pp)-1] != "#" && len(tp) != len(pp) {
		return 0, fmt.Errorf("%w: %s", ErrTopicMismatch, topic)
	}
	if !found {
		return 0, fmt.Errorf("%w: pattern %s has no match id wildcard", ErrTopicMismatch, pattern)
	}
	return matchID, nil
}
