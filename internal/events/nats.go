package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"trivia-game/internal/models"
)

type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "trivia.rooms",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSPublisher fans room lifecycle events out on core NATS subjects of
// the form <prefix>.<room code>.
type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	publish func(subject string, data []byte) error
}

func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("trivia-game"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	p := &NATSPublisher{nc: nc, prefix: cfg.SubjectPrefix, publish: nc.Publish}
	log.Info().Str("url", nc.ConnectedUrl()).Str("prefix", cfg.SubjectPrefix).Msg("connected to NATS")
	return p, nil
}

// Publish never blocks game play: failures are logged and dropped.
func (p *NATSPublisher) Publish(event models.RoomEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("marshal room event")
		return
	}

	subject := Subject(p.prefix, event.Code)
	if err := p.publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Str("type", event.Type).Msg("publish room event")
		return
	}
	log.Debug().Str("subject", subject).Str("type", event.Type).Msg("published room event")
}

func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		log.Warn().Err(err).Msg("NATS drain failed")
		p.nc.Close()
	}
}

// Subject returns the subject a room's events are published on.
func Subject(prefix, code string) string {
	return fmt.Sprintf("%s.%s", prefix, code)
}
