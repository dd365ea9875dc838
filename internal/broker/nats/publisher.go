package nats

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// KeyHeader carries the partition key, since NATS subjects have none.
const KeyHeader = "Event-Key"

type conn interface {
	PublishMsg(m *nats.Msg) error
	Drain() error
}

type Publisher struct {
	nc conn
}

func Connect(url string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("courier-fulfillment"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}
	return newPublisherWithConn(nc), nil
}

func newPublisherWithConn(nc conn) *Publisher {
	return &Publisher{nc: nc}
}

func (p *Publisher) Publish(ctx context.Context, subject string, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = value
	if len(key) > 0 {
		msg.Header.Set(KeyHeader, string(key))
	}

	if err := p.nc.PublishMsg(msg); err != nil {
		return errors.Wrap(err, "nats publish")
	}
	return nil
}

// Close flushes pending messages before closing the connection.
func (p *Publisher) Close() error {
	return errors.Wrap(p.nc.Drain(), "nats drain")
}
