package eventing

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes JSON messages to a NATS server.
type NATSPublisher struct {
	Conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("eventing: empty nats url")
	}
	conn, err := nats.Connect(url, nats.Name("monitor-dashboard"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{Conn: conn}, nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p == nil || p.Conn == nil {
		return
	}
	_ = p.Conn.Drain()
	p.Conn.Close()
}

// Publish marshals payload as JSON and publishes it on subject.
func (p *NATSPublisher) Publish(subject string, payload any) error {
	if p == nil || p.Conn == nil {
		return errors.New("eventing: nats not connected")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Conn.Publish(subject, data)
}
