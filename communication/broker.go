// Package communication carries the runtime's async plumbing: the
// NATS broker that delivers fire-and-forget wakes and the WebSocket
// fan-out that streams activity to observers.
package communication

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSBroker encapsulates a NATS connection.
type NATSBroker struct {
	Conn *nats.Conn
}

// NewNATSBroker creates a new NATSBroker connected to the provided URL.
func NewNATSBroker(url string) (*NATSBroker, error) {
	nc, err := nats.Connect(url,
		nats.Timeout(10*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSBroker{Conn: nc}, nil
}

// Publish sends data on the provided subject.
func (b *NATSBroker) Publish(subject string, data []byte) error {
	return b.Conn.Publish(subject, data)
}

// Subscribe registers a callback for a specific subject.
func (b *NATSBroker) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	return b.Conn.Subscribe(subject, cb)
}

// PublishWake sends a wake envelope to one persona's subject.
func (b *NATSBroker) PublishWake(handle string, data []byte) error {
	return b.Publish(WakeSubject(handle), data)
}

// Close gracefully closes the connection.
func (b *NATSBroker) Close() {
	b.Conn.Close()
}

// WakeSubject is the per-persona subject async wakes travel on.
func WakeSubject(handle string) string {
	return fmt.Sprintf("persona.wake.%s", handle)
}

// Global instance of the NATS broker.
var NatsBrokerInstance *NATSBroker

// SetupNATS initializes the global NATS broker. Call this function at startup.
func SetupNATS(url string) {
	broker, err := NewNATSBroker(url)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	NatsBrokerInstance = broker
	log.Printf("Connected to NATS at %s", url)
}
