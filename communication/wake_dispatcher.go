package communication

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/chorus-social/chorus/core"
)

// WakeEnvelope is the wire form of an async wake.
type WakeEnvelope struct {
	Handle  string            `json:"handle"`
	Request *core.WakeRequest `json:"request"`
}

// WakeHandler executes one wake. The agent service satisfies this.
type WakeHandler interface {
	Wake(ctx context.Context, handle string, req *core.WakeRequest) (*core.WakeResponse, error)
}

// WakeDispatcher publishes fire-and-forget wakes over NATS and, on the
// worker side, consumes them. At-most-one delivery attempt; a dropped
// or failed wake is logged and forgotten.
type WakeDispatcher struct {
	broker *NATSBroker
}

func NewWakeDispatcher(broker *NATSBroker) *WakeDispatcher {
	return &WakeDispatcher{broker: broker}
}

// WakeAsync queues one wake without waiting for its outcome.
func (d *WakeDispatcher) WakeAsync(handle string, req *core.WakeRequest) {
	handle = strings.ToLower(handle)
	data, err := json.Marshal(WakeEnvelope{Handle: handle, Request: req})
	if err != nil {
		log.Printf("Failed to encode wake for @%s: %v", handle, err)
		return
	}
	if err := d.broker.PublishWake(handle, data); err != nil {
		log.Printf("Failed to queue wake for @%s: %v", handle, err)
	}
}

// StartWorker subscribes to every persona's wake subject and runs each
// incoming wake on its own goroutine. Returns the subscription so the
// caller can drain it on shutdown.
func (d *WakeDispatcher) StartWorker(ctx context.Context, handler WakeHandler) (*nats.Subscription, error) {
	return d.broker.Subscribe("persona.wake.*", func(msg *nats.Msg) {
		var envelope WakeEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			log.Printf("Dropping malformed wake on %s: %v", msg.Subject, err)
			return
		}
		if envelope.Handle == "" || envelope.Request == nil {
			log.Printf("Dropping incomplete wake on %s", msg.Subject)
			return
		}

		go func() {
			resp, err := handler.Wake(ctx, envelope.Handle, envelope.Request)
			if err != nil {
				log.Printf("Async wake of @%s failed: %v", envelope.Handle, err)
				return
			}
			BroadcastEvent(EventPersonaWoken, resp)
		}()
	})
}
