package app

import (
	"context"
	"encoding/json"
	"strings"

	"bytetalk/internal/chat/domain"
	"bytetalk/pkg/logger"
	"bytetalk/pkg/metrics"

	"go.uber.org/zap"
)

// EventRelay pushes an event to whichever node holds the target's connection
type EventRelay interface {
	Relay(ctx context.Context, event domain.Event, targetUserID string, payload interface{})
}

// EventBus cross node pub/sub, implemented by repository.RedisPubSub
type EventBus interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	PSubscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error
}

// Relay fire and forget delivery, an offline target is a silent no-op
type Relay struct {
	registry *Registry
	bus      EventBus
	prefix   string
}

// NewRelay create a Relay. With a nil bus events go straight to the local registry,
// otherwise they are published on prefix+targetUserID and delivered by every node's Listen.
func NewRelay(registry *Registry, bus EventBus, prefix string) *Relay {
	return &Relay{
		registry: registry,
		bus:      bus,
		prefix:   prefix,
	}
}

// Relay push payload tagged with event to targetUserID
func (r *Relay) Relay(ctx context.Context, event domain.Event, targetUserID string, payload interface{}) {
	if r.bus == nil {
		r.DeliverLocal(event, targetUserID, payload)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Error("relay marshal failed", zap.String("event", string(event)), zap.Error(err))
		return
	}
	env := domain.RelayEnvelope{Event: event, Target: targetUserID, Data: data}
	if err := r.bus.Publish(ctx, r.prefix+targetUserID, env); err != nil {
		logger.Log.Error("relay publish failed, deliver local",
			zap.String("event", string(event)),
			zap.String("target", targetUserID),
			zap.Error(err),
		)
		r.DeliverLocal(event, targetUserID, payload)
	}
}

// DeliverLocal push to the connection registered on this node, if any
func (r *Relay) DeliverLocal(event domain.Event, targetUserID string, payload interface{}) {
	conn, ok := r.registry.Lookup(targetUserID)
	if !ok {
		metrics.RelayEvents.WithLabelValues(string(event), "offline").Inc()
		logger.Log.Debug("relay target offline", zap.String("event", string(event)), zap.String("target", targetUserID))
		return
	}

	if err := conn.Push(event, payload); err != nil {
		metrics.RelayEvents.WithLabelValues(string(event), "dropped").Inc()
		logger.Log.Warn("relay push dropped",
			zap.String("event", string(event)),
			zap.String("target", targetUserID),
			zap.Error(err),
		)
		return
	}
	metrics.RelayEvents.WithLabelValues(string(event), "delivered").Inc()
}

// Listen subscribe to every user channel on the bus until ctx is done
func (r *Relay) Listen(ctx context.Context) error {
	if r.bus == nil {
		return nil
	}
	return r.bus.PSubscribe(ctx, r.prefix+"*", func(channel string, payload []byte) {
		var env domain.RelayEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			logger.Log.Error("relay envelope decode failed", zap.String("channel", channel), zap.Error(err))
			return
		}
		if env.Target == "" {
			env.Target = strings.TrimPrefix(channel, r.prefix)
		}
		r.DeliverLocal(env.Event, env.Target, env.Data)
	})
}
