package notificator

import (
	"context"
	"runtime/debug"
	"time"

	evbus "github.com/asaskevich/EventBus"

	"github.com/core-coin/adsponsor/internal/metrics"
	"github.com/core-coin/adsponsor/internal/models"
	"github.com/core-coin/adsponsor/pkg/logger"
)

const (
	eventTopic  = "sponsor:event"
	sendTimeout = 10 * time.Second
)

// Sender delivers a rendered event to an external channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// Notificator fans committed events out over an event bus. Logging and
// metrics run synchronously; external senders run asynchronously and never
// block the caller.
type Notificator struct {
	logger *logger.Logger
	bus    evbus.Bus
}

func NewNotificator(logger *logger.Logger, metrics *metrics.Metrics, senders ...Sender) (*Notificator, error) {
	n := &Notificator{logger: logger, bus: evbus.New()}

	if err := n.bus.Subscribe(eventTopic, n.logEvent); err != nil {
		return nil, err
	}
	if metrics != nil {
		if err := n.bus.Subscribe(eventTopic, metrics.Observe); err != nil {
			return nil, err
		}
	}
	for _, s := range senders {
		if s == nil {
			continue
		}
		sender := s
		deliver := func(event *models.Event) { n.deliver(sender, event) }
		if err := n.bus.SubscribeAsync(eventTopic, deliver, false); err != nil {
			return nil, err
		}
		logger.Info("Notification sender registered", "sender", sender.Name())
	}
	return n, nil
}

// Notify publishes an event. It implements models.NotificationService.
func (n *Notificator) Notify(event *models.Event) {
	n.bus.Publish(eventTopic, event)
}

// Stop waits for in-flight deliveries.
func (n *Notificator) Stop() {
	n.bus.WaitAsync()
}

func (n *Notificator) logEvent(event *models.Event) {
	n.logger.Info("Event", "id", event.ID, "type", event.Type, "message", event.String())
}

func (n *Notificator) deliver(sender Sender, event *models.Event) {
	n.safeCall(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := sender.Send(ctx, event.String()); err != nil {
			n.logger.Error("Failed to send notification", "sender", sender.Name(), "event", event.ID, "error", err)
		}
	}, sender.Name())
}

// safeCall runs a function with panic recovery
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}
