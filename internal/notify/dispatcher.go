package notify

import (
	"context"
	"time"

	"github.com/Nash0810/failsafe/internal/analyzer"
	"github.com/Nash0810/failsafe/internal/logging"
)

// Dispatcher decouples alert delivery from the analysis loop. Enqueue
// never blocks: when the buffer is full the alert is dropped with a
// warning, because a stalled webhook must not stall record processing.
type Dispatcher struct {
	notifier Notifier
	queue    chan analyzer.Alert
	logger   *logging.Logger
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher with the given queue depth
func NewDispatcher(notifier Notifier, buffer int, logger *logging.Logger) *Dispatcher {
	if buffer < 1 {
		buffer = 16
	}
	return &Dispatcher{
		notifier: notifier,
		queue:    make(chan analyzer.Alert, buffer),
		logger:   logger,
		timeout:  10 * time.Second,
	}
}

// Enqueue hands an alert to the delivery goroutine without blocking
func (d *Dispatcher) Enqueue(alert analyzer.Alert) {
	select {
	case d.queue <- alert:
	default:
		d.logger.Warn("alert_dropped_queue_full", "kind", string(alert.Kind))
	}
}

// Start runs the delivery loop until the context is canceled
func (d *Dispatcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-d.queue:
			d.deliver(ctx, alert)
		}
	}
}

// deliver sends one alert; failures are logged and absorbed
func (d *Dispatcher) deliver(ctx context.Context, alert analyzer.Alert) {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.notifier.Notify(sendCtx, alert); err != nil {
		d.logger.Error("alert_delivery_failed",
			"kind", string(alert.Kind),
			"error", err.Error())
		return
	}
	d.logger.Info("alert_sent", "kind", string(alert.Kind))
}
