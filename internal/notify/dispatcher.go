package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/example/lab-scheduler/internal/logging"
)

// Message is what a transport delivers.
type Message struct {
	ChannelID string `json:"channelId"`
	Text      string `json:"text"`
	ThreadID  string `json:"threadId,omitempty"`
	Format    Format `json:"format"`
}

// Transport sends one message. Implementations must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Delivery is the outcome of sending to one channel.
type Delivery struct {
	ChannelID string
	Err       error
}

// Failed counts failed deliveries.
func Failed(deliveries []Delivery) int {
	n := 0
	for _, d := range deliveries {
		if d.Err != nil {
			n++
		}
	}
	return n
}

// Notifier is what services depend on.
type Notifier interface {
	Notify(ctx context.Context, n Notice, lc Lifecycle, extraChannels ...string) []Delivery
}

// Dispatcher renders a notice for every routed channel and sends it.
type Dispatcher struct {
	router    *Router
	transport Transport
	logger    *slog.Logger
}

// NewDispatcher wires a router to a transport.
func NewDispatcher(router *Router, transport Transport, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{router: router, transport: transport, logger: logger}
}

// Notify sends to the lifecycle's channels plus extraChannels, concurrently.
// Every channel gets a Delivery in routing order. Failures are logged and
// reported, never returned as an error.
func (d *Dispatcher) Notify(ctx context.Context, n Notice, lc Lifecycle, extraChannels ...string) []Delivery {
	channels := uniqueChannels(append(d.router.Channels(lc, n.Lab), extraChannels...))
	deliveries := make([]Delivery, len(channels))

	var wg sync.WaitGroup
	for i, id := range channels {
		cfg := d.router.Channel(id)
		msg := Message{
			ChannelID: id,
			Text:      Render(n, lc, cfg.Format),
			ThreadID:  cfg.ThreadID,
			Format:    cfg.Format,
		}
		wg.Add(1)
		go func(i int, msg Message) {
			defer wg.Done()
			deliveries[i] = Delivery{ChannelID: msg.ChannelID, Err: d.send(ctx, msg)}
		}(i, msg)
	}
	wg.Wait()

	logger := logging.FromContextOr(ctx, d.logger)
	for _, del := range deliveries {
		if del.Err != nil {
			logger.WarnContext(ctx, "notification delivery failed",
				"channel", del.ChannelID,
				"lifecycle", string(lc),
				"record_id", n.RecordID,
				"error_kind", "notification_delivery_failed",
				"error", del.Err,
			)
		}
	}
	return deliveries
}

func (d *Dispatcher) send(ctx context.Context, msg Message) error {
	if d.transport == nil {
		return errors.New("notify: no transport configured")
	}
	return d.transport.Send(ctx, msg)
}

func uniqueChannels(channels []string) []string {
	seen := make(map[string]struct{}, len(channels))
	out := make([]string, 0, len(channels))
	for _, c := range channels {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
