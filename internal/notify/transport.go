package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// LogTransport writes messages to a structured logger.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a LogTransport.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger.With("transport", "log")}
}

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.logger.InfoContext(ctx, "notification", "channel", msg.ChannelID, "thread", msg.ThreadID, "text", msg.Text)
	return nil
}

// Fanout sends every message through all of its transports. The error joins
// every transport failure.
type Fanout []Transport

func (f Fanout) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps sent messages in memory. FailChannels makes sends to the
// listed channels fail.
type Recorder struct {
	mu           sync.Mutex
	messages     []Message
	FailChannels map[string]error
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.FailChannels[msg.ChannelID]; ok {
		return err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of what was sent.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Channels returns the channel of every sent message in send order.
func (r *Recorder) Channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.ChannelID
	}
	return out
}

// Reset drops recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.messages = nil
	r.mu.Unlock()
}
