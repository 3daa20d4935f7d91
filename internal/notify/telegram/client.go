// Package telegram delivers notifications through the Telegram Bot API
// sendMessage method.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/notify"
)

const defaultBaseURL = "https://api.telegram.org"

// Config maps channel ids to chat ids. Direct user channels are resolved via
// UserChats keyed by user id.
type Config struct {
	Token     string
	BaseURL   string
	Chats     map[string]string
	UserChats map[string]string
	Timeout   time.Duration
}

// Client is a notify.Transport.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type sendMessageRequest struct {
	ChatID          string `json:"chat_id"`
	Text            string `json:"text"`
	ParseMode       string `json:"parse_mode,omitempty"`
	MessageThreadID int64  `json:"message_thread_id,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) chatFor(channelID string) (string, bool) {
	if userID, ok := strings.CutPrefix(channelID, "user:"); ok {
		chat, found := c.cfg.UserChats[userID]
		return chat, found
	}
	chat, found := c.cfg.Chats[channelID]
	return chat, found
}

// Send implements notify.Transport.
func (c *Client) Send(ctx context.Context, msg notify.Message) error {
	chat, ok := c.chatFor(msg.ChannelID)
	if !ok {
		return fmt.Errorf("telegram: no chat configured for channel %s", msg.ChannelID)
	}

	req := sendMessageRequest{ChatID: chat, Text: msg.Text}
	if msg.Format == notify.FormatHTML {
		req.ParseMode = "HTML"
	}
	if msg.ThreadID != "" {
		thread, err := strconv.ParseInt(msg.ThreadID, 10, 64)
		if err != nil {
			return fmt.Errorf("telegram: invalid thread id %q: %w", msg.ThreadID, err)
		}
		req.MessageThreadID = thread
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("telegram: send to %s: %w", msg.ChannelID, err)
	}
	defer resp.Body.Close()

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("telegram: status %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !decoded.OK {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, decoded.Description)
	}
	return nil
}
