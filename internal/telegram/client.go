// Package telegram provides the Telegram bot used for complaint triage.
//
// This package handles:
//   - Sending emergency alerts with inline "In Progress" / "Mark as Resolved" buttons
//   - Receiving and processing callback queries (button clicks)
//   - Handling admin replies (resolution remarks)
//   - Editing alerts once a complaint moves on
//   - Uploading the rendered dashboard report
//   - Long polling for updates
//
// A nil *Client is valid and turns every call into a logged no-op, so
// callers do not need to check whether Telegram is configured.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"railmon/internal/api"
	"railmon/internal/metrics"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// pollTimeout is the long polling window passed to getUpdates.
const pollTimeout = 30

// Config configures a Client.
type Config struct {
	BotToken   string
	ChatID     string
	RatePerSec float64 // outgoing call budget; Telegram allows ~30/s per bot
	DebugMode  bool    // log outgoing messages instead of sending them
	BaseURL    string  // defaults to DefaultBaseURL
}

// PendingResolution stores a complaint awaiting a resolution remark.
//
// When an admin taps "Mark as Resolved":
//  1. Store the complaint in pendingResolutions keyed by Telegram user
//  2. Send a ForceReply prompt asking for remarks
//  3. Wait for the reply
//  4. Resolve the complaint with the reply as its resolution
type PendingResolution struct {
	ComplaintID     string
	MessageID       string
	OriginalText    string
	PromptMessageID int
}

// Client represents a Telegram bot client.
//
// Thread-safety:
//   - pendingResolutions is protected by mu
//   - the rate limiter is safe for concurrent use
type Client struct {
	botToken string
	chatID   string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	debug    bool

	mu                 sync.Mutex
	pendingResolutions map[int64]PendingResolution

	debugMessageID atomic.Int64
}

// NewClient creates a Telegram client.
//
// Returns:
//   - *Client: Configured client, or nil if the token or chat id is missing
func NewClient(cfg Config) *Client {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		zap.S().Warn("⚠️  TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set. Telegram notifications disabled.")
		if cfg.BotToken == "" {
			zap.S().Warn("   → Missing: TELEGRAM_BOT_TOKEN")
		}
		if cfg.ChatID == "" {
			zap.S().Warn("   → Missing: TELEGRAM_CHAT_ID")
		}
		return nil
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 10
	}

	// Long polling holds a request open for pollTimeout seconds, so the
	// client timeout must be longer than the shared one. The transport
	// (and its connection pool) is still shared.
	shared := api.GetHTTPClient()
	hc := &http.Client{Transport: shared.Transport, Timeout: 2 * pollTimeout * time.Second}

	if cfg.DebugMode {
		zap.S().Info("🐛 DEBUG MODE ENABLED - Telegram messages will be simulated")
	}
	zap.S().Info("✓ Telegram configured successfully")

	return &Client{
		botToken:           cfg.BotToken,
		chatID:             cfg.ChatID,
		baseURL:            baseURL,
		http:               hc,
		limiter:            rate.NewLimiter(rate.Limit(perSec), 1),
		debug:              cfg.DebugMode,
		pendingResolutions: make(map[int64]PendingResolution),
	}
}

// ChatID returns the configured chat.
func (c *Client) ChatID() string {
	if c == nil {
		return ""
	}
	return c.chatID
}

// Message represents a Telegram message for sending.
type Message struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           any    `json:"reply_markup,omitempty"`
	ReplyToMessageID      int    `json:"reply_to_message_id,omitempty"`
}

// InlineKeyboardMarkup represents an inline keyboard.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton represents a button in an inline keyboard.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// ForceReply prompts the user to reply to the bot's message.
type ForceReply struct {
	ForceReply            bool   `json:"force_reply"`
	Selective             bool   `json:"selective,omitempty"`
	InputFieldPlaceholder string `json:"input_field_placeholder,omitempty"`
}

// Update represents a Telegram update from getUpdates.
type Update struct {
	UpdateID      int              `json:"update_id"`
	Message       *IncomingMessage `json:"message,omitempty"`
	CallbackQuery *CallbackQuery   `json:"callback_query,omitempty"`
}

// IncomingMessage represents a received Telegram message.
type IncomingMessage struct {
	MessageID      int              `json:"message_id"`
	From           *User            `json:"from,omitempty"`
	Chat           *Chat            `json:"chat,omitempty"`
	Text           string           `json:"text"`
	ReplyToMessage *IncomingMessage `json:"reply_to_message,omitempty"`
}

// Chat represents a Telegram chat.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// CallbackQuery represents a callback query from an inline button.
type CallbackQuery struct {
	ID      string           `json:"id"`
	From    User             `json:"from"`
	Message *IncomingMessage `json:"message"`
	Data    string           `json:"data"`
}

// User represents a Telegram user.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// EditMessageRequest represents a request to edit a message.
type EditMessageRequest struct {
	ChatID      string                `json:"chat_id"`
	MessageID   string                `json:"message_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// simulatedMethods are skipped in debug mode.
var simulatedMethods = map[string]bool{
	"sendMessage":     true,
	"sendPhoto":       true,
	"editMessageText": true,
	"deleteMessage":   true,
}

// doRequest sends a JSON request to the Bot API and returns the "result"
// field.
//
// Every call except getUpdates waits on the rate limiter first.
func (c *Client) doRequest(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	if c.debug && simulatedMethods[method] {
		return c.simulate(method, payload)
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return c.post(ctx, method, "application/json", bytes.NewReader(jsonData))
}

func (c *Client) post(ctx context.Context, method, contentType string, body io.Reader) (json.RawMessage, error) {
	if method != "getUpdates" {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	apiURL := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.TelegramCalls.WithLabelValues(method, "error").Inc()
		// The URL carries the bot token; keep it out of logs.
		return nil, fmt.Errorf("failed to send %s request: %w", method, redact(err, c.botToken))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TelegramCalls.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result apiResponse
	if err := json.Unmarshal(data, &result); err != nil {
		metrics.TelegramCalls.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !result.OK {
		metrics.TelegramCalls.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("telegram API error: %s: %d %s", method, result.ErrorCode, result.Description)
	}

	metrics.TelegramCalls.WithLabelValues(method, "ok").Inc()
	return result.Result, nil
}

func (c *Client) simulate(method string, payload any) (json.RawMessage, error) {
	if msg, ok := payload.(Message); ok {
		zap.S().Infof("🐛 DEBUG MODE: %s to %s:\n%s", method, msg.ChatID, msg.Text)
	} else {
		zap.S().Infof("🐛 DEBUG MODE: %s simulated", method)
	}
	switch method {
	case "sendMessage", "sendPhoto":
		id := c.debugMessageID.Add(1)
		return json.RawMessage(fmt.Sprintf(`{"message_id":%d}`, id)), nil
	}
	return json.RawMessage("true"), nil
}

// messageIDOf extracts message_id from a sendMessage/sendPhoto result.
func messageIDOf(raw json.RawMessage) int {
	var msg struct {
		MessageID int `json:"message_id"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0
	}
	return msg.MessageID
}

type redactedError struct {
	msg string
}

func (e redactedError) Error() string { return e.msg }

func redact(err error, secret string) error {
	if secret == "" || !strings.Contains(err.Error(), secret) {
		return err
	}
	return redactedError{msg: strings.ReplaceAll(err.Error(), secret, "<token>")}
}
