package telegram

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"railmon/internal/complaint"
	"railmon/internal/query"
)

// Callback data prefixes for the alert buttons.
const (
	progressPrefix = "progress:"
	resolvePrefix  = "resolve:"
)

// maxCaption is Telegram's caption limit for photos.
const maxCaption = 1024

// FormatAlert renders an alert as HTML.
//
// Format:
//
//	🚨 CRITICAL COMPLAINT | ⚠️ HIGH PRIORITY COMPLAINT
//	🆔 ID, 🚆 train/coach/seat, 🛤 route, 🎫 PNR
//	🏷 classification, 📊 sentiment, 📅 created
//	📝 text (+ 🌐 translation)
func FormatAlert(a query.Alert, translation string) string {
	c := a.Complaint
	var b strings.Builder

	if a.Priority == complaint.PriorityCritical {
		b.WriteString("🚨 <b>CRITICAL COMPLAINT</b>\n\n")
	} else {
		b.WriteString("⚠️ <b>HIGH PRIORITY COMPLAINT</b>\n\n")
	}

	fmt.Fprintf(&b, "🆔 <b>ID:</b> <code>%s</code>\n", html.EscapeString(c.ID))
	fmt.Fprintf(&b, "🚆 <b>Train:</b> %s | <b>Coach:</b> %s | <b>Seat:</b> %s\n",
		esc(c.TrainNumber), esc(c.CoachNumber), esc(c.SeatNumber))
	fmt.Fprintf(&b, "🛤 <b>Route:</b> %s\n", html.EscapeString(c.Route()))
	fmt.Fprintf(&b, "🎫 <b>PNR:</b> %s\n", esc(c.PNRNumber))
	fmt.Fprintf(&b, "🏷 <b>Classification:</b> %s\n", esc(c.Classification))
	if score, ok := c.Score(); ok {
		fmt.Fprintf(&b, "📊 <b>Sentiment:</b> %.2f", score)
		if c.Sentiment != "" {
			fmt.Fprintf(&b, " (%s)", html.EscapeString(c.Sentiment))
		}
		b.WriteString("\n")
	}
	if !c.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "📅 <b>Filed:</b> %s\n", c.CreatedAt.Format("02 Jan 2006 15:04"))
	}
	if c.Status == complaint.StatusInProgress && c.AssignedTo != "" {
		fmt.Fprintf(&b, "🔧 <b>In progress:</b> %s\n", html.EscapeString(c.AssignedTo))
	}

	fmt.Fprintf(&b, "\n📝 <b>Complaint:</b>\n%s", html.EscapeString(c.Text))
	if translation != "" && translation != c.Text {
		fmt.Fprintf(&b, "\n\n🌐 <b>Translation:</b>\n%s", html.EscapeString(translation))
	}
	return b.String()
}

func esc(s string) string {
	if s == "" {
		return "-"
	}
	return html.EscapeString(s)
}

// alertKeyboard builds the triage buttons. Complaints already in progress
// only get the resolve button.
func alertKeyboard(id string, status complaint.Status) *InlineKeyboardMarkup {
	row := []InlineKeyboardButton{}
	if status != complaint.StatusInProgress {
		row = append(row, InlineKeyboardButton{Text: "🔧 In Progress", CallbackData: progressPrefix + id})
	}
	row = append(row, InlineKeyboardButton{Text: "✅ Mark as Resolved", CallbackData: resolvePrefix + id})
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{row}}
}

// SendAlertMessage sends an alert with its triage buttons.
//
// Returns:
//   - string: Telegram message ID (for editing later)
//   - error: Request error
func (c *Client) SendAlertMessage(ctx context.Context, a query.Alert, translation string) (string, error) {
	if c == nil {
		return "", nil
	}

	msg := Message{
		ChatID:                c.chatID,
		Text:                  FormatAlert(a, translation),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
		ReplyMarkup:           alertKeyboard(a.Complaint.ID, a.Complaint.Status),
	}

	result, err := c.doRequest(ctx, "sendMessage", msg)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(messageIDOf(result)), nil
}

// SendText sends a plain HTML message to the configured chat.
func (c *Client) SendText(ctx context.Context, text string) error {
	if c == nil {
		return nil
	}
	_, err := c.doRequest(ctx, "sendMessage", Message{
		ChatID:    c.chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	return err
}

// SendCriticalAlert sends a critical alert about the monitor itself.
//
// Used for system-level failures:
//   - Sign-in failures
//   - Repeated fetch failures
func (c *Client) SendCriticalAlert(ctx context.Context, errorType, errorMsg string, retryCount int) error {
	if c == nil {
		return nil
	}

	text := fmt.Sprintf(
		"🚨 <b>CRITICAL ALERT</b>\n\n"+
			"<b>Error Type:</b> %s\n"+
			"<b>Error:</b> %s\n"+
			"<b>Failed Attempts:</b> %d\n"+
			"<b>Time:</b> %s\n\n"+
			"⚠️ Complaint monitoring is not working. Please check the service.",
		html.EscapeString(errorType),
		html.EscapeString(errorMsg),
		retryCount,
		time.Now().Format("02-01-2006 15:04:05"),
	)

	if err := c.SendText(ctx, text); err != nil {
		return fmt.Errorf("failed to send critical alert: %w", err)
	}
	zap.S().Infof("📢 Critical alert sent to Telegram: %s", errorType)
	return nil
}

// EditMessageText replaces the text of a sent message and drops its
// keyboard unless one is given.
func (c *Client) EditMessageText(ctx context.Context, messageID, newText string, keyboard *InlineKeyboardMarkup) error {
	if c == nil {
		return nil
	}
	_, err := c.doRequest(ctx, "editMessageText", EditMessageRequest{
		ChatID:      c.chatID,
		MessageID:   messageID,
		Text:        newText,
		ParseMode:   "HTML",
		ReplyMarkup: keyboard,
	})
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// MarkResolved edits an alert into its RESOLVED form.
//
// originalText is the plain text of the alert as Telegram returned it; it is
// escaped again because the edit is sent as HTML.
func (c *Client) MarkResolved(ctx context.Context, messageID, originalText, resolution, by string) error {
	var b strings.Builder
	b.WriteString("✅ <b>RESOLVED</b>\n\n")
	if originalText != "" {
		b.WriteString(html.EscapeString(originalText))
		b.WriteString("\n\n")
	}
	if resolution != "" {
		fmt.Fprintf(&b, "📋 <b>Resolution:</b> %s\n", html.EscapeString(resolution))
	}
	if by != "" {
		fmt.Fprintf(&b, "👤 <b>Resolved by:</b> %s\n", html.EscapeString(by))
	}
	fmt.Fprintf(&b, "🕒 %s", time.Now().Format("02-01-2006 15:04"))
	return c.EditMessageText(ctx, messageID, b.String(), nil)
}

// SendPhoto uploads a PNG with a caption.
//
// Returns:
//   - string: Telegram message ID
//   - error: Request error
func (c *Client) SendPhoto(ctx context.Context, png []byte, filename, caption string) (string, error) {
	if c == nil {
		return "", nil
	}
	if len(caption) > maxCaption {
		caption = caption[:maxCaption]
	}
	if c.debug {
		zap.S().Infof("🐛 DEBUG MODE: would send photo %s (%d bytes): %s", filename, len(png), caption)
		result, _ := c.simulate("sendPhoto", nil)
		return strconv.Itoa(messageIDOf(result)), nil
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := map[string]string{"chat_id": c.chatID, "caption": caption, "parse_mode": "HTML"}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", err
		}
	}
	part, err := w.CreateFormFile("photo", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(png); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	result, err := c.post(ctx, "sendPhoto", w.FormDataContentType(), &body)
	if err != nil {
		return "", fmt.Errorf("failed to send photo: %w", err)
	}
	return strconv.Itoa(messageIDOf(result)), nil
}

func (c *Client) deleteMessage(ctx context.Context, messageID int) {
	_, err := c.doRequest(ctx, "deleteMessage", map[string]any{
		"chat_id":    c.chatID,
		"message_id": messageID,
	})
	if err != nil {
		zap.S().Warnf("⚠️  Failed to delete message %d: %v", messageID, err)
	}
}
