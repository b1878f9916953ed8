package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"railmon/internal/complaint"
	"railmon/internal/storage"
)

// ComplaintUpdater applies admin updates to the backend.
type ComplaintUpdater interface {
	UpdateComplaint(ctx context.Context, id string, u complaint.Update) (complaint.Complaint, error)
}

// retryDelay is how long the poll loop waits after a failed getUpdates.
var retryDelay = 5 * time.Second

// getUpdates long-polls for new updates.
func (c *Client) getUpdates(ctx context.Context, offset int) ([]Update, error) {
	result, err := c.doRequest(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         pollTimeout,
		"allowed_updates": []string{"message", "callback_query"},
	})
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	return updates, nil
}

// answerCallbackQuery answers a callback query (removes the loading state on the button).
func (c *Client) answerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	_, err := c.doRequest(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackQueryID,
		"text":              text,
	})
	return err
}

// HandleUpdates polls for updates and processes button clicks and replies
// until ctx is cancelled.
func (c *Client) HandleUpdates(ctx context.Context, updater ComplaintUpdater, store *storage.Storage) error {
	if c == nil {
		<-ctx.Done()
		return nil
	}

	zap.S().Info("🤖 Starting Telegram update handler...")
	offset := 0

	for {
		updates, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			zap.S().Warnf("⚠️  Error getting updates: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			c.HandleUpdate(ctx, update, updater, store)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// HandleUpdate dispatches a single update.
func (c *Client) HandleUpdate(ctx context.Context, update Update, updater ComplaintUpdater, store *storage.Storage) {
	switch {
	case update.CallbackQuery != nil:
		c.handleCallbackQuery(ctx, update.CallbackQuery, updater, store)
	case update.Message != nil && update.Message.From != nil:
		c.handleMessage(ctx, update.Message, updater, store)
	}
}

// handleCallbackQuery processes a button click.
func (c *Client) handleCallbackQuery(ctx context.Context, query *CallbackQuery, updater ComplaintUpdater, store *storage.Storage) {
	switch {
	case strings.HasPrefix(query.Data, progressPrefix):
		c.handleProgress(ctx, query, strings.TrimPrefix(query.Data, progressPrefix), updater, store)
	case strings.HasPrefix(query.Data, resolvePrefix):
		c.handleResolvePrompt(ctx, query, strings.TrimPrefix(query.Data, resolvePrefix), store)
	default:
		_ = c.answerCallbackQuery(ctx, query.ID, "")
	}
}

// handleProgress marks the complaint inProgress and assigns it to whoever
// tapped the button.
func (c *Client) handleProgress(ctx context.Context, query *CallbackQuery, complaintID string, updater ComplaintUpdater, store *storage.Storage) {
	assignee := query.From.FirstName
	if assignee == "" {
		assignee = query.From.Username
	}
	zap.S().Infof("🔧 %s took complaint %s", assignee, complaintID)

	if rec, ok := store.Get(complaintID); ok && !complaint.CanTransition(rec.Status, complaint.StatusInProgress) {
		_ = c.answerCallbackQuery(ctx, query.ID, fmt.Sprintf("Complaint is already %s", rec.Status.Label()))
		return
	}

	updated, err := updater.UpdateComplaint(ctx, complaintID, complaint.Update{
		Status:     complaint.StatusInProgress,
		AssignedTo: assignee,
	})
	if err != nil {
		zap.S().Errorf("❌ Failed to mark %s in progress: %v", complaintID, err)
		_ = c.answerCallbackQuery(ctx, query.ID, "Failed to update complaint")
		return
	}
	_ = c.answerCallbackQuery(ctx, query.ID, "Marked as in progress")

	if _, err := store.UpdateStatus(complaintID, complaint.StatusInProgress); err != nil {
		zap.S().Warnf("⚠️  Failed to record status for %s: %v", complaintID, err)
	}

	messageID := c.messageIDFor(complaintID, query.Message, store)
	if messageID == "" {
		return
	}
	original := ""
	if query.Message != nil {
		original = query.Message.Text
	}
	if updated.AssignedTo != "" {
		assignee = updated.AssignedTo
	}
	text := fmt.Sprintf("%s\n\n🔧 <b>In progress:</b> %s", html.EscapeString(original), html.EscapeString(assignee))
	if err := c.EditMessageText(ctx, messageID, text, alertKeyboard(complaintID, complaint.StatusInProgress)); err != nil {
		zap.S().Warnf("⚠️  %v", err)
	}
}

// handleResolvePrompt asks for resolution remarks. A second tap by the same
// user cancels the pending prompt.
func (c *Client) handleResolvePrompt(ctx context.Context, query *CallbackQuery, complaintID string, store *storage.Storage) {
	userID := query.From.ID

	c.mu.Lock()
	existing, exists := c.pendingResolutions[userID]
	if exists && existing.ComplaintID == complaintID {
		delete(c.pendingResolutions, userID)
		c.mu.Unlock()

		if existing.PromptMessageID != 0 {
			c.deleteMessage(ctx, existing.PromptMessageID)
		}
		_ = c.answerCallbackQuery(ctx, query.ID, "Resolution cancelled")
		zap.S().Infof("↩️  Resolution of %s cancelled by %s", complaintID, query.From.FirstName)
		return
	}
	c.mu.Unlock()

	_ = c.answerCallbackQuery(ctx, query.ID, "Please reply with resolution remarks")

	original := ""
	if query.Message != nil {
		original = query.Message.Text
	}
	pending := PendingResolution{
		ComplaintID:  complaintID,
		MessageID:    c.messageIDFor(complaintID, query.Message, store),
		OriginalText: original,
	}

	prompt := Message{
		ChatID: c.chatID,
		Text: fmt.Sprintf("📝 Reply with the resolution remarks for complaint <code>%s</code>.\nSend <i>cancel</i> to abort.",
			html.EscapeString(complaintID)),
		ParseMode: "HTML",
		ReplyMarkup: ForceReply{
			ForceReply:            true,
			Selective:             true,
			InputFieldPlaceholder: "Resolution remarks",
		},
	}
	if query.Message != nil {
		prompt.ReplyToMessageID = query.Message.MessageID
	}

	result, err := c.doRequest(ctx, "sendMessage", prompt)
	if err != nil {
		zap.S().Errorf("❌ Failed to send resolution prompt: %v", err)
		return
	}
	pending.PromptMessageID = messageIDOf(result)

	c.mu.Lock()
	c.pendingResolutions[userID] = pending
	c.mu.Unlock()

	zap.S().Infof("📝 Waiting for resolution remarks for %s from %s", complaintID, query.From.FirstName)
}

// handleMessage turns a reply into a resolution.
func (c *Client) handleMessage(ctx context.Context, msg *IncomingMessage, updater ComplaintUpdater, store *storage.Storage) {
	userID := msg.From.ID

	c.mu.Lock()
	pending, exists := c.pendingResolutions[userID]
	if exists {
		delete(c.pendingResolutions, userID)
	}
	c.mu.Unlock()

	if !exists {
		return
	}

	if pending.PromptMessageID != 0 {
		c.deleteMessage(ctx, pending.PromptMessageID)
	}

	remarks := strings.TrimSpace(msg.Text)
	if remarks == "" || strings.EqualFold(remarks, "cancel") {
		_ = c.SendText(ctx, fmt.Sprintf("↩️ Resolution of <code>%s</code> cancelled.", html.EscapeString(pending.ComplaintID)))
		return
	}

	zap.S().Infof("🔄 Resolving complaint %s", pending.ComplaintID)

	if _, err := updater.UpdateComplaint(ctx, pending.ComplaintID, complaint.Update{
		Status:     complaint.StatusResolved,
		Resolution: remarks,
	}); err != nil {
		zap.S().Errorf("❌ Failed to resolve %s: %v", pending.ComplaintID, err)
		_ = c.SendText(ctx, fmt.Sprintf("❌ Failed to resolve <code>%s</code>: %s",
			html.EscapeString(pending.ComplaintID), html.EscapeString(err.Error())))
		return
	}

	if pending.MessageID != "" {
		if err := c.MarkResolved(ctx, pending.MessageID, pending.OriginalText, remarks, msg.From.FirstName); err != nil {
			zap.S().Warnf("⚠️  %v", err)
		}
	}

	removed, err := store.RemoveIfExists(pending.ComplaintID)
	if err != nil {
		zap.S().Warnf("⚠️  Failed to remove %s from storage: %v", pending.ComplaintID, err)
	}
	if removed {
		zap.S().Infof("🗑️  Removed %s from storage", pending.ComplaintID)
	}
	zap.S().Infof("✅ Complaint %s resolved by %s", pending.ComplaintID, msg.From.FirstName)
}

// messageIDFor prefers the stored alert id and falls back to the message
// the button was attached to.
func (c *Client) messageIDFor(complaintID string, msg *IncomingMessage, store *storage.Storage) string {
	if id := store.GetMessageID(complaintID); id != "" {
		return id
	}
	if msg != nil && msg.MessageID != 0 {
		return strconv.Itoa(msg.MessageID)
	}
	return ""
}

// Pending reports whether user has a resolution prompt open.
func (c *Client) Pending(userID int64) (PendingResolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pendingResolutions[userID]
	return p, ok
}
