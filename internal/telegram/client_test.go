package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railmon/internal/complaint"
	"railmon/internal/query"
	"railmon/internal/storage"
)

type botCall struct {
	Method string
	Body   map[string]any
	File   []byte
}

// fakeBot is an in-memory Bot API.
type fakeBot struct {
	mu      sync.Mutex
	calls   []botCall
	nextID  int
	failFor string
}

func (b *fakeBot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	call := botCall{Method: method, Body: map[string]any{}}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				call.Body[k] = v[0]
			}
			if f, _, err := r.FormFile("photo"); err == nil {
				call.File, _ = io.ReadAll(f)
				f.Close()
			}
		}
	} else {
		_ = json.NewDecoder(r.Body).Decode(&call.Body)
	}

	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.nextID++
	id := b.nextID
	fail := b.failFor == method
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case fail:
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`))
	case method == "getUpdates":
		time.Sleep(10 * time.Millisecond)
		_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
	case method == "sendMessage" || method == "sendPhoto":
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{"message_id": 100 + id}})
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func (b *fakeBot) methods() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	for i, c := range b.calls {
		out[i] = c.Method
	}
	return out
}

func (b *fakeBot) last(method string) (botCall, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.calls) - 1; i >= 0; i-- {
		if b.calls[i].Method == method {
			return b.calls[i], true
		}
	}
	return botCall{}, false
}

type fakeUpdater struct {
	mu      sync.Mutex
	updates map[string]complaint.Update
	err     error
}

func (f *fakeUpdater) UpdateComplaint(ctx context.Context, id string, u complaint.Update) (complaint.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return complaint.Complaint{}, f.err
	}
	if f.updates == nil {
		f.updates = map[string]complaint.Update{}
	}
	f.updates[id] = u
	return complaint.ApplyUpdate(complaint.Complaint{ID: id}, u), nil
}

func newTestBot(t *testing.T, debug bool) (*Client, *fakeBot) {
	t.Helper()
	bot := &fakeBot{}
	srv := httptest.NewServer(bot)
	t.Cleanup(srv.Close)

	c := NewClient(Config{BotToken: "T0KEN", ChatID: "-100", RatePerSec: 1000, DebugMode: debug, BaseURL: srv.URL})
	require.NotNil(t, c)
	return c, bot
}

func newStore(t *testing.T, records ...storage.Record) *storage.Storage {
	t.Helper()
	s := storage.New(filepath.Join(t.TempDir(), "alerts.csv"))
	require.NoError(t, s.SaveMultiple(records))
	return s
}

func sampleAlert() query.Alert {
	return query.Alert{
		Priority: complaint.PriorityCritical,
		Complaint: complaint.Complaint{
			ID: "c1", TrainNumber: "12951", PNRNumber: "1234567890", CoachNumber: "B2", SeatNumber: "34",
			SourceStation: "Delhi", DestinationStation: "Mumbai",
			Text:           "Medical emergency <urgent> in coach B2",
			Classification: "Medical Emergency", Sentiment: "negative",
			SentimentScore: complaint.Float64(0.993), Status: complaint.StatusPending,
			CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestNewClientRequiresTokenAndChat(t *testing.T) {
	assert.Nil(t, NewClient(Config{ChatID: "1"}))
	assert.Nil(t, NewClient(Config{BotToken: "x"}))

	var c *Client
	id, err := c.SendAlertMessage(context.Background(), sampleAlert(), "")
	assert.NoError(t, err)
	assert.Empty(t, id)
	assert.NoError(t, c.SendCriticalAlert(context.Background(), "x", "y", 1))
	assert.NoError(t, c.MarkResolved(context.Background(), "1", "", "", ""))
}

func TestFormatAlert(t *testing.T) {
	text := FormatAlert(sampleAlert(), "Translated text")

	assert.Contains(t, text, "CRITICAL COMPLAINT")
	assert.Contains(t, text, "<code>c1</code>")
	assert.Contains(t, text, "Delhi → Mumbai")
	assert.Contains(t, text, "0.99 (negative)")
	assert.Contains(t, text, "01 Mar 2024 10:00")
	assert.Contains(t, text, "&lt;urgent&gt;", "complaint text is HTML-escaped")
	assert.Contains(t, text, "Translated text")

	high := sampleAlert()
	high.Priority = complaint.PriorityHigh
	high.Complaint.SentimentScore = nil
	text = FormatAlert(high, high.Complaint.Text)
	assert.Contains(t, text, "HIGH PRIORITY")
	assert.NotContains(t, text, "Sentiment")
	assert.NotContains(t, text, "Translation", "identical translation is not repeated")
}

func TestAlertKeyboard(t *testing.T) {
	kb := alertKeyboard("c1", complaint.StatusPending)
	require.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "progress:c1", kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "resolve:c1", kb.InlineKeyboard[0][1].CallbackData)

	kb = alertKeyboard("c1", complaint.StatusInProgress)
	require.Len(t, kb.InlineKeyboard[0], 1)
	assert.Equal(t, "resolve:c1", kb.InlineKeyboard[0][0].CallbackData)
}

func TestSendAlertMessage(t *testing.T) {
	c, bot := newTestBot(t, false)

	id, err := c.SendAlertMessage(context.Background(), sampleAlert(), "")
	require.NoError(t, err)
	assert.Equal(t, "101", id)

	call, ok := bot.last("sendMessage")
	require.True(t, ok)
	assert.Equal(t, "-100", call.Body["chat_id"])
	assert.Equal(t, "HTML", call.Body["parse_mode"])
	assert.Contains(t, call.Body, "reply_markup")
}

func TestAPIErrorIsReturned(t *testing.T) {
	c, bot := newTestBot(t, false)
	bot.failFor = "editMessageText"

	err := c.EditMessageText(context.Background(), "5", "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message is not modified")
	assert.NotContains(t, err.Error(), "T0KEN")
}

func TestDebugModeSimulatesSends(t *testing.T) {
	c, bot := newTestBot(t, true)

	id, err := c.SendAlertMessage(context.Background(), sampleAlert(), "")
	require.NoError(t, err)
	assert.Equal(t, "1", id)
	require.NoError(t, c.EditMessageText(context.Background(), id, "x", nil))
	_, err = c.SendPhoto(context.Background(), []byte("png"), "r.png", "caption")
	require.NoError(t, err)

	assert.Empty(t, bot.methods())
}

func TestSendPhoto(t *testing.T) {
	c, bot := newTestBot(t, false)

	id, err := c.SendPhoto(context.Background(), []byte("\x89PNG"), "report.png", "Dashboard")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	call, ok := bot.last("sendPhoto")
	require.True(t, ok)
	assert.Equal(t, "-100", call.Body["chat_id"])
	assert.Equal(t, "Dashboard", call.Body["caption"])
	assert.Equal(t, []byte("\x89PNG"), call.File)
}

func TestProgressButton(t *testing.T) {
	c, bot := newTestBot(t, false)
	store := newStore(t, storage.Record{ComplaintID: "c1", MessageID: "55", Status: complaint.StatusPending})
	up := &fakeUpdater{}

	c.HandleUpdate(context.Background(), Update{UpdateID: 1, CallbackQuery: &CallbackQuery{
		ID: "cb1", From: User{ID: 7, FirstName: "Ravi"}, Data: "progress:c1",
		Message: &IncomingMessage{MessageID: 55, Text: "CRITICAL COMPLAINT c1"},
	}}, up, store)

	require.Contains(t, up.updates, "c1")
	assert.Equal(t, complaint.Update{Status: complaint.StatusInProgress, AssignedTo: "Ravi"}, up.updates["c1"])

	rec, ok := store.Get("c1")
	require.True(t, ok)
	assert.Equal(t, complaint.StatusInProgress, rec.Status)

	edit, ok := bot.last("editMessageText")
	require.True(t, ok)
	assert.Equal(t, "55", edit.Body["message_id"])
	assert.Contains(t, edit.Body["text"], "Ravi")
}

func TestProgressButtonRejectsResolved(t *testing.T) {
	c, bot := newTestBot(t, false)
	store := newStore(t, storage.Record{ComplaintID: "c1", MessageID: "55", Status: complaint.StatusResolved})
	up := &fakeUpdater{}

	c.HandleUpdate(context.Background(), Update{CallbackQuery: &CallbackQuery{
		ID: "cb1", From: User{ID: 7, FirstName: "Ravi"}, Data: "progress:c1",
	}}, up, store)

	assert.Empty(t, up.updates)
	answer, ok := bot.last("answerCallbackQuery")
	require.True(t, ok)
	assert.Contains(t, answer.Body["text"], "Resolved")
}

func TestResolveFlow(t *testing.T) {
	c, bot := newTestBot(t, false)
	store := newStore(t, storage.Record{ComplaintID: "c1", MessageID: "55", Status: complaint.StatusPending})
	up := &fakeUpdater{}
	ctx := context.Background()
	admin := User{ID: 7, FirstName: "Ravi"}

	c.HandleUpdate(ctx, Update{CallbackQuery: &CallbackQuery{
		ID: "cb1", From: admin, Data: "resolve:c1",
		Message: &IncomingMessage{MessageID: 55, Text: "CRITICAL COMPLAINT c1"},
	}}, up, store)

	pending, ok := c.Pending(7)
	require.True(t, ok)
	assert.Equal(t, "c1", pending.ComplaintID)
	assert.Equal(t, "55", pending.MessageID)
	assert.NotZero(t, pending.PromptMessageID)

	c.HandleUpdate(ctx, Update{Message: &IncomingMessage{
		MessageID: 90, From: &admin, Text: "  Doctor attended at Kota  ",
	}}, up, store)

	assert.Equal(t, complaint.Update{Status: complaint.StatusResolved, Resolution: "Doctor attended at Kota"}, up.updates["c1"])
	assert.True(t, store.IsNew("c1"), "resolved complaints leave storage")
	_, ok = c.Pending(7)
	assert.False(t, ok)

	edit, ok := bot.last("editMessageText")
	require.True(t, ok)
	assert.Contains(t, edit.Body["text"], "RESOLVED")
	assert.Contains(t, edit.Body["text"], "Doctor attended at Kota")
	assert.Contains(t, bot.methods(), "deleteMessage", "the prompt is removed")
}

func TestResolveSecondTapCancels(t *testing.T) {
	c, bot := newTestBot(t, false)
	store := newStore(t)
	ctx := context.Background()
	q := &CallbackQuery{ID: "cb", From: User{ID: 3, FirstName: "Asha"}, Data: "resolve:c2"}

	c.HandleUpdate(ctx, Update{CallbackQuery: q}, &fakeUpdater{}, store)
	_, ok := c.Pending(3)
	require.True(t, ok)

	c.HandleUpdate(ctx, Update{CallbackQuery: q}, &fakeUpdater{}, store)
	_, ok = c.Pending(3)
	assert.False(t, ok)
	assert.Contains(t, bot.methods(), "deleteMessage")
}

func TestResolveReplyCancel(t *testing.T) {
	c, _ := newTestBot(t, false)
	store := newStore(t, storage.Record{ComplaintID: "c3", MessageID: "9"})
	up := &fakeUpdater{}
	ctx := context.Background()
	admin := User{ID: 4, FirstName: "Meera"}

	c.HandleUpdate(ctx, Update{CallbackQuery: &CallbackQuery{ID: "cb", From: admin, Data: "resolve:c3"}}, up, store)
	c.HandleUpdate(ctx, Update{Message: &IncomingMessage{From: &admin, Text: "Cancel"}}, up, store)

	assert.Empty(t, up.updates)
	assert.False(t, store.IsNew("c3"))
}

func TestResolveFailureKeepsRecord(t *testing.T) {
	c, bot := newTestBot(t, false)
	store := newStore(t, storage.Record{ComplaintID: "c4", MessageID: "9"})
	up := &fakeUpdater{err: errors.New("backend down")}
	ctx := context.Background()
	admin := User{ID: 5, FirstName: "Dev"}

	c.HandleUpdate(ctx, Update{CallbackQuery: &CallbackQuery{ID: "cb", From: admin, Data: "resolve:c4"}}, up, store)
	c.HandleUpdate(ctx, Update{Message: &IncomingMessage{From: &admin, Text: "Fixed the fan"}}, up, store)

	assert.False(t, store.IsNew("c4"))
	msg, ok := bot.last("sendMessage")
	require.True(t, ok)
	assert.Contains(t, msg.Body["text"], "backend down")
}

func TestUnrelatedMessagesAreIgnored(t *testing.T) {
	c, bot := newTestBot(t, false)
	c.HandleUpdate(context.Background(), Update{Message: &IncomingMessage{From: &User{ID: 1}, Text: "hello"}}, &fakeUpdater{}, newStore(t))
	assert.Empty(t, bot.methods())
}

func TestHandleUpdatesStopsOnCancel(t *testing.T) {
	c, bot := newTestBot(t, false)
	ctx, cancel := context.WithCancel(context.Background())

	store := newStore(t)
	done := make(chan error, 1)
	go func() { done <- c.HandleUpdates(ctx, &fakeUpdater{}, store) }()

	require.Eventually(t, func() bool {
		for _, m := range bot.methods() {
			if m == "getUpdates" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("HandleUpdates did not stop")
	}
}
