package botruntime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cailuoli520/TelegramStickerPorter/internal/porter"
	"github.com/cailuoli520/TelegramStickerPorter/internal/session"
	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
)

// fakeBotAPI is an in-process Bot API that records every call.
type fakeBotAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	calls      map[string]int
	sent       []telegramapi.SendMessageRequest
	edits      []telegramapi.EditMessageTextRequest
	sets       map[string]telegramapi.StickerSet
	failAdd    map[string]bool
	updates    []telegramapi.Update
	lastMsgID  int64
	lastOffset int64
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	t.Helper()
	f := &fakeBotAPI{
		t:       t,
		calls:   map[string]int{},
		sets:    map[string]telegramapi.StickerSet{},
		failAdd: map[string]bool{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/") {
		parts := strings.Split(r.URL.Path, "/")
		_, _ = io.WriteString(w, "bytes-"+parts[len(parts)-1])
		return
	}
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()

	switch method {
	case "getMe":
		f.ok(w, telegramapi.User{ID: 777, IsBot: true, Username: "Porter_Bot"})
	case "getUpdates":
		var req struct {
			Offset int64 `json:"offset"`
		}
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		f.lastOffset = req.Offset
		var out []telegramapi.Update
		for _, u := range f.updates {
			if u.UpdateID >= req.Offset {
				out = append(out, u)
			}
		}
		f.mu.Unlock()
		if len(out) == 0 {
			time.Sleep(20 * time.Millisecond)
		}
		f.ok(w, out)
	case "getStickerSet":
		var req struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		set, found := f.sets[req.Name]
		f.mu.Unlock()
		if !found {
			f.fail(w, "Bad Request: STICKERSET_INVALID")
			return
		}
		f.ok(w, set)
	case "addStickerToSet":
		var req struct {
			Sticker telegramapi.InputSticker `json:"sticker"`
		}
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		failed := f.failAdd[req.Sticker.Sticker]
		f.mu.Unlock()
		if failed {
			f.fail(w, "Bad Request: STICKER_PNG_DIMENSIONS")
			return
		}
		f.ok(w, true)
	case "getFile":
		var req struct {
			FileID string `json:"file_id"`
		}
		_ = json.Unmarshal(body, &req)
		f.ok(w, telegramapi.File{FileID: req.FileID, FilePath: "stickers/" + req.FileID + ".webp"})
	case "sendMessage":
		var req telegramapi.SendMessageRequest
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		f.lastMsgID++
		id := f.lastMsgID
		f.sent = append(f.sent, req)
		f.mu.Unlock()
		f.ok(w, telegramapi.Message{MessageID: id, Chat: &telegramapi.Chat{ID: req.ChatID, Type: "private"}})
	case "editMessageText":
		var req telegramapi.EditMessageTextRequest
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		f.edits = append(f.edits, req)
		f.mu.Unlock()
		f.ok(w, true)
	case "getMyCommands":
		f.ok(w, []telegramapi.BotCommand{{Command: "start", Description: "x"}})
	default:
		f.ok(w, true)
	}
}

func (f *fakeBotAPI) ok(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func (f *fakeBotAPI) fail(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": desc})
}

func (f *fakeBotAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeBotAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Text)
	}
	return out
}

func (f *fakeBotAPI) lastEdit() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return ""
	}
	return f.edits[len(f.edits)-1].Text
}

func (f *fakeBotAPI) addSet(name string, n int) {
	set := telegramapi.StickerSet{Name: name, Title: strings.ToUpper(name), StickerType: telegramapi.StickerTypeRegular}
	for i := 0; i < n; i++ {
		set.Stickers = append(set.Stickers, telegramapi.Sticker{FileID: fmt.Sprintf("f%d", i), Emoji: "🙂"})
	}
	f.mu.Lock()
	f.sets[name] = set
	f.mu.Unlock()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noPacing() porter.Options {
	return porter.Options{
		Sleep:      func(context.Context, time.Duration) error { return nil },
		PackSuffix: func() string { return "0badc0de" },
	}
}

func newTestRuntime(t *testing.T, api *fakeBotAPI, opts Options, extra func(*Dependencies)) (*Runtime, *session.Supervisor) {
	t.Helper()
	logger := quietLogger()
	sup := session.NewSupervisor(session.NewFactory(session.FactoryOptions{
		ClientOptions: telegramapi.Options{BaseURL: api.srv.URL, Token: "123:TEST"},
		Logger:        logger,
	}), logger)
	deps := Dependencies{Sessions: sup, API: sup.Live(), Logger: logger}
	if extra != nil {
		extra(&deps)
	}
	if opts.Porter.Sleep == nil {
		opts.Porter = noPacing()
	}
	rt, err := New(deps, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(sup.Stop)
	return rt, sup
}

func privateMessage(id int64, chatID int64, text string) *telegramapi.Message {
	return &telegramapi.Message{
		MessageID: id,
		Chat:      &telegramapi.Chat{ID: chatID, Type: "private"},
		From:      &telegramapi.User{ID: chatID, Username: "alice"},
		Text:      text,
	}
}

func updateWithText(id, chatID int64, text string) telegramapi.Update {
	return telegramapi.Update{UpdateID: id, Message: privateMessage(id, chatID, text)}
}
