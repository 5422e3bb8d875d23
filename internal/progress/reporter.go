// Package progress keeps a task's status visible to the user by editing one
// chat message in place.
package progress

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Transport is the slice of the chat API the reporter needs.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error)
	EditMessage(ctx context.Context, chatID, messageID int64, text string) error
}

// Reporter sends one status message and edits it afterwards. Transport
// failures are logged and swallowed; they never reach the caller.
type Reporter struct {
	transport Transport
	logger    *slog.Logger

	mu        sync.Mutex
	chatID    int64
	messageID int64
	edits     int
	finished  bool
}

func NewReporter(t Transport, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{transport: t, logger: logger}
}

// Open sends the initial status message and remembers its identity. It
// returns 0 when the message could not be sent.
func (r *Reporter) Open(ctx context.Context, chatID int64, text string, replyTo int64) int64 {
	r.mu.Lock()
	r.chatID = chatID
	r.mu.Unlock()

	id := Send(ctx, r.transport, r.logger, chatID, text, replyTo)
	r.mu.Lock()
	r.messageID = id
	r.mu.Unlock()
	return id
}

// Update replaces the content of the status message with text.
func (r *Reporter) Update(ctx context.Context, messageID int64, text string) {
	r.mu.Lock()
	done := r.finished
	r.mu.Unlock()
	if done {
		return
	}
	r.edit(ctx, messageID, text)
}

func (r *Reporter) edit(ctx context.Context, messageID int64, text string) {
	if strings.TrimSpace(text) == "" || r.transport == nil {
		return
	}
	r.mu.Lock()
	chatID := r.chatID
	r.edits++
	r.mu.Unlock()

	if err := r.transport.EditMessage(ctx, chatID, messageID, text); err != nil {
		r.logger.Warn("telegram_edit_error", "chat_id", chatID, "message_id", messageID, "error", err.Error())
	}
}

// Finish delivers the terminal report. Later Update and Finish calls are
// dropped so a task ends with exactly one final edit.
func (r *Reporter) Finish(ctx context.Context, messageID int64, text string) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.mu.Unlock()
	r.edit(ctx, messageID, text)
}

func (r *Reporter) Finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

func (r *Reporter) MessageID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messageID
}

// Edits counts Update calls, including ones the transport rejected.
func (r *Reporter) Edits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.edits
}

// Send delivers a one-off message. Failures are logged and reported as id 0.
func Send(ctx context.Context, t Transport, logger *slog.Logger, chatID int64, text string, replyTo int64) int64 {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(text) == "" || t == nil {
		return 0
	}
	id, err := t.SendMessage(ctx, chatID, text, replyTo)
	if err != nil {
		logger.Error("telegram_send_error", "chat_id", chatID, "error", err.Error())
		return 0
	}
	logger.Debug("telegram_send_ok", "chat_id", chatID, "message_id", id)
	return id
}
