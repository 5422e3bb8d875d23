package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
	"golang.org/x/sync/singleflight"
)

var (
	ErrSession       = errors.New("session error")
	ErrSessionClosed = errors.New("session already disposed")
	ErrNoSession     = errors.New("no active session")
)

// SessionError is returned when creating or restarting the platform session fails.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	if e == nil {
		return ErrSession.Error()
	}
	if e.Err == nil {
		return fmt.Sprintf("session %s failed", e.Op)
	}
	return fmt.Sprintf("session %s failed: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSession}
	}
	return []error{ErrSession, e.Err}
}

// Session is a disposable connection to the Bot API. It is created and closed
// only by the Supervisor; everybody else borrows it.
type Session struct {
	id        uint64
	client    *telegramapi.Client
	createdAt time.Time
	closed    atomic.Bool

	selfGroup singleflight.Group
	selfMu    sync.Mutex
	self      *telegramapi.User
}

var sessionSeq atomic.Uint64

// New wraps an API client in a Session. Callers normally go through a Factory.
func New(client *telegramapi.Client) *Session {
	return &Session{
		id:        sessionSeq.Add(1),
		client:    client,
		createdAt: time.Now(),
	}
}

func (s *Session) ID() uint64 {
	return s.id
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

func (s *Session) api() (*telegramapi.Client, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	return s.client, nil
}

// close is idempotent and reports whether this call performed the teardown.
func (s *Session) close() bool {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return false
	}
	s.client.CloseIdleConnections()
	return true
}

// Self returns the bot identity, asking Telegram at most once per session.
func (s *Session) Self(ctx context.Context) (*telegramapi.User, error) {
	s.selfMu.Lock()
	cached := s.self
	s.selfMu.Unlock()
	if cached != nil {
		return cached, nil
	}
	v, err, _ := s.selfGroup.Do("self", func() (any, error) {
		api, err := s.api()
		if err != nil {
			return nil, err
		}
		me, err := api.GetMe(ctx)
		if err != nil {
			return nil, err
		}
		s.selfMu.Lock()
		s.self = me
		s.selfMu.Unlock()
		return me, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*telegramapi.User), nil
}

func (s *Session) BotUsername(ctx context.Context) (string, error) {
	me, err := s.Self(ctx)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(me.Username)), nil
}

func (s *Session) Ping(ctx context.Context) error {
	api, err := s.api()
	if err != nil {
		return err
	}
	_, err = api.GetMyCommands(ctx, &telegramapi.ScopeAllPrivateChats)
	return err
}

func (s *Session) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegramapi.Update, int64, error) {
	api, err := s.api()
	if err != nil {
		return nil, offset, err
	}
	return api.GetUpdates(ctx, offset, timeout)
}

func (s *Session) GetStickerSet(ctx context.Context, name string) (*telegramapi.StickerSet, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	return api.GetStickerSet(ctx, name)
}

func (s *Session) CreateNewStickerSet(ctx context.Context, userID int64, name, title string, stickers []telegramapi.InputSticker, stickerType string) error {
	api, err := s.api()
	if err != nil {
		return err
	}
	return api.CreateNewStickerSet(ctx, userID, name, title, stickers, stickerType)
}

func (s *Session) AddStickerToSet(ctx context.Context, userID int64, name string, sticker telegramapi.InputSticker) error {
	api, err := s.api()
	if err != nil {
		return err
	}
	return api.AddStickerToSet(ctx, userID, name, sticker)
}

func (s *Session) GetFile(ctx context.Context, fileID string) (*telegramapi.File, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	return api.GetFile(ctx, fileID)
}

func (s *Session) DownloadFile(ctx context.Context, filePath string, w io.Writer) (int64, error) {
	api, err := s.api()
	if err != nil {
		return 0, err
	}
	return api.DownloadFile(ctx, filePath, w)
}

// SendMessage sends an HTML message with link previews disabled.
func (s *Session) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error) {
	api, err := s.api()
	if err != nil {
		return 0, err
	}
	return api.SendMessage(ctx, telegramapi.SendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             telegramapi.ParseModeHTML,
		DisableWebPagePreview: true,
		ReplyToMessageID:      replyTo,
	})
}

func (s *Session) EditMessage(ctx context.Context, chatID, messageID int64, text string) error {
	api, err := s.api()
	if err != nil {
		return err
	}
	return api.EditMessageText(ctx, telegramapi.EditMessageTextRequest{
		ChatID:                chatID,
		MessageID:             messageID,
		Text:                  text,
		ParseMode:             telegramapi.ParseModeHTML,
		DisableWebPagePreview: true,
	})
}

// Factory builds a ready-to-use Session.
type Factory func(ctx context.Context) (*Session, error)

type FactoryOptions struct {
	ClientOptions      telegramapi.Options
	Commands           []telegramapi.BotCommand
	DropPendingUpdates bool
	Logger             *slog.Logger
}

// DefaultCommands is the command menu registered for private chats.
func DefaultCommands() []telegramapi.BotCommand {
	return []telegramapi.BotCommand{
		{Command: "start", Description: "启动机器人"},
		{Command: "info", Description: "关于"},
		{Command: "download", Description: "下载贴纸包"},
		{Command: "help_download", Description: "下载帮助"},
	}
}

// NewFactory returns a Factory that connects to the Bot API, verifies the
// token with getMe, registers the command menu and optionally drops the
// backlog of updates.
func NewFactory(opts FactoryOptions) Factory {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	commands := opts.Commands
	if commands == nil {
		commands = DefaultCommands()
	}
	return func(ctx context.Context) (*Session, error) {
		if strings.TrimSpace(opts.ClientOptions.Token) == "" {
			return nil, fmt.Errorf("missing telegram.bot_token")
		}
		sess := New(telegramapi.New(opts.ClientOptions))

		me, err := sess.client.GetMe(ctx)
		if err != nil {
			sess.close()
			return nil, fmt.Errorf("getMe: %w", err)
		}
		sess.self = me
		logger.Info("session_bot_identity", "session_id", sess.id, "username", me.Username)

		for _, cmd := range commands {
			logger.Debug("session_register_command", "command", cmd.Command, "description", cmd.Description)
		}
		if len(commands) > 0 {
			if err := sess.client.SetMyCommands(ctx, commands, &telegramapi.ScopeAllPrivateChats); err != nil {
				sess.close()
				return nil, fmt.Errorf("setMyCommands: %w", err)
			}
		}
		if opts.DropPendingUpdates {
			if err := sess.client.DropPendingUpdates(ctx); err != nil {
				sess.close()
				return nil, fmt.Errorf("drop pending updates: %w", err)
			}
			logger.Info("session_pending_updates_dropped", "session_id", sess.id)
		}
		return sess, nil
	}
}
