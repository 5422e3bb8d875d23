package session

import (
	"context"
	"io"
	"time"

	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
)

// Live resolves the supervisor's current session on every call, so a task
// that outlives a restart keeps working against the replacement handle.
type Live struct {
	sup *Supervisor
}

func (s *Supervisor) Live() *Live {
	return &Live{sup: s}
}

func (l *Live) session() (*Session, error) {
	return l.sup.Current()
}

func (l *Live) Self(ctx context.Context) (*telegramapi.User, error) {
	sess, err := l.session()
	if err != nil {
		return nil, err
	}
	return sess.Self(ctx)
}

func (l *Live) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegramapi.Update, int64, error) {
	sess, err := l.session()
	if err != nil {
		return nil, offset, err
	}
	return sess.GetUpdates(ctx, offset, timeout)
}

func (l *Live) BotUsername(ctx context.Context) (string, error) {
	sess, err := l.session()
	if err != nil {
		return "", err
	}
	return sess.BotUsername(ctx)
}

func (l *Live) GetStickerSet(ctx context.Context, name string) (*telegramapi.StickerSet, error) {
	sess, err := l.session()
	if err != nil {
		return nil, err
	}
	return sess.GetStickerSet(ctx, name)
}

func (l *Live) CreateNewStickerSet(ctx context.Context, userID int64, name, title string, stickers []telegramapi.InputSticker, stickerType string) error {
	sess, err := l.session()
	if err != nil {
		return err
	}
	return sess.CreateNewStickerSet(ctx, userID, name, title, stickers, stickerType)
}

func (l *Live) AddStickerToSet(ctx context.Context, userID int64, name string, sticker telegramapi.InputSticker) error {
	sess, err := l.session()
	if err != nil {
		return err
	}
	return sess.AddStickerToSet(ctx, userID, name, sticker)
}

func (l *Live) GetFile(ctx context.Context, fileID string) (*telegramapi.File, error) {
	sess, err := l.session()
	if err != nil {
		return nil, err
	}
	return sess.GetFile(ctx, fileID)
}

func (l *Live) DownloadFile(ctx context.Context, filePath string, w io.Writer) (int64, error) {
	sess, err := l.session()
	if err != nil {
		return 0, err
	}
	return sess.DownloadFile(ctx, filePath, w)
}

func (l *Live) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error) {
	sess, err := l.session()
	if err != nil {
		return 0, err
	}
	return sess.SendMessage(ctx, chatID, text, replyTo)
}

func (l *Live) EditMessage(ctx context.Context, chatID, messageID int64, text string) error {
	sess, err := l.session()
	if err != nil {
		return err
	}
	return sess.EditMessage(ctx, chatID, messageID, text)
}
