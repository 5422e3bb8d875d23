// Package porter runs clone and download tasks against a sticker platform.
package porter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cailuoli520/TelegramStickerPorter/internal/fsstore"
	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
)

const (
	DefaultCloneDelay      = 100 * time.Millisecond
	DefaultDownloadDelay   = 200 * time.Millisecond
	DefaultMaxReportErrors = 5

	finalEditTimeout = 30 * time.Second
)

// Platform is the sticker API surface a task needs. Calls resolve the
// current bot session when they are made.
type Platform interface {
	BotUsername(ctx context.Context) (string, error)
	GetStickerSet(ctx context.Context, name string) (*telegramapi.StickerSet, error)
	CreateNewStickerSet(ctx context.Context, userID int64, name, title string, stickers []telegramapi.InputSticker, stickerType string) error
	AddStickerToSet(ctx context.Context, userID int64, name string, sticker telegramapi.InputSticker) error
	GetFile(ctx context.Context, fileID string) (*telegramapi.File, error)
	DownloadFile(ctx context.Context, filePath string, w io.Writer) (int64, error)
}

// StatusWriter replaces the content of a task's status message.
type StatusWriter interface {
	Update(ctx context.Context, messageID int64, text string)
}

// Finisher is implemented by status writers that treat the terminal report
// specially.
type Finisher interface {
	Finish(ctx context.Context, messageID int64, text string)
}

type Options struct {
	CloneDelay      time.Duration
	DownloadDelay   time.Duration
	MaxReportErrors int
	Logger          *slog.Logger

	// Sleep and PackSuffix are replaceable in tests.
	Sleep      func(ctx context.Context, d time.Duration) error
	PackSuffix func() string
}

func DefaultOptions() Options {
	return Options{
		CloneDelay:      DefaultCloneDelay,
		DownloadDelay:   DefaultDownloadDelay,
		MaxReportErrors: DefaultMaxReportErrors,
	}
}

type Engine struct {
	platform Platform
	opts     Options
	logger   *slog.Logger
}

func NewEngine(platform Platform, opts Options) *Engine {
	if opts.CloneDelay < 0 {
		opts.CloneDelay = 0
	}
	if opts.DownloadDelay < 0 {
		opts.DownloadDelay = 0
	}
	if opts.MaxReportErrors <= 0 {
		opts.MaxReportErrors = DefaultMaxReportErrors
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if opts.PackSuffix == nil {
		opts.PackSuffix = NewPackSuffix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{platform: platform, opts: opts, logger: logger}
}

// Run drives t to a terminal state. Item failures are folded into the task;
// only setup failures end it in StateFailedFatal. A nil status discards
// progress output.
func (e *Engine) Run(ctx context.Context, t *Task, status StatusWriter) {
	if t == nil {
		return
	}
	if status == nil {
		status = discardStatus{}
	}
	logger := e.logger.With("task_id", t.ID, "kind", string(t.Kind), "source", t.SourceSet)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			fe := newFatal(ErrTaskAborted, fmt.Errorf("panic: %v", r))
			t.abort(fe)
			logger.Error("task_panic", "panic", fmt.Sprint(r))
			e.finalEdit(ctx, t, status, fatalReport(t.Kind, fe))
		}
	}()

	logger.Info("task_start", "chat_id", t.ChatID, "requester_id", t.RequesterID)
	switch t.Kind {
	case KindClone:
		e.runClone(ctx, t, status, logger)
	case KindDownload:
		e.runDownload(ctx, t, status, logger)
	default:
		panic(fmt.Sprintf("unknown task kind %q", t.Kind))
	}

	p := t.Progress()
	logger.Info("task_done",
		"state", t.State().String(),
		"items", t.ItemCount(),
		"attempted", p.Attempted,
		"succeeded", p.Succeeded,
		"failed", len(t.ItemErrors()),
		"duration", time.Since(start).String(),
	)
}

func (e *Engine) runClone(ctx context.Context, t *Task, status StatusWriter, logger *slog.Logger) {
	e.advance(t, StateFetchingSource, logger)
	set, err := e.platform.GetStickerSet(ctx, t.SourceSet)
	if err == nil && set == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		e.fail(ctx, t, status, newFatal(ErrSourceNotFound, err), logger)
		return
	}
	t.setSource(set)
	items := t.Items()
	status.Update(ctx, t.StatusMessageID, cloneSourceSummary(set.Title, len(items), set.StickerType))
	if len(items) == 0 {
		e.fail(ctx, t, status, newFatal(ErrEmptySourceSet, nil), logger)
		return
	}

	e.advance(t, StatePreparingDestination, logger)
	username, err := e.platform.BotUsername(ctx)
	if err != nil {
		e.fail(ctx, t, status, newFatal(ErrInvalidDestinationName, err), logger)
		return
	}
	name, err := GeneratePackName(e.opts.PackSuffix(), username)
	if err != nil {
		e.fail(ctx, t, status, newFatal(ErrInvalidDestinationName, err), logger)
		return
	}
	t.Destination.Name = name

	t.attempt()
	if err := e.platform.CreateNewStickerSet(ctx, t.RequesterID, name, t.Destination.Title, []telegramapi.InputSticker{inputSticker(items[0])}, set.StickerType); err != nil {
		e.fail(ctx, t, status, newFatal(ErrPackCreationFailed, err), logger)
		return
	}
	t.succeed()
	t.mu.Lock()
	t.shareLink = ShareLink(set.StickerType, name)
	t.mu.Unlock()
	logger.Info("pack_created", "pack", name)
	status.Update(ctx, t.StatusMessageID, packCreatedText(t.Destination.Title))

	e.advance(t, StateProcessingItems, logger)
	remaining := len(items) - 1
	for i := 1; i < len(items); i++ {
		if err := ctx.Err(); err != nil {
			e.skipRemaining(t, items, i, err, cloneLabel)
			break
		}
		status.Update(ctx, t.StatusMessageID, cloneProgressText(i, remaining))
		t.attempt()
		if err := e.platform.AddStickerToSet(ctx, t.RequesterID, name, inputSticker(items[i])); err != nil {
			reason := itemReason(err)
			t.recordItemError(ItemError{Index: i, Label: cloneItemLabel(i), Reason: reason})
			logger.Warn("sticker_add_error", "index", i, "error", reason)
		} else {
			t.succeed()
		}
		_ = e.opts.Sleep(ctx, e.opts.CloneDelay)
	}

	e.finish(ctx, t, status, cloneReport(t), logger)
}

func (e *Engine) runDownload(ctx context.Context, t *Task, status StatusWriter, logger *slog.Logger) {
	e.advance(t, StateFetchingSource, logger)
	dir := strings.TrimSpace(t.Destination.Dir)
	if dir == "" {
		e.fail(ctx, t, status, newFatal(ErrDestinationUnavailable, errors.New("empty directory")), logger)
		return
	}
	if err := fsstore.EnsureDir(dir, 0); err != nil {
		e.fail(ctx, t, status, newFatal(ErrDestinationUnavailable, err), logger)
		return
	}
	set, err := e.platform.GetStickerSet(ctx, t.SourceSet)
	if err == nil && set == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		e.fail(ctx, t, status, newFatal(ErrSourceNotFound, err), logger)
		return
	}
	t.setSource(set)
	items := t.Items()

	e.advance(t, StatePreparingDestination, logger)
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	t.mu.Lock()
	t.resolvedDir = abs
	setName := t.sourceName
	t.mu.Unlock()
	status.Update(ctx, t.StatusMessageID, downloadSourceSummary(set.Title, len(items), set.StickerType, abs))

	e.advance(t, StateProcessingItems, logger)
	for i, st := range items {
		if err := ctx.Err(); err != nil {
			e.skipRemaining(t, items, i, err, downloadItemLabel)
			break
		}
		status.Update(ctx, t.StatusMessageID, downloadProgressText(i, len(items), t.Progress().Succeeded))
		t.attempt()
		path, err := e.downloadItem(ctx, dir, setName, i, st)
		if err != nil {
			reason := itemReason(err)
			t.recordItemError(ItemError{Index: i, Label: downloadItemLabel(i, st), Reason: reason})
			logger.Warn("sticker_download_error", "index", i, "error", reason)
		} else {
			t.succeed()
			t.addFile(path)
		}
		_ = e.opts.Sleep(ctx, e.opts.DownloadDelay)
	}

	e.finish(ctx, t, status, downloadReport(t, e.opts.MaxReportErrors), logger)
}

// downloadItem writes one sticker into dir. The file appears under its final
// name only after the transfer completes.
func (e *Engine) downloadItem(ctx context.Context, dir, setName string, index int, st telegramapi.Sticker) (string, error) {
	file, err := e.platform.GetFile(ctx, st.FileID)
	if err != nil {
		return "", fmt.Errorf("无法获取文件信息: %w", err)
	}
	if file == nil || strings.TrimSpace(file.FilePath) == "" {
		return "", errors.New("无法获取文件信息")
	}
	path := filepath.Join(dir, FileName(setName, index, Extension(st)))
	var copyErr error
	err = fsstore.WriteStream(path, fsstore.FileOptions{}, func(w io.Writer) error {
		_, copyErr = e.platform.DownloadFile(ctx, file.FilePath, w)
		return copyErr
	})
	if copyErr != nil {
		return "", fmt.Errorf("下载文件失败: %w", copyErr)
	}
	if err != nil {
		return "", fmt.Errorf("无法写入文件: %w", err)
	}
	return path, nil
}

func cloneLabel(i int, _ telegramapi.Sticker) string { return cloneItemLabel(i) }

// skipRemaining records every item from start on as failed without
// attempting it.
func (e *Engine) skipRemaining(t *Task, items []telegramapi.Sticker, start int, cause error, label func(int, telegramapi.Sticker) string) {
	reason := "任务已取消"
	if errors.Is(cause, context.DeadlineExceeded) {
		reason = "任务超时"
	}
	for j := start; j < len(items); j++ {
		t.recordItemError(ItemError{Index: j, Label: label(j, items[j]), Reason: reason})
	}
}

func (e *Engine) advance(t *Task, next State, logger *slog.Logger) {
	if err := t.transition(next); err != nil {
		logger.Error("task_transition_error", "error", err.Error())
		return
	}
	logger.Debug("task_state", "state", next.String())
}

func (e *Engine) fail(ctx context.Context, t *Task, status StatusWriter, fe *FatalError, logger *slog.Logger) {
	t.mu.Lock()
	t.fatal = fe
	t.mu.Unlock()
	e.advance(t, StateFailedFatal, logger)
	logger.Error("task_fatal", "error", fe.Error())
	e.finalEdit(ctx, t, status, fatalReport(t.Kind, fe))
}

func (e *Engine) finish(ctx context.Context, t *Task, status StatusWriter, report string, logger *slog.Logger) {
	e.advance(t, StateFinalizing, logger)
	e.finalEdit(ctx, t, status, report)
	e.advance(t, StateCompleted, logger)
}

// finalEdit delivers the terminal report even when ctx is already done.
func (e *Engine) finalEdit(ctx context.Context, t *Task, status StatusWriter, text string) {
	editCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalEditTimeout)
	defer cancel()
	if f, ok := status.(Finisher); ok {
		f.Finish(editCtx, t.StatusMessageID, text)
		return
	}
	status.Update(editCtx, t.StatusMessageID, text)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type discardStatus struct{}

func (discardStatus) Update(context.Context, int64, string) {}
