package botruntime

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cailuoli520/TelegramStickerPorter/internal/commands"
	"github.com/cailuoli520/TelegramStickerPorter/internal/outputfmt"
	"github.com/cailuoli520/TelegramStickerPorter/internal/porter"
	"github.com/cailuoli520/TelegramStickerPorter/internal/progress"
	"github.com/cailuoli520/TelegramStickerPorter/internal/statedb"
	"github.com/cailuoli520/TelegramStickerPorter/internal/statepaths"
	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
)

const (
	sessionUnavailableText  = "❌ 机器人连接暂时不可用，请稍后重试。"
	downloadDirRejectedText = "❌ 下载目录必须位于机器人的下载根目录内，请使用相对路径。"
)

// HandleMessage routes one incoming message. Clone and download commands are
// validated here; accepted ones are detached and HandleMessage returns once
// the initial status message is out.
func (r *Runtime) HandleMessage(ctx context.Context, msg *telegramapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	if !msg.Chat.IsPrivate() {
		r.logger.Debug("telegram_ignore_non_private", "chat_id", chatID, "chat_type", msg.Chat.Type)
		return
	}
	if !r.chatAllowed(chatID) {
		r.logger.Warn("telegram_unauthorized_chat", "chat_id", chatID)
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	route := commands.Classify(text)
	r.logger.Debug("telegram_route", "chat_id", chatID, "route", route.String())
	switch route {
	case commands.RouteCloneHelp:
		r.reply(ctx, msg, commands.CloneHelpText())
	case commands.RouteInfo:
		r.reply(ctx, msg, commands.InfoText())
	case commands.RouteDownloadHelp:
		r.reply(ctx, msg, commands.DownloadHelpText())
	case commands.RouteClone:
		cmd, err := commands.ParseClone(text)
		if err != nil {
			r.replyValidation(ctx, msg, err)
			return
		}
		r.startTask(ctx, msg, porter.NewCloneTask(porter.CloneRequest{
			SourceSet:   cmd.SourceSet,
			Title:       cmd.Title,
			RequesterID: requesterID(msg),
			ChatID:      chatID,
		}), porter.CloneStartText)
	case commands.RouteDownload:
		cmd, err := commands.ParseDownload(text)
		if err != nil {
			r.replyValidation(ctx, msg, err)
			return
		}
		dir, err := r.downloadDir(cmd.Dir)
		if err != nil {
			r.logger.Warn("download_dir_rejected", "chat_id", chatID, "dir", cmd.Dir, "error", err.Error())
			r.reply(ctx, msg, downloadDirRejectedText)
			return
		}
		r.startTask(ctx, msg, porter.NewDownloadTask(porter.DownloadRequest{
			SourceSet:   cmd.SourceSet,
			Dir:         dir,
			RequesterID: requesterID(msg),
			ChatID:      chatID,
		}), porter.DownloadStartText)
	}
}

func (r *Runtime) downloadDir(target string) (string, error) {
	if r.opts.AllowOutsideRoot {
		return statepaths.ResolveDownloadDir(r.opts.DownloadRoot, target), nil
	}
	return statepaths.ConfineDownloadDir(r.opts.DownloadRoot, target)
}

func requesterID(msg *telegramapi.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	return msg.Chat.ID
}

func (r *Runtime) reply(ctx context.Context, msg *telegramapi.Message, text string) {
	progress.Send(ctx, r.deps.API, r.logger, msg.Chat.ID, text, msg.MessageID)
}

func (r *Runtime) replyValidation(ctx context.Context, msg *telegramapi.Message, err error) {
	var ve *commands.ValidationError
	if !errors.As(err, &ve) {
		r.logger.Error("command_parse_error", "error", err.Error())
		return
	}
	r.logger.Info("command_rejected", "chat_id", msg.Chat.ID, "reason", ve.Message)
	r.reply(ctx, msg, ve.Message)
}

// startTask makes sure a session exists, sends the status message and runs
// the task on its own goroutine under the runtime's task context.
func (r *Runtime) startTask(ctx context.Context, msg *telegramapi.Message, task *porter.Task, startText string) {
	if err := r.deps.Sessions.EnsureActive(ctx); err != nil {
		r.logger.Error("session_ensure_error", "task_id", task.ID, "error", outputfmt.FormatErrorForDisplay(err))
		r.reply(ctx, msg, sessionUnavailableText)
		return
	}

	reporter := progress.NewReporter(r.deps.API, r.logger)
	task.StatusMessageID = reporter.Open(ctx, msg.Chat.ID, startText, 0)

	r.running.Add(1)
	r.tasks.Go(func() {
		defer r.running.Add(-1)
		started := time.Now()
		r.engine.Run(r.taskCtx, task, reporter)
		r.recordTask(task, started)
	})
}

func (r *Runtime) recordTask(task *porter.Task, started time.Time) {
	if r.deps.Tasks == nil {
		return
	}
	sum := task.Summary()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.deps.Tasks.RecordTask(ctx, statedb.TaskRecord{
		ID:         sum.ID,
		Kind:       string(sum.Kind),
		ChatID:     task.ChatID,
		Source:     sum.Source,
		State:      sum.State,
		Total:      sum.Total,
		Succeeded:  sum.Succeeded,
		Failed:     sum.Failed,
		Error:      sum.Fatal,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}); err != nil {
		r.logger.Warn("task_record_error", "task_id", task.ID, "error", err.Error())
	}
}
