package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cailuoli520/TelegramStickerPorter/internal/commands"
	"github.com/cailuoli520/TelegramStickerPorter/internal/configutil"
	"github.com/cailuoli520/TelegramStickerPorter/internal/logutil"
	"github.com/cailuoli520/TelegramStickerPorter/internal/porter"
	"github.com/cailuoli520/TelegramStickerPorter/internal/progress"
	"github.com/cailuoli520/TelegramStickerPorter/internal/retryutil"
	"github.com/cailuoli520/TelegramStickerPorter/internal/session"
	"github.com/cailuoli520/TelegramStickerPorter/internal/statepaths"
	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
	"github.com/spf13/cobra"
)

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <dir> <link>",
		Short: "Download every sticker of a pack into a local directory",
		Example: "  stickerporter download ./out https://t.me/addstickers/src_pack\n" +
			"  stickerporter download ~/stickers https://t.me/addemoji/src_emoji --output yaml",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(configutil.FlagOrViperString(cmd, "output", ""))
			if err != nil {
				return err
			}
			_, setName, err := commands.ParseLink(args[1])
			if err != nil {
				return err
			}

			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			clientOpts, err := clientOptionsFromFlags(cmd, pollTimeoutFromFlags(cmd))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sup := session.NewSupervisor(session.NewFactory(session.FactoryOptions{
				ClientOptions: clientOpts,
				Commands:      []telegramapi.BotCommand{},
				Logger:        logger,
			}), logger)
			if err := retryutil.Do(ctx, logger, "session_init", retryutil.Policy{Attempts: 3}, sup.EnsureActive); err != nil {
				return err
			}
			defer sup.Stop()

			root := configutil.FlagOrViperString(cmd, "download-root", "download.root_dir")
			task := porter.NewDownloadTask(porter.DownloadRequest{
				SourceSet: setName,
				Dir:       statepaths.ResolveDownloadDir(statepaths.ExpandHomePath(root), args[0]),
			})

			var console io.Writer = cmd.ErrOrStderr()
			if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
				console = io.Discard
			}
			runDownloadTask(ctx, sup.Live(), task, console, logger)

			sum := task.Summary()
			if err := writeSummary(cmd.OutOrStdout(), format, sum); err != nil {
				return err
			}
			if path := configutil.FlagOrViperString(cmd, "summary-file", ""); path != "" {
				if err := writeSummaryFile(path, sum); err != nil {
					return err
				}
				logger.Info("download_summary_saved", "path", path)
			}
			if task.State() == porter.StateFailedFatal {
				if err := task.Err(); err != nil {
					return err
				}
				return errors.New("download failed")
			}
			return nil
		},
	}

	addTelegramFlags(cmd)
	cmd.Flags().String("download-root", "", "Directory a relative <dir> resolves against (default download.root_dir).")
	cmd.Flags().String("output", "table", "Summary format: table|yaml|json.")
	cmd.Flags().Bool("quiet", false, "Do not print progress lines.")
	cmd.Flags().String("summary-file", "", "Also save the summary to this file (json for a .json path, yaml otherwise).")
	return cmd
}

// runDownloadTask runs task with progress printed to console instead of a
// chat message.
func runDownloadTask(ctx context.Context, platform porter.Platform, task *porter.Task, console io.Writer, logger *slog.Logger) {
	opts := porterOptionsFromViper()
	opts.Logger = logger
	reporter := progress.NewReporter(progress.NewConsole(console), logger)
	task.StatusMessageID = reporter.Open(ctx, 0, porter.DownloadStartText, 0)
	porter.NewEngine(platform, opts).Run(ctx, task, reporter)
}
