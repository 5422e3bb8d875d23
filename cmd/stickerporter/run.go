package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cailuoli520/TelegramStickerPorter/internal/botruntime"
	"github.com/cailuoli520/TelegramStickerPorter/internal/configutil"
	"github.com/cailuoli520/TelegramStickerPorter/internal/logutil"
	"github.com/cailuoli520/TelegramStickerPorter/internal/session"
	"github.com/cailuoli520/TelegramStickerPorter/internal/statedb"
	"github.com/cailuoli520/TelegramStickerPorter/internal/statepaths"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot (long polling, watchdog, optional health endpoint)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			pollTimeout := pollTimeoutFromFlags(cmd)
			clientOpts, err := clientOptionsFromFlags(cmd, pollTimeout)
			if err != nil {
				return err
			}
			allowed, err := configutil.FlagOrViperInt64s(cmd, "telegram-allowed-chat-id", "telegram.allowed_chat_ids")
			if err != nil {
				return fmt.Errorf("telegram.allowed_chat_ids: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dbPath := statepaths.StateDBPath()
			db, err := statedb.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(); err != nil {
				return err
			}
			logger.Info("statedb_open", "path", dbPath)

			sup := session.NewSupervisor(session.NewFactory(session.FactoryOptions{
				ClientOptions:      clientOpts,
				Commands:           session.DefaultCommands(),
				DropPendingUpdates: configutil.FlagOrViperBool(cmd, "telegram-drop-pending-updates", "telegram.drop_pending_updates"),
				Logger:             logger,
			}), logger)

			rt, err := botruntime.New(botruntime.Dependencies{
				Sessions: sup,
				API:      sup.Live(),
				Logger:   logger,
				Offsets:  db,
				Tasks:    db,
			}, botruntime.Options{
				PollTimeout:      pollTimeout,
				AllowedChatIDs:   allowed,
				DownloadRoot:     statepaths.ExpandHomePath(configutil.FlagOrViperString(cmd, "download-root", "download.root_dir")),
				AllowOutsideRoot: viper.GetBool("download.allow_outside_root"),
				HealthListen:     configutil.FlagOrViperString(cmd, "health-listen", "health.listen"),
				WatchdogEnabled:  configutil.FlagOrViperBool(cmd, "watchdog", "watchdog.enabled"),
				WatchdogInterval: configutil.FlagOrViperDuration(cmd, "watchdog-interval", "watchdog.interval"),
				ShutdownGrace:    viper.GetDuration("porter.shutdown_grace"),
				Porter:           porterOptionsFromViper(),
			})
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("telegram-allowed-chat-id") {
				watchAllowList(rt, logger)
			}

			logger.Info("bot_start",
				"allowed_chats", len(allowed),
				"download_root", statepaths.ExpandHomePath(viper.GetString("download.root_dir")),
			)
			return rt.Run(ctx)
		},
	}

	addTelegramFlags(cmd)
	cmd.Flags().Int64Slice("telegram-allowed-chat-id", nil, "Allowed private chat id(s). Empty allows every private chat.")
	cmd.Flags().Duration("telegram-poll-timeout", 0, "Long polling timeout for getUpdates.")
	cmd.Flags().Bool("telegram-drop-pending-updates", true, "Discard updates queued while the bot was offline.")
	cmd.Flags().String("download-root", ".", "Directory relative download targets resolve against.")
	cmd.Flags().String("health-listen", "", "Serve /healthz on this address (empty disables).")
	cmd.Flags().Bool("watchdog", true, "Probe the session periodically and restart it when silent.")
	cmd.Flags().Duration("watchdog-interval", 0, "Watchdog probe interval.")

	return cmd
}

// watchAllowList reloads telegram.allowed_chat_ids when the config file
// changes. Other keys take effect on the next start.
func watchAllowList(rt *botruntime.Runtime, logger *slog.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		ids, err := configutil.Int64s("telegram.allowed_chat_ids")
		if err != nil {
			logger.Warn("config_reload_error", "file", e.Name, "error", err.Error())
			return
		}
		rt.SetAllowedChatIDs(ids)
		logger.Info("config_reloaded", "file", e.Name, "allowed_chats", len(ids))
	})
	viper.WatchConfig()
}
