package main

import (
	"time"

	"github.com/cailuoli520/TelegramStickerPorter/internal/porter"
	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
	"github.com/cailuoli520/TelegramStickerPorter/internal/watchdog"
	"github.com/spf13/viper"
)

func initViperDefaults() {
	porterDefaults := porter.DefaultOptions()

	// Global
	viper.SetDefault("file_state_dir", "~/.sticker-porter")
	viper.SetDefault("state.db_path", "")

	// Logging
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("logging.file", "")
	viper.SetDefault("logging.max_size_mb", 50)
	viper.SetDefault("logging.max_backups", 5)
	viper.SetDefault("logging.max_age_days", 14)
	viper.SetDefault("trace", false)

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.base_url", telegramapi.DefaultBaseURL)
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.request_timeout", 60*time.Second)
	viper.SetDefault("telegram.allowed_chat_ids", []string{})
	viper.SetDefault("telegram.max_requests_per_second", 25.0)
	viper.SetDefault("telegram.drop_pending_updates", true)

	// Task engine
	viper.SetDefault("porter.clone_delay", porterDefaults.CloneDelay)
	viper.SetDefault("porter.download_delay", porterDefaults.DownloadDelay)
	viper.SetDefault("porter.max_report_errors", porterDefaults.MaxReportErrors)
	viper.SetDefault("porter.shutdown_grace", 30*time.Second)

	// Download
	viper.SetDefault("download.root_dir", ".")
	viper.SetDefault("download.allow_outside_root", false)

	// Watchdog
	viper.SetDefault("watchdog.enabled", true)
	viper.SetDefault("watchdog.interval", watchdog.DefaultInterval)

	// Health
	viper.SetDefault("health.listen", "")
}
