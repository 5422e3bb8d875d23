package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cailuoli520/TelegramStickerPorter/internal/configutil"
	"github.com/cailuoli520/TelegramStickerPorter/internal/porter"
	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func addTelegramFlags(cmd *cobra.Command) {
	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().String("telegram-base-url", telegramapi.DefaultBaseURL, "Bot API base URL.")
	cmd.Flags().Duration("telegram-request-timeout", 0, "HTTP timeout per Bot API call (0 uses telegram.request_timeout).")
}

// pollTimeoutFromFlags resolves the getUpdates long-poll timeout. Commands
// without a --telegram-poll-timeout flag fall back to telegram.poll_timeout.
func pollTimeoutFromFlags(cmd *cobra.Command) time.Duration {
	return configutil.FlagOrViperDuration(cmd, "telegram-poll-timeout", "telegram.poll_timeout")
}

// clientOptionsFromFlags builds the Bot API client options. The HTTP timeout
// is padded by pollTimeout so long polls are not cut short.
func clientOptionsFromFlags(cmd *cobra.Command, pollTimeout time.Duration) (telegramapi.Options, error) {
	token := strings.TrimSpace(configutil.FlagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
	if token == "" {
		return telegramapi.Options{}, fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or %s_TELEGRAM_BOT_TOKEN)", envPrefix)
	}
	timeout := configutil.FlagOrViperDuration(cmd, "telegram-request-timeout", "telegram.request_timeout")
	if timeout <= 0 {
		timeout = viper.GetDuration("telegram.request_timeout")
	}
	if pollTimeout > 0 {
		timeout += pollTimeout
	}
	return telegramapi.Options{
		HTTPClient:        &http.Client{Timeout: timeout},
		BaseURL:           configutil.FlagOrViperString(cmd, "telegram-base-url", "telegram.base_url"),
		Token:             token,
		RequestsPerSecond: viper.GetFloat64("telegram.max_requests_per_second"),
	}, nil
}

func porterOptionsFromViper() porter.Options {
	opts := porter.DefaultOptions()
	if viper.IsSet("porter.clone_delay") {
		opts.CloneDelay = viper.GetDuration("porter.clone_delay")
	}
	if viper.IsSet("porter.download_delay") {
		opts.DownloadDelay = viper.GetDuration("porter.download_delay")
	}
	if n := viper.GetInt("porter.max_report_errors"); n > 0 {
		opts.MaxReportErrors = n
	}
	return opts
}
