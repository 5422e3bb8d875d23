package botruntime

import (
	"slices"
	"strings"
	"time"

	"github.com/cailuoli520/TelegramStickerPorter/internal/porter"
	"github.com/cailuoli520/TelegramStickerPorter/internal/watchdog"
)

// Options configures a Runtime. Chat download targets are confined to
// DownloadRoot unless AllowOutsideRoot is set.
type Options struct {
	PollTimeout      time.Duration
	AllowedChatIDs   []int64
	DownloadRoot     string
	AllowOutsideRoot bool
	HealthListen     string
	WatchdogEnabled  bool
	WatchdogInterval time.Duration
	ShutdownGrace    time.Duration
	Porter           porter.Options
}

func normalizeOptions(opts Options) Options {
	opts.AllowedChatIDs = normalizeAllowedChatIDs(opts.AllowedChatIDs)
	opts.DownloadRoot = strings.TrimSpace(opts.DownloadRoot)
	opts.HealthListen = strings.TrimSpace(opts.HealthListen)

	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.DownloadRoot == "" {
		opts.DownloadRoot = "."
	}
	if opts.WatchdogInterval <= 0 {
		opts.WatchdogInterval = watchdog.DefaultInterval
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 30 * time.Second
	}
	return opts
}

func normalizeAllowedChatIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
