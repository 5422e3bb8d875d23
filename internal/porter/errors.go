package porter

import (
	"errors"
	"strings"

	"github.com/cailuoli520/TelegramStickerPorter/internal/outputfmt"
	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
)

var (
	ErrSourceNotFound         = errors.New("无法获取源贴纸包")
	ErrEmptySourceSet         = errors.New("源包中未找到贴纸")
	ErrInvalidDestinationName = errors.New("新贴纸包名称无效")
	ErrPackCreationFailed     = errors.New("创建新贴纸包失败")
	ErrDestinationUnavailable = errors.New("无法创建下载目录")
	ErrTaskAborted            = errors.New("任务意外中止")
)

// FatalError ends a task. Kind is one of the sentinel errors above; Err is
// the underlying cause, if any.
type FatalError struct {
	Kind error
	Err  error
}

func newFatal(kind, cause error) *FatalError {
	return &FatalError{Kind: kind, Err: cause}
}

func (e *FatalError) Error() string {
	if e == nil {
		return ""
	}
	msg := "task failed"
	if e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		if detail := outputfmt.FormatErrorForDisplay(e.Err); detail != "" {
			msg += ": " + detail
		}
	}
	return msg
}

func (e *FatalError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// itemReason is the text shown for a failed item: Telegram's own
// description when there is one, otherwise the sanitized error.
func itemReason(err error) string {
	var reqErr *telegramapi.RequestError
	if errors.As(err, &reqErr) {
		if desc := strings.TrimSpace(reqErr.Description); desc != "" {
			return desc
		}
	}
	return outputfmt.FormatErrorForDisplay(err)
}
