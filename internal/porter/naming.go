package porter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
	"github.com/google/uuid"
)

const (
	maxPackNameLength = 64
	defaultEmoji      = "😊"
)

var packNameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// NewPackSuffix returns eight hex characters of a fresh UUID.
func NewPackSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// GeneratePackName builds pack_{suffix}_by_{botusername}. The bot username is
// lowercased; Telegram requires the _by_ suffix to name the owning bot.
func GeneratePackName(suffix, botUsername string) (string, error) {
	suffix = strings.TrimSpace(suffix)
	botUsername = strings.ToLower(strings.TrimSpace(botUsername))
	if suffix == "" || botUsername == "" {
		return "", fmt.Errorf("%w: missing suffix or bot username", ErrInvalidDestinationName)
	}
	name := "pack_" + suffix + "_by_" + botUsername
	if err := ValidatePackName(name); err != nil {
		return "", err
	}
	return name, nil
}

func ValidatePackName(name string) error {
	if name == "" || len(name) > maxPackNameLength || !packNameRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidDestinationName, name)
	}
	return nil
}

// ShareLink returns the public add link for a pack. Custom emoji packs use
// addemoji; every other type uses addstickers.
func ShareLink(stickerType, name string) string {
	kind := "stickers"
	if stickerType == telegramapi.StickerTypeCustomEmoji {
		kind = "emoji"
	}
	return telegramapi.AddLinkPrefix + kind + "/" + name
}

// Extension picks the file extension from the sticker's media kind.
func Extension(st telegramapi.Sticker) string {
	switch st.Format() {
	case telegramapi.StickerFormatVideo:
		return ".webm"
	case telegramapi.StickerFormatAnimated:
		return ".tgs"
	default:
		return ".webp"
	}
}

// FileName is {setName}_{index:03d}{ext}.
func FileName(setName string, index int, ext string) string {
	return fmt.Sprintf("%s_%03d%s", setName, index, ext)
}

func inputSticker(st telegramapi.Sticker) telegramapi.InputSticker {
	emoji := strings.TrimSpace(st.Emoji)
	if emoji == "" || !utf8.ValidString(emoji) {
		emoji = defaultEmoji
	}
	return telegramapi.InputSticker{
		Sticker:   st.FileID,
		Format:    st.Format(),
		EmojiList: []string{emoji},
	}
}

func cloneItemLabel(index int) string {
	return fmt.Sprintf("贴纸 %d", index)
}

func downloadItemLabel(index int, st telegramapi.Sticker) string {
	label := fmt.Sprintf("sticker_%03d", index)
	if emoji := strings.Join(strings.Fields(st.Emoji), ""); emoji != "" {
		label += "_" + emoji
	}
	return label
}
