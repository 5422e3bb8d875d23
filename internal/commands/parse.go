// Package commands turns private chat text into bot actions.
package commands

import (
	"strings"

	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
)

const (
	cloneUsage    = "克隆#您的贴纸包（或表情包）名称#需要克隆的贴纸包（或表情包）链接"
	downloadUsage = "下载#目标文件夹路径#贴纸包链接"

	badLinkMessage = "贴纸链接格式错误！链接应该以 " + telegramapi.AddLinkPrefix + " 开头"
)

// ValidationError is a malformed command. Message is the reply shown to the
// user as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func formatError(usage string) *ValidationError {
	return &ValidationError{Message: "格式错误！请使用正确的格式：\n" + usage}
}

type CloneCommand struct {
	Title     string
	SourceSet string
	Link      string
}

type DownloadCommand struct {
	Dir       string
	SourceSet string
	Link      string
}

// ParseClone parses 克隆#{title}#{link}.
func ParseClone(text string) (CloneCommand, error) {
	parts := strings.Split(text, "#")
	if len(parts) != 3 {
		return CloneCommand{}, formatError(cloneUsage)
	}
	title := strings.TrimSpace(parts[1])
	if title == "" {
		return CloneCommand{}, formatError(cloneUsage)
	}
	link, name, err := ParseLink(parts[2])
	if err != nil {
		return CloneCommand{}, err
	}
	return CloneCommand{Title: title, SourceSet: name, Link: link}, nil
}

// ParseDownload parses 下载#{dir}#{link}.
func ParseDownload(text string) (DownloadCommand, error) {
	parts := strings.Split(text, "#")
	if len(parts) != 3 {
		return DownloadCommand{}, formatError(downloadUsage)
	}
	dir := strings.TrimSpace(parts[1])
	if dir == "" {
		return DownloadCommand{}, formatError(downloadUsage)
	}
	link, name, err := ParseLink(parts[2])
	if err != nil {
		return DownloadCommand{}, err
	}
	return DownloadCommand{Dir: dir, SourceSet: name, Link: link}, nil
}

// ParseLink checks an add link and returns it with the pack name it names.
func ParseLink(raw string) (string, string, error) {
	link := strings.TrimSpace(raw)
	if !strings.HasPrefix(link, telegramapi.AddLinkPrefix) {
		return "", "", &ValidationError{Message: badLinkMessage}
	}
	name := link
	for _, prefix := range []string{telegramapi.AddLinkPrefix + "stickers/", telegramapi.AddLinkPrefix + "emoji/"} {
		name = strings.TrimPrefix(name, prefix)
	}
	if i := strings.IndexAny(name, "?/"); i >= 0 {
		name = name[:i]
	}
	if name == "" || strings.HasPrefix(name, telegramapi.AddLinkPrefix) {
		return "", "", &ValidationError{Message: badLinkMessage}
	}
	return link, name, nil
}
