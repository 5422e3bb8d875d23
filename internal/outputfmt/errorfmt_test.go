package outputfmt

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeErrorText_RemovesHostAndToken(t *testing.T) {
	in := `Post "https://api.telegram.org/bot123456:AAH-secret_value/getStickerSet": context deadline exceeded`

	out := SanitizeErrorText(in)
	if strings.Contains(out, "api.telegram.org") {
		t.Fatalf("host should be removed, got %q", out)
	}
	if strings.Contains(out, "AAH-secret_value") {
		t.Fatalf("token should be masked, got %q", out)
	}
	if !strings.Contains(out, `Post "/bot<token>/getStickerSet"`) {
		t.Fatalf("expected method path to be kept, got %q", out)
	}
}

func TestSanitizeErrorText_FileURLAndQuery(t *testing.T) {
	in := `download failed: https://api.telegram.org/file/bot42:xyz/stickers/file_1.webp then https://proxy.example.com/health?token=abc&ok=1`
	out := SanitizeErrorText(in)
	if strings.Contains(out, "example.com") || strings.Contains(out, "xyz") {
		t.Fatalf("host and token should be removed, got %q", out)
	}
	if !strings.Contains(out, "/file/bot<token>/stickers/file_1.webp") {
		t.Fatalf("file path should be kept, got %q", out)
	}
	if !strings.Contains(out, "token=%5Bredacted%5D") || !strings.Contains(out, "ok=1") {
		t.Fatalf("query should be redacted selectively, got %q", out)
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	if got := FormatErrorForDisplay(nil); got != "" {
		t.Fatalf("nil error should format as empty string, got %q", got)
	}
	got := FormatErrorForDisplay(errors.New("Bad Request: STICKERSET_INVALID"))
	if got != "Bad Request: STICKERSET_INVALID" {
		t.Fatalf("plain errors should pass through, got %q", got)
	}
}

func TestRedactBotTokenBareText(t *testing.T) {
	got := RedactBotToken("GET /bot99:abc-DEF/getMe failed")
	if got != "GET /bot<token>/getMe failed" {
		t.Fatalf("RedactBotToken() = %q", got)
	}
}
