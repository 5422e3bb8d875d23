package outputfmt

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	absoluteURLInTextRE = regexp.MustCompile(`https?://[^\s"'<>]+`)
	botTokenPathRE      = regexp.MustCompile(`/bot[0-9]+:[A-Za-z0-9_-]+`)
)

// FormatErrorForDisplay sanitizes error text for chat replies and task
// reports. URL hosts are dropped and bot tokens are masked.
func FormatErrorForDisplay(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeErrorText(err.Error())
}

// SanitizeErrorText removes URL hosts from arbitrary text while keeping
// path and query details.
func SanitizeErrorText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	out := absoluteURLInTextRE.ReplaceAllStringFunc(raw, stripURLHost)
	return RedactBotToken(out)
}

// RedactBotToken masks the token in Bot API paths such as
// /bot123:ABC/getMe and /file/bot123:ABC/stickers/x.webp.
func RedactBotToken(raw string) string {
	return botTokenPathRE.ReplaceAllString(raw, "/bot<token>")
}

func stripURLHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if q := redactSensitiveQuery(u.Query()); q != "" {
		path += "?" + q
	}
	if frag := strings.TrimSpace(u.EscapedFragment()); frag != "" {
		path += "#" + frag
	}
	return path
}

func redactSensitiveQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	for k := range q {
		if isSensitiveQueryKey(k) {
			q.Set(k, "[redacted]")
		}
	}
	return q.Encode()
}

// sensitiveQueryKeys are matched as substrings of the lowercased key with
// dashes and underscores removed.
var sensitiveQueryKeys = []string{"token", "secret", "password", "apikey", "authorization", "cookie"}

func isSensitiveQueryKey(key string) bool {
	n := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(key)))
	if n == "" {
		return false
	}
	if n == "key" {
		return true
	}
	for _, s := range sensitiveQueryKeys {
		if strings.Contains(n, s) {
			return true
		}
	}
	return false
}
