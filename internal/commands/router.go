package commands

import "strings"

type Route int

const (
	RouteNone Route = iota
	RouteCloneHelp
	RouteClone
	RouteInfo
	RouteDownload
	RouteDownloadHelp
)

func (r Route) String() string {
	switch r {
	case RouteCloneHelp:
		return "clone_help"
	case RouteClone:
		return "clone"
	case RouteInfo:
		return "info"
	case RouteDownload:
		return "download"
	case RouteDownloadHelp:
		return "download_help"
	default:
		return "none"
	}
}

var cloneHelpWords = map[string]bool{
	"/clonepack": true,
	"clonepack":  true,
	"克隆":         true,
	"贴纸":         true,
	"tiezhi":     true,
	"表情":         true,
	"biaoqing":   true,
	"emoji":      true,
	"stickers":   true,
}

// Classify picks the action for a private message. Matching is case
// insensitive; the first rule that matches wins.
func Classify(text string) Route {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case t == "":
		return RouteNone
	case strings.HasPrefix(t, "/start") || cloneHelpWords[t]:
		return RouteCloneHelp
	case strings.HasPrefix(t, "克隆#"):
		return RouteClone
	case strings.HasPrefix(t, "/info"):
		return RouteInfo
	case strings.HasPrefix(t, "/help_download") || strings.Contains(t, "帮助下载"):
		return RouteDownloadHelp
	case strings.HasPrefix(t, "下载#") || strings.HasPrefix(t, "/download") || strings.Contains(t, "download"):
		return RouteDownload
	default:
		return RouteNone
	}
}
