package commands

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		in   string
		want Route
	}{
		{in: "/start", want: RouteCloneHelp},
		{in: "/start@porter_bot", want: RouteCloneHelp},
		{in: "STICKERS", want: RouteCloneHelp},
		{in: "克隆", want: RouteCloneHelp},
		{in: "克隆#a#https://t.me/addstickers/x", want: RouteClone},
		{in: "/info", want: RouteInfo},
		{in: "/help_download", want: RouteDownloadHelp},
		{in: "怎么帮助下载", want: RouteDownloadHelp},
		{in: "下载#./x#https://t.me/addstickers/x", want: RouteDownload},
		{in: "/download", want: RouteDownload},
		{in: "please Download it", want: RouteDownload},
		{in: "hello", want: RouteNone},
		{in: "", want: RouteNone},
		{in: "emoji pack", want: RouteNone},
	}
	for _, tc := range cases {
		if got := Classify(tc.in); got != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestHelpTexts(t *testing.T) {
	if !strings.Contains(CloneHelpText(), "<code>"+cloneUsage+"</code>") {
		t.Fatalf("clone help misses usage line")
	}
	if !strings.Contains(DownloadHelpText(), downloadUsage) {
		t.Fatalf("download help misses usage line")
	}
	if !strings.Contains(InfoText(), ProjectURL) {
		t.Fatalf("info text misses project url")
	}
}
