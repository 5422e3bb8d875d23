package clifmt

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintTablePlainOutput(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, TableOptions{
		Title: "Files",
		Rows: []Row{
			{Name: "src_pack_000.webp", Detail: "ok"},
			{Name: "sticker_001", Detail: "无法获取文件信息", Failed: true},
		},
		DefaultWidth: 60,
	})
	out := buf.String()
	if strings.Contains(out, "\033[") {
		t.Fatalf("non-terminal output must not carry ANSI codes: %q", out)
	}
	for _, want := range []string{"Files (2)", "ITEM", "src_pack_000.webp  ok", "sticker_001        无法获取文件信息"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, TableOptions{Title: "Errors", EmptyText: "No failures."})
	if got := buf.String(); got != "Errors (0)\nNo failures.\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestWrapText(t *testing.T) {
	cases := []struct {
		text  string
		width int
		want  []string
	}{
		{"aaaa bb cccccccc", 4, []string{"aaaa", "bb", "cccc", "cccc"}},
		{"无法获取文件信息", 6, []string{"无法获", "取文件", "信息"}},
		{"贴纸 2 添加失败", 4, []string{"贴纸", "2", "添加", "失败"}},
		{"贴", 1, []string{"贴"}},
	}
	for _, tc := range cases {
		lines := wrapText(tc.text, tc.width)
		if strings.Join(lines, "|") != strings.Join(tc.want, "|") {
			t.Fatalf("wrapText(%q, %d) = %#v, want %#v", tc.text, tc.width, lines, tc.want)
		}
	}
}

func TestPrintFieldsAlignsWideKeys(t *testing.T) {
	var buf bytes.Buffer
	PrintFields(&buf, "", []Field{{Key: "标题", Value: "A"}, {Key: "state", Value: "B"}})
	if got := buf.String(); got != "标题   A\nstate  B\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestPrintFieldsAligns(t *testing.T) {
	var buf bytes.Buffer
	PrintFields(&buf, "", []Field{{Key: "state", Value: "completed"}, {Key: "succeeded", Value: "2"}})
	if got := buf.String(); got != "state      completed\nsucceeded  2\n" {
		t.Fatalf("output = %q", got)
	}
}
