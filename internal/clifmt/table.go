package clifmt

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	defaultTableWidth     = 100
	defaultMinDetailWidth = 36
)

type Field struct {
	Key   string
	Value string
}

// PrintFields writes aligned "key  value" lines under an optional title.
func PrintFields(out io.Writer, title string, fields []Field) {
	if out == nil {
		out = os.Stdout
	}
	st := NewStyler(out)
	if title = strings.TrimSpace(title); title != "" {
		fmt.Fprintln(out, st.Headerf("%s", title))
	}
	width := 0
	for _, f := range fields {
		if w := runewidth.StringWidth(f.Key); w > width {
			width = w
		}
	}
	for _, f := range fields {
		fmt.Fprintf(out, "%s  %s\n", st.Key(padRight(f.Key, width)), f.Value)
	}
}

type Row struct {
	Name   string
	Detail string
	Failed bool
}

type TableOptions struct {
	Title        string
	Rows         []Row
	EmptyText    string
	NameHeader   string
	DetailHeader string
	DefaultWidth int
}

// PrintTable writes a two column table. Details wrap to the terminal width;
// failed rows are highlighted.
func PrintTable(out io.Writer, opts TableOptions) {
	if out == nil {
		out = os.Stdout
	}
	st := NewStyler(out)

	if title := strings.TrimSpace(opts.Title); title != "" {
		fmt.Fprintln(out, st.Headerf("%s (%d)", title, len(opts.Rows)))
	}
	if len(opts.Rows) == 0 {
		empty := strings.TrimSpace(opts.EmptyText)
		if empty == "" {
			empty = "No entries."
		}
		fmt.Fprintln(out, st.Warn(empty))
		return
	}

	nameHeader := orDefault(opts.NameHeader, "ITEM")
	detailHeader := orDefault(opts.DetailHeader, "DETAIL")

	nameWidth := runewidth.StringWidth(nameHeader)
	for _, row := range opts.Rows {
		if w := runewidth.StringWidth(row.Name); w > nameWidth {
			nameWidth = w
		}
	}
	detailWidth := tableDetailWidth(out, nameWidth, opts.DefaultWidth)

	fmt.Fprintf(out, "%s  %s\n", st.Key(padRight(nameHeader, nameWidth)), st.Key(detailHeader))
	fmt.Fprintf(out, "%s  %s\n", st.Dim(strings.Repeat("-", nameWidth)), st.Dim(strings.Repeat("-", detailWidth)))
	for _, row := range opts.Rows {
		name := padRight(row.Name, nameWidth)
		if row.Failed {
			name = st.Error(name)
		} else {
			name = st.Success(name)
		}
		lines := wrapText(row.Detail, detailWidth)
		fmt.Fprintf(out, "%s  %s\n", name, lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(out, "%s  %s\n", strings.Repeat(" ", nameWidth), line)
		}
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func tableDetailWidth(out io.Writer, nameWidth, defaultWidth int) int {
	if defaultWidth <= 0 {
		defaultWidth = defaultTableWidth
	}
	width := defaultWidth
	if file, ok := out.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		if tw, _, err := term.GetSize(int(file.Fd())); err == nil && tw > 0 {
			width = tw
		}
	}
	detailWidth := width - nameWidth - 2
	if detailWidth < defaultMinDetailWidth {
		detailWidth = defaultMinDetailWidth
	}
	return detailWidth
}

func padRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// wrapText breaks text on spaces into lines of at most width terminal
// cells, splitting words that do not fit on their own.
func wrapText(text string, width int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{""}
	}
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		for runewidth.StringWidth(word) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			head := runewidth.Truncate(word, width, "")
			if head == "" {
				_, size := utf8.DecodeRuneInString(word)
				head = word[:size]
			}
			lines = append(lines, head)
			word = word[len(head):]
		}
		switch {
		case word == "":
		case current == "":
			current = word
		case runewidth.StringWidth(current)+1+runewidth.StringWidth(word) <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
