package clifmt

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// Styler colors text only when out is a terminal. termenv also honors
// NO_COLOR and CLICOLOR=0.
type Styler struct {
	out *termenv.Output
}

func NewStyler(out io.Writer) Styler {
	return Styler{out: termenv.NewOutput(out)}
}

func (s Styler) style(text string) termenv.Style {
	return s.out.String(text)
}

func (s Styler) Headerf(format string, args ...any) string {
	return s.style(fmt.Sprintf(format, args...)).Bold().Foreground(termenv.ANSICyan).String()
}

func (s Styler) Key(text string) string { return s.style(text).Bold().String() }
func (s Styler) Dim(text string) string { return s.style(text).Faint().String() }
func (s Styler) Warn(text string) string {
	return s.style(text).Foreground(termenv.ANSIYellow).String()
}
func (s Styler) Error(text string) string { return s.style(text).Foreground(termenv.ANSIRed).String() }
func (s Styler) Success(text string) string {
	return s.style(text).Foreground(termenv.ANSIGreen).String()
}
