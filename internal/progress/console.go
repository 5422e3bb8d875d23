package progress

import (
	"context"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"sync"
)

var htmlTagRE = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// Console is a Transport that prints status messages to a terminal, for
// running tasks from the command line.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	nextID int64
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) SendMessage(_ context.Context, _ int64, text string, _ int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	if err := c.write(text); err != nil {
		return 0, err
	}
	return c.nextID, nil
}

func (c *Console) EditMessage(_ context.Context, _ int64, _ int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(text)
}

func (c *Console) write(text string) error {
	if c.out == nil {
		return nil
	}
	plain := html.UnescapeString(htmlTagRE.ReplaceAllString(text, ""))
	_, err := fmt.Fprintln(c.out, strings.TrimRight(plain, "\n"))
	return err
}
