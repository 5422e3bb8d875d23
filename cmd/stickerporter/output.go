package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cailuoli520/TelegramStickerPorter/internal/clifmt"
	"github.com/cailuoli520/TelegramStickerPorter/internal/fsstore"
	"github.com/cailuoli520/TelegramStickerPorter/internal/porter"
	"github.com/cailuoli520/TelegramStickerPorter/internal/statepaths"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

type outputFormat string

const (
	outputTable outputFormat = "table"
	outputYAML  outputFormat = "yaml"
	outputJSON  outputFormat = "json"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", outputTable:
		return outputTable, nil
	case outputYAML, "yml":
		return outputYAML, nil
	case outputJSON:
		return outputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table|yaml|json)", s)
	}
}

func writeStructured(out io.Writer, format outputFormat, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}

// writeSummaryFile stores sum at path as json for a .json path and yaml
// otherwise. The file is replaced atomically.
func writeSummaryFile(path string, sum porter.Summary) error {
	format := outputYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = outputJSON
	}
	var buf bytes.Buffer
	if err := writeStructured(&buf, format, sum); err != nil {
		return err
	}
	return fsstore.WriteFileAtomic(statepaths.ExpandHomePath(path), buf.Bytes(), fsstore.FileOptions{})
}

func writeSummary(out io.Writer, format outputFormat, sum porter.Summary) error {
	if format != outputTable {
		return writeStructured(out, format, sum)
	}

	fields := []clifmt.Field{
		{Key: "task", Value: sum.ID},
		{Key: "source", Value: sum.Source},
		{Key: "title", Value: sum.SourceTitle},
		{Key: "state", Value: sum.State},
		{Key: "directory", Value: sum.Directory},
		{Key: "succeeded", Value: fmt.Sprintf("%d/%d", sum.Succeeded, sum.Total)},
	}
	if sum.Fatal != "" {
		fields = append(fields, clifmt.Field{Key: "error", Value: sum.Fatal})
	}
	clifmt.PrintFields(out, "Download", fields)
	if sum.Fatal != "" {
		return nil
	}
	fmt.Fprintln(out)

	var total int64
	rows := make([]clifmt.Row, 0, len(sum.Files)+len(sum.Errors))
	for _, path := range sum.Files {
		detail := "?"
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
			detail = humanize.Bytes(uint64(info.Size()))
		}
		rows = append(rows, clifmt.Row{Name: filepath.Base(path), Detail: detail})
	}
	for _, e := range sum.Errors {
		rows = append(rows, clifmt.Row{Name: e.Label, Detail: e.Reason, Failed: true})
	}
	clifmt.PrintTable(out, clifmt.TableOptions{
		Title:        "Files",
		Rows:         rows,
		EmptyText:    "No stickers in this pack.",
		NameHeader:   "FILE",
		DetailHeader: "SIZE / ERROR",
	})
	if len(sum.Files) > 0 {
		fmt.Fprintf(out, "\n%s in %s files\n", humanize.Bytes(uint64(total)), humanize.Comma(int64(len(sum.Files))))
	}
	return nil
}

func formatChatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
