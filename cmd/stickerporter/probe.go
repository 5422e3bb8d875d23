package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cailuoli520/TelegramStickerPorter/internal/clifmt"
	"github.com/cailuoli520/TelegramStickerPorter/internal/configutil"
	"github.com/cailuoli520/TelegramStickerPorter/internal/outputfmt"
	"github.com/cailuoli520/TelegramStickerPorter/internal/porter"
	"github.com/cailuoli520/TelegramStickerPorter/internal/statedb"
	"github.com/cailuoli520/TelegramStickerPorter/internal/statepaths"
	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type probeReport struct {
	OK          bool        `yaml:"ok" json:"ok"`
	BotID       int64       `yaml:"bot_id,omitempty" json:"bot_id,omitempty"`
	Username    string      `yaml:"username,omitempty" json:"username,omitempty"`
	Commands    []string    `yaml:"commands,omitempty" json:"commands,omitempty"`
	Error       string      `yaml:"error,omitempty" json:"error,omitempty"`
	StateDB     string      `yaml:"state_db" json:"state_db"`
	Schema      string      `yaml:"schema_version,omitempty" json:"schema_version,omitempty"`
	Offset      int64       `yaml:"offset" json:"offset"`
	RecentTasks []probeTask `yaml:"recent_tasks,omitempty" json:"recent_tasks,omitempty"`
}

type probeTask struct {
	ID        string    `yaml:"id" json:"id"`
	Kind      string    `yaml:"kind" json:"kind"`
	Chat      string    `yaml:"chat" json:"chat"`
	Source    string    `yaml:"source" json:"source"`
	State     string    `yaml:"state" json:"state"`
	Succeeded int       `yaml:"succeeded" json:"succeeded"`
	Total     int       `yaml:"total" json:"total"`
	Error     string    `yaml:"error,omitempty" json:"error,omitempty"`
	Finished  time.Time `yaml:"finished" json:"finished"`
}

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the bot token and show stored state",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(configutil.FlagOrViperString(cmd, "output", ""))
			if err != nil {
				return err
			}
			clientOpts, err := clientOptionsFromFlags(cmd, pollTimeoutFromFlags(cmd))
			if err != nil {
				return err
			}
			timeout := configutil.FlagOrViperDuration(cmd, "timeout", "")
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			report := probeReport{StateDB: statepaths.StateDBPath()}
			probeBot(ctx, telegramapi.New(clientOpts), &report)
			limit, _ := cmd.Flags().GetInt("recent")
			if err := loadStoredState(ctx, &report, limit); err != nil {
				report.Error = strings.TrimSpace(report.Error + "; " + err.Error())
			}

			if format != outputTable {
				if err := writeStructured(cmd.OutOrStdout(), format, report); err != nil {
					return err
				}
			} else {
				printProbe(cmd, report)
			}
			if !report.OK {
				return fmt.Errorf("probe failed")
			}
			return nil
		},
	}

	addTelegramFlags(cmd)
	cmd.Flags().String("output", "table", "Output format: table|yaml|json.")
	cmd.Flags().Duration("timeout", 20*time.Second, "Overall probe timeout.")
	cmd.Flags().Int("recent", 10, "Number of recent tasks to list from the state db.")
	return cmd
}

// probeBot runs the same calls the supervisor uses: getMe for identity and
// getMyCommands as the liveness check.
func probeBot(ctx context.Context, client *telegramapi.Client, report *probeReport) {
	defer client.CloseIdleConnections()
	me, err := client.GetMe(ctx)
	if err != nil {
		report.Error = outputfmt.FormatErrorForDisplay(err)
		return
	}
	report.BotID = me.ID
	report.Username = me.Username
	cmds, err := client.GetMyCommands(ctx, &telegramapi.ScopeAllPrivateChats)
	if err != nil {
		report.Error = outputfmt.FormatErrorForDisplay(err)
		return
	}
	for _, c := range cmds {
		report.Commands = append(report.Commands, "/"+c.Command)
	}
	report.OK = true
}

// loadStoredState reads the offset and recent tasks. A missing database is
// not an error; the bot has simply never run with this state dir.
func loadStoredState(ctx context.Context, report *probeReport, limit int) error {
	if _, err := os.Stat(report.StateDB); err != nil {
		return nil
	}
	db, err := statedb.Open(report.StateDB)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}
	schema, err := db.GetMeta("schema_version")
	if err != nil {
		return err
	}
	report.Schema = schema
	if report.BotID != 0 {
		offset, err := db.LoadOffset(ctx, report.BotID)
		if err != nil {
			return err
		}
		report.Offset = offset
	}
	if limit <= 0 {
		return nil
	}
	recs, err := db.RecentTasks(ctx, limit)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		report.RecentTasks = append(report.RecentTasks, probeTask{
			ID:        rec.ID,
			Kind:      rec.Kind,
			Chat:      formatChatID(rec.ChatID),
			Source:    rec.Source,
			State:     rec.State,
			Succeeded: rec.Succeeded,
			Total:     rec.Total,
			Error:     rec.Error,
			Finished:  rec.FinishedAt,
		})
	}
	return nil
}

func printProbe(cmd *cobra.Command, report probeReport) {
	out := cmd.OutOrStdout()
	st := clifmt.NewStyler(out)
	status := st.Success("ok")
	if !report.OK {
		status = st.Error("failed")
	}
	fields := []clifmt.Field{
		{Key: "status", Value: status},
		{Key: "bot", Value: "@" + report.Username},
		{Key: "commands", Value: strings.Join(report.Commands, " ")},
		{Key: "state db", Value: report.StateDB},
		{Key: "schema", Value: report.Schema},
		{Key: "offset", Value: humanize.Comma(report.Offset)},
	}
	if report.Error != "" {
		fields = append(fields, clifmt.Field{Key: "error", Value: report.Error})
	}
	clifmt.PrintFields(out, "Probe", fields)
	fmt.Fprintln(out)

	rows := make([]clifmt.Row, 0, len(report.RecentTasks))
	for _, t := range report.RecentTasks {
		detail := fmt.Sprintf("%s %s %d/%d chat %s, %s", t.Kind, t.Source, t.Succeeded, t.Total, t.Chat, humanize.Time(t.Finished))
		if t.Error != "" {
			detail += ": " + t.Error
		}
		rows = append(rows, clifmt.Row{Name: t.State, Detail: detail, Failed: t.State == porter.StateFailedFatal.String() || t.Error != ""})
	}
	clifmt.PrintTable(out, clifmt.TableOptions{
		Title:        "Recent tasks",
		Rows:         rows,
		EmptyText:    "No tasks recorded.",
		NameHeader:   "STATE",
		DetailHeader: "TASK",
	})
}
