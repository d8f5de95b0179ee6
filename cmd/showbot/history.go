package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nhle/showbot/internal/model"
	"github.com/nhle/showbot/internal/store"
	"github.com/nhle/showbot/internal/theme"
)

var intakeStatuses = []string{
	model.IntakeRedeemed, model.IntakeNoCode, model.IntakeUnmatched, model.IntakeFailed,
}

func newHistoryCmd(a *app) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently processed messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := store.IntakeFilter{Limit: limit}
			if status != "" {
				if !validStatus(status) {
					return fmt.Errorf("unknown status %q (want one of %v)", status, intakeStatuses)
				}
				filter.Status = &status
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.GetIntakes(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, theme.HelpStyle.Render("No messages processed yet."))
				return nil
			}
			for _, rec := range records {
				fmt.Fprintln(out, renderRecord(rec))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only show records with this status")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")
	return cmd
}

func validStatus(s string) bool {
	for _, known := range intakeStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func renderRecord(rec model.IntakeRecord) string {
	code := rec.PromoCode
	if code == "" {
		code = "-"
	}

	line := lipgloss.JoinHorizontal(lipgloss.Top,
		theme.HelpStyle.Render(rec.ReceivedAt.Local().Format("2006-01-02 15:04")+" "),
		theme.StatusStyle(rec.Status).Width(10).Render(rec.Status),
		theme.CodeStyle.Width(16).Render(code),
		rec.Sender,
	)
	if rec.Error != "" {
		line += "\n" + theme.HelpStyle.Render("  "+rec.Error)
	}
	return line
}

// openStore opens the configured database without wiring the rest of the
// runtime.
func (a *app) openStore() (*store.SQLiteStore, error) {
	if a.cfg.Store.Path != ":memory:" {
		dir := filepath.Dir(a.cfg.Store.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}
	return store.NewSQLiteStore(a.cfg.Store.Path)
}
