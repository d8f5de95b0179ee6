package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nhle/showbot/internal/cohuman"
	"github.com/nhle/showbot/internal/theme"
)

func newPromoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "promo SHOW PREFIX",
		Short: "Issue a promo code to every member of a show",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			showID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("show must be a project id: %w", err)
			}

			rt, err := a.newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if !rt.session.Authorized() {
				return fmt.Errorf("not connected to Cohuman: run showbot serve and visit /authorize first")
			}

			issued, err := rt.promos.IssuePromos(cmd.Context(), cohuman.ID(showID), args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, theme.HeaderStyle.Render(fmt.Sprintf("Issued %d promo codes", len(issued))))
			for _, is := range issued {
				fmt.Fprintln(out, lipgloss.JoinHorizontal(lipgloss.Top,
					theme.CodeStyle.Width(18).Render(is.Code),
					is.Member.Email,
					theme.HelpStyle.Render(" task "+is.TaskID.String()),
				))
			}
			return nil
		},
	}
}
