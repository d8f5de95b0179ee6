package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/showbot/internal/model"
	"github.com/nhle/showbot/internal/theme"
	"github.com/nhle/showbot/internal/ui/setup"
)

func newSetupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactively configure Cohuman and mail credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			values := setup.ValuesFrom(a.cfg)
			if err := setup.NewForm(&values).RunWithContext(cmd.Context()); err != nil {
				return err
			}

			if err := setup.Apply(values, a.cfg, a.vault); err != nil {
				return err
			}
			if err := model.SaveConfig(a.flags.configPath, a.cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, theme.HeaderStyle.Render("Saved"))
			fmt.Fprintln(out, theme.Field("Config", a.flags.configPath))
			if missing := a.cfg.Missing(); len(missing) > 0 {
				fmt.Fprintln(out, theme.HelpStyle.Render(fmt.Sprintf("Still missing: %v", missing)))
			}
			return nil
		},
	}
}
