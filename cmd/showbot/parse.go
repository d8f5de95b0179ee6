package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nhle/showbot/internal/mailparse"
	"github.com/nhle/showbot/internal/model"
	"github.com/nhle/showbot/internal/normalize"
	"github.com/nhle/showbot/internal/theme"
)

func newParseCmd(_ *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Normalize a saved message and print what showbot would see",
		Long:  "Reads an RFC822 message from FILE (or - for stdin), runs the normalizer and prints the comment, promo code and recipients.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			email, err := mailparse.Parse(raw)
			if err != nil {
				return err
			}

			return writeIntake(cmd.OutOrStdout(), normalize.Normalize(email), format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, yaml)")
	return cmd
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return raw, nil
}

func writeIntake(w io.Writer, in model.Intake, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(in)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(in)
	case "text", "":
		_, err := fmt.Fprintln(w, renderIntake(in))
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderIntake(in model.Intake) string {
	code := theme.HelpStyle.Render("none")
	if in.PromoCode != nil {
		code = theme.CodeStyle.Render(in.PromoCode.Raw)
	}

	recipients := theme.HelpStyle.Render("none")
	if len(in.Recipients) > 0 {
		recipients = strings.Join(in.Recipients, ", ")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		theme.HeaderStyle.Render("Intake"),
		theme.Field("From", in.Sender),
		theme.Field("Subject", in.Subject),
		theme.Field("Code", code),
		theme.Field("Recipients", recipients),
		theme.BodyStyle.Render(in.Comment.Text),
	)
}
