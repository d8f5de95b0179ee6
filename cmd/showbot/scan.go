package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newScanCmd(a *app) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the mailbox once and redeem any promo codes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("keep") {
				a.cfg.Mail.Keep = keep
			}

			rt, err := a.newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.poller == nil {
				return errors.New("no incoming mail server configured")
			}

			lock, err := a.lockMailbox()
			if err != nil {
				return err
			}
			defer lock.Unlock()

			result, err := rt.poller.Scan(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", true, "Leave handled messages in the mailbox")
	return cmd
}
