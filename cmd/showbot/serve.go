package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/showbot/internal/cohuman"
	"github.com/nhle/showbot/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var listen string
	var noPoll bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server and the mailbox poller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Server.Listen = listen
			}
			return a.serve(cmd.Context(), !noPoll)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config, :4567)")
	cmd.Flags().BoolVar(&noPoll, "no-poll", false, "Do not poll the mailbox")
	return cmd
}

func (a *app) serve(ctx context.Context, poll bool) error {
	if missing := a.cfg.Missing(); len(missing) > 0 {
		a.logger.Warn("configuration incomplete", "missing", missing)
	}

	rt, err := a.newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	deps := web.Deps{
		Config:     a.cfg,
		Promoter:   rt.promos,
		Intaker:    rt.processor,
		Authorizer: cohuman.NewAuthorizer(a.cfg.Cohuman),
		Session:    rt.session,
		Store:      rt.store,
		Vault:      a.vault,
		Logger:     a.logger,
	}

	g, ctx := errgroup.WithContext(ctx)

	switch {
	case !poll:
		a.logger.Info("mailbox polling disabled")
	case rt.poller == nil:
		a.logger.Error("not scanning for incoming mail: no incoming server configured", "env", a.cfg.Environment)
	default:
		lock, err := a.lockMailbox()
		if err != nil {
			return err
		}
		defer lock.Unlock()

		deps.Scanner = rt.poller
		g.Go(func() error { return rt.poller.Run(ctx) })
	}

	srv := web.NewHTTPServer(web.NewServer(deps).Routes(), a.cfg.Server.Listen, a.logger)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	return g.Wait()
}
