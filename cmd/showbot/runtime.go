package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/nhle/showbot/internal/cohuman"
	"github.com/nhle/showbot/internal/intake"
	"github.com/nhle/showbot/internal/mailer"
	"github.com/nhle/showbot/internal/promo"
	"github.com/nhle/showbot/internal/source/email"
	"github.com/nhle/showbot/internal/store"
	"github.com/nhle/showbot/internal/sync"
)

// runtime is the wired service graph.
type runtime struct {
	store     *store.SQLiteStore
	session   *cohuman.Session
	promos    *promo.Service
	processor *intake.Processor
	poller    *sync.Poller
}

func (a *app) newRuntime() (*runtime, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}

	session := cohuman.NewSession(a.cfg.Cohuman, a.logger)
	promos := promo.NewService(session, st, promo.Options{
		ProjectID:      a.cfg.Cohuman.ProjectID,
		ShowbotUserID:  a.cfg.Cohuman.ShowbotUserID,
		NewTaskAddress: a.cfg.Mail.NewTaskAddress,
	}, a.logger)

	var notifier intake.Notifier
	if a.cfg.Mail.NotifyWinners && a.cfg.Mail.Outgoing.Configured() {
		notifier = mailer.New(a.cfg.Mail, a.logger)
	}
	processor := intake.NewProcessor(promos, st, notifier, a.logger)

	rt := &runtime{
		store:     st,
		session:   session,
		promos:    promos,
		processor: processor,
	}

	if a.cfg.Mail.Incoming.Configured() {
		mailbox := email.NewIMAPClient(a.cfg.Mail.Incoming, a.cfg.Mail.Mailbox)
		rt.poller = sync.New(mailbox, processor, sync.Options{
			Interval: time.Duration(a.cfg.Mail.PollIntervalSec) * time.Second,
			Keep:     a.cfg.Mail.Keep,
		}, a.logger)
	}

	return rt, nil
}

func (rt *runtime) Close() error {
	return rt.store.Close()
}

// lockMailbox takes the per-environment lock that keeps two processes from
// draining the same mailbox.
func (a *app) lockMailbox() (*flock.Flock, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("showbot-%s.lock", a.cfg.Environment))
	lock := flock.New(path)

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("another showbot is already reading the mailbox (lock %s)", path)
	}
	return lock, nil
}
