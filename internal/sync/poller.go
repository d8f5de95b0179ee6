// Package sync drains the showbot mailbox on a schedule.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/showbot/internal/intake"
	"github.com/nhle/showbot/internal/source"
	"github.com/nhle/showbot/internal/source/email"
)

// SyncState represents the current state of the poller.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus describes the last scan.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Last     ScanResult
	Error    error
}

// ScanResult counts what one scan did. Skipped messages were processed by
// an earlier scan and left in the mailbox.
type ScanResult struct {
	Received  int
	Processed int
	Skipped   int
	Errors    int
	Deleted   int
}

func (r ScanResult) String() string {
	return fmt.Sprintf("Processed %d of %d emails received (%d errors).", r.Processed, r.Received, r.Errors)
}

// Handler processes one raw message. *intake.Processor satisfies it.
type Handler interface {
	Handle(ctx context.Context, raw []byte) (*intake.Result, error)
}

const (
	defaultInterval = 20 * time.Second
	scanTimeout     = 5 * time.Minute
)

// Poller scans a mailbox, hands every message to the handler and removes
// the ones that were handled.
type Poller struct {
	mailbox  source.Mailbox
	handler  Handler
	interval time.Duration
	keep     bool
	logger   *log.Logger

	triggerCh chan struct{}
	scanMu    gosync.Mutex

	mu     gosync.Mutex
	status SyncStatus
}

// Options tunes a Poller.
type Options struct {
	// Interval between scans; 20s when zero.
	Interval time.Duration
	// Keep leaves handled messages in the mailbox.
	Keep bool
}

// New creates a Poller.
func New(mb source.Mailbox, h Handler, opts Options, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.Default()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{
		mailbox:   mb,
		handler:   h,
		interval:  interval,
		keep:      opts.Keep,
		logger:    logger.WithPrefix("poller"),
		triggerCh: make(chan struct{}, 1),
	}
}

// Run scans immediately, then again on every tick or Trigger, until ctx is
// done. Scan errors are logged and never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("polling mailbox", "interval", p.interval)
	p.scanAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.scanAndLog(ctx)
		case <-p.triggerCh:
			p.scanAndLog(ctx)
		}
	}
}

// Trigger requests an immediate scan from Run. It never blocks; a trigger
// arriving while one is pending is dropped.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns a snapshot of the last scan.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) scanAndLog(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := p.Scan(ctx)
	switch {
	case err == nil:
	case source.IsAuthError(err):
		p.logger.Error("mailbox login failed, check incoming credentials", "err", err)
	case email.IsServerRejection(err):
		p.logger.Warn("mailbox rejected scan", "err", err)
	default:
		p.logger.Error("scan failed", "err", err)
	}
}

// Scan performs one pass over the mailbox. Per-message failures are counted
// and those messages stay in the mailbox for the next pass.
func (p *Poller) Scan(ctx context.Context) (ScanResult, error) {
	p.scanMu.Lock()
	defer p.scanMu.Unlock()

	p.setStatus(SyncRunning, ScanResult{}, nil)

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	messages, err := p.mailbox.Fetch(ctx)
	if err != nil {
		err = fmt.Errorf("fetching mailbox: %w", err)
		p.setStatus(SyncError, ScanResult{}, err)
		return ScanResult{}, err
	}

	result := ScanResult{Received: len(messages)}
	var handled []uint32

	for _, msg := range messages {
		res, err := p.handler.Handle(ctx, msg.Raw)
		if err != nil {
			result.Errors++
			p.logger.Error("handling message failed", "uid", msg.UID, "err", err)
			continue
		}
		if res != nil && res.Duplicate {
			result.Skipped++
		} else {
			result.Processed++
		}
		handled = append(handled, msg.UID)
	}

	if !p.keep && len(handled) > 0 {
		if err := p.mailbox.Delete(ctx, handled); err != nil {
			err = fmt.Errorf("deleting handled messages: %w", err)
			p.setStatus(SyncError, result, err)
			return result, err
		}
		result.Deleted = len(handled)
	}

	if result.Processed+result.Errors > 0 {
		p.logger.Info(result.String())
	} else {
		p.logger.Debug(result.String())
	}

	p.setStatus(SyncIdle, result, nil)
	return result, nil
}

func (p *Poller) setStatus(state SyncState, result ScanResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state != SyncRunning {
		p.status.Last = result
	}
	if state == SyncIdle && err == nil {
		p.status.LastSync = time.Now()
	}
}
