// Package intake turns one inbound message into a promo redemption and a
// persisted record of what happened.
package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/textproto"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/showbot/internal/mailer"
	"github.com/nhle/showbot/internal/mailparse"
	"github.com/nhle/showbot/internal/model"
	"github.com/nhle/showbot/internal/normalize"
	"github.com/nhle/showbot/internal/promo"
	"github.com/nhle/showbot/internal/store"
)

// Redeemer redeems the promo code carried by an intake.
type Redeemer interface {
	Redeem(ctx context.Context, in model.Intake) (*promo.Redemption, error)
}

// Notifier sends mail. *mailer.Mailer satisfies it.
type Notifier interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Result is the outcome of handling one message.
type Result struct {
	Intake     model.Intake
	Record     model.IntakeRecord
	Redemption *promo.Redemption
	// Duplicate is set when the message was already processed to a final
	// status and was skipped.
	Duplicate bool
}

// Processor runs the parse, normalize, redeem, record pipeline.
type Processor struct {
	redeemer Redeemer
	store    store.Store
	notifier Notifier
	logger   *log.Logger
	now      func() time.Time
}

// NewProcessor wires a Processor. notifier may be nil to disable
// confirmation mail.
func NewProcessor(r Redeemer, st store.Store, notifier Notifier, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.Default()
	}
	return &Processor{
		redeemer: r,
		store:    st,
		notifier: notifier,
		logger:   logger.WithPrefix("intake"),
		now:      time.Now,
	}
}

// Handle processes one raw RFC822 message. A nil error means the message
// is done with and may be removed from the mailbox, including when it held
// no code or an unknown one. A message already recorded with a final
// status is skipped, so a mailbox that keeps handled messages can be
// scanned repeatedly.
func (p *Processor) Handle(ctx context.Context, raw []byte) (*Result, error) {
	email, err := mailparse.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	return p.process(ctx, email, Fingerprint(email.MessageID, raw))
}

// Fingerprint identifies a message across scans: its Message-ID when it
// has one, otherwise the SHA-256 of its raw bytes.
func Fingerprint(messageID string, raw []byte) string {
	if messageID != "" {
		return "mid:" + messageID
	}
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// HandlePlain processes a message that arrives already decoded, as the
// inbound webhook delivers it. Webhook posts are not deduplicated.
func (p *Processor) HandlePlain(ctx context.Context, sender, subject, plain string) (*Result, error) {
	email := model.InboundEmail{
		Sender:  sender,
		Subject: subject,
		Header:  textproto.MIMEHeader{},
		Body:    plain,
	}
	return p.process(ctx, email, "")
}

func (p *Processor) process(ctx context.Context, email model.InboundEmail, fingerprint string) (*Result, error) {
	in := normalize.Normalize(email)
	res := &Result{Intake: in}

	if fingerprint != "" {
		prior, err := p.lastRecord(ctx, fingerprint)
		if err != nil {
			return nil, err
		}
		if prior != nil && model.FinalStatus(prior.Status) {
			p.logger.Debug("skipping processed message",
				"fingerprint", fingerprint, "status", prior.Status)
			res.Record = *prior
			res.Duplicate = true
			return res, nil
		}
	}

	rec := p.newRecord(in)
	rec.Fingerprint = fingerprint

	redemption, redeemErr := p.redeemer.Redeem(ctx, in)
	switch {
	case redeemErr == nil:
		rec.Status = model.IntakeRedeemed
		rec.TaskID = int64(redemption.TaskID)
		res.Redemption = redemption
	case errors.Is(redeemErr, promo.ErrNoPromoCode):
		rec.Status = model.IntakeNoCode
	case errors.Is(redeemErr, promo.ErrPromoNotFound):
		rec.Status = model.IntakeUnmatched
	default:
		rec.Status = model.IntakeFailed
		rec.Error = redeemErr.Error()
	}

	if err := p.store.RecordIntake(ctx, rec); err != nil {
		if rec.Status == model.IntakeFailed {
			return nil, errors.Join(redeemErr, err)
		}
		return nil, fmt.Errorf("recording intake: %w", err)
	}
	res.Record = rec

	p.logger.Info("processed message",
		"sender", in.Sender,
		"code", rec.PromoCode,
		"status", rec.Status,
	)

	if rec.Status == model.IntakeFailed {
		return res, fmt.Errorf("redeeming message from %s: %w", in.Sender, redeemErr)
	}

	if redemption != nil {
		p.notify(ctx, in, redemption)
	}
	return res, nil
}

// lastRecord returns the newest record for fingerprint, or nil. A message
// is never processed again after a final status, so the newest record
// decides.
func (p *Processor) lastRecord(ctx context.Context, fingerprint string) (*model.IntakeRecord, error) {
	prior, err := p.store.GetIntakes(ctx, store.IntakeFilter{
		Fingerprint: &fingerprint,
		Limit:       1,
	})
	if err != nil {
		return nil, fmt.Errorf("looking up message %s: %w", fingerprint, err)
	}
	if len(prior) == 0 {
		return nil, nil
	}
	return &prior[0], nil
}

func (p *Processor) newRecord(in model.Intake) model.IntakeRecord {
	recipients, _ := json.Marshal(in.Recipients)
	if in.Recipients == nil {
		recipients = []byte("[]")
	}

	rec := model.IntakeRecord{
		MessageID:  in.MessageID,
		Sender:     in.Sender,
		Subject:    in.Subject,
		Recipients: string(recipients),
		Comment:    in.Comment.Text,
		ReceivedAt: p.now(),
	}
	if in.PromoCode != nil {
		rec.PromoCode = in.PromoCode.Raw
	}
	return rec
}

// notify sends the winner a confirmation. Failures are logged only; the
// redemption already happened.
func (p *Processor) notify(ctx context.Context, in model.Intake, r *promo.Redemption) {
	if p.notifier == nil || in.Sender == "" {
		return
	}

	err := p.notifier.Send(ctx, mailer.Message{
		To:        in.Sender,
		Subject:   "Re: " + in.Subject,
		Body:      fmt.Sprintf("You're in! %s is yours, see you at %s.\n", r.Code, r.Show),
		InReplyTo: in.MessageID,
	})
	if err != nil {
		p.logger.Warn("sending confirmation failed", "to", in.Sender, "err", err)
	}
}
