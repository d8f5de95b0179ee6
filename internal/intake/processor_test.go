package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/showbot/internal/cohuman"
	"github.com/nhle/showbot/internal/mailer"
	"github.com/nhle/showbot/internal/model"
	"github.com/nhle/showbot/internal/promo"
	"github.com/nhle/showbot/internal/store"
	"github.com/nhle/showbot/tests/testutil"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg mailer.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

type fixture struct {
	api      *testutil.FakeCohuman
	store    *store.SQLiteStore
	notifier *recordingNotifier
	proc     *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	api := testutil.NewFakeCohuman(cohuman.Project{
		ID:   7,
		Name: "Burlesque",
		Tasks: []cohuman.Task{
			{ID: 501, Name: "Invite a friend to Burlesque with Burlesque123"},
		},
	})
	st := testutil.NewTestStore(t)
	svc := promo.NewService(api, st, promo.Options{ProjectID: 7, ShowbotUserID: 2}, nil)
	notifier := &recordingNotifier{}

	return &fixture{
		api:      api,
		store:    st,
		notifier: notifier,
		proc:     NewProcessor(svc, st, notifier, nil),
	}
}

func rawMessage(body string) []byte {
	return []byte(strings.Join([]string{
		"From: Friend <friend@example.com>",
		"To: showbot@example.com",
		"Subject: Fwd: tickets",
		"Message-Id: <m1@example.com>",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n"))
}

func TestHandleRedeems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.proc.Handle(ctx, rawMessage("Burlesque123\r\nsee you there\r\n-- \r\nsent from my phone"))
	require.NoError(t, err)

	require.NotNil(t, res.Redemption)
	assert.Equal(t, "Burlesque", res.Redemption.Show)
	assert.Equal(t, model.IntakeRedeemed, res.Record.Status)
	assert.Equal(t, int64(501), res.Record.TaskID)
	assert.Equal(t, "Burlesque123\nsee you there", res.Record.Comment)
	assert.Equal(t, `["showbot@example.com"]`, res.Record.Recipients)
	assert.Equal(t, "tickets", res.Intake.Subject)

	assert.Equal(t, []cohuman.ID{501}, f.api.Finished)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "friend@example.com", f.notifier.sent[0].To)
	assert.Equal(t, "Re: tickets", f.notifier.sent[0].Subject)

	records, err := f.store.GetIntakes(ctx, store.IntakeFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Burlesque123", records[0].PromoCode)
}

func TestHandleSkipsRedeemedMessageID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	raw := rawMessage("Burlesque123")
	_, err := f.proc.Handle(ctx, raw)
	require.NoError(t, err)

	res, err := f.proc.Handle(ctx, raw)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, model.IntakeRedeemed, res.Record.Status)
	assert.Len(t, f.api.Finished, 1)
}

func TestHandleSkipsMessageWithFinalRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	raw := rawMessage("just saying hi")
	for range 3 {
		_, err := f.proc.Handle(ctx, raw)
		require.NoError(t, err)
	}

	res, err := f.proc.Handle(ctx, raw)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, model.IntakeNoCode, res.Record.Status)

	records, err := f.store.GetIntakes(ctx, store.IntakeFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "mid:m1@example.com", records[0].Fingerprint)
}

func TestHandleRetriesFailedMessage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	raw := rawMessage("Burlesque123")

	f.api.Fail = errors.New("connection reset")
	_, err := f.proc.Handle(ctx, raw)
	require.Error(t, err)

	f.api.Fail = nil
	res, err := f.proc.Handle(ctx, raw)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, model.IntakeRedeemed, res.Record.Status)

	res, err = f.proc.Handle(ctx, raw)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, []cohuman.ID{501}, f.api.Finished)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mid:m1@example.com", Fingerprint("m1@example.com", []byte("anything")))

	a := Fingerprint("", []byte("Burlesque123"))
	assert.True(t, strings.HasPrefix(a, "sha256:"))
	assert.Len(t, a, len("sha256:")+64)
	assert.Equal(t, a, Fingerprint("", []byte("Burlesque123")))
	assert.NotEqual(t, a, Fingerprint("", []byte("Burlesque124")))
}

func TestHandleOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		status string
	}{
		{"no code", "just saying hi", model.IntakeNoCode},
		{"unknown code", "Cabaret9", model.IntakeUnmatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			res, err := f.proc.Handle(context.Background(), rawMessage(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Record.Status)
			assert.Nil(t, res.Redemption)
			assert.Empty(t, f.notifier.sent)
			assert.Empty(t, f.api.Finished)
		})
	}
}

func TestHandleRecordsAPIFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.api.Fail = errors.New("connection reset")

	res, err := f.proc.Handle(ctx, rawMessage("Burlesque123"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, model.IntakeFailed, res.Record.Status)

	failed := model.IntakeFailed
	records, err := f.store.GetIntakes(ctx, store.IntakeFilter{Status: &failed})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Error, "connection reset")
}

func TestHandleNotifierErrorIsNotFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.notifier.err = errors.New("relay down")

	res, err := f.proc.Handle(context.Background(), rawMessage("Burlesque123"))
	require.NoError(t, err)
	assert.Equal(t, model.IntakeRedeemed, res.Record.Status)
}

func TestHandlePlain(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res, err := f.proc.HandlePlain(context.Background(), "friend@example.com", "RE: re: tickets", "  Burlesque123  \n\nthanks!")
	require.NoError(t, err)
	assert.Equal(t, model.IntakeRedeemed, res.Record.Status)
	assert.Equal(t, "tickets", res.Intake.Subject)
	assert.Equal(t, []string{"friend@example.com"}, f.api.Followers[501])
	assert.Equal(t, "[]", res.Record.Recipients)
}
