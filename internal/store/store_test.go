package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/showbot/internal/model"
	"github.com/nhle/showbot/internal/store"
	"github.com/nhle/showbot/tests/testutil"
)

func TestRecordAndGetIntakes(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordIntake(ctx, model.IntakeRecord{
		MessageID:  "one@example.com",
		Sender:     "friend@example.com",
		PromoCode:  "Burlesque123",
		Recipients: `["showbot@example.com"]`,
		Status:     model.IntakeRedeemed,
		TaskID:     10,
		ReceivedAt: base,
	}))
	require.NoError(t, s.RecordIntake(ctx, model.IntakeRecord{
		MessageID:  "two@example.com",
		Status:     model.IntakeNoCode,
		ReceivedAt: base.Add(time.Hour),
	}))

	all, err := s.GetIntakes(ctx, store.IntakeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "two@example.com", all[0].MessageID)
	assert.NotEmpty(t, all[1].ID)
	assert.Equal(t, int64(10), all[1].TaskID)

	status := model.IntakeRedeemed
	redeemed, err := s.GetIntakes(ctx, store.IntakeFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, redeemed, 1)
	assert.Equal(t, "Burlesque123", redeemed[0].PromoCode)

	limited, err := s.GetIntakes(ctx, store.IntakeFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordIntakeRejectsUnknownStatus(t *testing.T) {
	s := testutil.NewTestStore(t)

	err := s.RecordIntake(context.Background(), model.IntakeRecord{Status: "bogus"})
	assert.Error(t, err)
}

func TestCreatePromoRejectsDuplicateCode(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePromo(ctx, model.Promo{
		Code: "Burlesque123", ProjectID: 1, MemberID: 3, TaskID: 10,
	}))

	err := s.CreatePromo(ctx, model.Promo{Code: "Burlesque123", ProjectID: 1, MemberID: 4})
	require.ErrorIs(t, err, store.ErrDuplicateCode)

	p, err := s.GetPromoByCode(ctx, "Burlesque123")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.MemberID)

	_, err = s.GetPromoByCode(ctx, "Nope1")
	require.ErrorIs(t, err, store.ErrNotFound)

	promos, err := s.GetPromos(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, promos, 1)
}

func TestPendingTokens(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.SavePendingToken(ctx, model.PendingToken{
		Token: "req-1", Secret: "shh", CreatedAt: now,
	}))
	require.NoError(t, s.SavePendingToken(ctx, model.PendingToken{
		Token: "req-old", Secret: "old", CreatedAt: now.Add(-48 * time.Hour),
	}))

	purged, err := s.PurgePendingTokens(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	tok, err := s.TakePendingToken(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "shh", tok.Secret)

	_, err = s.TakePendingToken(ctx, "req-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMigrationsApplyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "showbot.db")
	ctx := context.Background()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)

	version, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	require.NoError(t, s.CreatePromo(ctx, model.Promo{Code: "Opera7", ProjectID: 1, MemberID: 3}))
	require.NoError(t, s.Close())

	reopened, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	version, err = reopened.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	p, err := reopened.GetPromoByCode(ctx, "Opera7")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.MemberID)
}

func TestGetIntakesByFingerprint(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	for _, status := range []string{model.IntakeFailed, model.IntakeRedeemed} {
		require.NoError(t, s.RecordIntake(ctx, model.IntakeRecord{
			Fingerprint: "sha256:abc",
			Status:      status,
			ReceivedAt:  at,
		}))
	}
	require.NoError(t, s.RecordIntake(ctx, model.IntakeRecord{
		Fingerprint: "mid:other@example.com",
		Status:      model.IntakeNoCode,
		ReceivedAt:  at.Add(time.Minute),
	}))

	fp := "sha256:abc"
	latest, err := s.GetIntakes(ctx, store.IntakeFilter{Fingerprint: &fp, Limit: 1})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, model.IntakeRedeemed, latest[0].Status)
	assert.Equal(t, fp, latest[0].Fingerprint)
}
