package promo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/showbot/internal/cohuman"
	"github.com/nhle/showbot/internal/model"
	"github.com/nhle/showbot/tests/testutil"
)

const showID cohuman.ID = 7

func newShow() cohuman.Project {
	return cohuman.Project{
		ID:   showID,
		Name: "Burlesque",
		Path: "/project/7",
		Members: []cohuman.Member{
			{ID: 2, Name: "Showbot", Email: "showbot@example.com"},
			{ID: 10, Name: "Alice", Email: "alice@example.com"},
			{ID: 11, Name: "Bob", Email: "bob@example.com"},
		},
	}
}

func newTestService(t *testing.T, api *testutil.FakeCohuman) *Service {
	t.Helper()
	st := testutil.NewTestStore(t)
	return NewService(api, st, Options{
		ProjectID:      int64(showID),
		ShowbotUserID:  2,
		NewTaskAddress: "new@example.com",
	}, nil)
}

func TestIssuePromosSkipsShowbot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api := testutil.NewFakeCohuman(newShow())
	svc := newTestService(t, api)

	issued, err := svc.IssuePromos(ctx, showID, "Burlesque")
	require.NoError(t, err)
	require.Len(t, issued, 2)

	assert.Equal(t, "alice@example.com", issued[0].Member.Email)
	assert.Equal(t, "bob@example.com", issued[1].Member.Email)
	assert.NotEqual(t, issued[0].Code, issued[1].Code)

	for _, is := range issued {
		assert.Regexp(t, `^Burlesque\d{1,4}$`, is.Code)
		assert.Equal(t, []string{Instructions("Burlesque", "new@example.com", is.Code)}, api.Comments[is.TaskID])
	}

	tasks := api.Tasks(showID)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Invite a friend to Burlesque with "+issued[0].Code, tasks[0].Name)
	assert.Equal(t, cohuman.ID(10), tasks[0].OwnerID)

	promos, err := svc.Promos(ctx, showID)
	require.NoError(t, err)
	assert.Len(t, promos, 2)
}

func TestIssuePromosRetriesTakenCodes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	show := newShow()
	show.Members = show.Members[:2]
	api := testutil.NewFakeCohuman(show)
	svc := newTestService(t, api)

	require.NoError(t, svc.store.CreatePromo(ctx, model.Promo{Code: "Show1", ProjectID: 7}))

	draws := []int{1, 1, 42}
	svc.intn = func(int) int {
		n := draws[0]
		draws = draws[1:]
		return n
	}

	issued, err := svc.IssuePromos(ctx, showID, "Show")
	require.NoError(t, err)
	require.Len(t, issued, 1)
	assert.Equal(t, "Show42", issued[0].Code)
}

func TestIssuePromosRejectsBadPrefix(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, testutil.NewFakeCohuman(newShow()))

	for _, prefix := range []string{"", "Show1", "two words", "ünïcode"} {
		_, err := svc.IssuePromos(context.Background(), showID, prefix)
		assert.ErrorIs(t, err, ErrInvalidPrefix, prefix)
	}
}

func TestRedeem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	show := newShow()
	show.Tasks = []cohuman.Task{
		{ID: 500, Name: "Invite a friend to Burlesque with Burlesque12"},
		{ID: 501, Name: "Invite a friend to Burlesque with Burlesque123"},
	}
	api := testutil.NewFakeCohuman(show)
	svc := newTestService(t, api)

	got, err := svc.Redeem(ctx, model.Intake{
		Sender:    "friend@example.com",
		PromoCode: &model.PromoCode{Prefix: "Burlesque", Suffix: "123", Raw: "Burlesque123"},
	})
	require.NoError(t, err)

	assert.Equal(t, &Redemption{Show: "Burlesque", Code: "Burlesque123", TaskID: 501}, got)
	assert.Equal(t, []string{"friend@example.com"}, api.Followers[501])
	assert.Equal(t, []string{"ZOMG you both get to go to Burlesque for free!"}, api.Comments[501])
	assert.Equal(t, []cohuman.ID{501}, api.Finished)
}

func TestRedeemMissingCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api := testutil.NewFakeCohuman(newShow())
	svc := newTestService(t, api)

	_, err := svc.Redeem(ctx, model.Intake{Sender: "friend@example.com"})
	assert.ErrorIs(t, err, ErrNoPromoCode)

	_, err = svc.Redeem(ctx, model.Intake{
		Sender:    "friend@example.com",
		PromoCode: &model.PromoCode{Prefix: "Nope", Suffix: "1", Raw: "Nope1"},
	})
	assert.ErrorIs(t, err, ErrPromoNotFound)
	assert.Empty(t, api.Finished)
}

func TestRedeemPropagatesAPIErrors(t *testing.T) {
	t.Parallel()

	api := testutil.NewFakeCohuman(newShow())
	api.Fail = &cohuman.APIError{Method: "GET", Path: "/project/7", Status: 401}
	svc := newTestService(t, api)

	_, err := svc.Redeem(context.Background(), model.Intake{
		PromoCode: &model.PromoCode{Raw: "Burlesque1"},
	})
	require.Error(t, err)
	assert.True(t, cohuman.IsUnauthorized(err))
}

func TestAddFan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api := testutil.NewFakeCohuman(newShow())
	svc := newTestService(t, api)

	addr, err := svc.AddFan(ctx, "  Fan <fan@example.com> ")
	require.NoError(t, err)
	assert.Equal(t, "fan@example.com", addr)
	assert.Equal(t, []string{"fan@example.com"}, api.Members[showID])

	_, err = svc.AddFan(ctx, "not an address")
	assert.Error(t, err)
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	other := cohuman.Project{ID: 8, Name: "Cabaret"}
	api := testutil.NewFakeCohuman(newShow(), other)
	svc := newTestService(t, api)

	projects, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Burlesque", projects[0].Name)
	assert.Len(t, projects[0].Members, 3)
	assert.Equal(t, "Cabaret", projects[1].Name)

	api.Fail = errors.New("boom")
	_, err = svc.Dashboard(context.Background())
	assert.EqualError(t, err, fmt.Sprintf("listing projects: %s", "boom"))
}
