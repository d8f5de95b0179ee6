package cohuman

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), srv.URL+"/", 0, nil)
}

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	t.Parallel()

	var got struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 7, "b": "42", "c": null}`), &got))
	assert.Equal(t, ID(7), got.A)
	assert.Equal(t, ID(42), got.B)
	assert.Equal(t, ID(0), got.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a": "seven"}`), &got))
}

func TestProjects(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/projects", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`{"projects": {"favorites": [
			{"id": 1, "name": "Burlesque", "path": "/project/1"}
		]}}`))
	})

	refs, err := c.Projects(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Burlesque", refs[0].Name)
	assert.Equal(t, "/project/1", refs[0].Path)
}

func TestProject(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/project/1", r.URL.Path)
		_, _ = w.Write([]byte(`{"project": {"id": "1", "name": "Burlesque",
			"tasks": [{"id": "10", "name": "Invite a friend with Burlesque123"}],
			"members": [{"id": 2}, {"id": 3, "email": "m@example.com"}]}}`))
	})

	p, err := c.Project(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Burlesque", p.Name)
	require.Len(t, p.Tasks, 1)
	assert.Equal(t, ID(10), p.Tasks[0].ID)
	require.Len(t, p.Members, 2)
	assert.Equal(t, "m@example.com", p.Members[1].Email)
}

func TestCreateTaskPostsForm(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/task", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Invite", r.PostForm.Get("name"))
		assert.Equal(t, "1", r.PostForm.Get("project_id"))
		assert.Equal(t, "3", r.PostForm.Get("owner_id"))
		assert.Equal(t, "json", r.PostForm.Get("format"))
		_, _ = w.Write([]byte(`{"task": {"id": 99, "name": "Invite"}}`))
	})

	task, err := c.CreateTask(context.Background(), NewTask{
		Name: "Invite", ProjectID: 1, OwnerID: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, ID(99), task.ID)
}

func TestFollowCommentFinish(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		paths []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/task/5/follower":
			assert.Equal(t, "friend@example.com", r.PostForm.Get("addresses"))
			_, _ = w.Write([]byte(`{}`))
		case "/task/5/comment":
			assert.Equal(t, "hello", r.PostForm.Get("text"))
			_, _ = w.Write([]byte(`{"comment": {"id": 8, "text": "hello"}}`))
		default:
			_, _ = w.Write([]byte(`ok`))
		}
	})

	ctx := context.Background()
	require.NoError(t, c.AddFollower(ctx, 5, "friend@example.com"))
	comment, err := c.AddComment(ctx, 5, "hello")
	require.NoError(t, err)
	assert.Equal(t, ID(8), comment.ID)
	require.NoError(t, c.FinishTask(ctx, 5))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t,
		[]string{"/task/5/follower", "/task/5/comment", "/task/5/activity/finish"},
		paths,
	)
}

func TestAPIErrors(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/projects" {
			http.Error(w, "token rejected", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := c.Projects(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	_, err = c.Project(context.Background(), 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusOK, apiErr.Status)
	assert.Contains(t, apiErr.Body, "oops")
	assert.False(t, IsUnauthorized(err))
}
