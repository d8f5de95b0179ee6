package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/nhle/showbot/internal/cohuman"
)

// FakeCohuman is an in-memory stand-in for the Cohuman API. Projects are
// seeded directly; mutating calls are recorded.
type FakeCohuman struct {
	mu sync.Mutex

	Favorites []cohuman.ProjectRef
	Shows     map[cohuman.ID]*cohuman.Project

	Members   map[cohuman.ID][]string
	Followers map[cohuman.ID][]string
	Comments  map[cohuman.ID][]string
	Finished  []cohuman.ID

	// Fail, when set, is returned by every call.
	Fail error

	nextID cohuman.ID
}

// NewFakeCohuman returns a fake seeded with the given projects, all of them
// favorites.
func NewFakeCohuman(projects ...cohuman.Project) *FakeCohuman {
	f := &FakeCohuman{
		Shows:     make(map[cohuman.ID]*cohuman.Project),
		Members:   make(map[cohuman.ID][]string),
		Followers: make(map[cohuman.ID][]string),
		Comments:  make(map[cohuman.ID][]string),
		nextID:    1000,
	}
	for i := range projects {
		p := projects[i]
		f.Shows[p.ID] = &p
		f.Favorites = append(f.Favorites, cohuman.ProjectRef{ID: p.ID, Name: p.Name, Path: p.Path})
	}
	return f
}

func (f *FakeCohuman) Projects(_ context.Context) ([]cohuman.ProjectRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return nil, f.Fail
	}
	return append([]cohuman.ProjectRef(nil), f.Favorites...), nil
}

func (f *FakeCohuman) Project(_ context.Context, id cohuman.ID) (*cohuman.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return nil, f.Fail
	}
	p, ok := f.Shows[id]
	if !ok {
		return nil, &cohuman.APIError{Method: "GET", Path: fmt.Sprintf("/project/%s", id), Status: 404}
	}
	cp := *p
	cp.Tasks = append([]cohuman.Task(nil), p.Tasks...)
	cp.Members = append([]cohuman.Member(nil), p.Members...)
	return &cp, nil
}

func (f *FakeCohuman) AddMember(_ context.Context, projectID cohuman.ID, addresses string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	f.Members[projectID] = append(f.Members[projectID], addresses)
	return nil
}

func (f *FakeCohuman) CreateTask(_ context.Context, t cohuman.NewTask) (*cohuman.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return nil, f.Fail
	}
	f.nextID++
	task := cohuman.Task{ID: f.nextID, Name: t.Name, OwnerID: t.OwnerID}
	if p, ok := f.Shows[t.ProjectID]; ok {
		p.Tasks = append(p.Tasks, task)
	}
	return &task, nil
}

func (f *FakeCohuman) AddComment(_ context.Context, taskID cohuman.ID, text string) (*cohuman.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return nil, f.Fail
	}
	f.nextID++
	f.Comments[taskID] = append(f.Comments[taskID], text)
	return &cohuman.Comment{ID: f.nextID, Text: text}, nil
}

func (f *FakeCohuman) AddFollower(_ context.Context, taskID cohuman.ID, addresses string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	f.Followers[taskID] = append(f.Followers[taskID], addresses)
	return nil
}

func (f *FakeCohuman) FinishTask(_ context.Context, taskID cohuman.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	f.Finished = append(f.Finished, taskID)
	return nil
}

// Tasks returns a snapshot of a project's tasks.
func (f *FakeCohuman) Tasks(projectID cohuman.ID) []cohuman.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Shows[projectID]; ok {
		return append([]cohuman.Task(nil), p.Tasks...)
	}
	return nil
}
