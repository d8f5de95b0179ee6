package cohuman

import (
	"fmt"
	"strconv"
	"strings"
)

// ID is a Cohuman object id. The API sends ids both as numbers and as
// numeric strings.
type ID int64

// UnmarshalJSON accepts 42, "42" and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid cohuman id %s: %w", b, err)
	}
	*id = ID(n)
	return nil
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ProjectRef is a project entry in the /projects listing.
type ProjectRef struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Project is a Cohuman project; showbot treats each one as a show.
type Project struct {
	ID      ID       `json:"id"`
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Tasks   []Task   `json:"tasks"`
	Members []Member `json:"members"`
}

// Task is a Cohuman task.
type Task struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	OwnerID ID     `json:"owner_id"`
}

// Member is a user on a project.
type Member struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Comment is a task comment.
type Comment struct {
	ID   ID     `json:"id"`
	Text string `json:"text"`
}

// NewTask is the payload for CreateTask.
type NewTask struct {
	Name      string
	ProjectID ID
	OwnerID   ID
}

type projectsResponse struct {
	Projects struct {
		Favorites []ProjectRef `json:"favorites"`
	} `json:"projects"`
}

type projectResponse struct {
	Project Project `json:"project"`
}

type taskResponse struct {
	Task Task `json:"task"`
}

type commentResponse struct {
	Comment Comment `json:"comment"`
}
