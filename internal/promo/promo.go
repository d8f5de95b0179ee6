// Package promo runs the show promotion workflows against Cohuman: issuing
// invite codes to show members and redeeming codes mailed in by friends.
package promo

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/showbot/internal/cohuman"
	"github.com/nhle/showbot/internal/model"
	"github.com/nhle/showbot/internal/store"
)

var (
	// ErrNoPromoCode is returned by Redeem when the intake carries no code.
	ErrNoPromoCode = errors.New("no promo code in message")

	// ErrPromoNotFound is returned by Redeem when no task holds the code.
	ErrPromoNotFound = errors.New("promo code not found")

	// ErrInvalidPrefix is returned by IssuePromos for prefixes that would
	// not survive code extraction.
	ErrInvalidPrefix = errors.New("promo prefix must be letters only")

	errCodesExhausted = errors.New("could not allocate an unused promo code")
)

const (
	suffixRange      = 10000
	maxCodeAttempts  = 25
	taskNameTemplate = "Invite a friend to %s with %s"
	winTemplate      = "ZOMG you both get to go to %s for free!"
)

var prefixPattern = regexp.MustCompile(`^[a-zA-Z]+$`)

// API is the subset of the Cohuman client the workflows need.
type API interface {
	Projects(ctx context.Context) ([]cohuman.ProjectRef, error)
	Project(ctx context.Context, id cohuman.ID) (*cohuman.Project, error)
	AddMember(ctx context.Context, projectID cohuman.ID, addresses string) error
	CreateTask(ctx context.Context, t cohuman.NewTask) (*cohuman.Task, error)
	AddComment(ctx context.Context, taskID cohuman.ID, text string) (*cohuman.Comment, error)
	AddFollower(ctx context.Context, taskID cohuman.ID, addresses string) error
	FinishTask(ctx context.Context, taskID cohuman.ID) error
}

// Options holds the deployment-specific ids and addresses.
type Options struct {
	// ProjectID is the project whose tasks are searched on redemption and
	// to which fans are added.
	ProjectID int64
	// ShowbotUserID is skipped when issuing codes.
	ShowbotUserID int64
	// NewTaskAddress is the inbox friends write to.
	NewTaskAddress string
}

// Service implements the promo workflows.
type Service struct {
	api    API
	store  store.Store
	opts   Options
	logger *log.Logger
	intn   func(n int) int
}

// NewService wires a Service.
func NewService(api API, st store.Store, opts Options, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		api:    api,
		store:  st,
		opts:   opts,
		logger: logger.WithPrefix("promo"),
		intn:   rand.IntN,
	}
}

// Issued describes one promo code handed to a member.
type Issued struct {
	Member cohuman.Member
	Code   string
	TaskID cohuman.ID
}

// Redemption describes a successfully redeemed code.
type Redemption struct {
	Show   string
	Code   string
	TaskID cohuman.ID
}

// IssuePromos gives every member of the show (except showbot itself) a task
// carrying a fresh promo code and the instructions for passing it on.
func (s *Service) IssuePromos(ctx context.Context, showID cohuman.ID, prefix string) ([]Issued, error) {
	if !prefixPattern.MatchString(prefix) {
		return nil, fmt.Errorf("issuing promos with prefix %q: %w", prefix, ErrInvalidPrefix)
	}

	show, err := s.api.Project(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("loading show %s: %w", showID, err)
	}

	var issued []Issued
	for _, member := range show.Members {
		if int64(member.ID) == s.opts.ShowbotUserID {
			continue
		}

		result, err := s.issueOne(ctx, show, member, prefix)
		if err != nil {
			return issued, err
		}
		issued = append(issued, result)
	}

	s.logger.Info("issued promos", "show", show.Name, "count", len(issued))
	return issued, nil
}

func (s *Service) issueOne(
	ctx context.Context, show *cohuman.Project, member cohuman.Member, prefix string,
) (Issued, error) {
	code, err := s.allocateCode(ctx, prefix)
	if err != nil {
		return Issued{}, err
	}

	task, err := s.api.CreateTask(ctx, cohuman.NewTask{
		Name:      fmt.Sprintf(taskNameTemplate, show.Name, code),
		ProjectID: show.ID,
		OwnerID:   member.ID,
	})
	if err != nil {
		return Issued{}, fmt.Errorf("creating promo task for %s: %w", member.Email, err)
	}

	comment, err := s.api.AddComment(ctx, task.ID, Instructions(show.Name, s.opts.NewTaskAddress, code))
	if err != nil {
		return Issued{}, fmt.Errorf("commenting on promo task %s: %w", task.ID, err)
	}

	err = s.store.CreatePromo(ctx, model.Promo{
		Code:      code,
		ProjectID: int64(show.ID),
		MemberID:  int64(member.ID),
		TaskID:    int64(task.ID),
		CommentID: int64(comment.ID),
	})
	if err != nil {
		return Issued{}, fmt.Errorf("recording promo %s: %w", code, err)
	}

	s.logger.Debug("issued promo", "member", member.Email, "code", code, "task", task.ID)
	return Issued{Member: member, Code: code, TaskID: task.ID}, nil
}

// allocateCode picks prefix+N with N in [0, 10000) not yet in the store.
func (s *Service) allocateCode(ctx context.Context, prefix string) (string, error) {
	for range maxCodeAttempts {
		code := fmt.Sprintf("%s%d", prefix, s.intn(suffixRange))

		_, err := s.store.GetPromoByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking promo code %s: %w", code, err)
		}
	}
	return "", fmt.Errorf("prefix %s: %w", prefix, errCodesExhausted)
}

// Instructions is the comment posted on every issued promo task.
func Instructions(show, newTaskAddress, code string) string {
	return fmt.Sprintf(
		"Invite a friend to join you at %s! Have your friend send an email to %s with %s as the first line of the email.",
		show, newTaskAddress, code,
	)
}

// Redeem finds the promo task holding the intake's code, makes the sender a
// follower, posts the win comment and finishes the task.
func (s *Service) Redeem(ctx context.Context, intake model.Intake) (*Redemption, error) {
	if intake.PromoCode == nil {
		return nil, ErrNoPromoCode
	}
	code := intake.PromoCode.Raw

	project, err := s.api.Project(ctx, cohuman.ID(s.opts.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("loading promo project: %w", err)
	}

	task, ok := findTaskByCode(project.Tasks, code)
	if !ok {
		return nil, fmt.Errorf("redeeming %s: %w", code, ErrPromoNotFound)
	}

	if err := s.api.AddFollower(ctx, task.ID, intake.Sender); err != nil {
		return nil, fmt.Errorf("adding %s to task %s: %w", intake.Sender, task.ID, err)
	}
	if _, err := s.api.AddComment(ctx, task.ID, fmt.Sprintf(winTemplate, project.Name)); err != nil {
		return nil, fmt.Errorf("commenting on task %s: %w", task.ID, err)
	}
	if err := s.api.FinishTask(ctx, task.ID); err != nil {
		return nil, fmt.Errorf("finishing task %s: %w", task.ID, err)
	}

	s.logger.Info("redeemed promo", "code", code, "sender", intake.Sender, "task", task.ID)
	return &Redemption{Show: project.Name, Code: code, TaskID: task.ID}, nil
}

// findTaskByCode matches the last word of the task name.
func findTaskByCode(tasks []cohuman.Task, code string) (cohuman.Task, bool) {
	for _, t := range tasks {
		words := strings.Fields(t.Name)
		if len(words) > 0 && words[len(words)-1] == code {
			return t, true
		}
	}
	return cohuman.Task{}, false
}

// AddFan adds an email address as a member of the promo project.
func (s *Service) AddFan(ctx context.Context, address string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(address))
	if err != nil {
		return "", fmt.Errorf("parsing fan address %q: %w", address, err)
	}

	if err := s.api.AddMember(ctx, cohuman.ID(s.opts.ProjectID), addr.Address); err != nil {
		return "", fmt.Errorf("adding fan %s: %w", addr.Address, err)
	}

	s.logger.Info("added fan", "email", addr.Address)
	return addr.Address, nil
}

// Dashboard returns the caller's favorite projects with tasks and members.
func (s *Service) Dashboard(ctx context.Context) ([]cohuman.Project, error) {
	refs, err := s.api.Projects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	projects := make([]cohuman.Project, 0, len(refs))
	for _, ref := range refs {
		p, err := s.api.Project(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("loading project %s: %w", ref.ID, err)
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

// Promos lists the codes issued for a show.
func (s *Service) Promos(ctx context.Context, showID cohuman.ID) ([]model.Promo, error) {
	promos, err := s.store.GetPromos(ctx, int64(showID))
	if err != nil {
		return nil, fmt.Errorf("listing promos for show %s: %w", showID, err)
	}
	return promos, nil
}
