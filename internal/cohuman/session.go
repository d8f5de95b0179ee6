package cohuman

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/nhle/showbot/internal/model"
)

// ErrNotAuthorized is returned by Session calls made before an access token
// has been granted.
var ErrNotAuthorized = errors.New("cohuman: not authorized")

// Session holds the current signed client. The access token can change at
// runtime when the OAuth callback completes or the user logs out.
type Session struct {
	cfg    model.CohumanConfig
	logger *log.Logger

	mu     sync.RWMutex
	client *Client
}

// NewSession creates a session, already authorized when cfg carries an
// access token.
func NewSession(cfg model.CohumanConfig, logger *log.Logger) *Session {
	s := &Session{cfg: cfg, logger: logger}
	if cfg.AccessToken != "" {
		s.client = NewOAuthClient(context.Background(), cfg, logger)
	}
	return s
}

// Authorized reports whether an access token is in place.
func (s *Session) Authorized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

// SetAccessToken swaps in a client signed with token and secret.
func (s *Session) SetAccessToken(token, secret string) {
	cfg := s.cfg
	cfg.AccessToken = token
	cfg.AccessSecret = secret

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.client = NewOAuthClient(context.Background(), cfg, s.logger)
}

// SetClient installs c directly.
func (s *Session) SetClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = c
}

// Logout revokes the token with Cohuman and drops the client. The local
// session is cleared even when the remote call fails.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	c := s.client
	s.client = nil
	s.cfg.AccessToken = ""
	s.cfg.AccessSecret = ""
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Logout(ctx)
}

func (s *Session) current() (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, ErrNotAuthorized
	}
	return s.client, nil
}

func (s *Session) Projects(ctx context.Context) ([]ProjectRef, error) {
	c, err := s.current()
	if err != nil {
		return nil, err
	}
	return c.Projects(ctx)
}

func (s *Session) Project(ctx context.Context, id ID) (*Project, error) {
	c, err := s.current()
	if err != nil {
		return nil, err
	}
	return c.Project(ctx, id)
}

func (s *Session) AddMember(ctx context.Context, projectID ID, addresses string) error {
	c, err := s.current()
	if err != nil {
		return err
	}
	return c.AddMember(ctx, projectID, addresses)
}

func (s *Session) CreateTask(ctx context.Context, t NewTask) (*Task, error) {
	c, err := s.current()
	if err != nil {
		return nil, err
	}
	return c.CreateTask(ctx, t)
}

func (s *Session) AddComment(ctx context.Context, taskID ID, text string) (*Comment, error) {
	c, err := s.current()
	if err != nil {
		return nil, err
	}
	return c.AddComment(ctx, taskID, text)
}

func (s *Session) AddFollower(ctx context.Context, taskID ID, addresses string) error {
	c, err := s.current()
	if err != nil {
		return err
	}
	return c.AddFollower(ctx, taskID, addresses)
}

func (s *Session) FinishTask(ctx context.Context, taskID ID) error {
	c, err := s.current()
	if err != nil {
		return err
	}
	return c.FinishTask(ctx, taskID)
}
