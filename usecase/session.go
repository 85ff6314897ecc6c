package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
)

type SessionConfig struct {
	AppID string
	// Location is used to compose and display dates, time.Local when nil
	Location *time.Location
	// Now defaults to time.Now
	Now func() time.Time
}

// Session binds the identity stream to the mounted view. Every identity
// change unmounts the view of the previous user, closing all of its
// subscriptions, before anything is mounted for the new one.
type Session struct {
	logger   zerolog.Logger
	db       DocumentDatabase
	identity IdentityProvider
	appID    string
	loc      *time.Location
	now      func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	user    *schema.User
	tab     Tab
	view    *View
	swapped chan struct{}
}

func NewSession(logger zerolog.Logger, db DocumentDatabase, identity IdentityProvider, cfg SessionConfig) *Session {
	if cfg.AppID == "" {
		cfg.AppID = schema.DefaultAppID
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{
		logger:   logger.With().Str("component", "session").Logger(),
		db:       db,
		identity: identity,
		appID:    cfg.AppID,
		loc:      cfg.Location,
		now:      cfg.Now,
		ctx:      context.Background(),
		tab:      TabDashboard,
		swapped:  make(chan struct{}),
	}
}

// Run consumes identity changes until ctx is done, then unmounts the view
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	defer s.Close()

	users := s.identity.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case user, ok := <-users:
			if !ok {
				return nil
			}
			s.bind(user)
		}
	}
}

func (s *Session) bind(user *schema.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if schema.SameUser(s.user, user) {
		s.user = user
		return
	}
	s.unmountLocked()
	s.user = user
	if user == nil {
		s.logger.Info().Msg("signed out")
		s.notifyLocked()
		return
	}
	s.logger.Info().Str("user", user.ID).Msg("signed in")
	if _, err := s.mountLocked(s.tab); err != nil {
		s.logger.Error().Err(err).Str("tab", string(s.tab)).Msg("mount after sign-in failed")
	}
}

// Mount switches the mounted view to tab. Mounting the tab already shown
// keeps its subscriptions.
func (s *Session) Mount(tab Tab) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil, common.NewError(common.CodeIdentity, "Please sign in", nil)
	}
	s.tab = tab
	if s.view != nil && s.view.Route.Tab == tab && s.view.UserID == s.user.ID && !s.view.IsClosed() {
		return s.view, nil
	}
	return s.mountLocked(tab)
}

func (s *Session) mountLocked(tab Tab) (*View, error) {
	s.unmountLocked()
	logger := s.logger.With().Str("user", s.user.ID).Logger()
	view, err := mountView(s.ctx, logger, s.db, s.appID, s.user.ID, RouteFor(tab), s.loc, s.now)
	if err != nil {
		s.notifyLocked()
		return nil, err
	}
	s.view = view
	s.notifyLocked()
	return view, nil
}

func (s *Session) unmountLocked() {
	if s.view != nil {
		s.view.Close()
		s.view = nil
	}
}

func (s *Session) notifyLocked() {
	close(s.swapped)
	s.swapped = make(chan struct{})
}

// Swapped is closed the next time the mounted view changes
func (s *Session) Swapped() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swapped
}

// View returns the mounted view, nil when signed out
func (s *Session) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Session) User() *schema.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// UserID returns the signed-in user id or an identity error
func (s *Session) UserID() (string, error) {
	user := s.User()
	if user == nil {
		return "", common.NewError(common.CodeIdentity, "Please sign in", nil)
	}
	return user.ID, nil
}

func (s *Session) Tab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

func (s *Session) Location() *time.Location {
	return s.loc
}

// SignIn delegates to the identity provider; failures are logged and surfaced, never retried
func (s *Session) SignIn(ctx context.Context) error {
	if err := s.identity.SignIn(ctx); err != nil {
		s.logger.Error().Err(err).Msg("sign-in failed")
		return common.NewError(common.CodeIdentity, "Sign-in failed", err)
	}
	return nil
}

func (s *Session) SignOut(ctx context.Context) error {
	if err := s.identity.SignOut(ctx); err != nil {
		s.logger.Error().Err(err).Msg("sign-out failed")
		return common.NewError(common.CodeIdentity, "Sign-out failed", err)
	}
	return nil
}

// Close unmounts the view
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmountLocked()
}
