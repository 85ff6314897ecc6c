package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/rs/zerolog"

	"github.com/mdblp/health-tracker/schema"
)

var ErrNoTokenSource = errors.New("no sign-in method configured")

// TokenValidator checks a raw ID token, *validator.Validator implements it
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (interface{}, error)
}

// TokenSource obtains a fresh ID token from the identity provider
type TokenSource interface {
	IDToken(ctx context.Context) (string, error)
}

type Config struct {
	IssuerURL string
	Audience  []string
	// JWKSCacheTTL defaults to 5 minutes
	JWKSCacheTTL time.Duration
}

// CustomClaims contains the profile data we read from the ID token
type CustomClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Nothing to validate, the profile is informative only
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// NewValidator builds an RS256 validator fetching the issuer keys through a caching JWKS provider
func NewValidator(cfg Config) (*validator.Validator, error) {
	issuerURL, err := url.Parse(cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
	}
	ttl := cfg.JWKSCacheTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	keyProvider := jwks.NewCachingProvider(issuerURL, ttl)

	jwtValidator, err := validator.New(
		keyProvider.KeyFunc,
		validator.RS256,
		cfg.IssuerURL,
		cfg.Audience,
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}
	return jwtValidator, nil
}

// Client holds the sign-in state and broadcasts its changes
type Client struct {
	logger         zerolog.Logger
	tokenValidator TokenValidator

	mu          sync.Mutex
	tokens      TokenSource
	user        *schema.User
	nextSub     int
	subscribers map[int]chan *schema.User
}

// NewClient creates a new Auth Client; tokens may be nil when sign-in only goes through SignInWithToken
func NewClient(logger zerolog.Logger, tokenValidator TokenValidator, tokens TokenSource) *Client {
	return &Client{
		logger:         logger.With().Str("component", "auth").Logger(),
		tokenValidator: tokenValidator,
		tokens:         tokens,
		subscribers:    map[int]chan *schema.User{},
	}
}

func (c *Client) SetTokenSource(tokens TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokens
}

func (c *Client) CurrentUser() *schema.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Subscribe emits the current identity, then every change, until ctx is done.
// A slow reader only misses intermediate states, never the latest one.
func (c *Client) Subscribe(ctx context.Context) <-chan *schema.User {
	ch := make(chan *schema.User, 1)
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subscribers[id] = ch
	ch <- c.user
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subscribers, id)
		close(ch)
		c.mu.Unlock()
	}()
	return ch
}

// setUser must be called with c.mu held
func (c *Client) setUser(user *schema.User) {
	c.user = user
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- user
	}
}

// SignIn obtains an ID token from the token source and signs in with it
func (c *Client) SignIn(ctx context.Context) error {
	c.mu.Lock()
	tokens := c.tokens
	c.mu.Unlock()
	if tokens == nil {
		return ErrNoTokenSource
	}
	raw, err := tokens.IDToken(ctx)
	if err != nil {
		return fmt.Errorf("obtain id token: %w", err)
	}
	_, err = c.SignInWithToken(ctx, raw)
	return err
}

// SignInWithToken validates rawToken and makes its subject the current user
func (c *Client) SignInWithToken(ctx context.Context, rawToken string) (*schema.User, error) {
	user, err := c.userFromToken(ctx, rawToken)
	if err != nil {
		c.logger.Error().Err(err).Msg("invalid id token")
		return nil, err
	}
	c.mu.Lock()
	c.setUser(user)
	c.mu.Unlock()
	c.logger.Info().Str("user", user.ID).Msg("signed in")
	return user, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user != nil {
		c.setUser(nil)
	}
	return nil
}

// Authenticate reads the bearer token of req and returns its user, without changing the sign-in state
func (c *Client) Authenticate(req *http.Request) (*schema.User, error) {
	rawToken, err := jwtmiddleware.AuthHeaderTokenExtractor(req)
	if err != nil {
		return nil, fmt.Errorf("error decoding bearer token: %w", err)
	}
	if rawToken == "" {
		return nil, errors.New("missing bearer token")
	}
	return c.userFromToken(req.Context(), rawToken)
}

func (c *Client) userFromToken(ctx context.Context, rawToken string) (*schema.User, error) {
	if c.tokenValidator == nil {
		return nil, errors.New("no token validator configured")
	}
	t, err := c.tokenValidator.ValidateToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	claims, ok := t.(*validator.ValidatedClaims)
	if !ok || claims == nil {
		return nil, errors.New("unexpected claims type")
	}
	return userFromClaims(claims)
}

func userFromClaims(claims *validator.ValidatedClaims) (*schema.User, error) {
	uid := claims.RegisteredClaims.Subject
	// provider prefixed subjects look like "google-oauth2|1234"
	if i := strings.LastIndex(uid, "|"); i >= 0 {
		uid = uid[i+1:]
	}
	if uid == "" {
		return nil, errors.New("token without subject")
	}
	user := &schema.User{ID: uid}
	if custom, ok := claims.CustomClaims.(*CustomClaims); ok && custom != nil {
		user.Email = custom.Email
		user.DisplayName = custom.Name
		user.PhotoURL = custom.Picture
	}
	return user, nil
}
