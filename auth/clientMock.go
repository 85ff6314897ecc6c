package auth

import (
	"context"
	"sync"

	"github.com/mdblp/health-tracker/schema"
)

// ClientMock is an identity provider driven by the test
type ClientMock struct {
	mu          sync.Mutex
	user        *schema.User
	NextUser    *schema.User
	SignInErr   error
	SignOutErr  error
	subscribers []chan *schema.User
}

func NewMock() *ClientMock {
	return &ClientMock{NextUser: &schema.User{ID: "123.456.789", DisplayName: "Test User"}}
}

func (c *ClientMock) CurrentUser() *schema.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *ClientMock) Subscribe(ctx context.Context) <-chan *schema.User {
	ch := make(chan *schema.User, 16)
	c.mu.Lock()
	ch <- c.user
	c.subscribers = append(c.subscribers, ch)
	c.mu.Unlock()
	return ch
}

// SetUser emits user on every subscription, nil meaning signed out
func (c *ClientMock) SetUser(user *schema.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
	for _, ch := range c.subscribers {
		ch <- user
	}
}

func (c *ClientMock) SignIn(ctx context.Context) error {
	if c.SignInErr != nil {
		return c.SignInErr
	}
	c.SetUser(c.NextUser)
	return nil
}

func (c *ClientMock) SignOut(ctx context.Context) error {
	if c.SignOutErr != nil {
		return c.SignOutErr
	}
	c.SetUser(nil)
	return nil
}
