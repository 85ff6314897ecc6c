package api

import (
	"context"
	"net/http"

	"github.com/mdblp/health-tracker/advice"
	"github.com/mdblp/health-tracker/schema"
)

// Authenticator validates ID tokens, auth.Client implements it
type Authenticator interface {
	Authenticate(req *http.Request) (*schema.User, error)
	SignInWithToken(ctx context.Context, rawToken string) (*schema.User, error)
}

type Advisor interface {
	Configured() bool
	Advise(ctx context.Context, req advice.Request) (string, error)
}
