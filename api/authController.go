package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/markbates/goth/gothic"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
)

var errNoIDToken = errors.New("provider returned no id token")

type tokenRequest struct {
	IDToken string `json:"idToken"`
}

type userResponse struct {
	User *schema.User `json:"user"`
}

func (a *API) setAuthHandlers(prefix string, rtr *mux.Router) {
	rtr.HandleFunc(prefix+"/me", a.middleware(a.getMe, false)).Methods(http.MethodGet)
	rtr.HandleFunc(prefix+"/token", a.middleware(a.postToken, false)).Methods(http.MethodPost)
	rtr.HandleFunc(prefix+"/signin", a.middleware(a.postSignIn, false)).Methods(http.MethodPost)
	rtr.HandleFunc(prefix+"/signout", a.postSignOut).Methods(http.MethodPost)
	rtr.HandleFunc(prefix+"/{provider}/callback", a.getProviderCallback).Methods(http.MethodGet)
	rtr.HandleFunc(prefix+"/{provider}", a.getProviderBegin).Methods(http.MethodGet)
}

func (a *API) getMe(ctx context.Context, res *common.HttpResponseWriter) error {
	return res.WriteJSON(userResponse{User: a.session.User()})
}

// postToken signs in with an ID token obtained by the front-end
func (a *API) postToken(ctx context.Context, res *common.HttpResponseWriter) error {
	if a.auth == nil {
		return res.WriteError(common.NewError(common.CodeIdentity, "token sign-in is not configured", nil))
	}
	var in tokenRequest
	if err := res.DecodeBody(&in); err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	user, err := a.auth.SignInWithToken(ctx, in.IDToken)
	if err != nil {
		return res.WriteError(common.NewError(common.CodeUnauthorized, "Sign-in failed", err))
	}
	return res.WriteJSON(userResponse{User: user})
}

// postSignIn runs the sign-in flow of the identity provider (device flow)
func (a *API) postSignIn(ctx context.Context, res *common.HttpResponseWriter) error {
	if err := a.session.SignIn(ctx); err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	return res.WriteJSON(userResponse{User: a.session.User()})
}

func (a *API) postSignOut(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := gothic.Logout(w, r); err != nil {
		a.logger.Debug().Err(err).Msg("no provider session to clear")
	}
	if err := a.session.SignOut(r.Context()); err != nil {
		a.jsonError(w, *common.ToDetailedError(err), start)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getProviderBegin redirects to the provider consent page, or completes at once when a provider session exists
func (a *API) getProviderBegin(w http.ResponseWriter, r *http.Request) {
	if user, err := gothic.CompleteUserAuth(w, r); err == nil && user.IDToken != "" {
		a.signInProvider(w, r, user.IDToken, time.Now())
		return
	}
	gothic.BeginAuthHandler(w, r)
}

func (a *API) getProviderCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	user, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		a.jsonError(w, *common.NewError(common.CodeIdentity, "Sign-in failed", err), start)
		return
	}
	if user.IDToken == "" {
		a.jsonError(w, *common.NewError(common.CodeIdentity, "Sign-in failed", errNoIDToken), start)
		return
	}
	a.signInProvider(w, r, user.IDToken, start)
}

func (a *API) signInProvider(w http.ResponseWriter, r *http.Request, idToken string, start time.Time) {
	if a.auth == nil {
		a.jsonError(w, *common.NewError(common.CodeIdentity, "token sign-in is not configured", nil), start)
		return
	}
	if _, err := a.auth.SignInWithToken(r.Context(), idToken); err != nil {
		a.jsonError(w, *common.NewError(common.CodeIdentity, "Sign-in failed", err), start)
		return
	}
	http.Redirect(w, r, "/v1/view/dashboard", http.StatusFound)
}
