package openbanking

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"golang.org/x/oauth2"
)

// countingAuth issues tokens "token-1", "token-2", ... and counts calls.
type countingAuth struct {
	calls    atomic.Int32
	previous []*oauth2.Token
	err      error
}

func (a *countingAuth) Authenticate(_ context.Context, previous *oauth2.Token) (*oauth2.Token, error) {
	n := a.calls.Add(1)
	a.previous = append(a.previous, previous)
	if a.err != nil {
		return nil, a.err
	}
	return &oauth2.Token{AccessToken: fmt.Sprintf("token-%d", n), RefreshToken: fmt.Sprintf("refresh-%d", n)}, nil
}

func (a *countingAuth) Apply(req *http.Request, token *oauth2.Token) {
	req.Header.Set("X-Test-Key", token.AccessToken)
}
