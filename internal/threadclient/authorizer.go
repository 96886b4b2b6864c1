package threadclient

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Authorizer runs calls with a credential from Tokens. An ErrAuth rejection
// triggers one refresh and one retry; concurrent rejections share a single
// refresh. A second rejection, or a failed refresh, is returned as is.
type Authorizer struct {
	Tokens TokenSource

	refreshes singleflight.Group
}

func NewAuthorizer(tokens TokenSource) *Authorizer {
	return &Authorizer{Tokens: tokens}
}

func (a *Authorizer) Do(ctx context.Context, call func(token string) error) error {
	tok, err := a.Tokens.Token(ctx)
	if err == nil {
		err = call(tok)
	}
	if !errors.Is(err, ErrAuth) {
		return err
	}

	v, rerr, _ := a.refreshes.Do("refresh", func() (any, error) {
		return a.Tokens.Refresh(ctx)
	})
	if rerr != nil {
		return fmt.Errorf("%w; refresh: %w", err, rerr)
	}
	return call(v.(string))
}
