package credentials

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/satyaki-up/bugit/internal/launchpad"
)

// AccessLevelWritePrivate lets the token read and change private bugs.
const AccessLevelWritePrivate = "WRITE_PRIVATE"

// TokenExchanger is the OAuth handshake with the Launchpad web root.
type TokenExchanger interface {
	RequestToken(ctx context.Context) (launchpad.RequestToken, error)
	AuthorizeURL(token launchpad.RequestToken, levels []string) string
	AccessToken(ctx context.Context, token launchpad.RequestToken) (launchpad.AccessGrant, error)
}

// ConfirmFunc shows authorizeURL to the user and returns once they say the
// token was approved.
type ConfirmFunc func(ctx context.Context, authorizeURL string) error

type LoginRequest struct {
	Consumer string
	Instance string
	Levels   []string
	Confirm  ConfirmFunc
}

// LoginWith returns cached credentials for the consumer, or runs the token
// exchange and caches its result.
func LoginWith(ctx context.Context, store *Store, ex TokenExchanger, req LoginRequest, logger *zap.Logger) (*Credentials, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cached, err := store.Load(ctx, req.Consumer, req.Instance)
	if err == nil {
		logger.Debug("using cached credentials", zap.String("consumer", req.Consumer), zap.String("instance", req.Instance))
		return cached, nil
	}
	if !errors.Is(err, ErrNotCached) {
		return nil, err
	}
	if req.Confirm == nil {
		return nil, fmt.Errorf("%w and no way to ask for authorization", err)
	}

	levels := req.Levels
	if len(levels) == 0 {
		levels = []string{AccessLevelWritePrivate}
	}

	rt, err := ex.RequestToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}
	authorizeURL := ex.AuthorizeURL(rt, levels)
	logger.Info("authorization required", zap.String("url", authorizeURL))
	if err := req.Confirm(ctx, authorizeURL); err != nil {
		return nil, err
	}

	grant, err := ex.AccessToken(ctx, rt)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}

	creds := Credentials{
		Consumer: req.Consumer,
		Instance: req.Instance,
		Token:    grant.Token,
		Secret:   grant.Secret,
		Context:  grant.Context,
	}
	if err := store.Save(ctx, creds); err != nil {
		return nil, err
	}
	logger.Info("credentials cached", zap.String("consumer", req.Consumer), zap.String("instance", req.Instance))
	return store.Load(ctx, req.Consumer, req.Instance)
}
