package main

import (
	"bufio"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satyaki-up/bugit/internal/bugs"
	"github.com/satyaki-up/bugit/internal/credentials"
	"github.com/satyaki-up/bugit/internal/db"
	"github.com/satyaki-up/bugit/internal/launchpad"
)

func (a *app) openStore(ctx context.Context) (*credentials.Store, error) {
	conn, err := db.Open(ctx, a.cfg.CredentialsDir)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = conn.Close() })
	return credentials.NewStore(conn), nil
}

// confirm prints the authorization page and waits for Enter on stdin.
// When ctx is cancelled first, the reader goroutine stays blocked until
// stdin yields a line or EOF; the CLI exits right after, closing stdin.
func (a *app) confirm(ctx context.Context, authorizeURL string) error {
	fmt.Fprintf(a.stderr, "Open this page in a browser and authorize bugit:\n\n  %s\n\nPress Enter once done. ", authorizeURL)
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(a.stdin).ReadString('\n')
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("waiting for authorization: %w", err)
		}
		return nil
	}
}

func (a *app) login(ctx context.Context, store *credentials.Store) (*credentials.Credentials, error) {
	env := a.environment()
	return credentials.LoginWith(ctx, store, launchpad.NewAuthorizer(env.WebRoot, a.cfg.Consumer, nil), credentials.LoginRequest{
		Consumer: a.cfg.Consumer,
		Instance: string(env.Name),
		Confirm:  a.confirm,
	}, a.logger)
}

// assistant logs in, reusing cached credentials, and returns an assistant
// bound to the configured instance.
func (a *app) assistant(ctx context.Context) (*bugs.Assistant, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	creds, err := a.login(ctx, store)
	if err != nil {
		return nil, err
	}
	env := a.environment()
	client := launchpad.NewClient(env.APIRoot, creds.OAuth(), launchpad.WithLogger(a.logger.Named("launchpad")))
	a.logger.Debug("launchpad client ready", zap.String("service_root", client.ServiceRoot()))
	return bugs.NewAssistant(ctx, client, env, a.logger)
}
