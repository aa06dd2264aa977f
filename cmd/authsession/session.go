package main

import (
	"context"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/activitymap"
	"github.com/goliatone/go-auth-session/logging"
	"github.com/goliatone/go-auth-session/remote"
	"github.com/spf13/cobra"
)

// tokenSuffix names the namespace the bearer token is kept under
const tokenSuffix = ".token"

type session struct {
	manager *authsession.Manager
	stores  *stores
}

// openSession wires stores, the remote client, metrics and logging into a
// Manager
func (rt *runtime) openSession(ctx context.Context) (*session, error) {
	cfg := rt.cfg

	backends, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	records, err := backends.open(ctx, cfg.Store.Namespace)
	if err != nil {
		backends.Close()
		return nil, err
	}
	tokens, err := backends.open(ctx, cfg.Store.Namespace+tokenSuffix)
	if err != nil {
		backends.Close()
		return nil, err
	}

	clientOpts := []remote.Option{
		remote.WithTokenStore(tokens),
		remote.WithRetries(cfg.Server.Retries, cfg.Server.RetryDelay),
		remote.WithTimeout(cfg.Server.Timeout),
		remote.WithLogger(logging.NewAdapter(rt.logger, "remote")),
	}
	if rt.deps.Doer != nil {
		clientOpts = append(clientOpts, remote.WithDoer(rt.deps.Doer))
	}
	client, err := remote.New(cfg.Server.URL, clientOpts...)
	if err != nil {
		backends.Close()
		return nil, err
	}

	opts := []authsession.Option{
		authsession.WithLogger(logging.NewAdapter(rt.logger, "session")),
		authsession.WithActivitySink(authsession.MultiSink{
			rt.metrics,
			activitymap.Sink(logging.ActivityConsumer(rt.logger), activitymap.WithDefaultChannel("cli")),
		}),
		authsession.WithClock(rt.now()),
		authsession.WithProfileUpdater(client),
		authsession.WithPasswordChanger(client),
		authsession.WithRemoteSignOut(client),
	}
	if cfg.Session.TrustOnRead {
		opts = append(opts, authsession.WithTrustOnRead())
	}

	manager, err := authsession.New(authsession.Config{
		Verifier:    client,
		Revalidator: client,
		Store:       records,
	}, opts...)
	if err != nil {
		backends.Close()
		return nil, err
	}
	manager.Subscribe(rt.metrics.Observe)

	return &session{manager: manager, stores: backends}, nil
}

func (s *session) Close() {
	s.manager.Wait()
	s.stores.Close()
}

// withSession opens the session for the duration of one command. The
// Manager travels in the command context.
func (rt *runtime) withSession(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		sess, err := rt.openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.Close()

		cmd.SetContext(authsession.WithManager(cmd.Context(), sess.manager))
		return run(cmd, args)
	}
}

// managerFrom returns the Manager placed in the context by withSession
func managerFrom(cmd *cobra.Command) *authsession.Manager {
	m, ok := authsession.ManagerFromContext(cmd.Context())
	if !ok {
		panic("authsession: command run without a session")
	}
	return m
}
