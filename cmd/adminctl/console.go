package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/admin-console/internal/apiclient"
	"github.com/spec-kit/admin-console/internal/config"
	"github.com/spec-kit/admin-console/internal/credential"
	"github.com/spec-kit/admin-console/internal/gate"
	"github.com/spec-kit/admin-console/internal/observability"
	"github.com/spec-kit/admin-console/internal/persistence"
	"github.com/spec-kit/admin-console/internal/session"
)

// console is one process's view of the admin console: credential store,
// API client, session manager and route table.
type console struct {
	env     environment
	logger  *zap.Logger
	store   credential.Store
	client  *apiclient.Client
	session *session.Manager
	router  *gate.Router

	closers []func()
}

func openConsole(ctx context.Context, cfg *config.Config, opts globalOptions, env environment) (*console, error) {
	logger, err := observability.NewCLILogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	c := &console{env: env, logger: logger}
	c.closers = append(c.closers, func() { _ = logger.Sync() })

	c.store, err = c.openStore(ctx, cfg, opts)
	if err != nil {
		c.Close()
		return nil, err
	}

	routes := gate.DefaultRoutes()
	if opts.RoutesFile != "" {
		routes, err = gate.LoadRoutes(opts.RoutesFile)
		if err != nil {
			c.Close()
			return nil, err
		}
	}
	c.router, err = gate.NewRouter(routes)
	if err != nil {
		c.Close()
		return nil, err
	}

	clientOpts := []apiclient.Option{
		apiclient.WithLogger(logger),
		apiclient.WithTimeout(cfg.Console.RequestTimeout()),
	}
	if env.doer != nil {
		clientOpts = append(clientOpts, apiclient.WithDoer(env.doer))
	}
	c.client = apiclient.New(opts.APIURL, c.store, clientOpts...)

	c.session = session.NewManager(c.store, c.client, logger)
	c.closers = append(c.closers, c.session.Listen(c.client, func(intent session.Intent) {
		fmt.Fprintf(env.stderr, "session expired, continue at %s\n", intent.Redirect)
	}))

	c.session.Initialize(ctx)
	if err := c.session.Wait(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *console) openStore(ctx context.Context, cfg *config.Config, opts globalOptions) (credential.Store, error) {
	storeOpts := []credential.Option{credential.WithLogger(c.logger)}
	switch opts.Backend {
	case config.BackendFile:
		if cfg.Console.CredentialPassphrase != "" {
			storeOpts = append(storeOpts, credential.WithPassphrase(cfg.Console.CredentialPassphrase))
		}
		return credential.NewFileStore(opts.CredentialFile, storeOpts...), nil
	case config.BackendRedis:
		redis := persistence.NewRedis(ctx, cfg.Redis, c.logger)
		c.closers = append(c.closers, redis.Close)
		return credential.NewRedisStore(redis.Client, credential.DefaultRedisKey, storeOpts...), nil
	case config.BackendMemory:
		return credential.NewMemoryStore(storeOpts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown credential backend %q", errUsage, opts.Backend)
	}
}

// Close releases resources in reverse order of acquisition.
func (c *console) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
