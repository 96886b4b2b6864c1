package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/genie-chat/internal/logging"
	"github.com/suPer8Hu/genie-chat/internal/store/redisstore"
	"github.com/suPer8Hu/genie-chat/internal/threadcache"
	"github.com/suPer8Hu/genie-chat/internal/threadclient"
	"github.com/suPer8Hu/genie-chat/internal/threadsync"
	"go.uber.org/zap"
)

// session is everything a logged-in command needs.
type session struct {
	log    *zap.Logger
	creds  *credentials
	client *threadclient.Client
	auth   *threadclient.Authorizer
	sync   *threadsync.Syncer
	closer func()
}

func newLogger(opts *options) *zap.Logger {
	level := "warn"
	if opts.verbose() {
		level = "debug"
	}
	log, err := logging.New(level, "console")
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func newClient(opts *options, log *zap.Logger) *threadclient.Client {
	c := threadclient.New(opts.server())
	c.Logger = log
	return c
}

// openSession loads the stored credentials and builds the syncer around
// them. Rotated tokens are written back to disk.
func openSession(cmd *cobra.Command, opts *options) (*session, error) {
	log := newLogger(opts)
	creds, err := loadCredentials(opts.home())
	if err != nil {
		return nil, err
	}

	server := opts.server()
	if !cmd.Flags().Changed("server") && creds.Server != "" {
		server = creds.Server
	}
	client := threadclient.New(server)
	client.Logger = log

	tokens := threadclient.NewSessionTokens(client, creds.session())
	tokens.Persist = func(s threadclient.Session) error {
		return saveCredentials(opts.home(), credentialsFromSession(server, s))
	}

	store, closer, err := cacheStorage(cmd.Context(), opts, log)
	if err != nil {
		return nil, err
	}
	cache := threadcache.New(store, threadcache.WithLogger(log))
	auth := threadclient.NewAuthorizer(tokens)

	return &session{
		log:    log,
		creds:  creds,
		client: client,
		auth:   auth,
		sync:   threadsync.New(client, tokens, cache, threadsync.WithLogger(log), threadsync.WithAuthorizer(auth)),
		closer: closer,
	}, nil
}

func cacheStorage(ctx context.Context, opts *options, log *zap.Logger) (threadcache.Storage, func(), error) {
	if addr := opts.redisAddr(); addr != "" {
		rs := redisstore.New(addr, "", 0)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("redis cache %s: %w", addr, err)
		}
		log.Debug("thread cache in redis", zap.String("addr", addr))
		return rs, func() { _ = rs.Close() }, nil
	}
	return threadcache.FileStorage{Dir: filepath.Join(opts.home(), "cache")}, func() {}, nil
}

func (s *session) userID() string {
	return s.creds.UserID
}

// close waits for background revalidation so its cache write lands before
// the process exits.
func (s *session) close() {
	s.sync.Wait()
	s.closer()
	_ = s.log.Sync()
}

// withToken runs call under the same refresh policy as the syncer.
func (s *session) withToken(ctx context.Context, call func(token string) error) error {
	return s.auth.Do(ctx, call)
}
