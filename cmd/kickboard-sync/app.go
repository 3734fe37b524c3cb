package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/KickSync/config"
	"github.com/BearBump/KickSync/internal/broker/kafka"
	"github.com/BearBump/KickSync/internal/cache/rediscache"
	docfake "github.com/BearBump/KickSync/internal/integrations/docstore/fake"
	"github.com/BearBump/KickSync/internal/integrations/docstore/firestoresrc"
	idfake "github.com/BearBump/KickSync/internal/integrations/identity/fake"
	"github.com/BearBump/KickSync/internal/integrations/identity/internalhttp"
	"github.com/BearBump/KickSync/internal/integrations/webhook"
	"github.com/BearBump/KickSync/internal/notify"
	"github.com/BearBump/KickSync/internal/secrets/awssm"
	"github.com/BearBump/KickSync/internal/services/kicksync"
	"github.com/BearBump/KickSync/internal/storage/pgkickboard"
	"github.com/pkg/errors"
)

type secretResolver interface {
	Resolve(ctx context.Context, secretID string) (string, error)
}

type syncFactories struct {
	newSecrets  func(ctx context.Context, cfg *config.Config) (secretResolver, error)
	newStore    func(ctx context.Context, cfg *config.Config) (store kicksync.Store, closeFn func(), err error)
	newSource   func(ctx context.Context, cfg *config.Config) (src kicksync.Source, closeFn func(), err error)
	newIdentity func(cfg *config.Config) (kicksync.IdentityClient, error)
	newCache    func(cfg *config.Config) (cache kicksync.BytesCache, closeFn func())
	newNotifier func(cfg *config.Config) (n kicksync.Notifier, closeFn func())
}

func defaultSyncFactories() syncFactories {
	return syncFactories{
		newSecrets: func(ctx context.Context, cfg *config.Config) (secretResolver, error) {
			return awssm.New(ctx, cfg.AWS.Region)
		},
		newStore: func(ctx context.Context, cfg *config.Config) (kicksync.Store, func(), error) {
			st, err := pgkickboard.New(ctx, cfg.DatabaseURL())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newSource: func(ctx context.Context, cfg *config.Config) (kicksync.Source, func(), error) {
			if cfg.Firestore.Mode == "fake" {
				if cfg.Firestore.SnapshotFile == "" {
					return docfake.New(), nil, nil
				}
				src, err := docfake.FromFile(cfg.Firestore.SnapshotFile)
				return src, nil, err
			}
			src, err := firestoresrc.New(ctx, firestoresrc.Options{
				ProjectID:       cfg.Firestore.ProjectID,
				CredentialsFile: cfg.Firestore.CredentialsFile,
				Collection:      cfg.Firestore.Collection,
				OrderBy:         cfg.Firestore.OrderBy,
			})
			if err != nil {
				return nil, nil, err
			}
			return src, func() { _ = src.Close() }, nil
		},
		newIdentity: func(cfg *config.Config) (kicksync.IdentityClient, error) {
			if cfg.Identity.Mode == "fake" {
				return idfake.New(cfg.Identity.FakeFranchiseID, cfg.Identity.FakeRegionID), nil
			}
			if cfg.Identity.TokenSecret == "" {
				return nil, errors.New("identity token secret is required in http mode")
			}
			tokens := internalhttp.NewTokenSource(
				cfg.Identity.TokenSecret,
				cfg.Identity.TokenIssuer,
				cfg.Identity.TokenAudience,
				time.Duration(cfg.Identity.TokenTTLSeconds)*time.Second,
			)
			return internalhttp.New(cfg.Identity.FranchiseBaseURL, cfg.Identity.LocationBaseURL, tokens).
				WithTimeout(time.Duration(cfg.Identity.RequestTimeoutMs) * time.Millisecond), nil
		},
		newCache: func(cfg *config.Config) (kicksync.BytesCache, func()) {
			if !cfg.RedisEnabled() || cfg.Identity.DefaultsCacheTTLSec <= 0 {
				return nil, nil
			}
			c := rediscache.New(cfg.RedisAddr(), "kickboard-sync:")
			return c, func() { _ = c.Close() }
		},
		newNotifier: func(cfg *config.Config) (kicksync.Notifier, func()) {
			var (
				chans   notify.Multi
				closers []func()
			)
			if cfg.Webhook.URL != "" {
				var n notify.Notifier = webhook.New(cfg.Webhook.URL)
				if cfg.RedisEnabled() && cfg.Webhook.RateLimitPerMinute > 0 {
					rl := rediscache.NewRateLimiter(cfg.RedisAddr())
					closers = append(closers, func() { _ = rl.Close() })
					n = notify.NewRateLimited(n, rl, "webhook", int64(cfg.Webhook.RateLimitPerMinute))
				}
				chans = append(chans, n)
			}
			if cfg.KafkaEnabled() {
				p := kafka.NewProducer(cfg.KafkaBrokers(), cfg.Kafka.KickboardChangedTopicName)
				closers = append(closers, func() { _ = p.Close() })
				chans = append(chans, p)
			}
			closeAll := func() {
				for _, c := range closers {
					c()
				}
			}
			if len(chans) == 0 {
				slog.Warn("no notification channel configured")
				return notify.Nop{}, closeAll
			}
			return chans, closeAll
		},
	}
}

// resolveSecrets fills values that are configured only by secret id.
// Explicit values always win, so Secrets Manager is contacted only when needed.
func resolveSecrets(ctx context.Context, cfg *config.Config, f syncFactories) error {
	type target struct {
		id  string
		dst *string
	}
	var targets []target
	if cfg.Database.URL == "" && cfg.Database.URLSecretID != "" {
		targets = append(targets, target{cfg.Database.URLSecretID, &cfg.Database.URL})
	}
	if cfg.Webhook.URL == "" && cfg.Webhook.URLSecretID != "" {
		targets = append(targets, target{cfg.Webhook.URLSecretID, &cfg.Webhook.URL})
	}
	if cfg.Identity.TokenSecret == "" && cfg.Identity.TokenSecretID != "" {
		targets = append(targets, target{cfg.Identity.TokenSecretID, &cfg.Identity.TokenSecret})
	}
	if len(targets) == 0 {
		return nil
	}

	sr, err := f.newSecrets(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "secrets client")
	}
	for _, t := range targets {
		v, err := sr.Resolve(ctx, t.id)
		if err != nil {
			return errors.Wrapf(err, "resolve secret %s", t.id)
		}
		*t.dst = v
	}
	return nil
}

// buildService wires every adapter. The returned cleanup closes them in reverse order.
func buildService(ctx context.Context, cfg *config.Config, f syncFactories) (*kicksync.Service, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	keep := func(fn func()) {
		if fn != nil {
			closers = append(closers, fn)
		}
	}

	if err := resolveSecrets(ctx, cfg, f); err != nil {
		return nil, nil, err
	}

	store, closeStore, err := f.newStore(ctx, cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "record store")
	}
	keep(closeStore)

	src, closeSrc, err := f.newSource(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "document source")
	}
	keep(closeSrc)

	ic, err := f.newIdentity(cfg)
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "identity client")
	}

	resolver := kicksync.NewResolver(ic).WithSearch(cfg.Identity.FranchiseSearch, cfg.Identity.RegionSearch)
	if cache, closeCache := f.newCache(cfg); cache != nil {
		keep(closeCache)
		resolver = resolver.WithCache(cache, time.Duration(cfg.Identity.DefaultsCacheTTLSec)*time.Second)
	}

	n, closeNotifier := f.newNotifier(cfg)
	keep(closeNotifier)

	svc := kicksync.New(src, store, resolver, n).
		WithActionTimeout(time.Duration(cfg.Sync.ActionTimeoutSeconds) * time.Second)
	return svc, cleanup, nil
}

func RunOnce(ctx context.Context, cfg *config.Config, f syncFactories) (kicksync.Summary, error) {
	svc, cleanup, err := buildService(ctx, cfg, f)
	if err != nil {
		return kicksync.Summary{}, err
	}
	defer cleanup()
	return svc.Run(ctx)
}
