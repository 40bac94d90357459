package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tissuecore/internal/blob"
	"tissuecore/internal/config"
	"tissuecore/internal/core"
	"tissuecore/internal/notify"
	"tissuecore/internal/storelight"
	"tissuecore/pkg/domain"
)

// openStore opens the configured persistent store.
func openStore(ctx context.Context, cfg *config.Config) (domain.PersistentStore, error) {
	store, err := core.OpenPersistentStore(ctx, core.StorageConfig{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	return store, nil
}

func openBlobs(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	return blob.Open(ctx, blob.Config{
		Driver: blob.Driver(cfg.Blob.Driver),
		FSRoot: cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:          cfg.Blob.S3Bucket,
			Region:          cfg.Blob.S3Region,
			Endpoint:        cfg.Blob.S3Endpoint,
			AccessKeyID:     cfg.Blob.S3AccessKey,
			SecretAccessKey: cfg.Blob.S3SecretKey,
			PathStyle:       cfg.Blob.S3UsePathStyle,
		},
	})
}

// newUnstorer returns nil when no storelight URL is configured.
func (a *app) newUnstorer() (core.Unstorer, error) {
	if a.cfg.Storelight.URL == "" {
		a.logger.Warnw("storelight url not set, labware will not be unstored")
		return nil, nil
	}
	client, err := storelight.New(storelight.Config{
		URL:         a.cfg.Storelight.URL,
		APIKey:      a.cfg.Storelight.APIKey,
		Timeout:     a.cfg.Storelight.Timeout,
		MaxFailures: a.cfg.Storelight.MaxFailures,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// newFlags returns the notification flag store and a function releasing it.
// Names in cfg.Notify.Enabled are switched on.
func (a *app) newFlags(ctx context.Context) (notify.Flags, func(), error) {
	switch a.cfg.Notify.Flags {
	case "", "memory":
		return notify.NewMemoryFlags(a.cfg.Notify.Enabled...), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		closeFn := func() { _ = client.Close() }
		if err := client.Ping(ctx).Err(); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("redis %s: %w", a.cfg.Redis.Addr, err)
		}
		flags := notify.NewRedisFlags(client, notify.DefaultRedisKey)
		for _, name := range a.cfg.Notify.Enabled {
			if err := flags.SetEnabled(ctx, name, true); err != nil {
				closeFn()
				return nil, nil, err
			}
		}
		return flags, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown notification flag store %q", a.cfg.Notify.Flags)
	}
}

// services is everything a command needs to act on the store.
type services struct {
	svc     *core.Service
	closers []func() error
}

func (s *services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// openAdminServices opens the store alone, for commands that only touch
// reference data.
func (a *app) openAdminServices(ctx context.Context) (*services, error) {
	store, err := openStore(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	return &services{
		svc:     core.NewService(store, core.WithLogger(a.logger)),
		closers: []func() error{func() error { return core.CloseStore(store) }},
	}, nil
}
