package setup

import (
	"context"
	"net/url"

	cacheAdapter "github.com/bornholm/sectioncache/internal/adapter/cache"
	gormAdapter "github.com/bornholm/sectioncache/internal/adapter/gorm"
	"github.com/bornholm/sectioncache/internal/adapter/memory"
	"github.com/bornholm/sectioncache/internal/config"
	"github.com/bornholm/sectioncache/internal/core/port"
	"github.com/pkg/errors"
)

type SectionCacheStoreFactory func(ctx context.Context, conf *config.Config, u *url.URL, cacheName string) (port.SectionCacheStore, error)

var SectionCacheStore = NewRegistry[SectionCacheStoreFactory]()

func init() {
	// Each memory store lives as long as the process and is never shared.
	SectionCacheStore.Register("memory", func(ctx context.Context, conf *config.Config, u *url.URL, cacheName string) (port.SectionCacheStore, error) {
		return memory.NewSectionCacheStore(), nil
	})

	SectionCacheStore.Register("sqlite", func(ctx context.Context, conf *config.Config, u *url.URL, cacheName string) (port.SectionCacheStore, error) {
		dsn := u.Host + u.Path
		if dsn == "" {
			return nil, errors.Errorf("missing database path in uri '%s'", u.String())
		}

		db, err := getGormDatabase(ctx, conf, dsn)
		if err != nil {
			return nil, errors.Wrapf(err, "could not open database '%s'", dsn)
		}

		return gormAdapter.NewSectionCacheStore(db, cacheName), nil
	})
}

// NewSectionCacheStoreFromConfig returns the store of the named cache at the
// configured storage uri, wrapped in a read cache when enabled.
func NewSectionCacheStoreFromConfig(ctx context.Context, conf *config.Config, cacheName string) (port.SectionCacheStore, error) {
	factory, u, err := SectionCacheStore.From(conf.Storage.URI)
	if err != nil {
		return nil, errors.Wrapf(err, "could not retrieve section cache store for uri '%s'", conf.Storage.URI)
	}

	store, err := factory(ctx, conf, u, cacheName)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create section cache store for uri '%s'", conf.Storage.URI)
	}

	if !conf.Cache.Enabled {
		return store, nil
	}

	return cacheAdapter.NewSectionCacheStore(store, conf.Cache.Size, conf.Cache.TTL), nil
}
