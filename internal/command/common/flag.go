package common

import (
	"github.com/bornholm/sectioncache/internal/config"
	"github.com/bornholm/sectioncache/internal/core/port"
	"github.com/bornholm/sectioncache/internal/setup"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
)

const (
	paramStorageURI = "storage-uri"
	paramCacheName  = "cache-name"
	paramNoCache    = "no-cache"
)

var (
	flagStorageURI = altsrc.NewStringFlag(&cli.StringFlag{
		Name:    paramStorageURI,
		Aliases: []string{"s"},
		Usage:   "Section cache store uri (defaults to SECTIONCACHE_STORAGE_URI)",
	})
	flagCacheName = altsrc.NewStringFlag(&cli.StringFlag{
		Name:    paramCacheName,
		Aliases: []string{"n"},
		Value:   "default",
		EnvVars: []string{"SECTIONCACHE_CLI_CACHE_NAME"},
		Usage:   "Name of the section cache to operate on",
	})
	flagNoCache = altsrc.NewBoolFlag(&cli.BoolFlag{
		Name:  paramNoCache,
		Usage: "Bypass the in-process read cache",
	})
)

func WithCommonFlags(flags ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		flagStorageURI,
		flagCacheName,
		flagNoCache,
	}, flags...)
}

// Before loads flag values from the file given with the global --config
// flag.
func Before(flags []cli.Flag) cli.BeforeFunc {
	return altsrc.InitInputSourceWithContext(flags, NewResolverSourceFromFlagFunc("config"))
}

func GetSectionCacheStore(ctx *cli.Context) (port.SectionCacheStore, error) {
	conf, err := config.Parse()
	if err != nil {
		return nil, errors.Wrap(err, "could not parse config")
	}

	if uri := ctx.String(paramStorageURI); uri != "" {
		conf.Storage.URI = uri
	}

	if ctx.Bool(paramNoCache) {
		conf.Cache.Enabled = false
	}

	store, err := setup.NewSectionCacheStoreFromConfig(ctx.Context, conf, ctx.String(paramCacheName))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return store, nil
}
