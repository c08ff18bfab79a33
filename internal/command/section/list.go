package section

import (
	"github.com/bornholm/sectioncache/internal/command/common"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func listCommand() *cli.Command {
	flags := common.WithCommonFlags()

	return &cli.Command{
		Name:   "list",
		Usage:  "List the entries of the cache in display order",
		Flags:  flags,
		Before: common.Before(flags),
		Action: func(ctx *cli.Context) error {
			store, err := common.GetSectionCacheStore(ctx)
			if err != nil {
				return errors.Wrap(err, "could not retrieve section cache store")
			}

			entries, err := store.List(ctx.Context)
			if err != nil {
				return errors.Wrap(err, "could not list entries")
			}

			views := make([]common.EntryView, 0, len(entries))
			for _, e := range entries {
				views = append(views, common.NewEntryView(e))
			}

			return common.Print(ctx, views)
		},
	}
}

func showCommand() *cli.Command {
	flags := common.WithCommonFlags(withKeyFlags()...)

	return &cli.Command{
		Name:   "show",
		Usage:  "Show one entry of the cache",
		Flags:  flags,
		Before: common.Before(flags),
		Action: func(ctx *cli.Context) error {
			store, err := common.GetSectionCacheStore(ctx)
			if err != nil {
				return errors.Wrap(err, "could not retrieve section cache store")
			}

			key := getKey(ctx)

			entry, err := store.Find(ctx.Context, key.Name, key.ObjectTypeName)
			if err != nil {
				return errors.Wrapf(err, "could not find section '%s' of type '%s'", key.Name, key.ObjectTypeName)
			}

			return common.Print(ctx, common.NewEntryView(entry))
		},
	}
}

func removeCommand() *cli.Command {
	flags := common.WithCommonFlags(withKeyFlags()...)

	return &cli.Command{
		Name:   "remove",
		Usage:  "Remove one entry of the cache, if present",
		Flags:  flags,
		Before: common.Before(flags),
		Action: func(ctx *cli.Context) error {
			store, err := common.GetSectionCacheStore(ctx)
			if err != nil {
				return errors.Wrap(err, "could not retrieve section cache store")
			}

			key := getKey(ctx)

			if err := store.Remove(ctx.Context, key.Name, key.ObjectTypeName); err != nil {
				return errors.Wrapf(err, "could not remove section '%s' of type '%s'", key.Name, key.ObjectTypeName)
			}

			return nil
		},
	}
}
