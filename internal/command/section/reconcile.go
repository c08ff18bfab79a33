package section

import (
	"log/slog"

	"github.com/bornholm/sectioncache/internal/command/common"
	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func reconcileCommand() *cli.Command {
	flags := common.WithCommonFlags(
		&cli.StringSliceFlag{
			Name:  paramKeep,
			Usage: "Key of a present section as '<objectType>/<name>', repeatable. Every other entry is removed",
		},
	)

	return &cli.Command{
		Name:   "reconcile",
		Usage:  "Remove every entry but the given present sections",
		Flags:  flags,
		Before: common.Before(flags),
		Action: func(ctx *cli.Context) error {
			present := make([]model.SectionKey, 0)
			for _, raw := range ctx.StringSlice(paramKeep) {
				key, err := parseKey(raw)
				if err != nil {
					return errors.WithStack(err)
				}

				present = append(present, key)
			}

			store, err := common.GetSectionCacheStore(ctx)
			if err != nil {
				return errors.Wrap(err, "could not retrieve section cache store")
			}

			removed, err := store.Reconcile(ctx.Context, present)
			if err != nil {
				return errors.Wrap(err, "could not reconcile entries")
			}

			slog.InfoContext(ctx.Context, "entries reconciled", slog.Int("removed", len(removed)))

			return common.Print(ctx, common.NewKeyViews(removed))
		},
	}
}
