package section

import (
	"context"

	"github.com/bornholm/sectioncache/internal/adapter/memory"
	"github.com/bornholm/sectioncache/internal/command/common"
	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/bornholm/sectioncache/internal/core/service"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

type refreshView struct {
	Sections []sectionView   `yaml:"sections"`
	Removed  []common.KeyView `yaml:"removed,omitempty"`
}

type sectionView struct {
	common.EntryView `yaml:",inline"`
	Objects          int `yaml:"objects"`
}

func refreshCommand() *cli.Command {
	flags := common.WithCommonFlags(withRefreshFlags(common.WithCriteriaFlags()...)...)

	return &cli.Command{
		Name:   "refresh",
		Usage:  "Partition a list of objects into sections and update the cache accordingly",
		Flags:  flags,
		Before: common.Before(flags),
		Action: func(ctx *cli.Context) error {
			criteria, err := common.GetCriteria(ctx)
			if err != nil {
				return errors.Wrap(err, "invalid criteria")
			}

			objectTypeName := ctx.String(paramType)

			objects, err := loadObjects(ctx.Context, ctx.String(paramObjects))
			if err != nil {
				return errors.Wrap(err, "could not load objects")
			}

			objectStore := memory.NewObjectStore()
			objectStore.Add(objectTypeName, objects...)

			store, err := common.GetSectionCacheStore(ctx)
			if err != nil {
				return errors.Wrap(err, "could not retrieve section cache store")
			}

			refresher := service.NewRefresher(store, objectStore)

			partition, err := refresher.Refresh(ctx.Context, service.RefreshRequest{
				ObjectTypeName: objectTypeName,
				Criteria:       criteria,
				SectionKeyPath: ctx.String(paramKeyPath),
			})
			if err != nil {
				return errors.WithStack(err)
			}

			view := refreshView{
				Sections: make([]sectionView, 0, len(partition.Sections)),
				Removed:  common.NewKeyViews(partition.Removed),
			}

			for _, s := range partition.Sections {
				view.Sections = append(view.Sections, sectionView{
					EntryView: common.NewEntryView(s.Entry),
					Objects:   len(s.Objects),
				})
			}

			return common.Print(ctx, view)
		},
	}
}

func loadObjects(ctx context.Context, urlStr string) ([]model.Object, error) {
	data, _, err := common.ReadResource(ctx, urlStr)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "could not parse '%s'", urlStr)
	}

	objects := make([]model.Object, 0, len(raw))
	for _, r := range raw {
		objects = append(objects, model.Object(r))
	}

	return objects, nil
}
