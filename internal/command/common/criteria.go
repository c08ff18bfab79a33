package common

import (
	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
)

const (
	paramFilter   = "filter"
	paramSort     = "sort"
	paramDistinct = "distinct"
)

func WithCriteriaFlags(flags ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    paramFilter,
			Aliases: []string{"f"},
			Usage:   "CEL filter expression, e.g. 'status == \"active\"'",
		}),
		altsrc.NewStringSliceFlag(&cli.StringSliceFlag{
			Name:  paramSort,
			Usage: "Sort descriptor as 'field[:asc|desc]', repeatable",
		}),
		altsrc.NewStringSliceFlag(&cli.StringSliceFlag{
			Name:  paramDistinct,
			Usage: "Field objects are deduplicated on, repeatable",
		}),
	}, flags...)
}

func GetCriteria(ctx *cli.Context) (model.QueryCriteria, error) {
	return ParseCriteria(ctx.String(paramFilter), ctx.StringSlice(paramSort), ctx.StringSlice(paramDistinct))
}

func ParseCriteria(filter string, sort []string, distinct []string) (model.QueryCriteria, error) {
	var (
		predicate *model.Predicate
		err       error
	)

	if filter != "" {
		predicate, err = model.NewPredicate(filter)
		if err != nil {
			return model.QueryCriteria{}, errors.WithStack(err)
		}
	}

	descriptors := make([]model.SortDescriptor, 0, len(sort))
	for _, raw := range sort {
		d, err := model.ParseSortDescriptor(raw)
		if err != nil {
			return model.QueryCriteria{}, errors.WithStack(err)
		}

		descriptors = append(descriptors, d)
	}

	criteria, err := model.NewQueryCriteria(predicate, descriptors, distinct)
	if err != nil {
		return model.QueryCriteria{}, errors.WithStack(err)
	}

	return criteria, nil
}
