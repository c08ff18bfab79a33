package criteria

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/bornholm/sectioncache/internal/command/common"
	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:  "criteria",
		Usage: "Encode and decode the persisted form of query criteria",
		Subcommands: []*cli.Command{
			encodeCommand(),
			decodeCommand(),
		},
	}
}

func encodeCommand() *cli.Command {
	flags := common.WithCriteriaFlags()

	return &cli.Command{
		Name:   "encode",
		Usage:  "Print the base64 encoded form of the given criteria",
		Flags:  flags,
		Before: common.Before(flags),
		Action: func(ctx *cli.Context) error {
			criteria, err := common.GetCriteria(ctx)
			if err != nil {
				return errors.Wrap(err, "invalid criteria")
			}

			if _, err := fmt.Fprintln(ctx.App.Writer, base64.StdEncoding.EncodeToString(criteria.Serialize())); err != nil {
				return errors.WithStack(err)
			}

			return nil
		},
	}
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode base64 encoded criteria",
		ArgsUsage: "<encoded>",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return errors.New("expected exactly one encoded criteria argument")
			}

			data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ctx.Args().First()))
			if err != nil {
				return errors.Wrap(err, "could not decode base64")
			}

			criteria, err := model.DeserializeCriteria(data)
			if err != nil {
				return errors.WithStack(err)
			}

			return common.Print(ctx, common.NewCriteriaView(criteria))
		},
	}
}
