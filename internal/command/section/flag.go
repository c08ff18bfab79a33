package section

import (
	"strings"

	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
)

const (
	paramType    = "type"
	paramName    = "name"
	paramKeep    = "keep"
	paramObjects = "objects"
	paramKeyPath = "key-path"
)

func withKeyFlags(flags ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:     paramType,
			Aliases:  []string{"t"},
			Usage:    "Object type name of the section",
			Required: true,
		},
		&cli.StringFlag{
			Name:     paramName,
			Usage:    "Section name",
			Required: true,
		},
	}, flags...)
}

func getKey(ctx *cli.Context) model.SectionKey {
	return model.NewSectionKey(ctx.String(paramName), ctx.String(paramType))
}

func withRefreshFlags(flags ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:     paramObjects,
			Aliases:  []string{"o"},
			Usage:    "Path or URL of the YAML or JSON document holding the list of objects to partition",
			Required: true,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:     paramType,
			Aliases:  []string{"t"},
			Usage:    "Object type name of the objects",
			Required: true,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:     paramKeyPath,
			Aliases:  []string{"k"},
			Usage:    "Object field holding the section name",
			Required: true,
		}),
	}, flags...)
}

// parseKey parses a section key written as "<objectType>/<name>".
func parseKey(raw string) (model.SectionKey, error) {
	objectTypeName, name, found := strings.Cut(raw, "/")
	if !found {
		return model.SectionKey{}, errors.Wrapf(model.ErrInvalidName, "section key '%s' must be written as '<objectType>/<name>'", raw)
	}

	key := model.NewSectionKey(name, objectTypeName)
	if err := key.Validate(); err != nil {
		return model.SectionKey{}, errors.WithStack(err)
	}

	return key, nil
}
