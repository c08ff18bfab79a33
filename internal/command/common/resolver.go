package common

import (
	"context"
	"io"
	"net/url"
	"path/filepath"
	"regexp"

	"github.com/Bornholm/amatl/pkg/resolver"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
	"gopkg.in/yaml.v3"

	_ "github.com/Bornholm/amatl/pkg/resolver/file"
	_ "github.com/Bornholm/amatl/pkg/resolver/http"
	_ "github.com/Bornholm/amatl/pkg/resolver/stdin"
)

// NewResolverSourceFromFlagFunc loads flag values from the YAML or JSON
// document designated by the given flag, when set. The flag accepts a local
// path or any URL the resolver handles.
func NewResolverSourceFromFlagFunc(flag string) func(cCtx *cli.Context) (altsrc.InputSourceContext, error) {
	return func(cCtx *cli.Context) (altsrc.InputSourceContext, error) {
		if urlStr := cCtx.String(flag); urlStr != "" {
			return NewResolvedInputSource(cCtx.Context, urlStr)
		}

		return altsrc.NewMapInputSource("", map[any]any{}), nil
	}
}

func NewResolvedInputSource(ctx context.Context, urlStr string) (altsrc.InputSourceContext, error) {
	data, url, err := ReadResource(ctx, urlStr)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	ext := filepath.Ext(url.Path)
	switch ext {
	case ".json":
		fallthrough
	case ".yaml":
		fallthrough
	case ".yml":
		var values map[any]any

		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, errors.Wrapf(err, "could not parse '%s'", urlStr)
		}

		values, err = rewriteRelativeURL(url, values)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		return altsrc.NewMapInputSource(urlStr, values), nil

	default:
		return nil, errors.Errorf("no parser associated with '%s' file extension", ext)
	}
}

// ReadResource fetches the whole content of a local file or URL.
func ReadResource(ctx context.Context, urlStr string) ([]byte, *url.URL, error) {
	url, err := parseResourceURL(urlStr)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	reader, err := resolver.Resolve(ctx, url)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not resolve '%s'", urlStr)
	}

	defer func() {
		if err := reader.Close(); err != nil {
			panic(errors.WithStack(err))
		}
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	return data, url, nil
}

// parseResourceURL turns bare paths into absolute file URLs.
func parseResourceURL(urlStr string) (*url.URL, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse url '%s'", urlStr)
	}

	if u.Scheme != "" {
		return u, nil
	}

	path, err := filepath.Abs(urlStr)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &url.URL{Scheme: "file", Path: filepath.ToSlash(path)}, nil
}

// rewriteRelativeURL makes relative paths found in the configuration relative
// to the location of the configuration document.
func rewriteRelativeURL(fromURL *url.URL, values map[any]any) (map[any]any, error) {
	base := *fromURL
	base.Path = filepath.Dir(base.Path)

	if base.Scheme == "file" {
		absPath, err := filepath.Abs(base.Path)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		base.Path = absPath
	}

	for key, rawValue := range values {
		value, ok := rawValue.(string)
		if !ok {
			continue
		}

		switch {
		case isURL(value):
			continue

		case isPath(value):
			if filepath.IsAbs(value) {
				continue
			}

			if base.Scheme == "file" {
				values[key] = filepath.Join(base.Path, value)
				continue
			}

			values[key] = base.JoinPath(value).String()
		}
	}

	return values, nil
}

var filepathRegExp = regexp.MustCompile(`^(?:\.{0,2}/)?(?:[^\s/:]+/)*[^\s/:]+\.(?:ya?ml|json|sqlite)$`)

func isPath(str string) bool {
	return filepathRegExp.MatchString(str)
}

func isURL(str string) bool {
	u, err := url.ParseRequestURI(str)
	return err == nil && u.Scheme != ""
}
