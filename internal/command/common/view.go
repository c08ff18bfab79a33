package common

import (
	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

type CriteriaView struct {
	Filter   string   `yaml:"filter,omitempty"`
	Sort     []string `yaml:"sort,omitempty"`
	Distinct []string `yaml:"distinct,omitempty"`
}

type EntryView struct {
	ObjectType string       `yaml:"objectType"`
	Name       string       `yaml:"name"`
	Criteria   CriteriaView `yaml:"criteria"`
}

type KeyView struct {
	ObjectType string `yaml:"objectType"`
	Name       string `yaml:"name"`
}

func NewCriteriaView(c model.QueryCriteria) CriteriaView {
	view := CriteriaView{
		Distinct: c.DistinctFields(),
	}

	if p := c.Predicate(); p != nil {
		view.Filter = p.Expression()
	}

	for _, d := range c.SortDescriptors() {
		view.Sort = append(view.Sort, d.String())
	}

	return view
}

func NewEntryView(e *model.SectionCacheEntry) EntryView {
	return EntryView{
		ObjectType: e.ObjectTypeName(),
		Name:       e.Name(),
		Criteria:   NewCriteriaView(e.Criteria()),
	}
}

func NewKeyViews(keys []model.SectionKey) []KeyView {
	views := make([]KeyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, KeyView{ObjectType: k.ObjectTypeName, Name: k.Name})
	}

	return views
}

// Print writes the YAML rendering of v to the application output.
func Print(ctx *cli.Context, v any) error {
	encoder := yaml.NewEncoder(ctx.App.Writer)
	encoder.SetIndent(2)

	if err := encoder.Encode(v); err != nil {
		return errors.WithStack(err)
	}

	if err := encoder.Close(); err != nil {
		return errors.WithStack(err)
	}

	return nil
}
