package model

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Query is the executable form of QueryCriteria for one object type. Objects
// are filtered, then deduplicated on the raw values of the distinct fields
// (first occurrence wins), then sorted. Sorting is stable so objects equal on
// every sort field keep their store order.
type Query struct {
	ObjectTypeName string
	Filter         *Predicate
	Distinct       []string
	Sort           []SortDescriptor
}

func (q *Query) Apply(objects []Object) ([]Object, error) {
	results := make([]Object, 0, len(objects))

	for _, obj := range objects {
		if q.Filter != nil {
			matched, err := q.Filter.Match(obj)
			if err != nil {
				return nil, errors.WithStack(err)
			}

			if !matched {
				continue
			}
		}

		results = append(results, obj)
	}

	if len(q.Distinct) > 0 {
		results = distinct(results, q.Distinct)
	}

	if len(q.Sort) > 0 {
		slices.SortStableFunc(results, q.Compare)
	}

	return results, nil
}

// Compare orders two objects on the query's sort descriptors, first
// descriptor first.
func (q *Query) Compare(a, b Object) int {
	for _, d := range q.Sort {
		av, _ := a.Field(d.Field)
		bv, _ := b.Field(d.Field)

		c := CompareValues(av, bv)
		if c == 0 {
			continue
		}

		if !d.Ascending {
			c = -c
		}

		return c
	}

	return 0
}

func distinct(objects []Object, fields []string) []Object {
	seen := make(map[string]struct{}, len(objects))
	results := objects[:0]

	var sb strings.Builder
	for _, obj := range objects {
		sb.Reset()
		for _, f := range fields {
			value, _ := obj.Field(f)
			printed := fmt.Sprintf("%v", value)
			fmt.Fprintf(&sb, "%T:%d:%s", value, len(printed), printed)
		}

		key := sb.String()
		if _, exists := seen[key]; exists {
			continue
		}

		seen[key] = struct{}{}
		results = append(results, obj)
	}

	return results
}

const (
	rankNil = iota
	rankBool
	rankNumber
	rankString
	rankTime
	rankOther
)

// CompareValues orders field values: nil first, then booleans, numbers,
// strings, timestamps and finally anything else by its printed form.
func CompareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch ra {
	case rankNil:
		return 0
	case rankBool:
		av, bv := a.(bool), b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case rankNumber:
		ai, aIsInt := toInt64(a)
		bi, bIsInt := toInt64(b)
		if aIsInt && bIsInt {
			return cmp.Compare(ai, bi)
		}
		return cmp.Compare(toFloat64(a), toFloat64(b))
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return rankNumber
	case string:
		return rankString
	case time.Time:
		return rankTime
	default:
		return rankOther
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		i, _ := toInt64(v)
		return float64(i)
	}
}
