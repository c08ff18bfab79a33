package model

import (
	"bytes"
	"encoding/binary"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const (
	criteriaMagic   = "SCQ"
	criteriaVersion = byte(1)
	blobVersion     = byte(1)
)

// QueryCriteria determines which objects belong to a section and in which
// order. The zero value matches every object, in natural order, without
// deduplication.
type QueryCriteria struct {
	predicate *Predicate
	sort      []SortDescriptor
	distinct  []string
}

// NewQueryCriteria builds criteria from a filter (nil for none), sort
// descriptors and distinct fields. Distinct fields are a set: duplicates are
// dropped and order is not significant.
func NewQueryCriteria(predicate *Predicate, sort []SortDescriptor, distinct []string) (QueryCriteria, error) {
	for _, d := range sort {
		if err := validateField(d.Field); err != nil {
			return QueryCriteria{}, errors.WithStack(err)
		}
	}

	for _, f := range distinct {
		if err := validateField(f); err != nil {
			return QueryCriteria{}, errors.WithStack(err)
		}
	}

	criteria := QueryCriteria{
		predicate: predicate,
	}

	if len(sort) > 0 {
		criteria.sort = slices.Clone(sort)
	}

	if len(distinct) > 0 {
		criteria.distinct = slices.Compact(slices.Sorted(slices.Values(distinct)))
	}

	return criteria, nil
}

func (c QueryCriteria) Predicate() *Predicate {
	return c.predicate
}

func (c QueryCriteria) SortDescriptors() []SortDescriptor {
	return slices.Clone(c.sort)
}

func (c QueryCriteria) DistinctFields() []string {
	return slices.Clone(c.distinct)
}

func (c QueryCriteria) IsZero() bool {
	return c.predicate == nil && len(c.sort) == 0 && len(c.distinct) == 0
}

// WithPredicate returns a copy of the criteria using the given filter.
func (c QueryCriteria) WithPredicate(predicate *Predicate) QueryCriteria {
	c.predicate = predicate
	return c
}

func (c QueryCriteria) Equal(other QueryCriteria) bool {
	return bytes.Equal(c.PredicateData(), other.PredicateData()) &&
		bytes.Equal(c.SortDescriptorsData(), other.SortDescriptorsData()) &&
		bytes.Equal(c.DistinctByData(), other.DistinctByData())
}

func (c QueryCriteria) String() string {
	var sb strings.Builder

	sb.WriteString("filter=")
	if c.predicate != nil {
		sb.WriteString(c.predicate.Expression())
	}

	sb.WriteString(" distinct=")
	sb.WriteString(strings.Join(c.distinct, ","))

	sb.WriteString(" sort=")
	for i, d := range c.sort {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(d.String())
	}

	return sb.String()
}

// ToExecutableQuery rebuilds the query targeting the given object type. It
// performs no I/O.
func (c QueryCriteria) ToExecutableQuery(objectTypeName string) *Query {
	return &Query{
		ObjectTypeName: objectTypeName,
		Filter:         c.predicate,
		Distinct:       slices.Clone(c.distinct),
		Sort:           slices.Clone(c.sort),
	}
}

// PredicateData returns the persisted form of the filter, empty without filter.
func (c QueryCriteria) PredicateData() []byte {
	return encodePredicate(c.predicate)
}

// SortDescriptorsData returns the persisted form of the sort descriptors,
// empty without sort.
func (c QueryCriteria) SortDescriptorsData() []byte {
	if len(c.sort) == 0 {
		return nil
	}

	buf := []byte{blobVersion}
	buf = binary.AppendUvarint(buf, uint64(len(c.sort)))

	for _, d := range c.sort {
		buf = appendString(buf, d.Field)
		if d.Ascending {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}

	return buf
}

// DistinctByData returns the persisted form of the distinct fields, empty
// without deduplication.
func (c QueryCriteria) DistinctByData() []byte {
	if len(c.distinct) == 0 {
		return nil
	}

	buf := []byte{blobVersion}
	buf = binary.AppendUvarint(buf, uint64(len(c.distinct)))

	for _, f := range c.distinct {
		buf = appendString(buf, f)
	}

	return buf
}

// Serialize returns the deterministic encoding of the criteria.
func (c QueryCriteria) Serialize() []byte {
	buf := append([]byte(criteriaMagic), criteriaVersion)

	for _, blob := range [][]byte{c.PredicateData(), c.SortDescriptorsData(), c.DistinctByData()} {
		buf = binary.AppendUvarint(buf, uint64(len(blob)))
		buf = append(buf, blob...)
	}

	return buf
}

// DeserializeCriteria decodes criteria produced by Serialize.
func DeserializeCriteria(data []byte) (QueryCriteria, error) {
	if !bytes.HasPrefix(data, []byte(criteriaMagic)) {
		return QueryCriteria{}, errors.Wrap(ErrCorruptEncoding, "missing criteria header")
	}

	r := &reader{data: data[len(criteriaMagic):]}

	version, err := r.byte()
	if err != nil {
		return QueryCriteria{}, errors.WithStack(err)
	}

	if version != criteriaVersion {
		return QueryCriteria{}, errors.Wrapf(ErrCorruptEncoding, "unsupported criteria version %d", version)
	}

	blobs := make([][]byte, 3)
	for i := range blobs {
		blob, err := r.bytes()
		if err != nil {
			return QueryCriteria{}, errors.WithStack(err)
		}
		blobs[i] = blob
	}

	if err := r.done(); err != nil {
		return QueryCriteria{}, errors.WithStack(err)
	}

	criteria, err := DecodeCriteria(blobs[0], blobs[1], blobs[2])
	if err != nil {
		return QueryCriteria{}, errors.WithStack(err)
	}

	return criteria, nil
}

// DecodeCriteria rebuilds criteria from its three persisted blobs.
func DecodeCriteria(predicateData, sortDescriptorsData, distinctByData []byte) (QueryCriteria, error) {
	predicate, err := decodePredicate(predicateData)
	if err != nil {
		return QueryCriteria{}, errors.WithStack(err)
	}

	sort, err := decodeSortDescriptors(sortDescriptorsData)
	if err != nil {
		return QueryCriteria{}, errors.WithStack(err)
	}

	distinct, err := decodeDistinctBy(distinctByData)
	if err != nil {
		return QueryCriteria{}, errors.WithStack(err)
	}

	return QueryCriteria{
		predicate: predicate,
		sort:      sort,
		distinct:  distinct,
	}, nil
}

func decodeSortDescriptors(data []byte) ([]SortDescriptor, error) {
	if len(data) == 0 {
		return nil, nil
	}

	r := &reader{data: data}

	count, err := r.header()
	if err != nil {
		return nil, errors.Wrap(err, "sort descriptors")
	}

	sort := make([]SortDescriptor, 0, count)
	for range count {
		field, err := r.field()
		if err != nil {
			return nil, errors.Wrap(err, "sort descriptors")
		}

		direction, err := r.byte()
		if err != nil {
			return nil, errors.Wrap(err, "sort descriptors")
		}

		switch direction {
		case 0:
			sort = append(sort, Descending(field))
		case 1:
			sort = append(sort, Ascending(field))
		default:
			return nil, errors.Wrapf(ErrCorruptEncoding, "invalid direction flag %d for sort field '%s'", direction, field)
		}
	}

	if err := r.done(); err != nil {
		return nil, errors.Wrap(err, "sort descriptors")
	}

	return sort, nil
}

func decodeDistinctBy(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}

	r := &reader{data: data}

	count, err := r.header()
	if err != nil {
		return nil, errors.Wrap(err, "distinct fields")
	}

	fields := make([]string, 0, count)
	for range count {
		field, err := r.field()
		if err != nil {
			return nil, errors.Wrap(err, "distinct fields")
		}

		if n := len(fields); n > 0 && fields[n-1] >= field {
			return nil, errors.Wrapf(ErrCorruptEncoding, "distinct fields: '%s' out of order", field)
		}

		fields = append(fields, field)
	}

	if err := r.done(); err != nil {
		return nil, errors.Wrap(err, "distinct fields")
	}

	return fields, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

type reader struct {
	data []byte
}

func (r *reader) byte() (byte, error) {
	if len(r.data) == 0 {
		return 0, errors.Wrap(ErrCorruptEncoding, "unexpected end of data")
	}

	b := r.data[0]
	r.data = r.data[1:]

	return b, nil
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data)
	if n <= 0 {
		return 0, errors.Wrap(ErrCorruptEncoding, "invalid length prefix")
	}

	r.data = r.data[n:]

	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	size, err := r.uvarint()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if size > uint64(len(r.data)) {
		return nil, errors.Wrapf(ErrCorruptEncoding, "truncated data: need %d bytes, %d left", size, len(r.data))
	}

	b := r.data[:size]
	r.data = r.data[size:]

	return b, nil
}

// header reads the blob version and the element count. The count is bounded
// by the remaining data since every element takes at least two bytes.
func (r *reader) header() (int, error) {
	version, err := r.byte()
	if err != nil {
		return 0, errors.WithStack(err)
	}

	if version != blobVersion {
		return 0, errors.Wrapf(ErrCorruptEncoding, "unsupported blob version %d", version)
	}

	count, err := r.uvarint()
	if err != nil {
		return 0, errors.WithStack(err)
	}

	if count == 0 || count > uint64(len(r.data)) {
		return 0, errors.Wrapf(ErrCorruptEncoding, "invalid element count %d", count)
	}

	return int(count), nil
}

func (r *reader) field() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", errors.WithStack(err)
	}

	if len(b) == 0 || !utf8.Valid(b) {
		return "", errors.Wrapf(ErrCorruptEncoding, "invalid field name '%q'", b)
	}

	return string(b), nil
}

func (r *reader) done() error {
	if len(r.data) > 0 {
		return errors.Wrapf(ErrCorruptEncoding, "%d unexpected trailing bytes", len(r.data))
	}

	return nil
}
