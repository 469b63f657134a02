package data

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"time"

	goreflect "github.com/goccy/go-reflect"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"github.com/vinicius-lino-figueiredo/gemongo/pkg/structure"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrNotDocument is returned when a value cannot be converted to a document.
var ErrNotDocument = errors.New("value is not a document")

// NewDocument returns a new [domain.Document] built from in, which can be nil,
// a map with string keys, a struct, a [bson.D] or another document. Nested
// values are converted as well: maps and structs become documents, slices and
// arrays become []any, [bson.DateTime] becomes [time.Time] and numbers take
// their canonical width. The result never shares mutable state with in.
func NewDocument(in any) (domain.Document, error) {
	if in == nil {
		return newD(0), nil
	}
	i, l, err := structure.Seq2(in)
	if err != nil {
		if errors.Is(err, structure.ErrNilObj) {
			return newD(0), nil
		}
		return nil, fmt.Errorf("%w: %w", ErrNotDocument, err)
	}
	res := newD(l)
	for k, v := range i {
		value, err := Normalize(v)
		if err != nil {
			return nil, err
		}
		res.Set(k, value)
	}
	return res, nil
}

// Normalize converts a Go or BSON value to the representation used by
// documents. See [NewDocument].
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, bson.Null, bson.Undefined:
		return nil, nil
	case string, bool, bson.ObjectID, bson.Timestamp, bson.Decimal128,
		bson.Regex, *regexp.Regexp:
		return v, nil
	case time.Time:
		return t, nil
	case bson.DateTime:
		return t.Time().UTC(), nil
	case []byte:
		return Clone(t), nil
	case bson.Binary:
		if t.Subtype == bson.TypeBinaryGeneric {
			return Clone(t.Data), nil
		}
		return Clone(t), nil
	case bson.Symbol:
		return string(t), nil
	case bson.D, bson.M, map[string]any:
		return NewDocument(t)
	case domain.Getter:
		value, defined := t.Get()
		if !defined {
			return nil, nil
		}
		return Normalize(value)
	}

	if structure.IsNumber(v) {
		return structure.Normalize(v), nil
	}

	switch structure.ClassOf(v) {
	case structure.ClassDocument:
		return NewDocument(v)
	case structure.ClassArray:
		return normalizeList(v)
	}

	r := goreflect.ValueNoEscapeOf(v)
	for r.Kind() == reflect.Ptr || r.Kind() == reflect.Interface {
		if r.IsNil() {
			return nil, nil
		}
		r = r.Elem()
	}
	switch r.Kind() {
	case reflect.Struct, reflect.Map:
		if r.Kind() == reflect.Map && r.IsNil() {
			return nil, nil
		}
		if r.Kind() == reflect.Struct && structure.ClassOf(r.Interface()) != structure.ClassUnknown {
			return Normalize(r.Interface())
		}
		return NewDocument(r.Interface())
	case reflect.Slice:
		if r.IsNil() {
			return nil, nil
		}
		return normalizeList(r.Interface())
	case reflect.Array:
		return normalizeList(r.Interface())
	case reflect.String:
		return r.String(), nil
	case reflect.Bool:
		return r.Bool(), nil
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return int32(r.Int()), nil
	case reflect.Int, reflect.Int64:
		return r.Int(), nil
	case reflect.Uint8, reflect.Uint16:
		return int32(r.Uint()), nil
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		return structure.Normalize(r.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return r.Float(), nil
	default:
		return v, nil
	}
}

func normalizeList(v any) (any, error) {
	i, l, err := structure.Seq(v)
	if err != nil {
		return nil, err
	}
	res := make([]any, 0, l)
	for item := range i {
		value, err := Normalize(item)
		if err != nil {
			return nil, err
		}
		res = append(res, value)
	}
	return res, nil
}

// ParseJSON parses an extended JSON document, relaxed or canonical, into a
// [domain.Document].
func ParseJSON(input []byte) (domain.Document, error) {
	var raw bson.D
	if err := bson.UnmarshalExtJSON(input, false, &raw); err != nil {
		return nil, err
	}
	return NewDocument(raw)
}

// ParseJSONValue parses any extended JSON value, not only documents.
func ParseJSONValue(input []byte) (any, error) {
	wrapped := make([]byte, 0, len(input)+6)
	wrapped = append(wrapped, `{"v":`...)
	wrapped = append(wrapped, input...)
	wrapped = append(wrapped, '}')
	doc, err := ParseJSON(wrapped)
	if err != nil {
		return nil, err
	}
	return doc.Get("v"), nil
}

// MarshalJSON returns the relaxed extended JSON representation of doc.
func MarshalJSON(doc domain.Document) ([]byte, error) {
	return bson.MarshalExtJSON(ToBSON(doc), false, false)
}

// MarshalJSONValue returns the relaxed extended JSON representation of any
// value.
func MarshalJSONValue(v any) ([]byte, error) {
	b, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: ToBSON(v)}}, false, false)
	if err != nil {
		return nil, err
	}
	// strip {"v": and the closing brace
	return b[5 : len(b)-1], nil
}

// ToBSON converts documents and arrays to their [bson.D] and [bson.A]
// counterparts, recursively, so values can be handed to the bson package.
func ToBSON(v any) any {
	switch t := v.(type) {
	case domain.Document:
		res := make(bson.D, 0, t.Len())
		for k, v := range t.Iter() {
			res = append(res, bson.E{Key: k, Value: ToBSON(v)})
		}
		return res
	case []any:
		res := make(bson.A, len(t))
		for n, item := range t {
			res[n] = ToBSON(item)
		}
		return res
	case *regexp.Regexp:
		return bson.Regex{Pattern: t.String()}
	case time.Time:
		return bson.NewDateTimeFromTime(t)
	default:
		return v
	}
}
