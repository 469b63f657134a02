// Package data contains the default [domain.Document] implementation and the
// conversions between Go values, BSON values and documents.
package data

import (
	"bytes"
	"iter"
	"math"
	"reflect"
	"slices"
	"time"

	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// IDField is the name of the identifier field.
const IDField = "_id"

// D implements [domain.Document] as an ordered set of fields. Setting an
// existing key keeps its position, new keys are appended.
type D struct {
	keys   []string
	values map[string]any
}

func newD(capacity int) *D {
	return &D{
		keys:   make([]string, 0, capacity),
		values: make(map[string]any, capacity),
	}
}

// ID implements [domain.Document].
func (d *D) ID() any {
	return d.values[IDField]
}

// Get implements [domain.Document].
func (d *D) Get(key string) any {
	return d.values[key]
}

// Set implements [domain.Document].
func (d *D) Set(key string, value any) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Unset implements [domain.Document].
func (d *D) Unset(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	if i := slices.Index(d.keys, key); i >= 0 {
		d.keys = slices.Delete(d.keys, i, i+1)
	}
}

// D implements [domain.Document].
func (d *D) D(key string) domain.Document {
	if doc, ok := d.values[key].(domain.Document); ok {
		return doc
	}
	return nil
}

// Iter implements [domain.Document].
func (d *D) Iter() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range d.keys {
			if !yield(k, d.values[k]) {
				return
			}
		}
	}
}

// Keys implements [domain.Document].
func (d *D) Keys() iter.Seq[string] {
	return slices.Values(d.keys)
}

// Values implements [domain.Document].
func (d *D) Values() iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, k := range d.keys {
			if !yield(d.values[k]) {
				return
			}
		}
	}
}

// Has implements [domain.Document].
func (d *D) Has(key string) bool {
	_, has := d.values[key]
	return has
}

// Len implements [domain.Document].
func (d *D) Len() int {
	return len(d.keys)
}

// String returns the relaxed extended JSON representation of d.
func (d *D) String() string {
	b, err := MarshalJSON(d)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// MarshalJSON implements json.Marshaler using relaxed extended JSON.
func (d *D) MarshalJSON() ([]byte, error) {
	return MarshalJSON(d)
}

// UnmarshalJSON implements json.Unmarshaler. Both relaxed and canonical
// extended JSON are accepted.
func (d *D) UnmarshalJSON(input []byte) error {
	doc, err := ParseJSON(input)
	if err != nil {
		return err
	}
	*d = *doc.(*D)
	return nil
}

// MarshalBSON implements bson.Marshaler.
func (d *D) MarshalBSON() ([]byte, error) {
	return bson.Marshal(ToBSON(d))
}

// UnmarshalBSON implements bson.Unmarshaler.
func (d *D) UnmarshalBSON(input []byte) error {
	var raw bson.D
	if err := bson.Unmarshal(input, &raw); err != nil {
		return err
	}
	doc, err := NewDocument(raw)
	if err != nil {
		return err
	}
	*d = *doc.(*D)
	return nil
}

// Clone returns a deep copy of v. Documents, arrays and binary values are
// copied, every other value is immutable and returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case domain.Document:
		res := newD(t.Len())
		for k, v := range t.Iter() {
			res.Set(k, Clone(v))
		}
		return res
	case []any:
		res := make([]any, len(t))
		for n, item := range t {
			res[n] = Clone(item)
		}
		return res
	case []byte:
		return slices.Clone(t)
	case bson.Binary:
		return bson.Binary{Subtype: t.Subtype, Data: slices.Clone(t.Data)}
	default:
		return v
	}
}

// CloneDocument returns a deep copy of doc.
func CloneDocument(doc domain.Document) domain.Document {
	if doc == nil {
		return nil
	}
	return Clone(doc).(domain.Document)
}

// Identical reports whether a and b hold the same values with the same types.
// Unlike comparer equality, numbers of different widths and documents with
// different key orders are not identical.
func Identical(a, b any) bool {
	switch x := a.(type) {
	case domain.Document:
		y, ok := b.(domain.Document)
		if !ok || x.Len() != y.Len() {
			return false
		}
		next, stop := iter.Pull2(y.Iter())
		defer stop()
		for k, v := range x.Iter() {
			k2, v2, ok := next()
			if !ok || k != k2 || !Identical(v, v2) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		return ok && slices.EqualFunc(x, y, Identical)
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	case bson.Binary:
		y, ok := b.(bson.Binary)
		return ok && x.Subtype == y.Subtype && bytes.Equal(x.Data, y.Data)
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case float64:
		y, ok := b.(float64)
		return ok && (x == y || math.IsNaN(x) && math.IsNaN(y))
	case nil:
		return b == nil
	}
	return reflect.DeepEqual(a, b)
}
