// Package structure contains type-related operations, such as iterating over a
// value of type any, classifying values and doing arithmetic on numbers of
// mixed widths.
package structure

import (
	"cmp"
	"errors"
	"iter"
	"math"
	"slices"
	"strings"

	"github.com/goccy/go-reflect"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// TagName is the struct tag read when iterating over struct fields.
const TagName = "gemongo"

var (
	// ErrNilObj may be returned by [Seq] or [Seq2] when a nil value is
	// passed as argument.
	ErrNilObj = errors.New("nil object")
)

var docReflectType = reflect.TypeOf((*domain.Document)(nil)).Elem()

// ErrorNonObject is returned by [Seq2] when a value that is neither a struct,
// map nor a [domain.Document] is passed as argument.
type ErrorNonObject struct {
	Type reflect.Type
}

func (e ErrorNonObject) Error() string {
	return "expected map, struct or document, got " + e.Type.String()
}

// ErrorNonList is returned by [Seq] when a value that is neither a slice
// nor a array is passed as argument.
type ErrorNonList struct {
	Type reflect.Type
}

func (e ErrorNonList) Error() string {
	return "expected slice or array, got " + e.Type.String()
}

// Seq2 returns an ordered iterator over the passed object. This method works
// for maps, structs, [bson.D] and implementations of [domain.Document]. Map
// keys are yielded in ascending order, since maps carry no order of their
// own.
func Seq2(obj any) (iter.Seq2[string, any], int, error) {
	if obj == nil {
		return nil, 0, ErrNilObj
	}
	switch t := obj.(type) {
	case domain.Document:
		return t.Iter(), t.Len(), nil
	case bson.D:
		return iterD(t), len(t), nil
	case bson.M:
		return iterMap(t), len(t), nil
	case map[string]any:
		return iterMap(t), len(t), nil
	}
	if ClassOf(obj) != ClassUnknown {
		return nil, 0, ErrorNonObject{Type: reflect.TypeOf(obj)}
	}
	return iterReflect(obj)
}

func iterD(d bson.D) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, e := range d {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

func iterMap[T any](m map[string]T) iter.Seq2[string, any] {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return func(yield func(string, any) bool) {
		for _, k := range keys {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}

func iterReflect(obj any) (iter.Seq2[string, any], int, error) {
	v := reflect.ValueNoEscapeOf(obj)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, 0, ErrNilObj
		}
		v = v.Elem()
	}

	if v.Type().Implements(docReflectType) {
		doc := v.Interface().(domain.Document)
		return doc.Iter(), doc.Len(), nil
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		return iterReflectMap(v), v.Len(), nil
	case reflect.Struct:
		i, l := iterReflectStruct(v)
		return i, l, nil
	}
	return nil, 0, ErrorNonObject{Type: v.Type()}
}

func iterReflectMap(v reflect.Value) iter.Seq2[string, any] {
	keys := v.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return cmp.Compare(a.String(), b.String())
	})
	return func(yield func(string, any) bool) {
		for _, k := range keys {
			if !yield(k.String(), v.MapIndex(k).Interface()) {
				return
			}
		}
	}
}

func iterReflectStruct(v reflect.Value) (iter.Seq2[string, any], int) {
	type field struct {
		Key   string
		Value any
	}
	fields := make([]field, 0, v.NumField())
	for k, v := range listStructFields(v) {
		fields = append(fields, field{Key: k, Value: v})
	}
	return func(yield func(string, any) bool) {
		for _, f := range fields {
			if !yield(f.Key, f.Value) {
				return
			}
		}
	}, len(fields)
}

func listStructFields(v reflect.Value) iter.Seq2[string, any] {
	var tag string
	var ok bool
	var field reflect.StructField
	var omitEmpty bool
	var omitZero bool
	return func(yield func(string, any) bool) {
		typ := v.Type()
		for n := range typ.NumField() {
			omitEmpty, omitZero = false, false
			field = typ.Field(n)

			if field.PkgPath != "" {
				continue
			}

			if tag, ok = field.Tag.Lookup(TagName); ok {
				if tag == "-" {
					continue
				}
				name, opts, _ := strings.Cut(tag, ",")
				for sub := range strings.SplitSeq(opts, ",") {
					switch sub {
					case "omitempty":
						omitEmpty = true
					case "omitzero":
						omitZero = true
					}
				}
				if tag = name; tag == "" {
					tag = field.Name
				}
			} else {
				tag = field.Name
			}
			switch {
			case omitZero:
				if v.Field(n).IsZero() {
					continue
				}
			case omitEmpty:
				switch field.Type.Kind() {
				case reflect.Chan, reflect.Func, reflect.Map,
					reflect.Ptr, reflect.UnsafePointer,
					reflect.Interface, reflect.Slice:
					if v.Field(n).IsNil() {
						continue
					}
				}
			}
			if !yield(tag, v.Field(n).Interface()) {
				return
			}
		}
	}
}

// Seq returns an iterator over a slice or array of any type. Byte slices are
// binary values, not lists.
func Seq(obj any) (iter.Seq[any], int, error) {
	if obj == nil {
		return nil, 0, ErrNilObj
	}
	switch t := obj.(type) {
	case []any:
		return slices.Values(t), len(t), nil
	case bson.A:
		return slices.Values(t), len(t), nil
	case []byte:
		return nil, 0, ErrorNonList{Type: reflect.TypeOf(obj)}
	}

	v := reflect.ValueNoEscapeOf(obj)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		l := v.Len()
		return func(yield func(any) bool) {
			for n := range l {
				if !yield(v.Index(n).Interface()) {
					return
				}
			}
		}, l, nil
	}
	return nil, 0, ErrorNonList{Type: v.Type()}
}

// AsInteger converts any number holding an integral value to int and returns
// a flag that informs if the argument is a valid integer.
func AsInteger(v any) (int, bool) {
	switch NumberKindOf(v) {
	case Int32, Int64:
		return int(toInt64(v)), true
	case Float64, Decimal:
		f := ToFloat64(v)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		if trunc := math.Trunc(f); trunc == f {
			return int(trunc), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// Contains checks if the given value is present in the slice.
func Contains[T any, S ~[]T](s S, t T, fn func(a T, b T) (bool, error)) (bool, error) {
	var ok bool
	var err error
	for _, i := range s {
		if ok, err = fn(i, t); err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}
