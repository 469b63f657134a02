// Package fieldnavigator resolves dotted paths against documents and arrays.
package fieldnavigator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vinicius-lino-figueiredo/gemongo/adapter/data"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"github.com/vinicius-lino-figueiredo/gemongo/pkg/structure"
)

// ErrPositionalPath is returned when a positional segment ($, $[] or
// $[<identifier>]) reaches the navigator. Those segments have to be replaced
// with concrete indexes first.
var ErrPositionalPath = errors.New("positional path segments must be resolved before navigation")

// ErrIllegalPath is returned for paths containing an empty segment.
type ErrIllegalPath struct {
	Path string
}

func (e ErrIllegalPath) Error() string {
	return fmt.Sprintf("The path '%s' contains an empty field name, which is not allowed.", e.Path)
}

// Code returns the protocol error code.
func (e ErrIllegalPath) Code() int { return domain.CodeEmptyFieldName }

// ErrPathNotViable is returned when a write would need to create a field
// inside a value that is neither a document nor null.
type ErrPathNotViable struct {
	Field string
	Value any
}

func (e ErrPathNotViable) Error() string {
	return fmt.Sprintf("Cannot create field '%s' in element of type %s", e.Field, structure.TypeName(e.Value))
}

// Code returns the protocol error code.
func (e ErrPathNotViable) Code() int { return domain.CodePathNotViable }

// FieldNavigator implements [domain.FieldNavigator].
type FieldNavigator struct {
	docFac domain.DocumentFactory
}

// NewFieldNavigator returns a new instance of [domain.FieldNavigator].
func NewFieldNavigator(options ...Option) domain.FieldNavigator {
	fn := &FieldNavigator{
		docFac: data.NewDocument,
	}
	for _, option := range options {
		option(fn)
	}
	return fn
}

// GetAddress implements [domain.FieldNavigator].
func (fn *FieldNavigator) GetAddress(field string) ([]string, error) {
	addr := strings.Split(field, ".")
	for _, part := range addr {
		if part == "" {
			return nil, ErrIllegalPath{Path: field}
		}
	}
	return addr, nil
}

// GetField implements [domain.FieldNavigator]. Numeric segments index arrays,
// any other segment against an array, an out of range index, a missing key or
// a scalar in the middle of the path resolve to an undefined value.
func (fn *FieldNavigator) GetField(obj any, addr ...string) (domain.GetSetter, error) {
	var gs domain.GetSetter = NewGetSetterEmpty()
	curr := obj
	for n, part := range addr {
		if isPositional(part) {
			return nil, ErrPositionalPath
		}
		if n > 0 {
			v, ok := gs.Get()
			if !ok {
				return NewGetSetterEmpty(), nil
			}
			curr = v
		}
		switch t := curr.(type) {
		case domain.Document:
			if !t.Has(part) {
				return NewGetSetterEmpty(), nil
			}
			gs = NewGetSetterWithDoc(t, part)
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(t) {
				return NewGetSetterEmpty(), nil
			}
			gs = NewGetSetterWithArrayIndex(t, i)
		default:
			return NewGetSetterEmpty(), nil
		}
	}
	return gs, nil
}

// EnsureField implements [domain.FieldNavigator]. Documents on the way are
// created only when the returned setter is used, never arrays. Writing past
// the end of an array pads it with nulls, and null intermediate values are
// replaced by documents.
func (fn *FieldNavigator) EnsureField(obj any, addr ...string) (domain.GetSetter, error) {
	if len(addr) == 0 {
		return NewGetSetterEmpty(), nil
	}
	for _, part := range addr {
		if isPositional(part) {
			return nil, ErrPositionalPath
		}
	}

	var gs domain.GetSetter
	curr := obj
	for n, part := range addr {
		switch t := curr.(type) {
		case domain.Document:
			gs = NewGetSetterWithDoc(t, part)
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 {
				return nil, ErrPathNotViable{Field: part, Value: t}
			}
			gs = &ListGetSetter{List: t, Index: i, Parent: gs}
		default:
			return nil, ErrPathNotViable{Field: part, Value: curr}
		}

		if n == len(addr)-1 {
			break
		}

		v, defined := gs.Get()
		if !defined || v == nil {
			return fn.pending(gs, addr[n+1:])
		}
		curr = v
	}
	return gs, nil
}

func (fn *FieldNavigator) pending(parent domain.GetSetter, rest []string) (domain.GetSetter, error) {
	root, err := fn.docFac(nil)
	if err != nil {
		return nil, err
	}
	leaf := root
	for _, part := range rest[:len(rest)-1] {
		doc, err := fn.docFac(nil)
		if err != nil {
			return nil, err
		}
		leaf.Set(part, doc)
		leaf = doc
	}
	return &PendingGetSetter{
		Parent: parent,
		Root:   root,
		Leaf:   leaf,
		Key:    rest[len(rest)-1],
	}, nil
}

func isPositional(part string) bool {
	return part == "$" || strings.HasPrefix(part, "$[")
}
