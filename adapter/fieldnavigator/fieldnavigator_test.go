package fieldnavigator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/data"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
)

type FieldNavigatorTestSuite struct {
	suite.Suite
	fn *FieldNavigator
}

func (s *FieldNavigatorTestSuite) SetupTest() {
	s.fn = NewFieldNavigator().(*FieldNavigator)
}

func (s *FieldNavigatorTestSuite) parse(j string) domain.Document {
	doc, err := data.ParseJSON([]byte(j))
	s.Require().NoError(err)
	return doc
}

func (s *FieldNavigatorTestSuite) get(obj any, field string) (any, bool) {
	addr, err := s.fn.GetAddress(field)
	s.Require().NoError(err)
	gs, err := s.fn.GetField(obj, addr...)
	s.Require().NoError(err)
	return gs.Get()
}

func (s *FieldNavigatorTestSuite) ensure(obj any, field string) domain.GetSetter {
	addr, err := s.fn.GetAddress(field)
	s.Require().NoError(err)
	gs, err := s.fn.EnsureField(obj, addr...)
	s.Require().NoError(err)
	return gs
}

func (s *FieldNavigatorTestSuite) TestGetAddress() {
	addr, err := s.fn.GetAddress("a.0.b")
	s.NoError(err)
	s.Equal([]string{"a", "0", "b"}, addr)

	for _, field := range []string{"", "a..b", ".a", "a."} {
		_, err := s.fn.GetAddress(field)
		e := ErrIllegalPath{}
		s.ErrorAs(err, &e, field)
		s.Equal(field, e.Path)
		s.Equal(domain.CodeEmptyFieldName, domain.CodeOf(err))
	}
}

func (s *FieldNavigatorTestSuite) TestGetField() {
	doc := s.parse(`{"a": {"b": [10, {"c": 1}], "n": null}, "s": "str"}`)

	v, ok := s.get(doc, "a.b.0")
	s.True(ok)
	s.Equal(int32(10), v)

	v, ok = s.get(doc, "a.b.1.c")
	s.True(ok)
	s.Equal(int32(1), v)

	v, ok = s.get(doc, "a.n")
	s.True(ok)
	s.Nil(v)

	// missing values
	for _, field := range []string{"x", "a.x", "a.b.2", "a.b.c", "a.n.x", "s.length", "a.b.-1"} {
		_, ok := s.get(doc, field)
		s.False(ok, field)
	}

	_, ok = s.get(nil, "a")
	s.False(ok)

	v, ok = s.get([]any{"x", "y"}, "1")
	s.True(ok)
	s.Equal("y", v)
}

// Values returned by GetField write back into the document.
func (s *FieldNavigatorTestSuite) TestGetFieldSetter() {
	doc := s.parse(`{"a": [1, 2]}`)
	gs, err := s.fn.GetField(doc, "a", "1")
	s.Require().NoError(err)
	gs.Set(int32(5))
	s.Equal([]any{int32(1), int32(5)}, doc.Get("a"))
	gs.Unset()
	s.Equal([]any{int32(1), nil}, doc.Get("a"))

	gs, err = s.fn.GetField(doc, "a")
	s.Require().NoError(err)
	gs.Unset()
	s.False(doc.Has("a"))
}

func (s *FieldNavigatorTestSuite) TestPositionalSegments() {
	doc := s.parse(`{"a": [1]}`)
	for _, addr := range [][]string{{"a", "$"}, {"a", "$[]"}, {"a", "$[x]"}} {
		_, err := s.fn.GetField(doc, addr...)
		s.ErrorIs(err, ErrPositionalPath)
		_, err = s.fn.EnsureField(doc, addr...)
		s.ErrorIs(err, ErrPositionalPath)
	}
}

// Intermediate documents are created only when the value is set.
func (s *FieldNavigatorTestSuite) TestEnsureCreatesDocuments() {
	doc := s.parse(`{"a": 1}`)
	gs := s.ensure(doc, "b.c.d")
	_, ok := gs.Get()
	s.False(ok)
	s.False(doc.Has("b"))

	gs.Set("x")
	s.Equal(s.parse(`{"a": 1, "b": {"c": {"d": "x"}}}`), doc)
}

// Numeric segments below a missing field create document keys, not arrays.
func (s *FieldNavigatorTestSuite) TestEnsureNumericKeyInNewDocument() {
	doc := s.parse(`{}`)
	s.ensure(doc, "a.0").Set(true)
	s.Equal(s.parse(`{"a": {"0": true}}`), doc)
}

func (s *FieldNavigatorTestSuite) TestEnsureReplacesNull() {
	doc := s.parse(`{"a": null}`)
	s.ensure(doc, "a.b").Set(int32(1))
	s.Equal(s.parse(`{"a": {"b": 1}}`), doc)
}

func (s *FieldNavigatorTestSuite) TestEnsurePadsArrays() {
	doc := s.parse(`{"a": [1]}`)
	s.ensure(doc, "a.3").Set(int32(4))
	s.Equal(s.parse(`{"a": [1, null, null, 4]}`), doc)

	doc = s.parse(`{"a": [[1]]}`)
	s.ensure(doc, "a.0.2").Set(int32(3))
	s.Equal(s.parse(`{"a": [[1, null, 3]]}`), doc)

	doc = s.parse(`{"a": []}`)
	s.ensure(doc, "a.1.b").Set(int32(3))
	s.Equal(s.parse(`{"a": [null, {"b": 3}]}`), doc)
}

func (s *FieldNavigatorTestSuite) TestEnsureExisting() {
	doc := s.parse(`{"a": {"b": [1, {"c": 2}]}}`)
	gs := s.ensure(doc, "a.b.1.c")
	v, ok := gs.Get()
	s.True(ok)
	s.Equal(int32(2), v)
	gs.Set(int32(3))
	s.Equal(s.parse(`{"a": {"b": [1, {"c": 3}]}}`), doc)
}

func (s *FieldNavigatorTestSuite) TestEnsureNotViable() {
	doc := s.parse(`{"a": 1, "l": [1]}`)

	_, err := s.fn.EnsureField(doc, "a", "b")
	e := ErrPathNotViable{}
	s.ErrorAs(err, &e)
	s.Equal("b", e.Field)
	s.Equal(domain.CodePathNotViable, domain.CodeOf(err))

	_, err = s.fn.EnsureField(doc, "l", "x")
	s.ErrorAs(err, &e)

	_, err = s.fn.EnsureField(doc, "l", "0", "x")
	s.ErrorAs(err, &e)
	s.Contains(err.Error(), "int")
}

func (s *FieldNavigatorTestSuite) TestDocumentFactoryError() {
	errFac := errors.New("factory error")
	fn := NewFieldNavigator(WithDocumentFactory(func(any) (domain.Document, error) {
		return nil, errFac
	}))
	doc := s.parse(`{}`)
	_, err := fn.EnsureField(doc, "a", "b")
	s.ErrorIs(err, errFac)

	// no intermediate documents needed
	gs, err := fn.EnsureField(doc, "a")
	s.NoError(err)
	gs.Set(1)
	s.Equal(1, doc.Get("a"))
}

func (s *FieldNavigatorTestSuite) TestEmptyGetSetter() {
	gs := NewGetSetterEmpty()
	gs.Set(1)
	gs.Unset()
	_, ok := gs.Get()
	s.False(ok)

	gs, err := s.fn.EnsureField(s.parse(`{}`))
	s.NoError(err)
	_, ok = gs.Get()
	s.False(ok)
}

func TestFieldNavigatorTestSuite(t *testing.T) {
	suite.Run(t, new(FieldNavigatorTestSuite))
}
