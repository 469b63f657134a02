package data

import (
	"encoding/json"
	"math"
	"regexp"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type DocumentTestSuite struct {
	suite.Suite
}

func (s *DocumentTestSuite) doc(in any) domain.Document {
	d, err := NewDocument(in)
	s.Require().NoError(err)
	return d
}

func (s *DocumentTestSuite) TestSimpleMap() {
	doc := s.doc(map[string]any{"yeah": "sure", "of": "course"})
	s.Equal([]string{"of", "yeah"}, slices.Collect(doc.Keys()))
	s.Equal("sure", doc.Get("yeah"))
}

func (s *DocumentTestSuite) TestSimpleStruct() {
	doc := s.doc(struct{ No, Yes string }{No: "way", Yes: "indeed"})
	s.Equal([]string{"No", "Yes"}, slices.Collect(doc.Keys()))
	s.Equal([]any{"way", "indeed"}, slices.Collect(doc.Values()))
}

func (s *DocumentTestSuite) TestUnexportedField() {
	doc := s.doc(struct{ No, yes string }{No: "way", yes: "indeed"})
	s.Equal(1, doc.Len())
	s.False(doc.Has("yes"))
}

func (s *DocumentTestSuite) TestTaggedStruct() {
	doc := s.doc(struct {
		ID   int    `gemongo:"_id"`
		Skip string `gemongo:"-"`
		Name string `gemongo:"name,omitzero"`
	}{ID: 3, Skip: "x"})
	s.Equal(int64(3), doc.ID())
	s.Equal(1, doc.Len())
}

func (s *DocumentTestSuite) TestPointerToNilPointer() {
	var ptr *struct{ A int }
	doc := s.doc(ptr)
	s.Equal(0, doc.Len())
}

func (s *DocumentTestSuite) TestNilArg() {
	doc := s.doc(nil)
	s.Equal(0, doc.Len())
}

func (s *DocumentTestSuite) TestNonObjectArg() {
	_, err := NewDocument(1)
	s.ErrorIs(err, ErrNotDocument)
	_, err = NewDocument([]any{1})
	s.ErrorIs(err, ErrNotDocument)
}

// Nested values are converted to the document representation.
func (s *DocumentTestSuite) TestNormalizeNested() {
	now := time.UnixMilli(1700000000000).UTC()
	doc := s.doc(bson.D{
		{Key: "map", Value: map[string]int{"b": 2, "a": 1}},
		{Key: "d", Value: bson.D{{Key: "z", Value: int16(1)}}},
		{Key: "list", Value: []int{1, 2}},
		{Key: "arr", Value: bson.A{"x"}},
		{Key: "date", Value: bson.NewDateTimeFromTime(now)},
		{Key: "null", Value: bson.Null{}},
		{Key: "bin", Value: bson.Binary{Subtype: 0, Data: []byte("a")}},
		{Key: "uuid", Value: bson.Binary{Subtype: 4, Data: []byte("b")}},
		{Key: "struct", Value: struct{ A uint8 }{A: 1}},
		{Key: "float", Value: float32(1.5)},
	})

	sub := doc.D("map")
	s.Require().NotNil(sub)
	s.Equal([]string{"a", "b"}, slices.Collect(sub.Keys()))
	s.Equal(int64(1), sub.Get("a"))

	s.Equal(int32(1), doc.D("d").Get("z"))
	s.Equal([]any{int64(1), int64(2)}, doc.Get("list"))
	s.Equal([]any{"x"}, doc.Get("arr"))
	s.Equal(now, doc.Get("date"))
	s.True(doc.Has("null"))
	s.Nil(doc.Get("null"))
	s.Equal([]byte("a"), doc.Get("bin"))
	s.Equal(bson.Binary{Subtype: 4, Data: []byte("b")}, doc.Get("uuid"))
	s.Equal(int32(1), doc.D("struct").Get("A"))
	s.Equal(1.5, doc.Get("float"))
	s.Nil(doc.D("list"))
}

// Documents passed to NewDocument are copied.
func (s *DocumentTestSuite) TestNewDocumentCopies() {
	orig := s.doc(map[string]any{"a": map[string]any{"b": 1}})
	cp := s.doc(orig)
	cp.D("a").Set("b", 2)
	s.Equal(int64(1), orig.D("a").Get("b"))
}

func (s *DocumentTestSuite) TestOrder() {
	doc := s.doc(nil)
	doc.Set("b", 1)
	doc.Set("a", 2)
	doc.Set("c", 3)
	doc.Set("a", 4)
	s.Equal([]string{"b", "a", "c"}, slices.Collect(doc.Keys()))
	s.Equal([]any{1, 4, 3}, slices.Collect(doc.Values()))

	doc.Unset("a")
	doc.Unset("missing")
	s.Equal([]string{"b", "c"}, slices.Collect(doc.Keys()))
	s.Equal(2, doc.Len())

	doc.Set("a", 5)
	s.Equal([]string{"b", "c", "a"}, slices.Collect(doc.Keys()))

	var keys []string
	for k := range doc.Iter() {
		keys = append(keys, k)
		break
	}
	s.Equal([]string{"b"}, keys)
}

func (s *DocumentTestSuite) TestID() {
	s.Nil(s.doc(nil).ID())
	s.Equal("x", s.doc(map[string]any{"_id": "x"}).ID())
}

func (s *DocumentTestSuite) TestClone() {
	orig := s.doc(bson.D{
		{Key: "a", Value: bson.A{bson.D{{Key: "b", Value: 1}}}},
		{Key: "bin", Value: []byte("x")},
	})
	cp := CloneDocument(orig)
	s.Equal(orig, cp)

	cp.Get("a").([]any)[0].(domain.Document).Set("b", 2)
	cp.Get("bin").([]byte)[0] = 'y'
	s.Equal(int64(1), orig.Get("a").([]any)[0].(domain.Document).Get("b"))
	s.Equal([]byte("x"), orig.Get("bin"))

	s.Nil(CloneDocument(nil))
	s.Equal(3, Clone(3))
}

func (s *DocumentTestSuite) TestParseJSON() {
	doc, err := ParseJSON([]byte(`{"_id": {"$oid": "65a000000000000000000001"}, "n": 1, "big": 3000000000, "f": 1.5, "d": {"$date": "2024-01-01T00:00:00Z"}, "r": {"$regularExpression": {"pattern": "^a", "options": "i"}}, "l": [1, {"x": null}]}`))
	s.Require().NoError(err)

	id, err := bson.ObjectIDFromHex("65a000000000000000000001")
	s.Require().NoError(err)
	s.Equal(id, doc.ID())
	s.Equal(int32(1), doc.Get("n"))
	s.Equal(int64(3000000000), doc.Get("big"))
	s.Equal(1.5, doc.Get("f"))
	s.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), doc.Get("d"))
	s.Equal(bson.Regex{Pattern: "^a", Options: "i"}, doc.Get("r"))
	l := doc.Get("l").([]any)
	s.Equal(int32(1), l[0])
	s.True(l[1].(domain.Document).Has("x"))

	_, err = ParseJSON([]byte(`[1, 2]`))
	s.Error(err)
	_, err = ParseJSON([]byte(`{"a": `))
	s.Error(err)
}

func (s *DocumentTestSuite) TestParseJSONValue() {
	v, err := ParseJSONValue([]byte(`[1, "a"]`))
	s.NoError(err)
	s.Equal([]any{int32(1), "a"}, v)

	v, err = ParseJSONValue([]byte(`null`))
	s.NoError(err)
	s.Nil(v)
}

func (s *DocumentTestSuite) TestMarshalJSON() {
	doc, err := ParseJSON([]byte(`{"b": 1, "a": [true, "x"], "c": {"d": null}}`))
	s.Require().NoError(err)

	b, err := MarshalJSON(doc)
	s.NoError(err)
	s.JSONEq(`{"b": 1, "a": [true, "x"], "c": {"d": null}}`, string(b))
	s.JSONEq(`{"b": 1, "a": [true, "x"], "c": {"d": null}}`, doc.(*D).String())

	b, err = json.Marshal(doc)
	s.NoError(err)
	s.JSONEq(`{"b": 1, "a": [true, "x"], "c": {"d": null}}`, string(b))

	b, err = MarshalJSONValue([]any{int32(1), "a"})
	s.NoError(err)
	s.JSONEq(`[1, "a"]`, string(b))

	var back D
	s.NoError(json.Unmarshal([]byte(`{"z": 1, "y": 2}`), &back))
	s.Equal([]string{"z", "y"}, slices.Collect(back.Keys()))
}

func (s *DocumentTestSuite) TestBSONRoundTrip() {
	doc, err := ParseJSON([]byte(`{"b": 1, "a": {"c": [1, 2]}}`))
	s.Require().NoError(err)

	raw, err := bson.Marshal(doc)
	s.NoError(err)

	var back D
	s.NoError(bson.Unmarshal(raw, &back))
	s.Equal(doc, &back)
}

func (s *DocumentTestSuite) TestToBSON() {
	rgx := regexp.MustCompile(`^a`)
	now := time.UnixMilli(10).UTC()
	doc := s.doc(nil)
	doc.Set("r", rgx)
	doc.Set("t", now)
	doc.Set("l", []any{s.doc(map[string]any{"x": 1})})
	s.Equal(bson.D{
		{Key: "r", Value: bson.Regex{Pattern: "^a"}},
		{Key: "t", Value: bson.NewDateTimeFromTime(now)},
		{Key: "l", Value: bson.A{bson.D{{Key: "x", Value: int64(1)}}}},
	}, ToBSON(doc))
}

func (s *DocumentTestSuite) parse(j string) domain.Document {
	doc, err := ParseJSON([]byte(j))
	s.Require().NoError(err)
	return doc
}

// Identical values keep their types and key order.
func (s *DocumentTestSuite) TestIdentical() {
	a := s.parse(`{"a": 1, "b": [1, {"c": "x"}], "d": {"$binary": {"base64": "AQI=", "subType": "04"}}}`)
	s.True(Identical(a, CloneDocument(a)))
	s.False(Identical(a, s.parse(`{"b": [1, {"c": "x"}], "a": 1, "d": {"$binary": {"base64": "AQI=", "subType": "04"}}}`)))
	s.False(Identical(s.parse(`{"a": 1}`), s.parse(`{"a": 1.0}`)))
	s.False(Identical(s.parse(`{"a": 1}`), s.parse(`{"a": 1, "b": 2}`)))
	s.True(Identical(nil, nil))
	s.False(Identical(nil, int32(0)))
	s.True(Identical([]byte{1}, []byte{1}))
	s.True(Identical(math.NaN(), math.NaN()))
	s.True(Identical(time.UnixMilli(5), time.UnixMilli(5).UTC()))
	s.False(Identical([]any{int32(1)}, []any{int64(1)}))
}

func TestDocumentTestSuite(t *testing.T) {
	suite.Run(t, new(DocumentTestSuite))
}
