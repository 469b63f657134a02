package structure

import (
	"math"
	"math/big"
	"regexp"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type undefined struct{}

func (undefined) Get() (any, bool) { return nil, false }

type defined [1]any

func (d defined) Get() (any, bool) { return d[0], true }

type StructureTestSuite struct {
	suite.Suite
}

func (s *StructureTestSuite) collect(obj any) ([]string, []any) {
	i, l, err := Seq2(obj)
	s.Require().NoError(err)
	var keys []string
	var values []any
	for k, v := range i {
		keys = append(keys, k)
		values = append(values, v)
	}
	s.Len(keys, l)
	return keys, values
}

// Maps are iterated in ascending key order, bson.D in its own order.
func (s *StructureTestSuite) TestSeq2Order() {
	keys, values := s.collect(map[string]any{"b": 2, "a": 1, "c": 3})
	s.Equal([]string{"a", "b", "c"}, keys)
	s.Equal([]any{1, 2, 3}, values)

	keys, _ = s.collect(map[string]int{"z": 1, "y": 2})
	s.Equal([]string{"y", "z"}, keys)

	keys, values = s.collect(bson.D{{Key: "z", Value: 1}, {Key: "a", Value: 2}})
	s.Equal([]string{"z", "a"}, keys)
	s.Equal([]any{1, 2}, values)
}

// Struct fields honor the gemongo tag, including omitempty and omitzero.
func (s *StructureTestSuite) TestSeq2Struct() {
	type T struct {
		A       string `gemongo:"renamed"`
		B       int
		C       *int   `gemongo:",omitempty"`
		D       int    `gemongo:"d,omitzero"`
		Ignored bool   `gemongo:"-"`
		private int
		E       []any  `gemongo:"e"`
	}
	keys, values := s.collect(T{A: "x", B: 2, E: []any{1}})
	s.Equal([]string{"renamed", "B", "e"}, keys)
	s.Equal([]any{"x", 2, []any{1}}, values)

	keys, _ = s.collect(&T{D: 3})
	s.Equal([]string{"renamed", "B", "d", "e"}, keys)
}

// Primitive values cannot be iterated as objects.
func (s *StructureTestSuite) TestSeq2Errors() {
	_, _, err := Seq2(nil)
	s.ErrorIs(err, ErrNilObj)

	for _, v := range []any{1, "a", true, []any{}, time.Now(), bson.NewObjectID()} {
		_, _, err := Seq2(v)
		e := ErrorNonObject{}
		s.ErrorAs(err, &e)
	}

	var ptr *struct{ A int }
	_, _, err = Seq2(ptr)
	s.ErrorIs(err, ErrNilObj)
}

func (s *StructureTestSuite) TestSeq() {
	i, l, err := Seq([]int{1, 2, 3})
	s.NoError(err)
	s.Equal(3, l)
	s.Equal([]any{1, 2, 3}, slices.Collect(i))

	i, l, err = Seq(bson.A{"a"})
	s.NoError(err)
	s.Equal(1, l)
	s.Equal([]any{"a"}, slices.Collect(i))

	i, l, err = Seq([2]string{"a", "b"})
	s.NoError(err)
	s.Equal(2, l)
	s.Equal([]any{"a", "b"}, slices.Collect(i))

	_, _, err = Seq([]byte("abc"))
	e := ErrorNonList{}
	s.ErrorAs(err, &e)

	_, _, err = Seq(3)
	s.ErrorAs(err, &e)

	_, _, err = Seq(nil)
	s.ErrorIs(err, ErrNilObj)
}

func (s *StructureTestSuite) TestClassOf() {
	cases := []struct {
		value any
		class Class
	}{
		{nil, ClassNull},
		{undefined{}, ClassNull},
		{defined{"a"}, ClassString},
		{bson.Null{}, ClassNull},
		{int8(1), ClassNumber},
		{uint64(1), ClassNumber},
		{1.5, ClassNumber},
		{bson.Decimal128{}, ClassNumber},
		{"", ClassString},
		{[]any{}, ClassArray},
		{[]byte{}, ClassBinary},
		{bson.Binary{Subtype: 4}, ClassBinary},
		{bson.NewObjectID(), ClassObjectID},
		{false, ClassBool},
		{time.Now(), ClassDate},
		{bson.DateTime(0), ClassDate},
		{bson.Timestamp{T: 1}, ClassDate},
		{bson.Regex{Pattern: "a"}, ClassRegex},
		{regexp.MustCompile("a"), ClassRegex},
		{struct{}{}, ClassUnknown},
	}
	for _, c := range cases {
		s.Equal(c.class, ClassOf(c.value), "%#v", c.value)
	}

	// the declared order is the sort order
	s.Less(ClassNull, ClassNumber)
	s.Less(ClassDocument, ClassArray)
	s.Less(ClassBool, ClassDate)
	s.Equal("array", ClassArray.String())
	s.Equal("unknown", Class(200).String())
}

func (s *StructureTestSuite) TestTypeName() {
	s.Equal("int", TypeName(int32(1)))
	s.Equal("long", TypeName(1))
	s.Equal("double", TypeName(1.0))
	s.Equal("decimal", TypeName(bson.Decimal128{}))
	s.Equal("string", TypeName("a"))
	s.Equal("timestamp", TypeName(bson.Timestamp{}))
	s.Equal("null", TypeName(nil))
}

func (s *StructureTestSuite) TestConcrete() {
	v, ok := Concrete(defined{defined{3}})
	s.True(ok)
	s.Equal(3, v)

	_, ok = Concrete(defined{undefined{}})
	s.False(ok)

	v, ok = Concrete("x")
	s.True(ok)
	s.Equal("x", v)
}

// Integer arithmetic stays integral unless the result overflows.
func (s *StructureTestSuite) TestAddWidening() {
	r, err := Add(int32(1), int32(2))
	s.NoError(err)
	s.Equal(int32(3), r)

	r, err = Add(int32(math.MaxInt32), int32(1))
	s.NoError(err)
	s.Equal(int64(math.MaxInt32)+1, r)

	r, err = Add(int32(1), int64(2))
	s.NoError(err)
	s.Equal(int64(3), r)

	r, err = Add(int64(math.MaxInt64), int64(1))
	s.NoError(err)
	s.Equal(float64(math.MaxInt64)+1, r)

	r, err = Add(int32(1), 0.5)
	s.NoError(err)
	s.Equal(1.5, r)

	r, err = Add(1, 2)
	s.NoError(err)
	s.Equal(int64(3), r)

	_, err = Add("a", 1)
	s.ErrorIs(err, ErrNotNumber)
}

func (s *StructureTestSuite) TestMulWidening() {
	r, err := Mul(int32(3), int32(4))
	s.NoError(err)
	s.Equal(int32(12), r)

	r, err = Mul(int32(math.MaxInt32), int32(2))
	s.NoError(err)
	s.Equal(int64(math.MaxInt32)*2, r)

	r, err = Mul(int64(math.MaxInt64), int64(2))
	s.NoError(err)
	s.Equal(float64(math.MaxInt64)*2, r)

	r, err = Mul(int32(0), int64(math.MinInt64))
	s.NoError(err)
	s.Equal(int64(0), r)

	r, err = Mul(2.5, int32(2))
	s.NoError(err)
	s.Equal(5.0, r)
}

func (s *StructureTestSuite) TestDecimalArithmetic() {
	a, err := bson.ParseDecimal128("1.1")
	s.Require().NoError(err)

	r, err := Add(a, int32(2))
	s.NoError(err)
	s.Equal("3.1", r.(bson.Decimal128).String())

	r, err = Add(a, 0.1)
	s.NoError(err)
	s.Equal("1.2", r.(bson.Decimal128).String())

	r, err = Mul(a, a)
	s.NoError(err)
	s.Equal("1.21", r.(bson.Decimal128).String())
}

func (s *StructureTestSuite) TestNormalize() {
	s.Equal(int32(1), Normalize(int8(1)))
	s.Equal(int64(1), Normalize(1))
	s.Equal(int64(1), Normalize(uint32(1)))
	s.Equal(int64(7), Normalize(uint(7)))
	s.Equal(float64(math.MaxUint64), Normalize(uint(math.MaxUint64)))
	s.Equal(float64(math.MaxUint64), Normalize(uint64(math.MaxUint64)))
	s.Equal(float64(1.5), Normalize(float32(1.5)))
	s.Equal("a", Normalize("a"))
}

func (s *StructureTestSuite) TestAsInteger() {
	for _, v := range []any{int8(3), int32(3), int64(3), 3.0, uint(3)} {
		i, ok := AsInteger(v)
		s.True(ok)
		s.Equal(3, i)
	}
	for _, v := range []any{3.5, math.NaN(), math.Inf(1), "3", nil} {
		_, ok := AsInteger(v)
		s.False(ok)
	}
}

func (s *StructureTestSuite) TestToBigFloat() {
	d, err := bson.ParseDecimal128("2.50")
	s.Require().NoError(err)
	f, ok := ToBigFloat(d)
	s.True(ok)
	s.Equal(0, f.Cmp(mustBig(2.5)))

	f, ok = ToBigFloat(int32(-4))
	s.True(ok)
	s.Equal(0, f.Cmp(mustBig(-4)))

	f, ok = ToBigFloat(math.Inf(-1))
	s.True(ok)
	s.True(f.IsInf())

	_, ok = ToBigFloat(math.NaN())
	s.False(ok)
	s.True(IsNaN(math.NaN()))
	s.False(IsNaN(1.0))
}

func (s *StructureTestSuite) TestContains() {
	eq := func(a, b int) (bool, error) { return a == b, nil }
	ok, err := Contains([]int{1, 2, 3}, 2, eq)
	s.NoError(err)
	s.True(ok)
	ok, err = Contains([]int{1, 2, 3}, 4, eq)
	s.NoError(err)
	s.False(ok)
}

func mustBig(f float64) *big.Float {
	return new(big.Float).SetFloat64(f)
}

func TestStructureTestSuite(t *testing.T) {
	suite.Run(t, new(StructureTestSuite))
}
