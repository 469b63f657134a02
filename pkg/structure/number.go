package structure

import (
	"errors"
	"math"
	"math/big"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrNotNumber is returned by arithmetic functions when an operand is
	// not a number.
	ErrNotNumber = errors.New("not a number")
	// ErrDecimalOverflow is returned when a decimal result cannot be
	// represented in 128 bits.
	ErrDecimalOverflow = errors.New("decimal overflow")
)

// NumberKind is the width of a numeric value. Wider kinds can represent every
// value of narrower ones.
type NumberKind uint8

// Supported numeric widths, narrowest first.
const (
	NotNumber NumberKind = iota
	Int32
	Int64
	Float64
	Decimal
)

// promotion holds the kind of the result of an arithmetic operation between
// two kinds.
var promotion = [5][5]NumberKind{
	NotNumber: {},
	Int32:     {NotNumber, Int32, Int64, Float64, Decimal},
	Int64:     {NotNumber, Int64, Int64, Float64, Decimal},
	Float64:   {NotNumber, Float64, Float64, Float64, Decimal},
	Decimal:   {NotNumber, Decimal, Decimal, Decimal, Decimal},
}

// NumberKindOf returns the numeric width of v, or [NotNumber].
func NumberKindOf(v any) NumberKind {
	switch t := v.(type) {
	case int8, int16, int32, uint8, uint16:
		return Int32
	case int, int64, uint32:
		return Int64
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Float64
		}
		return Int64
	case uint64:
		if t > math.MaxInt64 {
			return Float64
		}
		return Int64
	case float32, float64:
		return Float64
	case bson.Decimal128:
		return Decimal
	default:
		return NotNumber
	}
}

// IsNumber reports whether v is a number of any supported width.
func IsNumber(v any) bool {
	return NumberKindOf(v) != NotNumber
}

// Normalize converts numbers to their canonical representation (int32, int64,
// float64 or [bson.Decimal128]). Other values are returned unchanged.
func Normalize(v any) any {
	switch NumberKindOf(v) {
	case Int32:
		return int32(toInt64(v))
	case Int64:
		return toInt64(v)
	case Float64:
		return ToFloat64(v)
	default:
		return v
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

// ToFloat64 converts any number to float64, possibly losing precision.
func ToFloat64(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case uint64:
		return float64(t)
	case uint:
		return float64(t)
	case bson.Decimal128:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return math.NaN()
		}
		return f
	default:
		return float64(toInt64(v))
	}
}

// ToDecimal converts any number to [bson.Decimal128].
func ToDecimal(v any) (bson.Decimal128, error) {
	switch NumberKindOf(v) {
	case Decimal:
		return v.(bson.Decimal128), nil
	case Int32, Int64:
		d, ok := bson.ParseDecimal128FromBigInt(big.NewInt(toInt64(v)), 0)
		if !ok {
			return d, ErrDecimalOverflow
		}
		return d, nil
	case Float64:
		return bson.ParseDecimal128(strconv.FormatFloat(ToFloat64(v), 'g', -1, 64))
	default:
		return bson.Decimal128{}, ErrNotNumber
	}
}

// ToBigFloat converts a finite number to [big.Float]. Infinite values are
// converted to infinite big floats. NaN is not representable and reports
// false.
func ToBigFloat(v any) (*big.Float, bool) {
	switch NumberKindOf(v) {
	case Int32, Int64:
		return new(big.Float).SetInt64(toInt64(v)), true
	case Float64:
		f := ToFloat64(v)
		if math.IsNaN(f) {
			return nil, false
		}
		return new(big.Float).SetFloat64(f), true
	case Decimal:
		d := v.(bson.Decimal128)
		if d.IsNaN() {
			return nil, false
		}
		if inf := d.IsInf(); inf != 0 {
			return new(big.Float).SetInf(inf < 0), true
		}
		bi, exp, err := d.BigInt()
		if err != nil {
			return nil, false
		}
		f := new(big.Float).SetPrec(256).SetInt(bi)
		if exp != 0 {
			scale := new(big.Float).SetPrec(256).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(exp))), nil))
			if exp > 0 {
				f.Mul(f, scale)
			} else {
				f.Quo(f, scale)
			}
		}
		return f, true
	default:
		return nil, false
	}
}

// IsNaN reports whether v is a floating point or decimal NaN.
func IsNaN(v any) bool {
	switch t := v.(type) {
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	case bson.Decimal128:
		return t.IsNaN()
	default:
		return false
	}
}

// Add returns a + b using the narrowest width that holds the result. Two
// int32 values that overflow produce an int64, two int64 values that overflow
// produce a float64.
func Add(a, b any) (any, error) {
	return arith(a, b, addInt, addFloat, addDecimal)
}

// Mul returns a * b following the same widening rules as [Add].
func Mul(a, b any) (any, error) {
	return arith(a, b, mulInt, mulFloat, mulDecimal)
}

func arith(
	a, b any,
	intOp func(int64, int64) (int64, bool),
	floatOp func(float64, float64) float64,
	decOp func(bson.Decimal128, bson.Decimal128) (bson.Decimal128, error),
) (any, error) {
	kind := promotion[NumberKindOf(a)][NumberKindOf(b)]
	switch kind {
	case Int32, Int64:
		x, y := toInt64(a), toInt64(b)
		r, ok := intOp(x, y)
		if !ok {
			return floatOp(float64(x), float64(y)), nil
		}
		if kind == Int32 && r >= math.MinInt32 && r <= math.MaxInt32 {
			return int32(r), nil
		}
		return r, nil
	case Float64:
		return floatOp(ToFloat64(a), ToFloat64(b)), nil
	case Decimal:
		x, err := ToDecimal(a)
		if err != nil {
			return nil, err
		}
		y, err := ToDecimal(b)
		if err != nil {
			return nil, err
		}
		return decOp(x, y)
	default:
		return nil, ErrNotNumber
	}
}

func addInt(x, y int64) (int64, bool) {
	r := x + y
	if (x > 0 && y > 0 && r < 0) || (x < 0 && y < 0 && r >= 0) {
		return 0, false
	}
	return r, true
}

func mulInt(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, true
	}
	if (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		return 0, false
	}
	r := x * y
	if r/y != x {
		return 0, false
	}
	return r, true
}

func addFloat(x, y float64) float64 { return x + y }

func mulFloat(x, y float64) float64 { return x * y }

func addDecimal(x, y bson.Decimal128) (bson.Decimal128, error) {
	bx, ex, errX := x.BigInt()
	by, ey, errY := y.BigInt()
	if errX != nil || errY != nil {
		return bson.ParseDecimal128(strconv.FormatFloat(ToFloat64(x)+ToFloat64(y), 'g', -1, 64))
	}
	exp := min(ex, ey)
	bx = scaleBigInt(bx, ex-exp)
	by = scaleBigInt(by, ey-exp)
	return roundDecimal(bx.Add(bx, by), exp)
}

func mulDecimal(x, y bson.Decimal128) (bson.Decimal128, error) {
	bx, ex, errX := x.BigInt()
	by, ey, errY := y.BigInt()
	if errX != nil || errY != nil {
		return bson.ParseDecimal128(strconv.FormatFloat(ToFloat64(x)*ToFloat64(y), 'g', -1, 64))
	}
	return roundDecimal(new(big.Int).Mul(bx, by), ex+ey)
}

func scaleBigInt(bi *big.Int, digits int) *big.Int {
	res := new(big.Int).Set(bi)
	if digits == 0 {
		return res
	}
	return res.Mul(res, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil))
}

var maxSignificand, _ = new(big.Int).SetString("9999999999999999999999999999999999", 10)

// roundDecimal drops trailing digits, rounding half away from zero, until the
// significand fits in a decimal128.
func roundDecimal(bi *big.Int, exp int) (bson.Decimal128, error) {
	ten := big.NewInt(10)
	five := big.NewInt(5)
	rem := new(big.Int)
	for new(big.Int).Abs(bi).Cmp(maxSignificand) > 0 {
		bi.QuoRem(bi, ten, rem)
		if rem.Abs(rem).Cmp(five) >= 0 {
			if bi.Sign() < 0 {
				bi.Sub(bi, big.NewInt(1))
			} else {
				bi.Add(bi, big.NewInt(1))
			}
		}
		exp++
	}
	d, ok := bson.ParseDecimal128FromBigInt(bi, exp)
	if !ok {
		return d, ErrDecimalOverflow
	}
	return d, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
