// Package comparer implements the total order used to sort and compare
// document values.
package comparer

import (
	"bytes"
	"cmp"
	"fmt"
	"regexp"
	"time"

	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"github.com/vinicius-lino-figueiredo/gemongo/pkg/structure"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrUncomparable is returned when a value does not belong to any known type
// class.
type ErrUncomparable struct {
	A, B any
}

func (e ErrUncomparable) Error() string {
	return fmt.Sprintf("cannot compare unexpected types %T and %T", e.A, e.B)
}

// Comparer implements domain.Comparer.
type Comparer struct{}

// NewComparer returns a new implementation of domain.Comparer.
func NewComparer() domain.Comparer {
	return &Comparer{}
}

// Comparable implements domain.Comparer.
func (c *Comparer) Comparable(a, b any) bool {
	ca, cb := structure.ClassOf(a), structure.ClassOf(b)
	return ca == cb && ca != structure.ClassNull && ca != structure.ClassUnknown
}

// Compare implements domain.Comparer. Missing values are compared as null.
func (c *Comparer) Compare(a, b any) (int, error) {
	a, _ = structure.Concrete(a)
	b, _ = structure.Concrete(b)

	ca, cb := structure.ClassOf(a), structure.ClassOf(b)
	if ca == structure.ClassUnknown || cb == structure.ClassUnknown {
		return 0, ErrUncomparable{A: a, B: b}
	}
	if ca != cb {
		return cmp.Compare(ca, cb), nil
	}

	switch ca {
	case structure.ClassNull:
		return 0, nil
	case structure.ClassNumber:
		return c.compareNumbers(a, b), nil
	case structure.ClassString:
		return cmp.Compare(a.(string), b.(string)), nil
	case structure.ClassDocument:
		return c.compareDocs(a.(domain.Document), b.(domain.Document))
	case structure.ClassArray:
		return c.compareArrays(a.([]any), b.([]any))
	case structure.ClassBinary:
		return c.compareBinary(a, b), nil
	case structure.ClassObjectID:
		x, y := a.(bson.ObjectID), b.(bson.ObjectID)
		return bytes.Compare(x[:], y[:]), nil
	case structure.ClassBool:
		return c.compareBool(a.(bool), b.(bool)), nil
	case structure.ClassDate:
		return c.compareDates(a, b), nil
	default:
		return c.compareRegex(a, b), nil
	}
}

// Equal implements domain.Comparer.
func (c *Comparer) Equal(a, b any) (bool, error) {
	a, _ = structure.Concrete(a)
	b, _ = structure.Concrete(b)

	ca, cb := structure.ClassOf(a), structure.ClassOf(b)
	if ca != cb {
		return false, nil
	}

	switch ca {
	case structure.ClassDocument:
		return c.equalDocs(a.(domain.Document), b.(domain.Document))
	case structure.ClassArray:
		return c.equalArrays(a.([]any), b.([]any))
	case structure.ClassUnknown:
		return false, ErrUncomparable{A: a, B: b}
	}

	comp, err := c.Compare(a, b)
	if err != nil {
		return false, err
	}
	return comp == 0, nil
}

func (c *Comparer) compareNumbers(a, b any) int {
	nanA, nanB := structure.IsNaN(a), structure.IsNaN(b)
	switch {
	case nanA && nanB:
		return 0
	case nanA:
		return -1
	case nanB:
		return 1
	}

	// big.Float compares int64 and float64 without precision loss
	x, _ := structure.ToBigFloat(a)
	y, _ := structure.ToBigFloat(b)
	return x.Cmp(y)
}

// compareDocs walks the keys of a in order. Keys missing from b are compared
// as null.
func (c *Comparer) compareDocs(a, b domain.Document) (int, error) {
	for k, v := range a.Iter() {
		comp, err := c.Compare(v, b.Get(k))
		if err != nil {
			return 0, err
		}
		if comp != 0 {
			return comp, nil
		}
	}
	return 0, nil
}

func (c *Comparer) compareArrays(a, b []any) (int, error) {
	for i := range min(len(a), len(b)) {
		comp, err := c.Compare(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if comp != 0 {
			return comp, nil
		}
	}

	// Common section was identical, longest one wins
	return cmp.Compare(len(a), len(b)), nil
}

func (c *Comparer) compareBinary(a, b any) int {
	x, y := c.asBinary(a), c.asBinary(b)
	if comp := cmp.Compare(len(x.Data), len(y.Data)); comp != 0 {
		return comp
	}
	if comp := cmp.Compare(x.Subtype, y.Subtype); comp != 0 {
		return comp
	}
	return bytes.Compare(x.Data, y.Data)
}

func (c *Comparer) asBinary(v any) bson.Binary {
	if b, ok := v.([]byte); ok {
		return bson.Binary{Subtype: bson.TypeBinaryGeneric, Data: b}
	}
	return v.(bson.Binary)
}

func (c *Comparer) compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if a {
		return 1
	}
	return -1
}

func (c *Comparer) compareDates(a, b any) int {
	if x, ok := a.(bson.Timestamp); ok {
		if y, ok := b.(bson.Timestamp); ok {
			return x.Compare(y)
		}
	}
	return c.asTime(a).Compare(c.asTime(b))
}

func (c *Comparer) asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case bson.DateTime:
		return t.Time()
	case bson.Timestamp:
		return time.Unix(int64(t.T), 0)
	}
	return time.Time{}
}

func (c *Comparer) compareRegex(a, b any) int {
	x, y := c.asRegex(a), c.asRegex(b)
	if comp := cmp.Compare(x.Pattern, y.Pattern); comp != 0 {
		return comp
	}
	return cmp.Compare(x.Options, y.Options)
}

func (c *Comparer) asRegex(v any) bson.Regex {
	if r, ok := v.(*regexp.Regexp); ok {
		return bson.Regex{Pattern: r.String()}
	}
	return v.(bson.Regex)
}

func (c *Comparer) equalDocs(a, b domain.Document) (bool, error) {
	if a.Len() != b.Len() {
		return false, nil
	}
	for k, v := range a.Iter() {
		if !b.Has(k) {
			return false, nil
		}
		eq, err := c.Equal(v, b.Get(k))
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

func (c *Comparer) equalArrays(a, b []any) (bool, error) {
	if len(a) != len(b) {
		return false, nil
	}
	for i := range a {
		eq, err := c.Equal(a[i], b[i])
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}
