package structure

import (
	"regexp"
	"time"

	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Class is the type class of a value. Values of different classes are ordered
// by their Class, lowest first.
type Class uint8

// Supported type classes, in ascending sort order.
const (
	ClassNull Class = iota
	ClassNumber
	ClassString
	ClassDocument
	ClassArray
	ClassBinary
	ClassObjectID
	ClassBool
	ClassDate
	ClassRegex
	ClassUnknown
)

var classNames = [...]string{
	ClassNull:     "null",
	ClassNumber:   "number",
	ClassString:   "string",
	ClassDocument: "object",
	ClassArray:    "array",
	ClassBinary:   "binData",
	ClassObjectID: "objectId",
	ClassBool:     "bool",
	ClassDate:     "date",
	ClassRegex:    "regex",
	ClassUnknown:  "unknown",
}

// String returns the type alias used in error messages.
func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return classNames[ClassUnknown]
}

// ClassOf returns the type class of v. Missing values, represented by an
// undefined [domain.Getter], share the null class.
func ClassOf(v any) Class {
	switch t := v.(type) {
	case nil, bson.Null, bson.Undefined:
		return ClassNull
	case domain.Getter:
		value, defined := t.Get()
		if !defined {
			return ClassNull
		}
		return ClassOf(value)
	case string:
		return ClassString
	case domain.Document:
		return ClassDocument
	case []any:
		return ClassArray
	case bson.Binary, []byte:
		return ClassBinary
	case bson.ObjectID:
		return ClassObjectID
	case bool:
		return ClassBool
	case time.Time, bson.DateTime, bson.Timestamp:
		return ClassDate
	case bson.Regex, *regexp.Regexp:
		return ClassRegex
	}
	if NumberKindOf(v) != NotNumber {
		return ClassNumber
	}
	return ClassUnknown
}

// TypeName returns a short name for the type of v, used in error messages.
func TypeName(v any) string {
	switch v.(type) {
	case bson.Timestamp:
		return "timestamp"
	}
	switch NumberKindOf(v) {
	case Int32:
		return "int"
	case Int64:
		return "long"
	case Float64:
		return "double"
	case Decimal:
		return "decimal"
	}
	return ClassOf(v).String()
}

// Concrete unwraps v while it is a [domain.Getter]. The returned flag is false
// when the value is missing.
func Concrete(v any) (any, bool) {
	for {
		g, ok := v.(domain.Getter)
		if !ok {
			return v, true
		}
		if v, ok = g.Get(); !ok {
			return nil, false
		}
	}
}
