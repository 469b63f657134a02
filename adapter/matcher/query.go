package matcher

import "regexp"

// Numeric representations of supported logic operators.
const (
	And uint8 = iota
	Or
	Nor
)

// Numeric representations of supported operators.
const (
	Eq uint8 = iota
	Ne
	Exists
	Lt
	Lte
	Gt
	Gte
	Size
	In
	Nin
	All
	Mod
	ElemMatch
	Regex
	Not
)

var operators = map[string]uint8{
	"$eq":        Eq,
	"$ne":        Ne,
	"$exists":    Exists,
	"$lt":        Lt,
	"$lte":       Lte,
	"$gt":        Gt,
	"$gte":       Gte,
	"$size":      Size,
	"$in":        In,
	"$nin":       Nin,
	"$all":       All,
	"$mod":       Mod,
	"$elemMatch": ElemMatch,
	"$regex":     Regex,
	"$not":       Not,
}

var logicOperators = map[string]uint8{
	"$and": And,
	"$or":  Or,
	"$nor": Nor,
}

// Query stores a query document in a typed and easier to iterate struct.
// Clauses keep the order of the query keys.
type Query struct {
	Clauses []Clause
}

// Clause is either a rule on a single field or a logic operator over nested
// queries.
type Clause struct {
	Rule  *FieldRule
	Logic uint8
	Sub   []Query
}

// FieldRule stores a set of conditions used to match a given object field.
// Every condition must match.
type FieldRule struct {
	Addr  []string
	Conds []Cond
}

// Cond stores a single operation on a document field (such as $gt, $size).
// Negative operations ($ne, $nin, $not, $exists: false) keep their positive
// form in Conds and match when it does not.
type Cond struct {
	Op    uint8
	Val   any
	Vals  []any
	Rgx   *regexp.Regexp
	Conds []Cond
	Query *Query
}

func (c *Cond) negated() bool {
	switch c.Op {
	case Ne, Nin, Not:
		return true
	}
	return false
}
