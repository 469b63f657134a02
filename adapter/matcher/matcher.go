// Package matcher contains the default implementation of [domain.Matcher]
// using the mongo query language.
package matcher

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/vinicius-lino-figueiredo/gemongo/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/data"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"github.com/vinicius-lino-figueiredo/gemongo/pkg/structure"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const codeBadLogicalElement = 14817

// ErrUnknownOperator is returned when user provides an unknown dollar field.
type ErrUnknownOperator struct {
	Operator string
	TopLevel bool
}

// Error implements [error].
func (e ErrUnknownOperator) Error() string {
	if e.TopLevel {
		return "unknown top level operator: " + e.Operator
	}
	return "unknown operator: " + e.Operator
}

// Unwrap returns [domain.ErrMalformedQuery].
func (e ErrUnknownOperator) Unwrap() error { return domain.ErrMalformedQuery }

// Code returns the protocol error code.
func (e ErrUnknownOperator) Code() int { return domain.CodeBadValue }

// ErrCompArgType is returned when a comparison operator is called with an
// argument of invalid type.
type ErrCompArgType struct {
	Comp   string
	Want   string
	Actual any
}

// Error implements [error].
func (e ErrCompArgType) Error() string {
	return fmt.Sprintf("%s needs %s, got %s", e.Comp, e.Want, structure.TypeName(e.Actual))
}

// Unwrap returns [domain.ErrMalformedQuery].
func (e ErrCompArgType) Unwrap() error { return domain.ErrMalformedQuery }

// Code returns the protocol error code.
func (e ErrCompArgType) Code() int { return domain.CodeBadValue }

// Matcher implements [domain.Matcher]. It holds no state between calls and is
// safe for concurrent use.
type Matcher struct {
	documentFactory domain.DocumentFactory
	comparer        domain.Comparer
	fieldNavigator  domain.FieldNavigator
}

// NewMatcher returns a new implementation of domain.Matcher.
func NewMatcher(options ...Option) domain.Matcher {
	m := &Matcher{
		documentFactory: data.NewDocument,
		comparer:        comparer.NewComparer(),
		fieldNavigator:  fieldnavigator.NewFieldNavigator(),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// Match implements [domain.Matcher].
func (m *Matcher) Match(doc any, query any) (bool, error) {
	res, err := m.MatchPosition(doc, query)
	return res.Matched, err
}

// MatchPosition implements [domain.Matcher]. When more than one clause
// matched through an array element, the first clause in query order wins.
func (m *Matcher) MatchPosition(doc any, query any) (domain.MatchResult, error) {
	res := domain.MatchResult{Position: -1}

	qry, err := m.Compile(query)
	if err != nil {
		return res, err
	}

	d, ok := doc.(domain.Document)
	if !ok {
		if d, err = m.documentFactory(doc); err != nil {
			return res, err
		}
	}

	matched, pos, err := m.matchQuery(d, qry)
	if err != nil || !matched {
		return res, err
	}
	return domain.MatchResult{Matched: true, Position: pos}, nil
}

// MatchValue implements [domain.Matcher]. A query made of operators is
// applied to the value itself, any other document is matched as a query
// against the value, which must be a document, and other values are compared
// by equality.
func (m *Matcher) MatchValue(value any, query any) (bool, error) {
	q, err := data.Normalize(query)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrMalformedQuery, err)
	}
	value, defined := structure.Concrete(value)

	doc, isDoc := q.(domain.Document)
	if isDoc && !m.isOperatorDoc(doc) {
		qry, err := m.compileDoc(doc)
		if err != nil {
			return false, err
		}
		d, ok := value.(domain.Document)
		if !ok {
			return false, nil
		}
		matched, _, err := m.matchQuery(d, qry)
		return matched, err
	}

	conds, err := m.compileValue(q)
	if err != nil {
		return false, err
	}
	matched, _, err := m.matchConds(value, defined, nil, conds)
	return matched, err
}

// Compile validates a query and converts it to a [Query]. Every structural
// error is reported here, before any document is read.
func (m *Matcher) Compile(query any) (*Query, error) {
	doc, ok := query.(domain.Document)
	if !ok {
		var err error
		if doc, err = m.documentFactory(query); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrMalformedQuery, err)
		}
	}
	return m.compileDoc(doc)
}

func (m *Matcher) compileDoc(doc domain.Document) (*Query, error) {
	qry := &Query{Clauses: make([]Clause, 0, doc.Len())}
	for key, value := range doc.Iter() {
		if !strings.HasPrefix(key, "$") {
			rule, err := m.compileRule(key, value)
			if err != nil {
				return nil, err
			}
			qry.Clauses = append(qry.Clauses, Clause{Rule: rule})
			continue
		}
		if key == "$comment" {
			continue
		}
		typ, ok := logicOperators[key]
		if !ok {
			return nil, ErrUnknownOperator{Operator: key, TopLevel: true}
		}
		sub, err := m.compileLogic(key, value)
		if err != nil {
			return nil, err
		}
		qry.Clauses = append(qry.Clauses, Clause{Logic: typ, Sub: sub})
	}
	return qry, nil
}

func (m *Matcher) compileLogic(name string, value any) ([]Query, error) {
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return nil, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "$and/$or/$nor must be a nonempty array")
	}
	sub := make([]Query, 0, len(list))
	for _, item := range list {
		doc, ok := item.(domain.Document)
		if !ok {
			return nil, domain.NewError(domain.ErrMalformedQuery, codeBadLogicalElement, "%s elements must be objects", name)
		}
		qry, err := m.compileDoc(doc)
		if err != nil {
			return nil, err
		}
		sub = append(sub, *qry)
	}
	return sub, nil
}

func (m *Matcher) compileRule(field string, value any) (*FieldRule, error) {
	addr, err := m.fieldNavigator.GetAddress(field)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedQuery, err)
	}
	conds, err := m.compileValue(value)
	if err != nil {
		return nil, err
	}
	return &FieldRule{Addr: addr, Conds: conds}, nil
}

// compileValue returns the conditions a field value stands for: operators,
// a pattern or a literal.
func (m *Matcher) compileValue(value any) ([]Cond, error) {
	value, _ = structure.Concrete(value)
	switch t := value.(type) {
	case domain.Document:
		if m.isOperatorDoc(t) {
			return m.compileOps(t)
		}
	case bson.Regex, *regexp.Regexp:
		rgx, err := m.compileRegex(t, "")
		if err != nil {
			return nil, err
		}
		return []Cond{{Op: Regex, Rgx: rgx}}, nil
	}
	return []Cond{{Op: Eq, Val: value}}, nil
}

func (m *Matcher) isOperatorDoc(doc domain.Document) bool {
	for key := range doc.Keys() {
		return strings.HasPrefix(key, "$")
	}
	return false
}

func (m *Matcher) compileOps(doc domain.Document) ([]Cond, error) {
	conds := make([]Cond, 0, doc.Len())

	var pattern any
	var options string
	var hasOptions bool
	regexAt := -1

	for key, value := range doc.Iter() {
		op, ok := operators[key]
		if !ok {
			if key == "$options" {
				str, ok := value.(string)
				if !ok {
					return nil, ErrCompArgType{Comp: key, Want: "a string", Actual: value}
				}
				options, hasOptions = str, true
				continue
			}
			return nil, ErrUnknownOperator{Operator: key}
		}

		var cond Cond
		var err error
		switch op {
		case Regex:
			pattern, regexAt = value, len(conds)
			cond = Cond{Op: Regex}
		case Ne:
			cond = Cond{Op: Ne, Conds: []Cond{{Op: Eq, Val: value}}}
		case In, Nin:
			cond, err = m.compileIn(key, value)
		case Exists:
			cond = Cond{Op: Exists}
			if !m.truthy(value) {
				cond = Cond{Op: Not, Conds: []Cond{cond}}
			}
		case Mod:
			cond, err = m.compileMod(value)
		case Size:
			cond, err = m.compileSize(value)
		case All:
			cond, err = m.compileAll(value)
		case ElemMatch:
			cond, err = m.compileElemMatch(value)
		case Not:
			cond, err = m.compileNot(value)
		default:
			cond = Cond{Op: op, Val: value}
		}
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}

	if hasOptions && regexAt < 0 {
		return nil, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "$options needs a $regex")
	}
	if regexAt >= 0 {
		rgx, err := m.compileRegex(pattern, options)
		if err != nil {
			return nil, err
		}
		conds[regexAt].Rgx = rgx
	}
	return conds, nil
}

func (m *Matcher) compileIn(name string, value any) (Cond, error) {
	list, ok := value.([]any)
	if !ok {
		return Cond{}, ErrCompArgType{Comp: name, Want: "an array", Actual: value}
	}
	vals := make([]any, len(list))
	for n, item := range list {
		switch item.(type) {
		case bson.Regex, *regexp.Regexp:
			rgx, err := m.compileRegex(item, "")
			if err != nil {
				return Cond{}, err
			}
			vals[n] = rgx
		case domain.Document:
			if m.isOperatorDoc(item.(domain.Document)) {
				return Cond{}, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "cannot nest $ under %s", name)
			}
			vals[n] = item
		default:
			vals[n] = item
		}
	}
	if name == "$nin" {
		return Cond{Op: Nin, Conds: []Cond{{Op: In, Vals: vals}}}, nil
	}
	return Cond{Op: In, Vals: vals}, nil
}

func (m *Matcher) compileMod(value any) (Cond, error) {
	list, ok := value.([]any)
	if !ok {
		return Cond{}, ErrCompArgType{Comp: "$mod", Want: "an array", Actual: value}
	}
	switch {
	case len(list) < 2:
		return Cond{}, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "malformed mod, not enough elements")
	case len(list) > 2:
		return Cond{}, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "malformed mod, too many elements")
	}
	if !structure.IsNumber(list[0]) {
		return Cond{}, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "malformed mod, divisor not a number")
	}
	if !structure.IsNumber(list[1]) {
		return Cond{}, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "malformed mod, remainder not a number")
	}
	divisor := int64(math.Trunc(structure.ToFloat64(list[0])))
	if divisor == 0 {
		return Cond{}, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "divisor cannot be 0")
	}
	remainder := int64(math.Trunc(structure.ToFloat64(list[1])))
	return Cond{Op: Mod, Val: [2]int64{divisor, remainder}}, nil
}

func (m *Matcher) compileSize(value any) (Cond, error) {
	size, ok := structure.AsInteger(value)
	if !ok {
		return Cond{}, ErrCompArgType{Comp: "$size", Want: "an integer", Actual: value}
	}
	if size < 0 {
		return Cond{}, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "Failed to parse $size. Expected a non-negative number in: $size: %d", size)
	}
	return Cond{Op: Size, Val: size}, nil
}

func (m *Matcher) compileAll(value any) (Cond, error) {
	list, ok := value.([]any)
	if !ok {
		return Cond{}, ErrCompArgType{Comp: "$all", Want: "an array", Actual: value}
	}
	conds := make([]Cond, 0, len(list))
	for _, item := range list {
		if doc, ok := item.(domain.Document); ok && doc.Has("$elemMatch") {
			if doc.Len() != 1 {
				return Cond{}, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "$all/$elemMatch has to be consistent")
			}
			cond, err := m.compileElemMatch(doc.Get("$elemMatch"))
			if err != nil {
				return Cond{}, err
			}
			conds = append(conds, cond)
			continue
		}
		switch item.(type) {
		case bson.Regex, *regexp.Regexp:
			rgx, err := m.compileRegex(item, "")
			if err != nil {
				return Cond{}, err
			}
			conds = append(conds, Cond{Op: Regex, Rgx: rgx})
		default:
			conds = append(conds, Cond{Op: Eq, Val: item})
		}
	}
	return Cond{Op: All, Conds: conds}, nil
}

// compileElemMatch accepts either operators, applied to each element, or a
// query, matched against each document element.
func (m *Matcher) compileElemMatch(value any) (Cond, error) {
	doc, ok := value.(domain.Document)
	if !ok {
		return Cond{}, ErrCompArgType{Comp: "$elemMatch", Want: "an Object", Actual: value}
	}
	if m.isOperatorDoc(doc) {
		var first string
		for first = range doc.Keys() {
			break
		}
		if _, logic := logicOperators[first]; !logic {
			conds, err := m.compileOps(doc)
			if err != nil {
				return Cond{}, err
			}
			return Cond{Op: ElemMatch, Conds: conds}, nil
		}
	}
	qry, err := m.compileDoc(doc)
	if err != nil {
		return Cond{}, err
	}
	return Cond{Op: ElemMatch, Query: qry}, nil
}

func (m *Matcher) compileNot(value any) (Cond, error) {
	switch t := value.(type) {
	case bson.Regex, *regexp.Regexp:
		rgx, err := m.compileRegex(t, "")
		if err != nil {
			return Cond{}, err
		}
		return Cond{Op: Not, Conds: []Cond{{Op: Regex, Rgx: rgx}}}, nil
	case domain.Document:
		if t.Len() == 0 {
			return Cond{}, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "$not cannot be empty")
		}
		conds, err := m.compileOps(t)
		if err != nil {
			return Cond{}, err
		}
		return Cond{Op: Not, Conds: conds}, nil
	default:
		return Cond{}, ErrCompArgType{Comp: "$not", Want: "a regex or a document", Actual: value}
	}
}

// compileRegex builds a pattern from a string, a bson.Regex or a compiled
// expression, with the i, m, s and u options.
func (m *Matcher) compileRegex(pattern any, options string) (*regexp.Regexp, error) {
	var expr string
	switch t := pattern.(type) {
	case string:
		expr = t
	case bson.Regex:
		if t.Options != "" && options != "" {
			return nil, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "options set in both $regex and $options")
		}
		expr, options = t.Pattern, options+t.Options
	case *regexp.Regexp:
		expr = t.String()
	default:
		return nil, ErrCompArgType{Comp: "$regex", Want: "a string or a regex", Actual: pattern}
	}

	var flags strings.Builder
	for _, c := range options {
		switch c {
		case 'i', 'm', 's':
			if !strings.ContainsRune(flags.String(), c) {
				flags.WriteRune(c)
			}
		case 'u':
		default:
			return nil, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "invalid flag in regex options: %c", c)
		}
	}
	if flags.Len() > 0 {
		expr = "(?" + flags.String() + ")" + expr
	}
	rgx, err := regexp.Compile(expr)
	if err != nil {
		return nil, domain.NewError(domain.ErrMalformedQuery, domain.CodeBadValue, "Regular expression is invalid: %s", err)
	}
	return rgx, nil
}

func (m *Matcher) truthy(v any) bool {
	v, _ = structure.Concrete(v)
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	}
	if structure.IsNumber(v) {
		return structure.ToFloat64(v) != 0
	}
	return true
}

func (m *Matcher) matchQuery(doc domain.Document, qry *Query) (bool, int, error) {
	pos := -1
	for n := range qry.Clauses {
		matched, p, err := m.matchClause(doc, &qry.Clauses[n])
		if err != nil || !matched {
			return false, -1, err
		}
		if pos < 0 {
			pos = p
		}
	}
	return true, pos, nil
}

func (m *Matcher) matchClause(doc domain.Document, clause *Clause) (bool, int, error) {
	if clause.Rule != nil {
		return m.matchConds(doc, true, clause.Rule.Addr, clause.Rule.Conds)
	}

	switch clause.Logic {
	case And:
		pos := -1
		for n := range clause.Sub {
			matched, p, err := m.matchQuery(doc, &clause.Sub[n])
			if err != nil || !matched {
				return false, -1, err
			}
			if pos < 0 {
				pos = p
			}
		}
		return true, pos, nil
	case Or:
		for n := range clause.Sub {
			matched, p, err := m.matchQuery(doc, &clause.Sub[n])
			if err != nil || matched {
				return matched, p, err
			}
		}
		return false, -1, nil
	default:
		for n := range clause.Sub {
			matched, _, err := m.matchQuery(doc, &clause.Sub[n])
			if err != nil || matched {
				return false, -1, err
			}
		}
		return true, -1, nil
	}
}

// matchConds reports whether every condition matches the value found at addr
// below v.
func (m *Matcher) matchConds(v any, defined bool, addr []string, conds []Cond) (bool, int, error) {
	pos := -1
	for n := range conds {
		cond := &conds[n]
		if cond.negated() {
			matched, _, err := m.matchConds(v, defined, addr, cond.Conds)
			if err != nil || matched {
				return false, -1, err
			}
			continue
		}
		matched, p, err := m.walk(v, defined, addr, cond)
		if err != nil || !matched {
			return false, -1, err
		}
		if pos < 0 {
			pos = p
		}
	}
	return true, pos, nil
}

// walk follows addr below v. A field name applied to an array is applied to
// each of its documents, and the index of the first one that matches is
// reported as the position.
func (m *Matcher) walk(v any, defined bool, addr []string, cond *Cond) (bool, int, error) {
	if len(addr) == 0 {
		return m.leaf(v, defined, cond)
	}

	switch t := v.(type) {
	case domain.Document:
		return m.walk(t.Get(addr[0]), t.Has(addr[0]), addr[1:], cond)
	case []any:
		if i, err := strconv.Atoi(addr[0]); err == nil && i >= 0 {
			if i < len(t) {
				return m.walk(t[i], true, addr[1:], cond)
			}
			return m.walk(nil, false, addr[1:], cond)
		}
		hasDocs := false
		for i, item := range t {
			doc, ok := item.(domain.Document)
			if !ok {
				continue
			}
			hasDocs = true
			matched, _, err := m.walk(doc, true, addr, cond)
			if err != nil {
				return false, -1, err
			}
			if matched {
				return true, i, nil
			}
		}
		if !hasDocs {
			return m.leaf(nil, false, cond)
		}
		return false, -1, nil
	default:
		return m.leaf(nil, false, cond)
	}
}

// leaf applies a positive condition to a resolved value. Arrays are tried as
// a whole first and then element by element.
func (m *Matcher) leaf(v any, defined bool, cond *Cond) (bool, int, error) {
	v, ok := structure.Concrete(v)
	defined = defined && ok

	switch cond.Op {
	case Exists:
		return defined, -1, nil
	case Size:
		arr, ok := v.([]any)
		return ok && len(arr) == cond.Val.(int), -1, nil
	case ElemMatch:
		return m.elemMatch(v, cond)
	case All:
		if len(cond.Conds) == 0 {
			return false, -1, nil
		}
		pos := -1
		for n := range cond.Conds {
			matched, p, err := m.leaf(v, defined, &cond.Conds[n])
			if err != nil || !matched {
				return false, -1, err
			}
			if pos < 0 {
				pos = p
			}
		}
		return true, pos, nil
	}

	matched, err := m.scalar(v, defined, cond)
	if err != nil || matched {
		return matched, -1, err
	}

	arr, ok := v.([]any)
	if !ok {
		return false, -1, nil
	}
	for i, item := range arr {
		matched, err := m.scalar(item, true, cond)
		if err != nil {
			return false, -1, err
		}
		if matched {
			return true, i, nil
		}
	}
	return false, -1, nil
}

func (m *Matcher) scalar(v any, defined bool, cond *Cond) (bool, error) {
	switch cond.Op {
	case Eq:
		return m.comparer.Equal(v, cond.Val)
	case Lt, Lte, Gt, Gte:
		return m.compare(v, defined, cond)
	case In:
		return m.in(v, cond.Vals)
	case Regex:
		str, ok := v.(string)
		return ok && cond.Rgx.MatchString(str), nil
	case Mod:
		return m.mod(v, cond.Val.([2]int64)), nil
	default:
		return false, nil
	}
}

// compare applies a range operator. Values of different type classes never
// match, except that $lte and $gte with null match null and missing values.
func (m *Matcher) compare(v any, defined bool, cond *Cond) (bool, error) {
	if !m.comparer.Comparable(v, cond.Val) {
		if cond.Val == nil && (cond.Op == Lte || cond.Op == Gte) {
			return !defined || v == nil, nil
		}
		return false, nil
	}
	c, err := m.comparer.Compare(v, cond.Val)
	if err != nil {
		return false, err
	}
	switch cond.Op {
	case Lt:
		return c < 0, nil
	case Lte:
		return c <= 0, nil
	case Gt:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func (m *Matcher) in(v any, vals []any) (bool, error) {
	for _, item := range vals {
		if rgx, ok := item.(*regexp.Regexp); ok {
			if str, ok := v.(string); ok && rgx.MatchString(str) {
				return true, nil
			}
			continue
		}
		eq, err := m.comparer.Equal(v, item)
		if err != nil || eq {
			return eq, err
		}
	}
	return false, nil
}

func (m *Matcher) mod(v any, args [2]int64) bool {
	if !structure.IsNumber(v) {
		return false
	}
	f := structure.ToFloat64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return int64(math.Trunc(f))%args[0] == args[1]
}

func (m *Matcher) elemMatch(v any, cond *Cond) (bool, int, error) {
	arr, ok := v.([]any)
	if !ok {
		return false, -1, nil
	}
	for i, item := range arr {
		var matched bool
		var err error
		if cond.Query != nil {
			doc, ok := item.(domain.Document)
			if !ok {
				continue
			}
			matched, _, err = m.matchQuery(doc, cond.Query)
		} else {
			matched, _, err = m.matchConds(item, true, nil, cond.Conds)
		}
		if err != nil {
			return false, -1, err
		}
		if matched {
			return true, i, nil
		}
	}
	return false, -1, nil
}
