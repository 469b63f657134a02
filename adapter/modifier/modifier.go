// Package modifier contains a [domain.Modifier] implementation to apply changes
// to a doc based on a mongo-like API.
package modifier

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/vinicius-lino-figueiredo/gemongo/adapter/arrayfilter"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/data"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"github.com/vinicius-lino-figueiredo/gemongo/pkg/structure"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Legacy error codes reported for array operators applied to non-arrays and
// for list operands of the wrong type.
const (
	codeNonArrayPush = 10141
	codeNonArrayPull = 10142
	codeNonArrayPop  = 10143
	codeArrayOnly    = 10153
)

var (
	// ErrMixedOperators is returned when user provides an update query with
	// mixed use of normal fields and dollar fields.
	ErrMixedOperators = &domain.Error{
		Kind: domain.ErrMalformedUpdate,
		Code: domain.CodeFailedToParse,
		Msg:  "cannot mix update operators and plain fields",
	}
	// ErrPositionalNotFound is returned when an update path has a $ segment
	// but no array element position was reported by the query.
	ErrPositionalNotFound = &domain.Error{
		Kind: domain.ErrMalformedUpdate,
		Code: domain.CodeBadValue,
		Msg:  "The positional operator did not find the match needed from the query.",
	}
)

// ErrModFieldType is returned when a modification function runs on a document
// field of a type that is not accepted.
type ErrModFieldType struct {
	Mod    string
	Field  string
	Want   string
	Actual any
}

// Error implements [error].
func (e ErrModFieldType) Error() string {
	if e.Want == "array" {
		return fmt.Sprintf("Cannot apply %s modifier to non-array field '%s' of type %s", e.Mod, e.Field, structure.TypeName(e.Actual))
	}
	return fmt.Sprintf("Cannot apply %s to field '%s' of non-numeric type %s", e.Mod, e.Field, structure.TypeName(e.Actual))
}

// Unwrap returns [domain.ErrTypeMismatch].
func (e ErrModFieldType) Unwrap() error { return domain.ErrTypeMismatch }

// Code returns the protocol error code.
func (e ErrModFieldType) Code() int {
	switch e.Mod {
	case "$push", "$pushAll", "$addToSet":
		return codeNonArrayPush
	case "$pull", "$pullAll":
		return codeNonArrayPull
	case "$pop":
		return codeNonArrayPop
	default:
		return domain.CodeTypeMismatch
	}
}

// ErrModArgType is returned when a modification function is called with an
// argument of a type that is not accepted.
type ErrModArgType struct {
	Mod    string
	Want   string
	Actual any
}

// Error implements [error].
func (e ErrModArgType) Error() string {
	return fmt.Sprintf("%s expects %s argument, got %s", e.Mod, e.Want, structure.TypeName(e.Actual))
}

// Unwrap returns [domain.ErrMalformedUpdate].
func (e ErrModArgType) Unwrap() error { return domain.ErrMalformedUpdate }

// Code returns the protocol error code.
func (e ErrModArgType) Code() int {
	switch e.Mod {
	case "$pushAll", "$pullAll":
		return codeArrayOnly
	default:
		return domain.CodeBadValue
	}
}

// ErrUnknownModifier is returned when the user specifies a modification query
// with a modification procedure that is not known by the current implementation
// of [Modifier].
type ErrUnknownModifier struct {
	Name string
}

// Error implements [error].
func (e ErrUnknownModifier) Error() string {
	return fmt.Sprintf("Unknown modifier: %s. Expected a valid update modifier", e.Name)
}

// Unwrap returns [domain.ErrMalformedUpdate].
func (e ErrUnknownModifier) Unwrap() error { return domain.ErrMalformedUpdate }

// Code returns the protocol error code.
func (e ErrUnknownModifier) Code() int { return domain.CodeFailedToParse }

// modFunc applies an operator to a single concrete path.
type modFunc func(doc domain.Document, addr []string, arg any) error

// argFunc validates an operand before any field is changed.
type argFunc func(field string, arg any) error

type mod struct {
	apply modFunc
	check argFunc
}

type modCall struct {
	name   string
	mod    mod
	fields []modField
}

type modField struct {
	path string
	arg  any
}

// modStep is an operator bound to one concrete path.
type modStep struct {
	mod  mod
	addr []string
	arg  any
}

// Modifier implements [domain.Modifier]. It holds no state between calls and
// is safe for concurrent use.
type Modifier struct {
	documentFactory domain.DocumentFactory
	comparer        domain.Comparer
	fieldNavigator  domain.FieldNavigator
	matcher         domain.Matcher
	arrayFilters    domain.ArrayFiltersParser
	timeGetter      domain.TimeGetter
	idGenerator     domain.IDGenerator
	mods            map[string]mod
}

// NewModifier returns a new implementation of [domain.Modifier].
func NewModifier(options ...Option) domain.Modifier {
	m := &Modifier{
		documentFactory: data.NewDocument,
		comparer:        comparer.NewComparer(),
		fieldNavigator:  fieldnavigator.NewFieldNavigator(),
		matcher:         matcher.NewMatcher(),
		arrayFilters:    arrayfilter.NewParser(),
		timeGetter:      timegetter.NewTimeGetter(),
		idGenerator:     idgenerator.NewIDGenerator(),
	}

	for _, option := range options {
		option(m)
	}

	m.mods = map[string]mod{
		"$set":         {apply: m.set},
		"$setOnInsert": {apply: m.set},
		"$unset":       {apply: m.unset},
		"$inc":         {apply: m.arith("$inc", structure.Add), check: m.checkNumber("increment")},
		"$mul":         {apply: m.arith("$mul", structure.Mul), check: m.checkNumber("multiply")},
		"$min":         {apply: m.minMax(-1)},
		"$max":         {apply: m.minMax(1)},
		"$currentDate": {apply: m.currentDate, check: m.checkCurrentDate},
		"$rename":      {apply: m.rename},
		"$push":        {apply: m.push, check: m.checkPush},
		"$pushAll":     {apply: m.pushAll, check: m.checkList("$pushAll")},
		"$addToSet":    {apply: m.addToSet, check: m.checkAddToSet},
		"$pull":        {apply: m.pull, check: m.checkPull},
		"$pullAll":     {apply: m.pullAll, check: m.checkList("$pullAll")},
		"$pop":         {apply: m.pop, check: m.checkPop},
	}

	return m
}

// Modify implements [domain.Modifier].
func (m *Modifier) Modify(old domain.Document, update domain.Document, options ...domain.ModifyOption) (domain.Update, error) {
	opts := domain.ModifyOptions{Position: -1}
	for _, option := range options {
		option(&opts)
	}

	newDoc, err := m.apply(old, update, &opts)
	if err != nil {
		return domain.Update{}, err
	}
	return domain.Update{
		OldDoc:  old,
		NewDoc:  newDoc,
		Changed: !data.Identical(old, newDoc),
	}, nil
}

// Upsert implements [domain.Modifier]. The new document starts with the
// equality fields of the query, and gets the identifier returned by
// [Modifier.DeriveDocumentID] if the update does not set one.
func (m *Modifier) Upsert(query domain.Document, update domain.Document, options ...domain.ModifyOption) (domain.Update, error) {
	opts := domain.ModifyOptions{Position: -1}
	for _, option := range options {
		option(&opts)
	}
	opts.Upsert = true

	seed, err := m.documentFactory(nil)
	if err != nil {
		return domain.Update{}, err
	}
	if query != nil {
		if err := m.seed(seed, query); err != nil {
			return domain.Update{}, err
		}
	}

	newDoc, err := m.apply(seed, update, &opts)
	if err != nil {
		return domain.Update{}, err
	}

	if !newDoc.Has(data.IDField) {
		id, err := m.DeriveDocumentID(query)
		if err != nil {
			return domain.Update{}, err
		}
		newDoc.Set(data.IDField, id)
	}
	if newDoc, err = m.idFirst(newDoc); err != nil {
		return domain.Update{}, err
	}

	return domain.Update{NewDoc: newDoc, Changed: true}, nil
}

// DeriveDocumentID implements [domain.Modifier]. A literal identifier in the
// query is used as is, an $in expression gives its first value, and anything
// else gets a new identifier.
func (m *Modifier) DeriveDocumentID(query domain.Document) (any, error) {
	if query == nil || query.Get(data.IDField) == nil {
		return m.idGenerator.GenerateID()
	}
	switch t := query.Get(data.IDField).(type) {
	case domain.Document:
		if !m.isOperatorDoc(t) {
			return data.Clone(t), nil
		}
		if list, ok := t.Get("$in").([]any); ok && len(list) > 0 {
			return data.Clone(list[0]), nil
		}
	case bson.Regex, *regexp.Regexp:
	default:
		return t, nil
	}
	return m.idGenerator.GenerateID()
}

func (m *Modifier) apply(old domain.Document, update domain.Document, opts *domain.ModifyOptions) (domain.Document, error) {
	replace, err := m.classify(update)
	if err != nil {
		return nil, err
	}
	if replace {
		return m.replace(old, update)
	}

	filters, err := m.arrayFilters.Parse(opts.ArrayFilters, update)
	if err != nil {
		return nil, err
	}

	calls, err := m.compile(old, update, filters, opts)
	if err != nil {
		return nil, err
	}

	// array filters select elements of the document as it was before the
	// update, so every path is expanded ahead of the first change
	var steps []modStep
	for _, call := range calls {
		if call.name == "$setOnInsert" && !opts.Upsert {
			continue
		}
		for _, field := range call.fields {
			paths, err := filters.Expand(old, field.path)
			if err != nil {
				return nil, err
			}
			for _, path := range paths {
				addr, err := m.fieldNavigator.GetAddress(path)
				if err != nil {
					return nil, fmt.Errorf("%w: %w", domain.ErrMalformedUpdate, err)
				}
				steps = append(steps, modStep{mod: call.mod, addr: addr, arg: field.arg})
			}
		}
	}

	doc, err := m.copyDoc(old)
	if err != nil {
		return nil, err
	}

	for _, step := range steps {
		if err := step.mod.apply(doc, step.addr, step.arg); err != nil {
			return nil, err
		}
	}

	if old.Has(data.IDField) && (!doc.Has(data.IDField) || !data.Identical(old.ID(), doc.ID())) {
		return nil, domain.ErrImmutableField{Field: data.IDField}
	}

	return doc, nil
}

// classify reports whether update is a replacement document.
func (m *Modifier) classify(update domain.Document) (bool, error) {
	dollarFields, total := 0, 0
	for k := range update.Keys() {
		total++
		if strings.HasPrefix(k, "$") {
			dollarFields++
		}
		if dollarFields != 0 && dollarFields != total {
			return false, ErrMixedOperators
		}
	}
	return dollarFields == 0, nil
}

func (m *Modifier) replace(old domain.Document, repl domain.Document) (domain.Document, error) {
	newDoc, err := m.documentFactory(nil)
	if err != nil {
		return nil, err
	}

	if old.Has(data.IDField) {
		if repl.Has(data.IDField) {
			eq, err := m.comparer.Equal(old.ID(), repl.ID())
			if err != nil {
				return nil, err
			}
			if !eq {
				return nil, domain.ErrImmutableField{Field: data.IDField}
			}
		}
		newDoc.Set(data.IDField, data.Clone(old.ID()))
	}

	for k, v := range repl.Iter() {
		if k == data.IDField && old.Has(data.IDField) {
			continue
		}
		newDoc.Set(k, data.Clone(v))
	}
	return newDoc, nil
}

// compile validates the whole update before any field is changed.
func (m *Modifier) compile(old domain.Document, update domain.Document, filters domain.ArrayFilters, opts *domain.ModifyOptions) ([]modCall, error) {
	calls := make([]modCall, 0, update.Len())
	var targets [][]string

	hasID := old.Has(data.IDField)

	for name, arg := range update.Iter() {
		md, ok := m.mods[name]
		if !ok {
			return nil, ErrUnknownModifier{Name: name}
		}
		fields, ok := arg.(domain.Document)
		if !ok {
			return nil, domain.NewError(domain.ErrMalformedUpdate, domain.CodeFailedToParse, "Modifiers operate on fields but we found type %s instead. For example: {$mod: {<field>: ...}} not {%s: ...}", structure.TypeName(arg), name)
		}
		if fields.Len() == 0 {
			return nil, domain.NewError(domain.ErrMalformedUpdate, domain.CodeFailedToParse, "'%s' is empty. You must specify a field like so: {%s: {<field>: ...}}", name, name)
		}

		call := modCall{name: name, mod: md, fields: make([]modField, 0, fields.Len())}
		for key, value := range fields.Iter() {
			if strings.HasPrefix(key, "$") {
				return nil, domain.NewError(domain.ErrMalformedUpdate, domain.CodeDollarPrefixedFieldName, "Modified field name may not start with $: %s", key)
			}

			if name == "$rename" {
				dest, err := m.checkRename(key, value)
				if err != nil {
					return nil, err
				}
				if hasID && dest[0] == data.IDField {
					return nil, domain.ErrImmutableField{Field: value.(string)}
				}
				if targets, err = m.addTarget(targets, dest, value.(string)); err != nil {
					return nil, err
				}
			}

			path, err := m.positional(key, opts)
			if err != nil {
				return nil, err
			}
			addr, err := m.fieldNavigator.GetAddress(path)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrMalformedUpdate, err)
			}
			if err := filters.Validate(path); err != nil {
				return nil, err
			}
			if hasID && addr[0] == data.IDField && name != "$set" && name != "$setOnInsert" {
				return nil, domain.ErrImmutableField{Field: key}
			}
			if targets, err = m.addTarget(targets, addr, key); err != nil {
				return nil, err
			}
			if md.check != nil {
				if err := md.check(key, value); err != nil {
					return nil, err
				}
			}
			call.fields = append(call.fields, modField{path: path, arg: value})
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// addTarget fails if addr is a prefix of another updated path, or the other
// way around.
func (m *Modifier) addTarget(targets [][]string, addr []string, key string) ([][]string, error) {
	for _, t := range targets {
		n := min(len(t), len(addr))
		if slices.Equal(t[:n], addr[:n]) {
			return nil, domain.NewError(domain.ErrMalformedUpdate, domain.CodeConflictingUpdateOperators, "Updating the path '%s' would create a conflict at '%s'", key, strings.Join(addr[:n], "."))
		}
	}
	return append(targets, addr), nil
}

// positional replaces the $ segment of key with the matched position.
func (m *Modifier) positional(key string, opts *domain.ModifyOptions) (string, error) {
	addr := strings.Split(key, ".")
	found := false
	for n, segment := range addr {
		if segment != "$" {
			continue
		}
		if n == 0 {
			return "", domain.NewError(domain.ErrMalformedUpdate, domain.CodeBadValue, "Cannot have positional (i.e. '$') element in the first position in path '%s'", key)
		}
		if found {
			return "", domain.NewError(domain.ErrMalformedUpdate, domain.CodeBadValue, "Too many positional (i.e. '$') elements found in path '%s'", key)
		}
		if !opts.HasPosition {
			return "", ErrPositionalNotFound
		}
		found = true
		addr[n] = strconv.Itoa(opts.Position)
	}
	return strings.Join(addr, "."), nil
}

// seed copies the equality fields of a query into doc.
func (m *Modifier) seed(doc domain.Document, query domain.Document) error {
	for k, v := range query.Iter() {
		if strings.HasPrefix(k, "$") {
			if k != "$and" {
				continue
			}
			list, _ := v.([]any)
			for _, item := range list {
				if sub, ok := item.(domain.Document); ok {
					if err := m.seed(doc, sub); err != nil {
						return err
					}
				}
			}
			continue
		}

		value, ok := m.equalityValue(v)
		if !ok {
			continue
		}
		addr, err := m.fieldNavigator.GetAddress(k)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrMalformedQuery, err)
		}
		field, err := m.fieldNavigator.EnsureField(doc, addr...)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrMalformedQuery, err)
		}
		field.Set(data.Clone(value))
	}
	return nil
}

func (m *Modifier) equalityValue(v any) (any, bool) {
	switch t := v.(type) {
	case domain.Document:
		if !m.isOperatorDoc(t) {
			return t, true
		}
		if t.Len() == 1 && t.Has("$eq") {
			return t.Get("$eq"), true
		}
		return nil, false
	case bson.Regex, *regexp.Regexp:
		return nil, false
	default:
		return v, true
	}
}

func (m *Modifier) isOperatorDoc(doc domain.Document) bool {
	for k := range doc.Keys() {
		return strings.HasPrefix(k, "$")
	}
	return false
}

func (m *Modifier) copyDoc(doc domain.Document) (domain.Document, error) {
	res, err := m.documentFactory(nil)
	if err != nil {
		return nil, err
	}
	for k, v := range doc.Iter() {
		res.Set(k, data.Clone(v))
	}
	return res, nil
}

// idFirst returns doc with the identifier as its first field.
func (m *Modifier) idFirst(doc domain.Document) (domain.Document, error) {
	for k := range doc.Keys() {
		if k == data.IDField {
			return doc, nil
		}
		break
	}
	res, err := m.documentFactory(nil)
	if err != nil {
		return nil, err
	}
	res.Set(data.IDField, doc.ID())
	for k, v := range doc.Iter() {
		if k != data.IDField {
			res.Set(k, v)
		}
	}
	return res, nil
}
