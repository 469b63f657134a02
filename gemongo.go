// Package gemongo provides the query matching and update semantics of a
// MongoDB server as an embeddable library.
//
// The basic usage starts with creating a new [Engine], which can be done by
// calling [NewEngine]. An Engine matches documents against query documents
// and applies update documents to copies of stored documents. It does not
// store anything by itself; [Engine.NewCollection] returns a small in-memory
// collection built on top of the same components.
package gemongo

import (
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/arrayfilter"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/collection"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/data"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/modifier"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
)

var (
	// ErrMalformedQuery is the kind of every error caused by an invalid
	// query document.
	ErrMalformedQuery = domain.ErrMalformedQuery
	// ErrMalformedUpdate is the kind of every error caused by an invalid
	// update document.
	ErrMalformedUpdate = domain.ErrMalformedUpdate
	// ErrArrayFilter is the kind of every error caused by invalid array
	// filters.
	ErrArrayFilter = domain.ErrArrayFilter
	// ErrTypeMismatch is the kind of every error caused by an operator
	// applied to a value of the wrong type.
	ErrTypeMismatch = domain.ErrTypeMismatch
	// ErrConstraintViolated is returned by [Collection] when an index
	// constraint blocks an insertion or an update.
	ErrConstraintViolated = domain.ErrConstraintViolated
)

// Error is a failure caused by caller input. Use [ErrorCode] to read its
// protocol error code.
type Error = domain.Error

// ErrImmutableField is returned when an update would change the _id field.
type ErrImmutableField = domain.ErrImmutableField

// ErrorCode returns the protocol error code carried by err, or 0.
func ErrorCode(err error) int {
	return domain.CodeOf(err)
}

// Document represents a record handled by the engine.
type Document = domain.Document

// Comparer orders values the way the server does.
type Comparer = domain.Comparer

// FieldNavigator resolves dotted paths inside documents.
type FieldNavigator = domain.FieldNavigator

// Matcher evaluates query documents.
type Matcher = domain.Matcher

// Modifier evaluates update documents.
type Modifier = domain.Modifier

// ArrayFiltersParser validates the arrayFilters of an update.
type ArrayFiltersParser = domain.ArrayFiltersParser

// IDGenerator generates identifiers for new documents.
type IDGenerator = domain.IDGenerator

// TimeGetter provides the current time for $currentDate.
type TimeGetter = domain.TimeGetter

// DocumentFactory builds documents from maps, structs and bson.D values.
type DocumentFactory = domain.DocumentFactory

// Collection is an in-memory set of documents.
type Collection = domain.Collection

// MatchResult is the result of [Engine.MatchPosition].
type MatchResult = domain.MatchResult

// Update is the result of [Engine.Modify] and [Engine.Upsert].
type Update = domain.Update

// UpdateResult is the result of [Collection.Update].
type UpdateResult = domain.UpdateResult

// ModifyOption sets call-level behavior of [Engine.Modify].
type ModifyOption = domain.ModifyOption

// WithArrayFilters sets the array filters of an update.
func WithArrayFilters(f ...any) ModifyOption {
	return domain.WithModifyArrayFilters(f)
}

// WithPosition sets the array index the positional operator $ resolves to,
// as reported by [Engine.MatchPosition].
func WithPosition(p int) ModifyOption {
	return domain.WithModifyPosition(p)
}

// UpdateOption sets call-level behavior of [Collection.Update].
type UpdateOption = domain.UpdateOption

// WithUpdateMulti allows updating more than one document.
func WithUpdateMulti(m bool) UpdateOption {
	return domain.WithUpdateMulti(m)
}

// WithUpsert inserts a new document when nothing matches the query.
func WithUpsert(u bool) UpdateOption {
	return domain.WithUpsert(u)
}

// WithUpdateArrayFilters sets the array filters of a collection update.
func WithUpdateArrayFilters(f ...any) UpdateOption {
	return domain.WithUpdateArrayFilters(f...)
}

// RemoveOption sets call-level behavior of [Collection.Remove].
type RemoveOption = domain.RemoveOption

// WithRemoveMulti allows removing more than one document.
func WithRemoveMulti(m bool) RemoveOption {
	return domain.WithRemoveMulti(m)
}

// IndexOption configures [Collection.EnsureIndex].
type IndexOption = domain.IndexOption

// WithIndexFieldName sets the indexed field. Dot notation is accepted.
func WithIndexFieldName(f string) IndexOption {
	return domain.WithIndexFieldName(f)
}

// WithIndexUnique rejects documents with a duplicate key.
func WithIndexUnique(u bool) IndexOption {
	return domain.WithIndexUnique(u)
}

// WithIndexSparse skips documents missing the indexed field.
func WithIndexSparse(s bool) IndexOption {
	return domain.WithIndexSparse(s)
}

// ParseDocument parses a relaxed or canonical extended JSON document.
func ParseDocument(json []byte) (Document, error) {
	return data.ParseJSON(json)
}

// NewDocument converts a map, a struct or a bson.D into a [Document].
func NewDocument(v any) (Document, error) {
	return data.NewDocument(v)
}

// Engine bundles the components that evaluate queries and updates. It holds
// no documents, and is safe to use concurrently as long as its components
// are.
type Engine struct {
	documentFactory    domain.DocumentFactory
	comparer           domain.Comparer
	fieldNavigator     domain.FieldNavigator
	matcher            domain.Matcher
	modifier           domain.Modifier
	arrayFiltersParser domain.ArrayFiltersParser
	idGenerator        domain.IDGenerator
	timeGetter         domain.TimeGetter
}

// NewEngine creates a new Engine. Components not set through options use
// the default implementations:
//
// - [WithDocumentFactory]: builds documents from caller values.
//
// - [WithComparer]: orders and compares values.
//
// - [WithFieldNavigator]: resolves dotted paths.
//
// - [WithMatcher]: evaluates queries.
//
// - [WithModifier]: evaluates updates.
//
// - [WithArrayFiltersParser]: validates array filters.
//
// - [WithIDGenerator]: generates identifiers for upserted documents.
//
// - [WithTimeGetter]: provides the time used by $currentDate.
func NewEngine(options ...Option) *Engine {
	e := &Engine{
		documentFactory: data.NewDocument,
		comparer:        comparer.NewComparer(),
		idGenerator:     idgenerator.NewIDGenerator(),
		timeGetter:      timegetter.NewTimeGetter(),
	}
	for _, option := range options {
		option(e)
	}

	if e.fieldNavigator == nil {
		e.fieldNavigator = fieldnavigator.NewFieldNavigator(
			fieldnavigator.WithDocumentFactory(e.documentFactory),
		)
	}
	if e.matcher == nil {
		e.matcher = matcher.NewMatcher(
			matcher.WithDocumentFactory(e.documentFactory),
			matcher.WithComparer(e.comparer),
			matcher.WithFieldNavigator(e.fieldNavigator),
		)
	}
	if e.arrayFiltersParser == nil {
		e.arrayFiltersParser = arrayfilter.NewParser(
			arrayfilter.WithDocumentFactory(e.documentFactory),
			arrayfilter.WithMatcher(e.matcher),
			arrayfilter.WithFieldNavigator(e.fieldNavigator),
		)
	}
	if e.modifier == nil {
		e.modifier = modifier.NewModifier(
			modifier.WithDocumentFactory(e.documentFactory),
			modifier.WithComparer(e.comparer),
			modifier.WithFieldNavigator(e.fieldNavigator),
			modifier.WithMatcher(e.matcher),
			modifier.WithArrayFiltersParser(e.arrayFiltersParser),
			modifier.WithTimeGetter(e.timeGetter),
			modifier.WithIDGenerator(e.idGenerator),
		)
	}
	return e
}

// Match reports whether doc matches query. Both can be anything accepted by
// [NewDocument].
func (e *Engine) Match(doc any, query any) (bool, error) {
	return e.matcher.Match(doc, query)
}

// MatchPosition works like [Engine.Match], and also reports the index of the
// array element that satisfied the query, or -1.
func (e *Engine) MatchPosition(doc any, query any) (MatchResult, error) {
	return e.matcher.MatchPosition(doc, query)
}

// MatchValue evaluates a predicate against a single value, as $pull does.
func (e *Engine) MatchValue(value any, query any) (bool, error) {
	return e.matcher.MatchValue(value, query)
}

// Compare returns -1, 0 or 1 comparing a and b in server order.
func (e *Engine) Compare(a, b any) (int, error) {
	return e.comparer.Compare(a, b)
}

// Equal reports whether a and b are structurally equal.
func (e *Engine) Equal(a, b any) (bool, error) {
	return e.comparer.Equal(a, b)
}

// Modify applies update to a copy of doc. The given doc is never changed.
func (e *Engine) Modify(doc any, update any, options ...ModifyOption) (Update, error) {
	old, err := e.documentFactory(doc)
	if err != nil {
		return Update{}, err
	}
	upd, err := e.updateDocument(update)
	if err != nil {
		return Update{}, err
	}
	return e.modifier.Modify(old, upd, options...)
}

// Upsert builds the document an update with upsert would insert when no
// document matches query.
func (e *Engine) Upsert(query any, update any, options ...ModifyOption) (Update, error) {
	q, err := e.documentFactory(query)
	if err != nil {
		return Update{}, err
	}
	upd, err := e.updateDocument(update)
	if err != nil {
		return Update{}, err
	}
	return e.modifier.Upsert(q, upd, options...)
}

func (e *Engine) updateDocument(update any) (Document, error) {
	upd, err := e.documentFactory(update)
	if err != nil {
		return nil, &domain.Error{
			Kind: domain.ErrMalformedUpdate,
			Code: domain.CodeFailedToParse,
			Msg:  err.Error(),
		}
	}
	return upd, nil
}

// NewCollection creates an in-memory [Collection] sharing the components of
// this Engine.
func (e *Engine) NewCollection(options ...collection.Option) (Collection, error) {
	base := []collection.Option{
		collection.WithDocumentFactory(e.documentFactory),
		collection.WithComparer(e.comparer),
		collection.WithFieldNavigator(e.fieldNavigator),
		collection.WithMatcher(e.matcher),
		collection.WithModifier(e.modifier),
		collection.WithIDGenerator(e.idGenerator),
	}
	return collection.NewCollection(append(base, options...)...)
}

// Option configures an [Engine].
type Option func(*Engine)

// WithDocumentFactory sets the function used to build documents.
func WithDocumentFactory(d DocumentFactory) Option {
	return func(e *Engine) {
		if d != nil {
			e.documentFactory = d
		}
	}
}

// WithComparer sets the comparer.
func WithComparer(c Comparer) Option {
	return func(e *Engine) {
		if c != nil {
			e.comparer = c
		}
	}
}

// WithFieldNavigator sets the field navigator.
func WithFieldNavigator(f FieldNavigator) Option {
	return func(e *Engine) {
		e.fieldNavigator = f
	}
}

// WithMatcher sets the matcher.
func WithMatcher(m Matcher) Option {
	return func(e *Engine) {
		e.matcher = m
	}
}

// WithModifier sets the modifier.
func WithModifier(m Modifier) Option {
	return func(e *Engine) {
		e.modifier = m
	}
}

// WithArrayFiltersParser sets the array filters parser.
func WithArrayFiltersParser(p ArrayFiltersParser) Option {
	return func(e *Engine) {
		e.arrayFiltersParser = p
	}
}

// WithIDGenerator sets the generator of upserted document identifiers.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.idGenerator = g
		}
	}
}

// WithTimeGetter sets the clock used by $currentDate.
func WithTimeGetter(t TimeGetter) Option {
	return func(e *Engine) {
		if t != nil {
			e.timeGetter = t
		}
	}
}
