// Package domain contains domain-specific interfaces and option types for
// gemongo.
//
// This package defines the core interfaces that must be implemented by
// adapters, as well as functional options for configuring call-level behavior
// of updates, removals and indexes.
package domain

import (
	"context"
	"iter"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Decoder converts between different data representations.
type Decoder interface {
	// Decode converts from one data format to another.
	Decode(any, any) error
}

// Comparer provides ordering and comparison operations for different data types.
type Comparer interface {
	// Compare returns -1, 0, or 1 based on the comparison of two values.
	Compare(any, any) (int, error)
	// Comparable returns true if two values belong to the same type class
	// and neither of them is null or missing.
	Comparable(any, any) bool
	// Equal reports whether two values are structurally equal. Numbers of
	// different widths are equal when their numeric values are, and
	// document key order is ignored.
	Equal(any, any) (bool, error)
}

// TimeGetter provides current time for timestamping operations.
type TimeGetter interface {
	// GetTime returns the current time.
	GetTime() time.Time
	// GetTimestamp returns a timestamp strictly greater than any other
	// returned by the same TimeGetter.
	GetTimestamp() bson.Timestamp
}

// IDGenerator generates values for the identifier field of new documents.
type IDGenerator interface {
	// GenerateID returns a new unique identifier.
	GenerateID() (any, error)
}

// Getter represents a value that can be treated as undefined.
type Getter interface {
	// Get returns the value for the given address and a bool that indicates
	// whether the value counts as defined or not. If an address points to
	// an unset key in a document, or an out of bounds index in an array or
	// any address within a primitive value ([string], [bool], etc.), it
	// counts as undefined. If a value is explicitly [nil], it will not
	// count as undefined.
	Get() (value any, defined bool)
}

// GetSetter represents a value in a [Document]. It will be returned by
// [FieldNavigator] so things like identifying unset values and appending to
// nested arrays becomes easier. Default GetSetter IS NOT concurrency safe.
type GetSetter interface {
	// GetSetter implements [Getter].
	Getter
	// Set will set a new value for the address.
	Set(any)
	// Unset removes the given value from the parent item. Keys are removed
	// from documents, array positions are set to nil.
	Unset()
}

// FieldNavigator provides field access operations with dot notation support.
type FieldNavigator interface {
	// GetAddress splits a dotted path into its segments.
	GetAddress(field string) ([]string, error)
	// GetField resolves an address strictly. Missing values are returned
	// as an undefined [GetSetter].
	GetField(any, ...string) (GetSetter, error)
	// EnsureField resolves an address for writing. Intermediate documents
	// are created when the returned [GetSetter] is set.
	EnsureField(any, ...string) (GetSetter, error)
}

// Document represents a record handled by the engine. Keys are kept in
// insertion order. Document is read by one goroutine at a time and doesn't
// need to be concurrency safe.
type Document interface {
	// ID returns the document ID, if any, or nil.
	ID() any
	// D returns the subdocument for the given key, if any.
	D(string) Document
	// Get returns the value under the given key, or nil if unset.
	Get(string) any
	// Set sets the value under the given key. New keys are appended.
	Set(string, any)
	// Unset unsets the value under the given key.
	Unset(string)
	// Iter returns an ordered sequence of key-value pairs in the document.
	Iter() iter.Seq2[string, any]
	// Keys returns an ordered sequence of keys in the document.
	Keys() iter.Seq[string]
	// Values returns an ordered sequence of values in the document.
	Values() iter.Seq[any]
	// Has reports whether a value is set under the given key.
	Has(string) bool
	// Len returns the number of set fields in the document.
	Len() int
}

// Matcher evaluates whether values match query criteria.
type Matcher interface {
	// Match returns true if the document matches the query.
	Match(doc any, query any) (bool, error)
	// MatchPosition works like Match but also reports the index of the
	// array element that satisfied the query, if any.
	MatchPosition(doc any, query any) (MatchResult, error)
	// MatchValue evaluates a predicate against a single value, the way
	// $pull conditions and array filters do.
	MatchValue(value any, query any) (bool, error)
}

// Modifier applies update operations to documents.
type Modifier interface {
	// Modify applies an update document to a copy of old. The old document
	// is never changed.
	Modify(old Document, update Document, options ...ModifyOption) (Update, error)
	// Upsert builds a new document from the equality fields of the query
	// and applies the update to it in upsert mode.
	Upsert(query Document, update Document, options ...ModifyOption) (Update, error)
	// DeriveDocumentID returns the identifier an upserted document should
	// get from the given query.
	DeriveDocumentID(query Document) (any, error)
}

// ArrayFilters holds the validated array filters of a single update.
type ArrayFilters interface {
	// Expand replaces every $[] and $[<identifier>] segment in path with
	// the indexes of the matching elements found in doc.
	Expand(doc Document, path string) ([]string, error)
	// Validate checks the filter segments of path without reading any
	// document, so errors are found before an update starts.
	Validate(path string) error
	// Len returns the number of declared identifiers.
	Len() int
}

// ArrayFiltersParser validates raw array filters against an update document.
type ArrayFiltersParser interface {
	// Parse validates the filters and returns an [ArrayFilters]. The update
	// document is used to check that every declared identifier is used.
	Parse(filters []any, update Document) (ArrayFilters, error)
}

// Index provides fast document lookups based on field values.
type Index interface {
	// GetAll returns all documents in the index.
	GetAll() iter.Seq[Document]
	// GetMatching returns documents with the specified field values.
	GetMatching(value ...any) ([]Document, error)
	// Insert adds documents to the index.
	Insert(ctx context.Context, docs ...Document) error
	// Remove removes documents from the index.
	Remove(ctx context.Context, docs ...Document) error
	// Update modifies a document's index entry.
	Update(ctx context.Context, oldDoc Document, newDoc Document) error
	// UpdateMultipleDocs modifies multiple documents' index entries. Either
	// every pair is applied or none is.
	UpdateMultipleDocs(ctx context.Context, pairs ...Update) error
	// RevertMultipleUpdates undoes multiple document updates in the index.
	RevertMultipleUpdates(ctx context.Context, pairs ...Update) error
	// GetNumberOfKeys returns the number of unique keys in the index.
	GetNumberOfKeys() int
	// FieldName returns the field name this index covers.
	FieldName() string
	// Unique returns true if this is a unique index.
	Unique() bool
	// Sparse returns true if this index excludes null/undefined values.
	Sparse() bool
}

// Collection is an in-memory set of documents queried and updated through
// the engine. Operations are safe to use concurrently from multiple
// goroutines.
type Collection interface {
	// Insert adds one or more documents and returns the stored versions,
	// including generated identifiers.
	Insert(ctx context.Context, newDocs ...any) ([]Document, error)
	// Find returns copies of all documents matching the query.
	Find(ctx context.Context, query any) ([]Document, error)
	// FindInto decodes every document matching the query into target,
	// which must be a pointer to a slice.
	FindInto(ctx context.Context, query any, target any) error
	// Count returns the number of documents matching the given query.
	Count(ctx context.Context, query any) (int, error)
	// Update modifies documents that match the query.
	Update(ctx context.Context, query any, update any, options ...UpdateOption) (UpdateResult, error)
	// Remove deletes documents matching the query and returns how many
	// were removed.
	Remove(ctx context.Context, query any, options ...RemoveOption) (int, error)
	// EnsureIndex creates an index on a field. If the index already
	// exists, this is a no-op.
	EnsureIndex(ctx context.Context, options ...IndexOption) error
	// RemoveIndex deletes an existing index by field name.
	RemoveIndex(ctx context.Context, fieldName string) error
}
