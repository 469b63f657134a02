package domain

// Update represents a pair of documents produced by an update. It is also
// used in index update operations.
type Update struct {
	OldDoc Document
	NewDoc Document
	// Changed reports whether NewDoc differs from OldDoc.
	Changed bool
}

// MatchResult is the outcome of [Matcher.MatchPosition].
type MatchResult struct {
	Matched bool
	// Position is the index of the array element that made the query
	// match, or -1 when no implicit array match was involved.
	Position int
}

// UpdateResult reports what a [Collection.Update] call did.
type UpdateResult struct {
	// Matched is the number of documents that matched the query.
	Matched int
	// Modified is the number of documents actually changed.
	Modified int
	// UpsertedID is the identifier of the inserted document, if an upsert
	// happened.
	UpsertedID any
}

// DocumentFactory represents a function that constructs [Document] instances
// from structured data types. If nil is provided, returns an empty document.
type DocumentFactory = func(any) (Document, error)

// IndexFactory represents a function that constructs [Index] instances with
// configurable options.
type IndexFactory = func(...IndexOption) (Index, error)
