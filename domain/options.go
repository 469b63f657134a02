package domain

// WithModifyArrayFilters sets the raw array filters of an update. They are
// validated before any mutation happens.
func WithModifyArrayFilters(f []any) ModifyOption {
	return func(mo *ModifyOptions) {
		mo.ArrayFilters = f
	}
}

// WithModifyPosition sets the array index that replaces the positional $
// segment of update paths, as reported by [Matcher.MatchPosition].
func WithModifyPosition(p int) ModifyOption {
	return func(mo *ModifyOptions) {
		mo.Position = p
		mo.HasPosition = p >= 0
	}
}

// WithModifyUpsert marks the update as the insertion half of an upsert, which
// enables $setOnInsert.
func WithModifyUpsert(u bool) ModifyOption {
	return func(mo *ModifyOptions) {
		mo.Upsert = u
	}
}

// ModifyOption configures a single update through the functional options
// pattern.
type ModifyOption func(*ModifyOptions)

// ModifyOptions contains parameters for customizing a single update.
type ModifyOptions struct {
	// ArrayFilters are the raw filters for $[<identifier>] segments.
	ArrayFilters []any
	// Position replaces $ segments when HasPosition is true.
	Position    int
	HasPosition bool
	// Upsert enables $setOnInsert.
	Upsert bool
}

// WithUpdateMulti enables updating multiple documents that match the query.
func WithUpdateMulti(m bool) UpdateOption {
	return func(uo *UpdateOptions) {
		uo.Multi = m
	}
}

// WithUpsert enables inserting a document if no matches are found.
func WithUpsert(u bool) UpdateOption {
	return func(uo *UpdateOptions) {
		uo.Upsert = u
	}
}

// WithUpdateArrayFilters sets the array filters used by filtered positional
// paths.
func WithUpdateArrayFilters(f ...any) UpdateOption {
	return func(uo *UpdateOptions) {
		uo.ArrayFilters = f
	}
}

// UpdateOption configures update behavior through the functional options
// pattern.
type UpdateOption func(*UpdateOptions)

// UpdateOptions contains parameters for customizing update operations.
type UpdateOptions struct {
	// Multi enables updating multiple documents that match the query.
	Multi bool
	// Upsert enables inserting a document if no matches are found.
	Upsert bool
	// ArrayFilters are the raw filters for $[<identifier>] segments.
	ArrayFilters []any
}

// WithRemoveMulti enables removing multiple documents that match the query.
func WithRemoveMulti(m bool) RemoveOption {
	return func(ro *RemoveOptions) {
		ro.Multi = m
	}
}

// RemoveOption configures remove behavior through the functional options
// pattern.
type RemoveOption func(*RemoveOptions)

// RemoveOptions contains parameters for customizing remove operations.
type RemoveOptions struct {
	// Multi enables removing multiple documents that match the query.
	Multi bool
}

// WithIndexFieldName specifies the field name for the index.
func WithIndexFieldName(f string) IndexOption {
	return func(io *IndexOptions) {
		io.FieldName = f
	}
}

// WithIndexUnique creates a unique index that prevents duplicate values.
func WithIndexUnique(u bool) IndexOption {
	return func(io *IndexOptions) {
		io.Unique = u
	}
}

// WithIndexSparse creates a sparse index that excludes null/undefined values.
func WithIndexSparse(s bool) IndexOption {
	return func(io *IndexOptions) {
		io.Sparse = s
	}
}

// WithIndexComparer sets the comparer used to order index keys.
func WithIndexComparer(c Comparer) IndexOption {
	return func(io *IndexOptions) {
		io.Comparer = c
	}
}

// WithIndexFieldNavigator sets the field navigator used to read index keys.
func WithIndexFieldNavigator(f FieldNavigator) IndexOption {
	return func(io *IndexOptions) {
		io.FieldNavigator = f
	}
}

// IndexOption configures index creation through the functional options
// pattern.
type IndexOption func(*IndexOptions)

// IndexOptions contains parameters for customizing index creation.
type IndexOptions struct {
	// FieldName specifies the dotted field path to index.
	FieldName string
	// Unique prevents duplicate values in the indexed field.
	Unique bool
	// Sparse excludes documents with null/undefined values from the index.
	Sparse bool
	// Comparer orders index keys.
	Comparer Comparer
	// FieldNavigator reads index keys from documents.
	FieldNavigator FieldNavigator
}
