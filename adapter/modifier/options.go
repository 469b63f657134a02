package modifier

import "github.com/vinicius-lino-figueiredo/gemongo/domain"

// WithDocumentFactory sets the factory used to create new documents.
func WithDocumentFactory(f domain.DocumentFactory) Option {
	return func(m *Modifier) {
		m.documentFactory = f
	}
}

// WithComparer sets the comparer used by $min, $max, $addToSet, $pullAll and
// $push sorting.
func WithComparer(c domain.Comparer) Option {
	return func(m *Modifier) {
		m.comparer = c
	}
}

// WithFieldNavigator sets the field navigator used to read and create fields.
func WithFieldNavigator(f domain.FieldNavigator) Option {
	return func(m *Modifier) {
		m.fieldNavigator = f
	}
}

// WithMatcher sets the matcher used by $pull.
func WithMatcher(mt domain.Matcher) Option {
	return func(m *Modifier) {
		m.matcher = mt
	}
}

// WithArrayFiltersParser sets the parser of the array filters of an update.
func WithArrayFiltersParser(p domain.ArrayFiltersParser) Option {
	return func(m *Modifier) {
		m.arrayFilters = p
	}
}

// WithTimeGetter sets the clock used by $currentDate.
func WithTimeGetter(t domain.TimeGetter) Option {
	return func(m *Modifier) {
		m.timeGetter = t
	}
}

// WithIDGenerator sets the generator of upserted document identifiers.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(m *Modifier) {
		m.idGenerator = g
	}
}

// Option configures a Modifier through the functional options pattern.
type Option func(*Modifier)
