package collection

import "github.com/vinicius-lino-figueiredo/gemongo/domain"

// WithIndexFactory sets the factory function for creating index instances.
func WithIndexFactory(i domain.IndexFactory) Option {
	return func(c *Collection) {
		c.indexFactory = i
	}
}

// WithDocumentFactory sets the factory used to convert inserted values,
// queries and updates into documents.
func WithDocumentFactory(d domain.DocumentFactory) Option {
	return func(c *Collection) {
		c.documentFactory = d
	}
}

// WithComparer sets the comparer used to order index keys.
func WithComparer(cmp domain.Comparer) Option {
	return func(c *Collection) {
		c.comparer = cmp
	}
}

// WithFieldNavigator sets the field navigator used by indexes.
func WithFieldNavigator(f domain.FieldNavigator) Option {
	return func(c *Collection) {
		c.fieldNavigator = f
	}
}

// WithMatcher sets the matcher used to filter candidate documents.
func WithMatcher(m domain.Matcher) Option {
	return func(c *Collection) {
		c.matcher = m
	}
}

// WithModifier sets the modifier used by updates and upserts.
func WithModifier(m domain.Modifier) Option {
	return func(c *Collection) {
		c.modifier = m
	}
}

// WithDecoder sets the decoder used by FindInto.
func WithDecoder(d domain.Decoder) Option {
	return func(c *Collection) {
		c.decoder = d
	}
}

// WithIDGenerator sets the generator of identifiers for inserted documents
// that have none.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(c *Collection) {
		c.idGenerator = g
	}
}

// Option configures a Collection through the functional options pattern.
type Option func(*Collection)
