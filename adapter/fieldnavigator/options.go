package fieldnavigator

import "github.com/vinicius-lino-figueiredo/gemongo/domain"

// Option configures a [FieldNavigator].
type Option func(*FieldNavigator)

// WithDocumentFactory sets the factory used to create intermediate documents
// when writing to a path that does not exist yet.
func WithDocumentFactory(f domain.DocumentFactory) Option {
	return func(fn *FieldNavigator) {
		fn.docFac = f
	}
}
