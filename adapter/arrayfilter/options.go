package arrayfilter

import "github.com/vinicius-lino-figueiredo/gemongo/domain"

// WithDocumentFactory sets the factory used to convert raw filters into
// documents.
func WithDocumentFactory(d domain.DocumentFactory) Option {
	return func(p *Parser) {
		p.documentFactory = d
	}
}

// WithMatcher sets the matcher used to select array elements.
func WithMatcher(m domain.Matcher) Option {
	return func(p *Parser) {
		p.matcher = m
	}
}

// WithFieldNavigator sets the field navigator used to split paths and read
// the filtered arrays.
func WithFieldNavigator(f domain.FieldNavigator) Option {
	return func(p *Parser) {
		p.fieldNavigator = f
	}
}

// Option configures a Parser through the functional options pattern.
type Option func(*Parser)
