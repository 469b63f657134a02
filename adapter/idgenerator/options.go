package idgenerator

import "io"

// WithReader sets the reader that will provide random bytes for UUIDs and
// strings.
func WithReader(r io.Reader) Option {
	return func(igo *IDGenerator) {
		igo.reader = r
	}
}

// WithFormat sets the format of generated identifiers.
func WithFormat(f Format) Option {
	return func(igo *IDGenerator) {
		igo.format = f
	}
}

// WithUUID makes the generator return version 4 UUIDs stored as binary values
// of subtype 4.
func WithUUID() Option {
	return WithFormat(UUID)
}

// WithStringLength sets the length of string identifiers.
func WithStringLength(l int) Option {
	return func(igo *IDGenerator) {
		igo.length = l
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*IDGenerator)
