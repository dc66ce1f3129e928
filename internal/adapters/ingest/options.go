package ingest

import "github.com/okian/riskset/pkg/logger"

// Option configures Load and LoadFile.
type Option func(*loader)

// WithLogger sets the logger used to report progress.
func WithLogger(l logger.Logger) Option {
	return func(ld *loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// WithComma sets the field delimiter. The default is ','.
func WithComma(r rune) Option {
	return func(ld *loader) {
		ld.comma = r
	}
}

// WithExpectedRows pre-sizes buffers for n records.
func WithExpectedRows(n int) Option {
	return func(ld *loader) {
		if n > 0 {
			ld.expected = n
		}
	}
}
