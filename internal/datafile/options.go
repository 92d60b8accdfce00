package datafile

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Defaults for Options
const (
	DefaultMaxBlobSize = 64 << 20
	DefaultCacheSize   = 64
)

// Options configures how blobs are read
type Options struct {
	MaxBlobSize int64 // Ceiling on a decompressed blob, 0 = unlimited
	CacheSize   int   // Decompressed blobs kept in memory, 0 = no cache
	Logger      logrus.FieldLogger
}

// Option is a functional option for configuring a Reader.
type Option func(*Options)

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return Options{
		MaxBlobSize: DefaultMaxBlobSize,
		CacheSize:   DefaultCacheSize,
		Logger:      l,
	}
}

// WithMaxBlobSize caps the decompressed size of a single blob. A map that
// inflates past it fails instead of exhausting memory.
func WithMaxBlobSize(n int64) Option {
	return func(o *Options) {
		o.MaxBlobSize = n
	}
}

// WithCacheSize sets how many decompressed blobs are cached.
func WithCacheSize(n int) Option {
	return func(o *Options) {
		o.CacheSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
