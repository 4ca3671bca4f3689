package requestcoord

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type options struct {
	cache     bool
	cacheTTL  time.Duration
	skipDedup bool
	params    url.Values
	header    http.Header

	err error
}

type Option func(*options)

// WithoutCache neither reads nor writes the cache
func WithoutCache() Option {
	return func(o *options) {
		o.cache = false
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl <= 0 {
			o.err = fmt.Errorf("%w: cache ttl must be positive, got %s", ErrInvalidRequest, ttl)
			return
		}
		o.cacheTTL = ttl
	}
}

// WithSkipDeduplication issues a new request even if an identical one is in flight
func WithSkipDeduplication() Option {
	return func(o *options) {
		o.skipDedup = true
	}
}

func WithParams(params url.Values) Option {
	return func(o *options) {
		o.params = params
	}
}

func WithHeader(key, value string) Option {
	return func(o *options) {
		if o.header == nil {
			o.header = http.Header{}
		}
		o.header.Add(key, value)
	}
}

func buildOptions(defaultTTL time.Duration, opts []Option) (options, error) {
	o := options{
		cache:    true,
		cacheTTL: defaultTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return options{}, o.err
	}
	return o, nil
}
