// Package options carries cross-provider construction options.
package options

import "net/http"

type ModelOptions struct {
	httpClient *http.Client
}

func (o *ModelOptions) HTTPClient() *http.Client {
	return o.httpClient
}

type Opt func(*ModelOptions)

// WithHTTPClient overrides the HTTP client used to reach the provider,
// e.g. to inject a recording transport in tests.
func WithHTTPClient(client *http.Client) Opt {
	return func(o *ModelOptions) {
		o.httpClient = client
	}
}

func Apply(opts ...Opt) ModelOptions {
	var o ModelOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
