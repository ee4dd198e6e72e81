package client

import "net/http"

// defaultHeaderTransport adds the configured headers to requests that do not
// set them already.
type defaultHeaderTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *defaultHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if len(t.headers) == 0 {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return base.RoundTrip(r)
}
