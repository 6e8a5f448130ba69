package op

import (
	"errors"
	"strings"
)

var ErrNoEndpointPath = errors.New("endpoint has no path")

// Endpoint is served on its path relative to the issuer.
// An optional absolute URL is announced in discovery instead,
// for endpoints served behind a different host.
type Endpoint struct {
	path string
	url  string
}

func NewEndpoint(path string) *Endpoint {
	return &Endpoint{path: path}
}

func NewEndpointWithURL(path, url string) *Endpoint {
	return &Endpoint{path: path, url: url}
}

func (e *Endpoint) Relative() string {
	if e == nil {
		return ""
	}
	return relativeEndpoint(e.path)
}

func (e *Endpoint) Absolute(host string) string {
	if e == nil {
		return ""
	}
	if e.url != "" {
		return e.url
	}
	return absoluteEndpoint(host, e.path)
}

func (e *Endpoint) Validate() error {
	if e == nil || strings.Trim(e.path, "/") == "" {
		return ErrNoEndpointPath
	}
	return nil
}

func absoluteEndpoint(host, endpoint string) string {
	return strings.TrimSuffix(host, "/") + relativeEndpoint(endpoint)
}

func relativeEndpoint(endpoint string) string {
	return "/" + strings.TrimPrefix(endpoint, "/")
}
