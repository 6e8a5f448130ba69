package op

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/muhlemmer/httpforwarded"
)

var (
	ErrInvalidIssuerPath        = errors.New("no fragments or query allowed for issuer")
	ErrInvalidIssuerNoIssuer    = errors.New("missing issuer")
	ErrInvalidIssuerURL         = errors.New("invalid url for issuer")
	ErrInvalidIssuerMissingHost = errors.New("host for issuer missing")
	ErrInvalidIssuerHTTPS       = errors.New("scheme for issuer must be `https`")
)

// IssuerFromRequest returns the issuer the request was sent to.
type IssuerFromRequest func(r *http.Request) string

// IssuerFunc validates its configuration and returns an IssuerFromRequest.
// Plain http issuers are only accepted if allowInsecure is set.
type IssuerFunc func(allowInsecure bool) (IssuerFromRequest, error)

// StaticIssuer always returns the configured issuer.
func StaticIssuer(issuer string) IssuerFunc {
	return func(allowInsecure bool) (IssuerFromRequest, error) {
		if err := ValidateIssuer(issuer, allowInsecure); err != nil {
			return nil, err
		}
		return func(_ *http.Request) string {
			return issuer
		}, nil
	}
}

// IssuerFromHost builds the issuer from the scheme and host of the request
// and the passed path.
func IssuerFromHost(path string) IssuerFunc {
	return IssuerFromForwardedOrHost(path, withoutForwardedHeaders())
}

type issuerConfig struct {
	headers    []string
	xForwarded bool
}

type IssuerFromOption func(c *issuerConfig)

// WithIssuerFromCustomHeaders sets headers in the format of the Forwarded header,
// which are checked before the standard Forwarded header.
func WithIssuerFromCustomHeaders(headers ...string) IssuerFromOption {
	return func(c *issuerConfig) {
		custom := make([]string, 0, len(headers)+len(c.headers))
		for _, h := range headers {
			custom = append(custom, http.CanonicalHeaderKey(h))
		}
		c.headers = append(custom, c.headers...)
	}
}

func withoutForwardedHeaders() IssuerFromOption {
	return func(c *issuerConfig) {
		c.headers = nil
		c.xForwarded = false
	}
}

// IssuerFromForwardedOrHost builds the issuer like [IssuerFromHost],
// but prefers host and proto of the Forwarded header (RFC 7239)
// as set by reverse proxies.
func IssuerFromForwardedOrHost(path string, opts ...IssuerFromOption) IssuerFunc {
	c := newIssuerConfig()
	for _, opt := range opts {
		opt(c)
	}
	return func(allowInsecure bool) (IssuerFromRequest, error) {
		issuerPath, err := url.Parse(path)
		if err != nil {
			return nil, ErrInvalidIssuerURL
		}
		if err := ValidateIssuerPath(issuerPath); err != nil {
			return nil, err
		}
		return func(r *http.Request) string {
			if path == "" {
				return c.baseURL(r)
			}
			return c.baseURL(r) + relativeEndpoint(path)
		}, nil
	}
}

// RequestEndpoint returns the URL the request was sent to,
// without query, as seen by the client.
func RequestEndpoint(r *http.Request) *url.URL {
	scheme, host := newIssuerConfig().schemeHost(r)
	return &url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   r.URL.Path,
	}
}

func newIssuerConfig() *issuerConfig {
	return &issuerConfig{
		headers:    []string{"Forwarded"},
		xForwarded: true,
	}
}

func (c *issuerConfig) baseURL(r *http.Request) string {
	scheme, host := c.schemeHost(r)
	return scheme + "://" + host
}

func (c *issuerConfig) schemeHost(r *http.Request) (scheme, host string) {
	scheme, host = requestSchemeHost(r, c.xForwarded)
	for _, header := range c.headers {
		forwarded, err := httpforwarded.Parse(r.Header.Values(header))
		if err != nil {
			continue
		}
		hosts := forwarded["host"]
		if len(hosts) == 0 {
			continue
		}
		host = hosts[0]
		if protos := forwarded["proto"]; len(protos) > 0 {
			scheme = protos[0]
		}
		break
	}
	return scheme, host
}

func requestSchemeHost(r *http.Request, xForwarded bool) (scheme, host string) {
	scheme = "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host = r.Host
	if !xForwarded {
		return scheme, host
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	if fwdHost := r.Header.Get("X-Forwarded-Host"); fwdHost != "" {
		host = fwdHost
	}
	return scheme, host
}

func ValidateIssuer(issuer string, allowInsecure bool) error {
	if issuer == "" {
		return ErrInvalidIssuerNoIssuer
	}
	u, err := url.Parse(issuer)
	if err != nil {
		return ErrInvalidIssuerURL
	}
	if u.Host == "" {
		return ErrInvalidIssuerMissingHost
	}
	if u.Scheme != "https" {
		if !devLocalAllowed(u, allowInsecure) {
			return ErrInvalidIssuerHTTPS
		}
	}
	return ValidateIssuerPath(u)
}

func ValidateIssuerPath(issuer *url.URL) error {
	if issuer.Fragment != "" || len(issuer.Query()) > 0 {
		return ErrInvalidIssuerPath
	}
	return nil
}

func devLocalAllowed(url *url.URL, allowInsecure bool) bool {
	if !allowInsecure {
		return false
	}
	return url.Scheme == "http"
}
