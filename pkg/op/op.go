package op

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/exp/slog"
	"golang.org/x/text/language"

	"github.com/zitadel/oidc-core/internal/otel"
	httphelper "github.com/zitadel/oidc-core/pkg/http"
	"github.com/zitadel/oidc-core/pkg/oidc"
)

const (
	healthEndpoint               = "/healthz"
	defaultAuthorizationEndpoint = "authorize"
	defaultTokenEndpoint         = "oauth/token"
	defaultUserinfoEndpoint      = "userinfo"
	defaultKeysEndpoint          = "keys"
)

var (
	tracer = otel.Tracer("github.com/zitadel/oidc-core/pkg/op")

	DefaultEndpoints = &Endpoints{
		Authorization: NewEndpoint(defaultAuthorizationEndpoint),
		Token:         NewEndpoint(defaultTokenEndpoint),
		Userinfo:      NewEndpoint(defaultUserinfoEndpoint),
		JwksURI:       NewEndpoint(defaultKeysEndpoint),
	}

	defaultCORSOptions = cors.Options{
		AllowCredentials: true,
		AllowedHeaders: []string{
			"Origin",
			"Accept",
			"Accept-Language",
			"Authorization",
			"Content-Type",
			"X-Requested-With",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
		},
		ExposedHeaders: []string{
			"Location",
			"Content-Length",
		},
		AllowOriginFunc: func(_ string) bool {
			return true
		},
	}
)

// Endpoints of the provider. Only the authorization endpoint is served,
// the others are announced in discovery.
type Endpoints struct {
	Authorization *Endpoint
	Token         *Endpoint
	Userinfo      *Endpoint
	JwksURI       *Endpoint
}

// Config holds the capabilities of the provider,
// which are announced in discovery and enforced on authentication requests.
type Config struct {
	SupportedScopes          []string
	SupportedClaims          []string
	ResponseTypes            []string
	ResponseModes            []oidc.ResponseMode
	GrantTypes               []oidc.GrantType
	CodeChallengeMethods     []oidc.CodeChallengeMethod
	ACRValues                []string
	IDTokenSigningAlgs       []string
	SupportedUILocales       []language.Tag
	SupportedClaimsLocales   []language.Tag
	ClaimsParameterSupported bool
	RequestObjectSupported   bool
	RequestURISupported      bool
}

// DefaultConfig supports the code flow with PKCE and all
// response modes.
func DefaultConfig() *Config {
	return &Config{
		SupportedScopes: DefaultSupportedScopes,
		ResponseTypes:   []string{"code", "id_token", "id_token token", "code id_token"},
		ResponseModes: []oidc.ResponseMode{
			oidc.ResponseModeQuery,
			oidc.ResponseModeFragment,
			oidc.ResponseModeFormPost,
		},
		GrantTypes: []oidc.GrantType{
			oidc.GrantTypeCode,
			oidc.GrantTypeRefreshToken,
		},
		CodeChallengeMethods: []oidc.CodeChallengeMethod{
			oidc.CodeChallengeMethodS256,
		},
		IDTokenSigningAlgs:       []string{"RS256"},
		ClaimsParameterSupported: true,
	}
}

// Provider serves the authorization endpoint of an OpenID Provider.
// It parses and validates authentication requests and hands valid
// ones to its AuthRequestHandler. Invalid requests are answered
// in the response mode of the request, if the redirect URI is registered
// for the client (see [WithClientRedirectURIs]). Otherwise the error is
// written as JSON.
type Provider struct {
	http.Handler

	issuer             IssuerFromRequest
	insecure           bool
	config             *Config
	endpoints          *Endpoints
	logger             *slog.Logger
	corsOptions        *cors.Options
	interceptors       []func(http.Handler) http.Handler
	authRequestHandler AuthRequestHandler
	clientRedirectURIs ClientRedirectURIs
	parseOpts          []oidc.ParseOption
}

// NewProvider creates a provider for a static issuer.
func NewProvider(issuer string, config *Config, opts ...Option) (*Provider, error) {
	return newProvider(StaticIssuer(issuer), config, opts...)
}

// NewForwardedProvider creates a provider which takes the issuer from the
// request, see [IssuerFromForwardedOrHost].
func NewForwardedProvider(path string, config *Config, opts ...Option) (*Provider, error) {
	return newProvider(IssuerFromForwardedOrHost(path), config, opts...)
}

func newProvider(issuer IssuerFunc, config *Config, opts ...Option) (_ *Provider, err error) {
	o := &Provider{
		config:             config,
		endpoints:          DefaultEndpoints,
		logger:             slog.Default(),
		corsOptions:        &defaultCORSOptions,
		authRequestHandler: DefaultAuthRequestHandler,
	}
	if o.config == nil {
		o.config = DefaultConfig()
	}
	for _, optFunc := range opts {
		if err := optFunc(o); err != nil {
			return nil, err
		}
	}
	o.issuer, err = issuer(o.insecure)
	if err != nil {
		return nil, err
	}
	if err = o.endpoints.Authorization.Validate(); err != nil {
		return nil, err
	}
	o.logger = newLogger(o.logger)
	o.Handler = o.createRouter()
	return o, nil
}

func (o *Provider) createRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(o.LogMiddleware())
	if o.corsOptions != nil {
		router.Use(cors.New(*o.corsOptions).Handler)
	}
	router.Use(NewIssuerInterceptor(o.issuer).Handler)
	router.Use(o.interceptors...)
	router.HandleFunc(healthEndpoint, healthHandler)
	router.Get(oidc.DiscoveryEndpoint, o.discoveryHandler)
	router.Get(o.endpoints.Authorization.Relative(), o.authorizeHandler)
	router.Post(o.endpoints.Authorization.Relative(), o.authorizeHandler)
	return router
}

// Issuer returns the issuer for the request.
func (o *Provider) Issuer(r *http.Request) string {
	return o.issuer(r)
}

func (o *Provider) Logger() *slog.Logger {
	return o.logger
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	httphelper.MarshalJSON(w, map[string]string{"status": "ok"})
}

type Option func(o *Provider) error

// WithAllowInsecure allows the usage of an issuer with http scheme.
// Should only be used for development and tests.
func WithAllowInsecure() Option {
	return func(o *Provider) error {
		o.insecure = true
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Provider) error {
		o.logger = logger
		return nil
	}
}

// WithCORSOptions overwrites the default CORS configuration,
// nil disables the CORS handler.
func WithCORSOptions(opts *cors.Options) Option {
	return func(o *Provider) error {
		o.corsOptions = opts
		return nil
	}
}

func WithHttpInterceptors(interceptors ...func(http.Handler) http.Handler) Option {
	return func(o *Provider) error {
		o.interceptors = append(o.interceptors, interceptors...)
		return nil
	}
}

func WithAuthRequestHandler(handler AuthRequestHandler) Option {
	return func(o *Provider) error {
		o.authRequestHandler = handler
		return nil
	}
}

// WithClientRedirectURIs sets the lookup of the registered redirect URIs.
// Errors are only redirected to registered redirect URIs, and a valid
// request with an unregistered redirect URI is rejected.
// Without the lookup, no error is redirected and valid requests are
// passed to the AuthRequestHandler, which then must verify the client.
func WithClientRedirectURIs(lookup ClientRedirectURIs) Option {
	return func(o *Provider) error {
		o.clientRedirectURIs = lookup
		return nil
	}
}

// WithParseOptions sets options for parsing authentication requests.
func WithParseOptions(opts ...oidc.ParseOption) Option {
	return func(o *Provider) error {
		o.parseOpts = opts
		return nil
	}
}

func WithCustomEndpoints(endpoints *Endpoints) Option {
	return func(o *Provider) error {
		if err := endpoints.Authorization.Validate(); err != nil {
			return err
		}
		o.endpoints = endpoints
		return nil
	}
}
