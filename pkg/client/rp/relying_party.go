package rp

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/zitadel/logging"
	"golang.org/x/exp/slog"
	"golang.org/x/oauth2"

	"github.com/zitadel/oidc-core/pkg/client"
	httphelper "github.com/zitadel/oidc-core/pkg/http"
	"github.com/zitadel/oidc-core/pkg/oidc"
)

const (
	idTokenKey = "id_token"
	stateParam = "state"
	nonceParam = "nonce"
	pkceCode   = "pkce"
)

var (
	// ErrMissingIDToken is returned when an id_token was expected,
	// but not received in the token response.
	ErrMissingIDToken = errors.New("id_token missing")

	ErrMissingCookieHandler = errors.New("relying party has no cookie handler")
)

// RelyingParty declares the minimal interface for oidc clients
type RelyingParty interface {
	// OAuthConfig returns the oauth2 Config
	OAuthConfig() *oauth2.Config

	// Issuer returns the issuer of the oidc config
	Issuer() string

	// IsPKCE returns if authorization is done using `Authorization Code Flow with Proof Key for Code Exchange (PKCE)`
	IsPKCE() bool

	// CookieHandler returns a http cookie handler used for various state transfer cookies
	CookieHandler() *httphelper.CookieHandler

	// HttpClient returns a http client used for calls to the openid provider, e.g. calling token endpoint
	HttpClient() *http.Client

	// TokenEndpoint returns the token endpoint of the provider
	TokenEndpoint() string

	// IDTokenVerifier returns the verifier used for oidc id_token verification
	IDTokenVerifier() *IDTokenVerifier

	// ErrorHandler returns the handler used for callback errors
	ErrorHandler() func(http.ResponseWriter, *http.Request, string, string, string)

	// UnauthorizedHandler returns the handler used for unauthorized errors
	UnauthorizedHandler() func(w http.ResponseWriter, r *http.Request, desc string, state string)

	// Logger from the context, or a fallback if set.
	Logger(context.Context) (logger *slog.Logger, ok bool)
}

type ErrorHandler func(w http.ResponseWriter, r *http.Request, errorType string, errorDesc string, state string)
type UnauthorizedHandler func(w http.ResponseWriter, r *http.Request, desc string, state string)

var DefaultErrorHandler ErrorHandler = func(w http.ResponseWriter, r *http.Request, errorType string, errorDesc string, state string) {
	http.Error(w, errorType+": "+errorDesc, http.StatusInternalServerError)
}
var DefaultUnauthorizedHandler UnauthorizedHandler = func(w http.ResponseWriter, r *http.Request, desc string, state string) {
	http.Error(w, desc, http.StatusUnauthorized)
}

type relyingParty struct {
	issuer                      string
	discoveryEndpoint           string
	endpoints                   Endpoints
	oauthConfig                 *oauth2.Config
	pkce                        bool
	useSigningAlgsFromDiscovery bool

	httpClient    *http.Client
	cookieHandler *httphelper.CookieHandler

	errorHandler        func(http.ResponseWriter, *http.Request, string, string, string)
	unauthorizedHandler func(http.ResponseWriter, *http.Request, string, string)
	idTokenVerifier     *IDTokenVerifier
	verifierOpts        []VerifierOption
	logger              *slog.Logger
}

func (rp *relyingParty) OAuthConfig() *oauth2.Config {
	return rp.oauthConfig
}

func (rp *relyingParty) Issuer() string {
	return rp.issuer
}

func (rp *relyingParty) IsPKCE() bool {
	return rp.pkce
}

func (rp *relyingParty) CookieHandler() *httphelper.CookieHandler {
	return rp.cookieHandler
}

func (rp *relyingParty) HttpClient() *http.Client {
	return rp.httpClient
}

func (rp *relyingParty) TokenEndpoint() string {
	return rp.oauthConfig.Endpoint.TokenURL
}

func (rp *relyingParty) IDTokenVerifier() *IDTokenVerifier {
	if rp.idTokenVerifier == nil {
		// the nonce of the current flow is taken from the context, see CodeExchangeHandler
		opts := append([]VerifierOption{WithNonce(NonceFromContext)}, rp.verifierOpts...)
		rp.idTokenVerifier = NewIDTokenVerifier(rp.issuer, rp.oauthConfig.ClientID, NewRemoteKeySet(rp.httpClient, rp.endpoints.JWKsURL), opts...)
	}
	return rp.idTokenVerifier
}

func (rp *relyingParty) ErrorHandler() func(http.ResponseWriter, *http.Request, string, string, string) {
	if rp.errorHandler == nil {
		rp.errorHandler = DefaultErrorHandler
	}
	return rp.errorHandler
}

func (rp *relyingParty) UnauthorizedHandler() func(http.ResponseWriter, *http.Request, string, string) {
	if rp.unauthorizedHandler == nil {
		rp.unauthorizedHandler = DefaultUnauthorizedHandler
	}
	return rp.unauthorizedHandler
}

func (rp *relyingParty) Logger(ctx context.Context) (logger *slog.Logger, ok bool) {
	logger, ok = logging.FromContext(ctx)
	if ok {
		return logger, ok
	}
	return rp.logger, rp.logger != nil
}

// NewRelyingPartyOIDC creates an (OIDC) RelyingParty with the given
// issuer, clientID, clientSecret, redirectURI, scopes and possible configOptions
// it will run discovery on the provided issuer and use the found endpoints
func NewRelyingPartyOIDC(ctx context.Context, issuer, clientID, clientSecret, redirectURI string, scopes []string, options ...Option) (RelyingParty, error) {
	rp := &relyingParty{
		issuer: issuer,
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
		},
		httpClient: httphelper.DefaultHTTPClient,
	}

	for _, optFunc := range options {
		if err := optFunc(rp); err != nil {
			return nil, err
		}
	}
	ctx = logCtxWithRPData(ctx, rp, "function", "NewRelyingPartyOIDC")
	discoveryConfiguration, err := client.Discover(ctx, rp.issuer, rp.httpClient, rp.discoveryEndpoint)
	if err != nil {
		return nil, err
	}
	if rp.useSigningAlgsFromDiscovery {
		rp.verifierOpts = append(rp.verifierOpts, WithSupportedSigningAlgorithms(discoveryConfiguration.IDTokenSigningAlgValuesSupported...))
	}
	rp.endpoints = GetEndpoints(discoveryConfiguration)
	rp.oauthConfig.Endpoint = rp.endpoints.Endpoint

	// avoid races by calling these early
	_ = rp.IDTokenVerifier()     // sets idTokenVerifier
	_ = rp.ErrorHandler()        // sets errorHandler
	_ = rp.UnauthorizedHandler() // sets unauthorizedHandler

	return rp, nil
}

// Option is the type for providing dynamic options to the relyingParty
type Option func(*relyingParty) error

func WithCustomDiscoveryUrl(url string) Option {
	return func(rp *relyingParty) error {
		rp.discoveryEndpoint = url
		return nil
	}
}

// WithCookieHandler set a `CookieHandler` for securing the various redirects
func WithCookieHandler(cookieHandler *httphelper.CookieHandler) Option {
	return func(rp *relyingParty) error {
		rp.cookieHandler = cookieHandler
		return nil
	}
}

// WithPKCE sets the RP to use PKCE (oauth2 code challenge)
// it also sets a `CookieHandler` for securing the various redirects
// and exchanging the code challenge
func WithPKCE(cookieHandler *httphelper.CookieHandler) Option {
	return func(rp *relyingParty) error {
		rp.pkce = true
		rp.cookieHandler = cookieHandler
		return nil
	}
}

// WithHTTPClient provides the ability to set an http client to be used for the relaying party and verifier
func WithHTTPClient(client *http.Client) Option {
	return func(rp *relyingParty) error {
		rp.httpClient = client
		return nil
	}
}

func WithErrorHandler(errorHandler ErrorHandler) Option {
	return func(rp *relyingParty) error {
		rp.errorHandler = errorHandler
		return nil
	}
}

func WithUnauthorizedHandler(unauthorizedHandler UnauthorizedHandler) Option {
	return func(rp *relyingParty) error {
		rp.unauthorizedHandler = unauthorizedHandler
		return nil
	}
}

func WithVerifierOpts(opts ...VerifierOption) Option {
	return func(rp *relyingParty) error {
		rp.verifierOpts = opts
		return nil
	}
}

// WithLogger sets a logger that is used
// in case the request context does not contain a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(rp *relyingParty) error {
		rp.logger = logger
		return nil
	}
}

// WithSigningAlgsFromDiscovery appends the [WithSupportedSigningAlgorithms] option to the Verifier Options.
// The algorithms returned in the `id_token_signing_alg_values_supported` from the discovery response will be set.
func WithSigningAlgsFromDiscovery() Option {
	return func(rp *relyingParty) error {
		rp.useSigningAlgsFromDiscovery = true
		return nil
	}
}

type Endpoints struct {
	oauth2.Endpoint
	UserinfoURL string
	JWKsURL     string
}

func GetEndpoints(discoveryConfig *oidc.DiscoveryConfiguration) Endpoints {
	return Endpoints{
		Endpoint: oauth2.Endpoint{
			AuthURL:  discoveryConfig.AuthorizationEndpoint,
			TokenURL: discoveryConfig.TokenEndpoint,
		},
		UserinfoURL: discoveryConfig.UserinfoEndpoint,
		JWKsURL:     discoveryConfig.JwksURI,
	}
}

type nonceKey struct{}

// NonceToContext stores the expected nonce of an id token.
func NonceToContext(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceKey{}, nonce)
}

// NonceFromContext returns the nonce set by [NonceToContext].
func NonceFromContext(ctx context.Context) string {
	nonce, _ := ctx.Value(nonceKey{}).(string)
	return nonce
}

// AuthRequestOpt modifies the authentication request before it is built.
type AuthRequestOpt func(*oidc.AuthRequestBuilder)

// WithPrompt sets the `prompt` parameter.
func WithPrompt(prompt ...string) AuthRequestOpt {
	return func(b *oidc.AuthRequestBuilder) {
		b.Prompt = prompt
	}
}

// WithResponseMode sets the `response_mode` parameter.
func WithResponseMode(mode oidc.ResponseMode) AuthRequestOpt {
	return func(b *oidc.AuthRequestBuilder) {
		b.ResponseMode = mode
	}
}

// WithCodeChallenge sets the `code_challenge` and `code_challenge_method` (S256) parameters.
func WithCodeChallenge(codeChallenge string) AuthRequestOpt {
	return func(b *oidc.AuthRequestBuilder) {
		b.CodeChallenge = codeChallenge
		b.CodeChallengeMethod = oidc.CodeChallengeMethodS256
	}
}

// WithClaims sets the `claims` parameter.
func WithClaims(claims *oidc.ClaimsRequest) AuthRequestOpt {
	return func(b *oidc.AuthRequestBuilder) {
		b.Claims = claims
	}
}

// WithURLParam sets a custom parameter.
func WithURLParam(key, value string) AuthRequestOpt {
	return func(b *oidc.AuthRequestBuilder) {
		if b.CustomParameters == nil {
			b.CustomParameters = make(map[string]string)
		}
		b.CustomParameters[key] = value
	}
}

// AuthRequest builds the authentication request of the code flow.
func AuthRequest(rp RelyingParty, state, nonce string, opts ...AuthRequestOpt) (*oidc.AuthRequest, error) {
	config := rp.OAuthConfig()
	endpoint, err := url.Parse(config.Endpoint.AuthURL)
	if err != nil {
		return nil, err
	}
	redirectURI, err := url.Parse(config.RedirectURL)
	if err != nil {
		return nil, err
	}
	b := oidc.AuthRequestBuilder{
		Endpoint:     endpoint,
		ResponseType: oidc.ResponseType{oidc.ResponseTypeCode},
		ClientID:     oidc.ClientID(config.ClientID),
		RedirectURI:  redirectURI,
		Scope:        oidc.NewScope(config.Scopes...),
		State:        oidc.State(state),
		Nonce:        oidc.Nonce(nonce),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b.Build()
}

// AuthURL returns the URL of the authentication request.
func AuthURL(rp RelyingParty, state, nonce string, opts ...AuthRequestOpt) (string, error) {
	req, err := AuthRequest(rp, state, nonce, opts...)
	if err != nil {
		return "", err
	}
	u, err := req.ToURI()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// AuthURLHandler extends the `AuthURL` method with a http redirect handler
// including handling setting cookie for secure `state` and `nonce` transfer.
func AuthURLHandler(stateFn func() string, rp RelyingParty, opts ...AuthRequestOpt) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := client.Tracer.Start(r.Context(), "AuthURLHandler")
		r = r.WithContext(ctx)
		defer span.End()

		if rp.CookieHandler() == nil {
			unauthorizedError(w, r, ErrMissingCookieHandler.Error(), "", rp)
			return
		}
		state := stateFn()
		nonce := uuid.NewString()
		if err := rp.CookieHandler().SetCookie(w, stateParam, state); err != nil {
			unauthorizedError(w, r, "failed to create state cookie: "+err.Error(), state, rp)
			return
		}
		if err := rp.CookieHandler().SetCookie(w, nonceParam, nonce); err != nil {
			unauthorizedError(w, r, "failed to create nonce cookie: "+err.Error(), state, rp)
			return
		}
		requestOpts := opts
		if rp.IsPKCE() {
			codeChallenge, err := GenerateAndStoreCodeChallenge(w, rp)
			if err != nil {
				unauthorizedError(w, r, "failed to create code challenge: "+err.Error(), state, rp)
				return
			}
			requestOpts = append(opts[:len(opts):len(opts)], WithCodeChallenge(codeChallenge))
		}
		authURL, err := AuthURL(rp, state, nonce, requestOpts...)
		if err != nil {
			unauthorizedError(w, r, "failed to create auth request: "+err.Error(), state, rp)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// GenerateAndStoreCodeChallenge generates a PKCE code challenge and stores its verifier into a secure cookie
func GenerateAndStoreCodeChallenge(w http.ResponseWriter, rp RelyingParty) (string, error) {
	codeVerifier, err := oidc.NewCodeVerifier()
	if err != nil {
		return "", err
	}
	if err := rp.CookieHandler().SetCookie(w, pkceCode, codeVerifier); err != nil {
		return "", err
	}
	return oidc.NewSHACodeChallenge(codeVerifier), nil
}

func verifyTokenResponse[C oidc.IDClaims](ctx context.Context, token *oauth2.Token, rp RelyingParty) (*oidc.Tokens[C], error) {
	ctx, span := client.Tracer.Start(ctx, "verifyTokenResponse")
	defer span.End()

	idTokenString, ok := token.Extra(idTokenKey).(string)
	if !ok || idTokenString == "" {
		return &oidc.Tokens[C]{Token: token}, ErrMissingIDToken
	}
	idToken, err := VerifyTokens[C](ctx, token.AccessToken, idTokenString, rp.IDTokenVerifier())
	if err != nil {
		return nil, err
	}
	return &oidc.Tokens[C]{Token: token, IDTokenClaims: idToken, IDToken: idTokenString}, nil
}

type CodeExchangeOpt func() []oauth2.AuthCodeOption

// WithCodeVerifier sets the `code_verifier` param in the token request
func WithCodeVerifier(codeVerifier string) CodeExchangeOpt {
	return func() []oauth2.AuthCodeOption {
		return []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("code_verifier", codeVerifier)}
	}
}

// CodeExchange handles the oauth2 code exchange, extracting and validating the id_token
// returning it parsed together with the oauth2 tokens (access, refresh)
func CodeExchange[C oidc.IDClaims](ctx context.Context, code string, rp RelyingParty, opts ...CodeExchangeOpt) (tokens *oidc.Tokens[C], err error) {
	ctx, codeExchangeSpan := client.Tracer.Start(ctx, "CodeExchange")
	defer codeExchangeSpan.End()

	ctx = logCtxWithRPData(ctx, rp, "function", "CodeExchange")
	ctx = context.WithValue(ctx, oauth2.HTTPClient, rp.HttpClient())
	codeOpts := make([]oauth2.AuthCodeOption, 0)
	for _, opt := range opts {
		codeOpts = append(codeOpts, opt()...)
	}

	token, err := rp.OAuthConfig().Exchange(ctx, code, codeOpts...)
	if err != nil {
		return nil, err
	}
	return verifyTokenResponse[C](ctx, token, rp)
}

type CodeExchangeCallback[C oidc.IDClaims] func(w http.ResponseWriter, r *http.Request, tokens *oidc.Tokens[C], state string, rp RelyingParty)

// CodeExchangeHandler extends the `CodeExchange` method with a http handler
// including cookie handling for secure `state` and `nonce` transfer
// and optional PKCE code verifier checking.
func CodeExchangeHandler[C oidc.IDClaims](callback CodeExchangeCallback[C], rp RelyingParty) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := client.Tracer.Start(r.Context(), "CodeExchangeHandler")
		r = r.WithContext(ctx)
		defer span.End()

		if rp.CookieHandler() == nil {
			unauthorizedError(w, r, ErrMissingCookieHandler.Error(), "", rp)
			return
		}
		state, err := rp.CookieHandler().CheckQueryCookie(r, stateParam)
		if err != nil {
			unauthorizedError(w, r, "failed to get state: "+err.Error(), state, rp)
			return
		}
		rp.CookieHandler().DeleteCookie(w, stateParam)
		if errValue := r.FormValue("error"); errValue != "" {
			rp.ErrorHandler()(w, r, errValue, r.FormValue("error_description"), state)
			return
		}
		nonce, err := rp.CookieHandler().CheckCookie(r, nonceParam)
		if err != nil {
			unauthorizedError(w, r, "failed to get nonce: "+err.Error(), state, rp)
			return
		}
		rp.CookieHandler().DeleteCookie(w, nonceParam)

		var codeOpts []CodeExchangeOpt
		if rp.IsPKCE() {
			codeVerifier, err := rp.CookieHandler().CheckCookie(r, pkceCode)
			if err != nil {
				unauthorizedError(w, r, "failed to get code verifier: "+err.Error(), state, rp)
				return
			}
			codeOpts = append(codeOpts, WithCodeVerifier(codeVerifier))
			rp.CookieHandler().DeleteCookie(w, pkceCode)
		}
		tokens, err := CodeExchange[C](NonceToContext(r.Context(), nonce), r.FormValue("code"), rp, codeOpts...)
		if err != nil {
			unauthorizedError(w, r, "failed to exchange token: "+err.Error(), state, rp)
			return
		}
		callback(w, r, tokens, state, rp)
	}
}

func clientAuth(rp RelyingParty) client.ClientAuth {
	return client.ClientAuth{
		ClientID:     rp.OAuthConfig().ClientID,
		ClientSecret: rp.OAuthConfig().ClientSecret,
	}
}

// RefreshTokens performs a token refresh. If it doesn't error, it will always
// provide a new AccessToken. It may provide a new RefreshToken, and if it does, then
// the old one should be considered invalid.
//
// In case the RP is not OAuth2 only and an IDToken was part of the response,
// the IDToken and AccessToken will be verified
// and the IDToken and IDTokenClaims fields will be populated in the returned object.
func RefreshTokens[C oidc.IDClaims](ctx context.Context, rp RelyingParty, refreshToken string) (*oidc.Tokens[C], error) {
	ctx = logCtxWithRPData(ctx, rp, "function", "RefreshTokens")
	ctx, span := client.Tracer.Start(ctx, "RefreshTokens")
	defer span.End()

	newToken, err := client.CallTokenEndpoint(ctx, &oidc.RefreshTokenGrant{RefreshToken: refreshToken}, clientAuth(rp), rp)
	if err != nil {
		return nil, err
	}
	tokens, err := verifyTokenResponse[C](ctx, newToken, rp)
	if err == nil || errors.Is(err, ErrMissingIDToken) {
		// https://openid.net/specs/openid-connect-core-1_0.html#RefreshTokenResponse
		// ...except that it might not contain an id_token.
		return tokens, nil
	}
	return nil, err
}

// ClientCredentials requests an access token using the `client_credentials` grant,
// as defined in [RFC 6749, section 4.4].
//
// [RFC 6749, section 4.4]: https://datatracker.ietf.org/doc/html/rfc6749#section-4.4
func ClientCredentials(ctx context.Context, rp RelyingParty, scopes ...string) (*oauth2.Token, error) {
	ctx = logCtxWithRPData(ctx, rp, "function", "ClientCredentials")
	ctx, span := client.Tracer.Start(ctx, "ClientCredentials")
	defer span.End()

	return client.CallTokenEndpoint(ctx, &oidc.ClientCredentialsGrant{Scopes: oidc.NewScope(scopes...)}, clientAuth(rp), rp)
}

func unauthorizedError(w http.ResponseWriter, r *http.Request, desc string, state string, rp RelyingParty) {
	if logger, ok := rp.Logger(r.Context()); ok {
		logger.WarnContext(r.Context(), "relying party request failed", slog.String("description", desc))
	}
	rp.UnauthorizedHandler()(w, r, desc, state)
}
