package oidc

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// authRequestParams is the wire form of the registered parameters.
type authRequestParams struct {
	ResponseType        string `schema:"response_type,omitempty"`
	ResponseMode        string `schema:"response_mode,omitempty"`
	ClientID            string `schema:"client_id,omitempty"`
	RedirectURI         string `schema:"redirect_uri,omitempty"`
	Scope               string `schema:"scope,omitempty"`
	State               string `schema:"state,omitempty"`
	CodeChallenge       string `schema:"code_challenge,omitempty"`
	CodeChallengeMethod string `schema:"code_challenge_method,omitempty"`
	Nonce               string `schema:"nonce,omitempty"`
	Display             string `schema:"display,omitempty"`
	Prompt              string `schema:"prompt,omitempty"`
	MaxAge              string `schema:"max_age,omitempty"`
	UILocales           string `schema:"ui_locales,omitempty"`
	ClaimsLocales       string `schema:"claims_locales,omitempty"`
	IDTokenHint         string `schema:"id_token_hint,omitempty"`
	LoginHint           string `schema:"login_hint,omitempty"`
	ACRValues           string `schema:"acr_values,omitempty"`
	Claims              string `schema:"claims,omitempty"`
	RequestURI          string `schema:"request_uri,omitempty"`
	Request             string `schema:"request,omitempty"`
}

func (a *AuthRequest) params() *authRequestParams {
	p := &authRequestParams{
		ResponseType:        a.responseType.String(),
		ResponseMode:        string(a.responseMode),
		ClientID:            string(a.clientID),
		Scope:               a.scope.String(),
		State:               string(a.state),
		CodeChallenge:       a.codeChallenge,
		CodeChallengeMethod: string(a.codeChallengeMethod),
		Nonce:               string(a.nonce),
		Display:             string(a.display),
		Prompt:              a.prompt.String(),
		UILocales:           a.uiLocales.String(),
		ClaimsLocales:       a.claimsLocales.String(),
		IDTokenHint:         a.idTokenHint,
		LoginHint:           a.loginHint,
		ACRValues:           SpaceDelimited(a.acrValues),
		Claims:              a.claims,
		Request:             a.requestObject,
	}
	if a.redirectURI != nil {
		p.RedirectURI = a.redirectURI.String()
	}
	if a.maxAge > 0 {
		p.MaxAge = strconv.Itoa(a.maxAge)
	}
	if a.requestURI != nil {
		p.RequestURI = a.requestURI.String()
	}
	return p
}

// ToParameters returns the request as query or form parameters.
// Custom parameters are added as they are.
func (a *AuthRequest) ToParameters() url.Values {
	values, err := encodeForm(a.params())
	if err != nil {
		// string fields only, encoding does not fail
		panic(err)
	}
	for name, value := range a.custom {
		values.Set(name, value)
	}
	return values
}

// ToQueryString returns the URL encoded parameters.
func (a *AuthRequest) ToQueryString() string {
	return a.ToParameters().Encode()
}

// ToURI returns the endpoint with the parameters as query.
func (a *AuthRequest) ToURI() (*url.URL, error) {
	if a.endpoint == nil {
		return nil, ErrAuthRequestNoEndpoint
	}
	u := cloneURL(a.endpoint)
	u.RawQuery = a.ToQueryString()
	return u, nil
}

type parseOptions struct {
	redirectURIRequired bool
}

type ParseOption func(*parseOptions)

// WithRedirectURIRequired requires the redirect_uri parameter,
// even when a request_uri is present.
// By default the redirect_uri may be omitted in that case,
// as it can be part of the referenced request object.
func WithRedirectURIRequired(required bool) ParseOption {
	return func(o *parseOptions) {
		o.redirectURIRequired = required
	}
}

// authRequestParser keeps track of the values parsed so far,
// so an error can be delivered to the client.
type authRequestParser struct {
	params       authRequestParams
	responseType ResponseType
	responseMode ResponseMode
	clientID     ClientID
	redirectURI  *url.URL
	state        State
}

func (p *authRequestParser) fail(format string, args ...any) *ParseError {
	msg := fmt.Sprintf(format, args...)
	errObj := ErrInvalidRequest().AppendDescription("%s", msg)
	errObj.State = string(p.state)
	return &ParseError{
		Message:      msg,
		ErrorObject:  errObj,
		ResponseMode: ImpliedResponseMode(p.responseMode, p.responseType),
		ClientID:     p.clientID,
		RedirectURI:  cloneURL(p.redirectURI),
		State:        p.state,
	}
}

// ParseAuthRequest parses an authentication request from query or form parameters.
// The endpoint is optional and kept in the request.
//
// Any failure is returned as [*ParseError], with an invalid_request
// error object and the response mode to deliver it.
func ParseAuthRequest(values url.Values, endpoint *url.URL, opts ...ParseOption) (*AuthRequest, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}
	p := new(authRequestParser)
	if err := decodeForm(&p.params, values); err != nil {
		return nil, p.fail("%v", err)
	}
	b, perr := p.parse(o)
	if perr != nil {
		return nil, perr
	}
	b.Endpoint = endpoint
	for name, v := range values {
		if !isRegisteredParameter(name) && len(v) > 0 {
			if b.CustomParameters == nil {
				b.CustomParameters = make(map[string]string)
			}
			b.CustomParameters[name] = v[len(v)-1]
		}
	}
	a, err := b.Build()
	if err != nil {
		return nil, p.fail("%v", err)
	}
	return a, nil
}

func (p *authRequestParser) parse(o parseOptions) (*AuthRequestBuilder, *ParseError) {
	params := &p.params
	p.state = State(params.State)
	p.responseMode = ResponseMode(params.ResponseMode)

	if params.ResponseType == "" {
		return nil, p.fail(`Missing "response_type" parameter`)
	}
	rt, err := ParseResponseType(params.ResponseType)
	if err != nil {
		return nil, p.fail(`Invalid "response_type" parameter: %v`, err)
	}
	p.responseType = rt

	if params.ClientID == "" {
		return nil, p.fail(`Missing "client_id" parameter`)
	}
	p.clientID = ClientID(params.ClientID)

	if params.RedirectURI == "" {
		if params.RequestURI == "" || o.redirectURIRequired {
			return nil, p.fail(`Missing "redirect_uri" parameter`)
		}
	} else {
		redirectURI, err := url.Parse(params.RedirectURI)
		if err != nil {
			return nil, p.fail(`Invalid "redirect_uri" parameter: %v`, err)
		}
		p.redirectURI = redirectURI
	}

	if params.Scope == "" {
		return nil, p.fail(`Missing "scope" parameter`)
	}
	scope := ParseScope(params.Scope)
	if !scope.Contains(ScopeOpenID) {
		return nil, p.fail(`The scope must include an "openid" value`)
	}

	if rt.ImpliesImplicitFlow() && params.Nonce == "" {
		return nil, p.fail(`Missing "nonce" parameter: Required in implicit flow`)
	}

	b := &AuthRequestBuilder{
		ResponseType: rt,
		ResponseMode: p.responseMode,
		ClientID:     p.clientID,
		RedirectURI:  p.redirectURI,
		Scope:        scope,
		State:        p.state,
		Nonce:        Nonce(params.Nonce),
	}

	if params.Display != "" {
		if b.Display, err = ParseDisplay(params.Display); err != nil {
			return nil, p.fail(`Invalid "display" parameter: %v`, err)
		}
	}
	if params.Prompt != "" {
		if b.Prompt, err = ParsePrompt(params.Prompt); err != nil {
			return nil, p.fail(`Invalid "prompt" parameter: %v`, err)
		}
	}
	if params.MaxAge != "" {
		maxAge, err := strconv.Atoi(params.MaxAge)
		if err != nil || maxAge < 0 {
			return nil, p.fail(`Invalid "max_age" parameter: %s`, params.MaxAge)
		}
		b.MaxAge = maxAge
	}
	if params.IDTokenHint != "" {
		if _, _, err = ParseJOSEHeader(params.IDTokenHint); err != nil {
			return nil, p.fail(`Invalid "id_token_hint" parameter: %v`, err)
		}
		b.IDTokenHint = params.IDTokenHint
	}

	b.UILocales = ParseLocales(params.UILocales)
	b.ClaimsLocales = ParseLocales(params.ClaimsLocales)
	b.LoginHint = params.LoginHint
	b.ACRValues = ParseSpaceDelimited(params.ACRValues)
	if params.Claims != "" {
		if b.Claims, err = ParseClaimsRequest(params.Claims); err != nil {
			return nil, p.fail(`Invalid "claims" parameter: %v`, err)
		}
	}
	if params.Request != "" && params.RequestURI != "" {
		return nil, p.fail(`Found mutually exclusive "request" and "request_uri" parameters`)
	}
	if params.Request != "" {
		if _, _, err = ParseJOSEHeader(params.Request); err != nil {
			return nil, p.fail(`Invalid "request" parameter: %v`, err)
		}
		b.RequestObject = params.Request
	}
	if params.RequestURI != "" {
		if b.RequestURI, err = url.Parse(params.RequestURI); err != nil {
			return nil, p.fail(`Invalid "request_uri" parameter: %v`, err)
		}
	}
	b.CodeChallenge = params.CodeChallenge
	if params.CodeChallengeMethod != "" {
		if b.CodeChallengeMethod, err = ParseCodeChallengeMethod(params.CodeChallengeMethod); err != nil {
			return nil, p.fail(`Invalid "code_challenge_method" parameter: %v`, err)
		}
	}
	return b, nil
}

// ParseAuthRequestQuery parses an URL encoded query string.
func ParseAuthRequestQuery(query string, opts ...ParseOption) (*AuthRequest, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	if err != nil {
		return nil, new(authRequestParser).fail("Invalid query string: %v", err)
	}
	return ParseAuthRequest(values, nil, opts...)
}

// ParseAuthRequestURI parses a request URI, the URI without its query
// becomes the endpoint of the request.
func ParseAuthRequestURI(uri string, opts ...ParseOption) (*AuthRequest, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, new(authRequestParser).fail("Invalid URI: %v", err)
	}
	values := u.Query()
	endpoint := cloneURL(u)
	endpoint.RawQuery = ""
	endpoint.ForceQuery = false
	endpoint.Fragment = ""
	return ParseAuthRequest(values, endpoint, opts...)
}

// MarshalJSON returns the parameters as JSON object.
// The max_age is written as number and the claims as object.
func (a *AuthRequest) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any)
	for name, values := range a.ToParameters() {
		obj[name] = values[len(values)-1]
	}
	if a.maxAge > 0 {
		obj["max_age"] = a.maxAge
	}
	if a.claims != "" {
		obj["claims"] = json.RawMessage(a.claims)
	}
	return json.Marshal(obj)
}

// UnmarshalJSON parses the request from a JSON object,
// with the same rules as [ParseAuthRequest].
func (a *AuthRequest) UnmarshalJSON(data []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("oidc: auth request: %w", err)
	}
	values := make(url.Values, len(obj))
	for name, value := range obj {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			values.Set(name, v)
		case float64:
			values.Set(name, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			values.Set(name, strconv.FormatBool(v))
		case []any:
			parts := make([]string, 0, len(v))
			for _, e := range v {
				parts = append(parts, fmt.Sprint(e))
			}
			values.Set(name, SpaceDelimited(parts))
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("oidc: auth request %s: %w", name, err)
			}
			values.Set(name, string(raw))
		}
	}
	parsed, err := ParseAuthRequest(values, nil)
	if err != nil {
		return err
	}
	*a = *parsed
	return nil
}
