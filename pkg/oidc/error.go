package oidc

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/exp/slog"
)

type errorType string

const (
	InvalidRequest          errorType = "invalid_request"
	InvalidScope            errorType = "invalid_scope"
	InvalidClient           errorType = "invalid_client"
	InvalidGrant            errorType = "invalid_grant"
	UnauthorizedClient      errorType = "unauthorized_client"
	UnsupportedGrantType    errorType = "unsupported_grant_type"
	UnsupportedResponseType errorType = "unsupported_response_type"
	AccessDenied            errorType = "access_denied"
	ServerError             errorType = "server_error"
	TemporarilyUnavailable  errorType = "temporarily_unavailable"

	InteractionRequired      errorType = "interaction_required"
	LoginRequired            errorType = "login_required"
	AccountSelectionRequired errorType = "account_selection_required"
	ConsentRequired          errorType = "consent_required"
	InvalidRequestURI        errorType = "invalid_request_uri"
	InvalidRequestObject     errorType = "invalid_request_object"
	RequestNotSupported      errorType = "request_not_supported"
	RequestURINotSupported   errorType = "request_uri_not_supported"
	RegistrationNotSupported errorType = "registration_not_supported"

	// Device Authorization Grant, RFC 8628 section 3.5
	AuthorizationPending errorType = "authorization_pending"
	SlowDown             errorType = "slow_down"
	ExpiredToken         errorType = "expired_token"
)

type errorDefaults struct {
	description string
	status      int
}

var errorTypeDefaults = map[errorType]errorDefaults{
	InvalidRequest:           {"Invalid request", http.StatusBadRequest},
	InvalidScope:             {"Invalid, unknown or malformed scope", http.StatusBadRequest},
	InvalidClient:            {"Client authentication failed", http.StatusUnauthorized},
	InvalidGrant:             {"Invalid grant", http.StatusBadRequest},
	UnauthorizedClient:       {"Unauthorized client", http.StatusBadRequest},
	UnsupportedGrantType:     {"Unsupported grant type", http.StatusBadRequest},
	UnsupportedResponseType:  {"Unsupported response type", http.StatusBadRequest},
	AccessDenied:             {"Access denied by resource owner or authorization server", http.StatusForbidden},
	ServerError:              {"Unexpected server error", http.StatusInternalServerError},
	TemporarilyUnavailable:   {"The authorization server is temporarily unavailable", http.StatusServiceUnavailable},
	InteractionRequired:      {"User interaction required", http.StatusBadRequest},
	LoginRequired:            {"Login required", http.StatusBadRequest},
	AccountSelectionRequired: {"Session selection required", http.StatusBadRequest},
	ConsentRequired:          {"Consent required", http.StatusBadRequest},
	InvalidRequestURI:        {"Invalid request URI", http.StatusBadRequest},
	InvalidRequestObject:     {"Invalid request JWT", http.StatusBadRequest},
	RequestNotSupported:      {"Use of the request parameter is not supported", http.StatusBadRequest},
	RequestURINotSupported:   {"Use of the request_uri parameter is not supported", http.StatusBadRequest},
	RegistrationNotSupported: {"Use of the registration parameter is not supported", http.StatusBadRequest},
	AuthorizationPending:     {"Authorization pending", http.StatusBadRequest},
	SlowDown:                 {"Slow down", http.StatusBadRequest},
	ExpiredToken:             {"Expired token", http.StatusBadRequest},
}

func newError(typ errorType) *Error {
	return &Error{
		ErrorType:   typ,
		Description: errorTypeDefaults[typ].description,
	}
}

var (
	ErrInvalidRequest = func() *Error {
		return newError(InvalidRequest)
	}
	ErrInvalidRequestRedirectURI = func() *Error {
		e := newError(InvalidRequest)
		e.redirectDisabled = true
		return e
	}
	ErrInvalidScope = func() *Error {
		return newError(InvalidScope)
	}
	ErrInvalidClient = func() *Error {
		return newError(InvalidClient)
	}
	ErrInvalidGrant = func() *Error {
		return newError(InvalidGrant)
	}
	ErrUnauthorizedClient = func() *Error {
		return newError(UnauthorizedClient)
	}
	ErrUnsupportedGrantType = func() *Error {
		return newError(UnsupportedGrantType)
	}
	ErrUnsupportedResponseType = func() *Error {
		return newError(UnsupportedResponseType)
	}
	ErrAccessDenied = func() *Error {
		return newError(AccessDenied)
	}
	ErrServerError = func() *Error {
		return newError(ServerError)
	}
	ErrTemporarilyUnavailable = func() *Error {
		return newError(TemporarilyUnavailable)
	}
	ErrInteractionRequired = func() *Error {
		return newError(InteractionRequired)
	}
	ErrLoginRequired = func() *Error {
		return newError(LoginRequired)
	}
	ErrAccountSelectionRequired = func() *Error {
		return newError(AccountSelectionRequired)
	}
	ErrConsentRequired = func() *Error {
		return newError(ConsentRequired)
	}
	ErrInvalidRequestURI = func() *Error {
		return newError(InvalidRequestURI)
	}
	ErrInvalidRequestObject = func() *Error {
		return newError(InvalidRequestObject)
	}
	ErrRequestNotSupported = func() *Error {
		return newError(RequestNotSupported)
	}
	ErrRequestURINotSupported = func() *Error {
		return newError(RequestURINotSupported)
	}
	ErrRegistrationNotSupported = func() *Error {
		return newError(RegistrationNotSupported)
	}
	ErrAuthorizationPending = func() *Error {
		return newError(AuthorizationPending)
	}
	ErrSlowDown = func() *Error {
		return newError(SlowDown)
	}
	ErrExpiredToken = func() *Error {
		return newError(ExpiredToken)
	}
)

// Error is an OAuth 2.0 error object as returned by the authorization
// and token endpoints.
// Two errors are considered equal by [errors.Is] when their ErrorType matches,
// the status code, description and URI are metadata only.
type Error struct {
	Parent           error     `json:"-" schema:"-"`
	ErrorType        errorType `json:"error" schema:"error"`
	Description      string    `json:"error_description,omitempty" schema:"error_description,omitempty"`
	URI              string    `json:"error_uri,omitempty" schema:"error_uri,omitempty"`
	State            string    `json:"state,omitempty" schema:"state,omitempty"`
	StatusCode       int       `json:"-" schema:"-"`
	redirectDisabled bool      `schema:"-"`
}

func (e *Error) Error() string {
	message := "ErrorType=" + string(e.ErrorType)
	if e.Description != "" {
		message += " Description=" + e.Description
	}
	if e.Parent != nil {
		message += " Parent=" + e.Parent.Error()
	}
	return message
}

func (e *Error) Unwrap() error {
	return e.Parent
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.ErrorType == t.ErrorType
}

func (e *Error) WithParent(err error) *Error {
	e.Parent = err
	return e
}

func (e *Error) WithDescription(desc string, args ...any) *Error {
	e.Description = fmt.Sprintf(desc, args...)
	return e
}

// AppendDescription extends the current description with a detail message,
// resulting in `Invalid request: Missing "scope" parameter`.
func (e *Error) AppendDescription(msg string, args ...any) *Error {
	detail := fmt.Sprintf(msg, args...)
	if e.Description == "" {
		e.Description = detail
		return e
	}
	e.Description = e.Description + ": " + detail
	return e
}

func (e *Error) WithURI(uri string) *Error {
	e.URI = uri
	return e
}

func (e *Error) WithState(state string) *Error {
	e.State = state
	return e
}

func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// HTTPStatus returns the status code to use when the error
// is sent as a direct HTTP response.
// Errors delivered by redirect do not use it.
func (e *Error) HTTPStatus() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	if d, ok := errorTypeDefaults[e.ErrorType]; ok {
		return d.status
	}
	return http.StatusBadRequest
}

func (e *Error) IsRedirectDisabled() bool {
	return e.redirectDisabled
}

// LogValue allows Error to be used with slog.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 5)
	if e.Parent != nil {
		attrs = append(attrs, slog.Any("parent", e.Parent))
	}
	if e.Description != "" {
		attrs = append(attrs, slog.String("description", e.Description))
	}
	if e.ErrorType != "" {
		attrs = append(attrs, slog.String("type", string(e.ErrorType)))
	}
	if e.URI != "" {
		attrs = append(attrs, slog.String("uri", e.URI))
	}
	if e.State != "" {
		attrs = append(attrs, slog.String("state", e.State))
	}
	return slog.GroupValue(attrs...)
}

// LogLevel returns the slog.Level for the error type.
// Server errors are logged as errors, polling responses of
// the device flow as info and the rest as warnings.
func (e *Error) LogLevel() slog.Level {
	switch e.ErrorType {
	case ServerError:
		return slog.LevelError
	case AuthorizationPending, SlowDown:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// DefaultToServerError checks if the error is an Error
// if not the provided error will be wrapped into a ServerError
func DefaultToServerError(err error, description string) *Error {
	oauth := new(Error)
	if ok := errors.As(err, &oauth); !ok {
		oauth.ErrorType = ServerError
		oauth.Description = description
		oauth.Parent = err
	}
	return oauth
}

// ParseError is returned when a protocol message could not be parsed
// from its wire representation.
// Besides the error object it carries everything known at the time of
// the failure, which is needed to deliver the error back to the client.
type ParseError struct {
	Message      string
	ErrorObject  *Error
	ResponseMode ResponseMode
	ClientID     ClientID
	RedirectURI  *url.URL
	State        State
}

func (e *ParseError) Error() string {
	return e.Message
}

func (e *ParseError) Unwrap() error {
	if e.ErrorObject == nil {
		return nil
	}
	return e.ErrorObject
}

// Redirectable reports if the error can be sent to the client
// by redirecting the user agent.
func (e *ParseError) Redirectable() bool {
	return e.RedirectURI != nil && e.ErrorObject != nil && !e.ErrorObject.IsRedirectDisabled()
}

func (e *ParseError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("message", e.Message),
		slog.String("response_mode", string(e.ResponseMode)),
	}
	if e.ClientID != "" {
		attrs = append(attrs, slog.String("client_id", string(e.ClientID)))
	}
	if e.ErrorObject != nil {
		attrs = append(attrs, slog.Any("error", e.ErrorObject))
	}
	return slog.GroupValue(attrs...)
}
