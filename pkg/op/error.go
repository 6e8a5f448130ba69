package op

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"golang.org/x/exp/slog"

	httphelper "github.com/zitadel/oidc-core/pkg/http"
	"github.com/zitadel/oidc-core/pkg/oidc"
)

var formPostTemplate = template.Must(template.New("form_post").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>Submit This Form</title>
</head>
<body onload="javascript:document.forms[0].submit()">
	<form method="post" action="{{ .RedirectURI }}">
		{{ range $key, $value := .Params }}<input type="hidden" name="{{ $key }}" value="{{ $value }}"/>
		{{ end }}
		<noscript><button type="submit">Continue</button></noscript>
	</form>
</body>
</html>`))

type formPost struct {
	RedirectURI string
	Params      map[string]string
}

// AuthRequestError delivers an error of the authorization endpoint.
//
// A [*oidc.ParseError] which knows a redirect URI is sent to the client
// in the response mode implied by the request: as query or fragment
// of a redirect or as auto submitting form_post page.
// Any other error is written as JSON body with the status of the error.
func AuthRequestError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	var parseErr *oidc.ParseError
	if !errors.As(err, &parseErr) {
		e := oidc.DefaultToServerError(err, err.Error())
		logError(r.Context(), logger, "auth request", e)
		httphelper.MarshalJSONWithStatus(w, e, e.HTTPStatus())
		return
	}
	e := parseErr.ErrorObject
	if e == nil {
		e = oidc.ErrInvalidRequest().WithDescription("%s", parseErr.Message)
	}
	logError(r.Context(), logger, "auth request", e, slog.Any("parse_error", parseErr))
	if !parseErr.Redirectable() {
		httphelper.MarshalJSONWithStatus(w, e, e.HTTPStatus())
		return
	}
	if e.State == "" {
		e.State = string(parseErr.State)
	}
	if err := redirectError(w, r, parseErr.RedirectURI, parseErr.ResponseMode, e); err != nil {
		logError(r.Context(), logger, "deliver auth request error", oidc.DefaultToServerError(err, err.Error()))
		httphelper.MarshalJSONWithStatus(w, e, e.HTTPStatus())
	}
}

// AuthResponseError delivers an error for a request which was parsed,
// but is rejected by the provider.
func AuthResponseError(w http.ResponseWriter, r *http.Request, authReq *oidc.AuthRequest, err error, logger *slog.Logger) {
	AuthRequestError(w, r, authResponseParseError(authReq, err), logger)
}

func authResponseParseError(authReq *oidc.AuthRequest, err error) *oidc.ParseError {
	e := oidc.DefaultToServerError(err, err.Error())
	return &oidc.ParseError{
		Message:      e.Description,
		ErrorObject:  e.WithState(string(authReq.State())),
		ResponseMode: authReq.ImpliedResponseMode(),
		ClientID:     authReq.ClientID(),
		RedirectURI:  authReq.RedirectURI(),
		State:        authReq.State(),
	}
}

func redirectError(w http.ResponseWriter, r *http.Request, redirectURI *url.URL, mode oidc.ResponseMode, e *oidc.Error) error {
	params := errorParams(e)
	switch mode {
	case oidc.ResponseModeFormPost:
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		w.Header().Set("Cache-Control", "no-store")
		values := make(map[string]string, len(params))
		for k := range params {
			values[k] = params.Get(k)
		}
		return formPostTemplate.Execute(w, &formPost{
			RedirectURI: redirectURI.String(),
			Params:      values,
		})
	case oidc.ResponseModeFragment:
		u := *redirectURI
		u.Fragment = ""
		u.RawFragment = ""
		http.Redirect(w, r, u.String()+"#"+params.Encode(), http.StatusFound)
		return nil
	default:
		u := *redirectURI
		query := u.Query()
		for k, v := range params {
			query[k] = v
		}
		u.RawQuery = query.Encode()
		http.Redirect(w, r, u.String(), http.StatusFound)
		return nil
	}
}

func errorParams(e *oidc.Error) url.Values {
	params := url.Values{}
	params.Set("error", string(e.ErrorType))
	if e.Description != "" {
		params.Set("error_description", e.Description)
	}
	if e.URI != "" {
		params.Set("error_uri", e.URI)
	}
	if e.State != "" {
		params.Set("state", e.State)
	}
	return params
}

func logError(ctx context.Context, logger *slog.Logger, msg string, e *oidc.Error, attrs ...any) {
	if logger == nil {
		return
	}
	logger.Log(ctx, e.LogLevel(), msg, append([]any{slog.Any("error", e)}, attrs...)...)
}
