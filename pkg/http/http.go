package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zitadel/oidc-core/pkg/oidc"
)

var DefaultHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

var ErrStatusNotOK = errors.New("http status not ok")

type RequestAuthorization func(*http.Request)

func AuthorizeBasic(user, password string) RequestAuthorization {
	return func(req *http.Request) {
		req.SetBasicAuth(url.QueryEscape(user), url.QueryEscape(password))
	}
}

// FormRequest creates a POST request with the form as
// application/x-www-form-urlencoded body.
// A nil authFn leaves the request unauthenticated.
func FormRequest(ctx context.Context, endpoint string, form url.Values, authFn RequestAuthorization) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	if authFn != nil {
		authFn(req)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// HttpRequest executes the request and unmarshals the JSON body into response.
// Error responses carrying an OAuth error object are returned as *oidc.Error.
func HttpRequest(client *http.Client, req *http.Request, response any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		oidcErr := new(oidc.Error)
		if err = json.Unmarshal(body, oidcErr); err != nil || oidcErr.ErrorType == "" {
			return fmt.Errorf("%w: %s %s", ErrStatusNotOK, resp.Status, body)
		}
		return oidcErr.WithStatusCode(resp.StatusCode)
	}

	if err = json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w %s", err, body)
	}
	return nil
}
