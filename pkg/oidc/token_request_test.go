package oidc

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGrantType(t *testing.T) {
	const extension GrantType = "urn:example:grant-type:custom"
	tests := []struct {
		name       string
		s          string
		extensions []GrantType
		want       GrantType
		wantErr    *Error
		wantDesc   string
	}{
		{
			name:     "empty",
			s:        "",
			wantErr:  ErrInvalidRequest(),
			wantDesc: `Invalid request: Missing "grant_type" parameter`,
		},
		{
			name:     "blank",
			s:        "  ",
			wantErr:  ErrInvalidRequest(),
			wantDesc: `Invalid request: Missing "grant_type" parameter`,
		},
		{
			name: "authorization code",
			s:    "authorization_code",
			want: GrantTypeCode,
		},
		{
			name: "saml2 bearer",
			s:    "urn:ietf:params:oauth:grant-type:saml2-bearer",
			want: GrantTypeSAML2Bearer,
		},
		{
			name:     "unknown",
			s:        "urn:example:grant-type:custom",
			wantErr:  ErrUnsupportedGrantType(),
			wantDesc: "Unsupported grant type: urn:example:grant-type:custom",
		},
		{
			name:       "extension",
			s:          "urn:example:grant-type:custom",
			extensions: []GrantType{extension},
			want:       extension,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGrantType(tt.s, tt.extensions...)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var oidcErr *Error
				require.True(t, errors.As(err, &oidcErr))
				assert.Equal(t, tt.wantDesc, oidcErr.Description)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.s, got.String())
		})
	}
}

func TestGrantType_Requirements(t *testing.T) {
	tests := []struct {
		gt                   GrantType
		clientAuthentication bool
		clientID             bool
	}{
		{GrantTypeCode, false, true},
		{GrantTypeImplicit, false, true},
		{GrantTypeRefreshToken, false, false},
		{GrantTypePassword, false, false},
		{GrantTypeClientCredentials, true, true},
		{GrantTypeSAML2Bearer, false, false},
		{GrantTypeBearer, false, false},
		{GrantTypeDeviceCode, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.gt.String(), func(t *testing.T) {
			assert.True(t, tt.gt.Known())
			assert.Equal(t, tt.clientAuthentication, tt.gt.RequiresClientAuthentication())
			assert.Equal(t, tt.clientID, tt.gt.RequiresClientID())
		})
	}
}

func TestGrant_Parameters(t *testing.T) {
	tests := []struct {
		name  string
		grant Grant
		want  url.Values
	}{
		{
			name: "authorization code",
			grant: &AuthorizationCodeGrant{
				Code:        "SplxlOBeZQQYbYS6WxSbIA",
				RedirectURI: "https://client.example.com/cb",
			},
			want: url.Values{
				"grant_type":   {"authorization_code"},
				"code":         {"SplxlOBeZQQYbYS6WxSbIA"},
				"redirect_uri": {"https://client.example.com/cb"},
			},
		},
		{
			name: "refresh token",
			grant: &RefreshTokenGrant{
				RefreshToken: "tGzv3JOkF0XG5Qx2TlKWIA",
				Scopes:       NewScope("openid", "email"),
			},
			want: url.Values{
				"grant_type":    {"refresh_token"},
				"refresh_token": {"tGzv3JOkF0XG5Qx2TlKWIA"},
				"scope":         {"openid email"},
			},
		},
		{
			name:  "password",
			grant: &PasswordGrant{Username: "alice", Password: "secret"},
			want: url.Values{
				"grant_type": {"password"},
				"username":   {"alice"},
				"password":   {"secret"},
			},
		},
		{
			name:  "password with scope",
			grant: &PasswordGrant{Username: "alice", Password: "secret", Scopes: NewScope("openid", "profile")},
			want: url.Values{
				"grant_type": {"password"},
				"username":   {"alice"},
				"password":   {"secret"},
				"scope":      {"openid profile"},
			},
		},
		{
			name:  "client credentials",
			grant: &ClientCredentialsGrant{},
			want: url.Values{
				"grant_type": {"client_credentials"},
			},
		},
		{
			name:  "client credentials with scope",
			grant: &ClientCredentialsGrant{Scopes: NewScope("api:read", "api:write")},
			want: url.Values{
				"grant_type": {"client_credentials"},
				"scope":      {"api:read api:write"},
			},
		},
		{
			name:  "jwt bearer",
			grant: &JWTBearerGrant{Assertion: "eyJhbGciOiJSUzI1NiJ9.e30.c2ln", Scopes: NewScope("openid")},
			want: url.Values{
				"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
				"assertion":  {"eyJhbGciOiJSUzI1NiJ9.e30.c2ln"},
				"scope":      {"openid"},
			},
		},
		{
			name:  "saml2 bearer",
			grant: &SAML2BearerGrant{Assertion: "PHNhbWxwOl...ZT4", Scopes: NewScope("read")},
			want: url.Values{
				"grant_type": {"urn:ietf:params:oauth:grant-type:saml2-bearer"},
				"assertion":  {"PHNhbWxwOl...ZT4"},
				"scope":      {"read"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.grant.Parameters()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			parsed, err := ParseGrant(got)
			require.NoError(t, err)
			assert.Equal(t, tt.grant, parsed)
		})
	}
}

func TestParseGrant(t *testing.T) {
	tests := []struct {
		name     string
		values   url.Values
		wantErr  *Error
		wantDesc string
	}{
		{
			name:     "missing grant type",
			values:   url.Values{"code": {"abc"}},
			wantErr:  ErrInvalidRequest(),
			wantDesc: `Invalid request: Missing "grant_type" parameter`,
		},
		{
			name:     "missing code",
			values:   url.Values{"grant_type": {"authorization_code"}},
			wantErr:  ErrInvalidRequest(),
			wantDesc: `Invalid request: Missing "code" parameter`,
		},
		{
			name:     "missing password",
			values:   url.Values{"grant_type": {"password"}, "username": {"alice"}},
			wantErr:  ErrInvalidRequest(),
			wantDesc: `Invalid request: Missing "password" parameter`,
		},
		{
			name:     "device code not parsed",
			values:   url.Values{"grant_type": {"urn:ietf:params:oauth:grant-type:device_code"}},
			wantErr:  ErrUnsupportedGrantType(),
			wantDesc: "Unsupported grant type: urn:ietf:params:oauth:grant-type:device_code",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGrant(tt.values)
			require.ErrorIs(t, err, tt.wantErr)
			var oidcErr *Error
			require.True(t, errors.As(err, &oidcErr))
			assert.Equal(t, tt.wantDesc, oidcErr.Description)
		})
	}
}
