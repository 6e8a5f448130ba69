package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvVars(t *testing.T) {
	for _, tc := range []struct {
		name     string
		env      map[string]string
		defaults *Config
		want     *Config
		wantErr  bool
	}{
		{
			name: "no vars, no default values",
			env:  map[string]string{},
			want: &Config{MaxClockSkew: DefaultMaxClockSkew},
		},
		{
			name: "no vars, only defaults",
			env:  map[string]string{},
			defaults: &Config{
				Issuer:       "https://op.example.com",
				ClientID:     "client",
				JWKSURI:      "https://op.example.com/keys",
				SigningAlgs:  []string{"RS256"},
				MaxClockSkew: 5 * time.Second,
			},
			want: &Config{
				Issuer:       "https://op.example.com",
				ClientID:     "client",
				JWKSURI:      "https://op.example.com/keys",
				SigningAlgs:  []string{"RS256"},
				MaxClockSkew: 5 * time.Second,
			},
		},
		{
			name: "overriding default values",
			env: map[string]string{
				"OIDC_ISSUER":         "https://login.example.com",
				"OIDC_CLIENT_ID":      "other",
				"OIDC_JWKS_URI":       "https://login.example.com/oauth/v2/keys",
				"OIDC_SIGNING_ALGS":   "RS256,PS512",
				"OIDC_MAX_CLOCK_SKEW": "90s",
			},
			defaults: &Config{
				Issuer:       "https://op.example.com",
				ClientID:     "client",
				MaxClockSkew: 5 * time.Second,
			},
			want: &Config{
				Issuer:       "https://login.example.com",
				ClientID:     "other",
				JWKSURI:      "https://login.example.com/oauth/v2/keys",
				SigningAlgs:  []string{"RS256", "PS512"},
				MaxClockSkew: 90 * time.Second,
			},
		},
		{
			name: "invalid clock skew",
			env: map[string]string{
				"OIDC_MAX_CLOCK_SKEW": "a minute",
			},
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for _, key := range []string{"OIDC_ISSUER", "OIDC_CLIENT_ID", "OIDC_JWKS_URI", "OIDC_SIGNING_ALGS", "OIDC_MAX_CLOCK_SKEW"} {
				// restored after the test
				t.Setenv(key, "")
				os.Unsetenv(key)
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			cfg, err := FromEnvVars(tc.defaults)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg)
		})
	}
}
