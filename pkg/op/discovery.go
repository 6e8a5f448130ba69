package op

import (
	"net/http"

	httphelper "github.com/zitadel/oidc-core/pkg/http"
	"github.com/zitadel/oidc-core/pkg/oidc"
)

var DefaultSupportedScopes = []string{
	oidc.ScopeOpenID,
	oidc.ScopeProfile,
	oidc.ScopeEmail,
	oidc.ScopePhone,
	oidc.ScopeAddress,
	oidc.ScopeOfflineAccess,
}

func (o *Provider) discoveryHandler(w http.ResponseWriter, r *http.Request) {
	httphelper.MarshalJSON(w, o.CreateDiscoveryConfig(r))
}

// CreateDiscoveryConfig returns the provider metadata for the issuer of the request.
func (o *Provider) CreateDiscoveryConfig(r *http.Request) *oidc.DiscoveryConfiguration {
	issuer := IssuerFromContext(r.Context())
	if issuer == "" {
		issuer = o.issuer(r)
	}
	c := o.config
	return &oidc.DiscoveryConfiguration{
		Issuer:                           issuer,
		AuthorizationEndpoint:            o.endpoints.Authorization.Absolute(issuer),
		TokenEndpoint:                    o.endpoints.Token.Absolute(issuer),
		UserinfoEndpoint:                 o.endpoints.Userinfo.Absolute(issuer),
		JwksURI:                          o.endpoints.JwksURI.Absolute(issuer),
		ScopesSupported:                  c.SupportedScopes,
		ResponseTypesSupported:           c.ResponseTypes,
		ResponseModesSupported:           c.ResponseModes,
		GrantTypesSupported:              c.GrantTypes,
		ACRValuesSupported:               c.ACRValues,
		SubjectTypesSupported:            []string{string(oidc.SubjectTypePublic)},
		IDTokenSigningAlgValuesSupported: c.IDTokenSigningAlgs,
		DisplayValuesSupported: []oidc.Display{
			oidc.DisplayPage,
			oidc.DisplayPopup,
			oidc.DisplayTouch,
			oidc.DisplayWAP,
		},
		ClaimsSupported:               c.SupportedClaims,
		ClaimsParameterSupported:      c.ClaimsParameterSupported,
		CodeChallengeMethodsSupported: c.CodeChallengeMethods,
		ClaimsLocalesSupported:        c.SupportedClaimsLocales,
		UILocalesSupported:            c.SupportedUILocales,
		RequestParameterSupported:     c.RequestObjectSupported,
		RequestURIParameterSupported:  c.RequestURISupported,
	}
}
