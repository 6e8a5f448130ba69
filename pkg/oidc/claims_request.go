package oidc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

const (
	ClaimsSectionUserInfo = "userinfo"
	ClaimsSectionIDToken  = "id_token"
)

var ErrMalformedClaimsRequest = errors.New("malformed claims request")

// ResolveRequiredClaims returns the names of the claims an ID token
// must contain for the response type.
func ResolveRequiredClaims(rt ResponseType) []string {
	claims := []string{"iss", "sub", "aud", "exp", "iat"}
	if !rt.ImpliesImplicitFlow() {
		return claims
	}
	claims = append(claims, "nonce")
	if rt.Contains(ResponseTypeToken) {
		claims = append(claims, "at_hash")
	}
	if rt.Contains(ResponseTypeCode) {
		claims = append(claims, "c_hash")
	}
	return claims
}

// ClaimDescriptor describes how a single claim is requested.
// A claim requested with a JSON null results in the zero value.
type ClaimDescriptor struct {
	Essential bool     `json:"essential,omitempty"`
	Value     string   `json:"value,omitempty"`
	Values    []string `json:"values,omitempty"`
}

// ACRRequest holds the requested authentication context class references.
type ACRRequest struct {
	Essential []string
	Voluntary []string
}

// ClaimsRequest is the value of the claims request parameter,
// as defined in OpenID Connect Core 1.0, section 5.5.
// Only the structure of the document is checked on parsing,
// single claims are checked when they are resolved.
type ClaimsRequest struct {
	doc map[string]any
}

func NewClaimsRequest() *ClaimsRequest {
	return &ClaimsRequest{doc: make(map[string]any)}
}

// ParseClaimsRequest parses the JSON document of the claims parameter.
func ParseClaimsRequest(s string) (*ClaimsRequest, error) {
	c := new(ClaimsRequest)
	if err := c.UnmarshalJSON([]byte(s)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ClaimsRequest) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedClaimsRequest, err)
	}
	if doc == nil {
		return fmt.Errorf("%w: the document must be a JSON object", ErrMalformedClaimsRequest)
	}
	for _, name := range []string{ClaimsSectionUserInfo, ClaimsSectionIDToken} {
		section, ok := doc[name]
		if !ok || section == nil {
			continue
		}
		if _, ok = section.(map[string]any); !ok {
			return fmt.Errorf("%w: the %q member must be a JSON object", ErrMalformedClaimsRequest, name)
		}
	}
	c.doc = doc
	return nil
}

func (c *ClaimsRequest) MarshalJSON() ([]byte, error) {
	if c == nil || c.doc == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.doc)
}

func (c *ClaimsRequest) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}

// WithIDTokenClaim adds a claim to the id_token section.
// A nil descriptor requests the claim with default behavior.
func (c *ClaimsRequest) WithIDTokenClaim(name string, d *ClaimDescriptor) *ClaimsRequest {
	c.add(ClaimsSectionIDToken, name, d)
	return c
}

// WithUserInfoClaim adds a claim to the userinfo section.
// A nil descriptor requests the claim with default behavior.
func (c *ClaimsRequest) WithUserInfoClaim(name string, d *ClaimDescriptor) *ClaimsRequest {
	c.add(ClaimsSectionUserInfo, name, d)
	return c
}

func (c *ClaimsRequest) add(section, name string, d *ClaimDescriptor) {
	if c.doc == nil {
		c.doc = make(map[string]any)
	}
	entries, _ := c.doc[section].(map[string]any)
	if entries == nil {
		entries = make(map[string]any)
		c.doc[section] = entries
	}
	if d == nil {
		entries[name] = nil
		return
	}
	entry := make(map[string]any)
	if d.Essential {
		entry["essential"] = true
	}
	if d.Value != "" {
		entry["value"] = d.Value
	}
	if len(d.Values) > 0 {
		values := make([]any, len(d.Values))
		for i, v := range d.Values {
			values[i] = v
		}
		entry["values"] = values
	}
	entries[name] = entry
}

func (c *ClaimsRequest) section(name string) map[string]any {
	if c == nil {
		return nil
	}
	entries, _ := c.doc[name].(map[string]any)
	return entries
}

func claimNames(entries map[string]any) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IDTokenClaimNames returns the sorted names of the claims requested in the id_token section.
func (c *ClaimsRequest) IDTokenClaimNames() []string {
	return claimNames(c.section(ClaimsSectionIDToken))
}

// UserInfoClaimNames returns the sorted names of the claims requested in the userinfo section.
func (c *ClaimsRequest) UserInfoClaimNames() []string {
	return claimNames(c.section(ClaimsSectionUserInfo))
}

// IDTokenClaim resolves a single claim of the id_token section.
// It returns nil if the claim is not requested and
// ErrMalformedClaimsRequest if the entry has the wrong shape.
func (c *ClaimsRequest) IDTokenClaim(name string) (*ClaimDescriptor, error) {
	return resolveClaim(c.section(ClaimsSectionIDToken), name)
}

// UserInfoClaim resolves a single claim of the userinfo section,
// with the same rules as [ClaimsRequest.IDTokenClaim].
func (c *ClaimsRequest) UserInfoClaim(name string) (*ClaimDescriptor, error) {
	return resolveClaim(c.section(ClaimsSectionUserInfo), name)
}

func resolveClaim(entries map[string]any, name string) (*ClaimDescriptor, error) {
	raw, ok := entries[name]
	if !ok {
		return nil, nil
	}
	if raw == nil {
		return &ClaimDescriptor{}, nil
	}
	entry, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: the %q claim must be a JSON object or null", ErrMalformedClaimsRequest, name)
	}
	d := new(ClaimDescriptor)
	if v, ok := entry["essential"]; ok {
		if d.Essential, ok = v.(bool); !ok {
			return nil, fmt.Errorf("%w: the %q essential member must be a boolean", ErrMalformedClaimsRequest, name)
		}
	}
	if v, ok := entry["value"]; ok {
		if d.Value, ok = v.(string); !ok {
			return nil, fmt.Errorf("%w: the %q value member must be a string", ErrMalformedClaimsRequest, name)
		}
	}
	if v, ok := entry["values"]; ok {
		values, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: the %q values member must be an array", ErrMalformedClaimsRequest, name)
		}
		d.Values = make([]string, len(values))
		for i, value := range values {
			if d.Values[i], ok = value.(string); !ok {
				return nil, fmt.Errorf("%w: the %q values member must only contain strings", ErrMalformedClaimsRequest, name)
			}
		}
	}
	return d, nil
}

// RequestedACRs returns the acr values requested in the id_token section,
// or nil if no values are requested.
func (c *ClaimsRequest) RequestedACRs() (*ACRRequest, error) {
	d, err := c.IDTokenClaim("acr")
	if err != nil || d == nil {
		return nil, err
	}
	values := d.Values
	if d.Value != "" {
		values = append([]string{d.Value}, values...)
	}
	if len(values) == 0 {
		return nil, nil
	}
	if d.Essential {
		return &ACRRequest{Essential: values}, nil
	}
	return &ACRRequest{Voluntary: values}, nil
}

// RequestedSubject returns the subject value requested in the id_token section.
// An empty subject is returned if none is requested.
func (c *ClaimsRequest) RequestedSubject() (Subject, error) {
	d, err := c.IDTokenClaim("sub")
	if err != nil || d == nil {
		return "", err
	}
	return Subject(d.Value), nil
}
