package oidc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	// ScopeOpenID defines the scope `openid`
	// OpenID Connect requests MUST contain the `openid` scope value
	ScopeOpenID = "openid"

	// ScopeProfile defines the scope `profile`
	// This (optional) scope value requests access to the End-User's default profile Claims,
	// which are: name, family_name, given_name, middle_name, nickname, preferred_username,
	// profile, picture, website, gender, birthdate, zoneinfo, locale, and updated_at.
	ScopeProfile = "profile"

	// ScopeEmail defines the scope `email`
	// This (optional) scope value requests access to the email and email_verified Claims.
	ScopeEmail = "email"

	// ScopeAddress defines the scope `address`
	// This (optional) scope value requests access to the address Claim.
	ScopeAddress = "address"

	// ScopePhone defines the scope `phone`
	// This (optional) scope value requests access to the phone_number and phone_number_verified Claims.
	ScopePhone = "phone"

	// ScopeOfflineAccess defines the scope `offline_access`
	// This (optional) scope value requests that an OAuth 2.0 Refresh Token be issued that can be used to obtain an Access Token
	// that grants access to the End-User's UserInfo Endpoint even when the End-User is not present (not logged in).
	ScopeOfflineAccess = "offline_access"
)

const (
	ResponseTypeCode    ResponseTypeValue = "code"
	ResponseTypeToken   ResponseTypeValue = "token"
	ResponseTypeIDToken ResponseTypeValue = "id_token"
	ResponseTypeNone    ResponseTypeValue = "none"
)

const (
	ResponseModeQuery    ResponseMode = "query"
	ResponseModeFragment ResponseMode = "fragment"
	ResponseModeFormPost ResponseMode = "form_post"
)

const (
	DisplayPage  Display = "page"
	DisplayPopup Display = "popup"
	DisplayTouch Display = "touch"
	DisplayWAP   Display = "wap"
)

const (
	// PromptNone (`none`) disallows the Authorization Server to display any authentication or consent user interface pages.
	// An error (login_required, interaction_required, ...) will be returned if the user is not already authenticated or consent is needed
	PromptNone = "none"

	// PromptLogin (`login`) directs the Authorization Server to prompt the End-User for reauthentication.
	PromptLogin = "login"

	// PromptConsent (`consent`) directs the Authorization Server to prompt the End-User for consent (of sharing information).
	PromptConsent = "consent"

	// PromptSelectAccount (`select_account `) directs the Authorization Server to prompt the End-User to select a user account (to enable multi user / session switching)
	PromptSelectAccount = "select_account"

	// PromptCreate (`create`) directs the Authorization Server to show the account creation UI.
	PromptCreate = "create"
)

type Audience []string

// NewAudience creates an audience from one or more values.
// Empty values are rejected.
func NewAudience(values ...string) (Audience, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: the audience must not be empty", ErrInvalidValue)
	}
	for _, v := range values {
		if v == "" {
			return nil, fmt.Errorf("%w: the audience must not contain empty values", ErrInvalidValue)
		}
	}
	return Audience(values), nil
}

func (a Audience) Contains(value string) bool {
	for _, v := range a {
		if v == value {
			return true
		}
	}
	return false
}

func (a *Audience) UnmarshalJSON(text []byte) error {
	var i any
	err := json.Unmarshal(text, &i)
	if err != nil {
		return err
	}
	switch aud := i.(type) {
	case []any:
		*a = make([]string, len(aud))
		for i, audience := range aud {
			s, ok := audience.(string)
			if !ok {
				return fmt.Errorf("aud: unexpected type %T", audience)
			}
			(*a)[i] = s
		}
	case string:
		*a = []string{aud}
	case nil:
		*a = nil
	default:
		return fmt.Errorf("aud: unexpected type %T", aud)
	}
	return nil
}

// Time is a JSON numeric date value, as seconds since the Unix epoch.
type Time int64

func (ts Time) AsTime() time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(int64(ts), 0)
}

func FromTime(tt time.Time) Time {
	if tt.IsZero() {
		return 0
	}
	return Time(tt.Unix())
}

func (ts *Time) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("oidc.Time: %w", err)
	}
	switch x := v.(type) {
	case float64:
		*ts = Time(math.Round(x))
	case nil:
		*ts = 0
	default:
		return fmt.Errorf("oidc.Time: unexpected type %T", v)
	}
	return nil
}

// ResponseTypeValue is a single member of a response type.
type ResponseTypeValue string

// ResponseType is the ordered set of values of the response_type parameter.
// Order is kept for serialization, comparison is done as sets.
type ResponseType []ResponseTypeValue

func NewResponseType(values ...ResponseTypeValue) ResponseType {
	rt := make(ResponseType, 0, len(values))
	for _, v := range values {
		if v != "" && !rt.Contains(v) {
			rt = append(rt, v)
		}
	}
	return rt
}

// ParseResponseType parses a space separated response_type value.
func ParseResponseType(s string) (ResponseType, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: the response type must not be empty", ErrInvalidValue)
	}
	values := make([]ResponseTypeValue, len(fields))
	for i, f := range fields {
		values[i] = ResponseTypeValue(f)
	}
	return NewResponseType(values...), nil
}

func (rt ResponseType) Contains(value ResponseTypeValue) bool {
	for _, v := range rt {
		if v == value {
			return true
		}
	}
	return false
}

// Equal compares both response types as sets.
func (rt ResponseType) Equal(other ResponseType) bool {
	if len(rt) != len(other) {
		return false
	}
	for _, v := range rt {
		if !other.Contains(v) {
			return false
		}
	}
	return true
}

// ImpliesImplicitFlow is true when the response type contains
// `token` or `id_token`, which is the case for the implicit and hybrid flows.
func (rt ResponseType) ImpliesImplicitFlow() bool {
	return rt.Contains(ResponseTypeToken) || rt.Contains(ResponseTypeIDToken)
}

// ImpliesCodeFlow is true only for the response type `code`.
func (rt ResponseType) ImpliesCodeFlow() bool {
	return len(rt) == 1 && rt[0] == ResponseTypeCode
}

// ImpliesHybridFlow is true when `code` is combined with `token` and / or `id_token`.
func (rt ResponseType) ImpliesHybridFlow() bool {
	return rt.Contains(ResponseTypeCode) && rt.ImpliesImplicitFlow()
}

func (rt ResponseType) String() string {
	values := make([]string, len(rt))
	for i, v := range rt {
		values[i] = string(v)
	}
	return strings.Join(values, " ")
}

// ResponseMode of the authorization response.
// Besides the well known modes any extension value is accepted.
type ResponseMode string

// Known reports if the mode is one of query, fragment or form_post.
func (m ResponseMode) Known() bool {
	switch m {
	case ResponseModeQuery, ResponseModeFragment, ResponseModeFormPost:
		return true
	default:
		return false
	}
}

// ImpliedResponseMode returns the response mode which is used to deliver
// a response for the passed response type.
// An explicit mode is always returned as is,
// otherwise the implicit and hybrid flows default to fragment and all others to query.
func ImpliedResponseMode(mode ResponseMode, rt ResponseType) ResponseMode {
	if mode != "" {
		return mode
	}
	if rt.ImpliesImplicitFlow() {
		return ResponseModeFragment
	}
	return ResponseModeQuery
}

type ScopeRequirement int

const (
	ScopeVoluntary ScopeRequirement = iota
	ScopeEssential
)

type ScopeValue struct {
	Value       string
	Requirement ScopeRequirement
}

// Scope is an ordered set of unique scope values.
type Scope []ScopeValue

func NewScope(values ...string) Scope {
	var s Scope
	for _, v := range values {
		s = s.Add(ScopeValue{Value: v})
	}
	return s
}

// ParseScope parses a space separated scope value.
func ParseScope(str string) Scope {
	return NewScope(strings.Fields(str)...)
}

// Add returns the scope with the value appended.
// Values which are already present or empty are ignored.
func (s Scope) Add(value ScopeValue) Scope {
	if value.Value == "" || s.Contains(value.Value) {
		return s
	}
	return append(s, value)
}

func (s Scope) Contains(value string) bool {
	for _, v := range s {
		if v.Value == value {
			return true
		}
	}
	return false
}

func (s Scope) Values() []string {
	values := make([]string, len(s))
	for i, v := range s {
		values[i] = v.Value
	}
	return values
}

func (s Scope) String() string {
	return strings.Join(s.Values(), " ")
}

type Display string

// ParseDisplay returns the display for one of the registered values.
func ParseDisplay(s string) (Display, error) {
	display := Display(s)
	switch display {
	case DisplayPage, DisplayPopup, DisplayTouch, DisplayWAP:
		return display, nil
	default:
		return "", fmt.Errorf("Unknown display type: %s", s)
	}
}

// Prompt is the set of values of the prompt parameter.
type Prompt []string

var errPromptNoneCombined = errors.New("Invalid prompt: none can only appear by itself")

// ParsePrompt parses a space separated prompt value.
// Unknown values and `none` combined with any other value are rejected.
func ParsePrompt(s string) (Prompt, error) {
	var prompt Prompt
	for _, p := range strings.Fields(s) {
		switch p {
		case PromptNone, PromptLogin, PromptConsent, PromptSelectAccount, PromptCreate:
		default:
			return nil, fmt.Errorf("Unknown prompt type: %s", p)
		}
		if !prompt.Contains(p) {
			prompt = append(prompt, p)
		}
	}
	if prompt.Contains(PromptNone) && len(prompt) > 1 {
		return nil, errPromptNoneCombined
	}
	return prompt, nil
}

func (p Prompt) Contains(value string) bool {
	for _, v := range p {
		if v == value {
			return true
		}
	}
	return false
}

func (p Prompt) String() string {
	return strings.Join(p, " ")
}

type Locales []language.Tag

// ParseLocales parses a space separated list of BCP47 language tags.
// Invalid tags are ignored.
func ParseLocales(s string) Locales {
	var l Locales
	for _, locale := range strings.Fields(s) {
		tag, err := language.Parse(locale)
		if err == nil && !tag.IsRoot() {
			l = append(l, tag)
		}
	}
	return l
}

func (l Locales) String() string {
	tags := make([]string, len(l))
	for i, tag := range l {
		tags[i] = tag.String()
	}
	return strings.Join(tags, " ")
}

func (l Locales) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Locales) UnmarshalText(text []byte) error {
	*l = ParseLocales(string(text))
	return nil
}
