package oidc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestAudience_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Audience
		wantErr bool
	}{
		{"string", `"client"`, Audience{"client"}, false},
		{"array", `["client","api"]`, Audience{"client", "api"}, false},
		{"null", `null`, nil, false},
		{"number", `1`, nil, true},
		{"array with number", `["client",1]`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Audience
			err := json.Unmarshal([]byte(tt.data), &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewAudience(t *testing.T) {
	_, err := NewAudience()
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = NewAudience("client", "")
	assert.ErrorIs(t, err, ErrInvalidValue)

	got, err := NewAudience("client", "api")
	require.NoError(t, err)
	assert.True(t, got.Contains("api"))
	assert.False(t, got.Contains("other"))
}

func TestTime(t *testing.T) {
	now := time.Unix(time.Now().Unix(), 0)
	assert.Equal(t, now, FromTime(now).AsTime())
	assert.Equal(t, Time(0), FromTime(time.Time{}))
	assert.True(t, Time(0).AsTime().IsZero())

	var got Time
	require.NoError(t, json.Unmarshal([]byte(`1700000000.6`), &got))
	assert.Equal(t, Time(1700000001), got)
	assert.Error(t, json.Unmarshal([]byte(`"1700000000"`), &got))
}

func TestParseResponseType(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		want     ResponseType
		implicit bool
		code     bool
		hybrid   bool
		wantErr  bool
	}{
		{name: "empty", s: " ", wantErr: true},
		{name: "code", s: "code", want: ResponseType{ResponseTypeCode}, code: true},
		{name: "id_token", s: "id_token", want: ResponseType{ResponseTypeIDToken}, implicit: true},
		{name: "implicit", s: "id_token token", want: ResponseType{ResponseTypeIDToken, ResponseTypeToken}, implicit: true},
		{name: "hybrid", s: "code id_token", want: ResponseType{ResponseTypeCode, ResponseTypeIDToken}, implicit: true, hybrid: true},
		{name: "duplicates", s: "code  code", want: ResponseType{ResponseTypeCode}, code: true},
		{name: "none", s: "none", want: ResponseType{ResponseTypeNone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponseType(tt.s)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.implicit, got.ImpliesImplicitFlow())
			assert.Equal(t, tt.code, got.ImpliesCodeFlow())
			assert.Equal(t, tt.hybrid, got.ImpliesHybridFlow())
		})
	}
}

func TestResponseType_Equal(t *testing.T) {
	a := NewResponseType(ResponseTypeIDToken, ResponseTypeToken)
	b := NewResponseType(ResponseTypeToken, ResponseTypeIDToken)
	assert.True(t, a.Equal(b))
	assert.Equal(t, "id_token token", a.String())
	assert.Equal(t, "token id_token", b.String())
	assert.False(t, a.Equal(NewResponseType(ResponseTypeToken)))
}

func TestImpliedResponseMode(t *testing.T) {
	tests := []struct {
		name string
		mode ResponseMode
		rt   ResponseType
		want ResponseMode
	}{
		{"code", "", ResponseType{ResponseTypeCode}, ResponseModeQuery},
		{"implicit", "", ResponseType{ResponseTypeIDToken, ResponseTypeToken}, ResponseModeFragment},
		{"hybrid", "", ResponseType{ResponseTypeCode, ResponseTypeIDToken}, ResponseModeFragment},
		{"none", "", ResponseType{ResponseTypeNone}, ResponseModeQuery},
		{"explicit form_post", ResponseModeFormPost, ResponseType{ResponseTypeCode}, ResponseModeFormPost},
		{"explicit query", ResponseModeQuery, ResponseType{ResponseTypeIDToken}, ResponseModeQuery},
		{"extension", "query.jwt", ResponseType{ResponseTypeCode}, "query.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ImpliedResponseMode(tt.mode, tt.rt))
		})
	}
}

func TestResponseMode_Known(t *testing.T) {
	assert.True(t, ResponseModeQuery.Known())
	assert.True(t, ResponseModeFragment.Known())
	assert.True(t, ResponseModeFormPost.Known())
	assert.False(t, ResponseMode("query.jwt").Known())
}

func TestScope(t *testing.T) {
	s := ParseScope(" openid  profile openid email ")
	assert.Equal(t, []string{"openid", "profile", "email"}, s.Values())
	assert.Equal(t, "openid profile email", s.String())
	assert.True(t, s.Contains(ScopeOpenID))
	assert.False(t, s.Contains(ScopePhone))

	s = s.Add(ScopeValue{Value: ScopePhone, Requirement: ScopeEssential})
	assert.Equal(t, ScopeEssential, s[3].Requirement)
	assert.Len(t, s.Add(ScopeValue{}), 4)

	assert.Nil(t, ParseScope(""))
}

func TestParseDisplay(t *testing.T) {
	tests := []struct {
		s       string
		want    Display
		wantErr string
	}{
		{s: "page", want: DisplayPage},
		{s: "popup", want: DisplayPopup},
		{s: "touch", want: DisplayTouch},
		{s: "wap", want: DisplayWAP},
		{s: "mobile", wantErr: "Unknown display type: mobile"},
	}
	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			got, err := ParseDisplay(tt.s)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePrompt(t *testing.T) {
	tests := []struct {
		name    string
		s       string
		want    Prompt
		wantErr string
	}{
		{name: "empty", s: ""},
		{name: "none", s: "none", want: Prompt{PromptNone}},
		{name: "login consent", s: "login consent", want: Prompt{PromptLogin, PromptConsent}},
		{name: "duplicate", s: "login login", want: Prompt{PromptLogin}},
		{name: "none combined", s: "none login", wantErr: "Invalid prompt: none can only appear by itself"},
		{name: "unknown", s: "login later", wantErr: "Unknown prompt type: later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrompt(tt.s)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLocales(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want Locales
	}{
		{"empty", "", nil},
		{"single", "en", Locales{language.English}},
		{"multiple", "de-CH en", Locales{language.MustParse("de-CH"), language.English}},
		{"invalid skipped", "en !!! und", Locales{language.English}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLocales(tt.s))
		})
	}
}

func TestLocales_Text(t *testing.T) {
	l := Locales{language.MustParse("de-CH"), language.English}
	text, err := l.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "de-CH en", string(text))

	var got Locales
	require.NoError(t, got.UnmarshalText(text))
	assert.Equal(t, l, got)
}
