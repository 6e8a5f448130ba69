package oidc

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"
)

func TestDefaultToServerError(t *testing.T) {
	type args struct {
		err         error
		description string
	}
	tests := []struct {
		name string
		args args
		want *Error
	}{
		{
			name: "default",
			args: args{
				err:         io.ErrClosedPipe,
				description: "oops",
			},
			want: &Error{
				ErrorType:   ServerError,
				Description: "oops",
				Parent:      io.ErrClosedPipe,
			},
		},
		{
			name: "our Error",
			args: args{
				err:         ErrAccessDenied(),
				description: "oops",
			},
			want: &Error{
				ErrorType:   AccessDenied,
				Description: "Access denied by resource owner or authorization server",
			},
		},
		{
			name: "wrapped Error",
			args: args{
				err:         fmt.Errorf("wrapped: %w", ErrInvalidGrant()),
				description: "oops",
			},
			want: &Error{
				ErrorType:   InvalidGrant,
				Description: "Invalid grant",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultToServerError(tt.args.err, tt.args.description)
			assert.ErrorIs(t, got, tt.want)
			assert.Equal(t, tt.want.Description, got.Description)
		})
	}
}

func TestError_Is(t *testing.T) {
	err := ErrInvalidRequest().WithDescription("something else").WithStatusCode(http.StatusTeapot)
	assert.ErrorIs(t, err, ErrInvalidRequest())
	assert.False(t, errors.Is(err, ErrInvalidScope()))
	assert.False(t, errors.Is(err, io.EOF))
}

func TestError_AppendDescription(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		msg  string
		want string
	}{
		{
			name: "default description",
			err:  ErrInvalidRequest(),
			msg:  `Missing "scope" parameter`,
			want: `Invalid request: Missing "scope" parameter`,
		},
		{
			name: "empty description",
			err:  &Error{ErrorType: InvalidRequest},
			msg:  "detail",
			want: "detail",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.AppendDescription(tt.msg)
			assert.Equal(t, tt.want, got.Description)
		})
	}
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"invalid request", ErrInvalidRequest(), http.StatusBadRequest},
		{"invalid client", ErrInvalidClient(), http.StatusUnauthorized},
		{"access denied", ErrAccessDenied(), http.StatusForbidden},
		{"server error", ErrServerError(), http.StatusInternalServerError},
		{"temporarily unavailable", ErrTemporarilyUnavailable(), http.StatusServiceUnavailable},
		{"explicit status", ErrInvalidGrant().WithStatusCode(http.StatusUnauthorized), http.StatusUnauthorized},
		{"unknown type", &Error{ErrorType: "custom"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestError_Error(t *testing.T) {
	err := ErrServerError().WithParent(io.EOF)
	assert.Equal(t, "ErrorType=server_error Description=Unexpected server error Parent=EOF", err.Error())
	assert.ErrorIs(t, err, io.EOF)
}

func TestErrInvalidRequestRedirectURI(t *testing.T) {
	assert.True(t, ErrInvalidRequestRedirectURI().IsRedirectDisabled())
	assert.False(t, ErrInvalidRequest().IsRedirectDisabled())
}

func TestError_LogLevel(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want slog.Level
	}{
		{
			name: "server error",
			err:  ErrServerError(),
			want: slog.LevelError,
		},
		{
			name: "authorization pending",
			err:  ErrAuthorizationPending(),
			want: slog.LevelInfo,
		},
		{
			name: "slow down",
			err:  ErrSlowDown(),
			want: slog.LevelInfo,
		},
		{
			name: "some other error",
			err:  ErrAccessDenied(),
			want: slog.LevelWarn,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.LogLevel()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestError_LogValue(t *testing.T) {
	type fields struct {
		Parent      error
		ErrorType   errorType
		Description string
		URI         string
		State       string
	}
	tests := []struct {
		name   string
		fields fields
		want   slog.Value
	}{
		{
			name: "parent",
			fields: fields{
				Parent: io.EOF,
			},
			want: slog.GroupValue(slog.Any("parent", io.EOF)),
		},
		{
			name: "description",
			fields: fields{
				Description: "oops",
			},
			want: slog.GroupValue(slog.String("description", "oops")),
		},
		{
			name: "errorType",
			fields: fields{
				ErrorType: ExpiredToken,
			},
			want: slog.GroupValue(slog.String("type", string(ExpiredToken))),
		},
		{
			name: "state",
			fields: fields{
				State: "123",
			},
			want: slog.GroupValue(slog.String("state", "123")),
		},
		{
			name: "all fields",
			fields: fields{
				Parent:      io.EOF,
				Description: "oops",
				ErrorType:   ExpiredToken,
				URI:         "https://example.com/errors/expired",
				State:       "123",
			},
			want: slog.GroupValue(
				slog.Any("parent", io.EOF),
				slog.String("description", "oops"),
				slog.String("type", string(ExpiredToken)),
				slog.String("uri", "https://example.com/errors/expired"),
				slog.String("state", "123"),
			),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Error{
				Parent:      tt.fields.Parent,
				ErrorType:   tt.fields.ErrorType,
				Description: tt.fields.Description,
				URI:         tt.fields.URI,
				State:       tt.fields.State,
			}
			got := e.LogValue()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseError(t *testing.T) {
	err := error(&ParseError{
		Message:      `Missing "scope" parameter`,
		ErrorObject:  ErrInvalidRequest().AppendDescription(`Missing "scope" parameter`),
		ResponseMode: ResponseModeQuery,
	})
	assert.EqualError(t, err, `Missing "scope" parameter`)
	assert.ErrorIs(t, err, ErrInvalidRequest())

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
	assert.False(t, parseErr.Redirectable())
}
