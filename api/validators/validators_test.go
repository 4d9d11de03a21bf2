package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

type sampleLine struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

type sampleBody struct {
	Phone  string       `json:"phone" validate:"required,msisdn"`
	Method string       `json:"method" validate:"omitempty,oneof=pickup courier"`
	Lines  []sampleLine `json:"lines" validate:"required,min=1,dive"`
}

func decode(body string) (sampleBody, error) {
	var dest sampleBody
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &dest)
	return dest, err
}

func fieldDetails(t *testing.T, err error) map[string]string {
	t.Helper()
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok, "expected field details, got %T", pkgerrors.As(err).Details())
	return details
}

func TestDecodeJSONBody(t *testing.T) {
	body, err := decode(`{"phone":"0712 345 678","method":"courier","lines":[{"quantity":2}]}`)
	require.NoError(t, err)
	assert.Equal(t, "courier", body.Method)
	assert.Equal(t, 2, body.Lines[0].Quantity)
}

func TestDecodeJSONBodyValidationDetails(t *testing.T) {
	_, err := decode(`{"method":"drone","lines":[{"quantity":0}]}`)
	details := fieldDetails(t, err)
	assert.Equal(t, "is required", details["phone"])
	assert.Equal(t, "must be at least 1", details["lines[0].quantity"])
	assert.True(t, strings.HasPrefix(details["method"], "must be one of"))
}

func TestDecodeJSONBodyRejectsUnreachablePhone(t *testing.T) {
	_, err := decode(`{"phone":"0812345678","lines":[{"quantity":1}]}`)
	assert.Equal(t, "must be a valid mobile number", fieldDetails(t, err)["phone"])
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"unknown field":  `{"phone":"0712345678","lines":[{"quantity":1}],"extra":true}`,
		"trailing value": `{"phone":"0712345678","lines":[{"quantity":1}]} {}`,
		"wrong type":     `{"phone":712345678}`,
		"too large":      `{"phone":"` + strings.Repeat("7", MaxBodyBytes) + `"}`,
	}
	for name, body := range cases {
		_, err := decode(body)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%s: got %v", name, err)
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	got, err := ParseUUIDParam(withParam("itemId", id.String()), "itemId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	for _, raw := range []string{"nope", ""} {
		_, err := ParseUUIDParam(withParam("itemId", raw), "itemId")
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "raw %q", raw)
	}
}

func TestParseQueryInt(t *testing.T) {
	cases := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 20},
		{query: "limit=50", want: 50},
		{query: "limit=500", wantErr: true},
		{query: "limit=abc", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil), "limit", 20, 1, 100)
		if tc.wantErr {
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), tc.query)
			continue
		}
		require.NoError(t, err, tc.query)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseQueryBool(t *testing.T) {
	got, err := ParseQueryBool(httptest.NewRequest(http.MethodGet, "/?unreadOnly=true", nil), "unreadOnly", false)
	require.NoError(t, err)
	assert.True(t, got)

	_, err = ParseQueryBool(httptest.NewRequest(http.MethodGet, "/?unreadOnly=maybe", nil), "unreadOnly", false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	cases := map[string]struct {
		in   string
		max  int
		want string
	}{
		"trims":            {in: "  great seller \n", want: "great seller"},
		"drops controls":   {in: "fast\x00 delivery\x07", want: "fast delivery"},
		"keeps newlines":   {in: "line one\nline two", want: "line one\nline two"},
		"caps runes":       {in: "ñandú rápido", max: 5, want: "ñandú"},
		"no split in rune": {in: "€€€", max: 2, want: "€€"},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, SanitizeString(tc.in, tc.max), name)
	}
}

func withParam(key, value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}
