// Package testutil holds request builders and response assertions shared by
// handler, middleware and router tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tfc/pkg/platform/httputil"
	authmw "tfc/pkg/platform/middleware/auth"
)

// NewRequest builds a bodiless request.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewJSONRequest marshals body and sends it as application/json.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err, "marshal request body")
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest serves req and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// SessionCookie returns the tfc_session cookie set on the response, or nil.
func SessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == authmw.CookieName {
			return c
		}
	}
	return nil
}

// WithSessionCookie attaches a session token the way a browser would.
func WithSessionCookie(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: authmw.CookieName, Value: token})
	return req
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), "decode response body: %s", rr.Body.String())
}

// UnmarshalErrorResponse decodes the {"ok":false,"error":...} envelope.
func UnmarshalErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	decodeJSON(t, rr, &resp)
	return resp
}

func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code: %s", rr.Body.String())
}

func AssertStatusOK(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	AssertStatus(t, rr, http.StatusOK)
}

// AssertRedirect checks for a 302 to location, the way guards and login
// handlers send browsers on.
func AssertRedirect(t *testing.T, rr *httptest.ResponseRecorder, location string) {
	t.Helper()
	AssertStatus(t, rr, http.StatusFound)
	assert.Equal(t, location, rr.Header().Get("Location"), "unexpected redirect target")
}

// AssertErrorCode checks the failure envelope carries ok=false and reason.
func AssertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, reason string) {
	t.Helper()
	resp := UnmarshalErrorResponse(t, rr)
	assert.False(t, resp.OK, "error envelope must carry ok=false")
	assert.Equal(t, reason, resp.Error, "unexpected error reason")
}

func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, status int, reason string) {
	t.Helper()
	AssertStatus(t, rr, status)
	AssertErrorCode(t, rr, reason)
}

// AssertJSONContains checks a top-level field of a JSON object response.
func AssertJSONContains(t *testing.T, rr *httptest.ResponseRecorder, key string, expected any) {
	t.Helper()
	var body map[string]any
	decodeJSON(t, rr, &body)
	assert.Equal(t, expected, body[key], "unexpected value for key %q", key)
}

// AssertJSONHasKey checks a top-level field is present, whatever its value.
func AssertJSONHasKey(t *testing.T, rr *httptest.ResponseRecorder, key string) {
	t.Helper()
	var body map[string]any
	decodeJSON(t, rr, &body)
	_, ok := body[key]
	assert.True(t, ok, "expected key %q not found in response", key)
}
