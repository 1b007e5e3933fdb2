package introspect

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistwave/unicornsh/internal/idl"
	"github.com/mistwave/unicornsh/internal/shell"
)

const testToken = "operator-secret"

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	hash, err := HashToken(testToken)
	require.NoError(t, err)

	sh := shell.New(shell.Options{})
	l, err := idl.FromJSON("nav/move", []byte(`{"completion": {"type": "empty"}}`), true, nil)
	require.NoError(t, err)
	sh.Registry().Upsert(l)

	return New(sh, nil, hash, []byte(hash)), hash
}

func doRequest(t *testing.T, s *Server, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func loginAndGetToken(t *testing.T, s *Server) string {
	t.Helper()
	rec := doRequest(t, s, http.MethodPost, "/token", `{"token":"`+testToken+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["bearer"])
	return body["bearer"]
}

func Test_handleLogin_wrongTokenIsUnauthorized(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/token", `{"token":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_handleLogin_correctTokenIssuesBearer(t *testing.T) {
	s, _ := newTestServer(t)
	tok := loginAndGetToken(t, s)
	assert.NotEmpty(t, tok)
}

func Test_protectedRoute_rejectsMissingAuth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/registry", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_protectedRoute_rejectsGarbageBearer(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/registry", "", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_handleRegistry_listsTopicsWithValidToken(t *testing.T) {
	s, _ := newTestServer(t)
	tok := loginAndGetToken(t, s)

	rec := doRequest(t, s, http.MethodGet, "/registry", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["topics"], "nav/move")
}

func Test_handleGrammar_returnsComposedGrammarAsJSON(t *testing.T) {
	s, _ := newTestServer(t)
	tok := loginAndGetToken(t, s)

	rec := doRequest(t, s, http.MethodGet, "/grammar", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "keyword")
}

func Test_handleBindings_reportsUnboundChannelsAsNull(t *testing.T) {
	s, _ := newTestServer(t)
	tok := loginAndGetToken(t, s)

	rec := doRequest(t, s, http.MethodGet, "/bindings", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]*string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body["stdout"])
}

func Test_handleHistory_withNoStoreReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	tok := loginAndGetToken(t, s)

	rec := doRequest(t, s, http.MethodGet, "/history", "", tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_parseLimit_fallsBackToDefaultOnInvalidInput(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/history?limit=not-a-number", nil)
	assert.Equal(t, 50, parseLimit(req))

	req = httptest.NewRequest(http.MethodGet, "/history?limit=5", nil)
	assert.Equal(t, 5, parseLimit(req))

	req = httptest.NewRequest(http.MethodGet, "/history?limit=-5", nil)
	assert.Equal(t, 50, parseLimit(req))
}
