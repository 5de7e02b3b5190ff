package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanehq/meta-ads-mcp/internal/logging"
	"github.com/zanehq/meta-ads-mcp/internal/token"
)

const testBase = "http://localhost:8080"

func newTestServer() (*Server, *token.Service, *http.ServeMux) {
	tokens := token.NewService([]byte("test-secret"))
	srv := NewServer(testBase, tokens, "claude", logging.Nop())
	mux := http.NewServeMux()
	srv.Routes(mux)
	return srv, tokens, mux
}

func doJSON(t *testing.T, mux *http.ServeMux, req *http.Request) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec.Code, body
}

func TestMetadata(t *testing.T) {
	_, _, mux := newTestServer()

	code, body := doJSON(t, mux, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil))
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, testBase, body["issuer"])
	assert.Equal(t, testBase+"/oauth/authorize", body["authorization_endpoint"])
	assert.Equal(t, testBase+"/oauth/token", body["token_endpoint"])
	assert.Equal(t, testBase+"/oauth/register", body["registration_endpoint"])
	assert.Equal(t, testBase+"/oauth/revoke", body["revocation_endpoint"])
	assert.ElementsMatch(t, []any{"code", "token"}, body["response_types_supported"])
	assert.ElementsMatch(t, []any{"S256", "plain"}, body["code_challenge_methods_supported"])
	assert.Equal(t, []any{"none"}, body["token_endpoint_auth_methods_supported"])
	assert.ElementsMatch(t, []any{"mcp:read", "mcp:write"}, body["scopes_supported"])
}

func TestAuthorize_CodeRedirect(t *testing.T) {
	_, _, mux := newTestServer()

	req := httptest.NewRequest(http.MethodGet,
		"/oauth/authorize?response_type=code&client_id=abc&state=xyz-123&redirect_uri="+
			url.QueryEscape("https://client.example/callback"), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "client.example", loc.Host)
	assert.NotEmpty(t, loc.Query().Get("code"))
	assert.Equal(t, "xyz-123", loc.Query().Get("state"))
}

func TestAuthorize_RedirectURIWithExistingQuery(t *testing.T) {
	_, _, mux := newTestServer()

	req := httptest.NewRequest(http.MethodGet,
		"/oauth/authorize?redirect_uri="+url.QueryEscape("https://client.example/cb?session=9"), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	assert.Contains(t, loc, "session=9&")
	assert.NotContains(t, loc[strings.Index(loc, "?")+1:], "?")
}

func TestAuthorize_JSONFallback(t *testing.T) {
	_, tokens, mux := newTestServer()

	code, body := doJSON(t, mux, httptest.NewRequest(http.MethodGet, "/oauth/authorize?state=s1", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "s1", body["state"])

	cc, err := tokens.VerifyAuthorizationCode(body["code"].(string))
	require.NoError(t, err)
	assert.Equal(t, "claude", cc.Subject)
}

func TestAuthorize_ImplicitFragment(t *testing.T) {
	_, tokens, mux := newTestServer()

	req := httptest.NewRequest(http.MethodGet,
		"/oauth/authorize?response_type=token&redirect_uri="+url.QueryEscape("https://client.example/cb"), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)

	frag, err := url.ParseQuery(loc.Fragment)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", frag.Get("token_type"))
	assert.Equal(t, "31536000", frag.Get("expires_in"))

	subject, err := tokens.VerifyAccessToken(frag.Get("access_token"))
	require.NoError(t, err)
	assert.Equal(t, "claude", subject)
}

func TestAuthorize_UnsupportedResponseType(t *testing.T) {
	_, _, mux := newTestServer()

	code, body := doJSON(t, mux, httptest.NewRequest(http.MethodGet, "/oauth/authorize?response_type=id_token", nil))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "unsupported_response_type", body["error"])
}

func pkcePair() (verifier, challenge string) {
	verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))
	return verifier, base64.RawURLEncoding.EncodeToString(sum[:])
}

func authorizeCode(t *testing.T, mux *http.ServeMux, challenge string) string {
	t.Helper()
	target := "/oauth/authorize"
	if challenge != "" {
		target += "?code_challenge=" + url.QueryEscape(challenge) + "&code_challenge_method=S256"
	}
	status, body := doJSON(t, mux, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, status)
	return body["code"].(string)
}

func exchange(t *testing.T, mux *http.ServeMux, form url.Values) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doJSON(t, mux, req)
}

func TestToken_PKCERoundTrip(t *testing.T) {
	_, tokens, mux := newTestServer()
	verifier, challenge := pkcePair()
	code := authorizeCode(t, mux, challenge)

	status, body := exchange(t, mux, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"code_verifier": {verifier},
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Bearer", body["token_type"])
	assert.Equal(t, float64(31536000), body["expires_in"])
	assert.Equal(t, GrantedScope, body["scope"])

	subject, err := tokens.VerifyAccessToken(body["access_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "claude", subject)

	// The code is single use.
	status, body = exchange(t, mux, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"code_verifier": {verifier},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_grant", body["error"])
	assert.Contains(t, body["error_description"], "already used")
}

func TestToken_PKCEWrongVerifier(t *testing.T) {
	_, _, mux := newTestServer()
	_, challenge := pkcePair()
	code := authorizeCode(t, mux, challenge)

	status, body := exchange(t, mux, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"code_verifier": {"not-the-right-verifier-at-all-0000000000000"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_grant", body["error"])
}

func TestToken_PKCEMissingVerifier(t *testing.T) {
	_, _, mux := newTestServer()
	_, challenge := pkcePair()
	code := authorizeCode(t, mux, challenge)

	status, body := exchange(t, mux, url.Values{
		"grant_type": {"authorization_code"},
		"code":       {code},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", body["error"])
}

func TestToken_WithoutPKCE(t *testing.T) {
	_, _, mux := newTestServer()
	code := authorizeCode(t, mux, "")

	status, body := exchange(t, mux, url.Values{
		"grant_type": {"authorization_code"},
		"code":       {code},
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.NotEmpty(t, body["access_token"])
}

func TestToken_MissingCode(t *testing.T) {
	_, _, mux := newTestServer()

	status, body := exchange(t, mux, url.Values{"grant_type": {"authorization_code"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", body["error"])
}

func TestToken_GarbageCode(t *testing.T) {
	_, _, mux := newTestServer()

	status, body := exchange(t, mux, url.Values{
		"grant_type": {"authorization_code"},
		"code":       {"not.a.jwt"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_grant", body["error"])
}

func TestToken_ClientCredentials(t *testing.T) {
	_, tokens, mux := newTestServer()

	status, body := exchange(t, mux, url.Values{
		"grant_type": {"client_credentials"},
		"client_id":  {"svc-1"},
	})
	require.Equal(t, http.StatusOK, status)

	subject, err := tokens.VerifyAccessToken(body["access_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "claude", subject)
}

func TestToken_UnsupportedGrantType(t *testing.T) {
	_, _, mux := newTestServer()

	status, body := exchange(t, mux, url.Values{"grant_type": {"password"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "unsupported_grant_type", body["error"])
}

func TestToken_JSONBody(t *testing.T) {
	_, _, mux := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/oauth/token",
		strings.NewReader(`{"grant_type":"client_credentials","client_id":"svc-2"}`))
	req.Header.Set("Content-Type", "application/json")

	status, body := doJSON(t, mux, req)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["access_token"])
}

func TestRegister(t *testing.T) {
	_, _, mux := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/oauth/register",
		strings.NewReader(`{"client_name":"Claude","redirect_uris":["https://claude.ai/cb"]}`))
	req.Header.Set("Content-Type", "application/json")

	status, body := doJSON(t, mux, req)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, body["client_id"])
	assert.Equal(t, "Claude", body["client_name"])
	assert.Equal(t, []any{"https://claude.ai/cb"}, body["redirect_uris"])
	assert.Equal(t, "none", body["token_endpoint_auth_method"])
	assert.NotZero(t, body["client_id_issued_at"])
}

func TestRegister_EmptyBody(t *testing.T) {
	_, _, mux := newTestServer()

	status, body := doJSON(t, mux, httptest.NewRequest(http.MethodPost, "/oauth/register", nil))
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, body["client_id"])
}

func TestRevoke(t *testing.T) {
	_, tokens, mux := newTestServer()

	accessToken, err := tokens.IssueAccessToken("claude")
	require.NoError(t, err)

	status, _ := exchangeRevoke(t, mux, url.Values{"token": {accessToken}})
	assert.Equal(t, http.StatusOK, status)

	_, err = tokens.VerifyAccessToken(accessToken)
	assert.ErrorIs(t, err, token.ErrRevokedToken)
}

func TestRevoke_UnknownTokenStill200(t *testing.T) {
	_, _, mux := newTestServer()

	status, _ := exchangeRevoke(t, mux, url.Values{"token": {"whatever"}})
	assert.Equal(t, http.StatusOK, status)

	status, _ = exchangeRevoke(t, mux, url.Values{})
	assert.Equal(t, http.StatusOK, status)
}

func exchangeRevoke(t *testing.T, mux *http.ServeMux, form url.Values) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/oauth/revoke", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doJSON(t, mux, req)
}
