// Package oauth implements the OAuth 2.0 authorization server fronting
// the MCP endpoint: metadata discovery, the authorization-code flow
// with PKCE, dynamic client registration, and token revocation.
//
// There is no login UI. The server is single-tenant: every flow
// authorizes the configured default subject, and clients are accepted
// as registered without credentials. The security boundary is the
// deployment, not the client identity.
package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zanehq/meta-ads-mcp/internal/logging"
	"github.com/zanehq/meta-ads-mcp/internal/token"
)

// Scope granted to every issued token.
const GrantedScope = "mcp:read mcp:write"

// AccessTokenExpirySeconds is the expires_in value for issued tokens.
const AccessTokenExpirySeconds = int(token.AccessTokenTTL / time.Second)

// Server handles the OAuth endpoints.
type Server struct {
	baseURL string
	tokens  *token.Service
	subject string
	log     logging.Logger
}

// NewServer creates the OAuth server. All flows authorize subject.
func NewServer(baseURL string, tokens *token.Service, subject string, log logging.Logger) *Server {
	return &Server{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		subject: subject,
		log:     log,
	}
}

// Routes registers the OAuth endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/.well-known/oauth-authorization-server", s.handleMetadata)
	mux.HandleFunc("/oauth/authorize", s.handleAuthorize)
	mux.HandleFunc("/oauth/token", s.handleToken)
	mux.HandleFunc("/oauth/register", s.handleRegister)
	mux.HandleFunc("/oauth/revoke", s.handleRevoke)
}

// Metadata is the RFC 8414 authorization server metadata document.
func (s *Server) Metadata() map[string]any {
	return map[string]any{
		"issuer":                                s.baseURL,
		"authorization_endpoint":                s.baseURL + "/oauth/authorize",
		"token_endpoint":                        s.baseURL + "/oauth/token",
		"registration_endpoint":                 s.baseURL + "/oauth/register",
		"revocation_endpoint":                   s.baseURL + "/oauth/revoke",
		"response_types_supported":              []string{"code", "token"},
		"grant_types_supported":                 []string{"authorization_code", "client_credentials"},
		"code_challenge_methods_supported":      []string{token.PKCEMethodS256, token.PKCEMethodPlain},
		"token_endpoint_auth_methods_supported": []string{"none"},
		"scopes_supported":                      strings.Fields(GrantedScope),
	}
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Metadata())
}

// handleAuthorize runs the authorization leg. With no login UI the
// grant is immediate: a code (or implicit token) for the configured
// subject, delivered by redirect when the client gave a redirect_uri
// and as JSON otherwise.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			s.oauthError(w, "invalid_request", "malformed form body")
			return
		}
	}

	param := func(key string) string {
		if r.Method == http.MethodPost {
			if v := r.PostFormValue(key); v != "" {
				return v
			}
		}
		return r.URL.Query().Get(key)
	}

	responseType := param("response_type")
	if responseType == "" {
		responseType = "code"
	}
	clientID := param("client_id")
	redirectURI := param("redirect_uri")
	state := param("state")

	switch responseType {
	case "code":
		code, err := s.tokens.IssueAuthorizationCode(
			s.subject, clientID, param("code_challenge"), param("code_challenge_method"))
		if err != nil {
			s.log.Error("issue authorization code", "error", err)
			s.oauthError(w, "server_error", "could not issue authorization code")
			return
		}
		s.log.Info("authorization code issued", "client_id", clientID)

		if redirectURI == "" {
			writeJSON(w, http.StatusOK, map[string]string{"code": code, "state": state})
			return
		}
		params := url.Values{"code": {code}}
		if state != "" {
			params.Set("state", state)
		}
		http.Redirect(w, r, joinQuery(redirectURI, params), http.StatusFound)

	case "token":
		accessToken, err := s.tokens.IssueAccessToken(s.subject)
		if err != nil {
			s.log.Error("issue implicit token", "error", err)
			s.oauthError(w, "server_error", "could not issue token")
			return
		}
		s.log.Info("implicit token issued", "client_id", clientID)

		if redirectURI == "" {
			writeJSON(w, http.StatusOK, tokenResponse(accessToken))
			return
		}
		params := url.Values{
			"access_token": {accessToken},
			"token_type":   {"Bearer"},
			"expires_in":   {fmt.Sprint(AccessTokenExpirySeconds)},
		}
		if state != "" {
			params.Set("state", state)
		}
		// The implicit grant delivers the token in the fragment.
		http.Redirect(w, r, redirectURI+"#"+params.Encode(), http.StatusFound)

	default:
		s.oauthError(w, "unsupported_response_type", fmt.Sprintf("response_type %q is not supported", responseType))
	}
}

// handleToken exchanges grants for access tokens. Both form-encoded and
// JSON bodies are accepted; some MCP clients send JSON.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := parseTokenRequest(r)
	if err != nil {
		s.oauthError(w, "invalid_request", err.Error())
		return
	}

	switch body["grant_type"] {
	case "authorization_code":
		s.exchangeCode(w, body)
	case "client_credentials":
		accessToken, err := s.tokens.IssueAccessToken(s.subject)
		if err != nil {
			s.log.Error("issue token", "error", err)
			s.oauthError(w, "server_error", "could not issue token")
			return
		}
		s.log.Info("token issued", "grant", "client_credentials", "client_id", body["client_id"])
		writeJSON(w, http.StatusOK, tokenResponse(accessToken))
	default:
		s.oauthError(w, "unsupported_grant_type",
			fmt.Sprintf("grant_type %q is not supported", body["grant_type"]))
	}
}

func (s *Server) exchangeCode(w http.ResponseWriter, body map[string]string) {
	code := body["code"]
	if code == "" {
		s.oauthError(w, "invalid_request", "code is required")
		return
	}

	cc, err := s.tokens.VerifyAuthorizationCode(code)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpiredToken):
			s.oauthError(w, "invalid_grant", "authorization code expired")
		case errors.Is(err, token.ErrCodeConsumed):
			s.oauthError(w, "invalid_grant", "authorization code already used")
		default:
			s.oauthError(w, "invalid_grant", "invalid authorization code")
		}
		return
	}

	if cc.CodeChallenge != "" {
		verifier := body["code_verifier"]
		if verifier == "" {
			s.oauthError(w, "invalid_request", "code_verifier is required")
			return
		}
		if !token.VerifyPKCE(verifier, cc.CodeChallenge, cc.CodeChallengeMethod) {
			s.oauthError(w, "invalid_grant", "code_verifier does not match the challenge")
			return
		}
	}

	accessToken, err := s.tokens.IssueAccessToken(cc.Subject)
	if err != nil {
		s.log.Error("issue token", "error", err)
		s.oauthError(w, "server_error", "could not issue token")
		return
	}
	s.tokens.ConsumeCode(cc)

	s.log.Info("token issued", "grant", "authorization_code", "client_id", cc.ClientID)
	writeJSON(w, http.StatusOK, tokenResponse(accessToken))
}

// handleRegister implements RFC 7591 dynamic registration. Every client
// is accepted; the issued client_id is informational.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ClientName   string   `json:"client_name"`
		RedirectURIs []string `json:"redirect_uris"`
	}
	// An empty or malformed body still registers an anonymous client.
	_ = json.NewDecoder(r.Body).Decode(&req)

	clientID := uuid.NewString()
	s.log.Info("client registered", "client_id", clientID, "client_name", req.ClientName)

	writeJSON(w, http.StatusCreated, map[string]any{
		"client_id":                  clientID,
		"client_id_issued_at":        time.Now().Unix(),
		"client_name":                req.ClientName,
		"redirect_uris":              req.RedirectURIs,
		"grant_types":                []string{"authorization_code", "client_credentials"},
		"response_types":             []string{"code", "token"},
		"token_endpoint_auth_method": "none",
	})
}

// handleRevoke implements RFC 7009. Per the RFC the response is 200
// whether or not the token was known.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var revoked string
	if err := r.ParseForm(); err == nil {
		revoked = r.PostFormValue("token")
	}
	if revoked == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			revoked = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if revoked != "" {
		s.tokens.Revoke(revoked)
		s.log.Info("token revoked")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) oauthError(w http.ResponseWriter, code, description string) {
	status := http.StatusBadRequest
	if code == "server_error" {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func tokenResponse(accessToken string) map[string]any {
	return map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   AccessTokenExpirySeconds,
		"scope":        GrantedScope,
	}
}

// parseTokenRequest reads the token endpoint body as form or JSON.
func parseTokenRequest(r *http.Request) (map[string]string, error) {
	fields := make(map[string]string)

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("malformed JSON body")
		}
		for k, v := range raw {
			if s, ok := v.(string); ok {
				fields[k] = s
			}
		}
		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("malformed form body")
	}
	for k := range r.PostForm {
		fields[k] = r.PostFormValue(k)
	}
	return fields, nil
}

// joinQuery appends params to uri, respecting an existing query string.
func joinQuery(uri string, params url.Values) string {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + params.Encode()
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
