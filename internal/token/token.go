// Package token issues and verifies the self-contained credentials used
// by the OAuth layer: long-lived bearer access tokens and short-lived
// authorization codes, both HS256-signed JWTs. Because every claim is
// embedded and signature-verified, no server-side session state is
// needed; the only mutable state is the in-memory revocation set and
// the consumed-code set that enforces single use of authorization codes.
package token

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrRevokedToken = errors.New("token revoked")
	ErrCodeConsumed = errors.New("authorization code already used")
	ErrMissingClaim = errors.New("missing required claim")
)

// Token lifetimes. Access tokens are long-lived bearer credentials,
// matching the single-tenant integration model; codes expire quickly.
const (
	AccessTokenTTL = 365 * 24 * time.Hour
	AuthCodeTTL    = 10 * time.Minute
)

// Claim values for the "typ" claim distinguishing token kinds.
const (
	typeAccessToken = "access_token"
	typeAuthCode    = "auth_code"
)

// PKCE challenge methods.
const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

// CodeClaims are the verified contents of an authorization code.
type CodeClaims struct {
	Subject             string
	ClientID            string
	JTI                 string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
}

// Service signs and verifies tokens with a shared HS256 secret.
type Service struct {
	secret []byte

	mu       sync.Mutex
	revoked  map[string]struct{}  // revoked access tokens, keyed by token string
	consumed map[string]time.Time // used code JTIs -> code expiry, pruned lazily
	now      func() time.Time
}

// NewService creates a Service signing with the given secret.
func NewService(secret []byte) *Service {
	return &Service{
		secret:   secret,
		revoked:  make(map[string]struct{}),
		consumed: make(map[string]time.Time),
		now:      time.Now,
	}
}

// IssueAccessToken returns a signed bearer token for the subject.
func (s *Service) IssueAccessToken(subject string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": subject,
		"typ": typeAccessToken,
		"iat": now.Unix(),
		"exp": now.Add(AccessTokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// IssueAuthorizationCode returns a signed, short-lived authorization
// code bound to the client. When challenge is non-empty the PKCE
// parameters are embedded and enforced at exchange time.
func (s *Service) IssueAuthorizationCode(subject, clientID, challenge, method string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":       subject,
		"client_id": clientID,
		"jti":       uuid.NewString(),
		"typ":       typeAuthCode,
		"iat":       now.Unix(),
		"exp":       now.Add(AuthCodeTTL).Unix(),
	}
	if challenge != "" {
		if method == "" {
			method = PKCEMethodS256
		}
		claims["code_challenge"] = challenge
		claims["code_challenge_method"] = method
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyAccessToken validates a bearer token and returns its subject.
// Expired, tampered, and revoked tokens fail with distinct errors.
func (s *Service) VerifyAccessToken(tokenString string) (string, error) {
	s.mu.Lock()
	_, revoked := s.revoked[tokenString]
	s.mu.Unlock()
	if revoked {
		return "", ErrRevokedToken
	}

	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}

	if typ, _ := claims["typ"].(string); typ != typeAccessToken {
		return "", fmt.Errorf("%w: not an access token", ErrInvalidToken)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return sub, nil
}

// VerifyAuthorizationCode validates a code and returns its claims.
// The code is not marked as used; call ConsumeCode after a successful
// exchange.
func (s *Service) VerifyAuthorizationCode(code string) (*CodeClaims, error) {
	claims, err := s.parse(code)
	if err != nil {
		return nil, err
	}

	if typ, _ := claims["typ"].(string); typ != typeAuthCode {
		return nil, fmt.Errorf("%w: not an authorization code", ErrInvalidToken)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return nil, fmt.Errorf("%w: jti", ErrMissingClaim)
	}

	cc := &CodeClaims{
		Subject: sub,
		JTI:     jti,
	}
	cc.ClientID, _ = claims["client_id"].(string)
	cc.CodeChallenge, _ = claims["code_challenge"].(string)
	cc.CodeChallengeMethod, _ = claims["code_challenge_method"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		cc.ExpiresAt = exp.Time
	}

	s.mu.Lock()
	_, used := s.consumed[jti]
	s.mu.Unlock()
	if used {
		return nil, ErrCodeConsumed
	}

	return cc, nil
}

// ConsumeCode marks an authorization code as used. Subsequent
// verification of the same code fails with ErrCodeConsumed until the
// code would have expired anyway.
func (s *Service) ConsumeCode(cc *CodeClaims) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for jti, exp := range s.consumed {
		if exp.Before(now) {
			delete(s.consumed, jti)
		}
	}

	exp := cc.ExpiresAt
	if exp.IsZero() {
		exp = now.Add(AuthCodeTTL)
	}
	s.consumed[cc.JTI] = exp
}

// Revoke adds an access token to the in-memory revocation set. The set
// lives for the process lifetime only; tokens also self-expire.
func (s *Service) Revoke(tokenString string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenString] = struct{}{}
}

// VerifyPKCE checks a code verifier against the challenge recorded at
// authorization time. For S256 the challenge is the unpadded base64url
// encoding of SHA-256(verifier); for plain it is the verifier itself.
func VerifyPKCE(verifier, challenge, method string) bool {
	switch method {
	case PKCEMethodPlain:
		return verifier == challenge
	case PKCEMethodS256, "":
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return computed == challenge
	default:
		return false
	}
}

// parse validates the signature and registered claims of a JWT,
// mapping library errors onto the package's sentinel errors.
func (s *Service) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
