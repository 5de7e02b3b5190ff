package token

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key")

func newTestService() *Service {
	return NewService(testSecret)
}

// signClaims builds a raw token outside the service, for expiry and
// tampering scenarios.
func signClaims(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestAccessToken_RoundTrip(t *testing.T) {
	svc := newTestService()

	tok, err := svc.IssueAccessToken("user-1")
	require.NoError(t, err)

	sub, err := svc.VerifyAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestAccessToken_Expired(t *testing.T) {
	svc := newTestService()

	tok := signClaims(t, testSecret, jwt.MapClaims{
		"sub": "user-1",
		"typ": "access_token",
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := svc.VerifyAccessToken(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAccessToken_TamperedSignature(t *testing.T) {
	svc := newTestService()

	tok := signClaims(t, []byte("some-other-secret"), jwt.MapClaims{
		"sub": "user-1",
		"typ": "access_token",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := svc.VerifyAccessToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.NotErrorIs(t, err, ErrExpiredToken)
}

func TestAccessToken_WrongType(t *testing.T) {
	svc := newTestService()

	code, err := svc.IssueAuthorizationCode("user-1", "client", "", "")
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(code)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessToken_Revoked(t *testing.T) {
	svc := newTestService()

	tok, err := svc.IssueAccessToken("user-1")
	require.NoError(t, err)

	svc.Revoke(tok)

	_, err = svc.VerifyAccessToken(tok)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

func TestAuthorizationCode_RoundTrip(t *testing.T) {
	svc := newTestService()

	code, err := svc.IssueAuthorizationCode("user-1", "client-abc", "challenge-xyz", PKCEMethodS256)
	require.NoError(t, err)

	cc, err := svc.VerifyAuthorizationCode(code)
	require.NoError(t, err)
	assert.Equal(t, "user-1", cc.Subject)
	assert.Equal(t, "client-abc", cc.ClientID)
	assert.Equal(t, "challenge-xyz", cc.CodeChallenge)
	assert.Equal(t, PKCEMethodS256, cc.CodeChallengeMethod)
	assert.NotEmpty(t, cc.JTI)
	assert.WithinDuration(t, time.Now().Add(AuthCodeTTL), cc.ExpiresAt, time.Minute)
}

func TestAuthorizationCode_SingleUse(t *testing.T) {
	svc := newTestService()

	code, err := svc.IssueAuthorizationCode("user-1", "client-abc", "", "")
	require.NoError(t, err)

	cc, err := svc.VerifyAuthorizationCode(code)
	require.NoError(t, err)
	svc.ConsumeCode(cc)

	_, err = svc.VerifyAuthorizationCode(code)
	assert.ErrorIs(t, err, ErrCodeConsumed)
}

func TestAuthorizationCode_Expired(t *testing.T) {
	svc := newTestService()

	code := signClaims(t, testSecret, jwt.MapClaims{
		"sub": "user-1",
		"jti": "code-1",
		"typ": "auth_code",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	_, err := svc.VerifyAuthorizationCode(code)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthorizationCode_RejectsAccessToken(t *testing.T) {
	svc := newTestService()

	tok, err := svc.IssueAccessToken("user-1")
	require.NoError(t, err)

	_, err = svc.VerifyAuthorizationCode(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyPKCE_S256(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	assert.True(t, VerifyPKCE(verifier, challenge, PKCEMethodS256))
	assert.False(t, VerifyPKCE("wrong-verifier", challenge, PKCEMethodS256))

	// Challenge must be unpadded base64url; a padded variant must not match.
	padded := base64.URLEncoding.EncodeToString(sum[:])
	if padded != challenge {
		assert.False(t, VerifyPKCE(verifier, padded, PKCEMethodS256))
	}
}

func TestVerifyPKCE_Plain(t *testing.T) {
	assert.True(t, VerifyPKCE("secret-verifier", "secret-verifier", PKCEMethodPlain))
	assert.False(t, VerifyPKCE("secret-verifier", "other", PKCEMethodPlain))
}

func TestVerifyPKCE_UnknownMethod(t *testing.T) {
	assert.False(t, VerifyPKCE("v", "v", "S512"))
}
