package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func issue(t *testing.T, method jwt.SigningMethod, key interface{}, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(method, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Nickname: "leader",
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestParseValidToken(t *testing.T) {
	p := NewParser(secret)
	principal, err := p.Parse(issue(t, jwt.SigningMethodHS256, []byte(secret), "17", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, int64(17), principal.MemberID)
	assert.Equal(t, "leader", principal.Nickname)
}

func TestParseRejects(t *testing.T) {
	p := NewParser(secret)
	future := time.Now().Add(time.Hour)

	tests := map[string]string{
		"wrong secret":    issue(t, jwt.SigningMethodHS256, []byte("other"), "17", future),
		"expired":         issue(t, jwt.SigningMethodHS256, []byte(secret), "17", time.Now().Add(-time.Minute)),
		"non numeric sub": issue(t, jwt.SigningMethodHS256, []byte(secret), "abc", future),
		"none alg":        issue(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, "17", future),
		"garbage":         "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := p.Parse(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
