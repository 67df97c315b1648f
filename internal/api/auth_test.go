package api

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
)

func TestUserId(t *testing.T) {
	tcases := []struct {
		name     string
		ctx      context.Context
		userId   int
		expected bool
	}{
		{
			name:     "no user ID",
			ctx:      context.Background(),
			expected: false,
		},
		{
			name:     "user ID set",
			ctx:      WithUserId(context.Background(), 42),
			userId:   42,
			expected: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			userId, ok := UserId(tc.ctx)
			assert.Equal(t, tc.expected, ok, "expected UserId to return %v", tc.expected)
			assert.Equal(t, tc.userId, userId, "expected UserId to return %d", tc.userId)
		})
	}
}

func Test_extractUserIdFromToken(t *testing.T) {
	signingKey := []byte("test-key")
	app := &ChatApp{signingKey: signingKey}

	signToken := func(key []byte, claims jwt.MapClaims) string {
		str, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		assert.NoError(t, err, "failed to sign test token")
		return str
	}

	tcases := []struct {
		name        string
		tokenString string
		userId      int
		expectError bool
	}{
		{
			name:        "valid token",
			tokenString: signToken(signingKey, jwt.MapClaims{userIdClaim: 42}),
			userId:      42,
			expectError: false,
		},
		{
			name:        "token signed with wrong key",
			tokenString: signToken([]byte("other-key"), jwt.MapClaims{userIdClaim: 42}),
			expectError: true,
		},
		{
			name:        "token without user id claim",
			tokenString: signToken(signingKey, jwt.MapClaims{"sub": "someone"}),
			expectError: true,
		},
		{
			name:        "malformed token",
			tokenString: "not.a.token",
			expectError: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			userId, err := app.extractUserIdFromToken(tc.tokenString)
			if tc.expectError {
				assert.Error(t, err, "expected error extracting user id")
				return
			}
			assert.NoError(t, err, "expected no error extracting user id")
			assert.Equal(t, tc.userId, userId, "expected user id from claim")
		})
	}
}
