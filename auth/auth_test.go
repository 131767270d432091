package auth

import (
	"collab-live/domain"
	"collab-live/errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const secret = "test_secret_long_enough_for_hs256"

func TestTokenManager_RoundTrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager(secret, time.Hour)

	// Given a token generated for a user
	token, err := tokens.GenerateToken("user-123", []string{"admin"})
	req.NoError(err)

	// When it is validated
	claims, err := tokens.ValidateToken(token)

	// Then the user id and roles are preserved
	req.NoError(err)
	req.Equal("user-123", claims.UserID)
	req.Equal([]string{"admin"}, claims.Roles)
	req.Equal(issuer, claims.Issuer)
}

func TestTokenManager_RejectsForeignSecretAndExpiry(t *testing.T) {
	req := require.New(t)

	// Given a token signed with another secret
	other, err := NewTokenManager("another_secret_entirely", time.Hour).GenerateToken("u1", nil)
	req.NoError(err)
	_, err = NewTokenManager(secret, time.Hour).ValidateToken(other)
	req.ErrorIs(err, errors.ErrInvalidToken)

	// Given an already expired token
	expired, err := NewTokenManager(secret, -time.Minute).GenerateToken("u1", nil)
	req.NoError(err)
	_, err = NewTokenManager(secret, time.Hour).ValidateToken(expired)
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  domain.IdentityID
		valid bool
	}{
		{"Plain id", "u1", "u1", true},
		{"Uuid", "0b6c2a34-0b1f-4c1e-9d4e-0d7b9a7c1f11", "0b6c2a34-0b1f-4c1e-9d4e-0d7b9a7c1f11", true},
		{"Trimmed", "  u2 ", "u2", true},
		{"Empty", "", "", false},
		{"Inner space", "u 1", "", false},
		{"Path separator", "a/b", "", false},
		{"Too long", strings.Repeat("x", 65), "", false},
		{"Non ascii", "été", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseIdentity(tt.raw)
			require.Equal(t, tt.valid, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokenManager(secret, time.Hour)
	var seen domain.IdentityID
	handler := Middleware(tokens, func(w http.ResponseWriter, err error) {
		w.WriteHeader(errors.HTTPStatus(err))
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing header is unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer nope")
		handler.ServeHTTP(rec, r)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token injects the caller", func(t *testing.T) {
		req := require.New(t)
		token, err := tokens.GenerateToken("alice", nil)
		req.NoError(err)
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(rec, r)
		req.Equal(http.StatusNoContent, rec.Code)
		req.Equal(domain.IdentityID("alice"), seen)
	})
}
