package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careportal/internal/model"
)

type users map[string]model.User

func (u users) User(_ context.Context, id string) (model.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return model.User{}, errors.New("not found")
}

func newTestAuthenticator() *Authenticator {
	return New("test-secret", "careportal", users{
		"u1": {ID: "u1", Name: "Aiko", Role: model.RolePatient},
	})
}

func TestAuthenticate_Success(t *testing.T) {
	a := newTestAuthenticator()
	token, err := a.Issue("u1", time.Hour)
	require.NoError(t, err)

	u, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "Aiko", u.Name)
}

func TestAuthenticate_FailuresLookAlike(t *testing.T) {
	a := newTestAuthenticator()

	expired := New("test-secret", "careportal", nil)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Issue("u1", time.Hour)
	require.NoError(t, err)

	wrongKey, err := New("other-secret", "careportal", nil).Issue("u1", time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := New("test-secret", "elsewhere", nil).Issue("u1", time.Hour)
	require.NoError(t, err)

	unknown, err := a.Issue("ghost", time.Hour)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1", Issuer: "careportal"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	cases := []struct {
		name   string
		token  string
		reason string
	}{
		{"empty", "", "no_token"},
		{"malformed", "not.a.jwt", "invalid_token"},
		{"expired", expiredToken, "invalid_token"},
		{"wrong key", wrongKey, "invalid_token"},
		{"wrong issuer", wrongIssuer, "invalid_token"},
		{"no expiry", noExp, "invalid_token"},
		{"unknown user", unknown, "user_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Authenticate(context.Background(), tc.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.Equal(t, tc.reason, Reason(err))
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=query-token", nil)
	assert.Equal(t, "query-token", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", TokenFromRequest(r), "header wins over query")

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, TokenFromRequest(r))
}

func TestUserContext(t *testing.T) {
	_, ok := UserFrom(context.Background())
	assert.False(t, ok)

	ctx := WithUser(context.Background(), model.User{ID: "u1"})
	u, ok := UserFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)
}
