// Package auth verifies the bearer credential presented by REST calls and
// websocket handshakes and resolves it to a user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"careportal/internal/model"
)

// ErrUnauthorized is the only error callers see. The wrapped reason is for logs.
var ErrUnauthorized = errors.New("unauthorized")

var (
	ErrNoToken      = errors.New("no token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownUser  = errors.New("user not found")
)

// UserLookup resolves a user id from a verified token.
type UserLookup interface {
	User(ctx context.Context, id string) (model.User, error)
}

// Authenticator verifies HS256 tokens whose subject is a user id.
type Authenticator struct {
	secret []byte
	issuer string
	users  UserLookup
	now    func() time.Time
}

// New creates an Authenticator. An empty issuer disables the issuer check.
func New(secret, issuer string, users UserLookup) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, users: users, now: time.Now}
}

// Authenticate verifies token and returns the user it names.
// Every failure wraps ErrUnauthorized together with one of ErrNoToken,
// ErrInvalidToken or ErrUnknownUser.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (model.User, error) {
	if strings.TrimSpace(token) == "" {
		return model.User{}, fmt.Errorf("%w: %w", ErrUnauthorized, ErrNoToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %w: %v", ErrUnauthorized, ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return model.User{}, fmt.Errorf("%w: %w: missing subject", ErrUnauthorized, ErrInvalidToken)
	}

	u, err := a.users.User(ctx, claims.Subject)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %w: %v", ErrUnauthorized, ErrUnknownUser, err)
	}
	return u, nil
}

// Issue signs a token for userID valid for ttl.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// TokenFromRequest extracts the credential from the Authorization header or,
// for browser websocket handshakes that cannot set headers, the token query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Reason returns the short failure reason wrapped in err, for logging.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "no_token"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrUnknownUser):
		return "user_not_found"
	}
	return "unknown"
}

type contextKey struct{}

// WithUser stores the authenticated user on ctx.
func WithUser(ctx context.Context, u model.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// UserFrom returns the authenticated user stored by WithUser.
func UserFrom(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(contextKey{}).(model.User)
	return u, ok
}
