package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenIssuer_RoundTrip(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer(testSecret, "reactivities", time.Hour)

	token, err := issuer.Issue("user-1", "bob")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	user, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if user.ID != "user-1" || user.Username != "bob" {
		t.Errorf("user = %+v", user)
	}
	if time.Until(user.ExpiresAt) <= 0 {
		t.Error("token should not be expired")
	}
}

func TestTokenIssuer_Rejects(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer(testSecret, "reactivities", time.Hour)
	valid, err := issuer.Issue("user-1", "bob")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	expired := NewTokenIssuer(testSecret, "reactivities", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _ := expired.Issue("user-1", "bob")

	otherIssuer, _ := NewTokenIssuer(testSecret, "someone-else", time.Hour).Issue("user-1", "bob")
	otherSecret, _ := NewTokenIssuer("ffffffffffffffffffffffffffffffff", "reactivities", time.Hour).Issue("user-1", "bob")

	noUsername, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "reactivities",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "  ", ErrMissingToken},
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"tampered", valid + "x", ErrInvalidToken},
		{"expired", expiredToken, ErrInvalidToken},
		{"wrong issuer", otherIssuer, ErrInvalidToken},
		{"wrong secret", otherSecret, ErrInvalidToken},
		{"missing username", noUsername, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Parse(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUserContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if UserFromContext(ctx) != nil {
		t.Error("empty context should have no user")
	}
	if UsernameFromContext(ctx) != "" || UserIDFromContext(ctx) != "" {
		t.Error("empty context should yield empty identifiers")
	}

	ctx = ContextWithUser(ctx, &User{ID: "u-1", Username: "jane"})
	if UserIDFromContext(ctx) != "u-1" {
		t.Errorf("UserIDFromContext = %q", UserIDFromContext(ctx))
	}
	if UsernameFromContext(ctx) != "jane" {
		t.Errorf("UsernameFromContext = %q", UsernameFromContext(ctx))
	}
}
