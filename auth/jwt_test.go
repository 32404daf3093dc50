package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestDisplayNameFromClaims(t *testing.T) {
	cases := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"full name", jwt.MapClaims{"name": "Ana Souza"}, "Ana"},
		{"single word", jwt.MapClaims{"name": "Ana"}, "Ana"},
		{"whitespace", jwt.MapClaims{"name": "   "}, "Player"},
		{"missing", jwt.MapClaims{}, "Player"},
		{"not a string", jwt.MapClaims{"name": 42}, "Player"},
	}
	for _, tc := range cases {
		if got := DisplayNameFromClaims(tc.claims); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestUserIDFromClaims(t *testing.T) {
	if got := UserIDFromClaims(jwt.MapClaims{"sub": "u1"}); got != "u1" {
		t.Errorf("expected sub preferred, got %q", got)
	}
	if got := UserIDFromClaims(jwt.MapClaims{"id": "u2"}); got != "u2" {
		t.Errorf("expected the id fallback, got %q", got)
	}
	if got := UserIDFromClaims(jwt.MapClaims{"sub": "", "id": "u2"}); got != "u2" {
		t.Errorf("expected an empty sub skipped, got %q", got)
	}
	if got := UserIDFromClaims(jwt.MapClaims{}); got != "" {
		t.Errorf("expected empty for no ids, got %q", got)
	}
}

func TestValidateTokenRequiresBaseURL(t *testing.T) {
	if _, err := ValidateToken("", "some-token"); err == nil {
		t.Error("expected an error without a base URL")
	}
}
