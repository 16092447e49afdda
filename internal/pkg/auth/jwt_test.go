package auth

import (
	"testing"
	"time"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
)

func TestSignAndVerify(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Sign("user_1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	got, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != "user_1" {
		t.Fatalf("subject = %q", got)
	}
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("test-secret")

	expired, err := v.Sign("user_1", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	foreign, err := NewVerifier("other-secret").Sign("user_1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	noSubject, err := v.Sign("", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", foreign},
		{"no subject", noSubject},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(tt.token); !domain.IsKind(err, domain.KindUnauthorized) {
				t.Fatalf("expected UNAUTHORIZED, got %v", err)
			}
		})
	}
}

func TestFromHeader(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := FromHeader(tt.header)
			if (err == nil) != tt.ok {
				t.Fatalf("err = %v, ok = %v", err, tt.ok)
			}
			if got != tt.want {
				t.Fatalf("token = %q, want %q", got, tt.want)
			}
		})
	}
}
