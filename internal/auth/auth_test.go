package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kalambet/tutord/internal/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	clock := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	return New(st, WithBcryptCost(bcrypt.MinCost), WithTokenTTL(time.Hour), WithClock(clock.now)), clock
}

func TestSignupLoginResolve(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.Signup(ctx, "  Ada@Example.com ", "s3cret")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	token, err := svc.Login(ctx, "ada@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	got, err := svc.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != id {
		t.Errorf("Resolve = %q, want %q", got, id)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	_, err := svc.Signup(ctx, "ADA@example.com", "other")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestSignup_InvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	tests := []struct {
		name, email, password string
	}{
		{"empty email", "", "pw"},
		{"not an email", "ada", "pw"},
		{"display name", "Ada <ada@example.com>", "pw"},
		{"empty password", "ada@example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Signup(context.Background(), tt.email, tt.password); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.Signup(ctx, "ada@example.com", "right")

	for _, tc := range []struct{ email, pw string }{
		{"ada@example.com", "wrong"},
		{"bob@example.com", "right"},
		{"garbage", "right"},
	} {
		if _, err := svc.Login(ctx, tc.email, tc.pw); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q, %q) err = %v, want ErrInvalidCredentials", tc.email, tc.pw, err)
		}
	}
}

func TestResolve_Expired(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	svc.Signup(ctx, "ada@example.com", "pw")
	token, err := svc.Login(ctx, "ada@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	clock.t = clock.t.Add(time.Hour)
	if _, err := svc.Resolve(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestResolve_UnknownOrMalformed(t *testing.T) {
	svc, _ := newTestService(t)
	for _, tok := range []string{"", "not-a-uuid", "6f1c2a8e-3b7d-4a55-9f0e-1d2c3b4a5e6f"} {
		if _, err := svc.Resolve(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Resolve(%q) err = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestLogout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.Signup(ctx, "ada@example.com", "pw")
	token, _ := svc.Login(ctx, "ada@example.com", "pw")

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Resolve(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Resolve after logout err = %v", err)
	}
	if err := svc.Logout(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("second Logout err = %v", err)
	}
}
