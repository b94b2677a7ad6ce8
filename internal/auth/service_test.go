package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"stylegen/internal/access"
	"stylegen/internal/adapter/memstore"
	"stylegen/internal/domain"
)

func newTestService(t *testing.T) (*Service, domain.Repositories) {
	t.Helper()
	repos := memstore.New().Repositories()
	svc, err := NewService(repos.Users, Options{
		Secret:     "test-secret",
		Issuer:     "stylegen-test",
		TTL:        time.Hour,
		Logger:     zerolog.Nop(),
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repos
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUserUnchecked(ctx, " Alice@Example.com ", "correct horse", domain.UserRoleUser)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email = %q", user.Email)
	}

	sess, err := svc.Login(ctx, "ALICE@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.User.LastLogin == nil {
		t.Fatal("last login not recorded")
	}
	p, err := svc.Authenticate(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.UserID != user.ID || p.Role != domain.UserRoleUser {
		t.Fatalf("principal = %+v", p)
	}

	if err := svc.Logout(sess.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, sess.Token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("revoked token accepted: %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUserUnchecked(ctx, "bob@example.com", "password123", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	cases := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{name: "wrong password", email: "bob@example.com", password: "nope-nope", want: domain.ErrUnauthorized},
		{name: "unknown email", email: "eve@example.com", password: "password123", want: domain.ErrUnauthorized},
		{name: "missing fields", email: "", password: "", want: domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Login(ctx, tc.email, tc.password); !errors.Is(err, tc.want) {
				t.Fatalf("Login = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := repos.Users.SetActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := svc.Login(ctx, "bob@example.com", "password123"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("disabled login = %v", err)
	}
}

func TestAdminOperations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.EnsureAdmin(ctx, "root@example.com", "rootpassword")
	if err != nil || !created {
		t.Fatalf("EnsureAdmin = %v, %v", created, err)
	}
	if again, err := svc.EnsureAdmin(ctx, "root@example.com", "rootpassword"); err != nil || again {
		t.Fatalf("second EnsureAdmin = %v, %v", again, err)
	}

	sess, err := svc.Login(ctx, "root@example.com", "rootpassword")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	admin, err := svc.Authenticate(ctx, sess.Token)
	if err != nil || !admin.IsAdmin() {
		t.Fatalf("admin principal = %+v, %v", admin, err)
	}

	carol, err := svc.CreateUser(ctx, admin, "carol@example.com", "carolpassword", domain.UserRoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := svc.CreateUser(ctx, admin, "carol@example.com", "carolpassword", domain.UserRoleUser); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate CreateUser = %v", err)
	}
	regular := access.Principal{UserID: carol.ID, Role: domain.UserRoleUser}
	if _, err := svc.CreateUser(ctx, regular, "dave@example.com", "davepassword", ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("non-admin CreateUser = %v", err)
	}
	if _, err := svc.ListUsers(ctx, regular); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("non-admin ListUsers = %v", err)
	}

	carolSess, err := svc.Login(ctx, "carol@example.com", "carolpassword")
	if err != nil {
		t.Fatalf("carol login: %v", err)
	}
	toggled, err := svc.ToggleActive(ctx, admin, carol.ID)
	if err != nil || toggled.IsActive {
		t.Fatalf("ToggleActive = %+v, %v", toggled, err)
	}
	if _, err := svc.Authenticate(ctx, carolSess.Token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("disabled account token accepted: %v", err)
	}
	if _, err := svc.ToggleActive(ctx, admin, admin.UserID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("self toggle = %v", err)
	}

	elevated, err := svc.Elevate(ctx, admin, carol.ID)
	if err != nil || elevated.Role != domain.UserRoleAdmin {
		t.Fatalf("Elevate = %+v, %v", elevated, err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newTestService(t)
	cases := []struct {
		name     string
		email    string
		password string
		role     domain.UserRole
	}{
		{name: "bad email", email: "not-an-email", password: "longenough"},
		{name: "short password", email: "x@example.com", password: "short"},
		{name: "unknown role", email: "y@example.com", password: "longenough", role: "owner"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateUserUnchecked(context.Background(), tc.email, tc.password, tc.role)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestVerifyJWT(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	token, err := SignJWT("s3cret", TokenClaims{Sub: "u1", Issuer: "iss", NotBefore: now.Unix(), Exp: now.Add(time.Minute).Unix()})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	_, body, _ := strings.Cut(token, ".")
	unsigned := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`)) + "." + strings.SplitN(body, ".", 2)[0] + "."
	cases := []struct {
		name   string
		secret string
		issuer string
		token  string
		at     time.Time
		want   error
	}{
		{name: "valid", secret: "s3cret", issuer: "iss", token: token, at: now},
		{name: "wrong secret", secret: "other", issuer: "iss", token: token, at: now, want: ErrInvalidToken},
		{name: "wrong issuer", secret: "s3cret", issuer: "elsewhere", token: token, at: now, want: ErrInvalidToken},
		{name: "expired", secret: "s3cret", issuer: "iss", token: token, at: now.Add(2 * time.Minute), want: ErrTokenExpired},
		{name: "garbage", secret: "s3cret", issuer: "iss", token: "a.b", at: now, want: ErrInvalidToken},
		{name: "tampered", secret: "s3cret", issuer: "iss", token: strings.Replace(token, ".", ".x", 1), at: now, want: ErrInvalidToken},
		{name: "alg none", secret: "s3cret", issuer: "iss", token: unsigned, at: now, want: ErrInvalidToken},
		{name: "within skew after expiry", secret: "s3cret", issuer: "iss", token: token, at: now.Add(time.Minute + 10*time.Second)},
		{name: "not yet valid", secret: "s3cret", issuer: "iss", token: token, at: now.Add(-time.Minute), want: ErrInvalidToken},
		{name: "extra segment", secret: "s3cret", issuer: "iss", token: token + ".x", at: now, want: ErrInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := VerifyJWT(tc.secret, tc.issuer, tc.token, tc.at)
			if tc.want == nil {
				if err != nil || claims.Sub != "u1" {
					t.Fatalf("VerifyJWT = %+v, %v", claims, err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("VerifyJWT err = %v, want %v", err, tc.want)
			}
		})
	}
}
