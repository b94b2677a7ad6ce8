// Package auth handles password sign-in, bearer tokens, and account
// administration.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"stylegen/internal/access"
	"stylegen/internal/domain"
	"stylegen/internal/infra"
)

const (
	audience = "stylegen-clients"

	// MinPasswordLength applies to every password set through the service.
	MinPasswordLength = 8

	userCacheTTL = 30 * time.Second
)

// Options configures a Service.
type Options struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Logger infra.Logger
	Now    func() time.Time
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Service signs users in and resolves bearer tokens to principals.
type Service struct {
	users  domain.UserRepository
	secret string
	issuer string
	ttl    time.Duration
	cost   int
	logger infra.Logger
	now    func() time.Time

	// revoked holds logged-out token ids until they would have expired.
	revoked *cache.Cache
	// accounts caches users looked up during authentication.
	accounts *cache.Cache
}

// NewService builds the auth service.
func NewService(users domain.UserRepository, opts Options) (*Service, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Issuer == "" {
		opts.Issuer = "stylegen"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:    users,
		secret:   opts.Secret,
		issuer:   opts.Issuer,
		ttl:      opts.TTL,
		cost:     opts.BcryptCost,
		logger:   infra.Component(opts.Logger, "auth"),
		now:      opts.Now,
		revoked:  cache.New(opts.TTL, 10*time.Minute),
		accounts: cache.New(userCacheTTL, time.Minute),
	}, nil
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Login checks credentials and issues a token. Unknown emails and wrong
// passwords are indistinguishable; disabled accounts are refused.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is disabled", domain.ErrForbidden)
	}

	now := s.now()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("auth: record last login failed")
	} else {
		user.LastLogin = &now
	}

	expires := now.Add(s.ttl)
	token, err := SignJWT(s.secret, TokenClaims{
		ID:        uuid.NewString(),
		Sub:       user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		IssuedAt:  now.Unix(),
		NotBefore: now.Unix(),
		Exp:       expires.Unix(),
		Issuer:    s.issuer,
		Audience:  audience,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", user.ID).Msg("auth: login")
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// Logout revokes the token until its natural expiry.
func (s *Service) Logout(token string) error {
	claims, err := VerifyJWT(s.secret, s.issuer, token, s.now())
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	ttl := time.Unix(claims.Exp, 0).Sub(s.now())
	if claims.Exp == 0 || ttl <= 0 {
		ttl = s.ttl
	}
	s.revoked.Set(revocationKey(claims), struct{}{}, ttl)
	return nil
}

// Authenticate resolves a bearer token to a principal. The role comes from
// the stored account so elevation and deactivation apply to live tokens.
func (s *Service) Authenticate(ctx context.Context, token string) (access.Principal, error) {
	claims, err := VerifyJWT(s.secret, s.issuer, token, s.now())
	if err != nil {
		return access.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if _, revoked := s.revoked.Get(revocationKey(claims)); revoked {
		return access.Principal{}, fmt.Errorf("%w: token revoked", domain.ErrUnauthorized)
	}
	user, err := s.account(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return access.Principal{}, fmt.Errorf("%w: unknown account", domain.ErrUnauthorized)
		}
		return access.Principal{}, err
	}
	if !user.IsActive {
		return access.Principal{}, fmt.Errorf("%w: account is disabled", domain.ErrUnauthorized)
	}
	return access.Principal{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}

func (s *Service) account(ctx context.Context, id string) (*domain.User, error) {
	if v, ok := s.accounts.Get(id); ok {
		return v.(*domain.User), nil
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.accounts.SetDefault(id, user)
	return user, nil
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, p access.Principal) (*domain.User, error) {
	if p.Anonymous() {
		return nil, domain.ErrUnauthorized
	}
	return s.users.GetByID(ctx, p.UserID)
}

// CreateUser registers an account. Only admins may call it.
func (s *Service) CreateUser(ctx context.Context, p access.Principal, email, password string, role domain.UserRole) (*domain.User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	return s.createUser(ctx, email, password, role)
}

func (s *Service) createUser(ctx context.Context, email, password string, role domain.UserRole) (*domain.User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, fmt.Errorf("%w: invalid email address", domain.ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, MinPasswordLength)
	}
	if role == "" {
		role = domain.UserRoleUser
	}
	if _, ok := domain.ParseRole(string(role)); !ok {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("auth: user created")
	return user, nil
}

// ListUsers returns every account. Admin only.
func (s *Service) ListUsers(ctx context.Context, p access.Principal) ([]domain.User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

// ToggleActive flips the active flag of an account. Admins cannot disable
// themselves.
func (s *Service) ToggleActive(ctx context.Context, p access.Principal, userID string) (*domain.User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	if userID == p.UserID {
		return nil, fmt.Errorf("%w: cannot change your own status", domain.ErrValidation)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated, err := s.users.SetActive(ctx, userID, !user.IsActive)
	if err != nil {
		return nil, err
	}
	s.accounts.Delete(userID)
	return updated, nil
}

// Elevate grants the admin role.
func (s *Service) Elevate(ctx context.Context, p access.Principal, userID string) (*domain.User, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}
	updated, err := s.users.SetRole(ctx, userID, domain.UserRoleAdmin)
	if err != nil {
		return nil, err
	}
	s.accounts.Delete(userID)
	return updated, nil
}

// EnsureAdmin creates the bootstrap admin when the email is not registered.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return false, nil
	}
	if _, err := s.users.GetByEmail(ctx, normalizeEmail(email)); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	if _, err := s.createUser(ctx, email, password, domain.UserRoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

// CreateUserUnchecked registers an account without an admin principal. It
// backs the useradmin command.
func (s *Service) CreateUserUnchecked(ctx context.Context, email, password string, role domain.UserRole) (*domain.User, error) {
	return s.createUser(ctx, email, password, role)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func revocationKey(c *TokenClaims) string {
	if c.ID != "" {
		return c.ID
	}
	return fmt.Sprintf("%s:%d", c.Sub, c.IssuedAt)
}
