/*
Package auth implements the session gateway: registration, login and
session verification for the leave engine.

PURPOSE:
  Issues and validates the credential token the API carries in an
  HTTP-only cookie. The core engine trusts this package's verdict and
  never re-implements authentication.

TOKEN FORMAT:
  HS256-signed JWT with user_id, role, jti (uuid), iat and exp claims.
  Tokens expire after 72 hours. The cookie itself is opaque to clients.

PASSWORDS:
  Hashed with bcrypt at DefaultCost. Hashes never leave this package or
  the store; Verify and Login return users with the hash cleared.

FAILURE MODES:
  Login and Register return typed leave errors (validation, duplicate
  email, unauthenticated). Verify DEGRADES: an absent, malformed or
  expired token yields (nil, nil) rather than an error, so callers can
  route to a login flow instead of failing the read.

SEE ALSO:
  - api/middleware.go: Extracts the cookie and calls Verify
  - leave/authz.go: Role checks on the verified principal
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/leave-engine/leave"
)

// TokenTTL is the session token lifetime.
const TokenTTL = 72 * time.Hour

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Service is the session gateway.
type Service struct {
	users  leave.UserStore
	secret []byte

	// Now is the clock used for token issue/expiry. Overridable in tests.
	Now func() time.Time
}

// NewService creates a session gateway over the given user store.
func NewService(users leave.UserStore, secret string) *Service {
	return &Service{users: users, secret: []byte(secret), Now: time.Now}
}

// =============================================================================
// REGISTRATION
// =============================================================================

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Nome     string
	Cognome  string
	Email    string
	Password string
	Role     leave.Role // defaults to RoleEmployee when empty
}

// Register validates input, hashes the password and persists the user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (leave.User, error) {
	nome := strings.TrimSpace(in.Nome)
	cognome := strings.TrimSpace(in.Cognome)
	email := strings.TrimSpace(strings.ToLower(in.Email))

	if len([]rune(nome)) < 2 {
		return leave.User{}, &leave.ValidationError{Field: "nome", Reason: "at least 2 characters"}
	}
	if len([]rune(cognome)) < 2 {
		return leave.User{}, &leave.ValidationError{Field: "cognome", Reason: "at least 2 characters"}
	}
	if !emailPattern.MatchString(email) {
		return leave.User{}, &leave.ValidationError{Field: "email", Reason: "not a valid email address"}
	}
	if len(in.Password) < MinPasswordLength {
		return leave.User{}, &leave.ValidationError{Field: "password", Reason: "at least 6 characters"}
	}

	role := in.Role
	if role == "" {
		role = leave.RoleEmployee
	}
	if !role.Valid() {
		return leave.User{}, &leave.ValidationError{Field: "ruolo", Reason: "must be Dipendente or Responsabile"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return leave.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := s.users.SaveUser(ctx, leave.User{
		Nome:         nome,
		Cognome:      cognome,
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    s.Now().UTC(),
	})
	if err != nil {
		return leave.User{}, err
	}
	u.PasswordHash = ""
	return u, nil
}

// =============================================================================
// LOGIN
// =============================================================================

// Login checks credentials and mints a session token.
// Wrong email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (leave.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return leave.User{}, "", &leave.ValidationError{Field: "credentials", Reason: "email and password are required"}
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return leave.User{}, "", err
	}
	if u == nil {
		return leave.User{}, "", leave.ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return leave.User{}, "", leave.ErrUnauthenticated
	}

	token, err := s.mintToken(u)
	if err != nil {
		return leave.User{}, "", err
	}

	out := *u
	out.PasswordHash = ""
	return out, token, nil
}

func (s *Service) mintToken(u *leave.User) (string, error) {
	now := s.Now()
	claims := jwt.MapClaims{
		"user_id": u.ID,
		"role":    string(u.Role),
		"jti":     uuid.NewString(),
		"iat":     now.Unix(),
		"exp":     now.Add(TokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// =============================================================================
// VERIFICATION
// =============================================================================

// Verify parses the token and loads the principal behind it.
// Invalid, expired or absent tokens yield (nil, nil): unauthenticated,
// not an internal error.
func (s *Service) Verify(ctx context.Context, tokenString string) (*leave.User, error) {
	if tokenString == "" {
		return nil, nil
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.Now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenMalformed) ||
			errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, nil
		}
		return nil, nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, nil
	}
	idFloat, ok := claims["user_id"].(float64)
	if !ok {
		return nil, nil
	}

	u, err := s.users.GetUser(ctx, int(idFloat))
	if err != nil {
		return nil, err
	}
	if u == nil {
		// Token refers to a deleted account.
		return nil, nil
	}
	u.PasswordHash = ""
	return u, nil
}
