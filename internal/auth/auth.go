package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/store"
)

const MinPasswordLength = 6

var (
	ErrInvalidCredentials   = errors.New("auth: invalid email or password")
	ErrInvalidToken         = errors.New("auth: invalid token")
	ErrPasswordTooShort     = fmt.Errorf("auth: password must be at least %d characters", MinPasswordLength)
	ErrPasswordMismatch     = errors.New("auth: passwords do not match")
	ErrWrongCurrentPassword = errors.New("auth: current password is incorrect")
)

// Claims represents the JWT claims we issue and expect.
type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Authenticator signs in admin accounts and manages their passwords.
type Authenticator struct {
	users  store.UserStorer
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator signing HS256 tokens with secret.
func NewAuthenticator(users store.UserStorer, secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{users: users, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Login checks the credentials and returns a signed token for the account.
func (a *Authenticator) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := a.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := a.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// IssueToken signs a token for user.
func (a *Authenticator) IssueToken(user *domain.User) (string, error) {
	now := a.now()
	claims := Claims{
		Email: user.Email,
		Roles: []string{user.Role},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates and parses a JWT token string.
func (a *Authenticator) ParseToken(tokenStr string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ChangePassword replaces the password of the account identified by email after
// checking the current one.
func (a *Authenticator) ChangePassword(ctx context.Context, email, current, next, confirm string) error {
	if len(next) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if next != confirm {
		return ErrPasswordMismatch
	}
	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrWrongCurrentPassword
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := a.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}
	zap.L().Info("Admin password changed", zap.String("userID", user.ID))
	return nil
}

// EnsureAdmin creates the admin account when it does not exist yet.
func (a *Authenticator) EnsureAdmin(ctx context.Context, email, password string) error {
	_, err := a.users.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return err
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = a.users.CreateUser(ctx, &domain.User{Email: email, PasswordHash: hash, Role: domain.RoleAdmin})
	if err != nil && !errors.Is(err, store.ErrUserEmailExists) {
		return err
	}
	zap.L().Info("Seeded admin account", zap.String("email", email))
	return nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// GetBearerToken extracts the Bearer token from the Authorization header.
func GetBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// HasRole checks if the user has a specific role.
func HasRole(userRoles []string, required string) bool {
	for _, r := range userRoles {
		if r == required {
			return true
		}
	}
	return false
}
