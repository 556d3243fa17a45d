// Package auth implements the single-admin login: credential verification
// and signed, time-limited admin tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin is the only role the site knows.
const RoleAdmin = "admin"

// TokenTTL is the validity window of an issued token.
const TokenTTL = 7 * 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// User is the identity carried by a token.
type User struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// CredentialVerifier checks an email/password pair.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (User, error)
}

// StaticVerifier accepts exactly one configured admin account. The password
// is either compared in constant time or, when PasswordHash is set, checked
// against a bcrypt hash.
type StaticVerifier struct {
	Email        string
	Password     string
	PasswordHash string
}

// Verify implements CredentialVerifier.
func (v StaticVerifier) Verify(_ context.Context, email, password string) (User, error) {
	if v.Email == "" || (v.Password == "" && v.PasswordHash == "") {
		return User{}, ErrInvalidCredentials
	}

	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))),
		[]byte(strings.ToLower(v.Email)),
	) == 1

	var passOK bool
	if v.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(v.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(v.Password)) == 1
	}

	if !emailOK || !passOK {
		return User{}, ErrInvalidCredentials
	}
	return User{Email: v.Email, Role: RoleAdmin}, nil
}

// claims is the token payload.
type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and parses HS256 tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. The secret must be non-empty.
func NewIssuer(secret, issuer string) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("auth: token secret is empty")
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: TokenTTL, now: time.Now}, nil
}

// Issue returns a signed token for u.
func (i *Issuer) Issue(u User) (string, error) {
	now := i.now()
	c := claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse validates a token and returns its user. Every failure (malformed,
// bad signature, other algorithm, expired) wraps ErrInvalidToken.
func (i *Issuer) Parse(token string) (User, error) {
	var c claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Email == "" || c.Role == "" {
		return User{}, fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}
	return User{Email: c.Email, Role: c.Role}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
