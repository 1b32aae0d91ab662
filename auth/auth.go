// Package auth implements the single-operator login: a bcrypt-checked
// password exchanged for a short-lived HS256 bearer token.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sethvargo/go-password/password"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultTTL is the lifetime of an issued token.
	DefaultTTL = 60 * time.Minute

	// TokenType is the scheme clients put in the Authorization header.
	TokenType = "bearer"

	generatedSecretLength = 64
)

var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrInvalidToken       = errors.New("could not validate credentials")
)

// Token is the login response body.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Options configures an Authenticator.
type Options struct {
	Username     string
	PasswordHash string

	// Secret signs tokens. When empty a random one is generated, so tokens do
	// not survive a restart.
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

// Authenticator checks the operator's credentials and issues tokens.
type Authenticator struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

func New(opts Options) (*Authenticator, error) {
	if opts.Username == "" {
		return nil, errors.New("admin username is required")
	}
	if _, err := bcrypt.Cost([]byte(opts.PasswordHash)); err != nil {
		return nil, fmt.Errorf("admin password hash: %w", err)
	}

	secret := opts.Secret
	if secret == "" {
		generated, err := password.Generate(generatedSecretLength, 10, 0, false, true)
		if err != nil {
			return nil, fmt.Errorf("could not generate token secret: %w", err)
		}
		secret = generated
	}

	a := &Authenticator{
		username:     opts.Username,
		passwordHash: []byte(opts.PasswordHash),
		secret:       []byte(secret),
		ttl:          opts.TTL,
		now:          opts.Now,
	}
	if a.ttl <= 0 {
		a.ttl = DefaultTTL
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// Username is the only account that can log in.
func (a *Authenticator) Username() string {
	return a.username
}

// Login issues a token for valid credentials. The password hash is always
// compared so an unknown username costs the same as a wrong password.
func (a *Authenticator) Login(username, pass string) (*Token, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(pass))
	if !userOK || passErr != nil {
		return nil, ErrInvalidCredentials
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   a.username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, TokenType: TokenType, ExpiresAt: expires.UTC()}, nil
}

// Verify returns the token's subject when the token is valid, unexpired and
// issued to the operator.
func (a *Authenticator) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject != a.username {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// HashPassword produces the bcrypt hash stored in the configuration.
func HashPassword(pass string) (string, error) {
	if pass == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
