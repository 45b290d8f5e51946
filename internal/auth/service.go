package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/you/go-globe-planner/internal/config"
	"github.com/you/go-globe-planner/internal/users"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSignup      = errors.New("invalid signup")
	ErrInvalidToken       = errors.New("invalid token")
)

const (
	maxUsernameLen = 150
	minPasswordLen = 8
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

type Identity struct {
	UserID   string
	Username string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// CurrentUser returns the identity the middleware attached to ctx.
func CurrentUser(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

type Service struct {
	store  users.Store
	secret []byte
	ttl    time.Duration
	cost   int
}

func NewService(cfg *config.Config, store users.Store) *Service {
	return &Service{
		store:  store,
		secret: []byte(cfg.JWTSecret),
		ttl:    time.Hour,
		cost:   bcrypt.DefaultCost,
	}
}

type SignupRequest struct {
	Username  string `json:"username"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

func (r SignupRequest) validate() error {
	switch {
	case r.Username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidSignup)
	case len(r.Username) > maxUsernameLen:
		return fmt.Errorf("%w: username must be at most %d characters", ErrInvalidSignup, maxUsernameLen)
	case !usernamePattern.MatchString(r.Username):
		return fmt.Errorf("%w: username may contain only letters, digits and @/./+/-/_", ErrInvalidSignup)
	case r.Password1 != r.Password2:
		return fmt.Errorf("%w: the two password fields didn't match", ErrInvalidSignup)
	case len(r.Password1) < minPasswordLen:
		return fmt.Errorf("%w: password must contain at least %d characters", ErrInvalidSignup, minPasswordLen)
	case strings.Trim(r.Password1, "0123456789") == "":
		return fmt.Errorf("%w: password can't be entirely numeric", ErrInvalidSignup)
	}
	return nil
}

// Signup creates the user (and its empty profile) and returns a session token.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (users.User, string, error) {
	if err := req.validate(); err != nil {
		return users.User{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password1), s.cost)
	if err != nil {
		return users.User{}, "", fmt.Errorf("signup: hash password: %w", err)
	}
	u, err := s.store.Create(ctx, req.Username, hash)
	if err != nil {
		return users.User{}, "", fmt.Errorf("signup: %w", err)
	}
	tok, err := s.IssueToken(u)
	if err != nil {
		return users.User{}, "", err
	}
	return u, tok, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.store.ByUsername(ctx, username)
	if errors.Is(err, users.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.IssueToken(u)
}

func (s *Service) IssueToken(u users.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"name": u.Username,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

func (s *Service) ParseToken(tok string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	sub, _ := claims.GetSubject()
	name, _ := claims["name"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{UserID: sub, Username: name}, nil
}
