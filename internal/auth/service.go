// Package auth registers and logs in users with email and password, and
// carries the logged in user through request contexts.
package auth

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/quesgenie/internal/domain"
	"github.com/victornm/quesgenie/internal/errors"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordLength = 72
)

// Users is the part of the store auth needs.
type Users interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error)
	FetchUser(ctx context.Context, id string) (*domain.User, error)
	FetchUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

type Config struct {
	Users    Users
	Secret   string
	TokenTTL time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type Service struct {
	users  Users
	tokens *Tokens
	cost   int
}

func NewService(c Config) *Service {
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 24 * time.Hour
	}

	return &Service{
		users:  c.Users,
		tokens: NewTokens(c.Secret, c.TokenTTL),
		cost:   c.BcryptCost,
	}
}

type Credentials struct {
	Email    string
	Password string
}

// Session is a logged in user with its access token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

var errBadCredentials = errors.New(errors.CodeUnauthenticated, errors.WithMessage("invalid email or password"))

func (s *Service) Register(ctx context.Context, req Credentials) (*Session, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if n := len(req.Password); n < MinPasswordLength || n > MaxPasswordLength {
		return nil, errors.InvalidArgument("password must be between %d and %d bytes", MinPasswordLength, MaxPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, errors.Internal(err)
	}

	u, err := s.users.CreateUser(ctx, email, string(hash))
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "user registered", "user_id", u.ID)

	return s.session(u)
}

func (s *Service) Login(ctx context.Context, req Credentials) (*Session, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, errBadCredentials
	}

	u, err := s.users.FetchUserByEmail(ctx, email)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password))
	if stderrors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	if !u.IsActive {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessage("account is disabled"))
	}

	return s.session(u)
}

// Me returns the logged in user.
func (s *Service) Me(ctx context.Context) (*domain.User, error) {
	id, err := UserID(ctx)
	if err != nil {
		return nil, err
	}

	u, err := s.users.FetchUser(ctx, id)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, errors.Unauthenticated(err)
	}
	return u, err
}

// Authenticate checks an access token.
func (s *Service) Authenticate(token string) (Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Identity{}, errors.Unauthenticated(err)
	}

	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

func (s *Service) session(u *domain.User) (*Session, error) {
	token, exp, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return nil, errors.Internal(err)
	}

	return &Session{User: u, Token: token, ExpiresAt: exp}, nil
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return "", errors.InvalidArgument("invalid email address %q", email)
	}
	return strings.ToLower(addr.Address), nil
}
