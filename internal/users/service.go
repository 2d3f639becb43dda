package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kigalimart/storefront/internal/auth"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

const minPasswordLen = 6

type Store interface {
	Create(ctx context.Context, u User) error
	ByEmail(ctx context.Context, email string) (User, error)
	ByID(ctx context.Context, id string) (User, error)
	List(ctx context.Context, f ListFilter) ([]User, error)
	UpdateProfile(ctx context.Context, id, fullName, phone string, p Profile) error
	SetRole(ctx context.Context, id, role string) error
}

type Service struct {
	Store  Store
	Tokens *auth.Tokens
}

type RegisterInput struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLen {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	now := time.Now().UTC()
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		FullName:     strings.TrimSpace(in.FullName),
		Role:         auth.RoleCustomer,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.Store.ByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	tok, exp, err := s.Tokens.Issue(u.ID, u.Role)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: tok, ExpiresAt: exp, User: u}, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	if uuid.Validate(id) != nil {
		return User{}, ErrNotFound
	}
	return s.Store.ByID(ctx, id)
}

type ProfileInput struct {
	FullName string  `json:"full_name"`
	Phone    string  `json:"phone"`
	Profile  Profile `json:"profile"`
}

func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileInput) (User, error) {
	if err := s.Store.UpdateProfile(ctx, id, strings.TrimSpace(in.FullName), strings.TrimSpace(in.Phone), in.Profile); err != nil {
		return User{}, err
	}
	return s.Store.ByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]User, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.Store.List(ctx, f)
}

func (s *Service) SetRole(ctx context.Context, id, role string) error {
	if !auth.ValidRole(role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	return s.Store.SetRole(ctx, id, role)
}
