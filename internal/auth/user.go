package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	stdtime "time"

	"github.com/google/uuid"

	"github.com/kuitang/notewise/internal/db"
	"github.com/kuitang/notewise/internal/errs"
	"github.com/kuitang/notewise/internal/obs"
)

// Errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Clock abstracts time for testability.
type Clock interface {
	Now() stdtime.Time
}

// realClock implements Clock using the real system time.
type realClock struct{}

func (realClock) Now() stdtime.Time { return stdtime.Now() }

// User is the public view of an account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the result of a successful register or login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt stdtime.Time `json:"expiresAt"`
	User      User         `json:"user"`
}

// RegisterParams contains parameters for creating an account.
type RegisterParams struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileParams contains profile changes. Empty fields are left unchanged.
type UpdateProfileParams struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserService handles user management operations.
type UserService struct {
	users  *db.UserStore
	hasher PasswordHasher
	tokens *Tokens
	clock  Clock
}

// NewUserService creates a new user service.
func NewUserService(users *db.UserStore, hasher PasswordHasher, tokens *Tokens) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		clock:  realClock{},
	}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *UserService) SetClock(c Clock) {
	s.clock = c
}

// Register creates a new account and signs the user in.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (*Session, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, errs.New(errs.InvalidArgument, "name is required")
	}
	email, err := normalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePasswordStrength(params.Password); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err.Error(), err)
	}

	hash, err := s.hasher.HashPassword(params.Password)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to hash password", err)
	}

	now := s.clock.Now().UTC()
	record := db.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, record); err != nil {
		if errors.Is(err, db.ErrEmailTaken) {
			return nil, errs.Wrap(errs.FailedPrecondition, "an account with this email already exists", ErrAccountExists)
		}
		return nil, errs.Wrap(errs.Internal, "failed to create account", err)
	}

	obs.From(ctx).Info("user_registered", "user_id", record.ID)
	return s.newSession(record)
}

// Login verifies email and password and issues a new access token. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errs.New(errs.InvalidArgument, "email and password are required")
	}

	record, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, db.ErrUserNotFound) {
		// Burn comparable time so response latency does not reveal the account
		_ = s.hasher.VerifyPassword(password, dummyHash)
		return nil, errs.Wrap(errs.Unauthenticated, "invalid email or password", ErrInvalidCredentials)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to look up account", err)
	}
	if !s.hasher.VerifyPassword(password, record.PasswordHash) {
		return nil, errs.Wrap(errs.Unauthenticated, "invalid email or password", ErrInvalidCredentials)
	}

	return s.newSession(record)
}

// Get returns the user's profile.
func (s *UserService) Get(ctx context.Context, userID string) (*User, error) {
	record, err := s.users.Get(ctx, userID)
	if errors.Is(err, db.ErrUserNotFound) {
		return nil, errs.Wrap(errs.NotFound, "user not found", ErrUserNotFound)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to load user", err)
	}
	return publicUser(record), nil
}

// UpdateProfile applies the non-empty fields of params.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) (*User, error) {
	record, err := s.users.Get(ctx, userID)
	if errors.Is(err, db.ErrUserNotFound) {
		return nil, errs.Wrap(errs.NotFound, "user not found", ErrUserNotFound)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to load user", err)
	}

	if name := strings.TrimSpace(params.Name); name != "" {
		record.Name = name
	}
	if params.Email != "" {
		email, err := normalizeEmail(params.Email)
		if err != nil {
			return nil, err
		}
		record.Email = email
	}
	if params.Password != "" {
		if err := ValidatePasswordStrength(params.Password); err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, err.Error(), err)
		}
		hash, err := s.hasher.HashPassword(params.Password)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, "failed to hash password", err)
		}
		record.PasswordHash = hash
	}
	record.UpdatedAt = s.clock.Now().UTC()

	if err := s.users.Update(ctx, record); err != nil {
		switch {
		case errors.Is(err, db.ErrEmailTaken):
			return nil, errs.Wrap(errs.FailedPrecondition, "an account with this email already exists", ErrAccountExists)
		case errors.Is(err, db.ErrUserNotFound):
			return nil, errs.Wrap(errs.NotFound, "user not found", ErrUserNotFound)
		default:
			return nil, errs.Wrap(errs.Internal, "failed to update user", err)
		}
	}
	return publicUser(record), nil
}

func (s *UserService) newSession(record db.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(record.ID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to issue token", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: *publicUser(record)}, nil
}

func publicUser(record db.User) *User {
	return &User{ID: record.ID, Name: record.Name, Email: record.Email}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errs.New(errs.InvalidArgument, "a valid email address is required")
	}
	return email, nil
}

// dummyHash is verified against when the account does not exist.
const dummyHash = "$argon2id$v=19$m=19456,t=2,p=1$c29tZXNhbHRzb21lc2FsdA$0000000000000000000000000000000000000000000"
