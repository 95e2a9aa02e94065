package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/config"
	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/store"
	"github.com/mrlokans/booktracker/internal/validation"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{2,20}$`)

var (
	ErrUserExists         = errors.New("username or email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Username        string `json:"username" form:"username" validate:"required,min=2,max=20"`
	Email           string `json:"email" form:"email" validate:"required,email,max=254"`
	Password        string `json:"password" form:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" validate:"required"`
}

// Service handles accounts and credential checks.
type Service struct {
	users     store.UserStore
	config    config.Auth
	validator *validation.Validator
	log       *zap.Logger
}

func NewService(users store.UserStore, cfg config.Auth, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:     users,
		config:    cfg,
		validator: validation.New(),
		log:       log.Named("auth"),
	}
}

// Register creates an account. Usernames and emails are unique across users.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entities.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	if !usernamePattern.MatchString(in.Username) {
		return nil, validation.NewError("username", "must contain only letters, digits, underscores or hyphens")
	}
	if in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	if err := s.ensureAvailable(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password, s.config.BcryptCost)
	if err != nil {
		if errors.Is(err, ErrPasswordTooShort) || errors.Is(err, ErrPasswordTooLong) {
			return nil, validation.NewError("password", passwordMessage(err))
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, store.UserInput{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a race with a concurrent sign-up.
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

func (s *Service) ensureAvailable(ctx context.Context, username, email string) error {
	_, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return ErrUserExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check username: %w", err)
	}

	_, err = s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return ErrUserExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check email: %w", err)
	}
	return nil
}

// Authenticate checks an email and password pair. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entities.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			s.log.Info("login rejected", zap.String("user_id", user.ID))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) GetUserByID(ctx context.Context, userID string) (*entities.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func passwordMessage(err error) string {
	if errors.Is(err, ErrPasswordTooShort) {
		return fmt.Sprintf("must be at least %d characters", MinPasswordLength)
	}
	return "must not exceed 72 bytes"
}
