package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrValidation is returned when account input is malformed.
	ErrValidation = errors.New("invalid user input")
	// ErrInvalidCredentials is returned for a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInactive is returned when a deactivated account tries to log in.
	ErrInactive = errors.New("account is inactive")
	// ErrForbidden is returned when an action is not allowed for the actor.
	ErrForbidden = errors.New("action not allowed")
)

const (
	defaultPageSize = 10
	minPasswordLen  = 8
)

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

type Service struct {
	storage Storage
	tokens  *Tokens
	logger  *zap.Logger
}

func NewService(storage Storage, tokens *Tokens, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Service{storage: storage, tokens: tokens, logger: logger}
}

// Login checks the credentials and issues a session token.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.storage.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.logger.Warn("failed login", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactive
	}

	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	u.LastLogin = &now
	if err := s.storage.Save(ctx, u); err != nil {
		s.logger.Warn("failed to record last login", zap.Uint("user_id", u.ID), zap.Error(err))
	}

	s.logger.Info("user logged in", zap.Uint("user_id", u.ID), zap.String("role", string(u.Role)))
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

// Authenticate resolves a token to the current state of its account, so
// deactivated users and role changes take effect immediately.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	p, err := s.tokens.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	u, err := s.storage.Get(ctx, p.UserID)
	if errors.Is(err, ErrNotFound) {
		return Principal{}, ErrInvalidToken
	}
	if err != nil {
		return Principal{}, err
	}
	if !u.IsActive {
		return Principal{}, ErrInactive
	}
	return Principal{UserID: u.ID, Username: u.Username, Role: roleOrDefault(u.Role)}, nil
}

// Role returns the user's role, or waiter when the user or role is unknown.
func (s *Service) Role(ctx context.Context, userID uint) Role {
	u, err := s.storage.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("role lookup failed", zap.Uint("user_id", userID), zap.Error(err))
		}
		return RoleWaiter
	}
	return roleOrDefault(u.Role)
}

// CreateUser registers a staff account on behalf of actor. Only admins can
// create admin accounts.
func (s *Service) CreateUser(ctx context.Context, actor Principal, in CreateUserInput) (*User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if err := checkPassword(in.Password, in.ConfirmPassword); err != nil {
		return nil, err
	}
	role, err := parseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, role); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		Username:     username,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        strings.TrimSpace(in.Email),
		Role:         role,
		IsActive:     true,
	}
	if err := s.storage.Create(ctx, u); err != nil {
		if !errors.Is(err, ErrUsernameTaken) {
			s.logger.Error("failed to create user", zap.String("username", username), zap.Error(err))
		}
		return nil, err
	}
	s.logger.Info("user created", zap.Uint("user_id", u.ID), zap.String("role", string(role)))
	return u, nil
}

// UpdateUser edits profile fields and the role of an account. Granting or
// revoking admin needs an admin, nobody changes their own role, and the last
// active admin keeps the role.
func (s *Service) UpdateUser(ctx context.Context, actor Principal, id uint, in UpdateUserInput) (*User, error) {
	u, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	role, err := parseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if in.Role == "" {
		role = u.Role
	}
	if err := authorize(actor, u.Role); err != nil {
		return nil, err
	}
	if err := authorize(actor, role); err != nil {
		return nil, err
	}
	if role != u.Role {
		if u.ID == actor.UserID {
			return nil, fmt.Errorf("%w: you cannot change your own role", ErrForbidden)
		}
		if u.Role == RoleAdmin && u.IsActive {
			if err := s.keepOneAdmin(ctx); err != nil {
				return nil, err
			}
		}
	}

	if username := strings.TrimSpace(in.Username); username != "" {
		u.Username = username
	}
	if in.Password != "" {
		if err := checkPassword(in.Password, in.ConfirmPassword); err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	u.FirstName = strings.TrimSpace(in.FirstName)
	u.LastName = strings.TrimSpace(in.LastName)
	u.Email = strings.TrimSpace(in.Email)
	u.Role = role

	if err := s.storage.Save(ctx, u); err != nil {
		if !errors.Is(err, ErrUsernameTaken) {
			s.logger.Error("failed to update user", zap.Uint("user_id", id), zap.Error(err))
		}
		return nil, err
	}
	s.logger.Info("user updated",
		zap.Uint("user_id", u.ID),
		zap.String("role", string(u.Role)),
		zap.Uint("actor_id", actor.UserID),
	)
	return u, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*User, error) {
	return s.storage.Get(ctx, id)
}

// List returns one page of users and the total matching count.
func (s *Service) List(ctx context.Context, in ListInput) ([]User, int64, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 {
		in.Limit = defaultPageSize
	}
	return s.storage.List(ctx, in)
}

// ToggleStatus flips a user's active flag. Only admins toggle admin
// accounts, and nobody can deactivate themselves or the last active admin.
func (s *Service) ToggleStatus(ctx context.Context, actor Principal, id uint) (*User, error) {
	u, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, u.Role); err != nil {
		return nil, err
	}
	if u.IsActive {
		if u.ID == actor.UserID {
			return nil, fmt.Errorf("%w: you cannot deactivate your own account", ErrForbidden)
		}
		if u.Role == RoleAdmin {
			if err := s.keepOneAdmin(ctx); err != nil {
				return nil, err
			}
		}
	}

	u.IsActive = !u.IsActive
	if err := s.storage.Save(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user status changed",
		zap.Uint("user_id", u.ID),
		zap.Bool("is_active", u.IsActive),
		zap.Uint("actor_id", actor.UserID),
	)
	return u, nil
}

func (s *Service) Delete(ctx context.Context, actor Principal, id uint) error {
	if actor.UserID == id {
		return fmt.Errorf("%w: you cannot delete your own account", ErrForbidden)
	}
	if err := s.storage.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.Uint("user_id", id), zap.Uint("actor_id", actor.UserID))
	return nil
}

// keepOneAdmin fails when removing one active admin would leave none.
func (s *Service) keepOneAdmin(ctx context.Context) error {
	n, err := s.storage.CountActive(ctx, RoleAdmin)
	if err != nil {
		return err
	}
	if n <= 1 {
		return fmt.Errorf("%w: cannot remove the last active admin", ErrForbidden)
	}
	return nil
}

// authorize checks that actor may manage an account holding role.
func authorize(actor Principal, role Role) error {
	if role == RoleAdmin && actor.Role != RoleAdmin {
		return fmt.Errorf("%w: only admins can manage admin accounts", ErrForbidden)
	}
	return nil
}

func checkPassword(password, confirm string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must have at least %d characters", ErrValidation, minPasswordLen)
	}
	if password != confirm {
		return fmt.Errorf("%w: passwords do not match", ErrValidation)
	}
	return nil
}

// parseRole defaults an empty role to waiter.
func parseRole(r Role) (Role, error) {
	if r == "" {
		return RoleWaiter, nil
	}
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, r)
	}
	return r, nil
}

func roleOrDefault(r Role) Role {
	if r.Valid() {
		return r
	}
	return RoleWaiter
}
