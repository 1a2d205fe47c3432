// Package auth covers email/password registration, login, and profile
// updates. JWT access tokens stand in for sessions; sign-out only clears
// presence.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/joeldelcastillo/verndale-chat-app/internal/models"
	"github.com/joeldelcastillo/verndale-chat-app/internal/store"
)

var (
	ErrEmailInUse         = errors.New("auth: email already in use")
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
)

type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Set(ctx context.Context, u *models.User) error
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	SetOnline(ctx context.Context, id string, online bool) error
}

type PrivateUserStore interface {
	Set(ctx context.Context, p *models.PrivateUser) error
}

type CredentialStore interface {
	Create(ctx context.Context, c *store.Credential) error
	GetByEmail(ctx context.Context, email string) (*store.Credential, error)
}

type Service struct {
	users   UserStore
	private PrivateUserStore
	creds   CredentialStore
	tokens  *TokenManager
	log     *zap.SugaredLogger
}

func NewService(users UserStore, private PrivateUserStore, creds CredentialStore, tokens *TokenManager, log *zap.SugaredLogger) *Service {
	return &Service{users: users, private: private, creds: creds, tokens: tokens, log: log}
}

type Session struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Register creates the credential, the public profile, and the private
// document for a new user, then signs them in. A taken email is reported
// as ErrEmailInUse so callers can fall back to login.
func (s *Service) Register(ctx context.Context, email, password, name string) (*Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	userID := uuid.NewString()
	cred := &store.Credential{UserID: userID, Email: email, PasswordHash: string(hash)}
	if err := s.creds.Create(ctx, cred); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}
	user, err := s.CreateProfile(ctx, userID, name, email, "")
	if err != nil {
		return nil, err
	}
	return s.newSession(user)
}

// CreateProfile writes the User and PrivateUser pair. If the profile
// already exists it is returned untouched, so the call is idempotent.
func (s *Service) CreateProfile(ctx context.Context, userID, name, email, avatar string) (*models.User, error) {
	if existing, err := s.users.Get(ctx, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:        userID,
		Name:      name,
		Email:     email,
		Avatar:    avatar,
		IsOnline:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Set(ctx, user); err != nil {
		return nil, err
	}
	private := &models.PrivateUser{ID: userID, Notifications: []string{}, Chats: []string{}}
	if err := s.private.Set(ctx, private); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the password and issues a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	cred, err := s.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.Get(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}
	return s.newSession(user)
}

// Logout clears the online flag. Tokens are stateless and simply expire.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.users.SetOnline(ctx, userID, false)
}

// UpdateProfile patches display name and avatar URL. Empty values are left
// unchanged.
func (s *Service) UpdateProfile(ctx context.Context, userID, name, avatar string) error {
	fields := map[string]any{}
	if name != "" {
		fields["name"] = name
	}
	if avatar != "" {
		fields["avatar"] = avatar
	}
	if len(fields) == 0 {
		return nil
	}
	return s.users.UpdateFields(ctx, userID, fields)
}

func (s *Service) newSession(user *models.User) (*Session, error) {
	token, exp, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}
