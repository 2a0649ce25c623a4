package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/silencie/silencie/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type AuthStore interface {
	FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	// InsertProfile returns ErrDuplicate when the email is taken.
	InsertProfile(ctx context.Context, p *models.Profile) error
	ListProfiles(ctx context.Context) ([]*models.Profile, error)
}

type TokenSigner func(userID, email, role string, ttl time.Duration) (string, error)

type AuthService struct {
	store     AuthStore
	now       func() time.Time
	idGen     func() string
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type UserInput struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role" validate:"omitempty,oneof=admin member"`
	Password string `json:"password,omitempty" validate:"omitempty,min=8"`
}

func NewAuthService(store AuthStore, signer TokenSigner, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 30 * 24 * time.Hour
	}
	return &AuthService{
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     uuid.NewString,
		signToken: signer,
		tokenTTL:  tokenTTL,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	p, err := s.store.FindProfileByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if p == nil || len(p.PassHash) == 0 {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(p.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(p.ID, p.Email, p.Role, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: p.ID, Role: p.Role}, nil
}

// CreateUser adds a profile. Without a password the user can only sign in
// with tokens minted elsewhere.
func (s *AuthService) CreateUser(ctx context.Context, in UserInput) (*models.Profile, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Role = strings.TrimSpace(in.Role)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = RoleMember
	}
	now := s.now()
	p := &models.Profile{
		ID:        s.idGen(),
		Email:     in.Email,
		FullName:  strings.TrimSpace(in.FullName),
		Role:      in.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		p.PassHash = hash
	}
	if err := s.store.InsertProfile(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, NewConflictError("email exists")
		}
		return nil, err
	}
	return p, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("user not found")
	}
	return p, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]*models.Profile, error) {
	return s.store.ListProfiles(ctx)
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}
