package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/models"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/crypto"
	apperrors "github.com/xoen85/accept-connect-app-oqvfkg/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrEmailTaken indicates another account already uses the email address.
	ErrEmailTaken = apperrors.New("EMAIL_TAKEN", "An account with this email already exists", http.StatusConflict)
	// ErrUserInactive indicates the account has been disabled.
	ErrUserInactive = apperrors.New("USER_INACTIVE", "Account is disabled", http.StatusForbidden)
)

// RegisterUserInput describes the fields accepted when creating an account.
type RegisterUserInput struct {
	Email       string
	Password    string
	DisplayName string
}

// UserService manages local accounts: registration, credential checks and account deletion.
type UserService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, now: time.Now}, nil
}

// Register provisions a new user with a hashed password.
func (s *UserService) Register(ctx context.Context, input RegisterUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = email
		if at := strings.IndexByte(email, '@'); at > 0 {
			displayName = email[:at]
		}
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Email:       email,
		Password:    hashed,
		DisplayName: displayName,
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}
	return user, nil
}

// Authenticate verifies credentials and stamps the last login time.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("user service: update last login: %w", err)
	}
	user.LastLoginAt = &now
	return user, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// FindByEmail loads a user by email address (case-insensitive).
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: find by email: %w", err)
	}
	return &user, nil
}

// Delete removes an account. Sent messages are kept for their recipients with the sender
// reference cleared; sessions and proximity sessions owned by the user are removed.
func (s *UserService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Message{}).
			Where("sender_id = ?", user.ID).
			Update("sender_id", "").Error; err != nil {
			return fmt.Errorf("user service: anonymise messages: %w", err)
		}
		if err := tx.Where("initiator_id = ?", user.ID).Delete(&models.ProximitySession{}).Error; err != nil {
			return fmt.Errorf("user service: delete proximity sessions: %w", err)
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Session{}).Error; err != nil {
			return fmt.Errorf("user service: delete sessions: %w", err)
		}
		if err := tx.Delete(user).Error; err != nil {
			return fmt.Errorf("user service: delete user: %w", err)
		}
		return nil
	})
}

// DisplayNames returns display names keyed by user ID for the supplied identifiers.
func (s *UserService) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	return displayNames(ensureContext(ctx), s.db, ids)
}

func displayNames(ctx context.Context, db *gorm.DB, ids []string) (map[string]string, error) {
	ids = normaliseIDs(ids)
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var users []models.User
	if err := db.WithContext(ctx).Select("id", "display_name").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: load display names: %w", err)
	}
	for _, user := range users {
		names[user.ID] = user.DisplayName
	}
	return names, nil
}

func senderName(names map[string]string, senderID string) string {
	if name, ok := names[senderID]; ok && senderID != "" {
		return name
	}
	return models.DeletedUserName
}
