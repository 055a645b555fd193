package services

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant_backend/internal/models"
	"restaurant_backend/internal/repositories"
	"restaurant_backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// --- Custom Service Errors ---
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrTokenGeneration    = errors.New("failed to generate token")
	ErrResetTokenInvalid  = errors.New("password reset token is invalid or expired")
)

// resetTokenTTL bounds how long an issued password-reset token stays usable.
const resetTokenTTL = time.Hour

// --- Data Transfer Objects (DTOs) ---

// RegisterUserRequest DTO. Public registration always creates a customer
// account; staff roles are granted afterwards by an admin.
type RegisterUserRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest DTO
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse DTO
type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

// PasswordResetRequest DTO
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// PasswordResetConfirm DTO
type PasswordResetConfirm struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// PasswordResetIssued carries the one-time token back to the caller. Delivering
// it out-of-band (mail, SMS) is outside this service.
type PasswordResetIssued struct {
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// UpdateUserRoleRequest DTO
type UpdateUserRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// --- AuthService Interface ---
type AuthService interface {
	RegisterUser(req RegisterUserRequest) (*models.User, error)
	LoginUser(req LoginRequest) (*AuthResponse, error)
	GetUserProfile(userID int64) (*models.User, error)
	RequestPasswordReset(req PasswordResetRequest) (*PasswordResetIssued, error)
	ConfirmPasswordReset(req PasswordResetConfirm) error
	GetUsers(role *string, page, pageSize int) ([]models.User, int, error)
	UpdateUserRole(actor Actor, userID int64, role string) (*models.User, error)
}

// --- authService Implementation ---
type authService struct {
	userRepo repositories.UserRepository
	db       *sql.DB // Used as SQLExecutor for single repo calls, or for managing transactions
	clock    Clock
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(ur repositories.UserRepository, db *sql.DB, clock Clock) AuthService {
	return &authService{
		userRepo: ur,
		db:       db,
		clock:    clockOrDefault(clock),
	}
}

// --- Method Implementations ---

// RegisterUser handles the business logic for user registration.
func (s *authService) RegisterUser(req RegisterUserRequest) (*models.User, error) {
	hashedPasswordBytes, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		FullName: strings.TrimSpace(req.FullName),
		Email:    normalizeEmail(req.Email),
		Role:     models.RoleCustomer,
	}

	createdUserID, err := s.userRepo.CreateUser(s.db, &user, string(hashedPasswordBytes))
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %s", ErrEmailExists, user.Email)
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	registeredUser, err := s.userRepo.FindUserByID(createdUserID)
	if err != nil {
		return nil, fmt.Errorf("user registered but failed to retrieve details: %w", err)
	}
	return registeredUser, nil
}

// LoginUser handles user login and token generation.
func (s *authService) LoginUser(req LoginRequest) (*AuthResponse, error) {
	user, storedHashedPassword, err := s.userRepo.FindUserByEmail(normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login attempt failed: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(storedHashedPassword), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := utils.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	return &AuthResponse{
		User:        user,
		AccessToken: accessToken,
	}, nil
}

// GetUserProfile retrieves a user's profile by their ID.
func (s *authService) GetUserProfile(userID int64) (*models.User, error) {
	user, err := s.userRepo.FindUserByID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to retrieve user profile: %w", err)
	}
	return user, nil
}

// RequestPasswordReset issues a fresh one-time reset token for the account.
// Only a SHA-256 hash of the token is stored; the plaintext goes back to the
// caller once and cannot be recovered later.
func (s *authService) RequestPasswordReset(req PasswordResetRequest) (*PasswordResetIssued, error) {
	user, _, err := s.userRepo.FindUserByEmail(normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	token, err := generateResetToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	expiresAt := s.clock().Add(resetTokenTTL)

	if err := s.userRepo.SetResetToken(s.db, user.ID, hashResetToken(token), expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store reset token: %w", err)
	}

	return &PasswordResetIssued{
		ResetToken: token,
		ExpiresAt:  expiresAt,
	}, nil
}

// ConfirmPasswordReset redeems a reset token and replaces the password. The
// token is single-use: storing the new password clears the reset state.
func (s *authService) ConfirmPasswordReset(req PasswordResetConfirm) error {
	user, err := s.userRepo.FindUserByResetTokenHash(hashResetToken(req.Token))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("failed to look up reset token: %w", err)
	}
	if user.ResetTokenExpires == nil || s.clock().After(*user.ResetTokenExpires) {
		return ErrResetTokenInvalid
	}

	hashedPasswordBytes, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(s.db, user.ID, string(hashedPasswordBytes)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// GetUsers lists accounts, optionally filtered by role. Admin-only at the
// route level.
func (s *authService) GetUsers(role *string, page, pageSize int) ([]models.User, int, error) {
	if role != nil && !models.IsValidRole(*role) {
		return nil, 0, fmt.Errorf("%w: unknown role '%s'", ErrValidation, *role)
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	users, totalCount, err := s.userRepo.GetUsers(role, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get users: %w", err)
	}
	return users, totalCount, nil
}

// UpdateUserRole grants or revokes a role. Admins cannot change their own
// role, which keeps at least the acting admin in place.
func (s *authService) UpdateUserRole(actor Actor, userID int64, role string) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only an admin may change roles", ErrForbidden)
	}
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role '%s'", ErrValidation, role)
	}
	if actor.UserID == userID {
		return nil, fmt.Errorf("%w: you cannot change your own role", ErrValidation)
	}

	if err := s.userRepo.UpdateUserRole(s.db, userID, role); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user role: %w", err)
	}
	return s.GetUserProfile(userID)
}

// --- Internal helpers ---

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
