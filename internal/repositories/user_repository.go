package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"restaurant_backend/internal/models"
	"strings"
	"time"

	"github.com/lib/pq" // For pq.Error
)

// UserRepository defines the interface for user and credential database operations.
type UserRepository interface {
	CreateUser(executor SQLExecutor, user *models.User, hashedPassword string) (int64, error)
	FindUserByEmail(email string) (*models.User, string, error) // Returns User, HashedPassword, Error
	FindUserByID(userID int64) (*models.User, error)
	GetUsers(role *string, page, pageSize int) ([]models.User, int, error)
	UpdateUserRole(executor SQLExecutor, userID int64, role string) error
	SetResetToken(executor SQLExecutor, userID int64, tokenHash string, expires time.Time) error
	FindUserByResetTokenHash(tokenHash string) (*models.User, error)
	// UpdatePassword replaces the password hash and clears any reset token fields.
	UpdatePassword(executor SQLExecutor, userID int64, hashedPassword string) error
}

// userRepository implements the UserRepository interface.
type userRepository struct {
	db *sql.DB // The direct database connection pool
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

// CreateUser inserts a new user into the database.
// It expects an SQLExecutor which can be a *sql.DB or *sql.Tx.
func (r *userRepository) CreateUser(executor SQLExecutor, user *models.User, hashedPassword string) (int64, error) {
	query := `INSERT INTO users (full_name, email, password_hash, role, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`

	currentTime := time.Now()

	var userID int64
	err := executor.QueryRow(
		query,
		user.FullName,
		user.Email,
		hashedPassword,
		user.Role,
		currentTime,
		currentTime,
	).Scan(&userID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			if pqErr.Code.Name() == "unique_violation" {
				// users.email is the only unique column, so this is a duplicate email.
				return 0, fmt.Errorf("%w: %s (constraint: %s)", ErrDuplicateKey, pqErr.Message, pqErr.Constraint)
			}
		}
		return 0, fmt.Errorf("%w: creating user: %v", ErrDatabaseError, err)
	}
	return userID, nil
}

// FindUserByEmail retrieves a user by their login email.
// It returns the user model, their hashed password, and an error if any.
func (r *userRepository) FindUserByEmail(email string) (*models.User, string, error) {
	user := &models.User{}
	var hashedPassword string
	query := `SELECT id, full_name, email, password_hash, role, created_at, updated_at
	          FROM users
	          WHERE email = $1`

	err := r.db.QueryRow(query, email).Scan(
		&user.ID, &user.FullName, &user.Email, &hashedPassword, &user.Role,
		&user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("%w: finding user by email %s: %v", ErrDatabaseError, email, err)
	}
	return user, hashedPassword, nil
}

// FindUserByID retrieves a user by their ID. The password hash is not loaded;
// this method serves profile reads, not credential checks.
func (r *userRepository) FindUserByID(userID int64) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, full_name, email, role, created_at, updated_at
	          FROM users
	          WHERE id = $1`

	err := r.db.QueryRow(query, userID).Scan(
		&user.ID, &user.FullName, &user.Email, &user.Role,
		&user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: finding user by ID %d: %v", ErrDatabaseError, userID, err)
	}
	return user, nil
}

func (r *userRepository) GetUsers(role *string, page, pageSize int) ([]models.User, int, error) {
	users := []models.User{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT id, full_name, email, role, created_at, updated_at,
	          COUNT(*) OVER() AS total_count
	        FROM users`)

	var conditions []string
	var args []interface{}
	argCount := 1

	if role != nil && *role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argCount))
		args = append(args, *role)
		argCount++
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY full_name")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1))
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: getting users: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.FullName, &user.Email, &user.Role,
			&user.CreatedAt, &user.UpdatedAt, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning user: %v", ErrDatabaseError, err)
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating users: %v", ErrDatabaseError, err)
	}
	return users, totalCount, nil
}

func (r *userRepository) UpdateUserRole(executor SQLExecutor, userID int64, role string) error {
	query := `UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`
	result, err := executor.Exec(query, role, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("%w: updating role for user ID %d: %v", ErrDatabaseError, userID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResetToken stores the hash of a freshly issued password reset token.
// A second call simply overwrites the previous token.
func (r *userRepository) SetResetToken(executor SQLExecutor, userID int64, tokenHash string, expires time.Time) error {
	query := `UPDATE users SET reset_token_hash = $1, reset_token_expires = $2, updated_at = $3 WHERE id = $4`
	result, err := executor.Exec(query, tokenHash, expires, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("%w: storing reset token for user ID %d: %v", ErrDatabaseError, userID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindUserByResetTokenHash retrieves the user holding the given reset token hash.
// Expiry is NOT checked here; the service compares ResetTokenExpires itself.
func (r *userRepository) FindUserByResetTokenHash(tokenHash string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, full_name, email, role, reset_token_hash, reset_token_expires, created_at, updated_at
	          FROM users
	          WHERE reset_token_hash = $1`

	err := r.db.QueryRow(query, tokenHash).Scan(
		&user.ID, &user.FullName, &user.Email, &user.Role,
		&user.ResetTokenHash, &user.ResetTokenExpires,
		&user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: finding user by reset token: %v", ErrDatabaseError, err)
	}
	return user, nil
}

func (r *userRepository) UpdatePassword(executor SQLExecutor, userID int64, hashedPassword string) error {
	query := `UPDATE users
	          SET password_hash = $1, reset_token_hash = NULL, reset_token_expires = NULL, updated_at = $2
	          WHERE id = $3`
	result, err := executor.Exec(query, hashedPassword, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("%w: updating password for user ID %d: %v", ErrDatabaseError, userID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
