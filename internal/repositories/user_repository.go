package repositories

import (
	"errors"

	"obrolan/internal/models"
)

// Sentinel errors returned by repositories. Callers match them with errors.Is.
var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateUsername is returned when an insert violates the
	// username unique index.
	ErrDuplicateUsername = errors.New("username already exists")
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(user *models.User) error
	GetByUsername(username string) (*models.User, error)
	GetByID(id string) (*models.User, error)
	GetAllExcept(id string) ([]models.User, error)
}
