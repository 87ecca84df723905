// Package users persists user records.
package users

import (
	"context"
	"errors"
	"time"

	"github.com/nikhilbhutani/kokorotts/internal/models"
)

// MaxFieldLength is the character limit of the email and name columns.
const MaxFieldLength = 255

var (
	ErrNotFound     = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrValueTooLong = errors.New("value too long")
)

// Repository is the storage contract for user records. Email uniqueness is
// enforced by the implementation.
type Repository interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdatePreferences(ctx context.Context, id int64, update models.Preferences) (models.Preferences, error)
	AddFavoriteVoice(ctx context.Context, id int64, voice string) ([]string, error)
	// RecordHistory appends entry to the user's history.
	RecordHistory(ctx context.Context, id int64, entry models.HistoryEntry) error
	Ping(ctx context.Context) error
}
