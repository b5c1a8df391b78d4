package repositories

import (
	"context"
	"errors"

	"github.com/tommyfx/storefront/app/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no profile matches.
var ErrNotFound = errors.New("repositories: profile not found")

// ProfileRepository handles database operations for Profile.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByEmail looks up a profile by its email address.
func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (models.Profile, error) {
	return r.first(ctx, "email = ?", email)
}

// FindByID looks up a profile by primary key.
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (models.Profile, error) {
	return r.first(ctx, "id = ?", id)
}

// Create persists a new profile. An empty ID is filled in by the model hook.
func (r *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProfileRepository) first(ctx context.Context, where string, arg any) (models.Profile, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).Where(where, arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, ErrNotFound
	}
	return p, err
}
